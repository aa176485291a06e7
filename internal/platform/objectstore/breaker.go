package objectstore

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/sony/gobreaker"
)

// ErrUnavailable is returned while the breaker is open.
var ErrUnavailable = errors.New("object store unavailable")

// Breaker guards a Store with a circuit breaker so a failing bucket fails
// uploads fast instead of holding every worker until its deadline.
type Breaker struct {
	next Store
	cb   *gobreaker.CircuitBreaker
}

var _ Store = (*Breaker)(nil)

// NewBreaker opens after maxFailures consecutive failures and probes again
// after timeout.
func NewBreaker(next Store, maxFailures uint32, timeout time.Duration, logger *slog.Logger) *Breaker {
	if logger == nil {
		logger = slog.Default()
	}
	log := logger.With(slog.String("component", "object_store_breaker"))

	settings := gobreaker.Settings{
		Name:        "object-store",
		MaxRequests: 1,
		Timeout:     timeout,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= maxFailures
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			log.Warn("circuit breaker state changed",
				slog.String("breaker", name),
				slog.String("from", from.String()),
				slog.String("to", to.String()))
		},
		// A caller giving up says nothing about the store's health.
		IsSuccessful: func(err error) bool {
			return err == nil || errors.Is(err, context.Canceled) || errors.Is(err, ErrEmptyKey)
		},
	}

	return &Breaker{next: next, cb: gobreaker.NewCircuitBreaker(settings)}
}

// State reports the breaker state, for health reporting.
func (b *Breaker) State() gobreaker.State {
	return b.cb.State()
}

// Put implements Store.
func (b *Breaker) Put(ctx context.Context, key, contentType string, payload []byte) (string, error) {
	res, err := b.cb.Execute(func() (interface{}, error) {
		return b.next.Put(ctx, key, contentType, payload)
	})
	if err != nil {
		return "", wrapBreakerError(err)
	}
	return res.(string), nil
}

// Delete implements Store.
func (b *Breaker) Delete(ctx context.Context, key string) error {
	_, err := b.cb.Execute(func() (interface{}, error) {
		return nil, b.next.Delete(ctx, key)
	})
	return wrapBreakerError(err)
}

func wrapBreakerError(err error) error {
	if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
		return fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	return err
}
