// Package reconcile flips like, save and comment-like relations while keeping
// every counter equal to the number of join rows behind it.
package reconcile

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"golang.org/x/sync/singleflight"

	"github.com/fithub/fithub-api/internal/domain"
	"github.com/fithub/fithub-api/internal/platform/logger"
	"github.com/fithub/fithub-api/internal/store"
)

// ErrParentNotFound is returned when the toggle target no longer exists.
var ErrParentNotFound = fmt.Errorf("%w: toggle target", store.ErrNotFound)

const defaultToggleTimeout = 5 * time.Second

// TxRunner runs fn inside a database transaction.
type TxRunner = store.TxRunner

// Observer receives one call per finished toggle.
type Observer interface {
	ObserveToggle(relation domain.Relation, result string, elapsed time.Duration)
}

// Toggle results reported to the Observer.
const (
	ResultActivated   = "activated"
	ResultDeactivated = "deactivated"
	ResultError       = "error"
)

type nopObserver struct{}

func (nopObserver) ObserveToggle(domain.Relation, string, time.Duration) {}

// Reconciler performs atomic toggles.
type Reconciler struct {
	toggles  store.ToggleStore
	runTx    TxRunner
	observer Observer
	timeout  time.Duration
	flight   singleflight.Group
	logger   *slog.Logger
}

// Option customises a Reconciler.
type Option func(*Reconciler)

// WithObserver sets the telemetry observer.
func WithObserver(o Observer) Option {
	return func(r *Reconciler) {
		if o != nil {
			r.observer = o
		}
	}
}

// WithTimeout bounds a single toggle transaction.
func WithTimeout(d time.Duration) Option {
	return func(r *Reconciler) {
		if d > 0 {
			r.timeout = d
		}
	}
}

// NewReconciler creates a Reconciler.
func NewReconciler(toggles store.ToggleStore, runTx TxRunner, logger *slog.Logger, opts ...Option) (*Reconciler, error) {
	if toggles == nil {
		return nil, domain.NewValidationError("toggles", "cannot be nil", domain.ErrValidation)
	}
	if runTx == nil {
		return nil, domain.NewValidationError("runTx", "cannot be nil", domain.ErrValidation)
	}
	if logger == nil {
		return nil, domain.NewValidationError("logger", "cannot be nil", domain.ErrValidation)
	}

	r := &Reconciler{
		toggles:  toggles,
		runTx:    runTx,
		observer: nopObserver{},
		timeout:  defaultToggleTimeout,
		logger:   logger.With(slog.String("component", "toggle_reconciler")),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r, nil
}

// Toggle flips the relation identified by key and returns its new state.
//
// Concurrent calls for the same key inside this process share one execution
// and all receive its outcome. Across processes the same key is serialized
// by a transaction-scoped lock. Either the join row and the counter both
// change or neither does.
func (r *Reconciler) Toggle(ctx context.Context, key domain.ToggleKey) (domain.ToggleOutcome, error) {
	if err := key.Validate(); err != nil {
		return domain.ToggleOutcome{}, err
	}

	log := logger.FromContextOrDefault(ctx, r.logger)

	// The shared execution must not die with whichever caller started it.
	// Callers wait for its result even when their own context ends, so an
	// error always means nothing was committed.
	work := context.WithoutCancel(ctx)
	ch := r.flight.DoChan(key.String(), func() (interface{}, error) {
		workCtx, cancel := context.WithTimeout(work, r.timeout)
		defer cancel()
		return r.toggle(workCtx, key)
	})

	res := <-ch
	if res.Err != nil {
		return domain.ToggleOutcome{}, res.Err
	}
	if res.Shared {
		log.Debug("toggle coalesced with in-flight call", slog.String("key", key.String()))
	}
	return res.Val.(domain.ToggleOutcome), nil
}

func (r *Reconciler) toggle(ctx context.Context, key domain.ToggleKey) (domain.ToggleOutcome, error) {
	log := logger.FromContextOrDefault(ctx, r.logger).With(
		slog.String("relation", string(key.Relation)),
		slog.String("target_id", key.TargetID.String()),
		slog.String("user_id", key.UserID.String()))

	start := time.Now()
	var outcome domain.ToggleOutcome

	err := r.runTx(ctx, func(ctx context.Context, tx *sql.Tx) error {
		toggles := r.toggles.WithTx(tx)

		exists, err := toggles.TargetExists(ctx, key.Relation, key.TargetID)
		if err != nil {
			return fmt.Errorf("failed to check toggle target: %w", err)
		}
		if !exists {
			return ErrParentNotFound
		}

		if err := toggles.Lock(ctx, key); err != nil {
			return fmt.Errorf("failed to lock toggle key: %w", err)
		}

		active, err := toggles.Exists(ctx, key)
		if err != nil {
			return fmt.Errorf("failed to read toggle state: %w", err)
		}

		var delta int64
		if active {
			removed, err := toggles.Delete(ctx, key)
			if err != nil {
				return fmt.Errorf("failed to remove %s: %w", key.Relation, err)
			}
			if removed {
				delta = -1
			}
		} else {
			if err := toggles.Insert(ctx, key); err != nil {
				if store.IsNotFoundError(err) {
					return ErrParentNotFound
				}
				return fmt.Errorf("failed to add %s: %w", key.Relation, err)
			}
			delta = 1
		}

		count, err := toggles.AdjustCount(ctx, key.Relation, key.TargetID, delta)
		if err != nil {
			if store.IsNotFoundError(err) {
				return ErrParentNotFound
			}
			return fmt.Errorf("failed to adjust %s count: %w", key.Relation, err)
		}

		outcome = domain.ToggleOutcome{Active: !active, Count: count}
		return nil
	})

	elapsed := time.Since(start)
	if err != nil {
		r.observer.ObserveToggle(key.Relation, ResultError, elapsed)
		if errors.Is(err, ErrParentNotFound) {
			log.Debug("toggle target not found")
		} else {
			log.Error("toggle failed", slog.String("error", err.Error()))
		}
		return domain.ToggleOutcome{}, err
	}

	result := ResultDeactivated
	if outcome.Active {
		result = ResultActivated
	}
	r.observer.ObserveToggle(key.Relation, result, elapsed)
	log.Debug("toggle applied", slog.Bool("active", outcome.Active), slog.Int64("count", outcome.Count))
	return outcome, nil
}
