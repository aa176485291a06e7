// Package kafka publishes notification events for downstream push delivery.
package kafka

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	kafkago "github.com/segmentio/kafka-go"

	"github.com/fithub/fithub-api/internal/config"
	"github.com/fithub/fithub-api/internal/domain"
	"github.com/fithub/fithub-api/internal/platform/logger"
)

// HeaderType carries the notification type on every message.
const HeaderType = "notification-type"

// ErrPublisherClosed is returned by Publish after Close.
var ErrPublisherClosed = errors.New("notification publisher closed")

type messageWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafkago.Message) error
	Close() error
}

// NotificationPublisher writes notifications as JSON, keyed by recipient so
// that one recipient's notifications stay ordered on one partition.
type NotificationPublisher struct {
	writer  messageWriter
	timeout time.Duration
	closed  chan struct{}
	once    sync.Once
	logger  *slog.Logger
}

// NewNotificationPublisher creates a publisher writing to the configured topic.
func NewNotificationPublisher(cfg config.KafkaConfig, logger *slog.Logger) *NotificationPublisher {
	w := &kafkago.Writer{
		Addr:         kafkago.TCP(cfg.Brokers...),
		Topic:        cfg.NotificationTopic,
		Balancer:     &kafkago.Hash{},
		RequiredAcks: kafkago.RequireAll,
		WriteTimeout: cfg.WriteTimeout,
	}
	return newNotificationPublisher(w, cfg.WriteTimeout, logger)
}

func newNotificationPublisher(w messageWriter, timeout time.Duration, logger *slog.Logger) *NotificationPublisher {
	if logger == nil {
		logger = slog.Default()
	}
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &NotificationPublisher{
		writer:  w,
		timeout: timeout,
		closed:  make(chan struct{}),
		logger:  logger.With(slog.String("component", "notification_publisher")),
	}
}

// Publish writes one notification.
func (p *NotificationPublisher) Publish(ctx context.Context, n domain.Notification) error {
	select {
	case <-p.closed:
		return ErrPublisherClosed
	default:
	}

	value, err := json.Marshal(n)
	if err != nil {
		return fmt.Errorf("failed to encode notification: %w", err)
	}

	ctx, cancel := context.WithTimeout(ctx, p.timeout)
	defer cancel()

	msg := kafkago.Message{
		Key:     []byte(n.RecipientID.String()),
		Value:   value,
		Time:    n.CreatedAt,
		Headers: []kafkago.Header{{Key: HeaderType, Value: []byte(n.Type)}},
	}
	if err := p.writer.WriteMessages(ctx, msg); err != nil {
		return fmt.Errorf("failed to publish notification %s: %w", n.ID, err)
	}

	logger.FromContextOrDefault(ctx, p.logger).Debug("published notification",
		slog.String("notification_id", n.ID.String()),
		slog.String("recipient_id", n.RecipientID.String()),
		slog.String("type", string(n.Type)))
	return nil
}

// Close flushes pending writes and releases the writer.
func (p *NotificationPublisher) Close() error {
	var err error
	p.once.Do(func() {
		close(p.closed)
		err = p.writer.Close()
	})
	return err
}
