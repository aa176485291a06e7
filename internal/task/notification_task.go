package task

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"

	"github.com/google/uuid"

	"github.com/fithub/fithub-api/internal/domain"
	"github.com/fithub/fithub-api/internal/platform/logger"
)

// Common errors
var (
	ErrNilPublisher = errors.New("publisher cannot be nil")
	ErrNilUsers     = errors.New("user lookup cannot be nil")
	ErrNilDeleter   = errors.New("object deleter cannot be nil")
	ErrNilLogger    = errors.New("logger cannot be nil")
)

// NotificationPublisher hands a notification to the delivery pipeline.
type NotificationPublisher interface {
	Publish(ctx context.Context, n domain.Notification) error
}

// RecipientLookup resolves the push token of a notification recipient.
type RecipientLookup interface {
	GetByID(ctx context.Context, id uuid.UUID) (*domain.User, error)
}

// NotificationTask publishes one notification. The recipient's push token
// is read at execution time so a token refreshed after the event is used.
type NotificationTask struct {
	baseTask
	notification domain.Notification
	publisher    NotificationPublisher
	users        RecipientLookup
	logger       *slog.Logger
}

// NotificationFactory returns a Factory for TaskTypeNotification.
func NotificationFactory(publisher NotificationPublisher, users RecipientLookup, logger *slog.Logger) (Factory, error) {
	switch {
	case publisher == nil:
		return nil, ErrNilPublisher
	case users == nil:
		return nil, ErrNilUsers
	case logger == nil:
		return nil, ErrNilLogger
	}
	logger = logger.With(slog.String("component", "notification_task"))

	return func(id uuid.UUID, payload []byte) (Task, error) {
		var n domain.Notification
		if err := json.Unmarshal(payload, &n); err != nil {
			return nil, fmt.Errorf("invalid notification payload: %w", err)
		}
		if n.RecipientID == uuid.Nil {
			return nil, fmt.Errorf("invalid notification payload: missing recipient")
		}
		if n.ID == uuid.Nil {
			n.ID = id
		}
		return &NotificationTask{
			baseTask: baseTask{
				id:       id,
				taskType: TaskTypeNotification,
				payload:  payload,
				status:   TaskStatusPending,
			},
			notification: n,
			publisher:    publisher,
			users:        users,
			logger:       logger,
		}, nil
	}, nil
}

// Execute implements Task.
func (t *NotificationTask) Execute(ctx context.Context) error {
	log := logger.FromContextOrDefault(ctx, t.logger).With(
		slog.String("recipient_id", t.notification.RecipientID.String()),
		slog.String("notification_type", string(t.notification.Type)))

	recipient, err := t.users.GetByID(ctx, t.notification.RecipientID)
	if err != nil {
		return fmt.Errorf("failed to load recipient: %w", err)
	}
	if recipient.PushToken == "" {
		log.Debug("recipient has no push token, skipping")
		return nil
	}

	n := t.notification
	n.PushToken = recipient.PushToken
	if err := t.publisher.Publish(ctx, n); err != nil {
		return fmt.Errorf("failed to publish notification: %w", err)
	}
	log.Debug("notification published")
	return nil
}
