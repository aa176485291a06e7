package task

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"

	"github.com/google/uuid"

	"github.com/fithub/fithub-api/internal/platform/logger"
)

// ObjectDeleter removes a stored object. Deleting a missing key succeeds.
type ObjectDeleter interface {
	Delete(ctx context.Context, key string) error
}

// ObjectCleanupPayload is the stored payload of TaskTypeObjectCleanup.
type ObjectCleanupPayload struct {
	Keys []string `json:"keys"`
}

// ObjectCleanupTask deletes objects left behind by removed assets.
type ObjectCleanupTask struct {
	baseTask
	keys    []string
	deleter ObjectDeleter
	logger  *slog.Logger
}

// ObjectCleanupFactory returns a Factory for TaskTypeObjectCleanup.
func ObjectCleanupFactory(deleter ObjectDeleter, logger *slog.Logger) (Factory, error) {
	if deleter == nil {
		return nil, ErrNilDeleter
	}
	if logger == nil {
		return nil, ErrNilLogger
	}
	logger = logger.With(slog.String("component", "object_cleanup_task"))

	return func(id uuid.UUID, payload []byte) (Task, error) {
		var p ObjectCleanupPayload
		if err := json.Unmarshal(payload, &p); err != nil {
			return nil, fmt.Errorf("invalid object cleanup payload: %w", err)
		}
		return &ObjectCleanupTask{
			baseTask: baseTask{
				id:       id,
				taskType: TaskTypeObjectCleanup,
				payload:  payload,
				status:   TaskStatusPending,
			},
			keys:    p.Keys,
			deleter: deleter,
			logger:  logger,
		}, nil
	}, nil
}

// Execute implements Task. Every key is attempted; failures are joined.
func (t *ObjectCleanupTask) Execute(ctx context.Context) error {
	log := logger.FromContextOrDefault(ctx, t.logger)

	var errs []error
	for _, key := range t.keys {
		if err := ctx.Err(); err != nil {
			errs = append(errs, err)
			break
		}
		if err := t.deleter.Delete(ctx, key); err != nil {
			log.Warn("failed to delete object", slog.String("key", key), slog.String("error", err.Error()))
			errs = append(errs, fmt.Errorf("delete %s: %w", key, err))
		}
	}

	if len(errs) > 0 {
		return errors.Join(errs...)
	}
	log.Debug("objects deleted", slog.Int("count", len(t.keys)))
	return nil
}
