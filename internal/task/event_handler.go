package task

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/fithub/fithub-api/internal/events"
)

// Submitter accepts tasks for background execution. *TaskRunner implements it.
type Submitter interface {
	Submit(ctx context.Context, task Task) error
}

// TaskFactoryEventHandler implements the events.EventHandler interface.
// It builds a task for every event whose type is registered and submits it.
// The event id becomes the task id.
type TaskFactoryEventHandler struct {
	registry *Registry
	runner   Submitter
	logger   *slog.Logger
}

// NewTaskFactoryEventHandler creates a new event handler that uses registry
// to create tasks and submits them to runner.
func NewTaskFactoryEventHandler(registry *Registry, runner Submitter, logger *slog.Logger) *TaskFactoryEventHandler {
	return &TaskFactoryEventHandler{
		registry: registry,
		runner:   runner,
		logger:   logger.With("component", "task_factory_event_handler"),
	}
}

// HandleEvent processes events by creating and submitting tasks.
func (h *TaskFactoryEventHandler) HandleEvent(ctx context.Context, event *events.TaskRequestEvent) error {
	if !h.registry.Has(event.Type) {
		h.logger.Debug("ignoring event with unsupported type",
			"event_type", event.Type,
			"event_id", event.ID)
		return nil
	}

	task, err := h.registry.Build(event.ID, event.Type, event.Payload)
	if err != nil {
		h.logger.Error("failed to create task",
			"error", err,
			"event_type", event.Type,
			"event_id", event.ID)
		return fmt.Errorf("failed to create task: %w", err)
	}

	if err := h.runner.Submit(ctx, task); err != nil {
		h.logger.Error("failed to submit task",
			"error", err,
			"task_id", task.ID(),
			"event_id", event.ID)
		return fmt.Errorf("failed to submit task: %w", err)
	}

	h.logger.Debug("task created and submitted",
		"task_id", task.ID(),
		"task_type", task.Type())
	return nil
}

// Ensure TaskFactoryEventHandler implements events.EventHandler
var _ events.EventHandler = (*TaskFactoryEventHandler)(nil)
