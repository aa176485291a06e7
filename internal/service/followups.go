package service

import (
	"context"
	"fmt"
	"log/slog"
	"time"
	"unicode/utf8"

	"github.com/google/uuid"

	"github.com/fithub/fithub-api/internal/domain"
	"github.com/fithub/fithub-api/internal/events"
	"github.com/fithub/fithub-api/internal/platform/logger"
	"github.com/fithub/fithub-api/internal/store"
	"github.com/fithub/fithub-api/internal/task"
)

const (
	notificationPreviewLength = 50

	// followUpTimeout bounds saving one follow-up task once it is detached
	// from the request.
	followUpTimeout = 5 * time.Second
)

// followUps emits the background work that trails a committed change.
// Emission failures are logged and never fail the change itself.
type followUps struct {
	emitter events.EventEmitter
	users   store.UserStore
	logger  *slog.Logger
}

// notifyOwner tells the owner of a content that actor interacted with it.
// Acting on your own content notifies nobody.
func (f followUps) notifyOwner(
	reqCtx context.Context,
	actorID uuid.UUID,
	content *domain.Content,
	kind domain.NotificationType,
	comment string,
) {
	if content.UserID == actorID {
		return
	}

	ctx, cancel := detach(reqCtx)
	defer cancel()

	name := f.actorName(ctx, actorID)
	n := domain.Notification{
		RecipientID: content.UserID,
		ActorID:     actorID,
		Type:        kind,
		TargetKind:  content.Kind,
		TargetID:    content.ID,
		CreatedAt:   time.Now().UTC(),
	}
	switch kind {
	case domain.NotificationComment:
		n.Title = "New comment"
		n.Body = fmt.Sprintf("%s commented: %s", name, preview(comment))
	default:
		n.Title = "New like"
		n.Body = fmt.Sprintf("%s liked your %s", name, content.Kind)
	}

	f.emit(ctx, task.TaskTypeNotification, n)
}

// cleanup schedules deletion of stored objects.
func (f followUps) cleanup(reqCtx context.Context, keys []string) {
	if len(keys) == 0 {
		return
	}
	ctx, cancel := detach(reqCtx)
	defer cancel()
	f.emit(ctx, task.TaskTypeObjectCleanup, task.ObjectCleanupPayload{Keys: keys})
}

// detach keeps the request's values but not its cancellation. The change
// is already committed, so a client that went away must not lose the task.
func detach(ctx context.Context) (context.Context, context.CancelFunc) {
	return context.WithTimeout(context.WithoutCancel(ctx), followUpTimeout)
}

func (f followUps) emit(ctx context.Context, taskType string, payload interface{}) {
	log := logger.FromContextOrDefault(ctx, f.logger)

	event, err := events.NewTaskRequestEvent(taskType, payload)
	if err != nil {
		log.Error("failed to build task event",
			slog.String("task_type", taskType),
			slog.String("error", err.Error()))
		return
	}
	if err := f.emitter.EmitEvent(ctx, event); err != nil {
		log.Error("failed to emit task event",
			slog.String("task_type", taskType),
			slog.String("event_id", event.ID.String()),
			slog.String("error", err.Error()))
	}
}

func (f followUps) actorName(ctx context.Context, id uuid.UUID) string {
	u, err := f.users.GetByID(ctx, id)
	if err != nil {
		logger.FromContextOrDefault(ctx, f.logger).Warn("failed to load actor for notification",
			slog.String("user_id", id.String()),
			slog.String("error", err.Error()))
		return "Someone"
	}
	return u.Nickname
}

func preview(s string) string {
	if utf8.RuneCountInString(s) <= notificationPreviewLength {
		return s
	}
	r := []rune(s)
	return string(r[:notificationPreviewLength]) + "..."
}
