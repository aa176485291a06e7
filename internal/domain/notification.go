package domain

import (
	"time"

	"github.com/google/uuid"
)

// NotificationType names the interaction that produced a notification.
type NotificationType string

const (
	NotificationLike    NotificationType = "like"
	NotificationComment NotificationType = "comment"
)

// Notification is published for downstream push delivery.
type Notification struct {
	ID          uuid.UUID        `json:"id"`
	RecipientID uuid.UUID        `json:"recipient_id"`
	ActorID     uuid.UUID        `json:"actor_id"`
	Type        NotificationType `json:"type"`
	TargetKind  ContentKind      `json:"target_kind"`
	TargetID    uuid.UUID        `json:"target_id"`
	Title       string           `json:"title"`
	Body        string           `json:"body"`
	PushToken   string           `json:"push_token,omitempty"`
	CreatedAt   time.Time        `json:"created_at"`
}
