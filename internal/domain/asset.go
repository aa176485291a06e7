package domain

import (
	"time"

	"github.com/google/uuid"
)

// Asset is an uploaded image attached to a Content. It only exists for
// uploads that succeeded.
type Asset struct {
	ID         uuid.UUID `json:"id"`
	ContentID  uuid.UUID `json:"content_id"`
	StorageKey string    `json:"-"`
	URL        string    `json:"url"`
	// ThumbnailURL is empty when no thumbnail was stored for the image.
	ThumbnailURL string    `json:"thumbnail_url,omitempty"`
	Position     int       `json:"position"`
	CreatedAt    time.Time `json:"created_at"`
}

// Validate checks the asset references a content and a stored object.
func (a *Asset) Validate() error {
	if a.ID == uuid.Nil {
		return NewValidationError("id", "cannot be empty", ErrInvalidID)
	}
	if a.ContentID == uuid.Nil {
		return NewValidationError("content_id", "cannot be empty", ErrInvalidID)
	}
	if a.StorageKey == "" {
		return NewValidationError("storage_key", "cannot be empty", ErrValidation)
	}
	if a.URL == "" {
		return NewValidationError("url", "cannot be empty", ErrValidation)
	}
	if a.Position < 0 {
		return NewValidationError("position", "cannot be negative", ErrValidation)
	}
	return nil
}

// StorageKeys returns the object keys of assets in order.
func StorageKeys(assets []*Asset) []string {
	keys := make([]string, 0, len(assets))
	for _, a := range assets {
		keys = append(keys, a.StorageKey)
	}
	return keys
}
