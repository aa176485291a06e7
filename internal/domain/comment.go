package domain

import (
	"fmt"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/google/uuid"
)

const maxCommentLength = 1000

// Comment is a reply to a Content.
type Comment struct {
	ID        uuid.UUID `json:"id"`
	ContentID uuid.UUID `json:"content_id"`
	UserID    uuid.UUID `json:"user_id"`
	Body      string    `json:"body"`
	LikeCount int64     `json:"like_count"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// NewComment creates a validated comment.
func NewComment(contentID, userID uuid.UUID, body string) (*Comment, error) {
	now := time.Now().UTC()
	c := &Comment{
		ID:        uuid.New(),
		ContentID: contentID,
		UserID:    userID,
		Body:      strings.TrimSpace(body),
		CreatedAt: now,
		UpdatedAt: now,
	}
	if err := c.Validate(); err != nil {
		return nil, err
	}
	return c, nil
}

// Validate checks field constraints.
func (c *Comment) Validate() error {
	if c.ID == uuid.Nil {
		return NewValidationError("id", "cannot be empty", ErrInvalidID)
	}
	if c.ContentID == uuid.Nil {
		return NewValidationError("content_id", "cannot be empty", ErrInvalidID)
	}
	if c.UserID == uuid.Nil {
		return NewValidationError("user_id", "cannot be empty", ErrEmptyUserID)
	}
	if c.Body == "" {
		return NewValidationError("body", "cannot be empty", ErrEmptyContent)
	}
	if utf8.RuneCountInString(c.Body) > maxCommentLength {
		return NewValidationError("body", fmt.Sprintf("must be at most %d characters", maxCommentLength), ErrValidation)
	}
	return nil
}

// Category is an exercise category used to classify content.
type Category struct {
	ID   int64  `json:"id"`
	Name string `json:"name"`
}
