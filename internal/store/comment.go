package store

import (
	"context"
	"database/sql"

	"github.com/google/uuid"

	"github.com/fithub/fithub-api/internal/domain"
)

// CommentStore defines persistence for comments.
type CommentStore interface {
	Create(ctx context.Context, comment *domain.Comment) error

	// GetByID returns ErrCommentNotFound if the comment does not exist.
	GetByID(ctx context.Context, id uuid.UUID) (*domain.Comment, error)

	// UpdateBody changes the text of a comment.
	UpdateBody(ctx context.Context, id uuid.UUID, body string) error

	Delete(ctx context.Context, id uuid.UUID) error

	// ListByContent returns comments oldest first, starting after the
	// comment with id after (uuid.Nil for the first page).
	ListByContent(ctx context.Context, contentID, after uuid.UUID, limit int) ([]*domain.Comment, error)

	// WithTx returns a new CommentStore instance that uses the provided transaction.
	WithTx(tx *sql.Tx) CommentStore
}
