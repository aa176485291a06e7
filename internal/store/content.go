package store

import (
	"context"
	"database/sql"

	"github.com/google/uuid"

	"github.com/fithub/fithub-api/internal/domain"
)

// SortOrder selects the ordering used by list queries.
type SortOrder string

const (
	// SortLatest orders by creation time, newest first.
	SortLatest SortOrder = "latest"
	// SortPopular orders by like count, most liked first.
	SortPopular SortOrder = "popular"
)

// ContentQuery describes one page of a content listing.
//
// After is the id of the last item of the previous page; uuid.Nil starts at
// the beginning. Ties are broken by id so pages never overlap.
type ContentQuery struct {
	Kind       domain.ContentKind
	CategoryID int64
	AuthorID   uuid.UUID
	SavedBy    uuid.UUID
	Sort       SortOrder
	After      uuid.UUID
	Limit      int
}

// ContentStore defines persistence for articles and records.
// Returned contents never include Assets; those come from AssetStore.
type ContentStore interface {
	// Create inserts the content row and its hashtags.
	Create(ctx context.Context, content *domain.Content) error

	// GetByID returns ErrContentNotFound if the content does not exist.
	GetByID(ctx context.Context, id uuid.UUID) (*domain.Content, error)

	// GetByIDs returns the contents that exist, in no particular order.
	GetByIDs(ctx context.Context, ids []uuid.UUID) ([]*domain.Content, error)

	// Update replaces the mutable fields and hashtags.
	Update(ctx context.Context, content *domain.Content) error

	// Delete removes the content. Assets, joins and comments cascade.
	Delete(ctx context.Context, id uuid.UUID) error

	// List returns one page of contents matching q.
	List(ctx context.Context, q ContentQuery) ([]*domain.Content, error)

	// AdjustCommentCount adds delta to the comment counter, flooring at zero.
	AdjustCommentCount(ctx context.Context, id uuid.UUID, delta int64) error

	// InsertReport records that userID reported a content. Returns
	// ErrAlreadyReported for a repeated report and ErrContentNotFound when
	// the content is gone.
	InsertReport(ctx context.Context, contentID, userID uuid.UUID) error

	// AdjustReportCount adds delta to the report counter, flooring at zero,
	// and returns the new value.
	AdjustReportCount(ctx context.Context, id uuid.UUID, delta int64) (int64, error)

	// CategoryExists reports whether a category id is known.
	CategoryExists(ctx context.Context, id int64) (bool, error)

	// ListCategories returns every category ordered by id.
	ListCategories(ctx context.Context) ([]domain.Category, error)

	// WithTx returns a new ContentStore instance that uses the provided transaction.
	WithTx(tx *sql.Tx) ContentStore
}
