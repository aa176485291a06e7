package store

import (
	"context"
	"database/sql"

	"github.com/google/uuid"

	"github.com/fithub/fithub-api/internal/domain"
)

// AssetStore defines persistence for images attached to content.
type AssetStore interface {
	// CreateBatch inserts assets in one statement.
	CreateBatch(ctx context.Context, assets []*domain.Asset) error

	// ListByContent returns the assets of each content id ordered by position.
	ListByContent(ctx context.Context, contentIDs ...uuid.UUID) (map[uuid.UUID][]*domain.Asset, error)

	// DeleteByIDs removes the given assets.
	DeleteByIDs(ctx context.Context, ids []uuid.UUID) error

	// Reposition rewrites positions to match the order of ids.
	Reposition(ctx context.Context, ids []uuid.UUID) error

	// WithTx returns a new AssetStore instance that uses the provided transaction.
	WithTx(tx *sql.Tx) AssetStore
}
