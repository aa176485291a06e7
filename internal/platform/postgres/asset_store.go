package postgres

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"strings"

	"github.com/google/uuid"

	"github.com/fithub/fithub-api/internal/domain"
	"github.com/fithub/fithub-api/internal/platform/logger"
	"github.com/fithub/fithub-api/internal/store"
)

// PostgresAssetStore implements the store.AssetStore interface.
type PostgresAssetStore struct {
	db     store.DBTX
	logger *slog.Logger
}

// NewPostgresAssetStore creates a new PostgreSQL implementation of the AssetStore interface.
// If logger is nil, a default logger will be used.
func NewPostgresAssetStore(db store.DBTX, logger *slog.Logger) *PostgresAssetStore {
	if db == nil {
		panic("db cannot be nil")
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &PostgresAssetStore{
		db:     db,
		logger: logger.With(slog.String("component", "asset_store")),
	}
}

var _ store.AssetStore = (*PostgresAssetStore)(nil)

// WithTx implements store.AssetStore.WithTx
func (s *PostgresAssetStore) WithTx(tx *sql.Tx) store.AssetStore {
	return &PostgresAssetStore{db: tx, logger: s.logger}
}

// CreateBatch implements store.AssetStore.CreateBatch
func (s *PostgresAssetStore) CreateBatch(ctx context.Context, assets []*domain.Asset) error {
	if len(assets) == 0 {
		return nil
	}

	var sb strings.Builder
	sb.WriteString(`INSERT INTO assets (id, content_id, storage_key, url, thumbnail_url, position, created_at) VALUES `)
	args := make([]any, 0, len(assets)*7)
	for i, a := range assets {
		if err := a.Validate(); err != nil {
			return err
		}
		if i > 0 {
			sb.WriteString(", ")
		}
		n := i * 7
		fmt.Fprintf(&sb, "($%d, $%d, $%d, $%d, $%d, $%d, $%d)", n+1, n+2, n+3, n+4, n+5, n+6, n+7)
		args = append(args, a.ID, a.ContentID, a.StorageKey, a.URL, a.ThumbnailURL, a.Position, a.CreatedAt)
	}

	if _, err := s.db.ExecContext(ctx, sb.String(), args...); err != nil {
		logger.FromContextOrDefault(ctx, s.logger).Error("failed to create assets",
			slog.Int("count", len(assets)),
			slog.String("error", err.Error()))
		if IsForeignKeyViolation(err) {
			return fmt.Errorf("%w: %v", store.ErrContentNotFound, err)
		}
		return MapError(err)
	}
	return nil
}

// ListByContent implements store.AssetStore.ListByContent
func (s *PostgresAssetStore) ListByContent(ctx context.Context, contentIDs ...uuid.UUID) (map[uuid.UUID][]*domain.Asset, error) {
	out := make(map[uuid.UUID][]*domain.Asset, len(contentIDs))
	if len(contentIDs) == 0 {
		return out, nil
	}

	rows, err := s.db.QueryContext(ctx, `
		SELECT id, content_id, storage_key, url, thumbnail_url, position, created_at
		FROM assets
		WHERE content_id = ANY($1::uuid[])
		ORDER BY content_id, position
	`, uuidStrings(contentIDs))
	if err != nil {
		return nil, MapError(err)
	}
	defer func() { _ = rows.Close() }()

	for rows.Next() {
		var a domain.Asset
		if err := rows.Scan(&a.ID, &a.ContentID, &a.StorageKey, &a.URL, &a.ThumbnailURL, &a.Position, &a.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan asset row: %w", err)
		}
		out[a.ContentID] = append(out[a.ContentID], &a)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating asset rows: %w", err)
	}
	return out, nil
}

// DeleteByIDs implements store.AssetStore.DeleteByIDs
func (s *PostgresAssetStore) DeleteByIDs(ctx context.Context, ids []uuid.UUID) error {
	if len(ids) == 0 {
		return nil
	}
	if _, err := s.db.ExecContext(ctx,
		`DELETE FROM assets WHERE id = ANY($1::uuid[])`, uuidStrings(ids)); err != nil {
		return MapError(err)
	}
	return nil
}

// Reposition implements store.AssetStore.Reposition
func (s *PostgresAssetStore) Reposition(ctx context.Context, ids []uuid.UUID) error {
	if len(ids) == 0 {
		return nil
	}
	_, err := s.db.ExecContext(ctx, `
		UPDATE assets a SET position = t.ord - 1
		FROM unnest($1::uuid[]) WITH ORDINALITY AS t(id, ord)
		WHERE a.id = t.id
	`, uuidStrings(ids))
	return MapError(err)
}
