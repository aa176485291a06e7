package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"

	"github.com/google/uuid"

	"github.com/fithub/fithub-api/internal/domain"
	"github.com/fithub/fithub-api/internal/store"
)

// relationTable maps a relation to its join table and the counter it feeds.
type relationTable struct {
	join     string // join table
	joinKey  string // join column referencing the target
	target   string // target table
	counter  string // counter column on the target
	notFound error
}

var relationTables = map[domain.Relation]relationTable{
	domain.RelationLike: {
		join: "content_likes", joinKey: "content_id",
		target: "contents", counter: "like_count", notFound: store.ErrContentNotFound,
	},
	domain.RelationSave: {
		join: "content_saves", joinKey: "content_id",
		target: "contents", counter: "save_count", notFound: store.ErrContentNotFound,
	},
	domain.RelationCommentLike: {
		join: "comment_likes", joinKey: "comment_id",
		target: "comments", counter: "like_count", notFound: store.ErrCommentNotFound,
	},
}

func tableFor(r domain.Relation) (relationTable, error) {
	t, ok := relationTables[r]
	if !ok {
		return relationTable{}, domain.NewValidationError("relation", fmt.Sprintf("unknown relation %q", r), domain.ErrInvalidRelation)
	}
	return t, nil
}

// PostgresToggleStore implements the store.ToggleStore interface.
type PostgresToggleStore struct {
	db     store.DBTX
	logger *slog.Logger
}

// NewPostgresToggleStore creates a new PostgreSQL implementation of the ToggleStore interface.
// If logger is nil, a default logger will be used.
func NewPostgresToggleStore(db store.DBTX, logger *slog.Logger) *PostgresToggleStore {
	if db == nil {
		panic("db cannot be nil")
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &PostgresToggleStore{
		db:     db,
		logger: logger.With(slog.String("component", "toggle_store")),
	}
}

var _ store.ToggleStore = (*PostgresToggleStore)(nil)

// WithTx implements store.ToggleStore.WithTx
func (s *PostgresToggleStore) WithTx(tx *sql.Tx) store.ToggleStore {
	return &PostgresToggleStore{db: tx, logger: s.logger}
}

// TargetExists implements store.ToggleStore.TargetExists. It takes no row lock
// on the target so toggles from different users stay parallel.
func (s *PostgresToggleStore) TargetExists(ctx context.Context, relation domain.Relation, targetID uuid.UUID) (bool, error) {
	t, err := tableFor(relation)
	if err != nil {
		return false, err
	}
	var exists bool
	err = s.db.QueryRowContext(ctx,
		`SELECT EXISTS(SELECT 1 FROM `+t.target+` WHERE id = $1)`, targetID).Scan(&exists)
	if err != nil {
		return false, MapError(err)
	}
	return exists, nil
}

// Lock implements store.ToggleStore.Lock with a transaction-scoped advisory lock.
func (s *PostgresToggleStore) Lock(ctx context.Context, key domain.ToggleKey) error {
	_, err := s.db.ExecContext(ctx,
		`SELECT pg_advisory_xact_lock(hashtextextended($1, 0))`, key.String())
	return MapError(err)
}

// Exists implements store.ToggleStore.Exists
func (s *PostgresToggleStore) Exists(ctx context.Context, key domain.ToggleKey) (bool, error) {
	t, err := tableFor(key.Relation)
	if err != nil {
		return false, err
	}
	var exists bool
	err = s.db.QueryRowContext(ctx,
		`SELECT EXISTS(SELECT 1 FROM `+t.join+` WHERE `+t.joinKey+` = $1 AND user_id = $2)`,
		key.TargetID, key.UserID).Scan(&exists)
	if err != nil {
		return false, MapError(err)
	}
	return exists, nil
}

// Insert implements store.ToggleStore.Insert
func (s *PostgresToggleStore) Insert(ctx context.Context, key domain.ToggleKey) error {
	t, err := tableFor(key.Relation)
	if err != nil {
		return err
	}
	_, err = s.db.ExecContext(ctx,
		`INSERT INTO `+t.join+` (`+t.joinKey+`, user_id) VALUES ($1, $2)`,
		key.TargetID, key.UserID)
	switch {
	case err == nil:
		return nil
	case IsForeignKeyViolation(err):
		return fmt.Errorf("%w: %v", t.notFound, err)
	default:
		return MapError(err)
	}
}

// Delete implements store.ToggleStore.Delete
func (s *PostgresToggleStore) Delete(ctx context.Context, key domain.ToggleKey) (bool, error) {
	t, err := tableFor(key.Relation)
	if err != nil {
		return false, err
	}
	result, err := s.db.ExecContext(ctx,
		`DELETE FROM `+t.join+` WHERE `+t.joinKey+` = $1 AND user_id = $2`,
		key.TargetID, key.UserID)
	if err != nil {
		return false, MapError(err)
	}
	n, err := result.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("failed to get rows affected: %w", err)
	}
	return n > 0, nil
}

// AdjustCount implements store.ToggleStore.AdjustCount
func (s *PostgresToggleStore) AdjustCount(ctx context.Context, relation domain.Relation, targetID uuid.UUID, delta int64) (int64, error) {
	t, err := tableFor(relation)
	if err != nil {
		return 0, err
	}
	var count int64
	err = s.db.QueryRowContext(ctx,
		`UPDATE `+t.target+` SET `+t.counter+` = GREATEST(`+t.counter+` + $1, 0)
		WHERE id = $2 RETURNING `+t.counter,
		delta, targetID).Scan(&count)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return 0, t.notFound
		}
		return 0, MapError(err)
	}
	return count, nil
}

// ActiveFor implements store.ToggleStore.ActiveFor
func (s *PostgresToggleStore) ActiveFor(ctx context.Context, relation domain.Relation, userID uuid.UUID, targetIDs []uuid.UUID) (map[uuid.UUID]bool, error) {
	t, err := tableFor(relation)
	if err != nil {
		return nil, err
	}
	active := make(map[uuid.UUID]bool, len(targetIDs))
	if len(targetIDs) == 0 {
		return active, nil
	}

	rows, err := s.db.QueryContext(ctx,
		`SELECT `+t.joinKey+` FROM `+t.join+` WHERE user_id = $1 AND `+t.joinKey+` = ANY($2::uuid[])`,
		userID, uuidStrings(targetIDs))
	if err != nil {
		return nil, MapError(err)
	}
	defer func() { _ = rows.Close() }()

	for rows.Next() {
		var id uuid.UUID
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("failed to scan %s row: %w", t.join, err)
		}
		active[id] = true
	}
	return active, rows.Err()
}
