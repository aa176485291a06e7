package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/fithub/fithub-api/internal/domain"
	"github.com/fithub/fithub-api/internal/platform/logger"
	"github.com/fithub/fithub-api/internal/store"
)

// PostgresCommentStore implements the store.CommentStore interface.
type PostgresCommentStore struct {
	db     store.DBTX
	logger *slog.Logger
}

// NewPostgresCommentStore creates a new PostgreSQL implementation of the CommentStore interface.
// If logger is nil, a default logger will be used.
func NewPostgresCommentStore(db store.DBTX, logger *slog.Logger) *PostgresCommentStore {
	if db == nil {
		panic("db cannot be nil")
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &PostgresCommentStore{
		db:     db,
		logger: logger.With(slog.String("component", "comment_store")),
	}
}

var _ store.CommentStore = (*PostgresCommentStore)(nil)

// WithTx implements store.CommentStore.WithTx
func (s *PostgresCommentStore) WithTx(tx *sql.Tx) store.CommentStore {
	return &PostgresCommentStore{db: tx, logger: s.logger}
}

// Create implements store.CommentStore.Create
func (s *PostgresCommentStore) Create(ctx context.Context, comment *domain.Comment) error {
	if err := comment.Validate(); err != nil {
		return err
	}
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO comments (id, content_id, user_id, body, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6)
	`,
		comment.ID,
		comment.ContentID,
		comment.UserID,
		comment.Body,
		comment.CreatedAt,
		comment.UpdatedAt,
	)
	if err != nil {
		logger.FromContextOrDefault(ctx, s.logger).Error("failed to create comment",
			slog.String("content_id", comment.ContentID.String()),
			slog.String("error", err.Error()))
		if IsForeignKeyViolation(err) {
			return fmt.Errorf("%w: %v", store.ErrContentNotFound, err)
		}
		return MapError(err)
	}
	return nil
}

const commentColumns = `id, content_id, user_id, body, like_count, created_at, updated_at`

func scanComment(row interface{ Scan(...any) error }) (*domain.Comment, error) {
	var c domain.Comment
	if err := row.Scan(&c.ID, &c.ContentID, &c.UserID, &c.Body, &c.LikeCount, &c.CreatedAt, &c.UpdatedAt); err != nil {
		return nil, err
	}
	return &c, nil
}

// GetByID implements store.CommentStore.GetByID
func (s *PostgresCommentStore) GetByID(ctx context.Context, id uuid.UUID) (*domain.Comment, error) {
	c, err := scanComment(s.db.QueryRowContext(ctx,
		`SELECT `+commentColumns+` FROM comments WHERE id = $1`, id))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, store.ErrCommentNotFound
		}
		return nil, MapError(err)
	}
	return c, nil
}

// UpdateBody implements store.CommentStore.UpdateBody
func (s *PostgresCommentStore) UpdateBody(ctx context.Context, id uuid.UUID, body string) error {
	result, err := s.db.ExecContext(ctx,
		`UPDATE comments SET body = $1, updated_at = $2 WHERE id = $3`,
		body, time.Now().UTC(), id)
	if err != nil {
		return MapError(err)
	}
	return CheckRowsAffected(result, store.ErrCommentNotFound)
}

// Delete implements store.CommentStore.Delete
func (s *PostgresCommentStore) Delete(ctx context.Context, id uuid.UUID) error {
	result, err := s.db.ExecContext(ctx, `DELETE FROM comments WHERE id = $1`, id)
	if err != nil {
		return MapError(err)
	}
	return CheckRowsAffected(result, store.ErrCommentNotFound)
}

// ListByContent implements store.CommentStore.ListByContent
func (s *PostgresCommentStore) ListByContent(ctx context.Context, contentID, after uuid.UUID, limit int) ([]*domain.Comment, error) {
	var (
		rows *sql.Rows
		err  error
	)
	if after == uuid.Nil {
		rows, err = s.db.QueryContext(ctx, `
			SELECT `+commentColumns+` FROM comments
			WHERE content_id = $1
			ORDER BY created_at, id
			LIMIT $2
		`, contentID, limit)
	} else {
		rows, err = s.db.QueryContext(ctx, `
			SELECT `+commentColumns+` FROM comments
			WHERE content_id = $1
			  AND (created_at, id) > (SELECT created_at, id FROM comments WHERE id = $2)
			ORDER BY created_at, id
			LIMIT $3
		`, contentID, after, limit)
	}
	if err != nil {
		logger.FromContextOrDefault(ctx, s.logger).Error("failed to list comments",
			slog.String("content_id", contentID.String()),
			slog.String("error", err.Error()))
		return nil, MapError(err)
	}
	defer func() { _ = rows.Close() }()

	comments := []*domain.Comment{}
	for rows.Next() {
		c, err := scanComment(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan comment row: %w", err)
		}
		comments = append(comments, c)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating comment rows: %w", err)
	}
	return comments, nil
}
