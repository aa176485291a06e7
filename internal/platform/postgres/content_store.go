package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/fithub/fithub-api/internal/domain"
	"github.com/fithub/fithub-api/internal/platform/logger"
	"github.com/fithub/fithub-api/internal/store"
)

// PostgresContentStore implements the store.ContentStore interface
// using a PostgreSQL database as the storage backend.
type PostgresContentStore struct {
	db     store.DBTX
	logger *slog.Logger
}

// NewPostgresContentStore creates a new PostgreSQL implementation of the ContentStore interface.
// If logger is nil, a default logger will be used.
func NewPostgresContentStore(db store.DBTX, logger *slog.Logger) *PostgresContentStore {
	if db == nil {
		panic("db cannot be nil")
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &PostgresContentStore{
		db:     db,
		logger: logger.With(slog.String("component", "content_store")),
	}
}

// Ensure PostgresContentStore implements store.ContentStore interface
var _ store.ContentStore = (*PostgresContentStore)(nil)

// WithTx implements store.ContentStore.WithTx
func (s *PostgresContentStore) WithTx(tx *sql.Tx) store.ContentStore {
	return &PostgresContentStore{db: tx, logger: s.logger}
}

const contentColumns = `c.id, c.kind, c.user_id, c.category_id, c.title, c.body,
	c.like_count, c.save_count, c.comment_count, c.created_at, c.updated_at`

// Create implements store.ContentStore.Create. Call it inside a transaction
// so the content row and its hashtags land together.
func (s *PostgresContentStore) Create(ctx context.Context, content *domain.Content) error {
	log := logger.FromContextOrDefault(ctx, s.logger)

	if err := content.Validate(); err != nil {
		return err
	}

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO contents (id, kind, user_id, category_id, title, body, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
	`,
		content.ID,
		string(content.Kind),
		content.UserID,
		content.CategoryID,
		content.Title,
		content.Body,
		content.CreatedAt,
		content.UpdatedAt,
	)
	if err != nil {
		log.Error("failed to create content",
			slog.String("content_id", content.ID.String()),
			slog.String("error", err.Error()))
		if IsForeignKeyViolation(err) && strings.Contains(constraintName(err), "category") {
			return fmt.Errorf("%w: %v", store.ErrCategoryNotFound, err)
		}
		return MapError(err)
	}

	if err := s.insertHashTags(ctx, content.ID, content.HashTags); err != nil {
		log.Error("failed to store hashtags",
			slog.String("content_id", content.ID.String()),
			slog.String("error", err.Error()))
		return MapError(err)
	}
	return nil
}

func (s *PostgresContentStore) insertHashTags(ctx context.Context, id uuid.UUID, tags []string) error {
	if len(tags) == 0 {
		return nil
	}
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO content_hashtags (content_id, position, tag)
		SELECT $1, t.ord - 1, t.tag
		FROM unnest($2::text[]) WITH ORDINALITY AS t(tag, ord)
	`, id, tags)
	return err
}

// GetByID implements store.ContentStore.GetByID
func (s *PostgresContentStore) GetByID(ctx context.Context, id uuid.UUID) (*domain.Content, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+contentColumns+` FROM contents c WHERE c.id = $1`, id)
	content, err := scanContent(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, store.ErrContentNotFound
		}
		logger.FromContextOrDefault(ctx, s.logger).Error("failed to get content",
			slog.String("content_id", id.String()),
			slog.String("error", err.Error()))
		return nil, MapError(err)
	}

	if err := s.attachHashTags(ctx, []*domain.Content{content}); err != nil {
		return nil, err
	}
	return content, nil
}

// GetByIDs implements store.ContentStore.GetByIDs
func (s *PostgresContentStore) GetByIDs(ctx context.Context, ids []uuid.UUID) ([]*domain.Content, error) {
	if len(ids) == 0 {
		return []*domain.Content{}, nil
	}
	rows, err := s.db.QueryContext(ctx,
		`SELECT `+contentColumns+` FROM contents c WHERE c.id = ANY($1::uuid[])`,
		uuidStrings(ids))
	if err != nil {
		return nil, MapError(err)
	}
	return s.collect(ctx, rows)
}

// Update implements store.ContentStore.Update
func (s *PostgresContentStore) Update(ctx context.Context, content *domain.Content) error {
	log := logger.FromContextOrDefault(ctx, s.logger)

	if err := content.Validate(); err != nil {
		return err
	}

	result, err := s.db.ExecContext(ctx, `
		UPDATE contents
		SET category_id = $1, title = $2, body = $3, updated_at = $4
		WHERE id = $5
	`,
		content.CategoryID,
		content.Title,
		content.Body,
		content.UpdatedAt,
		content.ID,
	)
	if err != nil {
		log.Error("failed to update content",
			slog.String("content_id", content.ID.String()),
			slog.String("error", err.Error()))
		if IsForeignKeyViolation(err) {
			return fmt.Errorf("%w: %v", store.ErrCategoryNotFound, err)
		}
		return MapError(err)
	}
	if err := CheckRowsAffected(result, store.ErrContentNotFound); err != nil {
		return err
	}

	if _, err := s.db.ExecContext(ctx,
		`DELETE FROM content_hashtags WHERE content_id = $1`, content.ID); err != nil {
		return MapError(err)
	}
	if err := s.insertHashTags(ctx, content.ID, content.HashTags); err != nil {
		return MapError(err)
	}
	return nil
}

// Delete implements store.ContentStore.Delete
func (s *PostgresContentStore) Delete(ctx context.Context, id uuid.UUID) error {
	result, err := s.db.ExecContext(ctx, `DELETE FROM contents WHERE id = $1`, id)
	if err != nil {
		logger.FromContextOrDefault(ctx, s.logger).Error("failed to delete content",
			slog.String("content_id", id.String()),
			slog.String("error", err.Error()))
		return MapError(err)
	}
	return CheckRowsAffected(result, store.ErrContentNotFound)
}

// List implements store.ContentStore.List
func (s *PostgresContentStore) List(ctx context.Context, q store.ContentQuery) ([]*domain.Content, error) {
	query, args := buildListQuery(q)
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		logger.FromContextOrDefault(ctx, s.logger).Error("failed to list contents",
			slog.String("kind", string(q.Kind)),
			slog.String("sort", string(q.Sort)),
			slog.String("error", err.Error()))
		return nil, MapError(err)
	}
	return s.collect(ctx, rows)
}

// buildListQuery renders q as SQL. The cursor compares against the row of
// q.After so equal sort keys are split by id.
func buildListQuery(q store.ContentQuery) (string, []any) {
	var (
		sb    strings.Builder
		args  []any
		where []string
	)
	arg := func(v any) string {
		args = append(args, v)
		return fmt.Sprintf("$%d", len(args))
	}

	sb.WriteString(`SELECT ` + contentColumns + ` FROM contents c`)
	if q.SavedBy != uuid.Nil {
		sb.WriteString(` JOIN content_saves sv ON sv.content_id = c.id AND sv.user_id = ` + arg(q.SavedBy))
	}

	if q.Kind != "" {
		where = append(where, `c.kind = `+arg(string(q.Kind)))
	}
	if q.CategoryID != 0 {
		where = append(where, `c.category_id = `+arg(q.CategoryID))
	}
	if q.AuthorID != uuid.Nil {
		where = append(where, `c.user_id = `+arg(q.AuthorID))
	}

	sortCol := "created_at"
	if q.Sort == store.SortPopular {
		sortCol = "like_count"
	}
	if q.After != uuid.Nil {
		where = append(where, fmt.Sprintf(
			`(c.%[1]s, c.id) < (SELECT %[1]s, id FROM contents WHERE id = %[2]s)`,
			sortCol, arg(q.After)))
	}

	if len(where) > 0 {
		sb.WriteString(` WHERE ` + strings.Join(where, ` AND `))
	}
	fmt.Fprintf(&sb, ` ORDER BY c.%s DESC, c.id DESC LIMIT %s`, sortCol, arg(q.Limit))
	return sb.String(), args
}

func (s *PostgresContentStore) collect(ctx context.Context, rows *sql.Rows) ([]*domain.Content, error) {
	defer func() { _ = rows.Close() }()

	contents := []*domain.Content{}
	for rows.Next() {
		c, err := scanContent(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan content row: %w", err)
		}
		contents = append(contents, c)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating content rows: %w", err)
	}

	if err := s.attachHashTags(ctx, contents); err != nil {
		return nil, err
	}
	return contents, nil
}

func (s *PostgresContentStore) attachHashTags(ctx context.Context, contents []*domain.Content) error {
	if len(contents) == 0 {
		return nil
	}
	byID := make(map[uuid.UUID]*domain.Content, len(contents))
	ids := make([]uuid.UUID, 0, len(contents))
	for _, c := range contents {
		byID[c.ID] = c
		ids = append(ids, c.ID)
	}

	rows, err := s.db.QueryContext(ctx, `
		SELECT content_id, tag FROM content_hashtags
		WHERE content_id = ANY($1::uuid[])
		ORDER BY content_id, position
	`, uuidStrings(ids))
	if err != nil {
		return MapError(err)
	}
	defer func() { _ = rows.Close() }()

	for rows.Next() {
		var (
			id  uuid.UUID
			tag string
		)
		if err := rows.Scan(&id, &tag); err != nil {
			return fmt.Errorf("failed to scan hashtag row: %w", err)
		}
		if c, ok := byID[id]; ok {
			c.HashTags = append(c.HashTags, tag)
		}
	}
	return rows.Err()
}

func scanContent(row interface{ Scan(...any) error }) (*domain.Content, error) {
	var (
		c    domain.Content
		kind string
	)
	if err := row.Scan(
		&c.ID,
		&kind,
		&c.UserID,
		&c.CategoryID,
		&c.Title,
		&c.Body,
		&c.LikeCount,
		&c.SaveCount,
		&c.CommentCount,
		&c.CreatedAt,
		&c.UpdatedAt,
	); err != nil {
		return nil, err
	}
	c.Kind = domain.ContentKind(kind)
	c.Assets = []*domain.Asset{}
	return &c, nil
}

// AdjustCommentCount implements store.ContentStore.AdjustCommentCount
func (s *PostgresContentStore) AdjustCommentCount(ctx context.Context, id uuid.UUID, delta int64) error {
	result, err := s.db.ExecContext(ctx,
		`UPDATE contents SET comment_count = GREATEST(comment_count + $1, 0) WHERE id = $2`,
		delta, id)
	if err != nil {
		return MapError(err)
	}
	return CheckRowsAffected(result, store.ErrContentNotFound)
}

// InsertReport implements store.ContentStore.InsertReport
func (s *PostgresContentStore) InsertReport(ctx context.Context, contentID, userID uuid.UUID) error {
	result, err := s.db.ExecContext(ctx, `
		INSERT INTO content_reports (content_id, user_id, created_at)
		VALUES ($1, $2, $3)
		ON CONFLICT (content_id, user_id) DO NOTHING
	`, contentID, userID, time.Now().UTC())
	if err != nil {
		if IsForeignKeyViolation(err) {
			return fmt.Errorf("%w: %v", store.ErrContentNotFound, err)
		}
		return MapError(err)
	}
	return CheckRowsAffected(result, store.ErrAlreadyReported)
}

// AdjustReportCount implements store.ContentStore.AdjustReportCount
func (s *PostgresContentStore) AdjustReportCount(ctx context.Context, id uuid.UUID, delta int64) (int64, error) {
	var count int64
	err := s.db.QueryRowContext(ctx,
		`UPDATE contents SET report_count = GREATEST(report_count + $1, 0) WHERE id = $2 RETURNING report_count`,
		delta, id).Scan(&count)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return 0, store.ErrContentNotFound
		}
		return 0, MapError(err)
	}
	return count, nil
}

// CategoryExists implements store.ContentStore.CategoryExists
func (s *PostgresContentStore) CategoryExists(ctx context.Context, id int64) (bool, error) {
	var exists bool
	err := s.db.QueryRowContext(ctx,
		`SELECT EXISTS(SELECT 1 FROM categories WHERE id = $1)`, id).Scan(&exists)
	if err != nil {
		return false, MapError(err)
	}
	return exists, nil
}

// ListCategories implements store.ContentStore.ListCategories
func (s *PostgresContentStore) ListCategories(ctx context.Context) ([]domain.Category, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT id, name FROM categories ORDER BY id`)
	if err != nil {
		return nil, MapError(err)
	}
	defer func() { _ = rows.Close() }()

	categories := []domain.Category{}
	for rows.Next() {
		var c domain.Category
		if err := rows.Scan(&c.ID, &c.Name); err != nil {
			return nil, fmt.Errorf("failed to scan category row: %w", err)
		}
		categories = append(categories, c)
	}
	return categories, rows.Err()
}

func uuidStrings(ids []uuid.UUID) []string {
	out := make([]string, len(ids))
	for i, id := range ids {
		out[i] = id.String()
	}
	return out
}
