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

// PostgresUserStore implements the store.UserStore interface
// using a PostgreSQL database as the storage backend.
type PostgresUserStore struct {
	db     store.DBTX
	logger *slog.Logger
}

// NewPostgresUserStore creates a new PostgreSQL implementation of the UserStore interface.
// It accepts a database connection or transaction managed by the caller.
// If logger is nil, a default logger will be used.
func NewPostgresUserStore(db store.DBTX, logger *slog.Logger) *PostgresUserStore {
	if db == nil {
		panic("db cannot be nil")
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &PostgresUserStore{
		db:     db,
		logger: logger.With(slog.String("component", "user_store")),
	}
}

// Ensure PostgresUserStore implements store.UserStore interface
var _ store.UserStore = (*PostgresUserStore)(nil)

// WithTx implements store.UserStore.WithTx
func (s *PostgresUserStore) WithTx(tx *sql.Tx) store.UserStore {
	return &PostgresUserStore{db: tx, logger: s.logger}
}

// Create implements store.UserStore.Create
func (s *PostgresUserStore) Create(ctx context.Context, user *domain.User) error {
	log := logger.FromContextOrDefault(ctx, s.logger)

	if user.HashedPassword == "" {
		return domain.NewValidationError("hashed_password", "cannot be empty", domain.ErrEmptyPassword)
	}

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO users (id, phone, nickname, hashed_password, push_token, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
	`,
		user.ID,
		user.Phone,
		user.Nickname,
		user.HashedPassword,
		user.PushToken,
		user.CreatedAt,
		user.UpdatedAt,
	)
	if err != nil {
		if IsUniqueViolation(err) {
			switch constraintName(err) {
			case usersPhoneKey:
				return MapUniqueViolation(err, store.ErrPhoneExists)
			case usersNicknameKey:
				return MapUniqueViolation(err, store.ErrNicknameExists)
			}
		}
		log.Error("failed to create user",
			slog.String("user_id", user.ID.String()),
			slog.String("error", err.Error()))
		return MapError(err)
	}

	log.Debug("user created", slog.String("user_id", user.ID.String()))
	return nil
}

const userColumns = `id, phone, nickname, hashed_password, push_token, created_at, updated_at`

func scanUser(row interface{ Scan(...any) error }) (*domain.User, error) {
	var u domain.User
	if err := row.Scan(
		&u.ID,
		&u.Phone,
		&u.Nickname,
		&u.HashedPassword,
		&u.PushToken,
		&u.CreatedAt,
		&u.UpdatedAt,
	); err != nil {
		return nil, err
	}
	return &u, nil
}

// GetByID implements store.UserStore.GetByID
func (s *PostgresUserStore) GetByID(ctx context.Context, id uuid.UUID) (*domain.User, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+userColumns+` FROM users WHERE id = $1`, id)
	return s.getOne(ctx, row, slog.String("user_id", id.String()))
}

// GetByPhone implements store.UserStore.GetByPhone
func (s *PostgresUserStore) GetByPhone(ctx context.Context, phone string) (*domain.User, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+userColumns+` FROM users WHERE phone = $1`,
		domain.NormalizePhone(phone))
	return s.getOne(ctx, row, slog.String("lookup", "phone"))
}

func (s *PostgresUserStore) getOne(ctx context.Context, row *sql.Row, attr slog.Attr) (*domain.User, error) {
	user, err := scanUser(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, store.ErrUserNotFound
		}
		logger.FromContextOrDefault(ctx, s.logger).Error("failed to get user",
			attr, slog.String("error", err.Error()))
		return nil, MapError(err)
	}
	return user, nil
}

// NicknameExists implements store.UserStore.NicknameExists
func (s *PostgresUserStore) NicknameExists(ctx context.Context, nickname string) (bool, error) {
	var exists bool
	err := s.db.QueryRowContext(ctx,
		`SELECT EXISTS(SELECT 1 FROM users WHERE nickname = $1)`, nickname).Scan(&exists)
	if err != nil {
		return false, MapError(err)
	}
	return exists, nil
}

// UpdatePushToken implements store.UserStore.UpdatePushToken
func (s *PostgresUserStore) UpdatePushToken(ctx context.Context, id uuid.UUID, token string) error {
	result, err := s.db.ExecContext(ctx,
		`UPDATE users SET push_token = $1, updated_at = $2 WHERE id = $3`,
		token, time.Now().UTC(), id)
	if err != nil {
		logger.FromContextOrDefault(ctx, s.logger).Error("failed to update push token",
			slog.String("user_id", id.String()),
			slog.String("error", err.Error()))
		return MapError(err)
	}
	return CheckRowsAffected(result, store.ErrUserNotFound)
}

// UpdatePassword implements store.UserStore.UpdatePassword
func (s *PostgresUserStore) UpdatePassword(ctx context.Context, id uuid.UUID, hashedPassword string) error {
	if hashedPassword == "" {
		return domain.NewValidationError("hashed_password", "cannot be empty", domain.ErrEmptyPassword)
	}
	result, err := s.db.ExecContext(ctx,
		`UPDATE users SET hashed_password = $1, updated_at = $2 WHERE id = $3`,
		hashedPassword, time.Now().UTC(), id)
	if err != nil {
		logger.FromContextOrDefault(ctx, s.logger).Error("failed to update password",
			slog.String("user_id", id.String()),
			slog.String("error", err.Error()))
		return MapError(err)
	}
	return CheckRowsAffected(result, store.ErrUserNotFound)
}

// ListExercises implements store.UserStore.ListExercises
func (s *PostgresUserStore) ListExercises(ctx context.Context, userID uuid.UUID) ([]domain.UserExercise, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT ue.category_id, c.name, ue.is_main
		FROM user_exercises ue
		JOIN categories c ON c.id = ue.category_id
		WHERE ue.user_id = $1
		ORDER BY ue.category_id
	`, userID)
	if err != nil {
		return nil, MapError(err)
	}
	defer func() { _ = rows.Close() }()

	exercises := []domain.UserExercise{}
	for rows.Next() {
		var e domain.UserExercise
		if err := rows.Scan(&e.CategoryID, &e.Name, &e.Main); err != nil {
			return nil, fmt.Errorf("failed to scan exercise row: %w", err)
		}
		exercises = append(exercises, e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating exercise rows: %w", err)
	}
	return exercises, nil
}

// ReplaceExercises implements store.UserStore.ReplaceExercises. The delete
// and insert should share a transaction.
func (s *PostgresUserStore) ReplaceExercises(ctx context.Context, userID uuid.UUID, categoryIDs []int64, mainID int64) error {
	if _, err := s.db.ExecContext(ctx, `DELETE FROM user_exercises WHERE user_id = $1`, userID); err != nil {
		return MapError(err)
	}
	if len(categoryIDs) == 0 {
		return nil
	}

	var sb strings.Builder
	sb.WriteString(`INSERT INTO user_exercises (user_id, category_id, is_main) VALUES `)
	args := make([]any, 0, len(categoryIDs)*3)
	for i, id := range categoryIDs {
		if i > 0 {
			sb.WriteString(", ")
		}
		n := i * 3
		fmt.Fprintf(&sb, "($%d, $%d, $%d)", n+1, n+2, n+3)
		args = append(args, userID, id, id == mainID)
	}

	if _, err := s.db.ExecContext(ctx, sb.String(), args...); err != nil {
		if IsForeignKeyViolation(err) {
			if constraintName(err) == userExercisesUserFKey {
				return fmt.Errorf("%w: %v", store.ErrUserNotFound, err)
			}
			return fmt.Errorf("%w: %v", store.ErrCategoryNotFound, err)
		}
		logger.FromContextOrDefault(ctx, s.logger).Error("failed to save exercises",
			slog.String("user_id", userID.String()),
			slog.String("error", err.Error()))
		return MapError(err)
	}
	return nil
}

// SetMainExercise implements store.UserStore.SetMainExercise. The previous
// main exercise is cleared before the new one is set so the one-main index
// never sees two; run it inside a transaction.
func (s *PostgresUserStore) SetMainExercise(ctx context.Context, userID uuid.UUID, categoryID int64) error {
	var exists bool
	if err := s.db.QueryRowContext(ctx,
		`SELECT EXISTS(SELECT 1 FROM user_exercises WHERE user_id = $1 AND category_id = $2)`,
		userID, categoryID).Scan(&exists); err != nil {
		return MapError(err)
	}
	if !exists {
		return store.ErrExerciseNotFound
	}

	if _, err := s.db.ExecContext(ctx,
		`UPDATE user_exercises SET is_main = FALSE WHERE user_id = $1 AND is_main AND category_id <> $2`,
		userID, categoryID); err != nil {
		return MapError(err)
	}
	result, err := s.db.ExecContext(ctx,
		`UPDATE user_exercises SET is_main = TRUE WHERE user_id = $1 AND category_id = $2`,
		userID, categoryID)
	if err != nil {
		return MapError(err)
	}
	return CheckRowsAffected(result, store.ErrExerciseNotFound)
}
