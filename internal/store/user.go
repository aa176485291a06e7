package store

import (
	"context"
	"database/sql"

	"github.com/google/uuid"

	"github.com/fithub/fithub-api/internal/domain"
)

// UserStore defines the interface for user data persistence.
type UserStore interface {
	// Create saves a new user. The caller hashes the password first.
	// Returns ErrPhoneExists or ErrNicknameExists on conflicts.
	Create(ctx context.Context, user *domain.User) error

	// GetByID returns ErrUserNotFound if the user does not exist.
	GetByID(ctx context.Context, id uuid.UUID) (*domain.User, error)

	// GetByPhone returns ErrUserNotFound if no user has that phone.
	GetByPhone(ctx context.Context, phone string) (*domain.User, error)

	// NicknameExists reports whether the nickname is taken.
	NicknameExists(ctx context.Context, nickname string) (bool, error)

	// UpdatePushToken replaces the device push token of a user.
	UpdatePushToken(ctx context.Context, id uuid.UUID, token string) error

	// UpdatePassword replaces the password hash of a user.
	UpdatePassword(ctx context.Context, id uuid.UUID, hashedPassword string) error

	// ListExercises returns the user's exercises ordered by category id.
	ListExercises(ctx context.Context, userID uuid.UUID) ([]domain.UserExercise, error)

	// ReplaceExercises sets the user's exercises to categoryIDs, marking
	// mainID as the main one. Unknown categories return ErrCategoryNotFound.
	ReplaceExercises(ctx context.Context, userID uuid.UUID, categoryIDs []int64, mainID int64) error

	// SetMainExercise makes categoryID the user's only main exercise.
	// Returns ErrExerciseNotFound if the user does not practise it.
	SetMainExercise(ctx context.Context, userID uuid.UUID, categoryID int64) error

	// WithTx returns a new UserStore instance that uses the provided transaction.
	WithTx(tx *sql.Tx) UserStore
}
