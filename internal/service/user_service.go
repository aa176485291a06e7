package service

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
	"github.com/fithub/fithub-api/internal/service/auth"
	"github.com/fithub/fithub-api/internal/store"
)

const maxPushTokenLength = 512

// AuthTokens is the token pair handed out on register, login and refresh.
type AuthTokens struct {
	UserID       uuid.UUID `json:"user_id"`
	AccessToken  string    `json:"access_token"`
	RefreshToken string    `json:"refresh_token"`
	ExpiresAt    time.Time `json:"expires_at"`
}

// UserService handles accounts and authentication.
type UserService interface {
	// Register creates an account and signs the user in.
	Register(ctx context.Context, phone, nickname, password string) (*AuthTokens, error)

	// Login verifies the password for phone. Unknown phones and wrong
	// passwords both return ErrInvalidCredentials.
	Login(ctx context.Context, phone, password string) (*AuthTokens, error)

	// Refresh exchanges a valid refresh token for a new token pair.
	Refresh(ctx context.Context, refreshToken string) (*AuthTokens, error)

	// NicknameAvailable reports whether nobody uses nickname yet.
	NicknameAvailable(ctx context.Context, nickname string) (bool, error)

	// UpdatePushToken stores the device token notifications are delivered to.
	UpdatePushToken(ctx context.Context, userID uuid.UUID, token string) error

	// GetUser returns a user by ID.
	GetUser(ctx context.Context, userID uuid.UUID) (*domain.User, error)

	// ChangePassword replaces the password after checking the current one.
	// A wrong current password returns ErrInvalidCredentials.
	ChangePassword(ctx context.Context, userID uuid.UUID, current, next string) error

	// Exercises lists the exercise categories the user practises.
	Exercises(ctx context.Context, userID uuid.UUID) ([]domain.UserExercise, error)

	// SetExercises replaces the user's exercises. The main exercise is kept
	// when it stays in the list; otherwise the first one becomes main.
	SetExercises(ctx context.Context, userID uuid.UUID, categoryIDs []int64) ([]domain.UserExercise, error)

	// SetMainExercise marks one of the user's exercises as main.
	SetMainExercise(ctx context.Context, userID uuid.UUID, categoryID int64) ([]domain.UserExercise, error)
}

type userServiceImpl struct {
	users  store.UserStore
	runTx  store.TxRunner
	hasher auth.PasswordHasher
	tokens auth.JWTService
	ttl    time.Duration
	logger *slog.Logger
}

// NewUserService creates a UserService. accessTTL is reported to clients as
// the access token expiry.
func NewUserService(
	users store.UserStore,
	runTx store.TxRunner,
	hasher auth.PasswordHasher,
	tokens auth.JWTService,
	accessTTL time.Duration,
	logger *slog.Logger,
) (UserService, error) {
	if users == nil {
		return nil, domain.NewValidationError("users", "cannot be nil", domain.ErrValidation)
	}
	if runTx == nil {
		return nil, domain.NewValidationError("runTx", "cannot be nil", domain.ErrValidation)
	}
	if hasher == nil {
		return nil, domain.NewValidationError("hasher", "cannot be nil", domain.ErrValidation)
	}
	if tokens == nil {
		return nil, domain.NewValidationError("tokens", "cannot be nil", domain.ErrValidation)
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &userServiceImpl{
		users:  users,
		runTx:  runTx,
		hasher: hasher,
		tokens: tokens,
		ttl:    accessTTL,
		logger: logger.With(slog.String("component", "user_service")),
	}, nil
}

// invalidUser tags user validation failures as validation errors.
func invalidUser(err error) error {
	return fmt.Errorf("%w: %w", domain.ErrValidation, err)
}

// Register implements UserService.
func (s *userServiceImpl) Register(ctx context.Context, phone, nickname, password string) (*AuthTokens, error) {
	log := logger.FromContextOrDefault(ctx, s.logger)

	user, err := domain.NewUser(phone, nickname, password)
	if err != nil {
		return nil, invalidUser(err)
	}
	hashed, err := s.hasher.Hash(user.Password)
	if err != nil {
		return nil, NewServiceError("register", "failed to hash password", err)
	}
	user.HashedPassword = hashed
	user.Password = ""

	err = s.runTx(ctx, func(ctx context.Context, tx *sql.Tx) error {
		return s.users.WithTx(tx).Create(ctx, user)
	})
	if err != nil {
		if store.IsDuplicateError(err) {
			log.Debug("registration rejected, duplicate account", slog.String("error", err.Error()))
			return nil, err
		}
		log.Error("failed to create user", slog.String("error", err.Error()))
		return nil, wrap("register", "failed to create user", err)
	}

	log.Info("user registered", slog.String("user_id", user.ID.String()))
	return s.issue(ctx, user.ID)
}

// Login implements UserService.
func (s *userServiceImpl) Login(ctx context.Context, phone, password string) (*AuthTokens, error) {
	if strings.TrimSpace(phone) == "" || password == "" {
		return nil, ErrInvalidCredentials
	}

	user, err := s.users.GetByPhone(ctx, phone)
	if err != nil {
		if store.IsNotFoundError(err) {
			return nil, ErrInvalidCredentials
		}
		return nil, wrap("login", "failed to load user", err)
	}
	if err := s.hasher.Compare(user.HashedPassword, password); err != nil {
		if errors.Is(err, auth.ErrPasswordMismatch) {
			return nil, ErrInvalidCredentials
		}
		return nil, NewServiceError("login", "failed to verify password", err)
	}

	logger.FromContextOrDefault(ctx, s.logger).Debug("user logged in", slog.String("user_id", user.ID.String()))
	return s.issue(ctx, user.ID)
}

// Refresh implements UserService. The presented refresh token is replaced by
// a new one; the user must still exist.
func (s *userServiceImpl) Refresh(ctx context.Context, refreshToken string) (*AuthTokens, error) {
	claims, err := s.tokens.ValidateRefreshToken(ctx, refreshToken)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", domain.ErrUnauthorized, err)
	}
	if _, err := s.users.GetByID(ctx, claims.UserID); err != nil {
		if store.IsNotFoundError(err) {
			return nil, fmt.Errorf("%w: user no longer exists", domain.ErrUnauthorized)
		}
		return nil, wrap("refresh", "failed to load user", err)
	}
	return s.issue(ctx, claims.UserID)
}

func (s *userServiceImpl) issue(ctx context.Context, userID uuid.UUID) (*AuthTokens, error) {
	access, err := s.tokens.GenerateToken(ctx, userID)
	if err != nil {
		return nil, NewServiceError("issue_tokens", "failed to sign access token", err)
	}
	refresh, err := s.tokens.GenerateRefreshToken(ctx, userID)
	if err != nil {
		return nil, NewServiceError("issue_tokens", "failed to sign refresh token", err)
	}
	return &AuthTokens{
		UserID:       userID,
		AccessToken:  access,
		RefreshToken: refresh,
		ExpiresAt:    time.Now().UTC().Add(s.ttl),
	}, nil
}

// NicknameAvailable implements UserService.
func (s *userServiceImpl) NicknameAvailable(ctx context.Context, nickname string) (bool, error) {
	nickname = strings.TrimSpace(nickname)
	if nickname == "" {
		return false, domain.NewValidationError("nickname", "cannot be empty", domain.ErrValidation)
	}
	exists, err := s.users.NicknameExists(ctx, nickname)
	if err != nil {
		return false, wrap("nickname_available", "failed to check nickname", err)
	}
	return !exists, nil
}

// UpdatePushToken implements UserService. An empty token stops notifications.
func (s *userServiceImpl) UpdatePushToken(ctx context.Context, userID uuid.UUID, token string) error {
	token = strings.TrimSpace(token)
	if len(token) > maxPushTokenLength {
		return domain.NewValidationError("push_token", "is too long", domain.ErrValidation)
	}
	if err := s.users.UpdatePushToken(ctx, userID, token); err != nil {
		return wrap("update_push_token", "failed to store push token", err)
	}
	return nil
}

// GetUser implements UserService.
func (s *userServiceImpl) GetUser(ctx context.Context, userID uuid.UUID) (*domain.User, error) {
	user, err := s.users.GetByID(ctx, userID)
	if err != nil {
		return nil, wrap("get_user", "failed to load user", err)
	}
	return user, nil
}

// ChangePassword implements UserService.
func (s *userServiceImpl) ChangePassword(ctx context.Context, userID uuid.UUID, current, next string) error {
	if err := domain.ValidatePassword(next); err != nil {
		return domain.NewValidationError("new_password", err.Error(), domain.ErrValidation)
	}

	user, err := s.users.GetByID(ctx, userID)
	if err != nil {
		return wrap("change_password", "failed to load user", err)
	}
	if err := s.hasher.Compare(user.HashedPassword, current); err != nil {
		if errors.Is(err, auth.ErrPasswordMismatch) {
			return ErrInvalidCredentials
		}
		return NewServiceError("change_password", "failed to verify password", err)
	}

	hashed, err := s.hasher.Hash(next)
	if err != nil {
		return NewServiceError("change_password", "failed to hash password", err)
	}
	if err := s.users.UpdatePassword(ctx, userID, hashed); err != nil {
		return wrap("change_password", "failed to store password", err)
	}

	logger.FromContextOrDefault(ctx, s.logger).Info("password changed", slog.String("user_id", userID.String()))
	return nil
}

// Exercises implements UserService.
func (s *userServiceImpl) Exercises(ctx context.Context, userID uuid.UUID) ([]domain.UserExercise, error) {
	exercises, err := s.users.ListExercises(ctx, userID)
	if err != nil {
		return nil, wrap("list_exercises", "failed to load exercises", err)
	}
	return exercises, nil
}

// SetExercises implements UserService.
func (s *userServiceImpl) SetExercises(ctx context.Context, userID uuid.UUID, categoryIDs []int64) ([]domain.UserExercise, error) {
	ids, err := domain.NormalizeExercises(categoryIDs)
	if err != nil {
		return nil, err
	}

	var exercises []domain.UserExercise
	err = s.runTx(ctx, func(ctx context.Context, tx *sql.Tx) error {
		users := s.users.WithTx(tx)

		existing, err := users.ListExercises(ctx, userID)
		if err != nil {
			return err
		}
		if err := users.ReplaceExercises(ctx, userID, ids, pickMain(existing, ids)); err != nil {
			return err
		}
		exercises, err = users.ListExercises(ctx, userID)
		return err
	})
	if err != nil {
		return nil, wrap("set_exercises", "failed to save exercises", err)
	}
	return exercises, nil
}

// pickMain keeps the current main exercise when it survives the update.
func pickMain(existing []domain.UserExercise, ids []int64) int64 {
	if len(ids) == 0 {
		return 0
	}
	for _, e := range existing {
		if !e.Main {
			continue
		}
		for _, id := range ids {
			if id == e.CategoryID {
				return id
			}
		}
	}
	return ids[0]
}

// SetMainExercise implements UserService.
func (s *userServiceImpl) SetMainExercise(ctx context.Context, userID uuid.UUID, categoryID int64) ([]domain.UserExercise, error) {
	if categoryID <= 0 {
		return nil, domain.NewValidationError("category_id", "must be positive", domain.ErrValidation)
	}

	var exercises []domain.UserExercise
	err := s.runTx(ctx, func(ctx context.Context, tx *sql.Tx) error {
		users := s.users.WithTx(tx)
		if err := users.SetMainExercise(ctx, userID, categoryID); err != nil {
			return err
		}
		var err error
		exercises, err = users.ListExercises(ctx, userID)
		return err
	})
	if err != nil {
		return nil, wrap("set_main_exercise", "failed to set main exercise", err)
	}
	return exercises, nil
}
