package service

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fithub/fithub-api/internal/domain"
	"github.com/fithub/fithub-api/internal/service/auth"
	"github.com/fithub/fithub-api/internal/store"
)

func newUserFixture(t *testing.T) (UserService, *memUsers, *fakeTokens) {
	t.Helper()
	users := newMemUsers()
	tokens := &fakeTokens{}
	svc, err := NewUserService(users, directTx, plainHasher{}, tokens, 15*time.Minute, discardLogger())
	require.NoError(t, err)
	return svc, users, tokens
}

func TestNewUserService_RequiresDependencies(t *testing.T) {
	_, err := NewUserService(nil, directTx, plainHasher{}, &fakeTokens{}, time.Minute, nil)
	assert.ErrorIs(t, err, domain.ErrValidation)

	_, err = NewUserService(newMemUsers(), directTx, nil, &fakeTokens{}, time.Minute, nil)
	assert.ErrorIs(t, err, domain.ErrValidation)
}

func TestRegister(t *testing.T) {
	ctx := context.Background()

	t.Run("creates the user and issues tokens", func(t *testing.T) {
		svc, users, _ := newUserFixture(t)
		before := time.Now().UTC()

		tokens, err := svc.Register(ctx, "010-1234-5678", " lifter ", "password1")
		require.NoError(t, err)

		u, err := users.GetByID(ctx, tokens.UserID)
		require.NoError(t, err)
		assert.Equal(t, "01012345678", u.Phone)
		assert.Equal(t, "lifter", u.Nickname)
		assert.Equal(t, "hashed:password1", u.HashedPassword)
		assert.Empty(t, u.Password)

		assert.Equal(t, "access-"+u.ID.String(), tokens.AccessToken)
		assert.Equal(t, "refresh-"+u.ID.String(), tokens.RefreshToken)
		assert.WithinDuration(t, before.Add(15*time.Minute), tokens.ExpiresAt, 5*time.Second)
	})

	t.Run("invalid input is a validation error", func(t *testing.T) {
		svc, _, _ := newUserFixture(t)
		cases := []struct {
			phone, nickname, password string
			want                      error
		}{
			{"123", "lifter", "password1", domain.ErrInvalidPhone},
			{"01012345678", "x", "password1", domain.ErrInvalidNickname},
			{"01012345678", "lifter", "short", domain.ErrPasswordTooShort},
			{"01012345678", "lifter", strings.Repeat("p", 73), domain.ErrPasswordTooLong},
		}
		for _, tc := range cases {
			_, err := svc.Register(ctx, tc.phone, tc.nickname, tc.password)
			assert.ErrorIs(t, err, tc.want)
			assert.ErrorIs(t, err, domain.ErrValidation)
		}
	})

	t.Run("duplicates are reported as is", func(t *testing.T) {
		svc, _, _ := newUserFixture(t)
		_, err := svc.Register(ctx, "01012345678", "lifter", "password1")
		require.NoError(t, err)

		_, err = svc.Register(ctx, "010-1234-5678", "other", "password1")
		assert.ErrorIs(t, err, store.ErrPhoneExists)

		_, err = svc.Register(ctx, "01099998888", "lifter", "password1")
		assert.ErrorIs(t, err, store.ErrNicknameExists)
		assert.True(t, store.IsDuplicateError(err))
	})

	t.Run("store failures are wrapped", func(t *testing.T) {
		svc, users, _ := newUserFixture(t)
		users.createErr = errors.New("connection reset")

		_, err := svc.Register(ctx, "01012345678", "lifter", "password1")
		var svcErr *ServiceError
		require.ErrorAs(t, err, &svcErr)
		assert.Equal(t, "register", svcErr.Operation)
	})
}

func TestLogin(t *testing.T) {
	ctx := context.Background()
	svc, _, _ := newUserFixture(t)
	registered, err := svc.Register(ctx, "01012345678", "lifter", "password1")
	require.NoError(t, err)

	tokens, err := svc.Login(ctx, "010-1234-5678", "password1")
	require.NoError(t, err)
	assert.Equal(t, registered.UserID, tokens.UserID)

	for _, tc := range []struct{ name, phone, password string }{
		{"wrong password", "01012345678", "password2"},
		{"unknown phone", "01099999999", "password1"},
		{"empty phone", "", "password1"},
		{"empty password", "01012345678", ""},
	} {
		t.Run(tc.name, func(t *testing.T) {
			_, err := svc.Login(ctx, tc.phone, tc.password)
			assert.ErrorIs(t, err, ErrInvalidCredentials)
			assert.ErrorIs(t, err, domain.ErrUnauthorized)
		})
	}
}

func TestRefresh(t *testing.T) {
	ctx := context.Background()

	t.Run("issues a new pair", func(t *testing.T) {
		svc, users, tokens := newUserFixture(t)
		u := users.add("lifter")
		tokens.refreshFor = u.ID

		pair, err := svc.Refresh(ctx, "refresh-token")
		require.NoError(t, err)
		assert.Equal(t, u.ID, pair.UserID)
		assert.NotEmpty(t, pair.AccessToken)
	})

	t.Run("invalid token", func(t *testing.T) {
		svc, _, tokens := newUserFixture(t)
		tokens.refreshErr = auth.ErrExpiredToken

		_, err := svc.Refresh(ctx, "stale")
		assert.ErrorIs(t, err, domain.ErrUnauthorized)
		assert.ErrorIs(t, err, auth.ErrExpiredToken)
	})

	t.Run("deleted user", func(t *testing.T) {
		svc, _, tokens := newUserFixture(t)
		tokens.refreshFor = uuid.New()

		_, err := svc.Refresh(ctx, "orphan")
		assert.ErrorIs(t, err, domain.ErrUnauthorized)
	})
}

func TestNicknameAvailable(t *testing.T) {
	ctx := context.Background()
	svc, users, _ := newUserFixture(t)
	users.add("taken")

	ok, err := svc.NicknameAvailable(ctx, "taken")
	require.NoError(t, err)
	assert.False(t, ok)

	ok, err = svc.NicknameAvailable(ctx, " free ")
	require.NoError(t, err)
	assert.True(t, ok)

	_, err = svc.NicknameAvailable(ctx, "  ")
	assert.ErrorIs(t, err, domain.ErrValidation)
}

func TestUpdatePushToken(t *testing.T) {
	ctx := context.Background()
	svc, users, _ := newUserFixture(t)
	u := users.add("lifter")

	require.NoError(t, svc.UpdatePushToken(ctx, u.ID, " device-token "))
	assert.Equal(t, "device-token", u.PushToken)

	require.NoError(t, svc.UpdatePushToken(ctx, u.ID, ""))
	assert.Empty(t, u.PushToken)

	err := svc.UpdatePushToken(ctx, u.ID, strings.Repeat("t", 513))
	assert.ErrorIs(t, err, domain.ErrValidation)

	err = svc.UpdatePushToken(ctx, uuid.New(), "token")
	assert.ErrorIs(t, err, store.ErrUserNotFound)
}

func TestGetUser(t *testing.T) {
	ctx := context.Background()
	svc, users, _ := newUserFixture(t)
	u := users.add("lifter")

	got, err := svc.GetUser(ctx, u.ID)
	require.NoError(t, err)
	assert.Equal(t, "lifter", got.Nickname)

	_, err = svc.GetUser(ctx, uuid.New())
	assert.True(t, store.IsNotFoundError(err))
}

func TestChangePassword(t *testing.T) {
	ctx := context.Background()

	t.Run("replaces the hash", func(t *testing.T) {
		svc, users, _ := newUserFixture(t)
		u := users.add("lifter")

		require.NoError(t, svc.ChangePassword(ctx, u.ID, "password1", "password2"))
		assert.Equal(t, "hashed:password2", u.HashedPassword)

		_, err := svc.Login(ctx, u.Phone, "password2")
		assert.NoError(t, err)
	})

	t.Run("wrong current password", func(t *testing.T) {
		svc, users, _ := newUserFixture(t)
		u := users.add("lifter")

		err := svc.ChangePassword(ctx, u.ID, "nope-nope", "password2")
		assert.ErrorIs(t, err, ErrInvalidCredentials)
		assert.Equal(t, "hashed:password1", u.HashedPassword)
	})

	t.Run("weak new password", func(t *testing.T) {
		svc, users, _ := newUserFixture(t)
		u := users.add("lifter")

		err := svc.ChangePassword(ctx, u.ID, "password1", "short")
		assert.ErrorIs(t, err, domain.ErrValidation)
		assert.Equal(t, "hashed:password1", u.HashedPassword)
	})

	t.Run("unknown user", func(t *testing.T) {
		svc, _, _ := newUserFixture(t)
		err := svc.ChangePassword(ctx, uuid.New(), "password1", "password2")
		assert.ErrorIs(t, err, store.ErrUserNotFound)
	})
}

func TestSetExercises(t *testing.T) {
	ctx := context.Background()

	t.Run("first exercise becomes main", func(t *testing.T) {
		svc, users, _ := newUserFixture(t)
		u := users.add("lifter")

		got, err := svc.SetExercises(ctx, u.ID, []int64{2, 1, 2})
		require.NoError(t, err)
		assert.Equal(t, []domain.UserExercise{
			{CategoryID: 1, Name: "weight training"},
			{CategoryID: 2, Name: "running", Main: true},
		}, got)
	})

	t.Run("keeps the main exercise when it stays", func(t *testing.T) {
		svc, users, _ := newUserFixture(t)
		u := users.add("lifter")
		_, err := svc.SetExercises(ctx, u.ID, []int64{1, 2})
		require.NoError(t, err)
		_, err = svc.SetMainExercise(ctx, u.ID, 2)
		require.NoError(t, err)

		got, err := svc.SetExercises(ctx, u.ID, []int64{3, 2})
		require.NoError(t, err)
		assert.Equal(t, []domain.UserExercise{
			{CategoryID: 2, Name: "running", Main: true},
			{CategoryID: 3, Name: "cycling"},
		}, got)
	})

	t.Run("empty list clears", func(t *testing.T) {
		svc, users, _ := newUserFixture(t)
		u := users.add("lifter")
		_, err := svc.SetExercises(ctx, u.ID, []int64{1})
		require.NoError(t, err)

		got, err := svc.SetExercises(ctx, u.ID, nil)
		require.NoError(t, err)
		assert.Empty(t, got)
	})

	t.Run("unknown category", func(t *testing.T) {
		svc, users, _ := newUserFixture(t)
		u := users.add("lifter")

		_, err := svc.SetExercises(ctx, u.ID, []int64{1, 42})
		assert.ErrorIs(t, err, store.ErrCategoryNotFound)
	})

	t.Run("invalid ids", func(t *testing.T) {
		svc, users, _ := newUserFixture(t)
		u := users.add("lifter")

		_, err := svc.SetExercises(ctx, u.ID, []int64{-1})
		assert.ErrorIs(t, err, domain.ErrValidation)
	})
}

func TestSetMainExercise(t *testing.T) {
	ctx := context.Background()
	svc, users, _ := newUserFixture(t)
	u := users.add("lifter")
	_, err := svc.SetExercises(ctx, u.ID, []int64{1, 2, 3})
	require.NoError(t, err)

	got, err := svc.SetMainExercise(ctx, u.ID, 3)
	require.NoError(t, err)
	mains := 0
	for _, e := range got {
		if e.Main {
			mains++
			assert.Equal(t, int64(3), e.CategoryID)
		}
	}
	assert.Equal(t, 1, mains)

	listed, err := svc.Exercises(ctx, u.ID)
	require.NoError(t, err)
	assert.Equal(t, got, listed)

	_, err = svc.SetMainExercise(ctx, u.ID, 7)
	assert.ErrorIs(t, err, store.ErrExerciseNotFound)

	_, err = svc.SetMainExercise(ctx, u.ID, 0)
	assert.ErrorIs(t, err, domain.ErrValidation)
}
