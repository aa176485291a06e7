package api

import (
	"time"

	"github.com/google/uuid"

	"github.com/fithub/fithub-api/internal/service"
)

// RegisterRequest is the body of POST /api/auth/register.
type RegisterRequest struct {
	Phone    string `json:"phone"    validate:"required,phone"`
	Nickname string `json:"nickname" validate:"required,min=2,max=20"`
	Password string `json:"password" validate:"required,min=8,max=72"`
}

// LoginRequest is the body of POST /api/auth/login.
type LoginRequest struct {
	Phone    string `json:"phone"    validate:"required"`
	Password string `json:"password" validate:"required"`
}

// RefreshTokenRequest is the body of POST /api/auth/refresh.
type RefreshTokenRequest struct {
	RefreshToken string `json:"refresh_token" validate:"required"`
}

// AuthResponse is returned by register, login and refresh.
type AuthResponse struct {
	UserID       uuid.UUID `json:"user_id"`
	AccessToken  string    `json:"access_token"`
	RefreshToken string    `json:"refresh_token"`
	// ExpiresAt is the RFC 3339 expiry of the access token.
	ExpiresAt string `json:"expires_at"`
}

func authResponse(t *service.AuthTokens) AuthResponse {
	return AuthResponse{
		UserID:       t.UserID,
		AccessToken:  t.AccessToken,
		RefreshToken: t.RefreshToken,
		ExpiresAt:    t.ExpiresAt.UTC().Format(time.RFC3339),
	}
}

// NicknameResponse is returned by GET /api/auth/nickname.
type NicknameResponse struct {
	Nickname  string `json:"nickname"`
	Available bool   `json:"available"`
}

// PushTokenRequest is the body of PUT /api/users/me/push-token. An empty
// token turns notifications off.
type PushTokenRequest struct {
	PushToken string `json:"push_token" validate:"max=512"`
}

// ChangePasswordRequest is the body of PUT /api/users/me/password.
type ChangePasswordRequest struct {
	CurrentPassword string `json:"current_password" validate:"required"`
	NewPassword     string `json:"new_password"     validate:"required,min=8,max=72"`
}

// ExercisesRequest is the body of PUT /api/users/me/exercises. The main
// exercise is kept when still listed, otherwise the first listed one is main.
type ExercisesRequest struct {
	CategoryIDs []int64 `json:"category_ids" validate:"max=8,dive,gt=0"`
}

// MainExerciseRequest is the body of PATCH /api/users/me/exercises/main.
type MainExerciseRequest struct {
	CategoryID int64 `json:"category_id" validate:"required,gt=0"`
}

// ContentRequest is the "data" part of content create and update requests.
// KeepImages lists the URLs of existing images to keep on update, in order.
type ContentRequest struct {
	CategoryID int64    `json:"category_id" validate:"required,gt=0"`
	Title      string   `json:"title"       validate:"max=100"`
	Body       string   `json:"body"        validate:"required,max=5000"`
	HashTags   []string `json:"hashtags"    validate:"max=10,dive,max=31"`
	KeepImages []string `json:"keep_images" validate:"max=10"`
}

func (c ContentRequest) input() service.ContentInput {
	return service.ContentInput{
		CategoryID: c.CategoryID,
		Title:      c.Title,
		Body:       c.Body,
		HashTags:   c.HashTags,
	}
}

// CommentRequest is the body of comment create and update requests.
type CommentRequest struct {
	Body string `json:"body" validate:"required,max=1000"`
}

// ToggleResponse reports the state of a like or save after a toggle.
type ToggleResponse struct {
	Active bool  `json:"active"`
	Count  int64 `json:"count"`
}

// UserResponse is the public view of the signed in user.
type UserResponse struct {
	ID        uuid.UUID `json:"id"`
	Nickname  string    `json:"nickname"`
	CreatedAt time.Time `json:"created_at"`
}
