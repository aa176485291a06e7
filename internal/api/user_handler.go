package api

import (
	"log/slog"
	"net/http"

	"github.com/fithub/fithub-api/internal/api/shared"
	"github.com/fithub/fithub-api/internal/domain"
	"github.com/fithub/fithub-api/internal/service"
)

// UserHandler serves the signed in user's own resources.
type UserHandler struct {
	users  service.UserService
	logger *slog.Logger
}

// NewUserHandler creates a UserHandler.
func NewUserHandler(users service.UserService, logger *slog.Logger) *UserHandler {
	if logger == nil {
		logger = slog.Default()
	}
	return &UserHandler{users: users, logger: logger.With(slog.String("component", "user_handler"))}
}

// Me handles GET /api/users/me.
func (h *UserHandler) Me(w http.ResponseWriter, r *http.Request) {
	userID, ok := getUserIDFromContext(r)
	if !ok {
		HandleAPIError(w, r, domain.ErrUnauthorized, "")
		return
	}
	user, err := h.users.GetUser(r.Context(), userID)
	if err != nil {
		HandleAPIError(w, r, err, "Failed to load user")
		return
	}
	shared.RespondWithJSON(w, r, http.StatusOK, UserResponse{
		ID:        user.ID,
		Nickname:  user.Nickname,
		CreatedAt: user.CreatedAt,
	})
}

// UpdatePushToken handles PUT /api/users/me/push-token.
func (h *UserHandler) UpdatePushToken(w http.ResponseWriter, r *http.Request) {
	userID, ok := getUserIDFromContext(r)
	if !ok {
		HandleAPIError(w, r, domain.ErrUnauthorized, "")
		return
	}
	var req PushTokenRequest
	if !decodeAndValidate(w, r, &req) {
		return
	}
	if err := h.users.UpdatePushToken(r.Context(), userID, req.PushToken); err != nil {
		HandleAPIError(w, r, err, "Failed to update push token")
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// ChangePassword handles PUT /api/users/me/password.
func (h *UserHandler) ChangePassword(w http.ResponseWriter, r *http.Request) {
	userID, ok := getUserIDFromContext(r)
	if !ok {
		HandleAPIError(w, r, domain.ErrUnauthorized, "")
		return
	}
	var req ChangePasswordRequest
	if !decodeAndValidate(w, r, &req) {
		return
	}
	if err := h.users.ChangePassword(r.Context(), userID, req.CurrentPassword, req.NewPassword); err != nil {
		HandleAPIError(w, r, err, "Failed to change password")
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// Exercises handles GET /api/users/me/exercises.
func (h *UserHandler) Exercises(w http.ResponseWriter, r *http.Request) {
	userID, ok := getUserIDFromContext(r)
	if !ok {
		HandleAPIError(w, r, domain.ErrUnauthorized, "")
		return
	}
	exercises, err := h.users.Exercises(r.Context(), userID)
	if err != nil {
		HandleAPIError(w, r, err, "Failed to load exercises")
		return
	}
	shared.RespondWithJSON(w, r, http.StatusOK, map[string]interface{}{"items": exercises})
}

// SetExercises handles PUT /api/users/me/exercises.
func (h *UserHandler) SetExercises(w http.ResponseWriter, r *http.Request) {
	userID, ok := getUserIDFromContext(r)
	if !ok {
		HandleAPIError(w, r, domain.ErrUnauthorized, "")
		return
	}
	var req ExercisesRequest
	if !decodeAndValidate(w, r, &req) {
		return
	}
	exercises, err := h.users.SetExercises(r.Context(), userID, req.CategoryIDs)
	if err != nil {
		HandleAPIError(w, r, err, "Failed to update exercises")
		return
	}
	shared.RespondWithJSON(w, r, http.StatusOK, map[string]interface{}{"items": exercises})
}

// SetMainExercise handles PATCH /api/users/me/exercises/main.
func (h *UserHandler) SetMainExercise(w http.ResponseWriter, r *http.Request) {
	userID, ok := getUserIDFromContext(r)
	if !ok {
		HandleAPIError(w, r, domain.ErrUnauthorized, "")
		return
	}
	var req MainExerciseRequest
	if !decodeAndValidate(w, r, &req) {
		return
	}
	exercises, err := h.users.SetMainExercise(r.Context(), userID, req.CategoryID)
	if err != nil {
		HandleAPIError(w, r, err, "Failed to update main exercise")
		return
	}
	shared.RespondWithJSON(w, r, http.StatusOK, map[string]interface{}{"items": exercises})
}
