package api

import (
	"log/slog"
	"net/http"
	"strings"

	"github.com/fithub/fithub-api/internal/api/shared"
	"github.com/fithub/fithub-api/internal/platform/logger"
	"github.com/fithub/fithub-api/internal/service"
)

// AuthHandler handles registration, login and token refresh.
type AuthHandler struct {
	users  service.UserService
	logger *slog.Logger
}

// NewAuthHandler creates a new AuthHandler with the given dependencies.
func NewAuthHandler(users service.UserService, logger *slog.Logger) *AuthHandler {
	if logger == nil {
		logger = slog.Default()
	}
	return &AuthHandler{
		users:  users,
		logger: logger.With(slog.String("component", "auth_handler")),
	}
}

// Register handles POST /api/auth/register.
func (h *AuthHandler) Register(w http.ResponseWriter, r *http.Request) {
	var req RegisterRequest
	if !decodeAndValidate(w, r, &req) {
		return
	}

	tokens, err := h.users.Register(r.Context(), req.Phone, req.Nickname, req.Password)
	if err != nil {
		HandleAPIError(w, r, err, "Failed to create user")
		return
	}

	logger.FromContextOrDefault(r.Context(), h.logger).Info("user registered",
		slog.String("user_id", tokens.UserID.String()))
	shared.RespondWithJSON(w, r, http.StatusCreated, authResponse(tokens))
}

// Login handles POST /api/auth/login.
func (h *AuthHandler) Login(w http.ResponseWriter, r *http.Request) {
	var req LoginRequest
	if !decodeAndValidate(w, r, &req) {
		return
	}

	tokens, err := h.users.Login(r.Context(), req.Phone, req.Password)
	if err != nil {
		HandleAPIError(w, r, err, "Failed to authenticate user")
		return
	}
	shared.RespondWithJSON(w, r, http.StatusOK, authResponse(tokens))
}

// RefreshToken handles POST /api/auth/refresh.
func (h *AuthHandler) RefreshToken(w http.ResponseWriter, r *http.Request) {
	var req RefreshTokenRequest
	if !decodeAndValidate(w, r, &req) {
		return
	}

	tokens, err := h.users.Refresh(r.Context(), req.RefreshToken)
	if err != nil {
		HandleAPIError(w, r, err, "Failed to refresh token")
		return
	}
	shared.RespondWithJSON(w, r, http.StatusOK, authResponse(tokens))
}

// CheckNickname handles GET /api/auth/nickname?nickname=.
func (h *AuthHandler) CheckNickname(w http.ResponseWriter, r *http.Request) {
	nickname := strings.TrimSpace(r.URL.Query().Get("nickname"))
	available, err := h.users.NicknameAvailable(r.Context(), nickname)
	if err != nil {
		HandleAPIError(w, r, err, "")
		return
	}
	shared.RespondWithJSON(w, r, http.StatusOK, NicknameResponse{Nickname: nickname, Available: available})
}
