package middleware

import (
	"errors"
	"log/slog"
	"net/http"
	"strings"

	"github.com/google/uuid"

	"github.com/fithub/fithub-api/internal/api/shared"
	"github.com/fithub/fithub-api/internal/platform/logger"
	"github.com/fithub/fithub-api/internal/redact"
	"github.com/fithub/fithub-api/internal/service/auth"
)

// AuthMiddleware provides JWT authentication for routes.
type AuthMiddleware struct {
	jwtService auth.JWTService
}

// NewAuthMiddleware creates a new AuthMiddleware with the given dependencies.
func NewAuthMiddleware(jwtService auth.JWTService) *AuthMiddleware {
	return &AuthMiddleware{
		jwtService: jwtService,
	}
}

// Authenticate validates the bearer access token and adds the user ID to the
// request context. Requests without a valid token get 401.
func (m *AuthMiddleware) Authenticate(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		token, ok := bearerToken(r)
		if !ok {
			shared.RespondWithError(w, r, http.StatusUnauthorized, "Authorization header required")
			return
		}

		userID, ok := m.validate(w, r, token)
		if !ok {
			return
		}
		next.ServeHTTP(w, r.WithContext(shared.WithUserID(r.Context(), userID)))
	})
}

// Optional behaves like Authenticate when a bearer token is present and lets
// anonymous requests through untouched. Public reads use it to fill in
// viewer specific flags.
func (m *AuthMiddleware) Optional(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		token, ok := bearerToken(r)
		if !ok {
			next.ServeHTTP(w, r)
			return
		}
		userID, ok := m.validate(w, r, token)
		if !ok {
			return
		}
		next.ServeHTTP(w, r.WithContext(shared.WithUserID(r.Context(), userID)))
	})
}

func (m *AuthMiddleware) validate(w http.ResponseWriter, r *http.Request, token string) (uuid.UUID, bool) {
	claims, err := m.jwtService.ValidateToken(r.Context(), token)
	if err == nil {
		return claims.UserID, true
	}

	switch {
	case errors.Is(err, auth.ErrExpiredToken):
		shared.RespondWithError(w, r, http.StatusUnauthorized, "Token expired")
	case errors.Is(err, auth.ErrInvalidToken),
		errors.Is(err, auth.ErrWrongTokenType),
		errors.Is(err, auth.ErrTokenNotYetValid):
		shared.RespondWithError(w, r, http.StatusUnauthorized, "Invalid token")
	default:
		logger.FromContext(r.Context()).Error("failed to validate token",
			slog.String("error", redact.Error(err)))
		shared.RespondWithError(w, r, http.StatusInternalServerError, "Authentication error")
	}
	return uuid.Nil, false
}

func bearerToken(r *http.Request) (string, bool) {
	header := r.Header.Get("Authorization")
	scheme, token, found := strings.Cut(header, " ")
	if !found || !strings.EqualFold(scheme, "Bearer") {
		return "", false
	}
	token = strings.TrimSpace(token)
	return token, token != ""
}

// GetUserID extracts the authenticated user ID from the request context.
func GetUserID(r *http.Request) (uuid.UUID, bool) {
	return shared.UserIDFromContext(r.Context())
}
