package api

import (
	"context"
	"errors"
	"net/http"

	"github.com/fithub/fithub-api/internal/api/shared"
	"github.com/fithub/fithub-api/internal/domain"
	"github.com/fithub/fithub-api/internal/service"
	"github.com/fithub/fithub-api/internal/service/attach"
	"github.com/fithub/fithub-api/internal/service/auth"
	"github.com/fithub/fithub-api/internal/store"
)

// MapErrorToStatusCode maps service errors to HTTP status codes.
func MapErrorToStatusCode(err error) int {
	var maxBytes *http.MaxBytesError
	switch {
	case err == nil:
		return http.StatusOK

	case errors.Is(err, auth.ErrInvalidToken),
		errors.Is(err, auth.ErrExpiredToken),
		errors.Is(err, auth.ErrInvalidRefreshToken),
		errors.Is(err, auth.ErrExpiredRefreshToken),
		errors.Is(err, auth.ErrWrongTokenType),
		errors.Is(err, domain.ErrUnauthorized):
		return http.StatusUnauthorized

	case errors.Is(err, domain.ErrForbidden):
		return http.StatusForbidden

	case errors.Is(err, store.ErrNotFound):
		return http.StatusNotFound

	case errors.Is(err, store.ErrDuplicate):
		return http.StatusConflict

	case errors.As(err, &maxBytes):
		return http.StatusRequestEntityTooLarge

	case errors.Is(err, domain.ErrValidation),
		errors.Is(err, domain.ErrInvalidID),
		errors.Is(err, domain.ErrEmptyContent),
		errors.Is(err, domain.ErrInvalidKind),
		errors.Is(err, domain.ErrInvalidRelation),
		errors.Is(err, attach.ErrInvalidUpload),
		errors.Is(err, store.ErrInvalidEntity):
		return http.StatusBadRequest

	case errors.Is(err, context.DeadlineExceeded):
		return http.StatusGatewayTimeout

	default:
		return http.StatusInternalServerError
	}
}

// GetSafeErrorMessage returns a client facing message for err that never
// includes internal details.
func GetSafeErrorMessage(err error) string {
	if err == nil {
		return "An unexpected error occurred"
	}

	var verr *domain.ValidationError
	switch {
	case errors.Is(err, service.ErrInvalidCredentials):
		return "Invalid phone or password"
	case errors.Is(err, auth.ErrExpiredToken):
		return "Token expired"
	case errors.Is(err, auth.ErrInvalidToken):
		return "Invalid token"
	case errors.Is(err, auth.ErrInvalidRefreshToken),
		errors.Is(err, auth.ErrExpiredRefreshToken),
		errors.Is(err, auth.ErrWrongTokenType):
		return "Invalid refresh token"
	case errors.Is(err, domain.ErrUnauthorized):
		return "Unauthorized"

	case errors.Is(err, domain.ErrForbidden):
		return "You do not own this resource"

	case errors.Is(err, store.ErrUserNotFound):
		return "User not found"
	case errors.Is(err, store.ErrContentNotFound):
		return "Content not found"
	case errors.Is(err, store.ErrCommentNotFound):
		return "Comment not found"
	case errors.Is(err, store.ErrCategoryNotFound):
		return "Category not found"
	case errors.Is(err, store.ErrExerciseNotFound):
		return "Exercise not found"
	case errors.Is(err, store.ErrNotFound):
		return "Resource not found"

	case errors.Is(err, store.ErrPhoneExists):
		return "Phone number already registered"
	case errors.Is(err, store.ErrNicknameExists):
		return "Nickname already taken"
	case errors.Is(err, store.ErrAlreadyReported):
		return "Content already reported"
	case errors.Is(err, store.ErrDuplicate):
		return "Resource already exists"

	case errors.As(err, new(*http.MaxBytesError)):
		return "Request too large"

	// Validation messages are written by this codebase and name the field.
	case errors.As(err, &verr):
		return "Invalid " + verr.Error()
	case errors.Is(err, attach.ErrInvalidUpload):
		return "Invalid image upload"
	case errors.Is(err, domain.ErrInvalidKind):
		return "Unknown content kind"
	case errors.Is(err, domain.ErrInvalidID):
		return "Invalid ID"
	case errors.Is(err, domain.ErrValidation),
		errors.Is(err, domain.ErrEmptyContent),
		errors.Is(err, domain.ErrInvalidRelation),
		errors.Is(err, store.ErrInvalidEntity):
		return "Validation failed"

	case errors.Is(err, context.DeadlineExceeded):
		return "Request timed out"

	default:
		return "An unexpected error occurred"
	}
}

// HandleAPIError writes the error response for err and logs it redacted.
// fallback replaces the generic message of 500 responses when set.
func HandleAPIError(w http.ResponseWriter, r *http.Request, err error, fallback string) {
	status := MapErrorToStatusCode(err)
	msg := GetSafeErrorMessage(err)
	if status == http.StatusInternalServerError && fallback != "" {
		msg = fallback
	}

	var opts []shared.ResponseOption
	if status == http.StatusForbidden {
		opts = append(opts, shared.WithElevatedLogLevel())
	}
	shared.RespondWithErrorAndLog(w, r, status, msg, err, opts...)
}
