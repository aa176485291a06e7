package service

import (
	"errors"
	"fmt"

	"github.com/fithub/fithub-api/internal/domain"
)

// Sentinel errors returned by the services. The API maps them with errors.Is.
var (
	// ErrNotOwned is returned when a user modifies content or a comment
	// written by someone else. It matches domain.ErrForbidden.
	ErrNotOwned = fmt.Errorf("%w: resource is owned by another user", domain.ErrForbidden)

	// ErrInvalidCredentials is returned for an unknown phone or a wrong
	// password. The two cases are indistinguishable on purpose.
	ErrInvalidCredentials = fmt.Errorf("%w: invalid phone or password", domain.ErrUnauthorized)

	// ErrReportOwnContent is returned when a user reports their own content.
	ErrReportOwnContent = domain.NewValidationError("content_id", "cannot report your own content", domain.ErrValidation)

	// ErrUnknownCategory is returned when content references a missing category.
	ErrUnknownCategory = domain.NewValidationError("category_id", "unknown category", domain.ErrValidation)
)

// ServiceError wraps an unexpected failure with the operation that hit it.
type ServiceError struct {
	Operation string
	Message   string
	Err       error
}

// Error implements the error interface.
func (e *ServiceError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s failed: %s: %v", e.Operation, e.Message, e.Err)
	}
	return fmt.Sprintf("%s failed: %s", e.Operation, e.Message)
}

// Unwrap returns the wrapped error to support errors.Is/errors.As.
func (e *ServiceError) Unwrap() error {
	return e.Err
}

// NewServiceError creates a ServiceError.
func NewServiceError(operation, message string, err error) *ServiceError {
	return &ServiceError{
		Operation: operation,
		Message:   message,
		Err:       err,
	}
}

// passThrough lists errors that callers act on and that are returned as is.
var passThrough = []error{
	domain.ErrValidation,
	domain.ErrForbidden,
	domain.ErrUnauthorized,
	domain.ErrInvalidKind,
	domain.ErrInvalidRelation,
}

// wrap returns expected errors unchanged and wraps everything else in a
// ServiceError. Not-found and duplicate store errors stay matchable either way.
func wrap(operation, message string, err error) error {
	if err == nil {
		return nil
	}
	for _, target := range passThrough {
		if errors.Is(err, target) {
			return err
		}
	}
	return NewServiceError(operation, message, err)
}
