package api

import (
	"errors"
	"fmt"
	"net/http"

	"github.com/go-playground/validator/v10"
	"github.com/phrazzld/scry-srs/internal/domain"
	"github.com/phrazzld/scry-srs/internal/service/auth"
	"github.com/phrazzld/scry-srs/internal/service/review"
	"github.com/phrazzld/scry-srs/internal/store"
)

// ErrUnauthorized is returned when a protected handler runs without an
// authenticated user in the request context.
var ErrUnauthorized = errors.New("unauthorized")

// MapErrorToStatusCode maps internal errors to appropriate HTTP status codes
// based on the error type. This prevents leaking internal error types or
// messages to clients.
func MapErrorToStatusCode(err error) int {
	switch {
	case errors.Is(err, ErrUnauthorized),
		errors.Is(err, auth.ErrInvalidToken),
		errors.Is(err, auth.ErrExpiredToken),
		errors.Is(err, auth.ErrWrongTokenType):
		return http.StatusUnauthorized

	case errors.Is(err, review.ErrForbidden):
		return http.StatusForbidden

	case errors.Is(err, review.ErrCardNotFound),
		errors.Is(err, store.ErrNotFound):
		return http.StatusNotFound

	case errors.Is(err, review.ErrConflict),
		errors.Is(err, store.ErrConflict):
		return http.StatusConflict

	case errors.Is(err, review.ErrInvalidQuality),
		errors.Is(err, domain.ErrValidation),
		errors.Is(err, domain.ErrInvalidID),
		errors.Is(err, store.ErrInvalidEntity):
		return http.StatusBadRequest

	case errors.Is(err, review.ErrStoreUnavailable),
		errors.Is(err, store.ErrStoreUnavailable):
		return http.StatusServiceUnavailable

	default:
		return http.StatusInternalServerError
	}
}

// GetSafeErrorMessage returns a sanitized, user-friendly error message
// based on the error type. This prevents leaking sensitive internal details.
func GetSafeErrorMessage(err error) string {
	if err == nil {
		return "An unexpected error occurred"
	}

	var validationErr *ValidationError
	switch {
	case errors.As(err, &validationErr):
		return validationErr.Error()
	case errors.Is(err, ErrUnauthorized):
		return "User ID not found or invalid"
	case errors.Is(err, auth.ErrInvalidToken),
		errors.Is(err, auth.ErrExpiredToken),
		errors.Is(err, auth.ErrWrongTokenType):
		return "Invalid token"
	case errors.Is(err, review.ErrForbidden):
		return "You do not have access to this card"
	case errors.Is(err, review.ErrCardNotFound),
		errors.Is(err, store.ErrCardNotFound):
		return "Card not found"
	case errors.Is(err, store.ErrModuleNotFound):
		return "Module not found"
	case errors.Is(err, store.ErrNotFound):
		return "Resource not found"
	case errors.Is(err, review.ErrConflict),
		errors.Is(err, store.ErrConflict):
		return "The card was reviewed concurrently; please retry"
	case errors.Is(err, review.ErrInvalidQuality):
		return "Quality must be an integer from 0 to 5"
	case errors.Is(err, store.ErrInvalidEntity):
		return "Invalid entity data"
	case errors.Is(err, review.ErrStoreUnavailable),
		errors.Is(err, store.ErrStoreUnavailable):
		return "Service temporarily unavailable, please retry"
	default:
		return "An unexpected error occurred"
	}
}

// ValidationError describes a rejected request parameter or field. Its
// message is safe to return to clients.
type ValidationError struct {
	Field   string
	Message string
	Err     error
}

// Error implements the error interface.
func (e *ValidationError) Error() string {
	return fmt.Sprintf("Invalid %s: %s", e.Field, e.Message)
}

// Unwrap returns domain.ErrValidation unless a more specific cause was given.
func (e *ValidationError) Unwrap() error {
	if e.Err != nil {
		return e.Err
	}
	return domain.ErrValidation
}

// NewValidationError creates a ValidationError for field.
func NewValidationError(field, message string, err error) *ValidationError {
	return &ValidationError{Field: field, Message: message, Err: err}
}

// SanitizeValidationError converts validator output into a ValidationError
// naming the first failing field.
func SanitizeValidationError(err error) error {
	var fieldErrs validator.ValidationErrors
	if errors.As(err, &fieldErrs) && len(fieldErrs) > 0 {
		fe := fieldErrs[0]
		return NewValidationError(fe.Field(), getValidationTagMessage(fe.Tag()), nil)
	}
	return NewValidationError("request", "malformed body", nil)
}

// getValidationTagMessage maps validation tags to user-friendly error messages
func getValidationTagMessage(tag string) string {
	switch tag {
	case "required":
		return "required field"
	case "min", "gte":
		return "too small"
	case "max", "lte":
		return "too large"
	case "oneof":
		return "invalid value"
	default:
		return "validation failed"
	}
}
