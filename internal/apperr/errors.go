// Package apperr defines the error taxonomy shared by repositories, services and HTTP handlers.
// Callers match with errors.Is; handlers translate to status codes with HTTPStatus.
package apperr

import (
	"errors"
	"fmt"
	"net/http"
)

var (
	// Input errors
	ErrValidation       = errors.New("validation failed")
	ErrInvalidEnumValue = errors.New("invalid enum value")

	// Lookup and tenancy errors
	ErrNotFound  = errors.New("not found")
	ErrForbidden = errors.New("forbidden")

	// Uniqueness errors
	ErrDuplicate           = errors.New("duplicate")
	ErrDuplicateMembership = fmt.Errorf("team membership already exists: %w", ErrDuplicate)

	// Credential state errors
	ErrInactiveKey      = errors.New("API key is inactive")
	ErrExpiredKey       = errors.New("API key has expired")
	ErrGenerationFailed = errors.New("could not generate a unique API key")
	ErrInvalidPassword  = errors.New("invalid email or password")

	// Billing
	ErrInsufficientCredits = errors.New("insufficient API credits")
)

// ValidationError describes a rejected input field. It matches ErrValidation under errors.Is.
type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	if e.Field == "" {
		return e.Message
	}
	return fmt.Sprintf("%s: %s", e.Field, e.Message)
}

// Is reports ErrValidation as the sentinel for every ValidationError.
func (e *ValidationError) Is(target error) bool {
	return target == ErrValidation
}

// Invalid builds a ValidationError for field.
func Invalid(field, format string, args ...any) error {
	return &ValidationError{Field: field, Message: fmt.Sprintf(format, args...)}
}

// HTTPStatus maps an error from the taxonomy to an HTTP status code.
// Unknown errors map to 500.
func HTTPStatus(err error) int {
	switch {
	case err == nil:
		return http.StatusOK
	case errors.Is(err, ErrValidation), errors.Is(err, ErrInvalidEnumValue):
		return http.StatusBadRequest
	case errors.Is(err, ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, ErrForbidden):
		return http.StatusForbidden
	case errors.Is(err, ErrDuplicate):
		return http.StatusConflict
	case errors.Is(err, ErrInactiveKey), errors.Is(err, ErrExpiredKey), errors.Is(err, ErrInvalidPassword):
		return http.StatusUnauthorized
	case errors.Is(err, ErrInsufficientCredits):
		return http.StatusPaymentRequired
	default:
		return http.StatusInternalServerError
	}
}

// PublicMessage returns the message safe to show to API callers. Internal errors are
// collapsed to a generic message so driver details never leak.
func PublicMessage(err error) string {
	if HTTPStatus(err) == http.StatusInternalServerError {
		return "Internal server error"
	}
	return err.Error()
}
