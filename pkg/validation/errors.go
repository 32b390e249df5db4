package validation

import (
	"errors"
	"fmt"
	"net/http"
)

// ValidationError is a business-rule violation: invalid transition, missing
// approvals, incomplete plan. It is surfaced to the caller and rolls back
// the attempted operation in full.
type ValidationError struct {
	Code    string         `json:"code"`
	Message string         `json:"message"`
	Details map[string]any `json:"details,omitempty"`
}

func (e *ValidationError) Error() string { return e.Message }

func newValidationError(code, format string, args ...any) *ValidationError {
	return &ValidationError{Code: code, Message: fmt.Sprintf(format, args...)}
}

// NotFoundError signals that a referenced entity is absent.
type NotFoundError struct {
	Entity string `json:"entity"`
	ID     string `json:"id"`
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("%s %q not found", e.Entity, e.ID)
}

// ConflictError signals a concurrent-modification condition, such as an
// approval that is already resolved or a validator-independence violation.
// The caller must re-fetch and decide; the engine never resolves it.
type ConflictError struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

func (e *ConflictError) Error() string { return e.Message }

func newConflictError(code, format string, args ...any) *ConflictError {
	return &ConflictError{Code: code, Message: fmt.Sprintf(format, args...)}
}

// AuthorizationError signals a role or region mismatch. No partial effect.
type AuthorizationError struct {
	Message string `json:"message"`
}

func (e *AuthorizationError) Error() string { return e.Message }

func newAuthorizationError(format string, args ...any) *AuthorizationError {
	return &AuthorizationError{Message: fmt.Sprintf(format, args...)}
}

// ConfigurationError signals missing required reference data (no active
// configuration, unseeded taxonomy). It is a deployment fault, not a user
// error.
type ConfigurationError struct {
	Message string `json:"message"`
}

func (e *ConfigurationError) Error() string { return e.Message }

func newConfigurationError(format string, args ...any) *ConfigurationError {
	return &ConfigurationError{Message: fmt.Sprintf(format, args...)}
}

// statusForError maps the error taxonomy onto HTTP status codes.
func statusForError(err error) int {
	var (
		ve *ValidationError
		nf *NotFoundError
		ce *ConflictError
		ae *AuthorizationError
	)
	switch {
	case errors.As(err, &ve):
		return http.StatusUnprocessableEntity
	case errors.As(err, &nf):
		return http.StatusNotFound
	case errors.As(err, &ce):
		return http.StatusConflict
	case errors.As(err, &ae):
		return http.StatusForbidden
	default:
		return http.StatusInternalServerError
	}
}
