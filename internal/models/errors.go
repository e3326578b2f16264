package models

import (
	"errors"
	"fmt"
	"strings"
)

// ErrNotFound is returned when a requested record does not exist.
var ErrNotFound = errors.New("not found")

// ValidationError reports malformed input rejected before it reaches the engine.
type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	if e.Field == "" {
		return "validation failed: " + e.Message
	}
	return fmt.Sprintf("invalid %s: %s", e.Field, e.Message)
}

// NewValidationError creates a ValidationError for a field.
func NewValidationError(field, format string, args ...any) *ValidationError {
	return &ValidationError{Field: field, Message: fmt.Sprintf(format, args...)}
}

// ConflictError reports a lost race against the backend's precondition checks,
// such as assigning a mission that is no longer OPEN or deleting a missing alert.
// Callers must re-fetch rather than retry.
type ConflictError struct {
	Resource string
	ID       string
	Reason   string
}

func (e *ConflictError) Error() string {
	msg := fmt.Sprintf("%s %s unavailable", e.Resource, e.ID)
	if e.Reason != "" {
		msg += ": " + e.Reason
	}
	return msg
}

// TransientNetworkError wraps a fetch or poll failure that is expected to
// clear on a later attempt.
type TransientNetworkError struct {
	Op  string
	Err error
}

func (e *TransientNetworkError) Error() string {
	return fmt.Sprintf("%s: transient network error: %v", e.Op, e.Err)
}

func (e *TransientNetworkError) Unwrap() error {
	return e.Err
}

// UnderspecifiedDataError reports a camp or disaster record that lacks
// predicted fields. Consumers degrade to the fallback estimator.
type UnderspecifiedDataError struct {
	Entity  string
	ID      string
	Missing []string
}

func (e *UnderspecifiedDataError) Error() string {
	return fmt.Sprintf("%s %s missing fields: %s", e.Entity, e.ID, strings.Join(e.Missing, ", "))
}

// IsValidation reports whether err is or wraps a ValidationError.
func IsValidation(err error) bool {
	var ve *ValidationError
	return errors.As(err, &ve)
}

// IsConflict reports whether err is or wraps a ConflictError.
func IsConflict(err error) bool {
	var ce *ConflictError
	return errors.As(err, &ce)
}

// IsTransient reports whether err is or wraps a TransientNetworkError.
func IsTransient(err error) bool {
	var te *TransientNetworkError
	return errors.As(err, &te)
}

// IsUnderspecified reports whether err is or wraps an UnderspecifiedDataError.
func IsUnderspecified(err error) bool {
	var ue *UnderspecifiedDataError
	return errors.As(err, &ue)
}
