package domain

import (
	"errors"
	"fmt"
)

// Common domain errors
var (
	// ErrProcessNotRunning is returned when a command or stop is directed
	// at a process that has already exited.
	ErrProcessNotRunning = errors.New("server process not running")

	// ErrStopTimeout is returned when a graceful stop ran out of time and
	// the process had to be killed.
	ErrStopTimeout = errors.New("timed out waiting for server process to exit")
)

// ValidationError indicates that a configuration value failed validation.
type ValidationError struct {
	Field   string
	Message string
}

// Error returns the error message.
func (e *ValidationError) Error() string {
	return fmt.Sprintf("validation failed for field %s: %s", e.Field, e.Message)
}

// NewValidationError creates a new ValidationError.
func NewValidationError(field, message string) *ValidationError {
	return &ValidationError{
		Field:   field,
		Message: message,
	}
}
