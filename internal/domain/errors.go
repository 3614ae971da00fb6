// Package domain contains the core domain models and types.
package domain

import (
	"errors"
	"fmt"
)

// Sentinel errors for common failure cases.
var (
	// ErrInvalidInput indicates the triage request is not a structured object.
	ErrInvalidInput = errors.New("input must be a JSON object")

	// ErrConfigUnavailable indicates the rule, diet tag or department data
	// could not be loaded.
	ErrConfigUnavailable = errors.New("triage configuration unavailable")

	// ErrInvalidConfig indicates invalid configuration.
	ErrInvalidConfig = errors.New("invalid configuration")
)

// TriageError wraps an error with the operation that produced it.
type TriageError struct {
	// Op is the operation that failed.
	Op string

	// Err is the underlying error.
	Err error
}

// Error implements the error interface.
func (e *TriageError) Error() string {
	if e.Op != "" {
		return fmt.Sprintf("%s: %v", e.Op, e.Err)
	}
	return e.Err.Error()
}

// Unwrap returns the underlying error.
func (e *TriageError) Unwrap() error {
	return e.Err
}

// WrapError creates a new TriageError with context.
func WrapError(op string, err error) *TriageError {
	return &TriageError{
		Op:  op,
		Err: err,
	}
}

// IsInvalidInput reports whether err is caused by a malformed request.
func IsInvalidInput(err error) bool {
	return errors.Is(err, ErrInvalidInput)
}

// IsConfigUnavailable reports whether err is caused by missing or broken
// triage configuration.
func IsConfigUnavailable(err error) bool {
	return errors.Is(err, ErrConfigUnavailable)
}
