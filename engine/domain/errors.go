package domain

import (
	"errors"
	"fmt"
)

// Sentinel errors for validation and boundary failures.
var (
	ErrEmptyQuestion      = errors.New("question is empty")
	ErrQuestionTooLong    = errors.New("question too long")
	ErrUnsafeQuery        = errors.New("query contains a mutating clause")
	ErrMalformedQuery     = errors.New("query rejected by the database")
	ErrBackendUnavailable = errors.New("backend unavailable")
)

// ValidationError wraps a sentinel with the offending field and value.
type ValidationError struct {
	Field   string
	Value   string
	Wrapped error
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("validation: %s: %s (value=%q)", e.Wrapped, e.Field, e.Value)
}

func (e *ValidationError) Unwrap() error { return e.Wrapped }

// NewValidationError creates a ValidationError.
func NewValidationError(field, value string, wrapped error) *ValidationError {
	return &ValidationError{Field: field, Value: value, Wrapped: wrapped}
}
