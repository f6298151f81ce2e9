package domain

import (
	"errors"
	"fmt"
)

var (
	// ErrValidation marks every error caused by bad registry input.
	ErrValidation = errors.New("validation failed")
	// ErrDuplicateURL is returned when a URL is already registered. It also
	// matches ErrValidation.
	ErrDuplicateURL = fmt.Errorf("%w: url already registered", ErrValidation)
	ErrNotFound     = errors.New("not found")
)

// ValidationError describes which field of a MonitoredAPI was rejected.
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("invalid %s: %s", e.Field, e.Reason)
}

func (e *ValidationError) Unwrap() error { return ErrValidation }

func invalid(field, reason string) error {
	return &ValidationError{Field: field, Reason: reason}
}

// DuplicateURL wraps ErrDuplicateURL with the offending url.
func DuplicateURL(url string) error {
	return fmt.Errorf("%w: %s", ErrDuplicateURL, url)
}
