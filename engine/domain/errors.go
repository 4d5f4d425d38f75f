package domain

import (
	"errors"
	"fmt"
)

// Sentinel errors.
var (
	ErrProviderUnavailable = errors.New("provider unavailable")
	ErrEmptyInput          = errors.New("empty input")
	ErrMalformedMetadata   = errors.New("malformed metadata")
	ErrInvalidThreshold    = errors.New("invalid threshold")
	ErrInvalidDestination  = errors.New("invalid destination")
	ErrInvalidFixture      = errors.New("invalid fixture")
	ErrQueryTooLong        = errors.New("query too long")
)

// ValidationError wraps a sentinel with context.
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

// ProviderError reports a failed call to an embedding or similarity provider.
// It matches both ErrProviderUnavailable and the underlying cause.
type ProviderError struct {
	Op       string // embed, search, upsert, count
	Provider string
	Err      error
}

func (e *ProviderError) Error() string {
	return fmt.Sprintf("%s: %s %s: %v", ErrProviderUnavailable, e.Provider, e.Op, e.Err)
}

func (e *ProviderError) Unwrap() []error {
	return []error{ErrProviderUnavailable, e.Err}
}

// NewProviderError wraps err as a ProviderError. A nil err returns nil.
func NewProviderError(provider, op string, err error) error {
	if err == nil {
		return nil
	}
	var pe *ProviderError
	if errors.As(err, &pe) {
		return err
	}
	return &ProviderError{Op: op, Provider: provider, Err: err}
}
