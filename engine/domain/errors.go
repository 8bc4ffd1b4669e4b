package domain

import (
	"errors"
	"fmt"
)

// Sentinel errors for the pipeline failure taxonomy.
var (
	ErrEmbedding      = errors.New("embedding service failure")
	ErrVectorIndex    = errors.New("vector index failure")
	ErrMissingField   = errors.New("required field missing")
	ErrInvalidDate    = errors.New("unrecognized date format")
	ErrInvalidMetaKey = errors.New("invalid metadata key")
)

// FetchError is a network or HTTP-level failure reaching the source site or
// an external API.
type FetchError struct {
	URL    string
	Status int
	Err    error
}

func (e *FetchError) Error() string {
	if e.Status != 0 {
		return fmt.Sprintf("fetch %s: status %d", e.URL, e.Status)
	}
	return fmt.Sprintf("fetch %s: %v", e.URL, e.Err)
}

func (e *FetchError) Unwrap() error { return e.Err }

// ParseError marks expected markup or a field absent from a fetched page.
type ParseError struct {
	URL  string
	What string
}

func (e *ParseError) Error() string {
	return fmt.Sprintf("parse %s: %s not found", e.URL, e.What)
}

// ValidationError wraps a sentinel with field context. It is raised before
// any remote call so no partially-applied state can result.
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
