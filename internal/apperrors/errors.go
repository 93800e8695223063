package apperrors

import (
	"errors"
	"fmt"
)

var (
	ErrValidation      = errors.New("validation failed")
	ErrStorage         = errors.New("storage unavailable")
	ErrConflict        = errors.New("storage slot already occupied")
	ErrUnauthenticated = errors.New("not authenticated")
	ErrConfiguration   = errors.New("invalid configuration")
)

// ValidationError reports input that violates a policy. It is always the
// caller's fault and must not be retried.
type ValidationError struct {
	Field  string
	Reason string
}

func NewValidationError(field, reason string) *ValidationError {
	return &ValidationError{Field: field, Reason: reason}
}

func (e *ValidationError) Error() string {
	if e.Field == "" {
		return fmt.Sprintf("validation failed: %s", e.Reason)
	}
	return fmt.Sprintf("validation failed: %s: %s", e.Field, e.Reason)
}

func (e *ValidationError) Is(target error) bool {
	return target == ErrValidation
}

// StorageError wraps a backend failure with the operation and the resource
// (table, bucket, path) it was issued against.
type StorageError struct {
	Op       string
	Resource string
	Err      error
}

func NewStorageError(op, resource string, err error) *StorageError {
	return &StorageError{Op: op, Resource: resource, Err: err}
}

func (e *StorageError) Error() string {
	return fmt.Sprintf("storage %s on %s failed: %v", e.Op, e.Resource, e.Err)
}

func (e *StorageError) Is(target error) bool {
	return target == ErrStorage
}

func (e *StorageError) Unwrap() error {
	return e.Err
}

// Code returns a short machine readable code for err, used in HTTP bodies.
func Code(err error) string {
	switch {
	case errors.Is(err, ErrConflict):
		return "conflict"
	case errors.Is(err, ErrValidation):
		return "validation_error"
	case errors.Is(err, ErrUnauthenticated):
		return "unauthenticated"
	case errors.Is(err, ErrStorage):
		return "storage_error"
	case errors.Is(err, ErrConfiguration):
		return "configuration_error"
	default:
		return "internal_error"
	}
}
