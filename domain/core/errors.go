package core

import (
	"errors"
	"fmt"
)

// Domain errors - centralized error definitions
var (
	// Not found errors
	ErrNotFound         = errors.New("resource not found")
	ErrTemplateNotFound = fmt.Errorf("%w: feedback template", ErrNotFound)
	ErrResultNotFound   = fmt.Errorf("%w: enriched result", ErrNotFound)

	// Validation errors
	ErrInvalidResult   = errors.New("invalid enriched result")
	ErrInvalidTemplate = errors.New("invalid feedback template")
)

// NewNotFoundError builds a not-found error carrying the resource and id
func NewNotFoundError(resource string, id string) error {
	return fmt.Errorf("%w: %s with id %s", ErrNotFound, resource, id)
}

// NewInvalidResultError wraps ErrInvalidResult with a reason
func NewInvalidResultError(reason string) error {
	return fmt.Errorf("%w: %s", ErrInvalidResult, reason)
}

// IsNotFoundError reports whether err is any not-found error
func IsNotFoundError(err error) bool {
	return errors.Is(err, ErrNotFound)
}

// IsValidationError reports whether err is a domain validation error
func IsValidationError(err error) bool {
	return errors.Is(err, ErrInvalidResult) || errors.Is(err, ErrInvalidTemplate)
}
