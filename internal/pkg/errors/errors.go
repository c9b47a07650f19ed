package errors

import (
	"errors"
	"fmt"
)

var (
	ErrNotFound          = errors.New("not found")
	ErrUnauthorized      = errors.New("unauthorized")
	ErrForbidden         = errors.New("forbidden")
	ErrInvalid           = errors.New("invalid")
	ErrConflict          = errors.New("conflict")
	ErrInternal          = errors.New("internal")
	ErrDimensionMismatch = errors.New("embedding dimension mismatch")
	ErrStore             = errors.New("store error")
)

// Wrap attaches a sentinel to an underlying cause so callers can match
// with errors.Is while keeping the original message.
func Wrap(sentinel, cause error) error {
	return fmt.Errorf("%w: %v", sentinel, cause)
}

func IsNotFound(err error) bool {
	return errors.Is(err, ErrNotFound)
}

func IsConflict(err error) bool {
	return errors.Is(err, ErrConflict)
}
