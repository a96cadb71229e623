package service

import (
	"errors"
	"fmt"

	"gorm.io/gorm"
)

// Common service errors
var (
	// ErrNotFound is returned when a deal, version or document is absent, or
	// the caller's company is not a party to the deal
	ErrNotFound = errors.New("resource not found")

	// ErrInvalidInput is returned when input validation fails
	ErrInvalidInput = errors.New("invalid input")

	// ErrConflict is returned when the operation is illegal in the current
	// negotiation state, e.g. mutating a rejected version
	ErrConflict = errors.New("resource conflict")

	// ErrStorage is returned when the object store fails
	ErrStorage = errors.New("storage failure")

	// ErrForbidden is returned when the deal exists but the caller is not a party to it
	ErrForbidden = errors.New("forbidden")

	// ErrUnauthorized is returned when no company could be resolved for the caller
	ErrUnauthorized = errors.New("unauthorized")
)

// notFoundOr maps gorm.ErrRecordNotFound to ErrNotFound and wraps anything else
func notFoundOr(err error, what string) error {
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return fmt.Errorf("%w: %s", ErrNotFound, what)
	}
	return fmt.Errorf("failed to load %s: %w", what, err)
}
