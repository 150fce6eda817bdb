package store

import "errors"

// Domain-specific errors for the dead letter store.
// Use errors.Is() to check for these errors in calling code.
var (
	// ErrNotFound indicates no dead letter exists with the given ID.
	ErrNotFound = errors.New("dead letter not found")

	// ErrInvalidDeadLetter indicates a record that cannot be stored.
	ErrInvalidDeadLetter = errors.New("invalid dead letter")

	// ErrDuplicateID indicates a dead letter with this correlation ID is
	// already recorded.
	ErrDuplicateID = errors.New("duplicate dead letter id")
)
