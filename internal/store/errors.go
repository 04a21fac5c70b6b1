package store

import "errors"

// Sentinel errors for the store package.
var (
	// ErrNotFound is returned when a requested row does not exist.
	ErrNotFound = errors.New("not found")

	// ErrInvalidCursor is returned when a cursor cannot be decoded.
	ErrInvalidCursor = errors.New("invalid cursor format")

	// ErrInvalidLog is returned when a log entry fails validation.
	ErrInvalidLog = errors.New("invalid log entry")

	// ErrSessionClosed is returned when writing to an already ended session.
	ErrSessionClosed = errors.New("session already ended")
)
