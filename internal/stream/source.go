// Package stream provides live event ingestion from a TikTok Live relay.
package stream

import (
	"context"

	"github.com/rayhanf/livetrack-companion/internal/normalize"
)

// Source abstracts raw event production for testing.
// Implementations should close both channels when ctx is cancelled or on fatal error.
type Source interface {
	// Start begins producing events. Returns channels that close on ctx.Done().
	// The error channel may receive multiple non-fatal errors during operation.
	Start(ctx context.Context) (<-chan normalize.RawEvent, <-chan error, error)
}

// DecodeError wraps a decode failure with the original message payload.
type DecodeError struct {
	Payload string
	Err     error
}

// Error implements the error interface.
func (e *DecodeError) Error() string {
	if e.Err != nil {
		return e.Err.Error()
	}
	return "decode error"
}

// Unwrap returns the underlying error.
func (e *DecodeError) Unwrap() error {
	return e.Err
}
