package api

import (
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/rayhanf/livetrack-companion/internal/event"
)

// heartbeatInterval is the interval for sending SSE heartbeat comments.
const heartbeatInterval = 20 * time.Second

// handleStream handles GET /api/v1/stream (SSE)
func (s *Server) handleStream(w http.ResponseWriter, r *http.Request) {
	// Check for streaming support
	flusher, ok := w.(http.Flusher)
	if !ok {
		writeError(w, http.StatusInternalServerError, "streaming not supported", nil)
		return
	}

	// Set SSE headers
	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.Header().Set("X-Accel-Buffering", "no") // Disable nginx buffering

	// Subscribe to hub
	sub := s.hub.Subscribe()
	defer s.hub.Unsubscribe(sub)

	// Send initial comment to establish connection
	fmt.Fprintf(w, ": connected\n\n")
	flusher.Flush()

	// Create heartbeat ticker
	ticker := time.NewTicker(heartbeatInterval)
	defer ticker.Stop()

	// Handle client disconnect
	ctx := r.Context()

	for {
		select {
		case e, ok := <-sub.Events():
			if !ok {
				// Channel closed, subscriber removed
				return
			}

			writeSSEEvent(w, e)
			flusher.Flush()

		case <-ticker.C:
			// Send heartbeat comment to keep connection alive
			fmt.Fprintf(w, ":\n\n")
			flusher.Flush()

		case <-ctx.Done():
			// Client disconnected
			return

		case <-sub.Done():
			// Subscriber removed (hub stopped)
			return
		}
	}
}

// writeSSEEvent writes a single live event in SSE format.
// The SSE event name is the live event kind, so browser clients can
// attach per-kind listeners.
func writeSSEEvent(w http.ResponseWriter, e *event.LiveEvent) {
	data, err := json.Marshal(e)
	if err != nil {
		return
	}

	fmt.Fprintf(w, "event: %s\n", e.Kind)
	fmt.Fprintf(w, "data: %s\n\n", data)
}
