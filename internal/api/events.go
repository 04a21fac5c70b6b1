package api

import (
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/rayhanf/livetrack-companion/internal/store"
)

// handleGiftLogs handles GET /api/v1/events/gifts
func (s *Server) handleGiftLogs(w http.ResponseWriter, r *http.Request) {
	filter, err := parseLogFilter(r)
	if err != nil {
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: err.Error()})
		return
	}

	result, err := s.events.QueryGifts(r.Context(), filter)
	if err != nil {
		if errors.Is(err, store.ErrInvalidCursor) {
			writeJSON(w, http.StatusBadRequest, errorResponse{Error: "invalid cursor"})
			return
		}
		writeError(w, http.StatusInternalServerError, "internal error", err)
		return
	}

	// Ensure Items is an empty array, not null, for JSON serialization
	if result.Items == nil {
		result.Items = []store.GiftLog{}
	}

	writeJSON(w, http.StatusOK, result)
}

// handleCommentLogs handles GET /api/v1/events/comments
func (s *Server) handleCommentLogs(w http.ResponseWriter, r *http.Request) {
	filter, err := parseLogFilter(r)
	if err != nil {
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: err.Error()})
		return
	}

	result, err := s.events.QueryComments(r.Context(), filter)
	if err != nil {
		if errors.Is(err, store.ErrInvalidCursor) {
			writeJSON(w, http.StatusBadRequest, errorResponse{Error: "invalid cursor"})
			return
		}
		writeError(w, http.StatusInternalServerError, "internal error", err)
		return
	}

	if result.Items == nil {
		result.Items = []store.CommentLog{}
	}

	writeJSON(w, http.StatusOK, result)
}

// parseLogFilter parses query parameters into a LogFilter.
func parseLogFilter(r *http.Request) (store.LogFilter, error) {
	var filter store.LogFilter
	q := r.URL.Query()

	// Parse 'session_id'
	if sid := q.Get("session_id"); sid != "" {
		id, err := strconv.ParseInt(sid, 10, 64)
		if err != nil || id < 1 {
			return filter, fmt.Errorf("invalid session_id: %s", sid)
		}
		filter.SessionID = id
	}

	// Parse 'since' (RFC3339)
	if s := q.Get("since"); s != "" {
		t, err := time.Parse(time.RFC3339, s)
		if err != nil {
			return filter, fmt.Errorf("invalid since: %w", err)
		}
		filter.Since = &t
	}

	// Parse 'until' (RFC3339)
	if u := q.Get("until"); u != "" {
		t, err := time.Parse(time.RFC3339, u)
		if err != nil {
			return filter, fmt.Errorf("invalid until: %w", err)
		}
		filter.Until = &t
	}

	// Parse 'limit'
	if l := q.Get("limit"); l != "" {
		limit, err := strconv.Atoi(l)
		if err != nil || limit < 1 {
			return filter, fmt.Errorf("invalid limit: %s", l)
		}
		filter.Limit = limit
	}

	// Parse 'cursor'
	if c := q.Get("cursor"); c != "" {
		filter.Cursor = &c
	}

	return filter, nil
}
