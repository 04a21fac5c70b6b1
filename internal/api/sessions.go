package api

import (
	"net/http"
	"strconv"

	"github.com/rayhanf/livetrack-companion/internal/session"
	"github.com/rayhanf/livetrack-companion/internal/store"
)

// sessionsResponse represents the response for the sessions endpoint.
type sessionsResponse struct {
	Items []store.Session `json:"items"`
}

// leaderboardResponse represents the response for the leaderboard endpoint.
type leaderboardResponse struct {
	Items []session.GifterStanding `json:"items"`
}

// handleSessions handles GET /api/v1/sessions
func (s *Server) handleSessions(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()

	var accountID int64
	if a := q.Get("account_id"); a != "" {
		id, err := strconv.ParseInt(a, 10, 64)
		if err != nil || id < 1 {
			writeJSON(w, http.StatusBadRequest, errorResponse{Error: "invalid account_id"})
			return
		}
		accountID = id
	}

	limit := 0
	if l := q.Get("limit"); l != "" {
		n, err := strconv.Atoi(l)
		if err != nil || n < 1 {
			writeJSON(w, http.StatusBadRequest, errorResponse{Error: "invalid limit"})
			return
		}
		limit = n
	}

	items, err := s.sessions.List(r.Context(), accountID, limit)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "internal error", err)
		return
	}

	resp := sessionsResponse{Items: items}
	// Ensure Items is an empty array, not null, for JSON serialization
	if resp.Items == nil {
		resp.Items = []store.Session{}
	}

	writeJSON(w, http.StatusOK, resp)
}

// handleLeaderboard handles GET /api/v1/sessions/{id}/leaderboard
func (s *Server) handleLeaderboard(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.ParseInt(r.PathValue("id"), 10, 64)
	if err != nil || id < 1 {
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: "invalid session id"})
		return
	}

	items, err := s.sessions.Leaderboard(r.Context(), id)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "internal error", err)
		return
	}

	resp := leaderboardResponse{Items: items}
	if resp.Items == nil {
		resp.Items = []session.GifterStanding{}
	}

	writeJSON(w, http.StatusOK, resp)
}
