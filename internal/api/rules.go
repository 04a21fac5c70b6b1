package api

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"

	"github.com/rayhanf/livetrack-companion/internal/app"
	"github.com/rayhanf/livetrack-companion/internal/store"
	"github.com/rayhanf/livetrack-companion/internal/trigger"
)

// keywordRuleResponse is the JSON shape for a keyword rule.
type keywordRuleResponse struct {
	ID              int64  `json:"id"`
	Keyword         string `json:"keyword"`
	MatchType       string `json:"match_type"`
	ActionType      string `json:"action_type"`
	DeviceTarget    string `json:"device_target"`
	CooldownSeconds int    `json:"cooldown_seconds"`
	IsActive        bool   `json:"is_active"`
}

// giftActionResponse is the JSON shape for a gift action.
type giftActionResponse struct {
	ID           int64  `json:"id"`
	GiftName     string `json:"gift_name"`
	ActionType   string `json:"action_type"`
	DeviceTarget string `json:"device_target"`
	IsActive     bool   `json:"is_active"`
}

func toKeywordRuleResponse(r trigger.KeywordRule) keywordRuleResponse {
	return keywordRuleResponse{
		ID:              r.ID,
		Keyword:         r.Keyword,
		MatchType:       r.MatchType,
		ActionType:      r.ActionType,
		DeviceTarget:    r.DeviceTarget,
		CooldownSeconds: r.CooldownSeconds,
		IsActive:        r.IsActive,
	}
}

func toGiftActionResponse(g trigger.GiftAction) giftActionResponse {
	return giftActionResponse{
		ID:           g.ID,
		GiftName:     g.GiftName,
		ActionType:   g.ActionType,
		DeviceTarget: g.DeviceTarget,
		IsActive:     g.IsActive,
	}
}

// decodeBody decodes a JSON request body with strict parsing and a size cap.
func decodeBody(w http.ResponseWriter, r *http.Request, v any) bool {
	// Limit request body size to 1MB to prevent DoS
	r.Body = http.MaxBytesReader(w, r.Body, 1<<20)

	decoder := json.NewDecoder(r.Body)
	decoder.DisallowUnknownFields() // Strict JSON parsing
	if err := decoder.Decode(v); err != nil {
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: "invalid request body"})
		return false
	}
	return true
}

// pathID parses the {id} path segment.
func pathID(w http.ResponseWriter, r *http.Request) (int64, bool) {
	id, err := strconv.ParseInt(r.PathValue("id"), 10, 64)
	if err != nil || id < 1 {
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: "invalid id"})
		return 0, false
	}
	return id, true
}

// handleListKeywordRules handles GET /api/v1/rules/keywords
func (s *Server) handleListKeywordRules(w http.ResponseWriter, r *http.Request) {
	rules, err := s.rules.ListKeywordRules(r.Context())
	if err != nil {
		writeError(w, http.StatusInternalServerError, "internal error", err)
		return
	}

	items := make([]keywordRuleResponse, 0, len(rules))
	for _, rule := range rules {
		items = append(items, toKeywordRuleResponse(rule))
	}
	writeJSON(w, http.StatusOK, map[string]any{"items": items})
}

// handleCreateKeywordRule handles POST /api/v1/rules/keywords
func (s *Server) handleCreateKeywordRule(w http.ResponseWriter, r *http.Request) {
	var req app.KeywordRuleRequest
	if !decodeBody(w, r, &req) {
		return
	}

	rule, err := s.rules.CreateKeywordRule(r.Context(), req)
	if err != nil {
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: err.Error()})
		return
	}

	writeJSON(w, http.StatusCreated, toKeywordRuleResponse(rule))
}

// keywordRuleUpdateRequest toggles a rule's active state.
type keywordRuleUpdateRequest struct {
	IsActive *bool `json:"is_active"`
}

// handleUpdateKeywordRule handles PUT /api/v1/rules/keywords/{id}
func (s *Server) handleUpdateKeywordRule(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r)
	if !ok {
		return
	}

	var req keywordRuleUpdateRequest
	if !decodeBody(w, r, &req) {
		return
	}
	if req.IsActive == nil {
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: "is_active is required"})
		return
	}

	if err := s.rules.SetKeywordRuleActive(r.Context(), id, *req.IsActive); err != nil {
		if errors.Is(err, store.ErrNotFound) {
			writeJSON(w, http.StatusNotFound, errorResponse{Error: "rule not found"})
			return
		}
		writeError(w, http.StatusInternalServerError, "internal error", err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]bool{"success": true})
}

// handleDeleteKeywordRule handles DELETE /api/v1/rules/keywords/{id}
func (s *Server) handleDeleteKeywordRule(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r)
	if !ok {
		return
	}

	if err := s.rules.DeleteKeywordRule(r.Context(), id); err != nil {
		if errors.Is(err, store.ErrNotFound) {
			writeJSON(w, http.StatusNotFound, errorResponse{Error: "rule not found"})
			return
		}
		writeError(w, http.StatusInternalServerError, "internal error", err)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

// handleListGiftActions handles GET /api/v1/rules/gifts
func (s *Server) handleListGiftActions(w http.ResponseWriter, r *http.Request) {
	actions, err := s.rules.ListGiftActions(r.Context())
	if err != nil {
		writeError(w, http.StatusInternalServerError, "internal error", err)
		return
	}

	items := make([]giftActionResponse, 0, len(actions))
	for _, action := range actions {
		items = append(items, toGiftActionResponse(action))
	}
	writeJSON(w, http.StatusOK, map[string]any{"items": items})
}

// handleCreateGiftAction handles POST /api/v1/rules/gifts
func (s *Server) handleCreateGiftAction(w http.ResponseWriter, r *http.Request) {
	var req app.GiftActionRequest
	if !decodeBody(w, r, &req) {
		return
	}

	action, err := s.rules.CreateGiftAction(r.Context(), req)
	if err != nil {
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: err.Error()})
		return
	}

	writeJSON(w, http.StatusCreated, toGiftActionResponse(action))
}

// handleDeleteGiftAction handles DELETE /api/v1/rules/gifts/{id}
func (s *Server) handleDeleteGiftAction(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r)
	if !ok {
		return
	}

	if err := s.rules.DeleteGiftAction(r.Context(), id); err != nil {
		if errors.Is(err, store.ErrNotFound) {
			writeJSON(w, http.StatusNotFound, errorResponse{Error: "gift action not found"})
			return
		}
		writeError(w, http.StatusInternalServerError, "internal error", err)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}
