package api

import (
	"context"
	"io/fs"
	"net/http"
	"time"

	"github.com/rayhanf/livetrack-companion/internal/app"
)

// Server represents the HTTP API server.
type Server struct {
	httpServer *http.Server
	mux        *http.ServeMux

	// Use case dependencies
	health   app.HealthUsecase
	stats    app.StatsUsecase
	sessions app.SessionsUsecase
	events   app.EventsUsecase
	rules    app.RulesUsecase

	// SSE hub
	hub *Hub

	// Auth configuration
	authEnabled  bool
	authUsername string
	authPassword string
	authFailures *AuthFailureLimiter
	sseSecret    []byte

	// LAN mode hardening
	rateLimiter  *RateLimiter
	allowedHosts []string
	cors         *CORSConfig

	// Embedded web UI
	staticFS fs.FS
}

// ServerOption configures a Server.
type ServerOption func(*Server)

// WithStatsUsecase sets the stats use case.
func WithStatsUsecase(stats app.StatsUsecase) ServerOption {
	return func(s *Server) { s.stats = stats }
}

// WithSessionsUsecase sets the session history use case.
func WithSessionsUsecase(sessions app.SessionsUsecase) ServerOption {
	return func(s *Server) { s.sessions = sessions }
}

// WithEventsUsecase sets the event log query use case.
func WithEventsUsecase(events app.EventsUsecase) ServerOption {
	return func(s *Server) { s.events = events }
}

// WithRulesUsecase sets the trigger rule management use case.
func WithRulesUsecase(rules app.RulesUsecase) ServerOption {
	return func(s *Server) { s.rules = rules }
}

// WithHub sets the SSE hub.
func WithHub(hub *Hub) ServerOption {
	return func(s *Server) { s.hub = hub }
}

// WithBasicAuth enables HTTP Basic Auth.
func WithBasicAuth(username, password string) ServerOption {
	return func(s *Server) {
		if username != "" && password != "" {
			s.authEnabled = true
			s.authUsername = username
			s.authPassword = password
			s.authFailures = NewAuthFailureLimiter(DefaultAuthFailureLimiterConfig())
		}
	}
}

// WithSSESecret enables token auth for the SSE stream endpoint.
// EventSource cannot set an Authorization header, so browsers fetch a
// short-lived token over Basic Auth and pass it as a query parameter.
func WithSSESecret(secret []byte) ServerOption {
	return func(s *Server) {
		if len(secret) > 0 {
			s.sseSecret = secret
		}
	}
}

// WithRateLimiter enables IP-based request rate limiting.
func WithRateLimiter(rl *RateLimiter) ServerOption {
	return func(s *Server) { s.rateLimiter = rl }
}

// WithAllowedHosts sets additional hosts accepted by the CSRF origin
// check. Localhost variants are always allowed.
func WithAllowedHosts(hosts []string) ServerOption {
	return func(s *Server) { s.allowedHosts = hosts }
}

// WithCORS enables CORS handling for the given origin allowlist.
func WithCORS(cfg CORSConfig) ServerOption {
	return func(s *Server) { s.cors = &cfg }
}

// WithStaticFS serves the embedded web UI at the root path.
func WithStaticFS(webFS fs.FS) ServerOption {
	return func(s *Server) { s.staticFS = webFS }
}

// NewServer creates a new API server with the given dependencies.
func NewServer(addr string, health app.HealthUsecase, opts ...ServerOption) *Server {
	mux := http.NewServeMux()
	s := &Server{
		mux:    mux,
		health: health,
	}
	for _, opt := range opts {
		opt(s)
	}
	s.registerRoutes()

	var handler http.Handler = mux
	handler = csrfMiddleware(s.allowedHosts)(handler)
	handler = securityHeadersMiddleware(handler)
	if s.cors != nil {
		handler = corsMiddleware(*s.cors)(handler)
	}
	if s.rateLimiter != nil {
		handler = s.rateLimiter.Middleware(handler)
	}

	s.httpServer = &http.Server{
		Addr:         addr,
		Handler:      handler,
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 0, // Disable for SSE (long-lived connections)
		IdleTimeout:  60 * time.Second,
	}
	return s
}

// wrapAuth wraps a handler with auth middleware if auth is enabled.
func (s *Server) wrapAuth(h http.Handler) http.Handler {
	if !s.authEnabled {
		return h
	}
	return basicAuthMiddleware(s.authUsername, s.authPassword, s.authFailures)(h)
}

// wrapStreamAuth wraps the SSE endpoint. Accepts either Basic Auth or a
// short-lived query token when a secret is configured.
func (s *Server) wrapStreamAuth(h http.Handler) http.Handler {
	if !s.authEnabled {
		return h
	}
	if len(s.sseSecret) > 0 {
		return sseTokenMiddleware(s.authUsername, s.authPassword, s.sseSecret)(h)
	}
	return basicAuthMiddleware(s.authUsername, s.authPassword, s.authFailures)(h)
}

// registerRoutes sets up the API routes.
func (s *Server) registerRoutes() {
	// Health endpoint (no auth required)
	s.mux.HandleFunc("GET /api/v1/health", s.handleHealth)

	if s.stats != nil {
		s.mux.Handle("GET /api/v1/stats", s.wrapAuth(http.HandlerFunc(s.handleStats)))
	}

	if s.sessions != nil {
		s.mux.Handle("GET /api/v1/sessions", s.wrapAuth(http.HandlerFunc(s.handleSessions)))
		s.mux.Handle("GET /api/v1/sessions/{id}/leaderboard", s.wrapAuth(http.HandlerFunc(s.handleLeaderboard)))
	}

	if s.events != nil {
		s.mux.Handle("GET /api/v1/events/gifts", s.wrapAuth(http.HandlerFunc(s.handleGiftLogs)))
		s.mux.Handle("GET /api/v1/events/comments", s.wrapAuth(http.HandlerFunc(s.handleCommentLogs)))
	}

	if s.rules != nil {
		s.mux.Handle("GET /api/v1/rules/keywords", s.wrapAuth(http.HandlerFunc(s.handleListKeywordRules)))
		s.mux.Handle("POST /api/v1/rules/keywords", s.wrapAuth(http.HandlerFunc(s.handleCreateKeywordRule)))
		s.mux.Handle("PUT /api/v1/rules/keywords/{id}", s.wrapAuth(http.HandlerFunc(s.handleUpdateKeywordRule)))
		s.mux.Handle("DELETE /api/v1/rules/keywords/{id}", s.wrapAuth(http.HandlerFunc(s.handleDeleteKeywordRule)))
		s.mux.Handle("GET /api/v1/rules/gifts", s.wrapAuth(http.HandlerFunc(s.handleListGiftActions)))
		s.mux.Handle("POST /api/v1/rules/gifts", s.wrapAuth(http.HandlerFunc(s.handleCreateGiftAction)))
		s.mux.Handle("DELETE /api/v1/rules/gifts/{id}", s.wrapAuth(http.HandlerFunc(s.handleDeleteGiftAction)))
	}

	// SSE stream endpoint
	if s.hub != nil {
		s.mux.Handle("GET /api/v1/stream", s.wrapStreamAuth(http.HandlerFunc(s.handleStream)))
	}

	// SSE token endpoint (Basic Auth protected)
	if s.authEnabled && len(s.sseSecret) > 0 {
		s.mux.Handle("POST /api/v1/auth/token", s.wrapAuth(http.HandlerFunc(s.handleAuthToken)))
	}

	// Embedded web UI with SPA fallback
	if s.staticFS != nil {
		if spa, err := newSPAHandler(s.staticFS); err == nil {
			s.mux.Handle("/", s.wrapAuth(spa))
		}
	}
}

// handleHealth handles the health check endpoint.
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	result, err := s.health.Handle(r.Context())
	if err != nil {
		http.Error(w, "internal error", http.StatusInternalServerError)
		return
	}
	writeJSON(w, http.StatusOK, result)
}

// Handler returns the fully wrapped HTTP handler, for tests that serve
// through httptest instead of ListenAndServe.
func (s *Server) Handler() http.Handler {
	return s.httpServer.Handler
}

// Start starts the HTTP server.
func (s *Server) Start() error {
	return s.httpServer.ListenAndServe()
}

// Shutdown gracefully shuts down the server.
func (s *Server) Shutdown(ctx context.Context) error {
	return s.httpServer.Shutdown(ctx)
}

// Addr returns the server address.
func (s *Server) Addr() string {
	return s.httpServer.Addr
}
