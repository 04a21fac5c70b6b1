//go:build integration

// Package integration provides end-to-end integration tests for the LiveTrack Companion API.
package integration

import (
	"context"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/rayhanf/livetrack-companion/internal/api"
	"github.com/rayhanf/livetrack-companion/internal/app"
	"github.com/rayhanf/livetrack-companion/internal/store"
)

// TestApp holds all dependencies for integration tests.
type TestApp struct {
	Server    *httptest.Server
	Store     *store.Store
	Hub       *api.Hub
	AccountID int64
	SessionID int64

	// Cleanup function to release resources
	cleanup func()
}

// NewTestApp creates a new test application with all dependencies wired up.
// The store starts with one registered account and one live session so log
// inserts have a row to attach to. Call Close() when done.
func NewTestApp(t *testing.T, opts ...TestAppOption) *TestApp {
	t.Helper()

	cfg := &testAppConfig{
		authEnabled: false,
		username:    "admin",
		password:    "password",
		sseSecret:   []byte("test-secret-key-32-bytes-long!!"),
	}
	for _, opt := range opts {
		opt(cfg)
	}

	// Create temporary directory for test database
	tmpDir, err := os.MkdirTemp("", "livetrack-integration-*")
	if err != nil {
		t.Fatalf("failed to create temp dir: %v", err)
	}

	dbPath := filepath.Join(tmpDir, "test.sqlite")
	st, err := store.Open(dbPath)
	if err != nil {
		os.RemoveAll(tmpDir)
		t.Fatalf("failed to open store: %v", err)
	}

	ctx := context.Background()
	accountID, err := st.EnsureAccount(ctx, "teststreamer")
	if err != nil {
		st.Close()
		os.RemoveAll(tmpDir)
		t.Fatalf("failed to create account: %v", err)
	}
	sess, err := st.CreateSession(ctx, accountID, time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC))
	if err != nil {
		st.Close()
		os.RemoveAll(tmpDir)
		t.Fatalf("failed to create session: %v", err)
	}

	// Create services
	healthService := app.HealthService{Version: "test"}
	eventsService := &app.EventsService{Store: st}
	sessionsService := &app.SessionsService{Store: st}
	hub := api.NewHub()

	// Start hub
	go hub.Run()

	// Build server options
	serverOpts := []api.ServerOption{
		api.WithEventsUsecase(eventsService),
		api.WithSessionsUsecase(sessionsService),
		api.WithHub(hub),
		api.WithSSESecret(cfg.sseSecret),
	}

	if cfg.authEnabled {
		serverOpts = append(serverOpts, api.WithBasicAuth(cfg.username, cfg.password))
	}

	// Create server (addr is ignored for httptest)
	server := api.NewServer("127.0.0.1:0", healthService, serverOpts...)

	// Create test server
	ts := httptest.NewServer(server.Handler())

	cleanup := func() {
		ts.Close()
		hub.Stop()
		st.Close()
		os.RemoveAll(tmpDir)
	}

	return &TestApp{
		Server:    ts,
		Store:     st,
		Hub:       hub,
		AccountID: accountID,
		SessionID: sess.ID,
		cleanup:   cleanup,
	}
}

// Close releases all resources.
func (app *TestApp) Close() {
	if app.cleanup != nil {
		app.cleanup()
	}
}

// URL returns the base URL of the test server.
func (app *TestApp) URL() string {
	return app.Server.URL
}

// InsertTestGift inserts a gift log into the live session.
func (app *TestApp) InsertTestGift(t *testing.T, username, giftName string, value float64) {
	t.Helper()

	g := &store.GiftLog{
		SessionID:   app.SessionID,
		Ts:          time.Now().UTC(),
		Username:    username,
		GiftName:    giftName,
		GiftValue:   value,
		RepeatCount: 1,
	}
	if err := app.Store.InsertGiftLog(context.Background(), g); err != nil {
		t.Fatalf("failed to insert gift log: %v", err)
	}
}

// InsertTestComment inserts a comment log into the live session.
func (app *TestApp) InsertTestComment(t *testing.T, username, comment string) {
	t.Helper()

	c := &store.CommentLog{
		SessionID: app.SessionID,
		Ts:        time.Now().UTC(),
		Username:  username,
		Comment:   comment,
	}
	if err := app.Store.InsertCommentLog(context.Background(), c); err != nil {
		t.Fatalf("failed to insert comment log: %v", err)
	}
}

// testAppConfig holds configuration for test app.
type testAppConfig struct {
	authEnabled bool
	username    string
	password    string
	sseSecret   []byte
}

// TestAppOption configures a test app.
type TestAppOption func(*testAppConfig)

// WithAuth enables authentication for the test app.
func WithAuth(username, password string) TestAppOption {
	return func(cfg *testAppConfig) {
		cfg.authEnabled = true
		cfg.username = username
		cfg.password = password
	}
}
