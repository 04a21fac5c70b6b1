package app

import (
	"context"

	"github.com/rayhanf/livetrack-companion/internal/session"
	"github.com/rayhanf/livetrack-companion/internal/store"
)

// SessionsUsecase defines the session history use case.
type SessionsUsecase interface {
	List(ctx context.Context, accountID int64, limit int) ([]store.Session, error)
	Leaderboard(ctx context.Context, sessionID int64) ([]session.GifterStanding, error)
}

// SessionStore defines store operations needed by SessionsService.
type SessionStore interface {
	ListSessions(ctx context.Context, accountID int64, limit int) ([]store.Session, error)
	Leaderboard(ctx context.Context, sessionID int64) ([]session.GifterStanding, error)
}

// SessionsService implements SessionsUsecase.
type SessionsService struct {
	Store SessionStore
}

// List returns past sessions, most recent first. accountID 0 means all
// accounts.
func (s *SessionsService) List(ctx context.Context, accountID int64, limit int) ([]store.Session, error) {
	return s.Store.ListSessions(ctx, accountID, limit)
}

// Leaderboard returns the persisted gifter leaderboard for an ended
// session.
func (s *SessionsService) Leaderboard(ctx context.Context, sessionID int64) ([]session.GifterStanding, error) {
	return s.Store.Leaderboard(ctx, sessionID)
}
