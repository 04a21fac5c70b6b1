package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/rayhanf/livetrack-companion/internal/session"
)

// Session statuses.
const (
	SessionActive = "active"
	SessionEnded  = "ended"
)

// Session is one persisted live session.
type Session struct {
	ID         int64      `json:"id"`
	ExternalID string     `json:"external_id"`
	AccountID  int64      `json:"account_id"`
	StartedAt  time.Time  `json:"started_at"`
	EndedAt    *time.Time `json:"ended_at,omitempty"`
	Status     string     `json:"status"`

	TotalCoins    float64 `json:"total_coins"`
	TotalGifts    int     `json:"total_gifts"`
	TotalComments int     `json:"total_comments"`
	TotalLikes    int     `json:"total_likes"`
	TotalFollows  int     `json:"total_follows"`
	TotalShares   int     `json:"total_shares"`
	PeakViewers   int     `json:"peak_viewers"`
}

// CreateSession inserts a new active session row and returns it.
// The external ID is generated here and shared with the aggregator so
// in-memory snapshots and database rows can be correlated.
func (s *Store) CreateSession(ctx context.Context, accountID int64, startedAt time.Time) (Session, error) {
	sess := Session{
		ExternalID: uuid.NewString(),
		AccountID:  accountID,
		StartedAt:  startedAt,
		Status:     SessionActive,
	}

	const query = `
	INSERT INTO live_sessions (external_id, account_id, started_at, status, schema_version)
	VALUES (?, ?, ?, ?, ?)
	`
	result, err := s.db.ExecContext(ctx, query,
		sess.ExternalID,
		sess.AccountID,
		sess.StartedAt.UTC().Format(TimeFormat),
		sess.Status,
		CurrentSchemaVersion,
	)
	if err != nil {
		return Session{}, fmt.Errorf("create session: %w", err)
	}
	if sess.ID, err = result.LastInsertId(); err != nil {
		return Session{}, fmt.Errorf("last insert id: %w", err)
	}
	return sess, nil
}

// EndSession finalizes a session row with totals and writes the
// leaderboard snapshot. Ending an already ended session returns
// ErrSessionClosed.
func (s *Store) EndSession(ctx context.Context, sessionID int64, summary session.Summary) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin: %w", err)
	}
	defer tx.Rollback()

	const update = `
	UPDATE live_sessions
	SET ended_at = ?, status = ?, total_coins = ?, total_gifts = ?,
	    total_comments = ?, total_likes = ?, total_follows = ?,
	    total_shares = ?, peak_viewers = ?
	WHERE id = ? AND status = ?
	`
	result, err := tx.ExecContext(ctx, update,
		summary.EndedAt.UTC().Format(TimeFormat),
		SessionEnded,
		summary.Metrics.TotalCoins,
		summary.Metrics.TotalGifts,
		summary.Metrics.TotalComments,
		summary.Metrics.TotalLikes,
		summary.Metrics.TotalFollows,
		summary.Metrics.TotalShares,
		summary.Metrics.PeakViewers,
		sessionID,
		SessionActive,
	)
	if err != nil {
		return fmt.Errorf("end session: %w", err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("rows affected: %w", err)
	}
	if affected == 0 {
		var exists int
		if err := tx.QueryRowContext(ctx, `SELECT 1 FROM live_sessions WHERE id = ?`, sessionID).Scan(&exists); err != nil {
			if errors.Is(err, sql.ErrNoRows) {
				return ErrNotFound
			}
			return fmt.Errorf("check session: %w", err)
		}
		return ErrSessionClosed
	}

	const insertRank = `
	INSERT INTO session_leaderboard (session_id, username, total_coins, gift_count, rank)
	VALUES (?, ?, ?, ?, ?)
	`
	for i, standing := range summary.TopGifters {
		if _, err := tx.ExecContext(ctx, insertRank,
			sessionID, standing.Username, standing.Total, standing.Gifts, i+1,
		); err != nil {
			return fmt.Errorf("insert leaderboard row: %w", err)
		}
	}

	return tx.Commit()
}

// GetSession returns one session by row ID.
func (s *Store) GetSession(ctx context.Context, id int64) (Session, error) {
	row := s.db.QueryRowContext(ctx, sessionSelect+` WHERE id = ?`, id)
	sess, err := scanSession(row)
	if errors.Is(err, sql.ErrNoRows) {
		return Session{}, ErrNotFound
	}
	return sess, err
}

// ListSessions returns up to limit sessions for an account, most recent
// first. accountID 0 means all accounts.
func (s *Store) ListSessions(ctx context.Context, accountID int64, limit int) ([]Session, error) {
	if limit <= 0 {
		limit = defaultLimit
	} else if limit > maxLimit {
		limit = maxLimit
	}

	query := sessionSelect
	args := []any{}
	if accountID > 0 {
		query += ` WHERE account_id = ?`
		args = append(args, accountID)
	}
	query += ` ORDER BY started_at DESC, id DESC LIMIT ?`
	args = append(args, limit)

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list sessions: %w", err)
	}
	defer rows.Close()

	var sessions []Session
	for rows.Next() {
		sess, err := scanSession(rows)
		if err != nil {
			return nil, err
		}
		sessions = append(sessions, sess)
	}
	return sessions, rows.Err()
}

// Leaderboard returns the persisted leaderboard for an ended session,
// in rank order.
func (s *Store) Leaderboard(ctx context.Context, sessionID int64) ([]session.GifterStanding, error) {
	const query = `
	SELECT username, total_coins, gift_count
	FROM session_leaderboard
	WHERE session_id = ?
	ORDER BY rank ASC
	`
	rows, err := s.db.QueryContext(ctx, query, sessionID)
	if err != nil {
		return nil, fmt.Errorf("query leaderboard: %w", err)
	}
	defer rows.Close()

	var standings []session.GifterStanding
	for rows.Next() {
		var st session.GifterStanding
		if err := rows.Scan(&st.Username, &st.Total, &st.Gifts); err != nil {
			return nil, fmt.Errorf("scan leaderboard row: %w", err)
		}
		standings = append(standings, st)
	}
	return standings, rows.Err()
}
