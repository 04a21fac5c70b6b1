package store

import (
	"database/sql"
	"fmt"
	"time"
)

const (
	defaultLimit = 100
	maxLimit     = 500
)

const sessionSelect = `
SELECT id, external_id, account_id, started_at, ended_at, status,
       total_coins, total_gifts, total_comments, total_likes,
       total_follows, total_shares, peak_viewers
FROM live_sessions`

type scanner interface {
	Scan(dest ...any) error
}

func scanSession(row scanner) (Session, error) {
	var (
		sess    Session
		started string
		ended   sql.NullString
	)
	err := row.Scan(
		&sess.ID, &sess.ExternalID, &sess.AccountID, &started, &ended, &sess.Status,
		&sess.TotalCoins, &sess.TotalGifts, &sess.TotalComments, &sess.TotalLikes,
		&sess.TotalFollows, &sess.TotalShares, &sess.PeakViewers,
	)
	if err != nil {
		return Session{}, err
	}

	if sess.StartedAt, err = time.Parse(TimeFormat, started); err != nil {
		return Session{}, fmt.Errorf("parse started_at %q: %w", started, err)
	}
	if ended.Valid {
		t, err := time.Parse(TimeFormat, ended.String)
		if err != nil {
			return Session{}, fmt.Errorf("parse ended_at %q: %w", ended.String, err)
		}
		sess.EndedAt = &t
	}
	return sess, nil
}

// nullable converts an empty string to NULL.
func nullable(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}
