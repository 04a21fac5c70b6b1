package store

import (
	"context"
	"fmt"
)

// CurrentSchemaVersion is the current database schema version.
const CurrentSchemaVersion = 1

// migrate runs database migrations.
func (s *Store) migrate(ctx context.Context) error {
	steps := []struct {
		name   string
		schema string
	}{
		{"accounts", accountsSchema},
		{"live_sessions", sessionsSchema},
		{"gift_logs", giftLogsSchema},
		{"comment_logs", commentLogsSchema},
		{"session_leaderboard", leaderboardSchema},
		{"keyword_actions", keywordActionsSchema},
		{"gift_actions", giftActionsSchema},
		{"decode_failures", decodeFailuresSchema},
		{"metadata", metadataSchema},
	}
	for _, step := range steps {
		if _, err := s.db.ExecContext(ctx, step.schema); err != nil {
			return fmt.Errorf("create %s table: %w", step.name, err)
		}
	}
	return nil
}

const accountsSchema = `
CREATE TABLE IF NOT EXISTS accounts (
	id         INTEGER PRIMARY KEY,
	username   TEXT NOT NULL UNIQUE,
	created_at TEXT NOT NULL
);
`

const sessionsSchema = `
CREATE TABLE IF NOT EXISTS live_sessions (
	id             INTEGER PRIMARY KEY,
	external_id    TEXT NOT NULL UNIQUE,
	account_id     INTEGER NOT NULL REFERENCES accounts(id),
	started_at     TEXT NOT NULL,
	ended_at       TEXT,
	total_coins    REAL NOT NULL DEFAULT 0,
	total_gifts    INTEGER NOT NULL DEFAULT 0,
	total_comments INTEGER NOT NULL DEFAULT 0,
	total_likes    INTEGER NOT NULL DEFAULT 0,
	total_follows  INTEGER NOT NULL DEFAULT 0,
	total_shares   INTEGER NOT NULL DEFAULT 0,
	peak_viewers   INTEGER NOT NULL DEFAULT 0,
	status         TEXT NOT NULL DEFAULT 'active',
	schema_version INTEGER NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_sessions_account_started
	ON live_sessions(account_id, started_at);
`

const giftLogsSchema = `
CREATE TABLE IF NOT EXISTS gift_logs (
	id           INTEGER PRIMARY KEY,
	session_id   INTEGER NOT NULL REFERENCES live_sessions(id),
	ts           TEXT NOT NULL,
	username     TEXT NOT NULL,
	gift_name    TEXT NOT NULL,
	gift_value   REAL NOT NULL,
	repeat_count INTEGER NOT NULL DEFAULT 1,
	total_value  REAL NOT NULL,
	action       TEXT
);

CREATE INDEX IF NOT EXISTS idx_gift_logs_session_ts ON gift_logs(session_id, ts, id);
`

const commentLogsSchema = `
CREATE TABLE IF NOT EXISTS comment_logs (
	id         INTEGER PRIMARY KEY,
	session_id INTEGER NOT NULL REFERENCES live_sessions(id),
	ts         TEXT NOT NULL,
	username   TEXT NOT NULL,
	comment    TEXT NOT NULL,
	keyword    TEXT,
	action     TEXT
);

CREATE INDEX IF NOT EXISTS idx_comment_logs_session_ts ON comment_logs(session_id, ts, id);
`

const leaderboardSchema = `
CREATE TABLE IF NOT EXISTS session_leaderboard (
	id          INTEGER PRIMARY KEY,
	session_id  INTEGER NOT NULL REFERENCES live_sessions(id),
	username    TEXT NOT NULL,
	total_coins REAL NOT NULL DEFAULT 0,
	gift_count  INTEGER NOT NULL DEFAULT 0,
	rank        INTEGER NOT NULL,
	UNIQUE(session_id, username)
);
`

const keywordActionsSchema = `
CREATE TABLE IF NOT EXISTS keyword_actions (
	id               INTEGER PRIMARY KEY,
	account_id       INTEGER NOT NULL REFERENCES accounts(id),
	keyword          TEXT NOT NULL,
	match_type       TEXT NOT NULL DEFAULT 'contains',
	action_type      TEXT NOT NULL,
	device_target    TEXT NOT NULL,
	cooldown_seconds INTEGER NOT NULL DEFAULT 30,
	is_active        INTEGER NOT NULL DEFAULT 1,
	created_at       TEXT NOT NULL
);
`

const giftActionsSchema = `
CREATE TABLE IF NOT EXISTS gift_actions (
	id            INTEGER PRIMARY KEY,
	account_id    INTEGER NOT NULL REFERENCES accounts(id),
	gift_name     TEXT NOT NULL,
	action_type   TEXT NOT NULL,
	device_target TEXT NOT NULL,
	is_active     INTEGER NOT NULL DEFAULT 1,
	created_at    TEXT NOT NULL
);
`

const decodeFailuresSchema = `
CREATE TABLE IF NOT EXISTS decode_failures (
	id         INTEGER PRIMARY KEY,
	ts         TEXT NOT NULL,
	payload    TEXT NOT NULL,
	error_msg  TEXT,
	dedupe_key TEXT NOT NULL,
	UNIQUE(dedupe_key)
);
`

const metadataSchema = `
CREATE TABLE IF NOT EXISTS metadata (
	key   TEXT PRIMARY KEY,
	value TEXT NOT NULL
);
`
