package store

import (
	"context"
	"fmt"
	"time"
)

// Account is a tracked live account.
type Account struct {
	ID        int64     `json:"id"`
	Username  string    `json:"username"`
	CreatedAt time.Time `json:"created_at"`
}

// EnsureAccount returns the row ID for username, creating it on first use.
func (s *Store) EnsureAccount(ctx context.Context, username string) (int64, error) {
	if username == "" {
		return 0, fmt.Errorf("username is required")
	}

	const insert = `
	INSERT INTO accounts (username, created_at) VALUES (?, ?)
	ON CONFLICT(username) DO NOTHING
	`
	if _, err := s.db.ExecContext(ctx, insert, username, time.Now().UTC().Format(TimeFormat)); err != nil {
		return 0, fmt.Errorf("ensure account: %w", err)
	}

	var id int64
	if err := s.db.QueryRowContext(ctx, `SELECT id FROM accounts WHERE username = ?`, username).Scan(&id); err != nil {
		return 0, fmt.Errorf("lookup account: %w", err)
	}
	return id, nil
}

// ListAccounts returns all tracked accounts ordered by creation.
func (s *Store) ListAccounts(ctx context.Context) ([]Account, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT id, username, created_at FROM accounts ORDER BY id`)
	if err != nil {
		return nil, fmt.Errorf("list accounts: %w", err)
	}
	defer rows.Close()

	var accounts []Account
	for rows.Next() {
		var (
			a  Account
			ts string
		)
		if err := rows.Scan(&a.ID, &a.Username, &ts); err != nil {
			return nil, fmt.Errorf("scan account: %w", err)
		}
		if a.CreatedAt, err = time.Parse(TimeFormat, ts); err != nil {
			return nil, fmt.Errorf("parse created_at %q: %w", ts, err)
		}
		accounts = append(accounts, a)
	}
	return accounts, rows.Err()
}
