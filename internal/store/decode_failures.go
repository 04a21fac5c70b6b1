package store

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"time"
)

// InsertDecodeFailure records a feed payload the decoder rejected.
// Returns true if the failure was inserted, false if it was a duplicate.
// Duplicates collapse on a payload hash so a relay stuck repeating one
// bad message cannot grow the table.
func (s *Store) InsertDecodeFailure(ctx context.Context, payload, errorMsg string) (inserted bool, err error) {
	if payload == "" {
		return false, fmt.Errorf("payload is required")
	}

	const query = `
	INSERT INTO decode_failures (ts, payload, error_msg, dedupe_key)
	VALUES (?, ?, ?, ?)
	ON CONFLICT(dedupe_key) DO NOTHING
	`

	dedupeKey := sha256Hex(payload)
	ts := time.Now().UTC().Format(TimeFormat)

	result, err := s.db.ExecContext(ctx, query, ts, payload, errorMsg, dedupeKey)
	if err != nil {
		return false, fmt.Errorf("insert decode failure: %w", err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("rows affected: %w", err)
	}

	return rowsAffected > 0, nil
}

// sha256Hex returns the SHA256 hash of the input string as a hex string.
func sha256Hex(s string) string {
	h := sha256.Sum256([]byte(s))
	return hex.EncodeToString(h[:])
}
