package store

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"
)

// GiftLog is one persisted gift event.
type GiftLog struct {
	ID          int64     `json:"id"`
	SessionID   int64     `json:"session_id"`
	Ts          time.Time `json:"ts"`
	Username    string    `json:"username"`
	GiftName    string    `json:"gift_name"`
	GiftValue   float64   `json:"gift_value"`
	RepeatCount int       `json:"repeat_count"`
	TotalValue  float64   `json:"total_value"`
	Action      string    `json:"action,omitempty"`
}

// CommentLog is one persisted comment, with the keyword and action it
// triggered, if any.
type CommentLog struct {
	ID        int64     `json:"id"`
	SessionID int64     `json:"session_id"`
	Ts        time.Time `json:"ts"`
	Username  string    `json:"username"`
	Comment   string    `json:"comment"`
	Keyword   string    `json:"keyword,omitempty"`
	Action    string    `json:"action,omitempty"`
}

// InsertGiftLog persists one gift event.
func (s *Store) InsertGiftLog(ctx context.Context, g *GiftLog) error {
	if err := validateGiftLog(g); err != nil {
		return err
	}
	if g.RepeatCount < 1 {
		g.RepeatCount = 1
	}
	g.TotalValue = g.GiftValue * float64(g.RepeatCount)

	const query = `
	INSERT INTO gift_logs (session_id, ts, username, gift_name, gift_value, repeat_count, total_value, action)
	VALUES (?, ?, ?, ?, ?, ?, ?, ?)
	`
	result, err := s.db.ExecContext(ctx, query,
		g.SessionID,
		g.Ts.UTC().Format(TimeFormat),
		g.Username,
		g.GiftName,
		g.GiftValue,
		g.RepeatCount,
		g.TotalValue,
		nullable(g.Action),
	)
	if err != nil {
		return fmt.Errorf("insert gift log: %w", err)
	}
	if g.ID, err = result.LastInsertId(); err != nil {
		return fmt.Errorf("last insert id: %w", err)
	}
	return nil
}

// InsertCommentLog persists one comment.
func (s *Store) InsertCommentLog(ctx context.Context, c *CommentLog) error {
	if err := validateCommentLog(c); err != nil {
		return err
	}

	const query = `
	INSERT INTO comment_logs (session_id, ts, username, comment, keyword, action)
	VALUES (?, ?, ?, ?, ?, ?)
	`
	result, err := s.db.ExecContext(ctx, query,
		c.SessionID,
		c.Ts.UTC().Format(TimeFormat),
		c.Username,
		c.Comment,
		nullable(c.Keyword),
		nullable(c.Action),
	)
	if err != nil {
		return fmt.Errorf("insert comment log: %w", err)
	}
	if c.ID, err = result.LastInsertId(); err != nil {
		return fmt.Errorf("last insert id: %w", err)
	}
	return nil
}

// LogFilter contains filter options for querying logs.
type LogFilter struct {
	SessionID int64
	Since     *time.Time
	Until     *time.Time
	Limit     int
	Cursor    *string
}

// GiftLogResult contains a page of gift logs.
type GiftLogResult struct {
	Items      []GiftLog `json:"items"`
	NextCursor *string   `json:"next_cursor,omitempty"`
}

// CommentLogResult contains a page of comment logs.
type CommentLogResult struct {
	Items      []CommentLog `json:"items"`
	NextCursor *string      `json:"next_cursor,omitempty"`
}

// QueryGiftLogs returns gift logs with cursor-based pagination,
// ordered oldest first.
func (s *Store) QueryGiftLogs(ctx context.Context, f LogFilter) (GiftLogResult, error) {
	query, args, limit, err := buildLogQuery(`
SELECT id, session_id, ts, username, gift_name, gift_value, repeat_count, total_value, action
FROM gift_logs`, f)
	if err != nil {
		return GiftLogResult{}, err
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return GiftLogResult{}, fmt.Errorf("query gift logs: %w", err)
	}
	defer rows.Close()

	items := make([]GiftLog, 0, limit+1)
	for rows.Next() {
		var (
			g      GiftLog
			ts     string
			action sql.NullString
		)
		if err := rows.Scan(&g.ID, &g.SessionID, &ts, &g.Username, &g.GiftName,
			&g.GiftValue, &g.RepeatCount, &g.TotalValue, &action); err != nil {
			return GiftLogResult{}, fmt.Errorf("scan gift log: %w", err)
		}
		if g.Ts, err = time.Parse(TimeFormat, ts); err != nil {
			return GiftLogResult{}, fmt.Errorf("parse ts %q: %w", ts, err)
		}
		g.Action = action.String
		items = append(items, g)
	}
	if err := rows.Err(); err != nil {
		return GiftLogResult{}, fmt.Errorf("rows error: %w", err)
	}

	result := GiftLogResult{Items: items}
	if len(items) > limit {
		last := items[limit-1]
		result.Items = items[:limit]
		c := EncodeCursor(last.Ts, last.ID)
		result.NextCursor = &c
	}
	return result, nil
}

// QueryCommentLogs returns comment logs with cursor-based pagination,
// ordered oldest first.
func (s *Store) QueryCommentLogs(ctx context.Context, f LogFilter) (CommentLogResult, error) {
	query, args, limit, err := buildLogQuery(`
SELECT id, session_id, ts, username, comment, keyword, action
FROM comment_logs`, f)
	if err != nil {
		return CommentLogResult{}, err
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return CommentLogResult{}, fmt.Errorf("query comment logs: %w", err)
	}
	defer rows.Close()

	items := make([]CommentLog, 0, limit+1)
	for rows.Next() {
		var (
			c               CommentLog
			ts              string
			keyword, action sql.NullString
		)
		if err := rows.Scan(&c.ID, &c.SessionID, &ts, &c.Username, &c.Comment, &keyword, &action); err != nil {
			return CommentLogResult{}, fmt.Errorf("scan comment log: %w", err)
		}
		if c.Ts, err = time.Parse(TimeFormat, ts); err != nil {
			return CommentLogResult{}, fmt.Errorf("parse ts %q: %w", ts, err)
		}
		c.Keyword = keyword.String
		c.Action = action.String
		items = append(items, c)
	}
	if err := rows.Err(); err != nil {
		return CommentLogResult{}, fmt.Errorf("rows error: %w", err)
	}

	result := CommentLogResult{Items: items}
	if len(items) > limit {
		last := items[limit-1]
		result.Items = items[:limit]
		c := EncodeCursor(last.Ts, last.ID)
		result.NextCursor = &c
	}
	return result, nil
}

// buildLogQuery assembles the shared WHERE/ORDER/LIMIT clause for the
// log tables. Fetches limit+1 rows so callers can detect a next page.
func buildLogQuery(selectClause string, f LogFilter) (string, []any, int, error) {
	limit := f.Limit
	if limit <= 0 {
		limit = defaultLimit
	} else if limit > maxLimit {
		limit = maxLimit
	}

	var (
		sb   strings.Builder
		args []any
	)
	sb.WriteString(selectClause)
	sb.WriteString("\nWHERE 1=1")

	if f.SessionID > 0 {
		sb.WriteString(" AND session_id = ?")
		args = append(args, f.SessionID)
	}
	if f.Since != nil {
		sb.WriteString(" AND ts >= ?")
		args = append(args, f.Since.UTC().Format(TimeFormat))
	}
	if f.Until != nil {
		sb.WriteString(" AND ts < ?")
		args = append(args, f.Until.UTC().Format(TimeFormat))
	}
	if f.Cursor != nil && *f.Cursor != "" {
		cursorTime, cursorID, err := decodeCursor(*f.Cursor)
		if err != nil {
			return "", nil, 0, fmt.Errorf("decode cursor: %w", err)
		}
		sb.WriteString(" AND (ts > ? OR (ts = ? AND id > ?))")
		cursorTimeStr := cursorTime.UTC().Format(TimeFormat)
		args = append(args, cursorTimeStr, cursorTimeStr, cursorID)
	}

	sb.WriteString(" ORDER BY ts ASC, id ASC LIMIT ?")
	args = append(args, limit+1)

	return sb.String(), args, limit, nil
}

func validateGiftLog(g *GiftLog) error {
	if g.SessionID == 0 {
		return fmt.Errorf("%w: session_id is required", ErrInvalidLog)
	}
	if g.GiftName == "" {
		return fmt.Errorf("%w: gift_name is required", ErrInvalidLog)
	}
	if g.Ts.IsZero() {
		return fmt.Errorf("%w: ts is required", ErrInvalidLog)
	}
	return nil
}

func validateCommentLog(c *CommentLog) error {
	if c.SessionID == 0 {
		return fmt.Errorf("%w: session_id is required", ErrInvalidLog)
	}
	if c.Ts.IsZero() {
		return fmt.Errorf("%w: ts is required", ErrInvalidLog)
	}
	return nil
}
