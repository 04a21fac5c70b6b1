package normalize

import (
	"encoding/json"
	"strconv"
	"time"
)

// Raw event type tags as delivered by the stream feed.
const (
	RawTypeComment    = "comment"
	RawTypeGift       = "gift"
	RawTypeLike       = "like"
	RawTypeFollow     = "follow"
	RawTypeShare      = "share"
	RawTypeRoomUser   = "room_user"
	RawTypeUserStats  = "user_stats"
	RawTypeConnect    = "connect"
	RawTypeDisconnect = "disconnect"
	RawTypeLiveEnd    = "live_end"
)

// RawEvent is a loosely-typed event as received from the upstream feed.
// Field names and nesting vary across protocol versions, so all access
// goes through the alias-tolerant accessors below.
type RawEvent struct {
	Type   string
	Ts     time.Time
	Fields map[string]any
}

// DecodeRawEvent parses a feed message of the form
// {"type": "...", "data": {...}} into a RawEvent. Messages without a
// data object still produce a usable event with empty fields.
func DecodeRawEvent(msg []byte, ts time.Time) (RawEvent, error) {
	var envelope struct {
		Type string         `json:"type"`
		Data map[string]any `json:"data"`
	}
	if err := json.Unmarshal(msg, &envelope); err != nil {
		return RawEvent{}, err
	}
	if envelope.Data == nil {
		envelope.Data = map[string]any{}
	}
	return RawEvent{Type: envelope.Type, Ts: ts, Fields: envelope.Data}, nil
}

// stringField returns the first present string value among the given
// field names, or def if none is found.
func stringField(m map[string]any, def string, names ...string) string {
	for _, name := range names {
		v, ok := m[name]
		if !ok {
			continue
		}
		if s, ok := v.(string); ok {
			return s
		}
	}
	return def
}

// intField returns the first present numeric value among the given field
// names, or def if none is found. JSON numbers arrive as float64; string
// digits are tolerated since some feed versions quote counts.
func intField(m map[string]any, def int, names ...string) int {
	for _, name := range names {
		v, ok := m[name]
		if !ok {
			continue
		}
		if n, ok := asInt(v); ok {
			return n
		}
	}
	return def
}

// int64Field is intField for 64-bit identifiers.
func int64Field(m map[string]any, def int64, names ...string) int64 {
	for _, name := range names {
		v, ok := m[name]
		if !ok {
			continue
		}
		if n, ok := asInt(v); ok {
			return int64(n)
		}
	}
	return def
}

// boolField returns the first present boolean among the given field
// names. Numeric 0/1 is tolerated (the feed encodes repeat_end that way).
func boolField(m map[string]any, def bool, names ...string) bool {
	for _, name := range names {
		v, ok := m[name]
		if !ok {
			continue
		}
		switch b := v.(type) {
		case bool:
			return b
		case float64:
			return b != 0
		}
	}
	return def
}

// objectField returns a nested object, or nil if absent or not an object.
func objectField(m map[string]any, names ...string) map[string]any {
	for _, name := range names {
		if v, ok := m[name]; ok {
			if obj, ok := v.(map[string]any); ok {
				return obj
			}
		}
	}
	return nil
}

func asInt(v any) (int, bool) {
	switch n := v.(type) {
	case float64:
		return int(n), true
	case int:
		return n, true
	case int64:
		return int(n), true
	case json.Number:
		if i, err := n.Int64(); err == nil {
			return int(i), true
		}
	case string:
		if i, err := strconv.Atoi(n); err == nil {
			return i, true
		}
	}
	return 0, false
}
