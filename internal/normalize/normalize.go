// Package normalize converts loosely-typed feed events into the uniform
// LiveEvent shape. All extraction is best-effort: the upstream feed's
// event shapes vary across protocol versions, so missing or renamed
// fields degrade to defaults instead of failing.
package normalize

import (
	"log/slog"
	"time"

	"github.com/rayhanf/livetrack-companion/internal/event"
)

// UnknownUser is the placeholder used when no user name can be extracted.
const UnknownUser = "Unknown"

// Viewer-count field names in priority order. m_total is the real-time
// room count; total_user is cumulative visitors and only used as a
// fallback, matching observed feed behavior.
var viewerCountFields = []string{
	"m_total", "total_user",
	"viewer_count", "viewerCount", "viewers",
	"user_count", "userCount",
	"audience_count", "online_count", "participant_count",
}

// Like-count aliases in priority order.
var likeCountFields = []string{"like_count", "count", "total_likes", "likes"}

// Normalizer extracts LiveEvents from raw feed events.
// The zero value is not usable; use New.
type Normalizer struct {
	logger *slog.Logger
}

// Option configures a Normalizer.
type Option func(*Normalizer)

// WithLogger sets the logger used for degraded-extraction reporting.
func WithLogger(logger *slog.Logger) Option {
	return func(n *Normalizer) {
		if logger != nil {
			n.logger = logger
		}
	}
}

// New creates a Normalizer.
func New(opts ...Option) *Normalizer {
	n := &Normalizer{logger: slog.Default()}
	for _, opt := range opts {
		opt(n)
	}
	return n
}

// Normalize dispatches on the raw event type. The second return value is
// false when the event should not be forwarded: unknown types, viewer
// updates with no usable count, and in-progress gift streaks.
func (n *Normalizer) Normalize(raw RawEvent) (*event.LiveEvent, bool) {
	switch raw.Type {
	case RawTypeComment:
		e := n.NormalizeComment(raw)
		return &e, true
	case RawTypeGift:
		return n.NormalizeGift(raw)
	case RawTypeLike:
		e := n.NormalizeLike(raw)
		return &e, true
	case RawTypeFollow:
		e := n.normalizeSocial(raw, event.KindFollow)
		return &e, true
	case RawTypeShare:
		e := n.normalizeSocial(raw, event.KindShare)
		return &e, true
	case RawTypeRoomUser, RawTypeUserStats:
		return n.NormalizeViewerUpdate(raw)
	case RawTypeConnect, RawTypeDisconnect, RawTypeLiveEnd:
		e := n.NormalizeConnectionStatus(raw)
		return &e, true
	default:
		n.logger.Debug("unhandled feed event type", "type", raw.Type)
		return nil, false
	}
}

// NormalizeComment extracts a comment event. Never fails: missing user
// fields default to the Unknown placeholder and missing text to "".
func (n *Normalizer) NormalizeComment(raw RawEvent) event.LiveEvent {
	e := event.LiveEvent{
		Kind: event.KindComment,
		Ts:   eventTime(raw),
		Comment: &event.CommentPayload{
			Text: stringField(raw.Fields, "", "comment", "content", "text"),
		},
	}
	n.fillUser(&e, raw)
	return e
}

// NormalizeGift extracts a gift event and applies the streak rule:
// for streakable gifts the event is suppressed unless the feed marks the
// streak as finished, so each combo is counted exactly once at its final
// notification. Non-streakable gifts are always final.
//
// When the streaking flag and the repeat-end flag disagree, repeat-end
// wins: double-emitting a final event on ambiguous input beats
// under-counting a finished streak.
func (n *Normalizer) NormalizeGift(raw RawEvent) (*event.LiveEvent, bool) {
	gift := objectField(raw.Fields, "m_gift", "gift")

	name := "Unknown Gift"
	var giftID int64
	diamonds := 0
	streakable := false
	if gift != nil {
		name = stringField(gift, name, "name", "gift_name")
		giftID = int64Field(gift, 0, "id", "gift_id")
		diamonds = intField(gift, 0, "diamond_count", "diamonds")
		streakable = boolField(gift, false, "streakable") || intField(gift, 0, "gift_type", "type") == 1
	} else {
		n.logger.Debug("gift event missing gift object, using defaults")
	}

	repeatCount := intField(raw.Fields, 1, "repeat_count", "repeatCount")
	if repeatCount < 1 {
		repeatCount = 1
	}

	if streakable {
		// repeat_end defaults true when absent so a feed that never sets
		// it still counts gifts (possibly per-tap) rather than never.
		repeatEnd := boolField(raw.Fields, true, "repeat_end", "repeatEnd")
		if !repeatEnd {
			// Streak still in progress: suppress.
			return nil, false
		}
	}

	e := event.LiveEvent{
		Kind: event.KindGift,
		Ts:   eventTime(raw),
		Gift: &event.GiftPayload{
			Name:         name,
			GiftID:       giftID,
			DiamondCount: diamonds,
			RepeatCount:  repeatCount,
			Streakable:   streakable,
		},
	}
	n.fillUser(&e, raw)
	return &e, true
}

// NormalizeLike extracts a like-count delta. If the feed exposes no
// count under any known alias, the delta defaults to 1.
func (n *Normalizer) NormalizeLike(raw RawEvent) event.LiveEvent {
	count := intField(raw.Fields, 1, likeCountFields...)
	if count < 1 {
		count = 1
	}
	e := event.LiveEvent{
		Kind: event.KindLike,
		Ts:   eventTime(raw),
		Like: &event.LikePayload{Count: count},
	}
	n.fillUser(&e, raw)
	return e
}

// NormalizeViewerUpdate scans the prioritized viewer-count field list for
// a positive integer. Returns false if none is found: absence of a count
// is ignorable, while an explicit zero would be meaningful, so zero is
// never synthesized from a missing field.
func (n *Normalizer) NormalizeViewerUpdate(raw RawEvent) (*event.LiveEvent, bool) {
	for _, name := range viewerCountFields {
		v, ok := raw.Fields[name]
		if !ok {
			continue
		}
		count, ok := asInt(v)
		if !ok || count <= 0 {
			continue
		}
		return &event.LiveEvent{
			Kind:    event.KindViewerUpdate,
			Ts:      eventTime(raw),
			Viewers: &event.ViewerPayload{Count: count},
		}, true
	}
	return nil, false
}

// NormalizeConnectionStatus converts connect/disconnect/live-end feed
// events into a connection status event for the UI and aggregator.
func (n *Normalizer) NormalizeConnectionStatus(raw RawEvent) event.LiveEvent {
	status := &event.ConnectionPayload{
		Connected: raw.Type == RawTypeConnect,
		Reason:    stringField(raw.Fields, "", "reason", "message"),
		RoomID:    stringField(raw.Fields, "", "room_id", "roomId"),
	}
	if !status.Connected && status.Reason == "" {
		status.Reason = raw.Type
	}
	return event.LiveEvent{
		Kind:   event.KindConnectionStatus,
		Ts:     eventTime(raw),
		Status: status,
	}
}

// normalizeSocial handles follow and share events, which carry only user
// identity.
func (n *Normalizer) normalizeSocial(raw RawEvent, kind event.Kind) event.LiveEvent {
	e := event.LiveEvent{Kind: kind, Ts: eventTime(raw)}
	n.fillUser(&e, raw)
	return e
}

// fillUser extracts user identity from the nested user object, or from
// top-level fields on feed versions that flatten it.
func (n *Normalizer) fillUser(e *event.LiveEvent, raw RawEvent) {
	fields := raw.Fields
	if user := objectField(raw.Fields, "user"); user != nil {
		fields = user
	}
	e.UserID = stringField(fields, "", "user_id", "userId", "id")
	e.Username = stringField(fields, "", "unique_id", "uniqueId", "username")
	e.Nickname = stringField(fields, "", "nickname", "nick_name", "display_name")
	if e.Username == "" && e.Nickname == "" {
		e.Nickname = UnknownUser
	}
}

func eventTime(raw RawEvent) time.Time {
	if !raw.Ts.IsZero() {
		return raw.Ts
	}
	return time.Now()
}
