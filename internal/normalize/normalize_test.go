package normalize

import (
	"testing"
	"time"

	"github.com/rayhanf/livetrack-companion/internal/event"
)

func raw(typ string, fields map[string]any) RawEvent {
	return RawEvent{Type: typ, Ts: time.Now(), Fields: fields}
}

func TestNormalizeComment_FullFields(t *testing.T) {
	n := New()

	e := n.NormalizeComment(raw(RawTypeComment, map[string]any{
		"comment": "hello stream",
		"user": map[string]any{
			"unique_id": "alice123",
			"nickname":  "Alice",
			"user_id":   "7001",
		},
	}))

	if e.Kind != event.KindComment {
		t.Errorf("expected comment kind, got %s", e.Kind)
	}
	if e.Comment.Text != "hello stream" {
		t.Errorf("expected comment text, got %q", e.Comment.Text)
	}
	if e.Username != "alice123" || e.Nickname != "Alice" || e.UserID != "7001" {
		t.Errorf("unexpected user fields: %q %q %q", e.Username, e.Nickname, e.UserID)
	}
}

func TestNormalizeComment_MissingFieldsDefault(t *testing.T) {
	n := New()

	e := n.NormalizeComment(raw(RawTypeComment, map[string]any{}))

	if e.Comment.Text != "" {
		t.Errorf("expected empty text, got %q", e.Comment.Text)
	}
	if e.DisplayName() != UnknownUser {
		t.Errorf("expected %q, got %q", UnknownUser, e.DisplayName())
	}
}

func TestNormalizeComment_Idempotent(t *testing.T) {
	n := New()
	fields := map[string]any{
		"comment": "yo",
		"user":    map[string]any{"unique_id": "bob"},
	}

	// Normalization is a pure function of its input: two calls over the
	// same raw event must produce identical results.
	e1 := n.NormalizeComment(raw(RawTypeComment, fields))
	e2 := n.NormalizeComment(raw(RawTypeComment, fields))

	if e1.Nickname != e2.Nickname || e1.Username != e2.Username || e1.Comment.Text != e2.Comment.Text {
		t.Errorf("normalization not idempotent: %+v vs %+v", e1, e2)
	}
}

func TestNormalizeComment_ContentAlias(t *testing.T) {
	n := New()

	e := n.NormalizeComment(raw(RawTypeComment, map[string]any{"content": "alias text"}))

	if e.Comment.Text != "alias text" {
		t.Errorf("expected content alias to be used, got %q", e.Comment.Text)
	}
}

func TestNormalizeGift_StreakInProgressSuppressed(t *testing.T) {
	n := New()

	e, ok := n.NormalizeGift(raw(RawTypeGift, map[string]any{
		"gift":         map[string]any{"name": "Rose", "streakable": true, "diamond_count": float64(1)},
		"repeat_count": float64(3),
		"repeat_end":   false,
	}))

	if ok || e != nil {
		t.Fatalf("expected in-progress streak to be suppressed, got %+v", e)
	}
}

func TestNormalizeGift_StreakFinalEmitted(t *testing.T) {
	n := New()

	e, ok := n.NormalizeGift(raw(RawTypeGift, map[string]any{
		"gift":         map[string]any{"name": "Rose", "streakable": true, "diamond_count": float64(1)},
		"repeat_count": float64(5),
		"repeat_end":   true,
		"user":         map[string]any{"unique_id": "carol"},
	}))

	if !ok {
		t.Fatal("expected final streak notification to be emitted")
	}
	if e.Gift.RepeatCount != 5 {
		t.Errorf("expected repeat count 5, got %d", e.Gift.RepeatCount)
	}
	if !e.Gift.Streakable {
		t.Error("expected streakable flag to be preserved")
	}
}

func TestNormalizeGift_RepeatEndWinsOverStreakingFlag(t *testing.T) {
	n := New()

	// Contradictory input: the feed says both "still streaking" and
	// "repeat end". Repeat end wins; under-counting is the worse failure.
	e, ok := n.NormalizeGift(raw(RawTypeGift, map[string]any{
		"gift":         map[string]any{"name": "Galaxy", "streakable": true},
		"repeat_count": float64(2),
		"repeat_end":   true,
		"streaking":    true,
	}))

	if !ok || e == nil {
		t.Fatal("expected repeat_end=true to force emission")
	}
}

func TestNormalizeGift_NonStreakableAlwaysFinal(t *testing.T) {
	n := New()

	// No repeat_end field at all; non-streakable gifts do not need one.
	e, ok := n.NormalizeGift(raw(RawTypeGift, map[string]any{
		"gift":         map[string]any{"name": "Money Gun", "diamond_count": float64(499)},
		"repeat_count": float64(1),
	}))

	if !ok {
		t.Fatal("expected non-streakable gift to be emitted")
	}
	if e.Gift.DiamondCount != 499 {
		t.Errorf("expected 499 diamonds, got %d", e.Gift.DiamondCount)
	}
}

func TestNormalizeGift_GiftTypeOneMeansStreakable(t *testing.T) {
	n := New()

	_, ok := n.NormalizeGift(raw(RawTypeGift, map[string]any{
		"gift":       map[string]any{"name": "Rose", "gift_type": float64(1)},
		"repeat_end": false,
	}))

	if ok {
		t.Error("expected gift_type=1 to be treated as streakable and suppressed mid-streak")
	}
}

func TestNormalizeGift_MGiftPreferredOverGift(t *testing.T) {
	n := New()

	e, ok := n.NormalizeGift(raw(RawTypeGift, map[string]any{
		"m_gift": map[string]any{"name": "Swan", "diamond_count": float64(600)},
		"gift":   map[string]any{"name": "stale", "diamond_count": float64(1)},
	}))

	if !ok {
		t.Fatal("expected gift event")
	}
	if e.Gift.Name != "Swan" || e.Gift.DiamondCount != 600 {
		t.Errorf("expected m_gift fields to win, got %q/%d", e.Gift.Name, e.Gift.DiamondCount)
	}
}

func TestNormalizeGift_MissingGiftObjectDefaults(t *testing.T) {
	n := New()

	e, ok := n.NormalizeGift(raw(RawTypeGift, map[string]any{}))

	if !ok {
		t.Fatal("expected degraded gift event, not suppression")
	}
	if e.Gift.Name != "Unknown Gift" || e.Gift.RepeatCount != 1 {
		t.Errorf("unexpected defaults: %q x%d", e.Gift.Name, e.Gift.RepeatCount)
	}
}

func TestNormalizeLike_AliasPriority(t *testing.T) {
	n := New()

	e := n.NormalizeLike(raw(RawTypeLike, map[string]any{
		"count":      float64(7),
		"like_count": float64(3),
	}))

	if e.Like.Count != 3 {
		t.Errorf("expected like_count alias to take priority, got %d", e.Like.Count)
	}
}

func TestNormalizeLike_DefaultsToOne(t *testing.T) {
	n := New()

	e := n.NormalizeLike(raw(RawTypeLike, map[string]any{}))

	if e.Like.Count != 1 {
		t.Errorf("expected default delta 1, got %d", e.Like.Count)
	}
}

func TestNormalizeViewerUpdate_PriorityOrder(t *testing.T) {
	n := New()

	e, ok := n.NormalizeViewerUpdate(raw(RawTypeRoomUser, map[string]any{
		"total_user": float64(9999),
		"m_total":    float64(340),
	}))

	if !ok {
		t.Fatal("expected viewer update")
	}
	if e.Viewers.Count != 340 {
		t.Errorf("expected m_total to take priority, got %d", e.Viewers.Count)
	}
}

func TestNormalizeViewerUpdate_SkipsNonPositive(t *testing.T) {
	n := New()

	e, ok := n.NormalizeViewerUpdate(raw(RawTypeRoomUser, map[string]any{
		"m_total":      float64(0),
		"viewer_count": float64(120),
	}))

	if !ok {
		t.Fatal("expected viewer update from fallback field")
	}
	if e.Viewers.Count != 120 {
		t.Errorf("expected fallback to viewer_count, got %d", e.Viewers.Count)
	}
}

func TestNormalizeViewerUpdate_AbsentCountIgnored(t *testing.T) {
	n := New()

	// No count field at all: must be ignored, not treated as zero.
	_, ok := n.NormalizeViewerUpdate(raw(RawTypeRoomUser, map[string]any{"something": "else"}))

	if ok {
		t.Error("expected no event when no viewer count field is present")
	}
}

func TestNormalize_UnknownTypeDropped(t *testing.T) {
	n := New()

	_, ok := n.Normalize(raw("emote", map[string]any{}))

	if ok {
		t.Error("expected unknown event type to be dropped")
	}
}

func TestDecodeRawEvent(t *testing.T) {
	ts := time.Date(2025, 8, 1, 12, 0, 0, 0, time.UTC)

	e, err := DecodeRawEvent([]byte(`{"type":"comment","data":{"comment":"hi"}}`), ts)
	if err != nil {
		t.Fatalf("decode failed: %v", err)
	}
	if e.Type != RawTypeComment {
		t.Errorf("expected comment type, got %q", e.Type)
	}
	if got := stringField(e.Fields, "", "comment"); got != "hi" {
		t.Errorf("expected comment field, got %q", got)
	}

	// Missing data object still yields a usable event.
	e, err = DecodeRawEvent([]byte(`{"type":"live_end"}`), ts)
	if err != nil {
		t.Fatalf("decode failed: %v", err)
	}
	if e.Fields == nil {
		t.Error("expected non-nil fields map")
	}
}
