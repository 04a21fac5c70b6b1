package session

import (
	"errors"
	"testing"
	"time"

	"github.com/rayhanf/livetrack-companion/internal/event"
)

// staticValuer prices gifts from a fixed table, defaulting to 1.
type staticValuer map[string]float64

func (v staticValuer) Estimate(name string, diamonds int) float64 {
	if diamonds > 0 {
		return float64(diamonds)
	}
	if coins, ok := v[name]; ok {
		return coins
	}
	return 1
}

type fakeClock struct{ now time.Time }

func (c *fakeClock) Now() time.Time { return c.now }

func newActive(t *testing.T) *Aggregator {
	t.Helper()
	a := New(staticValuer{})
	if err := a.Start("acc_1", "sess-1"); err != nil {
		t.Fatalf("start failed: %v", err)
	}
	return a
}

func giftEvent(username, name string, diamonds, repeat int) *event.LiveEvent {
	return &event.LiveEvent{
		Kind:     event.KindGift,
		Username: username,
		Gift: &event.GiftPayload{
			Name:         name,
			DiamondCount: diamonds,
			RepeatCount:  repeat,
		},
	}
}

func viewerEvent(count int) *event.LiveEvent {
	return &event.LiveEvent{
		Kind:    event.KindViewerUpdate,
		Viewers: &event.ViewerPayload{Count: count},
	}
}

func TestStart_AlreadyActive(t *testing.T) {
	a := newActive(t)

	err := a.Start("acc_1", "sess-2")
	if !errors.Is(err, ErrAlreadyActive) {
		t.Fatalf("expected ErrAlreadyActive, got %v", err)
	}

	// The running session keeps its identity.
	if snap := a.Snapshot(); snap.ExternalID != "sess-1" {
		t.Errorf("expected sess-1, got %q", snap.ExternalID)
	}
}

func TestApply_InactiveIsNoOp(t *testing.T) {
	a := New(staticValuer{})

	a.Apply(&event.LiveEvent{Kind: event.KindComment, Comment: &event.CommentPayload{Text: "hi"}})
	a.Apply(giftEvent("alice", "Rose", 1, 1))

	snap := a.Snapshot()
	if snap.Metrics.TotalComments != 0 || snap.Metrics.TotalGifts != 0 {
		t.Errorf("expected zero counters before start, got %+v", snap.Metrics)
	}
}

func TestApply_StreakCountedOnce(t *testing.T) {
	a := newActive(t)

	// The normalizer suppresses the 5 in-progress taps; the aggregator
	// only ever sees the final notification with the full repeat count.
	a.Apply(giftEvent("alice", "Rose", 1, 5))

	if got := a.Snapshot().Metrics.TotalGifts; got != 5 {
		t.Errorf("expected total_gifts 5, got %d", got)
	}
	if got := a.Snapshot().Metrics.GifterCounts["alice"]; got != 1 {
		t.Errorf("expected one gift event for alice, got %d", got)
	}
	if got := a.Snapshot().Metrics.GifterTotals["alice"]; got != 5 {
		t.Errorf("expected alice total 5, got %v", got)
	}
}

func TestApply_NonStreakableGiftsIndependent(t *testing.T) {
	a := newActive(t)

	a.Apply(giftEvent("bob", "Money Gun", 499, 1))
	a.Apply(giftEvent("bob", "Money Gun", 499, 1))

	m := a.Snapshot().Metrics
	if m.TotalGifts != 2 {
		t.Errorf("expected 2 gifts, got %d", m.TotalGifts)
	}
	if m.GifterCounts["bob"] != 2 {
		t.Errorf("expected 2 gift events, got %d", m.GifterCounts["bob"])
	}
	if m.GifterTotals["bob"] != 998 {
		t.Errorf("expected total 998, got %v", m.GifterTotals["bob"])
	}
}

func TestApply_ValueFallsBackToTable(t *testing.T) {
	a := New(staticValuer{"Galaxy": 1000})
	if err := a.Start("acc_1", "s"); err != nil {
		t.Fatal(err)
	}

	// No diamond count from the feed; the valuer's table prices it.
	a.Apply(giftEvent("carol", "Galaxy", 0, 2))

	if got := a.Snapshot().Metrics.GifterTotals["carol"]; got != 2000 {
		t.Errorf("expected 2000, got %v", got)
	}
}

func TestApply_PeakViewersMonotonic(t *testing.T) {
	a := newActive(t)

	for _, count := range []int{120, 340, 90, 500, 200} {
		a.Apply(viewerEvent(count))
	}

	m := a.Snapshot().Metrics
	if m.CurrentViewers != 200 {
		t.Errorf("expected current 200, got %d", m.CurrentViewers)
	}
	if m.PeakViewers != 500 {
		t.Errorf("expected peak 500, got %d", m.PeakViewers)
	}
}

func TestApply_LikesAccumulateDelta(t *testing.T) {
	a := newActive(t)

	a.Apply(&event.LiveEvent{Kind: event.KindLike, Like: &event.LikePayload{Count: 15}})
	a.Apply(&event.LiveEvent{Kind: event.KindLike, Like: &event.LikePayload{Count: 1}})

	if got := a.Snapshot().Metrics.TotalLikes; got != 16 {
		t.Errorf("expected 16 likes, got %d", got)
	}
}

func TestTopGifters_TieBreakFirstSeen(t *testing.T) {
	a := newActive(t)

	a.Apply(giftEvent("alice", "Gift", 50, 1))
	a.Apply(giftEvent("bob", "Gift", 500, 1))
	a.Apply(giftEvent("carol", "Gift", 500, 1))

	top := a.TopGifters(3)
	want := []string{"bob", "carol", "alice"}
	if len(top) != 3 {
		t.Fatalf("expected 3 rows, got %d", len(top))
	}
	for i, name := range want {
		if top[i].Username != name {
			t.Errorf("rank %d: expected %s, got %s", i, name, top[i].Username)
		}
	}
}

func TestTopGifters_Limit(t *testing.T) {
	a := newActive(t)

	a.Apply(giftEvent("alice", "Gift", 10, 1))
	a.Apply(giftEvent("bob", "Gift", 20, 1))
	a.Apply(giftEvent("carol", "Gift", 30, 1))

	top := a.TopGifters(2)
	if len(top) != 2 {
		t.Fatalf("expected 2 rows, got %d", len(top))
	}
	if top[0].Username != "carol" || top[1].Username != "bob" {
		t.Errorf("unexpected ranking: %+v", top)
	}
}

func TestApply_AnonymousGiftSkipsLeaderboard(t *testing.T) {
	a := newActive(t)

	a.Apply(giftEvent("", "Rose", 1, 3))

	m := a.Snapshot().Metrics
	if m.TotalGifts != 3 {
		t.Errorf("expected total 3, got %d", m.TotalGifts)
	}
	if len(m.GifterTotals) != 0 {
		t.Errorf("expected empty leaderboard, got %+v", m.GifterTotals)
	}
}

func TestEnd_ReturnsSummaryAndKeepsTotalsReadable(t *testing.T) {
	clk := &fakeClock{now: time.Date(2025, 8, 1, 20, 0, 0, 0, time.UTC)}
	a := New(staticValuer{}, WithClock(clk))
	if err := a.Start("acc_1", "sess-9"); err != nil {
		t.Fatal(err)
	}

	a.Apply(giftEvent("alice", "Rose", 1, 2))
	clk.now = clk.now.Add(30 * time.Minute)

	summary, err := a.End()
	if err != nil {
		t.Fatalf("end failed: %v", err)
	}
	if summary.Metrics.TotalGifts != 2 {
		t.Errorf("expected 2 gifts in summary, got %d", summary.Metrics.TotalGifts)
	}
	if len(summary.TopGifters) != 1 || summary.TopGifters[0].Username != "alice" {
		t.Errorf("unexpected leaderboard: %+v", summary.TopGifters)
	}
	if !summary.EndedAt.After(summary.StartedAt) {
		t.Error("expected EndedAt after StartedAt")
	}

	// Totals stay readable after End until the next Start.
	if got := a.Snapshot().Metrics.TotalGifts; got != 2 {
		t.Errorf("expected totals readable after end, got %d", got)
	}

	if _, err := a.End(); !errors.Is(err, ErrNotActive) {
		t.Errorf("expected ErrNotActive on second end, got %v", err)
	}
}

func TestStart_AfterEndResetsCounters(t *testing.T) {
	a := newActive(t)
	a.Apply(giftEvent("alice", "Rose", 1, 4))
	if _, err := a.End(); err != nil {
		t.Fatal(err)
	}

	if err := a.Start("acc_1", "sess-2"); err != nil {
		t.Fatal(err)
	}
	if got := a.Snapshot().Metrics.TotalGifts; got != 0 {
		t.Errorf("expected fresh counters, got %d", got)
	}
}

func TestAggregators_Isolated(t *testing.T) {
	a1 := New(staticValuer{})
	a2 := New(staticValuer{})
	if err := a1.Start("acc_1", "s1"); err != nil {
		t.Fatal(err)
	}
	if err := a2.Start("acc_2", "s2"); err != nil {
		t.Fatal(err)
	}

	a1.Apply(giftEvent("alice", "Rose", 1, 10))

	if got := a2.Snapshot().Metrics.TotalGifts; got != 0 {
		t.Errorf("expected isolated aggregators, a2 saw %d gifts", got)
	}
}

func TestApply_ConnectionStatusTrackedBetweenSessions(t *testing.T) {
	a := New(staticValuer{})

	a.Apply(&event.LiveEvent{
		Kind:   event.KindConnectionStatus,
		Status: &event.ConnectionPayload{Connected: false, Reason: "timeout"},
	})

	snap := a.Snapshot()
	if snap.Connected {
		t.Error("expected disconnected state")
	}
	if snap.Reason != "timeout" {
		t.Errorf("expected reason, got %q", snap.Reason)
	}
}

func TestSnapshot_IsIndependentCopy(t *testing.T) {
	a := newActive(t)
	a.Apply(giftEvent("alice", "Rose", 1, 1))

	snap := a.Snapshot()
	snap.Metrics.GifterTotals["alice"] = 9999

	if got := a.Snapshot().Metrics.GifterTotals["alice"]; got != 1 {
		t.Errorf("snapshot mutation leaked into aggregator: %v", got)
	}
}
