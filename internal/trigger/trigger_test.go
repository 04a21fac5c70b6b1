package trigger

import (
	"testing"
	"time"

	"github.com/rayhanf/livetrack-companion/internal/event"
)

type fakeClock struct{ now time.Time }

func (c *fakeClock) Now() time.Time { return c.now }

func (c *fakeClock) advance(d time.Duration) { c.now = c.now.Add(d) }

func commentEvent(text string) *event.LiveEvent {
	return &event.LiveEvent{
		Kind:    event.KindComment,
		Comment: &event.CommentPayload{Text: text},
	}
}

func giftEvent(name string) *event.LiveEvent {
	return &event.LiveEvent{
		Kind: event.KindGift,
		Gift: &event.GiftPayload{Name: name, RepeatCount: 1},
	}
}

func rule(keyword, matchType string, cooldownSec int) KeywordRule {
	return KeywordRule{
		AccountID:       1,
		Keyword:         keyword,
		MatchType:       matchType,
		ActionType:      "pulse",
		DeviceTarget:    "relay1",
		CooldownSeconds: cooldownSec,
		IsActive:        true,
	}
}

func TestEvaluateComment_ExactMatch(t *testing.T) {
	e := New()
	rules := []KeywordRule{rule("fire", MatchExact, 30)}

	if req := e.EvaluateComment(commentEvent("FIRE"), rules); req == nil {
		t.Fatal("expected case-insensitive exact match")
	}
	if req := e.EvaluateComment(commentEvent("fire now"), rules); req != nil {
		t.Error("exact match must require full-string equality")
	}
}

func TestEvaluateComment_ContainsMatch(t *testing.T) {
	e := New()
	rules := []KeywordRule{rule("water", MatchContains, 30)}

	req := e.EvaluateComment(commentEvent("please WATER the plants"), rules)
	if req == nil {
		t.Fatal("expected substring match")
	}
	if req.ActionType != "pulse" || req.DeviceTarget != "relay1" {
		t.Errorf("unexpected action: %+v", req)
	}
	if req.Matched != "water" {
		t.Errorf("expected matched keyword, got %q", req.Matched)
	}
}

func TestEvaluateComment_FirstMatchWins(t *testing.T) {
	e := New()
	first := rule("hello", MatchContains, 30)
	first.DeviceTarget = "relay1"
	second := rule("hello world", MatchContains, 30)
	second.DeviceTarget = "relay2"

	req := e.EvaluateComment(commentEvent("hello world"), []KeywordRule{first, second})
	if req == nil {
		t.Fatal("expected a match")
	}
	if req.DeviceTarget != "relay1" {
		t.Errorf("expected first rule to win, got %q", req.DeviceTarget)
	}
}

func TestEvaluateComment_CooldownWindow(t *testing.T) {
	clk := &fakeClock{now: time.Date(2025, 8, 1, 12, 0, 0, 0, time.UTC)}
	e := New(WithClock(clk))
	rules := []KeywordRule{rule("go", MatchExact, 30)}

	// t=0: fires.
	if e.EvaluateComment(commentEvent("go"), rules) == nil {
		t.Fatal("expected first firing to succeed")
	}

	// t=10: suppressed, and must not reset the window.
	clk.advance(10 * time.Second)
	if e.EvaluateComment(commentEvent("go"), rules) != nil {
		t.Fatal("expected suppression inside cooldown window")
	}

	// t=31: window measured from t=0, so this fires. If the suppressed
	// attempt at t=10 had reset the clock, this would still be blocked.
	clk.advance(21 * time.Second)
	if e.EvaluateComment(commentEvent("go"), rules) == nil {
		t.Fatal("expected firing after cooldown expiry")
	}
}

func TestEvaluateComment_CooldownPerKeyword(t *testing.T) {
	clk := &fakeClock{now: time.Now()}
	e := New(WithClock(clk))
	rules := []KeywordRule{
		rule("red", MatchExact, 30),
		rule("blue", MatchExact, 30),
	}

	if e.EvaluateComment(commentEvent("red"), rules) == nil {
		t.Fatal("expected red to fire")
	}
	// A different keyword is tracked independently.
	if e.EvaluateComment(commentEvent("blue"), rules) == nil {
		t.Fatal("expected blue to fire despite red's cooldown")
	}
}

func TestEvaluateComment_SkipsInactiveAndMalformed(t *testing.T) {
	e := New()
	inactive := rule("match", MatchContains, 30)
	inactive.IsActive = false
	empty := rule("", MatchContains, 30)
	good := rule("match", MatchContains, 30)
	good.DeviceTarget = "relay9"

	req := e.EvaluateComment(commentEvent("a match here"), []KeywordRule{inactive, empty, good})
	if req == nil {
		t.Fatal("expected later valid rule to be evaluated")
	}
	if req.DeviceTarget != "relay9" {
		t.Errorf("expected relay9, got %q", req.DeviceTarget)
	}
}

func TestEvaluateComment_NoMatchReturnsNil(t *testing.T) {
	e := New()
	rules := []KeywordRule{rule("keyword", MatchExact, 30)}

	if e.EvaluateComment(commentEvent("nothing relevant"), rules) != nil {
		t.Error("expected nil for unmatched comment")
	}
	if e.EvaluateComment(commentEvent(""), rules) != nil {
		t.Error("expected nil for empty comment")
	}
}

func TestResetCooldowns_SessionScoped(t *testing.T) {
	clk := &fakeClock{now: time.Now()}
	e := New(WithClock(clk))
	rules := []KeywordRule{rule("go", MatchExact, 300)}

	if e.EvaluateComment(commentEvent("go"), rules) == nil {
		t.Fatal("expected first firing")
	}
	if e.EvaluateComment(commentEvent("go"), rules) != nil {
		t.Fatal("expected suppression")
	}

	// New session: cooldown state is cleared for the account.
	e.ResetCooldowns(1)
	if e.EvaluateComment(commentEvent("go"), rules) == nil {
		t.Fatal("expected firing after cooldown reset")
	}
}

func TestResetCooldowns_OnlyTargetAccount(t *testing.T) {
	clk := &fakeClock{now: time.Now()}
	e := New(WithClock(clk))

	r1 := rule("go", MatchExact, 300)
	r2 := rule("go", MatchExact, 300)
	r2.AccountID = 2

	if e.EvaluateComment(commentEvent("go"), []KeywordRule{r1}) == nil {
		t.Fatal("expected account 1 to fire")
	}
	if e.EvaluateComment(commentEvent("go"), []KeywordRule{r2}) == nil {
		t.Fatal("expected account 2 to fire")
	}

	e.ResetCooldowns(1)

	if e.EvaluateComment(commentEvent("go"), []KeywordRule{r1}) == nil {
		t.Error("expected account 1 cleared")
	}
	if e.EvaluateComment(commentEvent("go"), []KeywordRule{r2}) != nil {
		t.Error("expected account 2 still on cooldown")
	}
}

func TestEvaluateGift_ExactCaseSensitive(t *testing.T) {
	e := New()
	actions := []GiftAction{{
		AccountID:    1,
		GiftName:     "Money Gun",
		ActionType:   "spin",
		DeviceTarget: "motor1",
		IsActive:     true,
	}}

	if req := e.EvaluateGift(giftEvent("Money Gun"), actions); req == nil {
		t.Fatal("expected gift match")
	}
	if req := e.EvaluateGift(giftEvent("money gun"), actions); req != nil {
		t.Error("gift lookup must be case-sensitive")
	}
}

func TestEvaluateGift_NoCooldown(t *testing.T) {
	e := New()
	actions := []GiftAction{{
		AccountID:    1,
		GiftName:     "Rose",
		ActionType:   "blink",
		DeviceTarget: "led1",
		IsActive:     true,
	}}

	// Back-to-back gifts both fire; gifts are never rate-limited.
	for i := 0; i < 3; i++ {
		if e.EvaluateGift(giftEvent("Rose"), actions) == nil {
			t.Fatalf("expected firing %d to succeed", i)
		}
	}
}

func TestEvaluateGift_InactiveSkipped(t *testing.T) {
	e := New()
	actions := []GiftAction{{
		AccountID: 1,
		GiftName:  "Rose",
		IsActive:  false,
	}}

	if e.EvaluateGift(giftEvent("Rose"), actions) != nil {
		t.Error("expected inactive action to be skipped")
	}
}
