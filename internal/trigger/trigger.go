// Package trigger decides whether a comment or gift event should fire a
// configured external action. Keyword matches are cooldown-gated per
// (account, keyword); gift matches are not rate-limited, since gifts
// cost real money.
package trigger

import (
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/rayhanf/livetrack-companion/internal/event"
)

// Match types for keyword rules.
const (
	MatchExact    = "exact"
	MatchContains = "contains"
)

// DefaultCooldown applies when a rule carries no cooldown of its own.
const DefaultCooldown = 30 * time.Second

// KeywordRule maps a comment keyword to a device action.
// Rules are loaded from the store and only read at runtime.
type KeywordRule struct {
	ID              int64
	AccountID       int64
	Keyword         string
	MatchType       string // exact | contains
	ActionType      string
	DeviceTarget    string
	CooldownSeconds int
	IsActive        bool
}

// GiftAction maps a gift name to a device action.
type GiftAction struct {
	ID           int64
	AccountID    int64
	GiftName     string
	ActionType   string
	DeviceTarget string
	IsActive     bool
}

// ActionRequest asks the hardware controller to execute an action.
// Dispatch is fire-and-forget; the engine never waits on hardware.
type ActionRequest struct {
	AccountID    int64
	ActionType   string
	DeviceTarget string
	Matched      string // the keyword or gift name that fired
}

// Clock provides time for deterministic testing.
type Clock interface {
	Now() time.Time
}

type realClock struct{}

func (realClock) Now() time.Time { return time.Now() }

type cooldownKey struct {
	accountID int64
	keyword   string
}

// Engine evaluates events against configured rules.
// Safe for concurrent use; cooldown state is guarded by a mutex since
// multiple account feeds may deliver comments concurrently.
type Engine struct {
	mu        sync.Mutex
	cooldowns map[cooldownKey]time.Time

	clock  Clock
	logger *slog.Logger
}

// Option configures an Engine.
type Option func(*Engine)

// WithClock sets the clock (for testing).
func WithClock(clock Clock) Option {
	return func(e *Engine) { e.clock = clock }
}

// WithLogger sets the logger.
func WithLogger(logger *slog.Logger) Option {
	return func(e *Engine) {
		if logger != nil {
			e.logger = logger
		}
	}
}

// New creates an Engine.
func New(opts ...Option) *Engine {
	e := &Engine{
		cooldowns: make(map[cooldownKey]time.Time),
		clock:     realClock{},
		logger:    slog.Default(),
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// EvaluateComment checks a comment against the rules in their given
// order and returns an action for the first matching active rule, or nil.
//
// First-match-wins is deliberate: one comment must not fire several
// conflicting hardware actions. A rule on cooldown suppresses the action
// and does NOT reset its window, so spamming a keyword cannot keep the
// action locked out forever.
func (e *Engine) EvaluateComment(ev *event.LiveEvent, rules []KeywordRule) *ActionRequest {
	if ev == nil || ev.Comment == nil || ev.Comment.Text == "" {
		return nil
	}
	text := strings.ToLower(ev.Comment.Text)

	for _, rule := range rules {
		if !rule.IsActive || rule.Keyword == "" {
			// Malformed or disabled rules are skipped, never fatal.
			continue
		}

		keyword := strings.ToLower(rule.Keyword)
		matched := false
		switch rule.MatchType {
		case MatchExact:
			matched = text == keyword
		case MatchContains:
			matched = strings.Contains(text, keyword)
		default:
			continue
		}
		if !matched {
			continue
		}

		if !e.passCooldown(rule) {
			e.logger.Debug("keyword on cooldown",
				"account_id", rule.AccountID,
				"keyword", rule.Keyword,
			)
			return nil
		}

		return &ActionRequest{
			AccountID:    rule.AccountID,
			ActionType:   rule.ActionType,
			DeviceTarget: rule.DeviceTarget,
			Matched:      rule.Keyword,
		}
	}
	return nil
}

// EvaluateGift looks the gift name up in the account's gift-action table
// (case-sensitive exact). No cooldown applies.
func (e *Engine) EvaluateGift(ev *event.LiveEvent, actions []GiftAction) *ActionRequest {
	if ev == nil || ev.Gift == nil || ev.Gift.Name == "" {
		return nil
	}

	for _, action := range actions {
		if !action.IsActive || action.GiftName == "" {
			continue
		}
		if action.GiftName != ev.Gift.Name {
			continue
		}
		return &ActionRequest{
			AccountID:    action.AccountID,
			ActionType:   action.ActionType,
			DeviceTarget: action.DeviceTarget,
			Matched:      action.GiftName,
		}
	}
	return nil
}

// ResetCooldowns clears all cooldown state for an account. Called on
// session start: cooldown windows are session-scoped, so a new session
// never inherits suppressions from the previous one.
func (e *Engine) ResetCooldowns(accountID int64) {
	e.mu.Lock()
	defer e.mu.Unlock()
	for key := range e.cooldowns {
		if key.accountID == accountID {
			delete(e.cooldowns, key)
		}
	}
}

// passCooldown reports whether the rule may fire now, and records the
// firing time when it does.
func (e *Engine) passCooldown(rule KeywordRule) bool {
	cooldown := time.Duration(rule.CooldownSeconds) * time.Second
	if rule.CooldownSeconds <= 0 {
		cooldown = DefaultCooldown
	}

	key := cooldownKey{accountID: rule.AccountID, keyword: strings.ToLower(rule.Keyword)}
	now := e.clock.Now()

	e.mu.Lock()
	defer e.mu.Unlock()

	if last, ok := e.cooldowns[key]; ok && now.Sub(last) < cooldown {
		return false
	}
	e.cooldowns[key] = now
	return true
}
