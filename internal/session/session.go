// Package session provides in-memory per-session aggregation of live
// events: totals, viewer counts, and the gifter leaderboard. One
// Aggregator exists per tracked account; instances share no state, so
// concurrent accounts are fully isolated.
package session

import (
	"errors"
	"log/slog"
	"sort"
	"sync"
	"time"

	"github.com/rayhanf/livetrack-companion/internal/event"
)

// Sentinel errors for the session package.
var (
	// ErrAlreadyActive is returned when starting a session while one is
	// running. Silently restarting would discard the live counters.
	ErrAlreadyActive = errors.New("session already active")

	// ErrNotActive is returned when ending a session that never started.
	ErrNotActive = errors.New("no active session")
)

// Valuer estimates the coin value of a single gift send.
type Valuer interface {
	Estimate(giftName string, diamondCount int) float64
}

// Clock provides time for deterministic testing.
type Clock interface {
	Now() time.Time
}

type realClock struct{}

func (realClock) Now() time.Time { return time.Now() }

// Metrics holds the per-session counters.
// Invariant: PeakViewers >= CurrentViewers after any update.
type Metrics struct {
	TotalGifts     int                `json:"total_gifts"`
	TotalCoins     float64            `json:"total_coins"`
	TotalComments  int                `json:"total_comments"`
	TotalLikes     int                `json:"total_likes"`
	TotalFollows   int                `json:"total_follows"`
	TotalShares    int                `json:"total_shares"`
	CurrentViewers int                `json:"current_viewers"`
	PeakViewers    int                `json:"peak_viewers"`
	GifterTotals   map[string]float64 `json:"gifter_totals"`
	GifterCounts   map[string]int     `json:"gifter_counts"`
}

// GifterStanding is one leaderboard row.
type GifterStanding struct {
	Username string  `json:"username"`
	Total    float64 `json:"total"`
	Gifts    int     `json:"gifts"`
}

// Snapshot is a read-only copy of the session state, safe to hand to
// another goroutine.
type Snapshot struct {
	Active     bool      `json:"active"`
	Account    string    `json:"account,omitempty"`
	ExternalID string    `json:"external_id,omitempty"`
	StartedAt  time.Time `json:"started_at,omitzero"`
	Connected  bool      `json:"connected"`
	Reason     string    `json:"reason,omitempty"`
	Metrics    Metrics   `json:"metrics"`
}

// Summary is the immutable final record returned by End, for persistence.
type Summary struct {
	Account    string
	ExternalID string
	StartedAt  time.Time
	EndedAt    time.Time
	Metrics    Metrics
	TopGifters []GifterStanding
}

// Aggregator owns the counters for one account's live session.
// Events are applied by a single delivery goroutine; snapshots may be
// read concurrently from a UI refresh timer.
type Aggregator struct {
	mu sync.RWMutex

	active     bool
	account    string
	externalID string
	startedAt  time.Time
	connected  bool
	reason     string

	metrics     Metrics
	gifterOrder []string // first-seen order, leaderboard tie-break

	valuer Valuer
	clock  Clock
	logger *slog.Logger
}

// Option configures an Aggregator.
type Option func(*Aggregator)

// WithClock sets the clock (for testing).
func WithClock(clock Clock) Option {
	return func(a *Aggregator) { a.clock = clock }
}

// WithLogger sets the logger.
func WithLogger(logger *slog.Logger) Option {
	return func(a *Aggregator) {
		if logger != nil {
			a.logger = logger
		}
	}
}

// New creates an Aggregator. valuer prices gifts that arrive without a
// usable diamond count; it must not be nil.
func New(valuer Valuer, opts ...Option) *Aggregator {
	a := &Aggregator{
		valuer: valuer,
		clock:  realClock{},
		logger: slog.Default(),
	}
	for _, opt := range opts {
		opt(a)
	}
	a.resetLocked()
	return a
}

// Start begins a new session for account, resetting all counters.
// Returns ErrAlreadyActive if a session is already running.
func (a *Aggregator) Start(account, externalID string) error {
	a.mu.Lock()
	defer a.mu.Unlock()

	if a.active {
		return ErrAlreadyActive
	}

	a.resetLocked()
	a.active = true
	a.account = account
	a.externalID = externalID
	a.startedAt = a.clock.Now()

	a.logger.Info("session started", "account", account, "session_id", externalID)
	return nil
}

// Apply folds one normalized event into the session counters.
// A no-op while no session is active: late events are dropped, not queued.
func (a *Aggregator) Apply(e *event.LiveEvent) {
	if e == nil {
		return
	}

	a.mu.Lock()
	defer a.mu.Unlock()

	if e.Kind == event.KindConnectionStatus {
		// Connection transitions are tracked even between sessions so the
		// UI always shows the real stream state.
		if e.Status != nil {
			a.connected = e.Status.Connected
			a.reason = e.Status.Reason
		}
		return
	}

	if !a.active {
		return
	}

	switch e.Kind {
	case event.KindComment:
		a.metrics.TotalComments++
	case event.KindGift:
		a.applyGiftLocked(e)
	case event.KindLike:
		if e.Like != nil {
			a.metrics.TotalLikes += e.Like.Count
		}
	case event.KindFollow:
		a.metrics.TotalFollows++
	case event.KindShare:
		a.metrics.TotalShares++
	case event.KindViewerUpdate:
		if e.Viewers != nil {
			a.metrics.CurrentViewers = e.Viewers.Count
			if e.Viewers.Count > a.metrics.PeakViewers {
				a.metrics.PeakViewers = e.Viewers.Count
			}
		}
	}
}

// applyGiftLocked assumes the normalizer already collapsed streaks, so
// every gift event here is final and counted exactly once.
func (a *Aggregator) applyGiftLocked(e *event.LiveEvent) {
	if e.Gift == nil {
		return
	}

	repeat := e.Gift.RepeatCount
	if repeat < 1 {
		repeat = 1
	}
	a.metrics.TotalGifts += repeat

	value := a.valuer.Estimate(e.Gift.Name, e.Gift.DiamondCount) * float64(repeat)
	a.metrics.TotalCoins += value

	name := e.DisplayName()
	if name == "Unknown" {
		// Anonymous sends count toward totals but not the leaderboard.
		return
	}

	if _, seen := a.metrics.GifterTotals[name]; !seen {
		a.gifterOrder = append(a.gifterOrder, name)
	}
	a.metrics.GifterTotals[name] += value
	a.metrics.GifterCounts[name]++
}

// Snapshot returns a deep copy of the current session state. Safe to
// call from a different goroutine than the one applying events.
func (a *Aggregator) Snapshot() Snapshot {
	a.mu.RLock()
	defer a.mu.RUnlock()

	return Snapshot{
		Active:     a.active,
		Account:    a.account,
		ExternalID: a.externalID,
		StartedAt:  a.startedAt,
		Connected:  a.connected,
		Reason:     a.reason,
		Metrics:    copyMetrics(a.metrics),
	}
}

// TopGifters returns up to limit leaderboard rows sorted by total value
// descending. Ties keep first-seen order: the gifter who reached the
// board earlier ranks higher.
func (a *Aggregator) TopGifters(limit int) []GifterStanding {
	a.mu.RLock()
	defer a.mu.RUnlock()
	return a.topGiftersLocked(limit)
}

func (a *Aggregator) topGiftersLocked(limit int) []GifterStanding {
	standings := make([]GifterStanding, 0, len(a.gifterOrder))
	for _, name := range a.gifterOrder {
		standings = append(standings, GifterStanding{
			Username: name,
			Total:    a.metrics.GifterTotals[name],
			Gifts:    a.metrics.GifterCounts[name],
		})
	}

	sort.SliceStable(standings, func(i, j int) bool {
		return standings[i].Total > standings[j].Total
	})

	if limit > 0 && len(standings) > limit {
		standings = standings[:limit]
	}
	return standings
}

// End marks the session inactive and returns the final summary.
// The counters remain readable until the next Start resets them.
func (a *Aggregator) End() (Summary, error) {
	a.mu.Lock()
	defer a.mu.Unlock()

	if !a.active {
		return Summary{}, ErrNotActive
	}

	a.active = false
	summary := Summary{
		Account:    a.account,
		ExternalID: a.externalID,
		StartedAt:  a.startedAt,
		EndedAt:    a.clock.Now(),
		Metrics:    copyMetrics(a.metrics),
		TopGifters: a.topGiftersLocked(0),
	}

	a.logger.Info("session ended",
		"account", a.account,
		"gifts", summary.Metrics.TotalGifts,
		"comments", summary.Metrics.TotalComments,
		"likes", summary.Metrics.TotalLikes,
		"peak_viewers", summary.Metrics.PeakViewers,
	)
	return summary, nil
}

// Active reports whether a session is currently running.
func (a *Aggregator) Active() bool {
	a.mu.RLock()
	defer a.mu.RUnlock()
	return a.active
}

func (a *Aggregator) resetLocked() {
	a.metrics = Metrics{
		GifterTotals: make(map[string]float64),
		GifterCounts: make(map[string]int),
	}
	a.gifterOrder = nil
	a.account = ""
	a.externalID = ""
	a.startedAt = time.Time{}
}

func copyMetrics(m Metrics) Metrics {
	cp := m
	cp.GifterTotals = make(map[string]float64, len(m.GifterTotals))
	for k, v := range m.GifterTotals {
		cp.GifterTotals[k] = v
	}
	cp.GifterCounts = make(map[string]int, len(m.GifterCounts))
	for k, v := range m.GifterCounts {
		cp.GifterCounts[k] = v
	}
	return cp
}
