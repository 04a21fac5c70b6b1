// Package giftvalue estimates the coin value of gifts. The upstream feed
// does not always populate diamond values, and a meaningful leaderboard
// needs some value for every gift, so estimation falls back through a
// chain: feed diamond count, static name table, name-keyword tiers,
// default 1. The table and tiers are configuration data, loaded from an
// embedded default file and optionally overridden by a user file.
package giftvalue

import (
	_ "embed"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"strings"
	"sync"
)

//go:embed defaults.json
var defaultTableJSON []byte

// Tier maps a set of gift-name keywords to a fixed coin value.
type Tier struct {
	Keywords []string `json:"keywords"`
	Coins    float64  `json:"coins"`
}

// Table is the on-disk format for gift value data.
type Table struct {
	SchemaVersion int                `json:"schema_version"`
	Gifts         map[string]float64 `json:"gifts"`
	Tiers         []Tier             `json:"tiers"`
}

// Estimator resolves gift names to estimated coin values.
// Safe for concurrent use; the table can be swapped at runtime via Reload.
type Estimator struct {
	mu     sync.RWMutex
	table  Table
	logger *slog.Logger
}

// Option configures an Estimator.
type Option func(*Estimator)

// WithLogger sets the logger.
func WithLogger(logger *slog.Logger) Option {
	return func(e *Estimator) {
		if logger != nil {
			e.logger = logger
		}
	}
}

// New creates an Estimator loaded with the embedded default table.
func New(opts ...Option) *Estimator {
	e := &Estimator{logger: slog.Default()}
	for _, opt := range opts {
		opt(e)
	}
	table, err := parseTable(defaultTableJSON)
	if err != nil {
		// The embedded table is validated by tests; an empty table still
		// estimates via the default value.
		e.logger.Error("embedded gift table invalid", "error", err)
		table = Table{Gifts: map[string]float64{}}
	}
	e.table = table
	return e
}

// Estimate returns the estimated coin value for a single gift send.
//
// Priority: (1) the feed's diamond count when positive, (2) exact name
// lookup in the static table, (3) keyword tier match on the lowercased
// name, (4) 1. The chain is approximate for unknown names; that is
// accepted behavior, and the table is user-editable to correct it.
func (e *Estimator) Estimate(giftName string, diamondCount int) float64 {
	if diamondCount > 0 {
		return float64(diamondCount)
	}

	e.mu.RLock()
	defer e.mu.RUnlock()

	if coins, ok := e.table.Gifts[giftName]; ok {
		return coins
	}

	lower := strings.ToLower(giftName)
	for _, tier := range e.table.Tiers {
		for _, kw := range tier.Keywords {
			if strings.Contains(lower, kw) {
				return tier.Coins
			}
		}
	}

	return 1
}

// LoadFile replaces the current table with the contents of path.
// The previous table is kept on any error.
func (e *Estimator) LoadFile(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read gift table: %w", err)
	}
	table, err := parseTable(data)
	if err != nil {
		return fmt.Errorf("parse gift table %q: %w", path, err)
	}

	e.mu.Lock()
	e.table = table
	e.mu.Unlock()

	e.logger.Info("gift value table loaded", "path", path, "gifts", len(table.Gifts), "tiers", len(table.Tiers))
	return nil
}

// TableSize returns the number of named gifts in the current table.
func (e *Estimator) TableSize() int {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return len(e.table.Gifts)
}

func parseTable(data []byte) (Table, error) {
	var t Table
	if err := json.Unmarshal(data, &t); err != nil {
		return Table{}, err
	}
	if t.Gifts == nil {
		t.Gifts = map[string]float64{}
	}
	// Lowercase tier keywords once so Estimate can match directly.
	for i := range t.Tiers {
		for j, kw := range t.Tiers[i].Keywords {
			t.Tiers[i].Keywords[j] = strings.ToLower(kw)
		}
	}
	return t, nil
}
