package app

import (
	"context"

	"github.com/rayhanf/livetrack-companion/internal/hardware"
	"github.com/rayhanf/livetrack-companion/internal/session"
)

// defaultLeaderboardSize is how many gifters the stats endpoint returns.
const defaultLeaderboardSize = 10

// StatsResult represents the response for the stats endpoint.
type StatsResult struct {
	Live          session.Snapshot         `json:"live"`
	TopGifters    []session.GifterStanding `json:"top_gifters"`
	Hardware      *hardware.Status         `json:"hardware,omitempty"`
	GiftTableSize int                      `json:"gift_table_size,omitempty"`
}

// StatsUsecase defines the interface for stats operations.
type StatsUsecase interface {
	GetStats(ctx context.Context) (*StatsResult, error)
}

// LiveSource provides read access to the running session aggregator.
type LiveSource interface {
	Snapshot() session.Snapshot
	TopGifters(limit int) []session.GifterStanding
}

// HardwareSource reports the serial controller status.
type HardwareSource interface {
	Status() hardware.Status
}

// GiftTableSource reports how many gifts the value table currently holds.
type GiftTableSource interface {
	TableSize() int
}

// StatsService implements StatsUsecase.
type StatsService struct {
	live      LiveSource
	hardware  HardwareSource
	giftTable GiftTableSource
}

// NewStatsService creates a new StatsService. hardware and giftTable may
// be nil when no serial controller or value table is attached.
func NewStatsService(live LiveSource, hw HardwareSource, giftTable GiftTableSource) *StatsService {
	return &StatsService{live: live, hardware: hw, giftTable: giftTable}
}

// GetStats returns the current session snapshot, gifter leaderboard and
// hardware status.
func (s *StatsService) GetStats(ctx context.Context) (*StatsResult, error) {
	result := &StatsResult{
		Live:       s.live.Snapshot(),
		TopGifters: s.live.TopGifters(defaultLeaderboardSize),
	}
	if result.TopGifters == nil {
		result.TopGifters = []session.GifterStanding{}
	}
	if s.hardware != nil {
		status := s.hardware.Status()
		result.Hardware = &status
	}
	if s.giftTable != nil {
		result.GiftTableSize = s.giftTable.TableSize()
	}
	return result, nil
}
