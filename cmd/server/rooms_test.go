package main

import (
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"roulette-server/internal/config"
	"roulette-server/internal/game/roulette"
)

func baseConfig() *config.Config {
	return &config.Config{
		Room: config.RoomConfig{
			BettingSeconds: 20,
			SpinDelay:      3 * time.Second,
			PayoutDelay:    2 * time.Second,
			Tick:           time.Second,
			QueueSize:      20,
		},
		Tournament: config.TournamentConfig{
			EntryFee:     5_000,
			MaxPlayers:   4,
			MinPlayers:   2,
			Rounds:       5,
			HouseCut:     "0.15",
			ResultsGrace: 10 * time.Second,
		},
		Settlement: config.SettlementConfig{Timeout: 7 * time.Second},
	}
}

func TestRoomConfig(t *testing.T) {
	cfg := baseConfig()
	cfg.Limits = map[string]int64{"straight": 2_500}

	rc, err := roomConfig(cfg)
	require.NoError(t, err)
	assert.Equal(t, 20, rc.BettingSeconds)
	assert.Equal(t, 7*time.Second, rc.SettlementTimeout)
	assert.True(t, decimal.RequireFromString("0.15").Equal(rc.Tournament.HouseCut))
	assert.Equal(t, int64(5_000), rc.Tournament.EntryFee)
	assert.Equal(t, int64(2_500), rc.Limits[roulette.FamilyStraight])
	assert.Equal(t, roulette.DefaultStakeLimits()[roulette.FamilyDozen], rc.Limits[roulette.FamilyDozen])
}

func TestRoomConfig_Rejects(t *testing.T) {
	cfg := baseConfig()
	cfg.Limits = map[string]int64{"sixline": 100}
	_, err := roomConfig(cfg)
	assert.ErrorContains(t, err, "unknown bet family")

	cfg = baseConfig()
	cfg.Limits = map[string]int64{"split": -1}
	_, err = roomConfig(cfg)
	assert.ErrorContains(t, err, "must be positive")

	cfg = baseConfig()
	cfg.Limits = map[string]int64{"straight": 0}
	_, err = roomConfig(cfg)
	assert.ErrorContains(t, err, "must be positive", "a zero limit would lift the ceiling")

	cfg = baseConfig()
	cfg.Tournament.HouseCut = "1.5"
	_, err = roomConfig(cfg)
	assert.Error(t, err)
}
