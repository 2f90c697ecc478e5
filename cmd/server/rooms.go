package main

import (
	"fmt"

	"roulette-server/internal/config"
	"roulette-server/internal/game/roulette"
	"roulette-server/internal/room"
)

// roomConfig converts the loaded settings into room settings.
func roomConfig(cfg *config.Config) (room.Config, error) {
	houseCut, err := cfg.Tournament.HouseCutDecimal()
	if err != nil {
		return room.Config{}, err
	}

	defaults := roulette.DefaultStakeLimits()
	for family, limit := range cfg.Limits {
		if _, ok := defaults[roulette.Family(family)]; !ok {
			return room.Config{}, fmt.Errorf("limits: unknown bet family %q", family)
		}
		if limit <= 0 {
			return room.Config{}, fmt.Errorf("limits: %s must be positive, got %d", family, limit)
		}
	}

	return room.Config{
		BettingSeconds:    cfg.Room.BettingSeconds,
		SpinDelay:         cfg.Room.SpinDelay,
		PayoutDelay:       cfg.Room.PayoutDelay,
		Tick:              cfg.Room.Tick,
		Manual:            cfg.Room.Manual,
		QueueSize:         cfg.Room.QueueSize,
		Limits:            defaults.Merge(cfg.Limits),
		SettlementTimeout: cfg.Settlement.Timeout,
		Tournament: room.TournamentConfig{
			EntryFee:     cfg.Tournament.EntryFee,
			MaxPlayers:   cfg.Tournament.MaxPlayers,
			MinPlayers:   cfg.Tournament.MinPlayers,
			Rounds:       cfg.Tournament.Rounds,
			HouseCut:     houseCut,
			ResultsGrace: cfg.Tournament.ResultsGrace,
		},
	}, nil
}
