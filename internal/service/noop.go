package service

import (
	"context"

	"roulette-server/internal/room"
)

// NoopSettlement accepts every call without keeping balances. Each player
// starts with the same configured balance. Used when no wallet is attached.
type NoopSettlement struct {
	Balance int64
}

var _ room.Settlement = NoopSettlement{}

func (n NoopSettlement) PlaceBet(context.Context, int64, int64, string) (room.BalanceChange, error) {
	return room.BalanceChange{}, nil
}

func (n NoopSettlement) DepositWinnings(context.Context, int64, int64, string) (room.BalanceChange, error) {
	return room.BalanceChange{}, nil
}

func (n NoopSettlement) GetBalance(context.Context, int64) (int64, error) {
	return n.Balance, nil
}
