// Package service provides the settlement providers rooms report to.
package service

import (
	"context"
	"errors"
	"fmt"

	"github.com/rs/zerolog/log"

	"roulette-server/internal/model"
	"roulette-server/internal/repository"
	"roulette-server/internal/room"
)

// Wallet errors.
var (
	ErrInvalidAmount       = errors.New("invalid amount: must be positive")
	ErrInsufficientBalance = errors.New("insufficient balance")
	ErrUserNotFound        = errors.New("user not found")
)

type userStore interface {
	GetOrCreate(ctx context.Context, id int64, username string, balance int64) (*model.User, bool, error)
	UpdateBalance(ctx context.Context, id int64, amount int64) (*model.User, error)
}

type transactionStore interface {
	Create(ctx context.Context, userID int64, amount int64, txType string, description *string) (*model.Transaction, error)
}

// WalletSettlement keeps real balances in the users table and logs every
// movement in transactions.
type WalletSettlement struct {
	users          userStore
	txs            transactionStore
	initialBalance int64
}

var _ room.Settlement = (*WalletSettlement)(nil)

// NewWalletSettlement creates a wallet. Unknown players are opened with
// initialBalance on first contact.
func NewWalletSettlement(users *repository.UserRepository, txs *repository.TransactionRepository, initialBalance int64) *WalletSettlement {
	return newWalletSettlement(users, txs, initialBalance)
}

func newWalletSettlement(users userStore, txs transactionStore, initialBalance int64) *WalletSettlement {
	return &WalletSettlement{users: users, txs: txs, initialBalance: initialBalance}
}

// GetBalance returns the player's balance, opening an account if needed.
func (w *WalletSettlement) GetBalance(ctx context.Context, playerID int64) (int64, error) {
	user, err := w.ensure(ctx, playerID)
	if err != nil {
		return 0, err
	}
	return user.Balance, nil
}

// PlaceBet debits amount. The balance never goes below zero.
func (w *WalletSettlement) PlaceBet(ctx context.Context, playerID int64, amount int64, ip string) (room.BalanceChange, error) {
	if amount <= 0 {
		return room.BalanceChange{}, ErrInvalidAmount
	}
	user, err := w.users.UpdateBalance(ctx, playerID, -amount)
	if err != nil {
		switch {
		case errors.Is(err, repository.ErrInsufficientFunds):
			return room.BalanceChange{}, fmt.Errorf("failed to debit %d: %w", amount, ErrInsufficientBalance)
		case errors.Is(err, repository.ErrUserNotFound):
			return room.BalanceChange{}, ErrUserNotFound
		}
		return room.BalanceChange{}, fmt.Errorf("failed to debit: %w", err)
	}

	w.record(ctx, playerID, -amount, room.SettlementKind(ctx, model.TxTypeRouletteBet), ip)
	return room.BalanceChange{BalanceBefore: user.Balance + amount, BalanceAfter: user.Balance}, nil
}

// DepositWinnings credits amount.
func (w *WalletSettlement) DepositWinnings(ctx context.Context, playerID int64, amount int64, ip string) (room.BalanceChange, error) {
	return w.credit(ctx, playerID, amount, room.SettlementKind(ctx, model.TxTypeRouletteWin), ip)
}

// Credit adds amount outside of play, for operator top-ups.
func (w *WalletSettlement) Credit(ctx context.Context, playerID int64, amount int64) (room.BalanceChange, error) {
	if _, err := w.ensure(ctx, playerID); err != nil {
		return room.BalanceChange{}, err
	}
	return w.credit(ctx, playerID, amount, model.TxTypeAdminAdd, "")
}

func (w *WalletSettlement) credit(ctx context.Context, playerID int64, amount int64, kind, ip string) (room.BalanceChange, error) {
	if amount <= 0 {
		return room.BalanceChange{}, ErrInvalidAmount
	}
	user, err := w.users.UpdateBalance(ctx, playerID, amount)
	if err != nil {
		if errors.Is(err, repository.ErrUserNotFound) {
			return room.BalanceChange{}, ErrUserNotFound
		}
		return room.BalanceChange{}, fmt.Errorf("failed to credit: %w", err)
	}

	w.record(ctx, playerID, amount, kind, ip)
	return room.BalanceChange{BalanceBefore: user.Balance - amount, BalanceAfter: user.Balance}, nil
}

func (w *WalletSettlement) ensure(ctx context.Context, playerID int64) (*model.User, error) {
	user, created, err := w.users.GetOrCreate(ctx, playerID, fmt.Sprintf("player-%d", playerID), w.initialBalance)
	if err != nil {
		return nil, fmt.Errorf("failed to ensure user: %w", err)
	}
	if created {
		log.Info().Int64("player_id", playerID).Int64("balance", user.Balance).Msg("Wallet opened")
		w.record(ctx, playerID, user.Balance, model.TxTypeInitial, "")
	}
	return user, nil
}

// record logs a movement. The balance is already updated, so a failed write is
// logged and not returned.
func (w *WalletSettlement) record(ctx context.Context, playerID, amount int64, kind, ip string) {
	var desc *string
	if ip != "" {
		d := "ip " + ip
		desc = &d
	}
	if _, err := w.txs.Create(ctx, playerID, amount, kind, desc); err != nil {
		log.Error().Err(err).
			Int64("player_id", playerID).
			Int64("amount", amount).
			Str("type", kind).
			Msg("Failed to record transaction")
	}
}
