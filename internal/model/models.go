// Package model defines the data models for the roulette server.
package model

import "time"

// User represents a player account held by the wallet.
type User struct {
	ID        int64     `db:"id"`
	Username  string    `db:"username"`
	Balance   int64     `db:"balance"`
	CreatedAt time.Time `db:"created_at"`
	UpdatedAt time.Time `db:"updated_at"`
}

// Transaction represents a balance change record.
type Transaction struct {
	ID          int64     `db:"id" json:"id"`
	UserID      int64     `db:"user_id" json:"user_id"`
	Amount      int64     `db:"amount" json:"amount"`
	Type        string    `db:"type" json:"type"`
	Description *string   `db:"description" json:"description,omitempty"`
	CreatedAt   time.Time `db:"created_at" json:"created_at"`
}

// Transaction types for categorizing balance changes.
const (
	TxTypeInitial          = "initial"           // Initial balance on account creation
	TxTypeRouletteBet      = "roulette_bet"      // Stakes committed at spin time
	TxTypeRouletteWin      = "roulette_win"      // Winnings credited at payout
	TxTypeTournamentEntry  = "tournament_entry"  // Tournament entry fee
	TxTypeTournamentRefund = "tournament_refund" // Entry fee returned before start
	TxTypeTournamentPrize  = "tournament_prize"  // Share of the playable pot
	TxTypeAdminAdd         = "admin_add"         // Admin added balance
)

// TxTypes lists every transaction type.
var TxTypes = []string{
	TxTypeInitial,
	TxTypeRouletteBet,
	TxTypeRouletteWin,
	TxTypeTournamentEntry,
	TxTypeTournamentRefund,
	TxTypeTournamentPrize,
	TxTypeAdminAdd,
}

// Result statuses of a settled round.
const (
	ResultWin  = "win"
	ResultLose = "lose"
	ResultPush = "push"
)

// BetBreakdown is the settlement of one bet identifier within a round.
type BetBreakdown struct {
	Bet        string `json:"bet"`
	Amount     int64  `json:"amount"`
	Multiplier int    `json:"multiplier"`
	Winnings   int64  `json:"winnings"`
}

// RoundRecord is the immutable settlement of one player's bets in one round.
type RoundRecord struct {
	RoundID       string         `db:"round_id" json:"round_id"`
	RoomID        string         `db:"room_id" json:"room_id"`
	TournamentID  *string        `db:"tournament_id" json:"tournament_id,omitempty"`
	PlayerID      int64          `db:"player_id" json:"player_id"`
	RoundNumber   int            `db:"round_number" json:"round_number"`
	OutcomeNumber int            `db:"outcome_number" json:"outcome_number"`
	OutcomeColor  string         `db:"outcome_color" json:"outcome_color"`
	TotalStaked   int64          `db:"total_staked" json:"total_staked"`
	TotalWinnings int64          `db:"total_winnings" json:"total_winnings"`
	Status        string         `db:"status" json:"status"`
	BalanceBefore int64          `db:"balance_before" json:"balance_before"`
	BalanceAfter  int64          `db:"balance_after" json:"balance_after"`
	Breakdown     []BetBreakdown `db:"breakdown" json:"breakdown"`
	SettledAt     time.Time      `db:"settled_at" json:"settled_at"`
}

// Net returns winnings minus stakes.
func (r RoundRecord) Net() int64 {
	return r.TotalWinnings - r.TotalStaked
}

// Standing is one player's final position in a tournament.
type Standing struct {
	PlayerID          int64  `json:"player_id"`
	Name              string `json:"name"`
	TournamentBalance int64  `json:"tournament_balance"`
	Prize             int64  `json:"prize"`
	Connected         bool   `json:"connected"`
}

// TournamentRecord is the final result of a tournament room.
type TournamentRecord struct {
	TournamentID   string     `db:"tournament_id" json:"tournament_id"`
	RoomID         string     `db:"room_id" json:"room_id"`
	EntryFee       int64      `db:"entry_fee" json:"entry_fee"`
	Rounds         int        `db:"rounds" json:"rounds"`
	TotalPot       int64      `db:"total_pot" json:"total_pot"`
	HouseCut       string     `db:"house_cut" json:"house_cut"`
	PlayablePot    int64      `db:"playable_pot" json:"playable_pot"`
	HouseRemainder int64      `db:"house_remainder" json:"house_remainder"`
	Standings      []Standing `db:"standings" json:"standings"`
	StartedAt      time.Time  `db:"started_at" json:"started_at"`
	FinishedAt     time.Time  `db:"finished_at" json:"finished_at"`
}

// SettlementFailure is an external ledger call that must be reconciled by hand.
type SettlementFailure struct {
	ID         int64      `db:"id" json:"id"`
	PlayerID   int64      `db:"player_id" json:"player_id"`
	Kind       string     `db:"kind" json:"kind"`
	Amount     int64      `db:"amount" json:"amount"`
	RoomID     string     `db:"room_id" json:"room_id"`
	RoundID    string     `db:"round_id" json:"round_id,omitempty"`
	Error      string     `db:"error" json:"error"`
	CreatedAt  time.Time  `db:"created_at" json:"created_at"`
	ResolvedAt *time.Time `db:"resolved_at" json:"resolved_at,omitempty"`
}
