package room

import (
	"context"
	"time"

	"github.com/shopspring/decimal"

	"roulette-server/internal/game/roulette"
	"roulette-server/internal/model"
)

// Mode selects the room variant.
type Mode string

const (
	ModeSingle     Mode = "single"
	ModeTournament Mode = "tournament"
)

// Valid reports whether m is a known mode.
func (m Mode) Valid() bool {
	return m == ModeSingle || m == ModeTournament
}

// State is the room lifecycle state.
type State string

const (
	StateWaiting  State = "waiting"
	StateBetting  State = "betting"
	StateSpinning State = "spinning"
	StatePayout   State = "payout"
	StateResults  State = "results"
	StateFinished State = "finished"
)

// Config holds the timing and rule settings of a room.
type Config struct {
	BettingSeconds    int
	SpinDelay         time.Duration
	PayoutDelay       time.Duration
	Tick              time.Duration
	Manual            bool
	QueueSize         int
	Limits            roulette.StakeLimits
	SettlementTimeout time.Duration
	Tournament        TournamentConfig
}

// TournamentConfig holds the settings of tournament rooms.
type TournamentConfig struct {
	EntryFee     int64
	MaxPlayers   int
	MinPlayers   int
	Rounds       int
	HouseCut     decimal.Decimal
	ResultsGrace time.Duration
}

// DefaultConfig returns the standard room settings.
func DefaultConfig() Config {
	return Config{
		BettingSeconds:    15,
		SpinDelay:         5 * time.Second,
		PayoutDelay:       4 * time.Second,
		Tick:              time.Second,
		QueueSize:         roulette.DefaultQueueSize,
		Limits:            roulette.DefaultStakeLimits(),
		SettlementTimeout: 10 * time.Second,
		Tournament: TournamentConfig{
			EntryFee:     10_000,
			MaxPlayers:   6,
			MinPlayers:   2,
			Rounds:       10,
			HouseCut:     decimal.NewFromFloat(0.20),
			ResultsGrace: 15 * time.Second,
		},
	}
}

// JoinRequest carries a player entering a room. Balance is the player's real
// balance as reported by the settlement provider.
type JoinRequest struct {
	PlayerID int64
	Name     string
	Balance  int64
	IP       string
}

// PlayerState is what a player sees of their own session. It is returned with
// every operation, accepted or denied.
type PlayerState struct {
	PlayerID          int64            `json:"player_id"`
	Name              string           `json:"name"`
	Balance           int64            `json:"balance"`
	TournamentBalance int64            `json:"tournament_balance,omitempty"`
	Bets              map[string]int64 `json:"bets"`
	TotalStaked       int64            `json:"total_staked"`
	LastBets          map[string]int64 `json:"last_bets,omitempty"`
	Confirmed         bool             `json:"confirmed"`
	Connected         bool             `json:"connected"`
	RoomState         State            `json:"room_state"`
	Round             int              `json:"round"`
	Countdown         int              `json:"countdown"`
}

// PotSnapshot describes a tournament pot.
type PotSnapshot struct {
	Total     int64  `json:"total"`
	HouseCut  string `json:"house_cut"`
	Playable  int64  `json:"playable"`
	Fixed     bool   `json:"fixed"`
	EntryFee  int64  `json:"entry_fee"`
	Remainder int64  `json:"house_remainder"`
}

// Snapshot is a read-only view of a room.
type Snapshot struct {
	RoomID       string            `json:"room_id"`
	Mode         Mode              `json:"mode"`
	State        State             `json:"state"`
	Round        int               `json:"round"`
	TotalRounds  int               `json:"total_rounds,omitempty"`
	RoundID      string            `json:"round_id,omitempty"`
	Countdown    int               `json:"countdown"`
	Manual       bool              `json:"manual"`
	Outcome      *roulette.Outcome `json:"outcome,omitempty"`
	Players      []PlayerState     `json:"players"`
	Pot          *PotSnapshot      `json:"pot,omitempty"`
	TournamentID string            `json:"tournament_id,omitempty"`
}

// RoundResult is sent to each player who had bets in a settled round.
type RoundResult struct {
	RoundID       string               `json:"round_id"`
	Round         int                  `json:"round"`
	Outcome       roulette.Outcome     `json:"outcome"`
	TotalStaked   int64                `json:"total_staked"`
	TotalWinnings int64                `json:"total_winnings"`
	Net           int64                `json:"net"`
	Status        string               `json:"status"`
	BalanceBefore int64                `json:"balance_before"`
	BalanceAfter  int64                `json:"balance_after"`
	Breakdown     []model.BetBreakdown `json:"breakdown"`
}

// Message types pushed to players.
const (
	MsgRoomState         = "room_state"
	MsgCountdown         = "countdown"
	MsgBettingOpen       = "betting_open"
	MsgBettingRestarted  = "betting_restarted"
	MsgSpinResult        = "spin_result"
	MsgRoundResult       = "round_result"
	MsgPlayerJoined      = "player_joined"
	MsgPlayerLeft        = "player_left"
	MsgTournamentStarted = "tournament_started"
	MsgTournamentResults = "tournament_results"
)

// Message is a server push to one player.
type Message struct {
	Type    string `json:"type"`
	RoomID  string `json:"room_id"`
	Payload any    `json:"payload,omitempty"`
}

// BalanceChange is the provider's view of one balance movement.
type BalanceChange struct {
	BalanceBefore int64 `json:"balance_before"`
	BalanceAfter  int64 `json:"balance_after"`
}

// Settlement is the external ledger of record for real balances.
type Settlement interface {
	PlaceBet(ctx context.Context, playerID int64, amount int64, ip string) (BalanceChange, error)
	DepositWinnings(ctx context.Context, playerID int64, amount int64, ip string) (BalanceChange, error)
	GetBalance(ctx context.Context, playerID int64) (int64, error)
}

type kindKey struct{}

// WithSettlementKind tags a provider call with the transaction type that
// caused it, such as model.TxTypeTournamentEntry.
func WithSettlementKind(ctx context.Context, kind string) context.Context {
	return context.WithValue(ctx, kindKey{}, kind)
}

// SettlementKind returns the transaction type attached to ctx, or fallback.
func SettlementKind(ctx context.Context, fallback string) string {
	if kind, ok := ctx.Value(kindKey{}).(string); ok && kind != "" {
		return kind
	}
	return fallback
}

// Recorder persists settled rounds and finished tournaments.
type Recorder interface {
	RecordRound(ctx context.Context, rec model.RoundRecord) error
	RecordTournament(ctx context.Context, rec model.TournamentRecord) error
}

// Reconciler stores failed settlement calls for out-of-band remediation.
type Reconciler interface {
	RecordFailure(ctx context.Context, f model.SettlementFailure) error
}

// Broadcaster delivers room messages to connected players.
type Broadcaster interface {
	Send(playerID int64, msg Message)
	Disconnect(playerID int64, reason string)
}

// NopBroadcaster drops every message.
type NopBroadcaster struct{}

func (NopBroadcaster) Send(int64, Message)      {}
func (NopBroadcaster) Disconnect(int64, string) {}

// Deps are the collaborators of a room. Nil Settlement, Recorder and Reconciler
// are skipped; a nil Broadcaster drops messages.
type Deps struct {
	Settlement  Settlement
	Recorder    Recorder
	Reconciler  Reconciler
	Broadcaster Broadcaster
}
