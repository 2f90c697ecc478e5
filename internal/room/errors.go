package room

import (
	"errors"
	"fmt"

	"roulette-server/internal/pkg/lock"
)

// Room operation errors. Every denial returned by a room wraps one of these.
var (
	ErrInvalidState           = errors.New("operation not allowed in current room state")
	ErrPlayerNotFound         = errors.New("player not found")
	ErrInsufficientBalance    = errors.New("insufficient balance")
	ErrBetCombinationConflict = errors.New("bet combination not allowed")
	ErrStakeLimitExceeded     = errors.New("stake limit exceeded")
	ErrNothingToUndo          = errors.New("nothing to undo")
	ErrNothingToRepeat        = errors.New("nothing to repeat")
	ErrNothingToDouble        = errors.New("nothing to double")
	ErrNothingToSpin          = errors.New("no bets on the table")
	ErrOperationInProgress    = lock.ErrInProgress
	ErrRoomFull               = errors.New("room is full")
	ErrRoomClosed             = errors.New("room closed")
	ErrInvalidAmount          = errors.New("amount must be positive")
	ErrAlreadyStarted         = errors.New("tournament already started")
	ErrNotEnoughPlayers       = errors.New("not enough players to start")
	ErrWrongMode              = errors.New("operation not supported by this room mode")
)

// Denial is a rejected player operation. Nothing in the room changed.
// Current, Proposed and Max are set for stake limit denials.
type Denial struct {
	Err      error
	Reason   string
	Current  int64
	Proposed int64
	Max      int64
}

func (d *Denial) Error() string {
	if d.Reason == "" {
		return d.Err.Error()
	}
	return fmt.Sprintf("%s: %s", d.Err, d.Reason)
}

func (d *Denial) Unwrap() error { return d.Err }

func deny(err error, format string, args ...any) *Denial {
	return &Denial{Err: err, Reason: fmt.Sprintf(format, args...)}
}

var codes = []struct {
	err  error
	code string
}{
	{ErrInvalidState, "invalid_state"},
	{ErrPlayerNotFound, "player_not_found"},
	{ErrInsufficientBalance, "insufficient_balance"},
	{ErrBetCombinationConflict, "bet_combination_conflict"},
	{ErrStakeLimitExceeded, "stake_limit_exceeded"},
	{ErrNothingToUndo, "nothing_to_undo"},
	{ErrNothingToRepeat, "nothing_to_repeat"},
	{ErrNothingToDouble, "nothing_to_double"},
	{ErrNothingToSpin, "nothing_to_spin"},
	{ErrOperationInProgress, "operation_in_progress"},
	{ErrRoomFull, "room_full"},
	{ErrRoomClosed, "room_closed"},
	{ErrInvalidAmount, "invalid_amount"},
	{ErrAlreadyStarted, "already_started"},
	{ErrNotEnoughPlayers, "not_enough_players"},
	{ErrWrongMode, "wrong_mode"},
}

// Code returns the stable reason code for err, or "internal" when err wraps
// none of the room errors.
func Code(err error) string {
	for _, c := range codes {
		if errors.Is(err, c.err) {
			return c.code
		}
	}
	return "internal"
}
