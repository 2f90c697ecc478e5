package room

import (
	"time"

	"roulette-server/internal/game/roulette"
)

// bettingPlayer returns the player if bets may be changed right now.
func (r *Room) bettingPlayer(playerID int64) (*player, error) {
	p, ok := r.players[playerID]
	if !ok {
		return nil, deny(ErrPlayerNotFound, "player %d is not in room %s", playerID, r.ID)
	}
	if r.state != StateBetting {
		return nil, deny(ErrInvalidState, "bets are closed while the room is %s", r.state)
	}
	return p, nil
}

func (r *Room) handlePlaceBet(playerID int64, id roulette.BetID, amount int64) error {
	p, err := r.bettingPlayer(playerID)
	if err != nil {
		return err
	}
	if amount <= 0 {
		return deny(ErrInvalidAmount, "amount %d on %s", amount, id)
	}
	if err := r.applyBatch(p, []roulette.BetEntry{{ID: id, Amount: amount}}); err != nil {
		return err
	}
	r.logger.Debug().
		Int64("player_id", playerID).
		Str("bet", id.String()).
		Int64("amount", amount).
		Msg("Bet placed")
	return nil
}

// applyBatch validates every entry against the player's bets as they would be
// after the preceding entries, then applies all of them or none.
func (r *Room) applyBatch(p *player, batch []roulette.BetEntry) error {
	trial := p.bets.Clone()
	var total int64
	for _, e := range batch {
		if d := roulette.CheckCombination(e.ID, trial.IDs()); !d.Allowed {
			return deny(ErrBetCombinationConflict, "%s", d.Reason)
		}
		ld := r.cfg.Limits.Check(e.ID, trial.Stake(e.ID), e.Amount)
		if !ld.Allowed {
			return &Denial{
				Err:      ErrStakeLimitExceeded,
				Reason:   ld.Reason,
				Current:  ld.Current,
				Proposed: ld.Proposed,
				Max:      ld.Max,
			}
		}
		trial.Add(e.ID, e.Amount)
		total += e.Amount
	}

	funds := p.funds(r.Mode)
	if total > *funds {
		return deny(ErrInsufficientBalance, "need %d, have %d", total, *funds)
	}

	for _, e := range batch {
		p.bets.Add(e.ID, e.Amount)
	}
	*funds -= total
	p.batches = append(p.batches, batch)
	p.confirmed = false
	return nil
}

func (r *Room) handleClearBets(playerID int64) error {
	p, err := r.bettingPlayer(playerID)
	if err != nil {
		return err
	}
	*p.funds(r.Mode) += p.bets.Total()
	p.resetRound()
	return nil
}

func (r *Room) handleUndoBet(playerID int64) error {
	p, err := r.bettingPlayer(playerID)
	if err != nil {
		return err
	}
	if len(p.batches) == 0 {
		return deny(ErrNothingToUndo, "no bets placed this round")
	}
	last := p.batches[len(p.batches)-1]
	p.batches = p.batches[:len(p.batches)-1]
	var refund int64
	for _, e := range last {
		p.bets.Remove(e.ID, e.Amount)
		refund += e.Amount
	}
	*p.funds(r.Mode) += refund
	p.confirmed = false
	return nil
}

func (r *Room) handleRepeatBet(playerID int64) error {
	p, err := r.bettingPlayer(playerID)
	if err != nil {
		return err
	}
	if p.last.Len() == 0 {
		return deny(ErrNothingToRepeat, "no bets from a previous round")
	}
	return r.applyBatch(p, p.last.Entries())
}

func (r *Room) handleDoubleBet(playerID int64) error {
	p, err := r.bettingPlayer(playerID)
	if err != nil {
		return err
	}
	if p.bets.Len() > 0 {
		return r.applyBatch(p, p.bets.Entries())
	}
	if p.last.Len() == 0 {
		return deny(ErrNothingToDouble, "no bets to double")
	}
	entries := p.last.Entries()
	for i := range entries {
		entries[i].Amount *= 2
	}
	return r.applyBatch(p, entries)
}

func (r *Room) handleConfirmBets(playerID int64, now time.Time) error {
	p, err := r.bettingPlayer(playerID)
	if err != nil {
		return err
	}
	if p.bets.Len() == 0 {
		return deny(ErrNothingToSpin, "place a bet before confirming")
	}
	p.confirmed = true
	if r.allConfirmed() {
		r.startSpin(now)
	}
	return nil
}

// allConfirmed reports whether every connected player holding bets has confirmed.
func (r *Room) allConfirmed() bool {
	ready := false
	for _, p := range r.players {
		if p.bets.Len() == 0 || !p.connected {
			continue
		}
		if !p.confirmed {
			return false
		}
		ready = true
	}
	return ready
}

func (r *Room) handleSpin(playerID int64, now time.Time) error {
	if _, ok := r.players[playerID]; !ok {
		return deny(ErrPlayerNotFound, "player %d is not in room %s", playerID, r.ID)
	}
	if !r.manual() {
		return deny(ErrWrongMode, "spin is only triggered by players in manual rooms")
	}
	if r.state != StateBetting {
		return deny(ErrInvalidState, "cannot spin while the room is %s", r.state)
	}
	if !r.hasBets() {
		return deny(ErrNothingToSpin, "no bets on the table")
	}
	r.startSpin(now)
	return nil
}
