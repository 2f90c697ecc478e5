package room

import (
	"context"
	"time"

	"roulette-server/internal/game/roulette"
	"roulette-server/internal/model"
)

// startSpin closes betting and draws the outcome of the round.
func (r *Room) startSpin(now time.Time) {
	o := r.queue.Dequeue()
	r.state = StateSpinning
	r.outcome = &o
	r.countdown = 0
	r.deadline = now.Add(r.cfg.SpinDelay)

	if r.Mode == ModeSingle {
		for _, p := range r.sortedPlayers() {
			if staked := p.bets.Total(); staked > 0 {
				r.placeWithProvider(p, staked, model.TxTypeRouletteBet)
			}
		}
	}

	r.logger.Info().
		Int("round", r.round).
		Int("number", o.Number).
		Str("color", string(o.Color)).
		Msg("Wheel spinning")
	r.broadcastAll(MsgSpinResult, map[string]any{
		"round":    r.round,
		"round_id": r.roundID,
		"outcome":  o,
	})
}

// settleRound pays every player who had bets. Stakes were already taken from
// funds when placed, so funds only gain the winnings here.
func (r *Room) settleRound(now time.Time) {
	o := *r.outcome
	r.state = StatePayout
	r.deadline = now.Add(r.cfg.PayoutDelay)

	for _, p := range r.sortedPlayers() {
		entries := p.bets.Entries()
		if len(entries) == 0 {
			p.resetRound()
			continue
		}

		res := RoundResult{
			RoundID:       r.roundID,
			Round:         r.round,
			Outcome:       o,
			BalanceBefore: p.roundStart,
			Breakdown:     make([]model.BetBreakdown, 0, len(entries)),
		}
		res.TotalStaked, res.TotalWinnings = roulette.SettleEntries(o, entries)
		for _, e := range entries {
			res.Breakdown = append(res.Breakdown, model.BetBreakdown{
				Bet:        e.ID.String(),
				Amount:     e.Amount,
				Multiplier: roulette.Multiplier(o, e.ID),
				Winnings:   roulette.Winnings(o, e),
			})
		}

		funds := p.funds(r.Mode)
		*funds += res.TotalWinnings
		res.BalanceAfter = *funds
		res.Net = res.TotalWinnings - res.TotalStaked
		res.Status = resultStatus(res.TotalStaked, res.TotalWinnings)

		p.last = p.bets.Clone()
		p.resetRound()

		if r.Mode == ModeSingle && res.TotalWinnings > 0 {
			r.depositWithProvider(p, res.TotalWinnings, model.TxTypeRouletteWin)
		}
		r.recordRound(p, res, now)

		if p.connected {
			r.send(p.id, MsgRoundResult, res)
		}
		r.logger.Info().
			Int64("player_id", p.id).
			Int("round", r.round).
			Int64("staked", res.TotalStaked).
			Int64("winnings", res.TotalWinnings).
			Str("status", res.Status).
			Msg("Player settled")
	}

	// Players who left mid-round are dropped once their bets are settled.
	for _, p := range r.sortedPlayers() {
		if p.leaving {
			r.removePlayerLocked(p.id)
		}
	}
	if r.Mode == ModeSingle && len(r.players) == 0 {
		r.logger.Info().Msg("Room empty after payout, closing")
		r.stopLocked()
	}
}

func resultStatus(staked, winnings int64) string {
	switch {
	case winnings > staked:
		return model.ResultWin
	case winnings < staked:
		return model.ResultLose
	default:
		return model.ResultPush
	}
}

// nextRound opens the next betting window, or ends the tournament.
func (r *Room) nextRound(now time.Time) {
	if r.Mode == ModeTournament && r.round >= r.tournament.cfg.Rounds {
		r.showResults(now)
		return
	}
	r.openBetting(now)
}

func (r *Room) recordRound(p *player, res RoundResult, now time.Time) {
	if r.deps.Recorder == nil {
		return
	}
	rec := model.RoundRecord{
		RoundID:       res.RoundID,
		RoomID:        r.ID,
		PlayerID:      p.id,
		RoundNumber:   res.Round,
		OutcomeNumber: res.Outcome.Number,
		OutcomeColor:  string(res.Outcome.Color),
		TotalStaked:   res.TotalStaked,
		TotalWinnings: res.TotalWinnings,
		Status:        res.Status,
		BalanceBefore: res.BalanceBefore,
		BalanceAfter:  res.BalanceAfter,
		Breakdown:     res.Breakdown,
		SettledAt:     now,
	}
	if r.tournament != nil && r.tournament.id != "" {
		id := r.tournament.id
		rec.TournamentID = &id
	}
	r.goAsync(func(ctx context.Context) {
		if err := r.deps.Recorder.RecordRound(ctx, rec); err != nil {
			r.logger.Error().Err(err).
				Int64("player_id", rec.PlayerID).
				Str("round_id", rec.RoundID).
				Msg("Failed to record round")
		}
	})
}

// placeWithProvider debits the external ledger. The room balance already
// reflects the debit and is not rolled back on failure.
func (r *Room) placeWithProvider(p *player, amount int64, kind string) {
	if r.deps.Settlement == nil {
		return
	}
	playerID, ip, roundID := p.id, p.ip, r.roundID
	r.goAsync(func(ctx context.Context) {
		change, err := r.deps.Settlement.PlaceBet(WithSettlementKind(ctx, kind), playerID, amount, ip)
		r.afterSettlement(playerID, amount, kind, roundID, change, err)
	})
}

// depositWithProvider credits the external ledger.
func (r *Room) depositWithProvider(p *player, amount int64, kind string) {
	if r.deps.Settlement == nil {
		return
	}
	playerID, ip, roundID := p.id, p.ip, r.roundID
	r.goAsync(func(ctx context.Context) {
		change, err := r.deps.Settlement.DepositWinnings(WithSettlementKind(ctx, kind), playerID, amount, ip)
		r.afterSettlement(playerID, amount, kind, roundID, change, err)
	})
}

func (r *Room) afterSettlement(playerID, amount int64, kind, roundID string, change BalanceChange, err error) {
	if err == nil {
		r.logger.Debug().
			Int64("player_id", playerID).
			Str("kind", kind).
			Int64("amount", amount).
			Int64("balance_after", change.BalanceAfter).
			Msg("Settlement applied")
		return
	}

	r.logger.Error().Err(err).
		Str("signal", "settlement_failure").
		Int64("player_id", playerID).
		Str("kind", kind).
		Int64("amount", amount).
		Str("round_id", roundID).
		Msg("Settlement provider call failed")

	if r.deps.Reconciler == nil {
		return
	}
	f := model.SettlementFailure{
		PlayerID:  playerID,
		Kind:      kind,
		Amount:    amount,
		RoomID:    r.ID,
		RoundID:   roundID,
		Error:     err.Error(),
		CreatedAt: time.Now(),
	}
	ctx, cancel := context.WithTimeout(context.Background(), r.cfg.SettlementTimeout)
	defer cancel()
	if rerr := r.deps.Reconciler.RecordFailure(ctx, f); rerr != nil {
		r.logger.Error().Err(rerr).
			Int64("player_id", playerID).
			Str("kind", kind).
			Msg("Failed to store settlement failure")
	}
}

// goAsync runs fn outside the actor with the settlement timeout.
func (r *Room) goAsync(fn func(ctx context.Context)) {
	r.async.Add(1)
	go func() {
		defer r.async.Done()
		ctx, cancel := context.WithTimeout(context.Background(), r.cfg.SettlementTimeout)
		defer cancel()
		fn(ctx)
	}()
}
