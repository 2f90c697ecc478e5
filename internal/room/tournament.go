package room

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"roulette-server/internal/model"
)

// tournament holds the pot of a tournament room.
type tournament struct {
	cfg       TournamentConfig
	id        string
	pot       int64
	playable  int64
	fixed     bool
	remainder int64
	startedAt time.Time
}

func newTournament(cfg TournamentConfig) *tournament {
	return &tournament{cfg: cfg}
}

// PlayablePot returns the pot left after the house cut, rounded down.
func PlayablePot(total int64, houseCut decimal.Decimal) int64 {
	share := decimal.NewFromInt(1).Sub(houseCut)
	return decimal.NewFromInt(total).Mul(share).Floor().IntPart()
}

// SplitPot divides the playable pot between tied winners. The remainder stays
// with the house.
func SplitPot(playable int64, winners int) (prize, remainder int64) {
	if winners <= 0 {
		return 0, playable
	}
	prize = playable / int64(winners)
	return prize, playable - prize*int64(winners)
}

// fix locks the playable pot at tournament start. It is never recomputed.
func (t *tournament) fix(now time.Time) {
	t.id = uuid.NewString()
	t.playable = PlayablePot(t.pot, t.cfg.HouseCut)
	t.fixed = true
	t.startedAt = now
}

func (t *tournament) potSnapshot() *PotSnapshot {
	s := &PotSnapshot{
		Total:     t.pot,
		HouseCut:  t.cfg.HouseCut.String(),
		Fixed:     t.fixed,
		EntryFee:  t.cfg.EntryFee,
		Remainder: t.remainder,
	}
	if t.fixed {
		s.Playable = t.playable
	} else {
		s.Playable = PlayablePot(t.pot, t.cfg.HouseCut)
	}
	return s
}

func (r *Room) handleJoin(req JoinRequest, now time.Time) error {
	if p, ok := r.players[req.PlayerID]; ok {
		p.connected = true
		p.leaving = false
		if req.IP != "" {
			p.ip = req.IP
		}
		r.logger.Info().Int64("player_id", p.id).Msg("Player reconnected")
		r.send(p.id, MsgRoomState, r.snapshotLocked())
		return nil
	}

	p := newPlayer(req)
	if r.Mode == ModeTournament {
		t := r.tournament
		if len(r.players) >= t.cfg.MaxPlayers {
			return deny(ErrRoomFull, "room %s has %d players", r.ID, len(r.players))
		}
		if r.state != StateWaiting {
			return deny(ErrAlreadyStarted, "tournament %s is already running", r.ID)
		}
		if req.Balance < t.cfg.EntryFee {
			return deny(ErrInsufficientBalance, "entry fee is %d, balance is %d", t.cfg.EntryFee, req.Balance)
		}
		p.balance -= t.cfg.EntryFee
		p.chips = t.cfg.EntryFee
		t.pot += t.cfg.EntryFee
		r.placeWithProvider(p, t.cfg.EntryFee, model.TxTypeTournamentEntry)
	}
	p.roundStart = *p.funds(r.Mode)

	r.players[p.id] = p
	r.order = append(r.order, p.id)
	r.logger.Info().
		Int64("player_id", p.id).
		Str("name", p.name).
		Int64("balance", p.balance).
		Msg("Player joined")
	r.broadcastAll(MsgPlayerJoined, map[string]any{"player_id": p.id, "name": p.name})

	if r.Mode == ModeTournament && len(r.players) == r.tournament.cfg.MaxPlayers {
		r.startTournament(now)
	}
	r.send(p.id, MsgRoomState, r.snapshotLocked())
	return nil
}

func (r *Room) handleLeave(playerID int64) (PlayerState, error) {
	p, ok := r.players[playerID]
	if !ok {
		return PlayerState{}, deny(ErrPlayerNotFound, "player %d is not in room %s", playerID, r.ID)
	}

	if r.Mode == ModeTournament {
		if r.state != StateWaiting {
			p.connected = false
			r.logger.Info().Int64("player_id", playerID).Msg("Player disconnected, kept in standings")
			return p.state(r), nil
		}
		t := r.tournament
		p.balance += t.cfg.EntryFee
		p.chips = 0
		t.pot -= t.cfg.EntryFee
		r.depositWithProvider(p, t.cfg.EntryFee, model.TxTypeTournamentRefund)
		return r.dropPlayer(p), nil
	}

	switch r.state {
	case StateSpinning:
		p.connected = false
		p.leaving = true
		return p.state(r), nil
	case StateBetting:
		p.balance += p.bets.Total()
		p.resetRound()
	}
	return r.dropPlayer(p), nil
}

// dropPlayer removes a player and closes the room when nobody is left.
func (r *Room) dropPlayer(p *player) PlayerState {
	state := p.state(r)
	state.Connected = false
	r.removePlayerLocked(p.id)
	r.logger.Info().Int64("player_id", p.id).Int64("balance", p.balance).Msg("Player left")
	r.broadcastAll(MsgPlayerLeft, map[string]any{"player_id": p.id})

	if len(r.players) == 0 {
		r.logger.Info().Msg("Room empty, closing")
		r.stopLocked()
	}
	return state
}

func (r *Room) handleStartTournament(now time.Time) error {
	if r.Mode != ModeTournament {
		return deny(ErrWrongMode, "room %s is not a tournament", r.ID)
	}
	if r.state != StateWaiting {
		return deny(ErrAlreadyStarted, "tournament %s is already running", r.ID)
	}
	if need := r.tournament.cfg.MinPlayers; len(r.players) < need {
		return deny(ErrNotEnoughPlayers, "%d of %d players joined", len(r.players), need)
	}
	r.startTournament(now)
	return nil
}

func (r *Room) startTournament(now time.Time) {
	t := r.tournament
	t.fix(now)
	r.round = 0
	r.logger.Info().
		Str("tournament_id", t.id).
		Int("players", len(r.players)).
		Int64("pot", t.pot).
		Int64("playable", t.playable).
		Msg("Tournament started")
	r.broadcastAll(MsgTournamentStarted, map[string]any{
		"tournament_id": t.id,
		"pot":           t.potSnapshot(),
		"rounds":        t.cfg.Rounds,
	})
	r.openBetting(now)
}

// showResults ranks players and pays the tied leaders.
func (r *Room) showResults(now time.Time) {
	t := r.tournament
	r.state = StateResults
	r.deadline = now.Add(t.cfg.ResultsGrace)

	ranked := r.standings()
	var winners []*player
	if len(ranked) > 0 {
		top := ranked[0].chips
		for _, p := range ranked {
			if p.chips == top {
				winners = append(winners, p)
			}
		}
	}
	prize, remainder := SplitPot(t.playable, len(winners))
	t.remainder = remainder

	prizes := make(map[int64]int64, len(winners))
	for _, p := range winners {
		if prize <= 0 {
			break
		}
		p.balance += prize
		prizes[p.id] = prize
		r.depositWithProvider(p, prize, model.TxTypeTournamentPrize)
	}

	standings := make([]model.Standing, 0, len(ranked))
	for _, p := range ranked {
		standings = append(standings, model.Standing{
			PlayerID:          p.id,
			Name:              p.name,
			TournamentBalance: p.chips,
			Prize:             prizes[p.id],
			Connected:         p.connected,
		})
	}

	r.logger.Info().
		Str("tournament_id", t.id).
		Int("winners", len(winners)).
		Int64("prize", prize).
		Int64("house_remainder", remainder).
		Msg("Tournament results")
	r.broadcastAll(MsgTournamentResults, map[string]any{
		"tournament_id":   t.id,
		"standings":       standings,
		"playable_pot":    t.playable,
		"house_remainder": remainder,
	})

	if r.deps.Recorder == nil {
		return
	}
	rec := model.TournamentRecord{
		TournamentID:   t.id,
		RoomID:         r.ID,
		EntryFee:       t.cfg.EntryFee,
		Rounds:         r.round,
		TotalPot:       t.pot,
		HouseCut:       t.cfg.HouseCut.String(),
		PlayablePot:    t.playable,
		HouseRemainder: remainder,
		Standings:      standings,
		StartedAt:      t.startedAt,
		FinishedAt:     now,
	}
	r.goAsync(func(ctx context.Context) {
		if err := r.deps.Recorder.RecordTournament(ctx, rec); err != nil {
			r.logger.Error().Err(err).Str("tournament_id", rec.TournamentID).Msg("Failed to record tournament")
		}
	})
}

// finishTournament disconnects everyone and closes the room.
func (r *Room) finishTournament() {
	r.state = StateFinished
	for _, id := range r.order {
		r.deps.Broadcaster.Disconnect(id, "tournament finished")
	}
	r.logger.Info().Str("tournament_id", r.tournament.id).Msg("Tournament finished")
	r.stopLocked()
}
