package room

import (
	"roulette-server/internal/game/roulette"
)

// player is one session inside a room. Owned by the room actor.
type player struct {
	id        int64
	name      string
	ip        string
	balance   int64 // real balance
	chips     int64 // tournament balance
	connected bool
	leaving   bool

	bets      *roulette.BetLedger
	last      *roulette.BetLedger
	batches   [][]roulette.BetEntry // undo stack
	confirmed bool

	roundStart int64 // funds when the current round opened
}

func newPlayer(req JoinRequest) *player {
	return &player{
		id:        req.PlayerID,
		name:      req.Name,
		ip:        req.IP,
		balance:   req.Balance,
		connected: true,
		bets:      roulette.NewBetLedger(),
		last:      roulette.NewBetLedger(),
	}
}

// funds returns the balance bets are staked from.
func (p *player) funds(mode Mode) *int64 {
	if mode == ModeTournament {
		return &p.chips
	}
	return &p.balance
}

func (p *player) resetRound() {
	p.bets.Reset()
	p.batches = nil
	p.confirmed = false
}

func (p *player) state(r *Room) PlayerState {
	s := PlayerState{
		PlayerID:    p.id,
		Name:        p.name,
		Balance:     p.balance,
		Bets:        p.bets.Map(),
		TotalStaked: p.bets.Total(),
		Confirmed:   p.confirmed,
		Connected:   p.connected,
		RoomState:   r.state,
		Round:       r.round,
		Countdown:   r.countdown,
	}
	if r.Mode == ModeTournament {
		s.TournamentBalance = p.chips
	}
	if p.last.Len() > 0 {
		s.LastBets = p.last.Map()
	}
	return s
}
