// Package room runs roulette rooms. Each room is an actor: one goroutine owns the
// room state and serializes player operations, timer ticks and lifecycle events.
// Calls to the settlement provider and persistence run in their own goroutines
// and never hold up the room.
package room

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"roulette-server/internal/game/roulette"
	"roulette-server/internal/pkg/lock"
)

// EventType identifies a message to the room actor.
type EventType int

const (
	EventJoin EventType = iota
	EventLeave
	EventPlaceBet
	EventClearBets
	EventUndoBet
	EventRepeatBet
	EventDoubleBet
	EventConfirmBets
	EventSpin
	EventStartTournament
	EventClose
)

// Compound operation kinds guarded by the operation lock.
const (
	opRepeat = "repeat"
	opDouble = "double"
)

// Event is a message to the room actor.
type Event struct {
	Type      EventType
	PlayerID  int64
	Join      JoinRequest
	Bet       roulette.BetID
	Amount    int64
	Timestamp time.Time
	Response  chan reply
}

type reply struct {
	state PlayerState
	err   error
}

// OutcomeSource supplies spin outcomes in order. *roulette.ResultQueue is the
// production source.
type OutcomeSource interface {
	Dequeue() roulette.Outcome
	Peek(count int) []roulette.Outcome
}

// Room is a single roulette room.
type Room struct {
	ID   string
	Mode Mode

	cfg    Config
	deps   Deps
	logger zerolog.Logger

	mu       sync.RWMutex
	state    State
	players  map[int64]*player
	order    []int64 // join order
	queue    OutcomeSource
	ops      *lock.OperationLock
	round    int
	roundID  string
	outcome  *roulette.Outcome
	closed   bool
	stopOnce sync.Once

	countdown int
	deadline  time.Time // end of Spinning, Payout or Results

	tournament *tournament

	events  chan Event
	done    chan struct{}
	onClose func(*Room)
	async   sync.WaitGroup
}

// New creates a room and starts its actor. onClose, if set, is called once
// after the actor stops.
func New(id string, mode Mode, cfg Config, deps Deps, onClose func(*Room)) *Room {
	r := newRoom(id, mode, cfg, deps, roulette.NewResultQueue(cfg.QueueSize))
	r.onClose = onClose
	go r.run()
	return r
}

func newRoom(id string, mode Mode, cfg Config, deps Deps, queue OutcomeSource) *Room {
	if cfg.Tick <= 0 {
		cfg.Tick = time.Second
	}
	if cfg.Limits == nil {
		cfg.Limits = roulette.DefaultStakeLimits()
	}
	if cfg.SettlementTimeout <= 0 {
		cfg.SettlementTimeout = 10 * time.Second
	}
	if deps.Broadcaster == nil {
		deps.Broadcaster = NopBroadcaster{}
	}

	r := &Room{
		ID:      id,
		Mode:    mode,
		cfg:     cfg,
		deps:    deps,
		logger:  log.With().Str("room_id", id).Str("mode", string(mode)).Logger(),
		players: make(map[int64]*player),
		queue:   queue,
		ops:     lock.NewOperationLock(),
		events:  make(chan Event, 256),
		done:    make(chan struct{}),
	}

	if mode == ModeTournament {
		r.tournament = newTournament(cfg.Tournament)
		r.state = StateWaiting
	} else {
		r.openBetting(time.Now())
	}

	r.logger.Info().
		Int("betting_seconds", cfg.BettingSeconds).
		Bool("manual", cfg.Manual).
		Msg("Room created")
	return r
}

// run is the main actor loop.
func (r *Room) run() {
	ticker := time.NewTicker(r.cfg.Tick)
	defer ticker.Stop()

	for {
		select {
		case e := <-r.events:
			res := r.handleEvent(e)
			if e.Response != nil {
				e.Response <- res
			}
			if r.IsClosed() {
				r.closeDone()
			}
		case now := <-ticker.C:
			r.tick(now)
			if r.IsClosed() {
				r.closeDone()
			}
		case <-r.done:
			r.logger.Info().Msg("Room actor stopped")
			if r.onClose != nil {
				r.onClose(r)
			}
			return
		}
	}
}

// handleEvent processes a single event.
func (r *Room) handleEvent(e Event) reply {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.closed && e.Type != EventClose {
		return reply{err: ErrRoomClosed}
	}
	if e.Timestamp.IsZero() {
		e.Timestamp = time.Now()
	}

	var err error
	switch e.Type {
	case EventJoin:
		err = r.handleJoin(e.Join, e.Timestamp)
		return r.replyFor(e.Join.PlayerID, err)
	case EventLeave:
		state, err := r.handleLeave(e.PlayerID)
		return reply{state: state, err: err}
	case EventPlaceBet:
		err = r.handlePlaceBet(e.PlayerID, e.Bet, e.Amount)
	case EventClearBets:
		err = r.handleClearBets(e.PlayerID)
	case EventUndoBet:
		err = r.handleUndoBet(e.PlayerID)
	case EventRepeatBet:
		err = r.handleRepeatBet(e.PlayerID)
	case EventDoubleBet:
		err = r.handleDoubleBet(e.PlayerID)
	case EventConfirmBets:
		err = r.handleConfirmBets(e.PlayerID, e.Timestamp)
	case EventSpin:
		err = r.handleSpin(e.PlayerID, e.Timestamp)
	case EventStartTournament:
		err = r.handleStartTournament(e.Timestamp)
		return reply{err: err}
	case EventClose:
		r.stopLocked()
		return reply{}
	default:
		return reply{err: fmt.Errorf("unknown event type: %d", e.Type)}
	}
	return r.replyFor(e.PlayerID, err)
}

func (r *Room) replyFor(playerID int64, err error) reply {
	res := reply{err: err}
	if p, ok := r.players[playerID]; ok {
		res.state = p.state(r)
	}
	return res
}

// tick advances countdowns and deadlines.
func (r *Room) tick(now time.Time) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.closed {
		return
	}

	switch r.state {
	case StateBetting:
		if r.manual() {
			return
		}
		r.countdown--
		if r.countdown > 0 {
			r.broadcastAll(MsgCountdown, map[string]int{"countdown": r.countdown})
			return
		}
		if r.hasBets() || r.Mode == ModeTournament {
			r.startSpin(now)
			return
		}
		r.countdown = r.cfg.BettingSeconds
		r.broadcastAll(MsgBettingRestarted, map[string]int{"countdown": r.countdown})
	case StateSpinning:
		if !now.Before(r.deadline) {
			r.settleRound(now)
		}
	case StatePayout:
		if !now.Before(r.deadline) {
			r.nextRound(now)
		}
	case StateResults:
		if !now.Before(r.deadline) {
			r.finishTournament()
		}
	}
}

// submit sends an event to the actor and waits for its reply.
func (r *Room) submit(ctx context.Context, e Event) (PlayerState, error) {
	e.Timestamp = time.Now()
	e.Response = make(chan reply, 1)

	r.mu.RLock()
	closed := r.closed
	r.mu.RUnlock()
	if closed {
		return PlayerState{}, ErrRoomClosed
	}

	select {
	case r.events <- e:
	case <-r.done:
		return PlayerState{}, ErrRoomClosed
	case <-ctx.Done():
		return PlayerState{}, ctx.Err()
	}

	select {
	case res := <-e.Response:
		return res.state, res.err
	case <-r.done:
		select {
		case res := <-e.Response:
			return res.state, res.err
		default:
			return PlayerState{}, ErrRoomClosed
		}
	case <-ctx.Done():
		return PlayerState{}, ctx.Err()
	}
}

// AddPlayer seats a player, or marks a returning player connected.
func (r *Room) AddPlayer(ctx context.Context, req JoinRequest) (PlayerState, error) {
	return r.submit(ctx, Event{Type: EventJoin, PlayerID: req.PlayerID, Join: req})
}

// RemovePlayer takes a player out of the room.
func (r *Room) RemovePlayer(ctx context.Context, playerID int64) (PlayerState, error) {
	return r.submit(ctx, Event{Type: EventLeave, PlayerID: playerID})
}

// PlaceBet stakes amount on id.
func (r *Room) PlaceBet(ctx context.Context, playerID int64, id roulette.BetID, amount int64) (PlayerState, error) {
	return r.submit(ctx, Event{Type: EventPlaceBet, PlayerID: playerID, Bet: id, Amount: amount})
}

// ClearBets refunds every bet of the current round.
func (r *Room) ClearBets(ctx context.Context, playerID int64) (PlayerState, error) {
	return r.submit(ctx, Event{Type: EventClearBets, PlayerID: playerID})
}

// UndoBet refunds the last placement.
func (r *Room) UndoBet(ctx context.Context, playerID int64) (PlayerState, error) {
	return r.submit(ctx, Event{Type: EventUndoBet, PlayerID: playerID})
}

// RepeatBet places the previous round's bets again.
func (r *Room) RepeatBet(ctx context.Context, playerID int64) (PlayerState, error) {
	return r.compound(ctx, opRepeat, Event{Type: EventRepeatBet, PlayerID: playerID})
}

// DoubleBet doubles the current bets, or places the previous round's bets
// doubled when nothing is staked yet.
func (r *Room) DoubleBet(ctx context.Context, playerID int64) (PlayerState, error) {
	return r.compound(ctx, opDouble, Event{Type: EventDoubleBet, PlayerID: playerID})
}

// compound runs an event while holding the player's lock for kind. A duplicate
// request arriving while the first is in flight is rejected, not queued.
func (r *Room) compound(ctx context.Context, kind string, e Event) (PlayerState, error) {
	var (
		state PlayerState
		ran   bool
	)
	err := r.ops.Do(e.PlayerID, kind, func() error {
		var err error
		ran = true
		state, err = r.submit(ctx, e)
		return err
	})
	if !ran {
		state, _ = r.PlayerState(e.PlayerID)
		return state, deny(ErrOperationInProgress, "%s already in progress", kind)
	}
	return state, err
}

// ConfirmBets marks the player ready to spin.
func (r *Room) ConfirmBets(ctx context.Context, playerID int64) (PlayerState, error) {
	return r.submit(ctx, Event{Type: EventConfirmBets, PlayerID: playerID})
}

// Spin closes betting in a manual room.
func (r *Room) Spin(ctx context.Context, playerID int64) (PlayerState, error) {
	return r.submit(ctx, Event{Type: EventSpin, PlayerID: playerID})
}

// StartTournament starts a tournament before the room is full.
func (r *Room) StartTournament(ctx context.Context) error {
	_, err := r.submit(ctx, Event{Type: EventStartTournament})
	return err
}

// PeekUpcoming returns the next count outcomes without consuming them.
func (r *Room) PeekUpcoming(count int) []roulette.Outcome {
	return r.queue.Peek(count)
}

// PlayerState returns the current state of one player.
func (r *Room) PlayerState(playerID int64) (PlayerState, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	p, ok := r.players[playerID]
	if !ok {
		return PlayerState{}, ErrPlayerNotFound
	}
	return p.state(r), nil
}

// Snapshot returns a read-only view of the room.
func (r *Room) Snapshot() Snapshot {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.snapshotLocked()
}

func (r *Room) snapshotLocked() Snapshot {
	s := Snapshot{
		RoomID:    r.ID,
		Mode:      r.Mode,
		State:     r.state,
		Round:     r.round,
		RoundID:   r.roundID,
		Countdown: r.countdown,
		Manual:    r.manual(),
		Players:   make([]PlayerState, 0, len(r.order)),
	}
	if r.outcome != nil {
		o := *r.outcome
		s.Outcome = &o
	}
	for _, id := range r.order {
		s.Players = append(s.Players, r.players[id].state(r))
	}
	if t := r.tournament; t != nil {
		s.TotalRounds = t.cfg.Rounds
		s.TournamentID = t.id
		s.Pot = t.potSnapshot()
	}
	return s
}

// PlayerCount returns the number of players in the room.
func (r *Room) PlayerCount() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.players)
}

// IsClosed reports whether the room has stopped.
func (r *Room) IsClosed() bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.closed
}

// Done is closed when the room stops.
func (r *Room) Done() <-chan struct{} {
	return r.done
}

// Stop closes the room. Pending timers die with it.
func (r *Room) Stop() {
	r.mu.Lock()
	r.stopLocked()
	r.mu.Unlock()
	r.closeDone()
}

// stopLocked marks the room closed. The actor closes done once the reply to
// the current event has been sent.
func (r *Room) stopLocked() {
	r.closed = true
	r.deadline = time.Time{}
}

func (r *Room) closeDone() {
	r.stopOnce.Do(func() {
		close(r.done)
	})
}

// WaitSettlements blocks until every outstanding external call has returned.
func (r *Room) WaitSettlements() {
	r.async.Wait()
}

func (r *Room) openBetting(now time.Time) {
	r.state = StateBetting
	r.round++
	r.roundID = uuid.NewString()
	r.outcome = nil
	r.countdown = r.cfg.BettingSeconds
	r.deadline = time.Time{}
	for _, p := range r.players {
		p.resetRound()
		p.roundStart = *p.funds(r.Mode)
	}
	r.logger.Debug().Int("round", r.round).Str("round_id", r.roundID).Msg("Betting open")
	r.broadcastAll(MsgBettingOpen, map[string]any{
		"round":     r.round,
		"round_id":  r.roundID,
		"countdown": r.countdown,
	})
}

// manual reports whether players close betting themselves. Tournaments always
// run on the countdown.
func (r *Room) manual() bool {
	return r.cfg.Manual && r.Mode == ModeSingle
}

func (r *Room) hasBets() bool {
	for _, p := range r.players {
		if p.bets.Len() > 0 {
			return true
		}
	}
	return false
}

// sortedPlayers returns players in join order.
func (r *Room) sortedPlayers() []*player {
	out := make([]*player, 0, len(r.order))
	for _, id := range r.order {
		out = append(out, r.players[id])
	}
	return out
}

func (r *Room) removePlayerLocked(id int64) {
	delete(r.players, id)
	for i, o := range r.order {
		if o == id {
			r.order = append(r.order[:i], r.order[i+1:]...)
			break
		}
	}
	r.ops.Forget(id)
}

func (r *Room) send(playerID int64, msgType string, payload any) {
	r.deps.Broadcaster.Send(playerID, Message{Type: msgType, RoomID: r.ID, Payload: payload})
}

func (r *Room) broadcastAll(msgType string, payload any) {
	for _, id := range r.order {
		if p := r.players[id]; p.connected {
			r.send(id, msgType, payload)
		}
	}
}

// standings returns players ranked by tournament balance, ties by id.
func (r *Room) standings() []*player {
	ranked := r.sortedPlayers()
	sort.SliceStable(ranked, func(i, j int) bool {
		if ranked[i].chips != ranked[j].chips {
			return ranked[i].chips > ranked[j].chips
		}
		return ranked[i].id < ranked[j].id
	})
	return ranked
}
