package gateway

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/rs/zerolog/log"

	"roulette-server/internal/game/roulette"
	"roulette-server/internal/room"
)

// Client operations.
const (
	opJoin    = "join"
	opLeave   = "leave"
	opBet     = "bet"
	opClear   = "clear"
	opUndo    = "undo"
	opRepeat  = "repeat"
	opDouble  = "double"
	opConfirm = "confirm"
	opSpin    = "spin"
	opState   = "state"
)

// Server frame types. Room pushes go out as room.Message.
const (
	frameAck        = "ack"
	frameDenied     = "denied"
	frameError      = "error"
	frameDisconnect = "disconnect"
)

const requestTimeout = 10 * time.Second

var (
	errNotInRoom  = errors.New("join a room first")
	errInvalidBet = errors.New("invalid bet")
	errUnknownOp  = errors.New("unknown operation")
)

// code returns the reason code for a rejected frame, or "" for failures that
// are not the client's fault.
func code(err error) string {
	switch {
	case errors.Is(err, errNotInRoom):
		return "not_in_room"
	case errors.Is(err, errInvalidBet):
		return "invalid_bet"
	case errors.Is(err, errUnknownOp):
		return "unknown_op"
	}
	if c := room.Code(err); c != "internal" {
		return c
	}
	return ""
}

// request is a client frame.
type request struct {
	Op     string    `json:"op"`
	Room   string    `json:"room,omitempty"`
	Mode   room.Mode `json:"mode,omitempty"`
	Bet    string    `json:"bet,omitempty"`
	Amount int64     `json:"amount,omitempty"`
}

// frame is a reply to a client frame.
type frame struct {
	Type   string            `json:"type"`
	Op     string            `json:"op,omitempty"`
	RoomID string            `json:"room_id,omitempty"`
	Code   string            `json:"code,omitempty"`
	Reason string            `json:"reason,omitempty"`
	State  *room.PlayerState `json:"state,omitempty"`
}

func (c *Connection) handle(data []byte) {
	var req request
	if err := json.Unmarshal(data, &req); err != nil {
		c.write(frame{Type: frameError, Reason: "malformed frame"})
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), requestTimeout)
	defer cancel()

	r, state, err := c.dispatch(ctx, req)
	reply := frame{Op: req.Op}
	if r != nil {
		reply.RoomID = r.ID
	}
	if state.PlayerID != 0 {
		reply.State = &state
	}

	switch {
	case err == nil:
		reply.Type = frameAck
	case code(err) == "":
		reply.Type = frameError
		reply.Reason = err.Error()
		log.Warn().Err(err).Int64("player_id", c.playerID).Str("op", req.Op).Msg("Operation failed")
	default:
		reply.Type = frameDenied
		reply.Code = code(err)
		reply.Reason = err.Error()
	}
	c.write(reply)
}

func (c *Connection) dispatch(ctx context.Context, req request) (*room.Room, room.PlayerState, error) {
	if req.Op == opJoin {
		return c.join(ctx, req)
	}

	r := c.currentRoom()
	if r == nil {
		return nil, room.PlayerState{}, errNotInRoom
	}

	var (
		state room.PlayerState
		err   error
	)
	switch req.Op {
	case opLeave:
		state, err = r.RemovePlayer(ctx, c.playerID)
		c.setRoom(nil)
	case opBet:
		var id roulette.BetID
		id, err = roulette.ParseBetID(req.Bet)
		if err != nil {
			state, _ = r.PlayerState(c.playerID)
			return r, state, fmt.Errorf("%w: %v", errInvalidBet, err)
		}
		state, err = r.PlaceBet(ctx, c.playerID, id, req.Amount)
	case opClear:
		state, err = r.ClearBets(ctx, c.playerID)
	case opUndo:
		state, err = r.UndoBet(ctx, c.playerID)
	case opRepeat:
		state, err = r.RepeatBet(ctx, c.playerID)
	case opDouble:
		state, err = r.DoubleBet(ctx, c.playerID)
	case opConfirm:
		state, err = r.ConfirmBets(ctx, c.playerID)
	case opSpin:
		state, err = r.Spin(ctx, c.playerID)
	case opState:
		state, err = r.PlayerState(c.playerID)
	default:
		state, _ = r.PlayerState(c.playerID)
		return r, state, fmt.Errorf("%w %q", errUnknownOp, req.Op)
	}
	return r, state, err
}

func (c *Connection) join(ctx context.Context, req request) (*room.Room, room.PlayerState, error) {
	if cur := c.currentRoom(); cur != nil {
		if cur.ID == req.Room && !cur.IsClosed() {
			state, err := cur.PlayerState(c.playerID)
			return cur, state, err
		}
		if _, err := cur.RemovePlayer(ctx, c.playerID); err != nil {
			log.Debug().Err(err).Int64("player_id", c.playerID).Str("room_id", cur.ID).Msg("Leave before switching rooms")
		}
		c.setRoom(nil)
	}

	mode := req.Mode
	if mode == "" {
		mode = room.ModeSingle
	}
	r, state, err := c.gateway.rooms.Join(ctx, req.Room, mode, room.JoinRequest{
		PlayerID: c.playerID,
		Name:     c.name,
		IP:       c.ip,
	})
	if err != nil {
		return r, state, err
	}
	c.setRoom(r)
	return r, state, nil
}
