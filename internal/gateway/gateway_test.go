package gateway

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"roulette-server/internal/config"
	"roulette-server/internal/room"
)

type fixedSettlement struct{ balance int64 }

func (s fixedSettlement) PlaceBet(context.Context, int64, int64, string) (room.BalanceChange, error) {
	return room.BalanceChange{}, nil
}

func (s fixedSettlement) DepositWinnings(context.Context, int64, int64, string) (room.BalanceChange, error) {
	return room.BalanceChange{}, nil
}

func (s fixedSettlement) GetBalance(context.Context, int64) (int64, error) {
	return s.balance, nil
}

type testServer struct {
	gw  *Gateway
	dir *room.Directory
	url string
}

func newTestServer(t *testing.T) *testServer {
	t.Helper()
	gw := New(config.GatewayConfig{SendBuffer: 256})

	cfg := room.DefaultConfig()
	cfg.BettingSeconds = 1_000
	dir := room.NewDirectory(cfg, room.Deps{
		Settlement:  fixedSettlement{balance: 5_000},
		Broadcaster: gw,
	})

	srv := httptest.NewServer(gw.Handler(dir))
	t.Cleanup(func() {
		gw.CloseAll()
		dir.CloseAll()
		srv.Close()
	})
	return &testServer{gw: gw, dir: dir, url: "ws" + strings.TrimPrefix(srv.URL, "http")}
}

func (s *testServer) dial(t *testing.T, query string) *websocket.Conn {
	t.Helper()
	ws, _, err := websocket.DefaultDialer.Dial(s.url+"?"+query, nil)
	require.NoError(t, err)
	t.Cleanup(func() { _ = ws.Close() })
	return ws
}

type inbound struct {
	Type   string            `json:"type"`
	Op     string            `json:"op"`
	RoomID string            `json:"room_id"`
	Code   string            `json:"code"`
	Reason string            `json:"reason"`
	State  *room.PlayerState `json:"state"`
}

func send(t *testing.T, ws *websocket.Conn, v any) {
	t.Helper()
	require.NoError(t, ws.WriteJSON(v))
}

// next reads frames until one of the given type arrives, skipping room pushes.
func next(t *testing.T, ws *websocket.Conn, frameType string) inbound {
	t.Helper()
	require.NoError(t, ws.SetReadDeadline(time.Now().Add(5*time.Second)))
	for {
		_, data, err := ws.ReadMessage()
		require.NoError(t, err)
		var f inbound
		require.NoError(t, json.Unmarshal(data, &f))
		if f.Type == frameType {
			return f
		}
	}
}

// reply reads until the reply to an operation arrives.
func reply(t *testing.T, ws *websocket.Conn) inbound {
	t.Helper()
	require.NoError(t, ws.SetReadDeadline(time.Now().Add(5*time.Second)))
	for {
		_, data, err := ws.ReadMessage()
		require.NoError(t, err)
		var f inbound
		require.NoError(t, json.Unmarshal(data, &f))
		switch f.Type {
		case frameAck, frameDenied, frameError:
			return f
		}
	}
}

func TestGateway_RejectsMissingPlayerID(t *testing.T) {
	s := newTestServer(t)
	_, resp, err := websocket.DefaultDialer.Dial(s.url+"?name=bob", nil)
	require.Error(t, err)
	require.NotNil(t, resp)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestGateway_JoinAndBet(t *testing.T) {
	s := newTestServer(t)
	ws := s.dial(t, "player_id=1&name=alice")

	send(t, ws, map[string]any{"op": "state"})
	f := reply(t, ws)
	assert.Equal(t, frameDenied, f.Type)
	assert.Equal(t, "not_in_room", f.Code)

	send(t, ws, map[string]any{"op": "join", "room": "lobby", "mode": "single"})
	f = reply(t, ws)
	require.Equal(t, frameAck, f.Type, f.Reason)
	assert.Equal(t, "lobby", f.RoomID)
	require.NotNil(t, f.State)
	assert.Equal(t, "alice", f.State.Name)
	assert.Equal(t, int64(5_000), f.State.Balance)

	send(t, ws, map[string]any{"op": "bet", "bet": "straight_17", "amount": 100})
	f = reply(t, ws)
	require.Equal(t, frameAck, f.Type, f.Reason)
	assert.Equal(t, int64(100), f.State.Bets["straight_17"])
	assert.Equal(t, int64(4_900), f.State.Balance)

	send(t, ws, map[string]any{"op": "bet", "bet": "straight_37", "amount": 100})
	f = reply(t, ws)
	assert.Equal(t, frameDenied, f.Type)
	assert.Equal(t, "invalid_bet", f.Code)
	require.NotNil(t, f.State)
	assert.Equal(t, int64(100), f.State.Bets["straight_17"])

	send(t, ws, map[string]any{"op": "bet", "bet": "even_money_red", "amount": 10_000})
	f = reply(t, ws)
	assert.Equal(t, frameDenied, f.Type)
	assert.Equal(t, "insufficient_balance", f.Code)
	require.NotNil(t, f.State)
	assert.Equal(t, int64(4_900), f.State.Balance, "denied operations report the unchanged state")

	send(t, ws, map[string]any{"op": "undo"})
	f = reply(t, ws)
	require.Equal(t, frameAck, f.Type, f.Reason)
	assert.Empty(t, f.State.Bets)

	send(t, ws, map[string]any{"op": "fold"})
	f = reply(t, ws)
	assert.Equal(t, frameDenied, f.Type)
	assert.Equal(t, "unknown_op", f.Code)
	require.NotNil(t, f.State)
	assert.Equal(t, "alice", f.State.Name)

	require.NoError(t, ws.WriteMessage(websocket.TextMessage, []byte("{not json")))
	f = reply(t, ws)
	assert.Equal(t, frameError, f.Type)
}

func TestGateway_WrongModeDenied(t *testing.T) {
	s := newTestServer(t)
	_, err := s.dir.GetOrCreate("cup", room.ModeTournament)
	require.NoError(t, err)

	ws := s.dial(t, "player_id=2")
	send(t, ws, map[string]any{"op": "join", "room": "cup", "mode": "single"})
	f := reply(t, ws)
	assert.Equal(t, frameDenied, f.Type)
	assert.Equal(t, "wrong_mode", f.Code)
}

func TestGateway_DisconnectLeavesRoom(t *testing.T) {
	s := newTestServer(t)
	ws := s.dial(t, "player_id=3&name=carol")

	send(t, ws, map[string]any{"op": "join", "room": "short", "mode": "single"})
	f := reply(t, ws)
	require.Equal(t, frameAck, f.Type, f.Reason)

	r, ok := s.dir.Get("short")
	require.True(t, ok)
	assert.Equal(t, 1, r.PlayerCount())
	assert.Equal(t, 1, s.gw.ConnectionCount())

	require.NoError(t, ws.Close())

	require.Eventually(t, func() bool {
		return r.PlayerCount() == 0 && s.gw.ConnectionCount() == 0
	}, 5*time.Second, 20*time.Millisecond)
}

func TestGateway_ReplacedConnectionKeepsSeat(t *testing.T) {
	s := newTestServer(t)
	first := s.dial(t, "player_id=5&name=erin")
	send(t, first, map[string]any{"op": "join", "room": "table", "mode": "single"})
	require.Equal(t, frameAck, reply(t, first).Type)

	second := s.dial(t, "player_id=5&name=erin")
	// The old socket is closed once the new one registers.
	require.NoError(t, first.SetReadDeadline(time.Now().Add(5*time.Second)))
	for {
		if _, _, err := first.ReadMessage(); err != nil {
			break
		}
	}

	send(t, second, map[string]any{"op": "state"})
	f := reply(t, second)
	require.Equal(t, frameAck, f.Type, f.Reason)
	assert.Equal(t, "table", f.RoomID)

	r, ok := s.dir.Get("table")
	require.True(t, ok)
	assert.Equal(t, 1, r.PlayerCount())
}

func TestGateway_ServerDisconnect(t *testing.T) {
	s := newTestServer(t)
	ws := s.dial(t, "player_id=4")

	require.Eventually(t, func() bool { return s.gw.ConnectionCount() == 1 }, 5*time.Second, 10*time.Millisecond)
	s.gw.Disconnect(4, "tournament finished")

	f := next(t, ws, frameDisconnect)
	assert.Equal(t, "tournament finished", f.Reason)
}
