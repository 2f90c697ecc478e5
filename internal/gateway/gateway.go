// Package gateway carries players' room sessions over websocket connections.
package gateway

import (
	"context"
	"encoding/json"
	"net"
	"net/http"
	"slices"
	"strconv"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog/log"

	"roulette-server/internal/config"
	"roulette-server/internal/room"
)

// Rooms seats players in rooms.
type Rooms interface {
	Join(ctx context.Context, roomID string, mode room.Mode, req room.JoinRequest) (*room.Room, room.PlayerState, error)
}

// Gateway manages websocket connections, one per player.
type Gateway struct {
	mu    sync.RWMutex
	conns map[int64]*Connection

	cfg      config.GatewayConfig
	upgrader websocket.Upgrader
	rooms    Rooms
}

var _ room.Broadcaster = (*Gateway)(nil)

// New creates a gateway. Rooms must be attached with Handler before serving.
func New(cfg config.GatewayConfig) *Gateway {
	if cfg.WriteWait <= 0 {
		cfg.WriteWait = 10 * time.Second
	}
	if cfg.PongWait <= 0 {
		cfg.PongWait = 60 * time.Second
	}
	if cfg.MaxMessageSize <= 0 {
		cfg.MaxMessageSize = 4096
	}
	if cfg.SendBuffer <= 0 {
		cfg.SendBuffer = 64
	}

	g := &Gateway{
		conns: make(map[int64]*Connection),
		cfg:   cfg,
	}
	g.upgrader = websocket.Upgrader{
		ReadBufferSize:  4096,
		WriteBufferSize: 4096,
		CheckOrigin:     g.checkOrigin,
	}
	return g
}

func (g *Gateway) checkOrigin(r *http.Request) bool {
	if len(g.cfg.AllowedOrigins) == 0 {
		return true
	}
	return slices.Contains(g.cfg.AllowedOrigins, r.Header.Get("Origin"))
}

// Handler returns the websocket endpoint. Players identify themselves with
// the player_id and name query parameters.
func (g *Gateway) Handler(rooms Rooms) http.Handler {
	g.rooms = rooms
	return http.HandlerFunc(g.handleWebSocket)
}

func (g *Gateway) handleWebSocket(w http.ResponseWriter, r *http.Request) {
	playerID, err := strconv.ParseInt(r.URL.Query().Get("player_id"), 10, 64)
	if err != nil || playerID <= 0 {
		http.Error(w, "player_id must be a positive integer", http.StatusBadRequest)
		return
	}
	name := r.URL.Query().Get("name")
	if name == "" {
		name = "player-" + strconv.FormatInt(playerID, 10)
	}

	ws, err := g.upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Warn().Err(err).Int64("player_id", playerID).Msg("Websocket upgrade failed")
		return
	}

	c := &Connection{
		playerID: playerID,
		name:     name,
		ip:       clientIP(r),
		ws:       ws,
		send:     make(chan []byte, g.cfg.SendBuffer),
		gateway:  g,
	}
	// The new connection takes over the old one's seat.
	if old := g.register(c); old != nil {
		c.setRoom(old.currentRoom())
		old.setRoom(nil)
		old.close()
	}

	log.Info().Int64("player_id", playerID).Str("ip", c.ip).Msg("Client connected")

	go c.writePump()
	go c.readPump()
}

func clientIP(r *http.Request) string {
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}

// register makes c the player's connection and returns the one it replaced.
func (g *Gateway) register(c *Connection) *Connection {
	g.mu.Lock()
	defer g.mu.Unlock()
	old := g.conns[c.playerID]
	g.conns[c.playerID] = c
	return old
}

func (g *Gateway) unregister(c *Connection) {
	g.mu.Lock()
	defer g.mu.Unlock()
	if cur, ok := g.conns[c.playerID]; ok && cur == c {
		delete(g.conns, c.playerID)
	}
}

func (g *Gateway) conn(playerID int64) *Connection {
	g.mu.RLock()
	defer g.mu.RUnlock()
	return g.conns[playerID]
}

// Send pushes a room message to the player. It never blocks: a full send
// buffer drops the message.
func (g *Gateway) Send(playerID int64, msg room.Message) {
	c := g.conn(playerID)
	if c == nil {
		return
	}
	c.write(msg)
}

// Disconnect sends a closing notice and closes the player's connection.
func (g *Gateway) Disconnect(playerID int64, reason string) {
	c := g.conn(playerID)
	if c == nil {
		return
	}
	c.write(frame{Type: frameDisconnect, Reason: reason})
	c.close()
}

// ConnectionCount returns the number of open connections.
func (g *Gateway) ConnectionCount() int {
	g.mu.RLock()
	defer g.mu.RUnlock()
	return len(g.conns)
}

// CloseAll closes every connection.
func (g *Gateway) CloseAll() {
	g.mu.RLock()
	conns := make([]*Connection, 0, len(g.conns))
	for _, c := range g.conns {
		conns = append(conns, c)
	}
	g.mu.RUnlock()

	for _, c := range conns {
		c.write(frame{Type: frameDisconnect, Reason: "server shutting down"})
		c.close()
	}
}

// Connection is one player's websocket session.
type Connection struct {
	playerID int64
	name     string
	ip       string
	ws       *websocket.Conn
	gateway  *Gateway

	mu     sync.Mutex
	send   chan []byte
	closed bool
	room   *room.Room
}

func (c *Connection) write(v any) {
	data, err := json.Marshal(v)
	if err != nil {
		log.Error().Err(err).Int64("player_id", c.playerID).Msg("Failed to encode frame")
		return
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return
	}
	select {
	case c.send <- data:
	default:
		log.Warn().Int64("player_id", c.playerID).Msg("Send buffer full, dropping frame")
	}
}

// close stops the write pump, which closes the socket.
func (c *Connection) close() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if !c.closed {
		c.closed = true
		close(c.send)
	}
}

func (c *Connection) currentRoom() *room.Room {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.room
}

func (c *Connection) setRoom(r *room.Room) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.room = r
}

func (c *Connection) readPump() {
	defer func() {
		c.leave()
		c.gateway.unregister(c)
		c.close()
		_ = c.ws.Close()
		log.Info().Int64("player_id", c.playerID).Msg("Client disconnected")
	}()

	cfg := c.gateway.cfg
	c.ws.SetReadLimit(cfg.MaxMessageSize)
	_ = c.ws.SetReadDeadline(time.Now().Add(cfg.PongWait))
	c.ws.SetPongHandler(func(string) error {
		return c.ws.SetReadDeadline(time.Now().Add(cfg.PongWait))
	})

	for {
		_, data, err := c.ws.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				log.Debug().Err(err).Int64("player_id", c.playerID).Msg("Read error")
			}
			return
		}
		c.handle(data)
	}
}

func (c *Connection) writePump() {
	cfg := c.gateway.cfg
	ticker := time.NewTicker(cfg.PongWait * 9 / 10)
	defer func() {
		ticker.Stop()
		_ = c.ws.Close()
	}()

	for {
		select {
		case data, ok := <-c.send:
			_ = c.ws.SetWriteDeadline(time.Now().Add(cfg.WriteWait))
			if !ok {
				_ = c.ws.WriteMessage(websocket.CloseMessage,
					websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
				return
			}
			if err := c.ws.WriteMessage(websocket.TextMessage, data); err != nil {
				return
			}
		case <-ticker.C:
			_ = c.ws.SetWriteDeadline(time.Now().Add(cfg.WriteWait))
			if err := c.ws.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

// leave takes the player out of their room when the socket goes away.
func (c *Connection) leave() {
	r := c.currentRoom()
	if r == nil {
		return
	}
	c.setRoom(nil)
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if _, err := r.RemovePlayer(ctx, c.playerID); err != nil {
		log.Debug().Err(err).Int64("player_id", c.playerID).Str("room_id", r.ID).Msg("Leave on disconnect")
	}
}
