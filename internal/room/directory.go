package room

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"

	"github.com/rs/zerolog/log"
)

// Directory owns the live rooms of the process, keyed by room id.
// Rooms are created on first join and leave the directory when they close.
type Directory struct {
	rooms map[string]*Room
	mu    sync.RWMutex

	cfg  Config
	deps Deps
}

// NewDirectory creates an empty directory. Rooms it creates share cfg and deps.
func NewDirectory(cfg Config, deps Deps) *Directory {
	return &Directory{
		rooms: make(map[string]*Room),
		cfg:   cfg,
		deps:  deps,
	}
}

// GetOrCreate returns the room with the given id, creating it if needed.
// Returns ErrWrongMode if the room exists with another mode.
func (d *Directory) GetOrCreate(id string, mode Mode) (*Room, error) {
	if id == "" {
		return nil, fmt.Errorf("room id cannot be empty")
	}
	if !mode.Valid() {
		return nil, fmt.Errorf("unknown room mode %q", mode)
	}

	d.mu.Lock()
	defer d.mu.Unlock()

	if r, ok := d.rooms[id]; ok && !r.IsClosed() {
		if r.Mode != mode {
			return nil, deny(ErrWrongMode, "room %s is a %s room", id, r.Mode)
		}
		return r, nil
	}
	r := New(id, mode, d.cfg, d.deps, d.remove)
	d.rooms[id] = r
	return r, nil
}

// Get retrieves a room by id.
func (d *Directory) Get(id string) (*Room, bool) {
	d.mu.RLock()
	defer d.mu.RUnlock()
	r, ok := d.rooms[id]
	return r, ok
}

// Remove stops a room and drops it from the directory.
// Returns true if the room was found.
func (d *Directory) Remove(id string) bool {
	d.mu.Lock()
	r, ok := d.rooms[id]
	if ok {
		delete(d.rooms, id)
	}
	d.mu.Unlock()

	if ok {
		r.Stop()
	}
	return ok
}

// remove is the close callback of every room. A newer room registered under
// the same id is left alone.
func (d *Directory) remove(r *Room) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if cur, ok := d.rooms[r.ID]; ok && cur == r {
		delete(d.rooms, r.ID)
		log.Info().Str("room_id", r.ID).Msg("Room removed from directory")
	}
}

// List returns all rooms sorted by id.
// The returned slice is a copy, so modifications won't affect the directory.
func (d *Directory) List() []*Room {
	d.mu.RLock()
	rooms := make([]*Room, 0, len(d.rooms))
	for _, r := range d.rooms {
		rooms = append(rooms, r)
	}
	d.mu.RUnlock()

	sort.Slice(rooms, func(i, j int) bool { return rooms[i].ID < rooms[j].ID })
	return rooms
}

// Count returns the number of live rooms.
func (d *Directory) Count() int {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return len(d.rooms)
}

// Join seats a player in a room, creating the room on first join. The player's
// real balance is loaded from the settlement provider when one is configured.
func (d *Directory) Join(ctx context.Context, roomID string, mode Mode, req JoinRequest) (*Room, PlayerState, error) {
	if d.deps.Settlement != nil {
		balance, err := d.deps.Settlement.GetBalance(ctx, req.PlayerID)
		if err != nil {
			return nil, PlayerState{}, fmt.Errorf("failed to load balance: %w", err)
		}
		req.Balance = balance
	}

	// A room may close between lookup and join; retry once with a fresh room.
	for attempt := 0; attempt < 2; attempt++ {
		r, err := d.GetOrCreate(roomID, mode)
		if err != nil {
			return nil, PlayerState{}, err
		}
		state, err := r.AddPlayer(ctx, req)
		if errors.Is(err, ErrRoomClosed) {
			d.remove(r)
			continue
		}
		if err != nil && r.PlayerCount() == 0 {
			r.Stop()
		}
		return r, state, err
	}
	return nil, PlayerState{}, ErrRoomClosed
}

// CloseAll stops every room and empties the directory.
func (d *Directory) CloseAll() {
	d.mu.Lock()
	rooms := d.rooms
	d.rooms = make(map[string]*Room)
	d.mu.Unlock()

	for _, r := range rooms {
		r.Stop()
	}
	for _, r := range rooms {
		r.WaitSettlements()
	}
	log.Info().Int("rooms", len(rooms)).Msg("All rooms closed")
}
