// Package lock provides per-player operation locks. A player may run several
// different operations at once, but never two of the same kind.
package lock

import "sync"

// playerOps is the set of operation kinds a player has in flight.
type playerOps struct {
	mu       sync.Mutex
	inFlight map[string]struct{}
	dropped  bool
}

// OperationLock tracks in-flight operations keyed by player and operation kind.
type OperationLock struct {
	players sync.Map // map[int64]*playerOps
}

// NewOperationLock creates a new OperationLock instance.
func NewOperationLock() *OperationLock {
	return &OperationLock{}
}

// getOps retrieves or creates the in-flight set for the given player.
func (l *OperationLock) getOps(playerID int64) *playerOps {
	if v, ok := l.players.Load(playerID); ok {
		return v.(*playerOps)
	}
	actual, _ := l.players.LoadOrStore(playerID, &playerOps{inFlight: make(map[string]struct{})})
	return actual.(*playerOps)
}

// TryAcquire marks kind as in flight for the player without blocking.
// It returns a release function and true on success. Release is safe to call
// more than once.
func (l *OperationLock) TryAcquire(playerID int64, kind string) (func(), bool) {
	ops := l.getOps(playerID)

	ops.mu.Lock()
	for ops.dropped {
		ops.mu.Unlock()
		ops = l.getOps(playerID)
		ops.mu.Lock()
	}
	if _, busy := ops.inFlight[kind]; busy {
		ops.mu.Unlock()
		return nil, false
	}
	ops.inFlight[kind] = struct{}{}
	ops.mu.Unlock()

	var once sync.Once
	return func() {
		once.Do(func() {
			ops.mu.Lock()
			delete(ops.inFlight, kind)
			ops.mu.Unlock()
		})
	}, true
}

// Do runs fn while holding kind for the player.
// Returns ErrInProgress without calling fn if kind is already held.
func (l *OperationLock) Do(playerID int64, kind string, fn func() error) error {
	release, ok := l.TryAcquire(playerID, kind)
	if !ok {
		return ErrInProgress
	}
	defer release()
	return fn()
}

// IsHeld reports whether kind is in flight for the player.
// Note: This is a point-in-time check and may change immediately after.
func (l *OperationLock) IsHeld(playerID int64, kind string) bool {
	v, ok := l.players.Load(playerID)
	if !ok {
		return false
	}
	ops := v.(*playerOps)
	ops.mu.Lock()
	defer ops.mu.Unlock()
	_, held := ops.inFlight[kind]
	return held
}

// Forget drops the player's entry once nothing is in flight.
func (l *OperationLock) Forget(playerID int64) {
	v, ok := l.players.Load(playerID)
	if !ok {
		return
	}
	ops := v.(*playerOps)
	ops.mu.Lock()
	defer ops.mu.Unlock()
	if len(ops.inFlight) == 0 {
		ops.dropped = true
		l.players.CompareAndDelete(playerID, ops)
	}
}
