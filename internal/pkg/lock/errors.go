package lock

import "errors"

// Lock-related errors.
var (
	// ErrInProgress is returned when the same operation is already running for a player.
	ErrInProgress = errors.New("operation already in progress")
)
