package outbound

import (
	"context"
	"errors"
)

// ErrLockHeld is returned by ReferenceLock.Acquire when another holder owns the key.
var ErrLockHeld = errors.New("lock already held")

// ReleaseFunc releases a lock acquired with ReferenceLock.Acquire.
type ReleaseFunc func(ctx context.Context) error

// ReferenceLock is a short-lived, cross-process mutual exclusion keyed by a
// transaction reference. Locks expire on their own if never released.
type ReferenceLock interface {
	// Acquire takes the lock for key or returns ErrLockHeld.
	Acquire(ctx context.Context, key string) (ReleaseFunc, error)
}
