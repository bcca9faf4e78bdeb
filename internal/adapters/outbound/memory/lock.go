package memory

import (
	"context"
	"sync"
	"time"

	"github.com/ideomind/unreal-dashboard/internal/ports/outbound"
)

// Compile-time check that ReferenceLock implements outbound.ReferenceLock
var _ outbound.ReferenceLock = (*ReferenceLock)(nil)

// ReferenceLock is a process-local ReferenceLock with expiry. It only
// excludes callers sharing the same instance; use the redis adapter when
// several replicas serve traffic.
type ReferenceLock struct {
	mu    sync.Mutex
	ttl   time.Duration
	now   func() time.Time
	held  map[string]lease
	nextN uint64
}

type lease struct {
	token     uint64
	expiresAt time.Time
}

// NewReferenceLock creates a lock whose leases expire after ttl.
// A non-positive ttl means leases never expire.
func NewReferenceLock(ttl time.Duration) *ReferenceLock {
	return &ReferenceLock{
		ttl:  ttl,
		now:  time.Now,
		held: make(map[string]lease),
	}
}

// Acquire takes the lock for key or returns outbound.ErrLockHeld.
func (l *ReferenceLock) Acquire(ctx context.Context, key string) (outbound.ReleaseFunc, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	now := l.now()
	if cur, ok := l.held[key]; ok && (l.ttl <= 0 || now.Before(cur.expiresAt)) {
		return nil, outbound.ErrLockHeld
	}

	l.nextN++
	token := l.nextN
	l.held[key] = lease{token: token, expiresAt: now.Add(l.ttl)}

	return func(context.Context) error {
		l.mu.Lock()
		defer l.mu.Unlock()
		// A lease that expired and was taken over belongs to someone else.
		if cur, ok := l.held[key]; ok && cur.token == token {
			delete(l.held, key)
		}
		return nil
	}, nil
}

// Held reports whether key is currently locked.
func (l *ReferenceLock) Held(key string) bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	cur, ok := l.held[key]
	return ok && (l.ttl <= 0 || l.now().Before(cur.expiresAt))
}
