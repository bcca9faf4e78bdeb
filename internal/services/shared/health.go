package shared

import (
	"context"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/ideomind/unreal-dashboard/internal/ports/inbound"
)

// Compile-time check that DependencyChecker implements inbound.HealthChecker.
var _ inbound.HealthChecker = (*DependencyChecker)(nil)

// PingFunc checks a single dependency.
type PingFunc func(ctx context.Context) error

// DependencyChecker periodically pings the service's dependencies and
// reports readiness from the last round. It is healthy while rounds keep
// completing.
type DependencyChecker struct {
	deps     map[string]PingFunc
	interval time.Duration
	timeout  time.Duration
	logger   *slog.Logger
	now      func() time.Time

	ready     atomic.Bool
	lastRound atomic.Int64 // unix nanos

	mu     sync.RWMutex
	status map[string]error
}

// NewDependencyChecker creates a checker. interval defaults to 10s; each
// ping is bounded by half the interval.
func NewDependencyChecker(deps map[string]PingFunc, interval time.Duration, logger *slog.Logger) *DependencyChecker {
	if interval <= 0 {
		interval = 10 * time.Second
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &DependencyChecker{
		deps:     deps,
		interval: interval,
		timeout:  interval / 2,
		logger:   logger.With("component", "dependency-checker"),
		now:      time.Now,
		status:   make(map[string]error, len(deps)),
	}
}

// Run checks dependencies immediately and then every interval until ctx is done.
func (c *DependencyChecker) Run(ctx context.Context) {
	c.Check(ctx)

	ticker := time.NewTicker(c.interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			c.Check(ctx)
		}
	}
}

// Check runs one round of pings and updates readiness.
func (c *DependencyChecker) Check(ctx context.Context) {
	results := make(map[string]error, len(c.deps))
	var (
		mu sync.Mutex
		wg sync.WaitGroup
	)
	for name, ping := range c.deps {
		wg.Add(1)
		go func(name string, ping PingFunc) {
			defer wg.Done()
			pingCtx, cancel := context.WithTimeout(ctx, c.timeout)
			defer cancel()
			err := ping(pingCtx)
			mu.Lock()
			results[name] = err
			mu.Unlock()
		}(name, ping)
	}
	wg.Wait()

	ready := true
	for name, err := range results {
		if err != nil {
			ready = false
			c.logger.Warn("dependency check failed", "dependency", name, "error", err)
		}
	}

	c.mu.Lock()
	c.status = results
	c.mu.Unlock()

	if ready != c.ready.Load() {
		c.logger.Info("readiness changed", "ready", ready)
	}
	c.ready.Store(ready)
	c.lastRound.Store(c.now().UnixNano())
}

// IsReady reports whether every dependency answered in the last round.
func (c *DependencyChecker) IsReady() bool {
	return c.ready.Load()
}

// IsHealthy reports whether a round completed within the last three intervals.
func (c *DependencyChecker) IsHealthy() bool {
	last := c.lastRound.Load()
	if last == 0 {
		return false
	}
	return c.now().Sub(time.Unix(0, last)) <= 3*c.interval
}

// Status returns the last error per dependency (nil when healthy).
func (c *DependencyChecker) Status() map[string]error {
	c.mu.RLock()
	defer c.mu.RUnlock()
	out := make(map[string]error, len(c.status))
	for k, v := range c.status {
		out[k] = v
	}
	return out
}
