// Package redis provides a Redis implementation of the ReferenceLock port.
//
// Locks are plain keys written with SET NX PX and a random owner token, so a
// crashed holder's lock expires on its own and a late release never deletes
// a lock that was re-acquired by someone else.
package redis

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/ideomind/unreal-dashboard/internal/ports/outbound"
)

// Compile-time check that ReferenceLock implements outbound.ReferenceLock
var _ outbound.ReferenceLock = (*ReferenceLock)(nil)

// releaseScript deletes the key only if it still holds the caller's token.
var releaseScript = redis.NewScript(`
if redis.call("GET", KEYS[1]) == ARGV[1] then
	return redis.call("DEL", KEYS[1])
end
return 0
`)

// Config holds Redis lock configuration.
type Config struct {
	// Addr is the Redis server address (e.g., "localhost:6379")
	Addr string
	// Password for Redis authentication (empty for no auth)
	Password string
	// DB is the Redis database number (0-15)
	DB int
	// TTL bounds how long a lock is held if never released. It must exceed
	// the worst-case verification time.
	TTL time.Duration
	// KeyPrefix is prepended to all lock keys
	KeyPrefix string
}

// ConfigDefaults returns sensible defaults for Redis lock configuration.
func ConfigDefaults() Config {
	return Config{
		Addr:      "localhost:6379",
		Password:  "",
		DB:        0,
		TTL:       2 * time.Minute,
		KeyPrefix: "unreal",
	}
}

// ReferenceLock is a Redis implementation of the outbound.ReferenceLock port.
type ReferenceLock struct {
	client    *redis.Client
	ttl       time.Duration
	keyPrefix string
	logger    *slog.Logger
}

// NewReferenceLock creates a new Redis-backed lock.
func NewReferenceLock(cfg Config, logger *slog.Logger) (*ReferenceLock, error) {
	if cfg.Addr == "" {
		return nil, fmt.Errorf("redis address is required")
	}
	if cfg.TTL == 0 {
		cfg.TTL = ConfigDefaults().TTL
	}
	if cfg.TTL < time.Millisecond {
		return nil, fmt.Errorf("lock TTL must be at least 1ms, got %v", cfg.TTL)
	}

	client := redis.NewClient(&redis.Options{
		Addr:     cfg.Addr,
		Password: cfg.Password,
		DB:       cfg.DB,
	})

	if logger == nil {
		logger = slog.Default()
	}

	return &ReferenceLock{
		client:    client,
		ttl:       cfg.TTL,
		keyPrefix: cfg.KeyPrefix,
		logger:    logger.With("component", "redis-lock"),
	}, nil
}

// Ping checks the Redis connection.
func (l *ReferenceLock) Ping(ctx context.Context) error {
	return l.client.Ping(ctx).Err()
}

// Close closes the Redis connection.
func (l *ReferenceLock) Close() error {
	return l.client.Close()
}

func (l *ReferenceLock) key(key string) string {
	if l.keyPrefix == "" {
		return key
	}
	return l.keyPrefix + ":" + key
}

// Acquire takes the lock or returns outbound.ErrLockHeld.
func (l *ReferenceLock) Acquire(ctx context.Context, key string) (outbound.ReleaseFunc, error) {
	token, err := newToken()
	if err != nil {
		return nil, err
	}

	fullKey := l.key(key)
	ok, err := l.client.SetNX(ctx, fullKey, token, l.ttl).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to acquire lock %s: %w", fullKey, err)
	}
	if !ok {
		return nil, outbound.ErrLockHeld
	}

	l.logger.Debug("lock acquired", "key", fullKey, "ttl", l.ttl)

	release := func(ctx context.Context) error {
		deleted, err := releaseScript.Run(ctx, l.client, []string{fullKey}, token).Int()
		if err != nil && !errors.Is(err, redis.Nil) {
			return fmt.Errorf("failed to release lock %s: %w", fullKey, err)
		}
		if deleted == 0 {
			l.logger.Warn("lock expired before release", "key", fullKey)
		}
		return nil
	}
	return release, nil
}

func newToken() (string, error) {
	b := make([]byte, 16)
	if _, err := rand.Read(b); err != nil {
		return "", fmt.Errorf("failed to generate lock token: %w", err)
	}
	return hex.EncodeToString(b), nil
}
