package runlock

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	redis "github.com/redis/go-redis/v9"

	apperrors "github.com/wazeportal/ingest/internal/errors"
	"github.com/wazeportal/ingest/internal/logger"
)

const lockKey = "wazeportal:ingest:run"

// releaseScript deletes the lock only when this holder still owns it, so an
// expired lease taken over by another run is never clobbered.
var releaseScript = redis.NewScript(`
if redis.call("GET", KEYS[1]) == ARGV[1] then
	return redis.call("DEL", KEYS[1])
end
return 0
`)

// Lock is a Redis lease that serializes ingestion cycles across processes.
// The TTL bounds how long a crashed holder can block the next run.
type Lock struct {
	client *redis.Client
	ttl    time.Duration
}

// New connects to Redis and verifies connectivity.
func New(redisURL string, ttl time.Duration) (*Lock, error) {
	opt, err := redis.ParseURL(redisURL)
	if err != nil {
		return nil, fmt.Errorf("parse redis url: %w", err)
	}
	client := redis.NewClient(opt)
	ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("redis ping: %w", err)
	}
	return &Lock{client: client, ttl: ttl}, nil
}

// NewWithClient wraps an existing client.
func NewWithClient(client *redis.Client, ttl time.Duration) *Lock {
	return &Lock{client: client, ttl: ttl}
}

func (l *Lock) Close() error { return l.client.Close() }

// Acquire takes the lease. Returns ErrLockHeld when another process owns it.
// The returned release function is safe to call after the lease expired.
func (l *Lock) Acquire(ctx context.Context) (func(), error) {
	holder := uuid.NewString()

	ok, err := l.client.SetNX(ctx, lockKey, holder, l.ttl).Result()
	if err != nil {
		return nil, fmt.Errorf("acquire lock: %w", err)
	}
	if !ok {
		return nil, apperrors.ErrLockHeld
	}

	release := func() {
		ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
		defer cancel()
		if err := releaseScript.Run(ctx, l.client, []string{lockKey}, holder).Err(); err != nil {
			logger.Warn("Run lock release failed", "error", err)
		}
	}
	return release, nil
}
