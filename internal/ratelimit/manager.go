package ratelimit

import (
	"context"
	"fmt"
	"time"

	redis "github.com/redis/go-redis/v9"
)

// Manager provides Redis-backed per-client request rate limiting
type Manager struct {
	redis *redis.Client
	rpm   int
}

// NewManager connects to Redis and verifies connectivity.
func NewManager(redisURL string, rpm int) (*Manager, error) {
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
	return &Manager{redis: client, rpm: rpm}, nil
}

// NewManagerWithClient wraps an existing client. Used when the run lock and
// rate limiter share one connection.
func NewManagerWithClient(client *redis.Client, rpm int) *Manager {
	return &Manager{redis: client, rpm: rpm}
}

func (m *Manager) Close() error { return m.redis.Close() }

// RPM returns the configured requests-per-minute limit.
func (m *Manager) RPM() int { return m.rpm }

// CheckRate returns allowed=false when the client's minute bucket is
// exhausted, along with seconds until the window resets.
func (m *Manager) CheckRate(ctx context.Context, clientID, method, path string) (allowed bool, resetSec int, err error) {
	now := time.Now().UTC()
	window := now.Unix() / 60 // minute window
	rk := fmt.Sprintf("rl:%s:%s:%s:%d", clientID, method, path, window)

	pipe := m.redis.TxPipeline()
	incr := pipe.Incr(ctx, rk)
	pipe.Expire(ctx, rk, time.Minute)
	if _, err = pipe.Exec(ctx); err != nil {
		return false, 0, err
	}

	count := int(incr.Val())
	if count > m.rpm {
		secPassed := int(now.Unix() % 60)
		return false, 60 - secPassed, nil
	}
	return true, 0, nil
}
