package runlock

import (
	"context"
	"errors"
	"testing"
	"time"

	miniredis "github.com/alicebob/miniredis/v2"
	redis "github.com/redis/go-redis/v9"

	apperrors "github.com/wazeportal/ingest/internal/errors"
)

func testLock(t *testing.T) (*Lock, *miniredis.Miniredis) {
	t.Helper()
	s, err := miniredis.Run()
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(s.Close)

	client := redis.NewClient(&redis.Options{Addr: s.Addr()})
	t.Cleanup(func() { _ = client.Close() })

	return NewWithClient(client, 2*time.Minute), s
}

func TestAcquire_ExclusiveUntilReleased(t *testing.T) {
	l, _ := testLock(t)
	ctx := context.Background()

	release, err := l.Acquire(ctx)
	if err != nil {
		t.Fatal(err)
	}

	if _, err := l.Acquire(ctx); !errors.Is(err, apperrors.ErrLockHeld) {
		t.Fatalf("expected ErrLockHeld, got %v", err)
	}

	release()

	release2, err := l.Acquire(ctx)
	if err != nil {
		t.Fatalf("expected acquire after release, got %v", err)
	}
	release2()
}

func TestAcquire_AfterTTLExpiry(t *testing.T) {
	l, s := testLock(t)
	ctx := context.Background()

	staleRelease, err := l.Acquire(ctx)
	if err != nil {
		t.Fatal(err)
	}

	// Simulate the holder crashing and the lease expiring.
	s.FastForward(3 * time.Minute)

	release, err := l.Acquire(ctx)
	if err != nil {
		t.Fatalf("expected acquire after expiry, got %v", err)
	}
	defer release()

	// The stale holder's release must not clobber the new lease.
	staleRelease()
	if _, err := l.Acquire(ctx); !errors.Is(err, apperrors.ErrLockHeld) {
		t.Fatal("stale release must not free the new holder's lease")
	}
}
