package lock

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
)

func newRedisLocker(t *testing.T) (*RedisLocker, *miniredis.Miniredis) {
	t.Helper()

	mr, err := miniredis.Run()
	if err != nil {
		t.Fatalf("failed to start miniredis: %v", err)
	}
	t.Cleanup(mr.Close)

	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { client.Close() })

	return NewRedisLocker(client, ""), mr
}

func TestRedisLocker_AcquireContention(t *testing.T) {
	locker, _ := newRedisLocker(t)
	ctx := context.Background()

	token, err := locker.Acquire(ctx, "account_sync", time.Minute)
	if err != nil {
		t.Fatalf("first Acquire failed: %v", err)
	}
	if token == "" {
		t.Fatal("first Acquire returned empty token")
	}

	// Second acquirer while the lock is live must report busy, not block.
	if _, err := locker.Acquire(ctx, "account_sync", time.Minute); !errors.Is(err, ErrBusy) {
		t.Errorf("second Acquire = %v, expected ErrBusy", err)
	}

	// A different key is unaffected.
	if _, err := locker.Acquire(ctx, "call_import", time.Minute); err != nil {
		t.Errorf("Acquire on different key failed: %v", err)
	}
}

func TestRedisLocker_ExpiryAllowsReacquire(t *testing.T) {
	locker, mr := newRedisLocker(t)
	ctx := context.Background()

	if _, err := locker.Acquire(ctx, "account_sync", 30*time.Second); err != nil {
		t.Fatalf("Acquire failed: %v", err)
	}

	mr.FastForward(31 * time.Second)

	token2, err := locker.Acquire(ctx, "account_sync", 30*time.Second)
	if err != nil {
		t.Fatalf("Acquire after TTL lapse failed: %v", err)
	}
	if token2 == "" {
		t.Fatal("expected a fresh token after expiry")
	}
}

func TestRedisLocker_ExtendKeepsOwnership(t *testing.T) {
	locker, mr := newRedisLocker(t)
	ctx := context.Background()

	token, err := locker.Acquire(ctx, "account_sync", 10*time.Second)
	if err != nil {
		t.Fatalf("Acquire failed: %v", err)
	}

	mr.FastForward(8 * time.Second)
	if err := locker.Extend(ctx, "account_sync", token, 10*time.Second); err != nil {
		t.Fatalf("Extend failed: %v", err)
	}

	// Past the original TTL but within the extension: still busy for others.
	mr.FastForward(5 * time.Second)
	if _, err := locker.Acquire(ctx, "account_sync", 10*time.Second); !errors.Is(err, ErrBusy) {
		t.Errorf("Acquire after extend = %v, expected ErrBusy", err)
	}
}

func TestRedisLocker_ExtendAfterLoss(t *testing.T) {
	locker, mr := newRedisLocker(t)
	ctx := context.Background()

	token, err := locker.Acquire(ctx, "account_sync", 5*time.Second)
	if err != nil {
		t.Fatalf("Acquire failed: %v", err)
	}

	mr.FastForward(6 * time.Second)

	// Another process takes the key after expiry.
	if _, err := locker.Acquire(ctx, "account_sync", time.Minute); err != nil {
		t.Fatalf("re-acquire failed: %v", err)
	}

	if err := locker.Extend(ctx, "account_sync", token, time.Minute); !errors.Is(err, ErrLost) {
		t.Errorf("Extend with stale token = %v, expected ErrLost", err)
	}
}

func TestRedisLocker_ReleaseOnlyByOwner(t *testing.T) {
	locker, _ := newRedisLocker(t)
	ctx := context.Background()

	token, err := locker.Acquire(ctx, "account_sync", time.Minute)
	if err != nil {
		t.Fatalf("Acquire failed: %v", err)
	}

	if err := locker.Release(ctx, "account_sync", "not-the-token"); !errors.Is(err, ErrNotOwner) {
		t.Errorf("Release with wrong token = %v, expected ErrNotOwner", err)
	}

	if err := locker.Release(ctx, "account_sync", token); err != nil {
		t.Fatalf("Release failed: %v", err)
	}

	// Released lock is immediately acquirable.
	if _, err := locker.Acquire(ctx, "account_sync", time.Minute); err != nil {
		t.Errorf("Acquire after release failed: %v", err)
	}
}

func TestRedisLocker_ConcurrentAcquirers(t *testing.T) {
	locker, _ := newRedisLocker(t)
	ctx := context.Background()

	const goroutines = 20
	results := make(chan error, goroutines)
	for i := 0; i < goroutines; i++ {
		go func() {
			_, err := locker.Acquire(ctx, "account_sync", time.Minute)
			results <- err
		}()
	}

	granted := 0
	busy := 0
	for i := 0; i < goroutines; i++ {
		switch err := <-results; {
		case err == nil:
			granted++
		case errors.Is(err, ErrBusy):
			busy++
		default:
			t.Fatalf("unexpected error: %v", err)
		}
	}

	if granted != 1 {
		t.Errorf("granted = %d, expected exactly 1", granted)
	}
	if busy != goroutines-1 {
		t.Errorf("busy = %d, expected %d", busy, goroutines-1)
	}
}
