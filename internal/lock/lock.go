// Package lock provides cross-process mutual exclusion with expiring
// ownership. One lock key per task name serializes execution across worker
// instances; a token returned by Acquire proves ownership for Extend/Release.
package lock

import (
	"context"
	"errors"
	"time"
)

var (
	// ErrBusy means the lock is currently held by another owner. This is the
	// normal contention outcome, not a service failure.
	ErrBusy = errors.New("lock: already held")

	// ErrLost means an Extend found the caller no longer owns the lock,
	// typically because the TTL lapsed and another process acquired it.
	ErrLost = errors.New("lock: ownership lost")

	// ErrNotOwner means a Release was attempted with a stale token.
	ErrNotOwner = errors.New("lock: not the owner")
)

// Locker is the lock store contract. Acquire must be atomic and non-blocking:
// a scheduler never stalls waiting for another process's task. Extend and
// Release only succeed while the caller's token matches the stored one.
type Locker interface {
	// Acquire takes the lock if it is absent or expired and returns a fresh
	// owner token. Returns ErrBusy if a live owner exists.
	Acquire(ctx context.Context, key string, ttl time.Duration) (string, error)

	// Extend refreshes the TTL of a held lock. Returns ErrLost if the token
	// no longer matches.
	Extend(ctx context.Context, key, token string, ttl time.Duration) error

	// Release deletes a held lock. Returns ErrNotOwner if the token no longer
	// matches; the lock is left for its current owner in that case.
	Release(ctx context.Context, key, token string) error
}
