package lock

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

// Lua scripts compiled once at package load. Extend and Release must be
// compare-and-set on the token, never read-then-write.
var (
	extendScript = redis.NewScript(`
		if redis.call("GET", KEYS[1]) == ARGV[1] then
			return redis.call("PEXPIRE", KEYS[1], ARGV[2])
		else
			return 0
		end
	`)

	releaseScript = redis.NewScript(`
		if redis.call("GET", KEYS[1]) == ARGV[1] then
			return redis.call("DEL", KEYS[1])
		else
			return 0
		end
	`)
)

// RedisLocker implements Locker on a Redis key space. SET NX PX gives atomic
// set-if-absent-or-expired; per-key TTL handles crashed holders.
type RedisLocker struct {
	client redis.UniversalClient
	prefix string
}

// NewRedisLocker creates a Redis-backed locker. Keys are namespaced with
// prefix; pass "" for the default "scheduler:lock:".
func NewRedisLocker(client redis.UniversalClient, prefix string) *RedisLocker {
	if prefix == "" {
		prefix = "scheduler:lock:"
	}
	return &RedisLocker{client: client, prefix: prefix}
}

func (l *RedisLocker) Acquire(ctx context.Context, key string, ttl time.Duration) (string, error) {
	token := uuid.NewString()

	ok, err := l.client.SetNX(ctx, l.prefix+key, token, ttl).Result()
	if err != nil {
		return "", fmt.Errorf("lock: redis setnx failed: %w", err)
	}
	if !ok {
		return "", ErrBusy
	}
	return token, nil
}

func (l *RedisLocker) Extend(ctx context.Context, key, token string, ttl time.Duration) error {
	result, err := extendScript.Run(ctx, l.client, []string{l.prefix + key}, token, ttl.Milliseconds()).Int()
	if err != nil {
		return fmt.Errorf("lock: redis extend failed: %w", err)
	}
	if result == 0 {
		return ErrLost
	}
	return nil
}

func (l *RedisLocker) Release(ctx context.Context, key, token string) error {
	result, err := releaseScript.Run(ctx, l.client, []string{l.prefix + key}, token).Int()
	if err != nil {
		return fmt.Errorf("lock: redis release failed: %w", err)
	}
	if result == 0 {
		return ErrNotOwner
	}
	return nil
}

var _ Locker = (*RedisLocker)(nil)
