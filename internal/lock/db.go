package lock

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"callvista/backend/internal/models"
	"github.com/google/uuid"
	"gorm.io/gorm"
)

// DBLocker implements Locker on the scheduler_locks table, for deployments
// without Redis. Atomicity comes from conditional UPDATE/DELETE statements
// plus the unique index on lock_key; there is no read-then-write window.
type DBLocker struct {
	db *gorm.DB
}

func NewDBLocker(db *gorm.DB) *DBLocker {
	return &DBLocker{db: db}
}

func (l *DBLocker) Acquire(ctx context.Context, key string, ttl time.Duration) (string, error) {
	now := time.Now()
	token := uuid.NewString()

	// Take over an expired row first. The WHERE clause is the compare-and-set:
	// of two concurrent acquirers only one can match expires_at <= now.
	res := l.db.WithContext(ctx).Model(&models.SchedulerLock{}).
		Where("lock_key = ? AND expires_at <= ?", key, now).
		Updates(map[string]interface{}{
			"owner_token": token,
			"locked_at":   now,
			"expires_at":  now.Add(ttl),
		})
	if res.Error != nil {
		return "", fmt.Errorf("lock: db takeover failed: %w", res.Error)
	}
	if res.RowsAffected == 1 {
		return token, nil
	}

	// No expired row. Insert a fresh one; the unique index rejects the loser
	// when two acquirers race, and rejects us when a live owner exists.
	err := l.db.WithContext(ctx).Create(&models.SchedulerLock{
		LockKey:    key,
		OwnerToken: token,
		LockedAt:   now,
		ExpiresAt:  now.Add(ttl),
	}).Error
	if err != nil {
		if errors.Is(err, gorm.ErrDuplicatedKey) || isUniqueViolation(err) {
			return "", ErrBusy
		}
		return "", fmt.Errorf("lock: db insert failed: %w", err)
	}
	return token, nil
}

func (l *DBLocker) Extend(ctx context.Context, key, token string, ttl time.Duration) error {
	now := time.Now()
	res := l.db.WithContext(ctx).Model(&models.SchedulerLock{}).
		Where("lock_key = ? AND owner_token = ? AND expires_at > ?", key, token, now).
		Update("expires_at", now.Add(ttl))
	if res.Error != nil {
		return fmt.Errorf("lock: db extend failed: %w", res.Error)
	}
	if res.RowsAffected == 0 {
		return ErrLost
	}
	return nil
}

func (l *DBLocker) Release(ctx context.Context, key, token string) error {
	res := l.db.WithContext(ctx).
		Where("lock_key = ? AND owner_token = ?", key, token).
		Delete(&models.SchedulerLock{})
	if res.Error != nil {
		return fmt.Errorf("lock: db release failed: %w", res.Error)
	}
	if res.RowsAffected == 0 {
		return ErrNotOwner
	}
	return nil
}

// isUniqueViolation matches driver-specific duplicate-key errors that gorm
// does not translate for every dialect.
func isUniqueViolation(err error) bool {
	if err == nil {
		return false
	}
	msg := err.Error()
	return strings.Contains(msg, "UNIQUE constraint failed") ||
		strings.Contains(msg, "Duplicate entry") ||
		strings.Contains(msg, "duplicate key value")
}

var _ Locker = (*DBLocker)(nil)
