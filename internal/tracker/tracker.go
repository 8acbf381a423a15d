// Package tracker owns the task_executions table. It reacts to three
// lifecycle signals - start, success, failure - and nothing else; the
// scheduler never touches execution records. Every signal is idempotent on
// (invocation id, attempt): redelivery of a signal for a finalized record
// leaves the record unchanged.
package tracker

import (
	"errors"
	"time"
	"unicode/utf8"

	"callvista/backend/internal/models"
	"callvista/backend/pkg/logger"
	"gorm.io/gorm"
)

const DefaultMaxErrorLen = 2000

type Tracker struct {
	db          *gorm.DB
	maxErrorLen int
}

func New(db *gorm.DB, maxErrorLen int) *Tracker {
	if maxErrorLen <= 0 {
		maxErrorLen = DefaultMaxErrorLen
	}
	return &Tracker{db: db, maxErrorLen: maxErrorLen}
}

// Start records the beginning of an attempt and returns the record. If the
// record already exists (redelivered signal), the existing row is returned
// untouched.
func (t *Tracker) Start(taskName, invocationID string, attempt int) (*models.TaskExecution, error) {
	if existing, err := t.find(invocationID, attempt); err == nil {
		return existing, nil
	} else if !errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, err
	}

	rec := &models.TaskExecution{
		TaskName:     taskName,
		InvocationID: invocationID,
		Attempt:      attempt,
		Status:       models.ExecutionRunning,
		StartedAt:    time.Now(),
	}
	if err := t.db.Create(rec).Error; err != nil {
		// A concurrent redelivery may have won the insert; fall back to it.
		if existing, ferr := t.find(invocationID, attempt); ferr == nil {
			return existing, nil
		}
		return nil, err
	}
	return rec, nil
}

// Success finalizes an attempt as SUCCESS. No-op if the record is already
// terminal.
func (t *Tracker) Success(invocationID string, attempt int, resultSummary string) error {
	return t.finalize(invocationID, attempt, func(rec *models.TaskExecution, now time.Time) {
		rec.Status = models.ExecutionSuccess
		rec.FinishedAt = &now
		rec.ResultSummary = resultSummary
	})
}

// Failure finalizes an attempt as FAILURE with the captured error, truncated
// to the configured bound. Whether the body classified the error as transient
// is persisted with the record, so a redelivered invocation can tell a final
// failure from one that may still be retried. No-op if the record is already
// terminal.
func (t *Tracker) Failure(invocationID string, attempt int, cause error) error {
	msg := ""
	if cause != nil {
		msg = cause.Error()
	}
	msg = t.truncate(msg)
	transient := isTransient(cause)
	return t.finalize(invocationID, attempt, func(rec *models.TaskExecution, now time.Time) {
		rec.Status = models.ExecutionFailure
		rec.FinishedAt = &now
		rec.ErrorMessage = msg
		rec.Retryable = transient
	})
}

// truncate bounds msg to maxErrorLen bytes without splitting a multi-byte
// rune.
func (t *Tracker) truncate(msg string) string {
	if len(msg) <= t.maxErrorLen {
		return msg
	}
	cut := t.maxErrorLen
	for cut > 0 && !utf8.RuneStart(msg[cut]) {
		cut--
	}
	return msg[:cut]
}

// isTransient reports whether the error carries a transient classification.
// Matched structurally to keep the tracker free of a dependency on the
// runner's error types.
func isTransient(err error) bool {
	var r interface{ Retryable() bool }
	return errors.As(err, &r) && r.Retryable()
}

// MarkLockLost flags a running attempt whose heartbeat lost the lock. The
// execution finishes normally but its result is recorded as unreliable.
func (t *Tracker) MarkLockLost(invocationID string, attempt int) error {
	rec, err := t.find(invocationID, attempt)
	if err != nil {
		return err
	}
	return t.db.Model(rec).Update("lock_lost", true).Error
}

// SweepStale finalizes RUNNING records older than olderThan as FAILURE with a
// timeout reason. Records of crashed workers never receive a terminal signal;
// this is the reconciliation that keeps them from being silently lost.
func (t *Tracker) SweepStale(olderThan time.Duration) (int64, error) {
	now := time.Now()
	cutoff := now.Add(-olderThan)
	res := t.db.Model(&models.TaskExecution{}).
		Where("status = ? AND started_at < ?", models.ExecutionRunning, cutoff).
		Updates(map[string]interface{}{
			"status":        models.ExecutionFailure,
			"finished_at":   now,
			"error_message": "timed out: no lifecycle signal received, worker presumed dead",
		})
	if res.Error != nil {
		return 0, res.Error
	}
	if res.RowsAffected > 0 {
		logger.Warn().
			Int64("count", res.RowsAffected).
			Dur("older_than", olderThan).
			Msg("reconciled orphaned executions")
	}
	return res.RowsAffected, nil
}

// CleanupTerminal deletes terminal records older than the retention window.
func (t *Tracker) CleanupTerminal(retentionDays int) (int64, error) {
	if retentionDays <= 0 {
		return 0, nil
	}
	cutoff := time.Now().AddDate(0, 0, -retentionDays)
	res := t.db.Where("status IN ? AND created_at < ?",
		[]models.ExecutionStatus{models.ExecutionSuccess, models.ExecutionFailure}, cutoff).
		Delete(&models.TaskExecution{})
	return res.RowsAffected, res.Error
}

// ByInvocation returns all attempts of one firing, oldest first.
func (t *Tracker) ByInvocation(invocationID string) ([]models.TaskExecution, error) {
	var recs []models.TaskExecution
	err := t.db.Where("invocation_id = ?", invocationID).
		Order("attempt ASC").
		Find(&recs).Error
	return recs, err
}

func (t *Tracker) find(invocationID string, attempt int) (*models.TaskExecution, error) {
	var rec models.TaskExecution
	err := t.db.Where("invocation_id = ? AND attempt = ?", invocationID, attempt).
		First(&rec).Error
	if err != nil {
		return nil, err
	}
	return &rec, nil
}

func (t *Tracker) finalize(invocationID string, attempt int, mutate func(*models.TaskExecution, time.Time)) error {
	rec, err := t.find(invocationID, attempt)
	if err != nil {
		return err
	}
	if rec.Status.Terminal() {
		// Duplicate lifecycle signal: ignore.
		return nil
	}

	mutate(rec, time.Now())
	return t.db.Save(rec).Error
}
