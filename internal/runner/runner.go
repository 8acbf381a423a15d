// Package runner executes task invocations. A run wraps the task body with
// the distributed lock guard, an execution record per attempt, a lock
// heartbeat, a timeout, and a bounded retry policy for errors the body
// classified as transient.
package runner

import (
	"context"
	"errors"
	"fmt"
	"sync/atomic"
	"time"

	"callvista/backend/internal/lock"
	"callvista/backend/internal/logctx"
	"callvista/backend/internal/models"
	"callvista/backend/internal/tracker"
	"callvista/backend/pkg/logger"
	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

type Options struct {
	LockTTL           time.Duration // must exceed the expected task runtime
	HeartbeatInterval time.Duration // must be smaller than LockTTL
	TaskTimeout       time.Duration
	MaxRetries        int
	RetryBackoff      time.Duration // base for exponential backoff
}

func (o *Options) applyDefaults() {
	if o.LockTTL <= 0 {
		o.LockTTL = 5 * time.Minute
	}
	if o.HeartbeatInterval <= 0 || o.HeartbeatInterval >= o.LockTTL {
		o.HeartbeatInterval = o.LockTTL / 3
	}
	if o.TaskTimeout <= 0 {
		o.TaskTimeout = 30 * time.Minute
	}
	if o.MaxRetries < 0 {
		o.MaxRetries = 0
	}
	if o.RetryBackoff <= 0 {
		o.RetryBackoff = 30 * time.Second
	}
}

type Runner struct {
	registry *Registry
	locker   lock.Locker
	tracker  *tracker.Tracker
	hub      *logctx.Hub
	logStore *logctx.Store
	opts     Options
}

func New(registry *Registry, locker lock.Locker, trk *tracker.Tracker, hub *logctx.Hub, logStore *logctx.Store, opts Options) *Runner {
	opts.applyDefaults()
	return &Runner{
		registry: registry,
		locker:   locker,
		tracker:  trk,
		hub:      hub,
		logStore: logStore,
		opts:     opts,
	}
}

// Run processes one invocation of the named task. Contention on the task's
// lock is a deliberate no-op: another process is already running it, the skip
// is logged and no execution record is created. Every other outcome resolves
// to terminal execution records.
func (r *Runner) Run(ctx context.Context, taskName, invocationID string, scheduledAt time.Time) error {
	if invocationID == "" {
		invocationID = uuid.NewString()
	}
	plog := logger.Get().With().
		Str("task", taskName).
		Str("invocation_id", invocationID).
		Logger()

	fn, registered := r.registry.Resolve(taskName)
	if !registered {
		// Unknown name still resolves to a terminal record so the firing is
		// never silently lost.
		plog.Error().Msg("invocation names an unregistered task")
		if _, err := r.tracker.Start(taskName, invocationID, 1); err != nil {
			return err
		}
		return r.tracker.Failure(invocationID, 1, ErrTaskNotRegistered)
	}

	token, err := r.locker.Acquire(ctx, taskName, r.opts.LockTTL)
	if errors.Is(err, lock.ErrBusy) {
		plog.Info().Msg("skipped: task lock held by another worker")
		return nil
	}
	if err != nil {
		return fmt.Errorf("runner: acquiring lock for %q: %w", taskName, err)
	}

	var currentAttempt atomic.Int32
	currentAttempt.Store(1)
	hb := r.startHeartbeat(taskName, token, invocationID, &currentAttempt, plog)

	defer func() {
		hb.stopAndWait()
		// Release must not depend on the (possibly canceled) run context.
		relCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := r.locker.Release(relCtx, taskName, token); err != nil {
			if errors.Is(err, lock.ErrNotOwner) {
				plog.Warn().Msg("lock already expired or taken over at release")
			} else {
				plog.Error().Err(err).Msg("failed to release task lock")
			}
		}
	}()

	maxAttempts := r.opts.MaxRetries + 1
	for attempt := 1; attempt <= maxAttempts; attempt++ {
		currentAttempt.Store(int32(attempt))

		rec, err := r.tracker.Start(taskName, invocationID, attempt)
		if err != nil {
			return fmt.Errorf("runner: recording start of %q: %w", taskName, err)
		}
		if rec.Status.Terminal() {
			// Redelivered invocation; this attempt already resolved. A final
			// failure stays final: only a failure recorded as transient may
			// resume with the next attempt.
			if rec.Status == models.ExecutionSuccess || !rec.Retryable {
				return nil
			}
			continue
		}

		lg := logctx.New(logger.Get(), rec.ID, invocationID, taskName, r.hub, r.logStore)
		runCtx, cancel := context.WithTimeout(logctx.Into(ctx, lg), r.opts.TaskTimeout)

		lg.Info().
			Int("attempt", attempt).
			Time("scheduled_at", scheduledAt).
			Msg("task started")

		result, runErr := invoke(runCtx, fn)
		cancel()

		if runErr == nil {
			lg.Info().Int("attempt", attempt).Msg("task completed")
			return r.tracker.Success(invocationID, attempt, result)
		}

		lg.Error().Err(runErr).Int("attempt", attempt).Msg("task failed")
		if err := r.tracker.Failure(invocationID, attempt, runErr); err != nil {
			return fmt.Errorf("runner: recording failure of %q: %w", taskName, err)
		}

		if !IsRetryable(runErr) || attempt == maxAttempts {
			return nil
		}

		backoff := r.opts.RetryBackoff << (attempt - 1)
		lg.Warn().Dur("backoff", backoff).Msg("transient failure, will retry")
		select {
		case <-time.After(backoff):
		case <-ctx.Done():
			return ctx.Err()
		}
	}
	return nil
}

// invoke runs the body and converts panics into errors so the record is
// finalized on every exit path.
func invoke(ctx context.Context, fn TaskFunc) (result string, err error) {
	defer func() {
		if rec := recover(); rec != nil {
			err = fmt.Errorf("task panicked: %v", rec)
		}
	}()
	return fn(ctx)
}

type heartbeat struct {
	stop chan struct{}
	done chan struct{}
}

func (h *heartbeat) stopAndWait() {
	close(h.stop)
	<-h.done
}

// startHeartbeat extends the lock at a fixed interval for as long as the run
// lasts, covering retry backoff sleeps too. Losing the lock does not abort
// the body (cancellation is cooperative only); the current attempt is flagged
// unreliable instead.
func (r *Runner) startHeartbeat(taskName, token, invocationID string, currentAttempt *atomic.Int32, plog zerolog.Logger) *heartbeat {
	hb := &heartbeat{
		stop: make(chan struct{}),
		done: make(chan struct{}),
	}

	go func() {
		defer close(hb.done)
		ticker := time.NewTicker(r.opts.HeartbeatInterval)
		defer ticker.Stop()

		for {
			select {
			case <-hb.stop:
				return
			case <-ticker.C:
			}

			ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
			err := r.locker.Extend(ctx, taskName, token, r.opts.LockTTL)
			cancel()

			if err == nil {
				continue
			}
			if errors.Is(err, lock.ErrLost) {
				attempt := int(currentAttempt.Load())
				plog.Warn().Int("attempt", attempt).
					Msg("lock lost mid-execution, result will be flagged unreliable")
				if merr := r.tracker.MarkLockLost(invocationID, attempt); merr != nil {
					plog.Error().Err(merr).Msg("failed to flag execution as lock-lost")
				}
				return
			}
			plog.Error().Err(err).Msg("heartbeat extend failed")
		}
	}()

	return hb
}
