// Package queue is the invocation channel between the scheduler loop and the
// workers. Messages carry only the symbolic task name; the worker side
// resolves names through the registry. With Redis enabled, invocations travel
// through asynq so any worker process may pick them up; otherwise they
// dispatch in-process.
package queue

import (
	"context"
	"encoding/json"
	"time"

	"callvista/backend/internal/config"
	"callvista/backend/pkg/logger"
	"github.com/hibiken/asynq"
)

const (
	TypeTaskInvoke = "task:invoke"
)

// Invocation is one firing of a scheduled task.
type Invocation struct {
	TaskName     string    `json:"task_name"`
	InvocationID string    `json:"invocation_id"`
	ScheduledAt  time.Time `json:"scheduled_at"`
}

// Processor executes one invocation on the worker side.
type Processor func(ctx context.Context, inv *Invocation) error

// Queue defines the invocation channel contract.
type Queue interface {
	// Enqueue hands an invocation to a worker.
	Enqueue(inv *Invocation) error
	// IsAsync returns true if invocations are processed out of process.
	IsAsync() bool
	// Close gracefully shuts down the queue.
	Close() error
}

// NewQueue builds the invocation queue for the given config: asynq-backed
// when Redis is enabled and reachable, in-process otherwise.
func NewQueue(cfg *config.RedisConfig) Queue {
	if cfg.Enabled {
		q, err := NewAsyncQueue(cfg)
		if err != nil {
			logger.Warnf("[Queue] Redis unavailable, falling back to sync mode: %v", err)
			return NewSyncQueue()
		}
		logger.Infof("[Queue] Async queue initialized with Redis at %s", cfg.Addr)
		return q
	}
	logger.Infof("[Queue] Sync queue initialized (Redis disabled)")
	return NewSyncQueue()
}

// AsyncQueue implements Queue using asynq (Redis-based).
type AsyncQueue struct {
	client *asynq.Client
}

// NewAsyncQueue creates a new Redis-based async queue.
func NewAsyncQueue(cfg *config.RedisConfig) (*AsyncQueue, error) {
	redisOpt := asynq.RedisClientOpt{
		Addr:     cfg.Addr,
		Password: cfg.Password,
		DB:       cfg.DB,
	}

	client := asynq.NewClient(redisOpt)

	// Test connection by pinging Redis
	inspector := asynq.NewInspector(redisOpt)
	defer inspector.Close()

	if _, err := inspector.Queues(); err != nil {
		client.Close()
		return nil, err
	}

	return &AsyncQueue{client: client}, nil
}

// Enqueue adds an invocation to the async queue. Delivery retries belong to
// the runner's own policy, so asynq-level retry is disabled.
func (q *AsyncQueue) Enqueue(inv *Invocation) error {
	payload, err := json.Marshal(inv)
	if err != nil {
		return err
	}

	t := asynq.NewTask(TypeTaskInvoke, payload)
	info, err := q.client.Enqueue(t,
		asynq.Queue("default"),
		asynq.MaxRetry(0),
	)
	if err != nil {
		return err
	}

	logger.Info().
		Str("task", inv.TaskName).
		Str("invocation_id", inv.InvocationID).
		Str("queue_id", info.ID).
		Msg("invocation enqueued")
	return nil
}

// IsAsync returns true for async queue.
func (q *AsyncQueue) IsAsync() bool {
	return true
}

// Close closes the async queue client.
func (q *AsyncQueue) Close() error {
	return q.client.Close()
}

// SyncQueue implements Queue with in-process dispatch (no Redis).
type SyncQueue struct {
	processor Processor
}

// NewSyncQueue creates a new synchronous queue.
func NewSyncQueue() *SyncQueue {
	return &SyncQueue{}
}

// SetProcessor sets the function that executes invocations in-process.
func (q *SyncQueue) SetProcessor(processor Processor) {
	q.processor = processor
}

// Enqueue dispatches the invocation in its own goroutine so the scheduler's
// fire cycle never blocks on a running task body.
func (q *SyncQueue) Enqueue(inv *Invocation) error {
	if q.processor == nil {
		logger.Warnf("[SyncQueue] no processor set, invocation for %q dropped", inv.TaskName)
		return nil
	}

	go func() {
		ctx := context.Background()
		if err := q.processor(ctx, inv); err != nil {
			logger.Errorf("[SyncQueue] invocation for %q failed: %v", inv.TaskName, err)
		}
	}()

	return nil
}

// IsAsync returns false for sync queue.
func (q *SyncQueue) IsAsync() bool {
	return false
}

// Close is a no-op for sync queue.
func (q *SyncQueue) Close() error {
	return nil
}
