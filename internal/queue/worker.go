package queue

import (
	"context"
	"encoding/json"
	"sync"

	"callvista/backend/internal/config"
	"callvista/backend/pkg/logger"
	"github.com/hibiken/asynq"
)

// Worker consumes invocations from the async queue and hands them to the
// processor (the task runner).
type Worker struct {
	server    *asynq.Server
	mux       *asynq.ServeMux
	processor Processor
	wg        sync.WaitGroup
	running   bool
	mu        sync.Mutex
}

// NewWorker creates a new worker instance. Returns nil when Redis is
// disabled; the sync queue covers dispatch in that mode.
func NewWorker(cfg *config.RedisConfig, processor Processor) *Worker {
	if !cfg.Enabled {
		return nil
	}

	redisOpt := asynq.RedisClientOpt{
		Addr:     cfg.Addr,
		Password: cfg.Password,
		DB:       cfg.DB,
	}

	server := asynq.NewServer(
		redisOpt,
		asynq.Config{
			Concurrency: 10,
			Queues: map[string]int{
				"default": 1,
			},
			ErrorHandler: asynq.ErrorHandlerFunc(func(ctx context.Context, task *asynq.Task, err error) {
				logger.Errorf("[Worker] error processing %s: %v", task.Type(), err)
			}),
		},
	)

	return &Worker{
		server:    server,
		mux:       asynq.NewServeMux(),
		processor: processor,
	}
}

// Start begins processing invocations.
func (w *Worker) Start() error {
	w.mu.Lock()
	defer w.mu.Unlock()

	if w.running {
		return nil
	}

	w.mux.HandleFunc(TypeTaskInvoke, w.handleInvocation)

	w.running = true
	w.wg.Add(1)

	go func() {
		defer w.wg.Done()
		logger.Infof("[Worker] starting async worker...")
		if err := w.server.Run(w.mux); err != nil {
			logger.Errorf("[Worker] server error: %v", err)
		}
	}()

	return nil
}

// Stop gracefully shuts down the worker.
func (w *Worker) Stop() {
	w.mu.Lock()
	defer w.mu.Unlock()

	if !w.running {
		return
	}

	logger.Infof("[Worker] shutting down...")
	w.server.Shutdown()
	w.running = false
	w.wg.Wait()
	logger.Infof("[Worker] shutdown complete")
}

// handleInvocation processes a single invocation message.
func (w *Worker) handleInvocation(ctx context.Context, t *asynq.Task) error {
	var inv Invocation
	if err := json.Unmarshal(t.Payload(), &inv); err != nil {
		logger.Errorf("[Worker] failed to unmarshal invocation: %v", err)
		return err
	}

	logger.Info().
		Str("task", inv.TaskName).
		Str("invocation_id", inv.InvocationID).
		Msg("processing invocation")

	if w.processor == nil {
		logger.Warnf("[Worker] no processor set")
		return nil
	}

	return w.processor(ctx, &inv)
}
