// Package logctx scopes log output to a single task execution. The runner
// opens a tagged logger before the task body starts and threads it through
// context.Context; every line the body emits carries the execution id and is
// mirrored to the live hub and the task_logs sink. Each execution gets its
// own logger instance, so concurrent executions never share state.
package logctx

import (
	"context"
	"time"

	"callvista/backend/pkg/logger"
	"github.com/rs/zerolog"
)

type ctxKey struct{}

// New derives an execution-scoped logger from base. Output keeps flowing to
// the process log; the hook mirrors each line to hub and store.
func New(base zerolog.Logger, executionID uint, invocationID, taskName string, hub *Hub, store *Store) zerolog.Logger {
	return base.With().
		Uint("execution_id", executionID).
		Str("invocation_id", invocationID).
		Str("task", taskName).
		Logger().
		Hook(&tapHook{
			executionID: executionID,
			taskName:    taskName,
			hub:         hub,
			store:       store,
		})
}

// Into returns a child context carrying l.
func Into(ctx context.Context, l zerolog.Logger) context.Context {
	return context.WithValue(ctx, ctxKey{}, l)
}

// From returns the execution logger carried by ctx, or the process logger
// when ctx has none (output outside any execution stays untagged).
func From(ctx context.Context) zerolog.Logger {
	if l, ok := ctx.Value(ctxKey{}).(zerolog.Logger); ok {
		return l
	}
	return logger.Get()
}

// tapHook mirrors emitted lines to the hub and sink. It holds the execution
// identity itself, so it never needs to parse the event.
type tapHook struct {
	executionID uint
	taskName    string
	hub         *Hub
	store       *Store
}

func (h *tapHook) Run(e *zerolog.Event, level zerolog.Level, message string) {
	if level == zerolog.NoLevel || message == "" {
		return
	}

	entry := Entry{
		ExecutionID: h.executionID,
		TaskName:    h.taskName,
		Level:       level.String(),
		Message:     message,
		Time:        time.Now(),
	}
	if h.hub != nil {
		h.hub.Publish(entry)
	}
	if h.store != nil {
		h.store.Append(entry)
	}
}
