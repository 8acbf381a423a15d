package queue

import (
	"context"
	"testing"
	"time"

	"callvista/backend/internal/config"
)

func TestTypeTaskInvoke_Constant(t *testing.T) {
	if TypeTaskInvoke != "task:invoke" {
		t.Errorf("TypeTaskInvoke = %q, expected %q", TypeTaskInvoke, "task:invoke")
	}
}

func TestSyncQueue_DispatchesToProcessor(t *testing.T) {
	q := NewSyncQueue()

	got := make(chan *Invocation, 1)
	q.SetProcessor(func(ctx context.Context, inv *Invocation) error {
		got <- inv
		return nil
	})

	scheduled := time.Now()
	err := q.Enqueue(&Invocation{
		TaskName:     "account_sync",
		InvocationID: "inv-1",
		ScheduledAt:  scheduled,
	})
	if err != nil {
		t.Fatalf("Enqueue failed: %v", err)
	}

	select {
	case inv := <-got:
		if inv.TaskName != "account_sync" {
			t.Errorf("TaskName = %q, expected %q", inv.TaskName, "account_sync")
		}
		if inv.InvocationID != "inv-1" {
			t.Errorf("InvocationID = %q, expected %q", inv.InvocationID, "inv-1")
		}
		if !inv.ScheduledAt.Equal(scheduled) {
			t.Errorf("ScheduledAt = %v, expected %v", inv.ScheduledAt, scheduled)
		}
	case <-time.After(time.Second):
		t.Fatal("timed out waiting for processor")
	}
}

func TestSyncQueue_NoProcessorDoesNotPanic(t *testing.T) {
	q := NewSyncQueue()
	if err := q.Enqueue(&Invocation{TaskName: "account_sync"}); err != nil {
		t.Errorf("Enqueue without processor = %v, expected nil", err)
	}
}

func TestSyncQueue_IsAsync(t *testing.T) {
	q := NewSyncQueue()
	if q.IsAsync() {
		t.Error("SyncQueue.IsAsync() must be false")
	}
	if err := q.Close(); err != nil {
		t.Errorf("Close failed: %v", err)
	}
}

func TestNewQueue_RedisDisabledFallsBackToSync(t *testing.T) {
	q := NewQueue(&config.RedisConfig{Enabled: false})
	if q.IsAsync() {
		t.Error("expected sync queue when Redis is disabled")
	}
}

func TestNewWorker_NilWhenRedisDisabled(t *testing.T) {
	w := NewWorker(&config.RedisConfig{Enabled: false}, nil)
	if w != nil {
		t.Error("expected nil worker when Redis is disabled")
	}
}
