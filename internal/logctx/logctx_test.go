package logctx

import (
	"context"
	"fmt"
	"io"
	"testing"
	"time"

	"callvista/backend/internal/models"
	"github.com/rs/zerolog"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()

	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared", t.Name())
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{
		Logger: gormlogger.Default.LogMode(gormlogger.Silent),
	})
	if err != nil {
		t.Fatalf("failed to open test database: %v", err)
	}
	if err := db.AutoMigrate(&models.TaskLog{}); err != nil {
		t.Fatalf("failed to migrate: %v", err)
	}
	return NewStore(db)
}

func TestHub_PublishSubscribe(t *testing.T) {
	hub := NewHub()

	ch := hub.Subscribe("viewer-1")
	defer hub.Unsubscribe("viewer-1")

	hub.Publish(Entry{ExecutionID: 7, TaskName: "account_sync", Level: "info", Message: "started", Time: time.Now()})

	select {
	case entry := <-ch:
		if entry.ExecutionID != 7 {
			t.Errorf("ExecutionID = %d, expected 7", entry.ExecutionID)
		}
		if entry.Message != "started" {
			t.Errorf("Message = %q, expected %q", entry.Message, "started")
		}
	case <-time.After(time.Second):
		t.Fatal("timed out waiting for entry")
	}
}

func TestHub_SlowClientDoesNotBlock(t *testing.T) {
	hub := NewHub()

	// Never drained: the buffer fills and further publishes must not block.
	hub.Subscribe("slow")
	defer hub.Unsubscribe("slow")

	done := make(chan struct{})
	go func() {
		for i := 0; i < 500; i++ {
			hub.Publish(Entry{ExecutionID: 1, Message: "line"})
		}
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("Publish blocked on a slow client")
	}
}

func TestHub_Unsubscribe(t *testing.T) {
	hub := NewHub()

	hub.Subscribe("viewer-1")
	if hub.ClientCount() != 1 {
		t.Fatalf("ClientCount = %d, expected 1", hub.ClientCount())
	}
	hub.Unsubscribe("viewer-1")
	if hub.ClientCount() != 0 {
		t.Errorf("ClientCount = %d, expected 0", hub.ClientCount())
	}
}

func TestNew_TagsAndMirrorsOutput(t *testing.T) {
	hub := NewHub()
	store := newTestStore(t)
	ch := hub.Subscribe("viewer")
	defer hub.Unsubscribe("viewer")

	base := zerolog.New(io.Discard)
	lg := New(base, 42, "inv-1", "account_sync", hub, store)
	lg.Info().Msg("syncing accounts")

	select {
	case entry := <-ch:
		if entry.ExecutionID != 42 {
			t.Errorf("ExecutionID = %d, expected 42", entry.ExecutionID)
		}
		if entry.TaskName != "account_sync" {
			t.Errorf("TaskName = %q, expected %q", entry.TaskName, "account_sync")
		}
		if entry.Level != "info" {
			t.Errorf("Level = %q, expected %q", entry.Level, "info")
		}
		if entry.Message != "syncing accounts" {
			t.Errorf("Message = %q, expected %q", entry.Message, "syncing accounts")
		}
	case <-time.After(time.Second):
		t.Fatal("timed out waiting for hub entry")
	}

	logs, err := store.ByExecution(42)
	if err != nil {
		t.Fatalf("ByExecution failed: %v", err)
	}
	if len(logs) != 1 {
		t.Fatalf("stored %d lines, expected 1", len(logs))
	}
	if logs[0].Message != "syncing accounts" {
		t.Errorf("stored Message = %q, expected %q", logs[0].Message, "syncing accounts")
	}
}

func TestContextIsolation(t *testing.T) {
	hub := NewHub()
	ch := hub.Subscribe("viewer")
	defer hub.Unsubscribe("viewer")

	base := zerolog.New(io.Discard)
	ctxA := Into(context.Background(), New(base, 1, "inv-a", "task_a", hub, nil))
	ctxB := Into(context.Background(), New(base, 2, "inv-b", "task_b", hub, nil))

	loggerA := From(ctxA)
	loggerB := From(ctxB)
	loggerA.Info().Msg("from a")
	loggerB.Info().Msg("from b")

	got := map[uint]string{}
	for i := 0; i < 2; i++ {
		select {
		case entry := <-ch:
			got[entry.ExecutionID] = entry.Message
		case <-time.After(time.Second):
			t.Fatal("timed out waiting for entries")
		}
	}

	if got[1] != "from a" || got[2] != "from b" {
		t.Errorf("entries crossed execution contexts: %v", got)
	}
}

func TestFrom_FallsBackWithoutContext(t *testing.T) {
	// Must not panic and must return a usable logger.
	lg := From(context.Background())
	lg.Debug().Msg("untagged")
}

func TestStore_Cleanup(t *testing.T) {
	store := newTestStore(t)

	old := Entry{ExecutionID: 1, Message: "old", Time: time.Now().AddDate(0, 0, -40)}
	fresh := Entry{ExecutionID: 1, Message: "fresh", Time: time.Now()}
	store.Append(old)
	store.Append(fresh)

	deleted, err := store.Cleanup(30)
	if err != nil {
		t.Fatalf("Cleanup failed: %v", err)
	}
	if deleted != 1 {
		t.Errorf("deleted = %d, expected 1", deleted)
	}

	logs, err := store.ByExecution(1)
	if err != nil {
		t.Fatalf("ByExecution failed: %v", err)
	}
	if len(logs) != 1 || logs[0].Message != "fresh" {
		t.Errorf("unexpected surviving logs: %+v", logs)
	}
}
