// Package scheduler polls the scheduled_tasks table and fires invocations at
// their due times. The loop runs two nested cycles: a fixed-period resync
// that diffs the table against the in-memory entry set, and an event-driven
// fire cycle that sleeps until the earliest due time or the next resync
// boundary, whichever comes first.
//
// Multiple loop instances may run against the same table for availability.
// That is safe because a firing only enqueues a name-addressed invocation;
// the task lock deduplicates redundant firings at execution time.
package scheduler

import (
	"sort"
	"sync"
	"time"

	"callvista/backend/internal/models"
	"callvista/backend/internal/queue"
	"callvista/backend/pkg/logger"
	"github.com/google/uuid"
	"gorm.io/gorm"
)

const (
	DefaultResyncInterval = 60 * time.Second

	// minSleep bounds the fire cycle against hot-looping when a due time
	// lands exactly on the current instant.
	minSleep = 50 * time.Millisecond
)

// WorkdayChecker gates firings of workday-only schedules.
type WorkdayChecker interface {
	IsWorkday(t time.Time, countryCode string) bool
}

type Loop struct {
	db             *gorm.DB
	queue          queue.Queue
	workdays       WorkdayChecker // optional
	resyncInterval time.Duration

	mu      sync.Mutex
	entries map[string]*entry

	stopCh   chan struct{}
	doneCh   chan struct{}
	stopOnce sync.Once
}

func New(db *gorm.DB, q queue.Queue, workdays WorkdayChecker, resyncInterval time.Duration) *Loop {
	if resyncInterval <= 0 {
		resyncInterval = DefaultResyncInterval
	}
	return &Loop{
		db:             db,
		queue:          q,
		workdays:       workdays,
		resyncInterval: resyncInterval,
		entries:        make(map[string]*entry),
		stopCh:         make(chan struct{}),
		doneCh:         make(chan struct{}),
	}
}

// Start launches the loop. The in-memory entry set is rebuilt from the table
// on every start, so a crash never loses schedule definitions.
func (l *Loop) Start() {
	go l.run()
	logger.Infof("[Scheduler] loop started, resync every %v", l.resyncInterval)
}

// Stop terminates the loop and waits for the current cycle to finish.
func (l *Loop) Stop() {
	l.stopOnce.Do(func() { close(l.stopCh) })
	<-l.doneCh
	logger.Infof("[Scheduler] loop stopped")
}

func (l *Loop) run() {
	defer close(l.doneCh)

	now := time.Now()
	l.resync(now)
	nextResync := now.Add(l.resyncInterval)

	for {
		now = time.Now()
		if !now.Before(nextResync) {
			l.resync(now)
			nextResync = now.Add(l.resyncInterval)
		}

		l.fireDue(now)

		sleepUntil := nextResync
		if earliest, ok := l.earliestDue(); ok && earliest.Before(sleepUntil) {
			sleepUntil = earliest
		}
		d := time.Until(sleepUntil)
		if d < minSleep {
			d = minSleep
		}

		timer := time.NewTimer(d)
		select {
		case <-l.stopCh:
			timer.Stop()
			return
		case <-timer.C:
		}
	}
}

// resync reads all enabled schedule rows and diffs them against the entry
// set: new rows are added, deleted or disabled rows are dropped, changed
// definitions (including kind changes) are replaced wholesale. A malformed
// definition skips only its own entry.
func (l *Loop) resync(now time.Time) {
	var tasks []models.ScheduledTask
	if err := l.db.Where("enabled = ?", true).Find(&tasks).Error; err != nil {
		logger.Errorf("[Scheduler] resync query failed: %v", err)
		return
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	seen := make(map[string]bool, len(tasks))
	for i := range tasks {
		task := &tasks[i]
		seen[task.Name] = true

		if existing, ok := l.entries[task.Name]; ok && existing.def == definitionOf(task) {
			if existing.fired {
				// The disable did not land when this one-shot fired; the row
				// is still armed. Keep the entry suppressed and retry until
				// the write sticks.
				firedAt := now
				if existing.lastRun != nil {
					firedAt = *existing.lastRun
				}
				if err := l.disableOneShot(task.Name, firedAt); err != nil {
					logger.Errorf("[Scheduler] failed to disable fired one-shot %q: %v", task.Name, err)
				} else {
					delete(l.entries, task.Name)
				}
				continue
			}
			// Unchanged definition. Another scheduler instance may have fired
			// it since our last cycle; adopt the newer last_run_at so we do
			// not double-fire.
			if task.LastRunAt != nil && (existing.lastRun == nil || task.LastRunAt.After(*existing.lastRun)) {
				existing.lastRun = task.LastRunAt
				existing.next = existing.computeNext(now)
			}
			continue
		}

		e, err := newEntry(task, now)
		if err != nil {
			logger.Error().Err(err).Str("task", task.Name).Msg("schedule definition skipped")
			delete(l.entries, task.Name)
			continue
		}
		l.entries[task.Name] = e
		l.persistNext(e.name, e.next)
	}

	for name := range l.entries {
		if !seen[name] {
			delete(l.entries, name)
		}
	}
}

// fireDue fires every due entry, in non-decreasing due-time order.
func (l *Loop) fireDue(now time.Time) {
	l.mu.Lock()
	defer l.mu.Unlock()

	due := make([]*entry, 0)
	for _, e := range l.entries {
		if e.due(now) {
			due = append(due, e)
		}
	}
	sort.Slice(due, func(i, j int) bool { return due[i].next.Before(due[j].next) })

	for _, e := range due {
		l.fire(e, now)
	}
}

// fire enqueues one invocation for e, then persists last_run_at/next_run_at.
// Persisting before the next resync makes firing idempotent across restarts.
func (l *Loop) fire(e *entry, now time.Time) {
	scheduled := e.next

	if e.def.workdaysOnly && e.def.kind != models.TaskKindDate &&
		l.workdays != nil && !l.workdays.IsWorkday(now, e.def.countryCode) {
		logger.Info().Str("task", e.name).Time("due", scheduled).
			Msg("skipped: due time falls outside workdays")
		e.advance(now)
		l.persistRun(e.name, now, e.next)
		return
	}

	inv := &queue.Invocation{
		TaskName:     e.name,
		InvocationID: uuid.NewString(),
		ScheduledAt:  scheduled,
	}
	if err := l.queue.Enqueue(inv); err != nil {
		logger.Error().Err(err).Str("task", e.name).
			Str("invocation_id", inv.InvocationID).
			Msg("failed to enqueue invocation")
	}

	if e.def.kind == models.TaskKindDate {
		// One-shot: suppress first, so the entry can never fire again even if
		// the disable write fails and the row stays armed.
		e.fired = true
		t := now
		e.lastRun = &t
		if err := l.disableOneShot(e.name, now); err != nil {
			logger.Error().Err(err).Str("task", e.name).
				Msg("failed to disable fired one-shot task, will retry at resync")
			return
		}
		delete(l.entries, e.name)
		logger.Info().Str("task", e.name).Msg("one-shot task fired and disabled")
		return
	}

	e.advance(now)
	l.persistRun(e.name, now, e.next)
}

// disableOneShot disarms a fired DATE row.
func (l *Loop) disableOneShot(name string, firedAt time.Time) error {
	return l.db.Model(&models.ScheduledTask{}).
		Where("name = ?", name).
		Updates(map[string]interface{}{
			"enabled":     false,
			"last_run_at": firedAt,
			"next_run_at": nil,
		}).Error
}

func (l *Loop) persistRun(name string, lastRun, next time.Time) {
	err := l.db.Model(&models.ScheduledTask{}).
		Where("name = ?", name).
		Updates(map[string]interface{}{
			"last_run_at": lastRun,
			"next_run_at": next,
		}).Error
	if err != nil {
		logger.Errorf("[Scheduler] failed to persist run times for %q: %v", name, err)
	}
}

func (l *Loop) persistNext(name string, next time.Time) {
	err := l.db.Model(&models.ScheduledTask{}).
		Where("name = ?", name).
		Update("next_run_at", next).Error
	if err != nil {
		logger.Errorf("[Scheduler] failed to persist next run time for %q: %v", name, err)
	}
}

func (l *Loop) earliestDue() (time.Time, bool) {
	l.mu.Lock()
	defer l.mu.Unlock()

	var earliest time.Time
	found := false
	for _, e := range l.entries {
		if e.fired {
			continue
		}
		if !found || e.next.Before(earliest) {
			earliest = e.next
			found = true
		}
	}
	return earliest, found
}

// EntryCount reports the size of the in-memory entry set.
func (l *Loop) EntryCount() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.entries)
}
