package scheduler

import (
	"fmt"
	"time"

	"callvista/backend/internal/models"
	"github.com/robfig/cron/v3"
)

// ParseError marks a schedule definition that could not be turned into an
// in-memory entry. It poisons only its own entry; the resync continues with
// the rest.
type ParseError struct {
	TaskName string
	Err      error
}

func (e *ParseError) Error() string {
	return fmt.Sprintf("schedule %q: %v", e.TaskName, e.Err)
}

func (e *ParseError) Unwrap() error { return e.Err }

// definition is the comparable shape of a schedule row. Two rows with equal
// definitions schedule identically; any difference (including a kind change)
// replaces the in-memory entry wholesale.
type definition struct {
	kind            models.TaskKind
	cronExpr        string
	intervalSeconds int64
	runAt           time.Time
	workdaysOnly    bool
	countryCode     string
}

func definitionOf(task *models.ScheduledTask) definition {
	def := definition{
		kind:         task.Kind,
		cronExpr:     task.CronExpression,
		workdaysOnly: task.WorkdaysOnly,
		countryCode:  task.CountryCode,
	}
	if task.IntervalSeconds != nil {
		def.intervalSeconds = *task.IntervalSeconds
	}
	if task.RunAt != nil {
		def.runAt = *task.RunAt
	}
	return def
}

// entry is the in-memory scheduling state for one enabled task.
type entry struct {
	name     string
	def      definition
	schedule cron.Schedule // CRON only
	lastRun  *time.Time
	next     time.Time
	fired    bool // one-shot already fired; suppressed until its row is disabled
}

// newEntry builds an entry from a schedule row and computes its first due
// time as seen at now. Cron expressions use the standard 5-field format and
// are evaluated in local wall-clock time.
func newEntry(task *models.ScheduledTask, now time.Time) (*entry, error) {
	if err := task.Validate(); err != nil {
		return nil, &ParseError{TaskName: task.Name, Err: err}
	}

	e := &entry{
		name: task.Name,
		def:  definitionOf(task),
	}
	if task.LastRunAt != nil {
		t := *task.LastRunAt
		e.lastRun = &t
	}

	if task.Kind == models.TaskKindCron {
		schedule, err := cron.ParseStandard(task.CronExpression)
		if err != nil {
			return nil, &ParseError{TaskName: task.Name, Err: err}
		}
		e.schedule = schedule
	}

	e.next = e.computeNext(now)
	return e, nil
}

// computeNext returns the entry's due time as seen at now.
//   - CRON: the smallest local time strictly greater than now matching the
//     expression.
//   - INTERVAL: last run + interval, or now if the task never ran. Spacing is
//     measured from last_run_at, not from wall-clock drift.
//   - DATE: the fixed timestamp.
func (e *entry) computeNext(now time.Time) time.Time {
	switch e.def.kind {
	case models.TaskKindCron:
		return e.schedule.Next(now)
	case models.TaskKindInterval:
		if e.lastRun == nil {
			return now
		}
		return e.lastRun.Add(time.Duration(e.def.intervalSeconds) * time.Second)
	case models.TaskKindDate:
		return e.def.runAt
	}
	return time.Time{}
}

// advance records a firing (or a deliberate skip) at now and moves the due
// time forward.
func (e *entry) advance(now time.Time) {
	t := now
	e.lastRun = &t
	e.next = e.computeNext(now)
}

// due reports whether the entry should fire at now.
func (e *entry) due(now time.Time) bool {
	return !e.fired && !e.next.After(now)
}
