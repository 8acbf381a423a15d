package models

import (
	"fmt"
	"time"
)

// TaskKind determines how a scheduled task computes its due times.
type TaskKind string

const (
	TaskKindCron     TaskKind = "CRON"     // recurring, cron expression
	TaskKindInterval TaskKind = "INTERVAL" // recurring, fixed seconds since last run
	TaskKindDate     TaskKind = "DATE"     // one-shot, absolute timestamp
)

// ScheduledTask is the durable schedule definition. The scheduler loop is the
// sole writer of LastRunAt/NextRunAt; the admin surface owns everything else.
type ScheduledTask struct {
	ID              uint       `gorm:"primaryKey" json:"id"`
	Name            string     `gorm:"uniqueIndex;size:200;not null" json:"name"`
	Kind            TaskKind   `gorm:"size:20;not null" json:"kind"`
	CronExpression  string     `gorm:"size:100" json:"cron_expression"`
	IntervalSeconds *int64     `json:"interval_seconds"`
	RunAt           *time.Time `json:"run_at"`
	Enabled         bool       `gorm:"default:true;index" json:"enabled"`
	IsSystem        bool       `gorm:"default:false" json:"is_system"` // built-in entries, protected from deletion
	WorkdaysOnly    bool       `gorm:"default:false" json:"workdays_only"`
	CountryCode     string     `gorm:"size:10" json:"country_code"` // holiday calendar for workdays_only
	LastRunAt       *time.Time `json:"last_run_at"`
	NextRunAt       *time.Time `json:"next_run_at"`
	CreatedAt       time.Time  `json:"created_at"`
	UpdatedAt       time.Time  `json:"updated_at"`
}

func (ScheduledTask) TableName() string { return "scheduled_tasks" }

// Validate checks that exactly one timing field is populated and matches Kind.
func (t *ScheduledTask) Validate() error {
	set := 0
	if t.CronExpression != "" {
		set++
	}
	if t.IntervalSeconds != nil {
		set++
	}
	if t.RunAt != nil {
		set++
	}
	if set != 1 {
		return fmt.Errorf("task %q: exactly one of cron_expression, interval_seconds, run_at must be set", t.Name)
	}

	switch t.Kind {
	case TaskKindCron:
		if t.CronExpression == "" {
			return fmt.Errorf("task %q: kind CRON requires cron_expression", t.Name)
		}
	case TaskKindInterval:
		if t.IntervalSeconds == nil {
			return fmt.Errorf("task %q: kind INTERVAL requires interval_seconds", t.Name)
		}
		if *t.IntervalSeconds <= 0 {
			return fmt.Errorf("task %q: interval_seconds must be positive", t.Name)
		}
	case TaskKindDate:
		if t.RunAt == nil {
			return fmt.Errorf("task %q: kind DATE requires run_at", t.Name)
		}
	default:
		return fmt.Errorf("task %q: unknown kind %q", t.Name, t.Kind)
	}
	return nil
}
