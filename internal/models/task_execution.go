package models

import "time"

// ExecutionStatus is the lifecycle state of a single fired attempt.
type ExecutionStatus string

const (
	ExecutionPending ExecutionStatus = "PENDING"
	ExecutionRunning ExecutionStatus = "RUNNING"
	ExecutionSuccess ExecutionStatus = "SUCCESS"
	ExecutionFailure ExecutionStatus = "FAILURE"
)

// Terminal reports whether the status will never change again.
func (s ExecutionStatus) Terminal() bool {
	return s == ExecutionSuccess || s == ExecutionFailure
}

// TaskExecution records one fired attempt of a scheduled task. Attempts of the
// same firing share an InvocationID; (invocation_id, attempt) is the
// idempotency key for lifecycle signals.
type TaskExecution struct {
	ID            uint            `gorm:"primaryKey" json:"id"`
	TaskName      string          `gorm:"size:200;index;not null" json:"task_name"`
	InvocationID  string          `gorm:"size:64;uniqueIndex:idx_invocation_attempt;not null" json:"invocation_id"`
	Attempt       int             `gorm:"uniqueIndex:idx_invocation_attempt;default:1" json:"attempt"`
	Status        ExecutionStatus `gorm:"size:20;index" json:"status"`
	StartedAt     time.Time       `json:"started_at"`
	FinishedAt    *time.Time      `json:"finished_at"`
	ErrorMessage  string          `gorm:"type:text" json:"error_message"`
	Retryable     bool            `gorm:"default:false" json:"retryable"` // the recorded failure was classified transient
	ResultSummary string          `gorm:"type:text" json:"result_summary"`
	LockLost      bool            `gorm:"default:false" json:"lock_lost"` // heartbeat lost the lock mid-run; result unreliable
	CreatedAt     time.Time       `gorm:"index" json:"created_at"`
	UpdatedAt     time.Time       `json:"updated_at"`
}

func (TaskExecution) TableName() string { return "task_executions" }
