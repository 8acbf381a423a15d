package models

import "time"

// TaskLog is one line of output emitted during a task execution, tagged with
// the execution that produced it. The live-log viewer reads this table (or the
// in-process hub) filtered by execution id.
type TaskLog struct {
	ID          uint      `gorm:"primaryKey" json:"id"`
	ExecutionID uint      `gorm:"index;not null" json:"execution_id"`
	TaskName    string    `gorm:"size:200;index" json:"task_name"`
	Level       string    `gorm:"size:20" json:"level"`
	Message     string    `gorm:"type:text" json:"message"`
	CreatedAt   time.Time `gorm:"index" json:"created_at"`
}

func (TaskLog) TableName() string { return "task_logs" }
