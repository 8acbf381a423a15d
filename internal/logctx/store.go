package logctx

import (
	"time"

	"callvista/backend/internal/models"
	"gorm.io/gorm"
)

// Store persists log entries to the task_logs table so the viewer can read
// output for executions it was not subscribed to while they ran.
type Store struct {
	db *gorm.DB
}

func NewStore(db *gorm.DB) *Store {
	return &Store{db: db}
}

// Append writes one entry. Best-effort: a failed insert must never fail the
// task that produced the line, so errors are swallowed after recording.
func (s *Store) Append(entry Entry) {
	if s == nil || s.db == nil {
		return
	}
	s.db.Create(&models.TaskLog{
		ExecutionID: entry.ExecutionID,
		TaskName:    entry.TaskName,
		Level:       entry.Level,
		Message:     entry.Message,
		CreatedAt:   entry.Time,
	})
}

// ByExecution returns the stored lines for one execution in emit order.
func (s *Store) ByExecution(executionID uint) ([]models.TaskLog, error) {
	var logs []models.TaskLog
	err := s.db.Where("execution_id = ?", executionID).
		Order("id ASC").
		Find(&logs).Error
	return logs, err
}

// Cleanup deletes log lines older than the retention window and returns the
// number of deleted rows.
func (s *Store) Cleanup(retentionDays int) (int64, error) {
	if retentionDays <= 0 {
		return 0, nil
	}

	cutoff := time.Now().AddDate(0, 0, -retentionDays)
	res := s.db.Where("created_at < ?", cutoff).Delete(&models.TaskLog{})
	return res.RowsAffected, res.Error
}
