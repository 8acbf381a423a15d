package services

import (
	"context"
	"fmt"
	"time"

	"callvista/backend/internal/logctx"
	"callvista/backend/internal/runner"
	"callvista/backend/internal/tracker"
)

const (
	TaskLogCleanup      = "task_log_cleanup"
	StaleExecutionSweep = "stale_execution_sweep"

	keyTaskLogRetentionDays   = "task_log_retention_days"
	keyExecutionRetentionDays = "execution_retention_days"
)

// Maintenance owns the built-in system tasks. They run through the same
// registry, lock, and tracking path as user tasks, so their runs show up in
// task_executions like everything else.
type Maintenance struct {
	tracker    *tracker.Tracker
	logs       *logctx.Store
	settings   *SettingsService
	staleAfter time.Duration
}

func NewMaintenance(trk *tracker.Tracker, logs *logctx.Store, settings *SettingsService, staleAfter time.Duration) *Maintenance {
	return &Maintenance{
		tracker:    trk,
		logs:       logs,
		settings:   settings,
		staleAfter: staleAfter,
	}
}

// Register binds the built-in task bodies to their seeded schedule names.
func (m *Maintenance) Register(registry *runner.Registry) error {
	if err := registry.Register(TaskLogCleanup, m.cleanupLogs); err != nil {
		return err
	}
	return registry.Register(StaleExecutionSweep, m.sweepStale)
}

// cleanupLogs drops task log lines and terminal execution records older than
// their retention windows. Retention is read from system_configs on every run
// so changes apply without a restart.
func (m *Maintenance) cleanupLogs(ctx context.Context) (string, error) {
	log := logctx.From(ctx)

	logDays := m.settings.GetIntWithDefault(keyTaskLogRetentionDays, 30)
	execDays := m.settings.GetIntWithDefault(keyExecutionRetentionDays, 90)

	logsDeleted, err := m.logs.Cleanup(logDays)
	if err != nil {
		return "", fmt.Errorf("cleanup task logs: %w", err)
	}
	log.Info().Int64("deleted", logsDeleted).Int("retention_days", logDays).
		Msg("task logs cleaned up")

	execsDeleted, err := m.tracker.CleanupTerminal(execDays)
	if err != nil {
		return "", fmt.Errorf("cleanup execution records: %w", err)
	}
	log.Info().Int64("deleted", execsDeleted).Int("retention_days", execDays).
		Msg("execution records cleaned up")

	return fmt.Sprintf("deleted %d log lines, %d execution records", logsDeleted, execsDeleted), nil
}

// sweepStale fails RUNNING execution records whose worker died without a
// terminal signal.
func (m *Maintenance) sweepStale(ctx context.Context) (string, error) {
	log := logctx.From(ctx)

	swept, err := m.tracker.SweepStale(m.staleAfter)
	if err != nil {
		return "", fmt.Errorf("sweep stale executions: %w", err)
	}
	if swept > 0 {
		log.Warn().Int64("swept", swept).Dur("older_than", m.staleAfter).
			Msg("stale executions marked failed")
	}
	return fmt.Sprintf("swept %d stale executions", swept), nil
}
