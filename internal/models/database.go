package models

import (
	"fmt"

	"callvista/backend/internal/config"
	"gorm.io/driver/mysql"
	"gorm.io/driver/postgres"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

// InitDB opens the configured database and returns the handle. The handle is
// constructed once at startup and threaded through every service explicitly.
func InitDB(cfg *config.DatabaseConfig) (*gorm.DB, error) {
	var dialector gorm.Dialector

	switch cfg.Driver {
	case "sqlite":
		dialector = sqlite.Open(cfg.DSN)
	case "mysql":
		dialector = mysql.Open(cfg.DSN)
	case "postgres":
		dialector = postgres.Open(cfg.DSN)
	default:
		return nil, fmt.Errorf("unsupported database driver: %s", cfg.Driver)
	}

	gormConfig := &gorm.Config{
		Logger: logger.Default.LogMode(logger.Warn),
	}

	db, err := gorm.Open(dialector, gormConfig)
	if err != nil {
		return nil, fmt.Errorf("failed to connect database: %w", err)
	}

	return db, nil
}

func AutoMigrate(db *gorm.DB) error {
	return db.AutoMigrate(
		&ScheduledTask{},
		&TaskExecution{},
		&SchedulerLock{},
		&TaskLog{},
		&SystemConfig{},
	)
}

// SeedDefaultData creates the built-in system schedules and default settings
// if they do not exist yet. Existing rows are never overwritten, so operator
// edits survive restarts.
func SeedDefaultData(db *gorm.DB) error {
	sweepInterval := int64(600)
	systemTasks := []ScheduledTask{
		{
			Name:           "task_log_cleanup",
			Kind:           TaskKindCron,
			CronExpression: "0 3 * * *",
			Enabled:        true,
			IsSystem:       true,
		},
		{
			Name:            "stale_execution_sweep",
			Kind:            TaskKindInterval,
			IntervalSeconds: &sweepInterval,
			Enabled:         true,
			IsSystem:        true,
		},
	}

	for _, task := range systemTasks {
		var count int64
		db.Model(&ScheduledTask{}).Where("name = ?", task.Name).Count(&count)
		if count == 0 {
			if err := db.Create(&task).Error; err != nil {
				return err
			}
		}
	}

	defaultConfigs := []SystemConfig{
		{Key: "task_log_retention_days", Value: "30", Type: "int", Label: "Task Log Retention Days"},
		{Key: "execution_retention_days", Value: "90", Type: "int", Label: "Execution Record Retention Days"},
	}

	for _, cfg := range defaultConfigs {
		var count int64
		db.Model(&SystemConfig{}).Where("key = ?", cfg.Key).Count(&count)
		if count == 0 {
			if err := db.Create(&cfg).Error; err != nil {
				return err
			}
		}
	}

	return nil
}
