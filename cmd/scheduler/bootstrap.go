package main

import (
	"context"
	"time"

	"callvista/backend/internal/config"
	"callvista/backend/internal/lock"
	"callvista/backend/internal/logctx"
	"callvista/backend/internal/models"
	"callvista/backend/internal/queue"
	"callvista/backend/internal/runner"
	"callvista/backend/internal/scheduler"
	"callvista/backend/internal/services"
	"callvista/backend/internal/tracker"
	"callvista/backend/pkg/logger"
	"github.com/redis/go-redis/v9"
	"gorm.io/gorm"
)

// app holds the wired components of a running scheduler process.
type app struct {
	db          *gorm.DB
	redisClient *redis.Client
	hub         *logctx.Hub
	registry    *runner.Registry
	queue       queue.Queue
	worker      *queue.Worker
	loop        *scheduler.Loop
}

// bootstrap wires database, lock, tracking, queue, and the loop. It does not
// start anything; main decides when the loop begins firing.
func bootstrap(cfg *config.Config) *app {
	db, err := models.InitDB(&cfg.Database)
	if err != nil {
		logger.Fatalf("Failed to connect to database: %v", err)
	}
	if err := models.AutoMigrate(db); err != nil {
		logger.Fatalf("Failed to migrate database: %v", err)
	}
	if err := models.SeedDefaultData(db); err != nil {
		logger.Warn().Err(err).Msg("Failed to seed default data")
	}

	a := &app{db: db}

	// The lock store follows Redis availability: Redis gives cheap TTL
	// semantics, the lock table covers single-store deployments.
	var locker lock.Locker
	if cfg.Redis.Enabled {
		client := redis.NewClient(&redis.Options{
			Addr:     cfg.Redis.Addr,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		})
		pingCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		err := client.Ping(pingCtx).Err()
		cancel()
		if err != nil {
			logger.Warnf("[Bootstrap] Redis unreachable, using database locks: %v", err)
			client.Close()
		} else {
			a.redisClient = client
			locker = lock.NewRedisLocker(client, "")
			logger.Infof("[Bootstrap] Redis lock store at %s", cfg.Redis.Addr)
		}
	}
	if locker == nil {
		locker = lock.NewDBLocker(db)
		logger.Infof("[Bootstrap] database lock store")
	}

	a.hub = logctx.NewHub()
	logStore := logctx.NewStore(db)
	trk := tracker.New(db, cfg.Log.MaxErrorLen)

	a.registry = runner.NewRegistry()
	staleAfter := time.Duration(cfg.Scheduler.StaleExecutionMinutes) * time.Minute
	maintenance := services.NewMaintenance(trk, logStore, services.NewSettingsService(db), staleAfter)
	if err := maintenance.Register(a.registry); err != nil {
		logger.Fatalf("Failed to register built-in tasks: %v", err)
	}

	run := runner.New(a.registry, locker, trk, a.hub, logStore, runner.Options{
		LockTTL:           time.Duration(cfg.Scheduler.LockTTLSeconds) * time.Second,
		HeartbeatInterval: time.Duration(cfg.Scheduler.HeartbeatIntervalSeconds) * time.Second,
		TaskTimeout:       time.Duration(cfg.Scheduler.TaskTimeoutSeconds) * time.Second,
		MaxRetries:        cfg.Scheduler.MaxRetries,
		RetryBackoff:      time.Duration(cfg.Scheduler.RetryBackoffSeconds) * time.Second,
	})
	processor := func(ctx context.Context, inv *queue.Invocation) error {
		return run.Run(ctx, inv.TaskName, inv.InvocationID, inv.ScheduledAt)
	}

	a.queue = queue.NewQueue(&cfg.Redis)
	if syncQueue, ok := a.queue.(*queue.SyncQueue); ok {
		syncQueue.SetProcessor(processor)
	}
	if a.queue.IsAsync() {
		a.worker = queue.NewWorker(&cfg.Redis, processor)
		if a.worker != nil {
			a.worker.Start()
		}
	}

	resync := time.Duration(cfg.Scheduler.ResyncIntervalSeconds) * time.Second
	a.loop = scheduler.New(db, a.queue, services.NewWorkdayCalendar(), resync)
	return a
}

// shutdown stops firing first, then drains the worker, then closes stores.
func (a *app) shutdown() {
	a.loop.Stop()
	if a.worker != nil {
		a.worker.Stop()
	}
	if a.queue != nil {
		a.queue.Close()
	}
	if a.redisClient != nil {
		a.redisClient.Close()
	}
	logger.Info().Msg("Scheduler stopped")
}
