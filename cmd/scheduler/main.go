package main

import (
	"log"
	"os"
	"os/signal"
	"syscall"

	"callvista/backend/internal/config"
	"callvista/backend/pkg/logger"
)

func main() {
	cfg, err := config.Load(os.Getenv("CONFIG_PATH"))
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	logger.Init(cfg.Log.Level)

	a := bootstrap(cfg)
	a.loop.Start()
	logger.Info().
		Strs("tasks", a.registry.Names()).
		Bool("async", a.queue.IsAsync()).
		Msg("scheduler running")

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info().Msg("shutdown signal received")
	a.shutdown()
}
