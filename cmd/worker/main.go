package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/jwebster45206/turn-engine/internal/app"
	"github.com/jwebster45206/turn-engine/internal/config"
	"github.com/jwebster45206/turn-engine/internal/logger"
	"github.com/jwebster45206/turn-engine/internal/worker"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatal(err)
	}

	log := logger.Setup(cfg)

	log.Info("Starting Turn Engine Worker",
		"environment", cfg.Environment,
		"store_backend", cfg.StoreBackend,
		"queue", cfg.WorkerQueue)

	startCtx, startCancel := context.WithTimeout(context.Background(), 3*time.Minute)
	engine, err := app.New(startCtx, cfg, log)
	startCancel()
	if err != nil {
		log.Error("Failed to start engine", "error", err)
		os.Exit(1)
	}
	if engine.Queue == nil {
		log.Error("The worker needs Redis for its queue", "redis_url", cfg.RedisURL)
		_ = engine.Close(context.Background())
		os.Exit(1)
	}

	w := worker.New(engine.Queue, engine.Pipeline, engine.Events, log, os.Getenv("WORKER_ID"))

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		if err := w.Start(); err != nil {
			log.Error("Worker error", "error", err)
			os.Exit(1)
		}
	}()

	log.Info("Worker started, waiting for requests...", "worker_id", w.ID())

	<-quit
	log.Info("Worker shutdown signal received")

	// Give the current turn time to finish.
	stopCtx, stopCancel := context.WithTimeout(context.Background(), 2*cfg.ModelTimeout)
	defer stopCancel()
	if err := w.Stop(stopCtx); err != nil {
		log.Error("Worker did not stop cleanly", "error", err)
	}
	if err := engine.Close(stopCtx); err != nil {
		log.Error("Error closing engine", "error", err)
	}

	log.Info("Worker exited")
}
