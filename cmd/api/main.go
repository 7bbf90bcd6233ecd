package main

import (
	"context"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/jwebster45206/turn-engine/internal/app"
	"github.com/jwebster45206/turn-engine/internal/config"
	"github.com/jwebster45206/turn-engine/internal/handlers"
	"github.com/jwebster45206/turn-engine/internal/logger"
	"github.com/jwebster45206/turn-engine/internal/middleware"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatal(err)
	}

	log := logger.Setup(cfg)

	log.Info("Starting Turn Engine API",
		"port", cfg.Port,
		"environment", cfg.Environment,
		"store_backend", cfg.StoreBackend,
		"llm_provider", cfg.LLMProvider,
		"model_name", cfg.ModelName)

	startCtx, startCancel := context.WithTimeout(context.Background(), 3*time.Minute)
	engine, err := app.New(startCtx, cfg, log)
	startCancel()
	if err != nil {
		log.Error("Failed to start engine", "error", err)
		os.Exit(1)
	}

	deps := handlers.Deps{
		Logger:   log,
		Store:    engine.Store,
		Turns:    engine.Pipeline,
		Catalog:  engine.Catalog,
		Health:   map[string]handlers.Pinger{"store": engine.Store},
		Narrator: engine.Narrator.Name(),
	}
	if p, ok := engine.Narrator.(handlers.Pinger); ok {
		deps.Health["model"] = p
	}
	if engine.Queue != nil {
		deps.Queue = engine.Queue
		deps.Events = engine.Events
	}
	if engine.Metrics != nil {
		deps.Metrics = engine.Metrics.Handler()
	}

	server := &http.Server{
		Addr:        ":" + cfg.Port,
		Handler:     middleware.Logger(log)(handlers.Routes(deps)),
		ReadTimeout: 15 * time.Second,
		// No WriteTimeout: turns and event relays stream for as long as they need.
		IdleTimeout: 60 * time.Second,
	}

	go func() {
		log.Info("Server starting", "addr", server.Addr)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Error("Server failed to start", "error", err)
			os.Exit(1)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info("Server is shutting down...")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer shutdownCancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Error("Server forced to shutdown", "error", err)
	}
	if err := engine.Close(shutdownCtx); err != nil {
		log.Error("Error closing engine", "error", err)
	}

	log.Info("Server exited")
}
