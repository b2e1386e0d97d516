package main

import (
	"context"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"

	"graphsync/infrastructure/config"
	"graphsync/infrastructure/di"
	"graphsync/pkg/observability"
)

func main() {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	cfg, err := config.LoadConfig()
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}

	container, cleanup, err := di.InitializeContainer(ctx, cfg)
	if err != nil {
		log.Fatalf("Failed to initialize container: %v", err)
	}
	defer cleanup()
	logger := container.Logger

	var tracing *observability.TracerProvider
	if cfg.EnableTracing {
		tracing, err = observability.InitTracing("graphsync", cfg.Environment, cfg.OTLPEndpoint)
		if err != nil {
			logger.Warn("Tracing disabled", zap.Error(err))
		}
	}

	container.SyncWorker.Start(ctx)
	container.Outbox.Start(ctx)

	srv := &http.Server{
		Addr:         cfg.ServerAddress,
		Handler:      container.Router.Setup(),
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		logger.Info("Starting server",
			zap.String("address", cfg.ServerAddress),
			zap.String("environment", cfg.Environment),
			zap.String("store", cfg.StoreBackend),
		)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Fatal("Server failed to start", zap.Error(err))
		}
	}()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)
	<-sigChan

	logger.Info("Shutting down server...")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer shutdownCancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("Server shutdown error", zap.Error(err))
	}
	container.SyncWorker.Stop()
	container.Outbox.Stop()

	// Final pass so edits made since the last tick reach the event store
	if failed := container.SyncWorker.RunOnce(shutdownCtx); failed > 0 {
		logger.Warn("Final publish incomplete", zap.Int("failedWorkspaces", failed))
	}

	if err := tracing.Shutdown(shutdownCtx); err != nil {
		logger.Error("Tracing shutdown error", zap.Error(err))
	}
	_ = logger.Sync()
	log.Println("Server stopped")
}
