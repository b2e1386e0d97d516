package services

import (
	"context"
	"time"

	"go.uber.org/zap"
)

// SyncWorker periodically publishes and syncs every workspace in a registry
type SyncWorker struct {
	registry *Registry
	interval time.Duration
	logger   *zap.Logger

	// Control channels
	stopChan    chan struct{}
	stoppedChan chan struct{}
}

// NewSyncWorker creates a new sync worker
func NewSyncWorker(registry *Registry, interval time.Duration, logger *zap.Logger) *SyncWorker {
	if interval <= 0 {
		interval = 30 * time.Second
	}
	return &SyncWorker{
		registry:    registry,
		interval:    interval,
		logger:      logger,
		stopChan:    make(chan struct{}),
		stoppedChan: make(chan struct{}),
	}
}

// Start begins the background loop
func (w *SyncWorker) Start(ctx context.Context) {
	w.logger.Info("Starting sync worker", zap.Duration("interval", w.interval))
	go w.loop(ctx)
}

// Stop gracefully stops the worker and waits for the running pass
func (w *SyncWorker) Stop() {
	w.logger.Info("Stopping sync worker")
	close(w.stopChan)
	<-w.stoppedChan
	w.logger.Info("Sync worker stopped")
}

func (w *SyncWorker) loop(ctx context.Context) {
	defer close(w.stoppedChan)

	ticker := time.NewTicker(w.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			w.logger.Info("Context cancelled, stopping sync worker")
			return
		case <-w.stopChan:
			return
		case <-ticker.C:
			w.RunOnce(ctx)
		}
	}
}

// RunOnce publishes then syncs every registered workspace. A failed publish
// still lets the workspace sync; a failing workspace is logged and does not
// stop the others. It returns the number of workspaces with any failure.
func (w *SyncWorker) RunOnce(ctx context.Context) int {
	failed := 0
	for _, svc := range w.registry.All() {
		if ctx.Err() != nil {
			return failed
		}
		ok := true
		if _, err := svc.Publish(ctx); err != nil {
			w.logger.Error("Publish failed", zap.String("author", svc.Author().String()), zap.Error(err))
			ok = false
		}
		if err := svc.Sync(ctx); err != nil {
			w.logger.Error("Sync failed", zap.String("author", svc.Author().String()), zap.Error(err))
			ok = false
		}
		if !ok {
			failed++
		}
	}
	return failed
}
