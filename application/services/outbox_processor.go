package services

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"graphsync/application/ports"
	"graphsync/pkg/observability"
)

// OutboxProcessor handles the background fan-out of events that were
// stored but not yet delivered to subscribers
type OutboxProcessor struct {
	eventStore     ports.EventStore
	eventPublisher ports.EventPublisher
	metrics        *observability.Collector
	logger         *zap.Logger

	// Configuration
	batchSize          int
	processingInterval time.Duration

	// Control channels
	stopChan    chan struct{}
	stoppedChan chan struct{}
}

// NewOutboxProcessor creates a new outbox processor
func NewOutboxProcessor(
	eventStore ports.EventStore,
	eventPublisher ports.EventPublisher,
	metrics *observability.Collector,
	logger *zap.Logger,
) *OutboxProcessor {
	return &OutboxProcessor{
		eventStore:         eventStore,
		eventPublisher:     eventPublisher,
		metrics:            metrics,
		logger:             logger,
		batchSize:          50,
		processingInterval: 5 * time.Second,
		stopChan:           make(chan struct{}),
		stoppedChan:        make(chan struct{}),
	}
}

// Start begins the background processing of outbox events
func (op *OutboxProcessor) Start(ctx context.Context) {
	op.logger.Info("Starting outbox processor",
		zap.Int("batchSize", op.batchSize),
		zap.Duration("interval", op.processingInterval),
	)
	go op.processLoop(ctx)
}

// Stop gracefully stops the outbox processor
func (op *OutboxProcessor) Stop() {
	op.logger.Info("Stopping outbox processor")
	close(op.stopChan)
	<-op.stoppedChan
	op.logger.Info("Outbox processor stopped")
}

func (op *OutboxProcessor) processLoop(ctx context.Context) {
	defer close(op.stoppedChan)

	ticker := time.NewTicker(op.processingInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			op.logger.Info("Context cancelled, stopping outbox processor")
			return
		case <-op.stopChan:
			return
		case <-ticker.C:
			if _, err := op.ProcessBatch(ctx); err != nil {
				op.logger.Error("Error processing outbox batch", zap.Error(err))
			}
		}
	}
}

// ProcessBatch publishes one batch of pending events and marks the
// delivered ones. It returns how many events were published.
func (op *OutboxProcessor) ProcessBatch(ctx context.Context) (int, error) {
	pending, err := op.eventStore.ListPending(ctx, op.batchSize)
	if err != nil {
		return 0, fmt.Errorf("failed to get pending events: %w", err)
	}
	if len(pending) == 0 {
		op.metrics.RecordOutbox(0, 0)
		return 0, nil
	}

	op.logger.Debug("Processing outbox batch", zap.Int("eventCount", len(pending)))

	if err := op.eventPublisher.PublishBatch(ctx, pending); err != nil {
		op.metrics.RecordOutbox(0, len(pending))
		return 0, fmt.Errorf("failed to publish outbox batch: %w", err)
	}
	if err := op.eventStore.MarkPublished(ctx, pending); err != nil {
		return 0, fmt.Errorf("failed to mark events published: %w", err)
	}

	op.metrics.RecordOutbox(len(pending), 0)
	op.logger.Debug("Completed outbox batch processing", zap.Int("successCount", len(pending)))
	return len(pending), nil
}
