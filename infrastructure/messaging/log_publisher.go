package messaging

import (
	"context"

	"go.uber.org/zap"

	"graphsync/domain/events"
)

// LogPublisher is the fan-out used with the in-process store. Subscribers
// read the shared event store directly, so delivery only needs to be
// recorded.
type LogPublisher struct {
	logger *zap.Logger
}

// NewLogPublisher creates a publisher that logs every delivered event
func NewLogPublisher(logger *zap.Logger) *LogPublisher {
	return &LogPublisher{logger: logger}
}

// Publish logs a single event
func (p *LogPublisher) Publish(ctx context.Context, event events.KnowledgeEvent) error {
	return p.PublishBatch(ctx, []events.KnowledgeEvent{event})
}

// PublishBatch logs each event of the batch
func (p *LogPublisher) PublishBatch(_ context.Context, evts []events.KnowledgeEvent) error {
	for _, e := range evts {
		p.logger.Debug("Delivered knowledge event",
			zap.String("eventID", e.ID),
			zap.String("author", e.Author.String()),
			zap.Time("timestamp", e.Timestamp),
			zap.Int("payloadBytes", len(e.Payload)),
		)
	}
	return nil
}
