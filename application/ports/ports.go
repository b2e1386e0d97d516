package ports

import (
	"context"
	"time"

	"graphsync/domain/core/aggregates"
	"graphsync/domain/core/valueobjects"
	"graphsync/domain/events"
)

// EventStore defines the interface for knowledge event persistence
// Appended events start out pending in the outbox until MarkPublished
type EventStore interface {
	// Append persists events; appending an event id twice is a no-op
	Append(ctx context.Context, events []events.KnowledgeEvent) error

	// ListByAuthors retrieves every knowledge event of the given authors
	ListByAuthors(ctx context.Context, authors []valueobjects.AuthorID) ([]events.KnowledgeEvent, error)

	// ListPending retrieves up to limit events not yet fanned out
	ListPending(ctx context.Context, limit int) ([]events.KnowledgeEvent, error)

	// MarkPublished removes events from the outbox
	MarkPublished(ctx context.Context, events []events.KnowledgeEvent) error
}

// EventPublisher defines the interface for fanning events out to subscribers
type EventPublisher interface {
	// Publish sends a single event
	Publish(ctx context.Context, event events.KnowledgeEvent) error

	// PublishBatch sends multiple events
	PublishBatch(ctx context.Context, events []events.KnowledgeEvent) error
}

// SnapshotState is everything a workspace keeps between restarts
type SnapshotState struct {
	Current   aggregates.KnowledgeData
	Published aggregates.KnowledgeData
	Contacts  []valueobjects.AuthorID
}

// SnapshotStore defines the interface for local snapshot persistence
type SnapshotStore interface {
	// Load returns the stored state; a NOT_FOUND AppError when none exists
	Load(ctx context.Context, author valueobjects.AuthorID) (SnapshotState, error)

	// Save replaces the stored state
	Save(ctx context.Context, author valueobjects.AuthorID, state SnapshotState) error
}

// Clock hands out event timestamps; successive calls never go backwards
// and never repeat
type Clock interface {
	Now() time.Time
}
