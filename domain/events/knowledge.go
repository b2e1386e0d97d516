package events

import (
	"time"

	"graphsync/domain/core/valueobjects"
)

// KindKnowledgeDiff marks events whose payload is an encoded diff chunk
const KindKnowledgeDiff = "knowledge.diff"

// DomainEvent is the base interface for all domain events
// Events represent something that has happened in the past
type DomainEvent interface {
	GetAggregateID() string
	GetEventType() string
	GetTimestamp() time.Time
	GetVersion() int
}

// KnowledgeEvent is one immutable event published by an author. Knowledge
// diff events carry one wire-encoded chunk in Payload. Timestamp is the
// transport's timestamp, which orders one author's events.
type KnowledgeEvent struct {
	ID        string                `json:"id"`
	Author    valueobjects.AuthorID `json:"author"`
	Kind      string                `json:"kind"`
	Timestamp time.Time             `json:"timestamp"`
	Payload   string                `json:"payload"`
}

// NewKnowledgeDiffEvent creates an event carrying one encoded diff chunk
func NewKnowledgeDiffEvent(id string, author valueobjects.AuthorID, payload []byte, timestamp time.Time) KnowledgeEvent {
	return KnowledgeEvent{
		ID:        id,
		Author:    author,
		Kind:      KindKnowledgeDiff,
		Timestamp: timestamp.UTC(),
		Payload:   string(payload),
	}
}

var _ DomainEvent = KnowledgeEvent{}

func (e KnowledgeEvent) GetAggregateID() string  { return e.Author.String() }
func (e KnowledgeEvent) GetEventType() string    { return e.Kind }
func (e KnowledgeEvent) GetTimestamp() time.Time { return e.Timestamp }
func (e KnowledgeEvent) GetVersion() int         { return 1 }

// IsKnowledgeDiff reports whether the event carries a diff chunk
func (e KnowledgeEvent) IsKnowledgeDiff() bool {
	return e.Kind == KindKnowledgeDiff
}
