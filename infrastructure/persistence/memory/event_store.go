package memory

import (
	"context"
	"sync"

	"graphsync/application/ports"
	"graphsync/domain/core/valueobjects"
	"graphsync/domain/events"
)

// InMemoryEventStore provides an in-memory implementation of EventStore
// Events are kept in append order; an id is stored once
type InMemoryEventStore struct {
	mu      sync.RWMutex
	events  []events.KnowledgeEvent
	ids     map[string]struct{}
	pending map[string]struct{}
}

var _ ports.EventStore = (*InMemoryEventStore)(nil)

// NewInMemoryEventStore creates a new in-memory event store
func NewInMemoryEventStore() *InMemoryEventStore {
	return &InMemoryEventStore{
		ids:     make(map[string]struct{}),
		pending: make(map[string]struct{}),
	}
}

// Append stores events not seen before and marks them pending
func (s *InMemoryEventStore) Append(ctx context.Context, evts []events.KnowledgeEvent) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, e := range evts {
		if _, exists := s.ids[e.ID]; exists {
			continue
		}
		s.ids[e.ID] = struct{}{}
		s.pending[e.ID] = struct{}{}
		s.events = append(s.events, e)
	}
	return nil
}

// ListByAuthors returns every event of the given authors in append order
func (s *InMemoryEventStore) ListByAuthors(ctx context.Context, authors []valueobjects.AuthorID) ([]events.KnowledgeEvent, error) {
	wanted := make(map[valueobjects.AuthorID]struct{}, len(authors))
	for _, a := range authors {
		wanted[a] = struct{}{}
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	var out []events.KnowledgeEvent
	for _, e := range s.events {
		if _, ok := wanted[e.Author]; ok {
			out = append(out, e)
		}
	}
	return out, nil
}

// ListPending returns up to limit pending events in append order; a
// non-positive limit returns all of them
func (s *InMemoryEventStore) ListPending(ctx context.Context, limit int) ([]events.KnowledgeEvent, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var out []events.KnowledgeEvent
	for _, e := range s.events {
		if limit > 0 && len(out) == limit {
			break
		}
		if _, ok := s.pending[e.ID]; ok {
			out = append(out, e)
		}
	}
	return out, nil
}

// MarkPublished removes events from the pending set
func (s *InMemoryEventStore) MarkPublished(ctx context.Context, evts []events.KnowledgeEvent) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, e := range evts {
		delete(s.pending, e.ID)
	}
	return nil
}

// Len returns the number of stored events
func (s *InMemoryEventStore) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.events)
}
