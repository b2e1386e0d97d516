package memory

import (
	"context"
	"fmt"
	"sync"

	"graphsync/application/ports"
	"graphsync/domain/core/valueobjects"
	pkgerrors "graphsync/pkg/errors"
)

// InMemorySnapshotStore keeps workspace snapshots for the process lifetime
type InMemorySnapshotStore struct {
	mu     sync.RWMutex
	states map[valueobjects.AuthorID]ports.SnapshotState
}

var _ ports.SnapshotStore = (*InMemorySnapshotStore)(nil)

// NewInMemorySnapshotStore creates a new in-memory snapshot store
func NewInMemorySnapshotStore() *InMemorySnapshotStore {
	return &InMemorySnapshotStore{
		states: make(map[valueobjects.AuthorID]ports.SnapshotState),
	}
}

// Load returns the state saved for author
func (s *InMemorySnapshotStore) Load(ctx context.Context, author valueobjects.AuthorID) (ports.SnapshotState, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	state, ok := s.states[author]
	if !ok {
		return ports.SnapshotState{}, pkgerrors.NewNotFoundError(fmt.Sprintf("snapshot of %s", author))
	}
	state.Contacts = append([]valueobjects.AuthorID(nil), state.Contacts...)
	return state, nil
}

// Save replaces the state of author. Snapshots are immutable values, so
// only the contact slice needs copying.
func (s *InMemorySnapshotStore) Save(ctx context.Context, author valueobjects.AuthorID, state ports.SnapshotState) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	state.Contacts = append([]valueobjects.AuthorID(nil), state.Contacts...)
	s.states[author] = state
	return nil
}
