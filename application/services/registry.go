package services

import (
	"sort"
	"sync"

	"graphsync/domain/core/valueobjects"
)

// Registry hands out one KnowledgeService per author, created on first use
type Registry struct {
	deps Dependencies

	mu       sync.RWMutex
	services map[valueobjects.AuthorID]*KnowledgeService
}

// NewRegistry creates an empty registry
func NewRegistry(deps Dependencies) *Registry {
	return &Registry{
		deps:     deps,
		services: make(map[valueobjects.AuthorID]*KnowledgeService),
	}
}

// Get returns the workspace of author
func (r *Registry) Get(author valueobjects.AuthorID) *KnowledgeService {
	r.mu.RLock()
	svc, ok := r.services[author]
	r.mu.RUnlock()
	if ok {
		return svc
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	if svc, ok := r.services[author]; ok {
		return svc
	}
	svc = NewKnowledgeService(author, r.deps)
	r.services[author] = svc
	return svc
}

// All returns every workspace created so far, ordered by author
func (r *Registry) All() []*KnowledgeService {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]*KnowledgeService, 0, len(r.services))
	for _, svc := range r.services {
		out = append(out, svc)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].author < out[j].author })
	return out
}
