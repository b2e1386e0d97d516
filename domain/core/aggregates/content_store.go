package aggregates

import (
	"graphsync/domain/core/entities"
	"graphsync/domain/core/valueobjects"
)

// ContentStore maps content hashes to commits and to the node each commit
// points at. A node is stored under the hash of its commit. Entries are
// never rewritten or removed; every mutation returns a new store and the
// receiver stays valid.
type ContentStore struct {
	Commits map[valueobjects.Hash]entities.Commit
	Objects map[valueobjects.Hash]entities.Node
}

// NewContentStore creates an empty store
func NewContentStore() ContentStore {
	return ContentStore{
		Commits: make(map[valueobjects.Hash]entities.Commit),
		Objects: make(map[valueobjects.Hash]entities.Node),
	}
}

// Commit looks up a commit by hash
func (s ContentStore) Commit(h valueobjects.Hash) (entities.Commit, bool) {
	c, ok := s.Commits[h]
	return c, ok
}

// Object looks up the node stored under a commit hash
func (s ContentStore) Object(h valueobjects.Hash) (entities.Node, bool) {
	n, ok := s.Objects[h]
	return n, ok
}

// Has reports whether both the commit and its object are stored
func (s ContentStore) Has(h valueobjects.Hash) bool {
	_, c := s.Commits[h]
	_, o := s.Objects[h]
	return c && o
}

// Put stores a commit together with its node. Storing a hash that is
// already present returns the receiver unchanged.
func (s ContentStore) Put(commit entities.Commit, node entities.Node) ContentStore {
	if s.Has(commit.Hash) {
		return s
	}
	out := s.clone()
	if _, ok := out.Commits[commit.Hash]; !ok {
		out.Commits[commit.Hash] = commit
	}
	if _, ok := out.Objects[commit.Hash]; !ok {
		out.Objects[commit.Hash] = node.Clone()
	}
	return out
}

// Union adds every incoming commit and object that the receiver lacks.
// Existing entries win. The receiver's maps are shared when nothing is new.
func (s ContentStore) Union(commits map[valueobjects.Hash]entities.Commit, objects map[valueobjects.Hash]entities.Node) ContentStore {
	newCommits := missingKeys(s.Commits, commits)
	newObjects := missingKeys(s.Objects, objects)
	if len(newCommits) == 0 && len(newObjects) == 0 {
		return s
	}

	out := ContentStore{Commits: s.Commits, Objects: s.Objects}
	if len(newCommits) > 0 {
		out.Commits = cloneMap(s.Commits)
		for _, h := range newCommits {
			out.Commits[h] = commits[h]
		}
	}
	if len(newObjects) > 0 {
		out.Objects = cloneMap(s.Objects)
		for _, h := range newObjects {
			out.Objects[h] = objects[h].Clone()
		}
	}
	return out
}

// Len returns the number of stored commits
func (s ContentStore) Len() int {
	return len(s.Commits)
}

func (s ContentStore) clone() ContentStore {
	return ContentStore{Commits: cloneMap(s.Commits), Objects: cloneMap(s.Objects)}
}

func missingKeys[V any](have, incoming map[valueobjects.Hash]V) []valueobjects.Hash {
	var out []valueobjects.Hash
	for h := range incoming {
		if _, ok := have[h]; !ok {
			out = append(out, h)
		}
	}
	return out
}

func cloneMap[K comparable, V any](m map[K]V) map[K]V {
	out := make(map[K]V, len(m)+1)
	for k, v := range m {
		out[k] = v
	}
	return out
}
