package aggregates

import (
	"graphsync/domain/core/valueobjects"
)

// ViewMetadata holds per-view display settings that travel with a
// snapshot. Branch selects which branch of the viewed repository is shown.
type ViewMetadata struct {
	DisplaySubjects bool
	Width           int
	Branch          *valueobjects.BranchPath
	Expanded        bool
}

// Equal compares views field by field
func (v ViewMetadata) Equal(other ViewMetadata) bool {
	if v.DisplaySubjects != other.DisplaySubjects || v.Width != other.Width || v.Expanded != other.Expanded {
		return false
	}
	if (v.Branch == nil) != (other.Branch == nil) {
		return false
	}
	return v.Branch == nil || *v.Branch == *other.Branch
}

// KnowledgeData is one author's complete snapshot
type KnowledgeData struct {
	Repositories    map[valueobjects.ID]Repository
	ActiveWorkspace valueobjects.ID
	Views           map[string]ViewMetadata
}

// NewKnowledgeData creates an empty snapshot
func NewKnowledgeData() KnowledgeData {
	return KnowledgeData{
		Repositories: make(map[valueobjects.ID]Repository),
		Views:        make(map[string]ViewMetadata),
	}
}

// Repository looks up a repository by id
func (k KnowledgeData) Repository(id valueobjects.ID) (Repository, bool) {
	r, ok := k.Repositories[id]
	return r, ok
}

// WithRepository returns a snapshot with repo added or replaced
func (k KnowledgeData) WithRepository(repo Repository) KnowledgeData {
	out := k
	out.Repositories = cloneMap(k.Repositories)
	out.Repositories[repo.ID] = repo
	return out
}

// WithoutRepository returns a snapshot with the repository removed
func (k KnowledgeData) WithoutRepository(id valueobjects.ID) KnowledgeData {
	if _, ok := k.Repositories[id]; !ok {
		return k
	}
	out := k
	out.Repositories = cloneMap(k.Repositories)
	delete(out.Repositories, id)
	return out
}

// WithView returns a snapshot with the view added or replaced
func (k KnowledgeData) WithView(key string, view ViewMetadata) KnowledgeData {
	out := k
	out.Views = cloneMap(k.Views)
	out.Views[key] = view
	return out
}

// WithoutView returns a snapshot with the view removed
func (k KnowledgeData) WithoutView(key string) KnowledgeData {
	if _, ok := k.Views[key]; !ok {
		return k
	}
	out := k
	out.Views = cloneMap(k.Views)
	delete(out.Views, key)
	return out
}

// WithoutRemotes strips tracked remote branches from every repository
func (k KnowledgeData) WithoutRemotes() KnowledgeData {
	out := k
	out.Repositories = make(map[valueobjects.ID]Repository, len(k.Repositories))
	for id, r := range k.Repositories {
		out.Repositories[id] = r.WithoutRemotes()
	}
	return out
}

// Equal compares snapshots structurally
func (k KnowledgeData) Equal(other KnowledgeData) bool {
	if k.ActiveWorkspace != other.ActiveWorkspace {
		return false
	}
	if !equalMaps(k.Views, other.Views, ViewMetadata.Equal) {
		return false
	}
	return equalMaps(k.Repositories, other.Repositories, Repository.Equal)
}
