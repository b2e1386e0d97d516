package aggregates

import (
	"fmt"
	"sort"
	"time"

	"graphsync/domain/core/entities"
	"graphsync/domain/core/valueobjects"
	pkgerrors "graphsync/pkg/errors"
)

// Repository holds the full history of a single knowledge node: its local
// branches, read-only branches fetched from other authors, and the content
// store every branch head resolves into.
//
// Repository is a value. Operations return a new Repository and clone only
// the maps they touch, so older values remain valid snapshots.
type Repository struct {
	ID valueobjects.ID
	ContentStore
	Branches map[string]entities.Branch
	Remotes  map[valueobjects.AuthorID]map[string]entities.Branch
}

// NewRepository creates a repository with one staged, uncommitted branch
// named main. An empty id is replaced with a generated one.
func NewRepository(node entities.Node, id valueobjects.ID, origin *valueobjects.BranchPath) Repository {
	if id.IsZero() {
		id = valueobjects.NewID()
	}
	return Repository{
		ID:           id,
		ContentStore: NewContentStore(),
		Branches: map[string]entities.Branch{
			valueobjects.DefaultBranchName: entities.NewStagedBranch(node, origin),
		},
		Remotes: make(map[valueobjects.AuthorID]map[string]entities.Branch),
	}
}

// EmptyRepository creates a repository without any branch, the starting
// point for cloning another author's copy.
func EmptyRepository(id valueobjects.ID) Repository {
	return Repository{
		ID:           id,
		ContentStore: NewContentStore(),
		Branches:     make(map[string]entities.Branch),
		Remotes:      make(map[valueobjects.AuthorID]map[string]entities.Branch),
	}
}

// Stage replaces the staged content of a local branch
func (r Repository) Stage(node entities.Node, branchName string) (Repository, error) {
	b, ok := r.Branches[branchName]
	if !ok {
		return r, pkgerrors.NewInvalidOperationError(fmt.Sprintf("cannot stage onto unknown branch %q", branchName))
	}
	return r.SetBranch(branchName, b.WithStaged(node)), nil
}

// CommitAll commits every branch that carries staged content. The parent of
// the new commit is the previous head, if any.
func (r Repository) CommitAll(at time.Time) Repository {
	var staged []string
	for name, b := range r.Branches {
		if b.HasStaged() {
			staged = append(staged, name)
		}
	}
	if len(staged) == 0 {
		return r
	}
	sort.Strings(staged)

	out := r
	out.Branches = cloneMap(r.Branches)
	for _, name := range staged {
		b := out.Branches[name]
		var parents []valueobjects.Hash
		if b.HasCommits() {
			parents = []valueobjects.Hash{b.Head}
		}
		node := *b.Staged
		hash := node.CommitHash(parents)
		out.ContentStore = out.ContentStore.Put(entities.NewCommit(hash, parents, at), node)

		b.Head = hash
		b.Staged = nil
		out.Branches[name] = b
	}
	return out
}

// Branch looks up a local or remote branch
func (r Repository) Branch(path valueobjects.BranchPath) (entities.Branch, bool) {
	if path.IsLocal() {
		b, ok := r.Branches[path.Name()]
		return b, ok
	}
	author, _ := path.Origin()
	b, ok := r.Remotes[author][path.Name()]
	return b, ok
}

// Head returns the committed head of a branch, false when the branch is
// missing or has never been committed.
func (r Repository) Head(path valueobjects.BranchPath) (valueobjects.Hash, bool) {
	b, ok := r.Branch(path)
	if !ok || !b.HasCommits() {
		return "", false
	}
	return b.Head, true
}

// Resolve returns the current node of a branch, preferring staged content
func (r Repository) Resolve(path valueobjects.BranchPath) (entities.Node, error) {
	b, ok := r.Branch(path)
	if !ok {
		return entities.Node{}, pkgerrors.NewNotFoundError(fmt.Sprintf("branch %s of %s", path, r.ID))
	}
	if b.HasStaged() {
		return b.Staged.Clone(), nil
	}
	if !b.HasCommits() {
		return entities.Node{}, pkgerrors.NewNotFoundError(fmt.Sprintf("head of branch %s of %s", path, r.ID))
	}
	return r.ResolveHash(b.Head)
}

// ResolveHash returns the node committed under hash
func (r Repository) ResolveHash(hash valueobjects.Hash) (entities.Node, error) {
	if _, ok := r.Commit(hash); !ok {
		return entities.Node{}, pkgerrors.NewNotFoundError(fmt.Sprintf("commit %s of %s", hash, r.ID))
	}
	n, ok := r.Object(hash)
	if !ok {
		return entities.Node{}, pkgerrors.NewNotFoundError(fmt.Sprintf("object %s of %s", hash, r.ID))
	}
	return n.Clone(), nil
}

// DefaultBranch picks the branch shown when no branch is selected: local
// main, then the first local branch by name, then a remote main, then the
// first remote branch. Authors are visited in sorted order.
func (r Repository) DefaultBranch() (valueobjects.BranchPath, bool) {
	if _, ok := r.Branches[valueobjects.DefaultBranchName]; ok {
		return valueobjects.LocalBranch(valueobjects.DefaultBranchName), true
	}
	if names := r.LocalBranchNames(); len(names) > 0 {
		return valueobjects.LocalBranch(names[0]), true
	}

	authors := r.RemoteAuthors()
	for _, a := range authors {
		if _, ok := r.Remotes[a][valueobjects.DefaultBranchName]; ok {
			return valueobjects.RemoteBranch(a, valueobjects.DefaultBranchName), true
		}
	}
	for _, a := range authors {
		if names := sortedKeys(r.Remotes[a]); len(names) > 0 {
			return valueobjects.RemoteBranch(a, names[0]), true
		}
	}
	return valueobjects.BranchPath{}, false
}

// LocalBranchNames returns local branch names in sorted order
func (r Repository) LocalBranchNames() []string {
	return sortedKeys(r.Branches)
}

// RemoteAuthors returns the authors with tracked branches in sorted order
func (r Repository) RemoteAuthors() []valueobjects.AuthorID {
	out := make([]valueobjects.AuthorID, 0, len(r.Remotes))
	for a := range r.Remotes {
		out = append(out, a)
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}

// SetBranch creates or replaces a local branch
func (r Repository) SetBranch(name string, b entities.Branch) Repository {
	out := r
	out.Branches = cloneMap(r.Branches)
	out.Branches[name] = b
	return out
}

// RemoveBranch deletes a local branch; unknown names are ignored
func (r Repository) RemoveBranch(name string) Repository {
	if _, ok := r.Branches[name]; !ok {
		return r
	}
	out := r
	out.Branches = cloneMap(r.Branches)
	delete(out.Branches, name)
	return out
}

// RenameBranch moves a local branch to a new name
func (r Repository) RenameBranch(from, to string) (Repository, error) {
	b, ok := r.Branches[from]
	if !ok {
		return r, pkgerrors.NewInvalidOperationError(fmt.Sprintf("cannot rename unknown branch %q", from))
	}
	if from == to {
		return r, nil
	}
	if !valueobjects.ValidBranchName(to) {
		return r, pkgerrors.NewInvalidOperationError(fmt.Sprintf("invalid branch name %q", to))
	}
	if _, exists := r.Branches[to]; exists {
		return r, pkgerrors.NewInvalidOperationError(fmt.Sprintf("branch %q already exists", to))
	}
	out := r.RemoveBranch(from)
	out.Branches[to] = b
	return out, nil
}

// SetRemote replaces the tracked branch set of an author
func (r Repository) SetRemote(author valueobjects.AuthorID, branches map[string]entities.Branch) Repository {
	out := r
	out.Remotes = cloneMap(r.Remotes)
	out.Remotes[author] = branches
	return out
}

// WithoutRemotes drops every tracked remote branch, leaving what the local
// author owns and publishes.
func (r Repository) WithoutRemotes() Repository {
	if len(r.Remotes) == 0 {
		return r
	}
	out := r
	out.Remotes = make(map[valueobjects.AuthorID]map[string]entities.Branch)
	return out
}

// Equal compares repositories structurally
func (r Repository) Equal(other Repository) bool {
	if r.ID != other.ID {
		return false
	}
	if !equalMaps(r.Commits, other.Commits, entities.Commit.Equal) {
		return false
	}
	if !equalMaps(r.Objects, other.Objects, entities.Node.Equal) {
		return false
	}
	if !equalMaps(r.Branches, other.Branches, entities.Branch.Equal) {
		return false
	}
	return equalMaps(r.Remotes, other.Remotes, func(a, b map[string]entities.Branch) bool {
		return equalMaps(a, b, entities.Branch.Equal)
	})
}

func sortedKeys[V any](m map[string]V) []string {
	out := make([]string, 0, len(m))
	for k := range m {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}

func equalMaps[K comparable, V any](a, b map[K]V, eq func(V, V) bool) bool {
	if len(a) != len(b) {
		return false
	}
	for k, va := range a {
		vb, ok := b[k]
		if !ok || !eq(va, vb) {
			return false
		}
	}
	return true
}
