// Package versioning implements history queries and merges over the
// commit graph of a single repository, plus synchronization of remote
// tracking branches between authors.
package versioning

import (
	"fmt"
	"sort"
	"strconv"
	"time"

	"graphsync/domain/core/aggregates"
	"graphsync/domain/core/entities"
	"graphsync/domain/core/valueobjects"
	pkgerrors "graphsync/pkg/errors"
)

// Divergence descriptions returned by DescribeDivergence
const (
	NoChanges      = "No Changes"
	VersionDiffers = "Version differs"
)

// AncestorDistance counts the parent edges from to back to from. The walk
// is depth-first over parents in sorted order and never revisits a commit,
// so malformed graphs with cycles terminate. It reports false when from is
// not an ancestor of to.
func AncestorDistance(repo aggregates.Repository, from, to valueobjects.Hash) (int, bool) {
	return ancestorDistance(repo, from, to, 0, make(map[valueobjects.Hash]struct{}))
}

func ancestorDistance(repo aggregates.Repository, from, current valueobjects.Hash, depth int, visited map[valueobjects.Hash]struct{}) (int, bool) {
	if current == from {
		return depth, true
	}
	if _, seen := visited[current]; seen {
		return 0, false
	}
	visited[current] = struct{}{}

	commit, ok := repo.Commit(current)
	if !ok {
		return 0, false
	}
	for _, parent := range commit.Parents {
		if d, found := ancestorDistance(repo, from, parent, depth+1, visited); found {
			return d, true
		}
	}
	return 0, false
}

// IsFastForward reports whether b descends from a, i.e. a branch at a can
// move to b without a merge commit.
func IsFastForward(repo aggregates.Repository, a, b valueobjects.Hash) bool {
	_, ok := AncestorDistance(repo, a, b)
	return ok
}

// DescribeHashDivergence describes how far b has moved relative to a
func DescribeHashDivergence(repo aggregates.Repository, a, b valueobjects.Hash) string {
	if a == b {
		return NoChanges
	}
	if d, ok := AncestorDistance(repo, a, b); ok {
		return fmt.Sprintf("%d changes ahead", d)
	}
	if d, ok := AncestorDistance(repo, b, a); ok {
		return fmt.Sprintf("%d changes behind", d)
	}
	return VersionDiffers
}

// DescribeDivergence describes branch b relative to branch a. Branches whose
// current content is identical report no changes even when their heads
// differ, which is the state right after accepting a diverged branch.
// Diverged branches are reported, never reconciled.
func DescribeDivergence(repo aggregates.Repository, a, b valueobjects.BranchPath) (string, error) {
	nodeA, err := repo.Resolve(a)
	if err != nil {
		return "", err
	}
	nodeB, err := repo.Resolve(b)
	if err != nil {
		return "", err
	}
	if nodeA.Equal(nodeB) {
		return NoChanges, nil
	}

	headA, okA := repo.Head(a)
	headB, okB := repo.Head(b)
	if !okA || !okB {
		return VersionDiffers, nil
	}
	return DescribeHashDivergence(repo, headA, headB), nil
}

// CheckoutRemoteBranch copies a remote branch into a new local branch that
// records path as its origin. The local name is the remote name, or the
// first free name-1, name-2, and so on.
func CheckoutRemoteBranch(repo aggregates.Repository, path valueobjects.BranchPath) (aggregates.Repository, valueobjects.BranchPath, error) {
	if path.IsLocal() {
		return repo, path, pkgerrors.NewInvalidOperationError(fmt.Sprintf("cannot check out local branch %s", path))
	}
	remote, ok := repo.Branch(path)
	if !ok {
		return repo, path, pkgerrors.NewNotFoundError(fmt.Sprintf("branch %s of %s", path, repo.ID))
	}

	name := freeBranchName(repo, path.Name())
	origin := path
	local := entities.Branch{Head: remote.Head, Origin: &origin}
	if remote.HasStaged() {
		local = local.WithStaged(*remote.Staged)
	}
	return repo.SetBranch(name, local), valueobjects.LocalBranch(name), nil
}

func freeBranchName(repo aggregates.Repository, name string) string {
	if _, taken := repo.Branches[name]; !taken {
		return name
	}
	for i := 1; ; i++ {
		candidate := name + "-" + strconv.Itoa(i)
		if _, taken := repo.Branches[candidate]; !taken {
			return candidate
		}
	}
}

// EnsureLocalTracking returns a local branch for path. Local paths are
// returned as they are. For a remote path an existing local branch at the
// same head without staged edits is reused, preferring one whose origin is
// path; otherwise the remote branch is checked out.
func EnsureLocalTracking(repo aggregates.Repository, path valueobjects.BranchPath) (aggregates.Repository, valueobjects.BranchPath, error) {
	out, local, _, err := ensureLocalTracking(repo, path)
	return out, local, err
}

func ensureLocalTracking(repo aggregates.Repository, path valueobjects.BranchPath) (aggregates.Repository, valueobjects.BranchPath, bool, error) {
	if path.IsLocal() {
		return repo, path, false, nil
	}
	remote, ok := repo.Branch(path)
	if !ok {
		return repo, path, false, pkgerrors.NewNotFoundError(fmt.Sprintf("branch %s of %s", path, repo.ID))
	}

	var fallback string
	for _, name := range repo.LocalBranchNames() {
		b := repo.Branches[name]
		if b.HasStaged() || !b.HasCommits() || b.Head != remote.Head {
			continue
		}
		if b.Origin != nil && *b.Origin == path {
			return repo, valueobjects.LocalBranch(name), false, nil
		}
		if fallback == "" {
			fallback = name
		}
	}
	if fallback != "" {
		return repo, valueobjects.LocalBranch(fallback), false, nil
	}

	out, local, err := CheckoutRemoteBranch(repo, path)
	return out, local, err == nil, err
}

// MergeIntoDefault accepts source into the repository's default branch and
// returns the branch that now carries the result.
//
// A default branch without commits simply takes over the source head. When
// one head descends from the other the default branch moves to the more
// advanced commit and takes over the source's staged edit, if any.
// Otherwise a merge commit with both heads as parents is created whose
// content is the source's current node, staged content included.
func MergeIntoDefault(repo aggregates.Repository, source valueobjects.BranchPath, at time.Time) (aggregates.Repository, valueobjects.BranchPath, error) {
	src, ok := repo.Branch(source)
	if !ok {
		return repo, source, pkgerrors.NewNotFoundError(fmt.Sprintf("branch %s of %s", source, repo.ID))
	}
	if !src.HasCommits() {
		return repo, source, pkgerrors.NewInvalidOperationError(fmt.Sprintf("cannot merge branch %s without commits", source))
	}

	def, ok := repo.DefaultBranch()
	if !ok || !def.IsLocal() {
		out, local, _, err := ensureLocalTracking(repo, source)
		return out, local, err
	}
	if def == source {
		return repo, def, nil
	}

	target := repo.Branches[def.Name()]
	if !target.HasCommits() {
		target.Head = src.Head
		target.Staged = src.Staged
		if !source.IsLocal() {
			origin := source
			target.Origin = &origin
		}
		return repo.SetBranch(def.Name(), target), def, nil
	}

	out, local, created, err := ensureLocalTracking(repo, source)
	if err != nil {
		return repo, source, err
	}
	out, err = mergeHeads(out, def.Name(), src, at)
	if err != nil {
		return repo, source, err
	}

	// Drop a tracking branch that was created only for this merge. One that
	// landed on the literal name main is kept.
	// TODO: review the main exception; a created tracking branch can only be
	// named main when the default branch is not, so it survives as a second
	// copy of the merged source.
	if created && local.Name() != valueobjects.DefaultBranchName {
		out = out.RemoveBranch(local.Name())
	}
	return out, def, nil
}

func mergeHeads(repo aggregates.Repository, target string, src entities.Branch, at time.Time) (aggregates.Repository, error) {
	b := repo.Branches[target]
	switch {
	case b.Head == src.Head, IsFastForward(repo, b.Head, src.Head):
		b.Head = src.Head
		b.Staged = src.Staged
		return repo.SetBranch(target, b), nil
	case IsFastForward(repo, src.Head, b.Head):
		if src.HasStaged() {
			b.Staged = src.Staged
			return repo.SetBranch(target, b), nil
		}
		return repo, nil
	}

	node := src.Staged
	if node == nil {
		committed, err := repo.ResolveHash(src.Head)
		if err != nil {
			return repo, err
		}
		node = &committed
	}
	parents := []valueobjects.Hash{b.Head, src.Head}
	hash := node.CommitHash(parents)

	out := repo
	out.ContentStore = repo.ContentStore.Put(entities.NewCommit(hash, parents, at), *node)
	b.Head = hash
	b.Staged = nil
	return out.SetBranch(target, b), nil
}

func sortedAuthors[V any](m map[valueobjects.AuthorID]V) []valueobjects.AuthorID {
	out := make([]valueobjects.AuthorID, 0, len(m))
	for a := range m {
		out = append(out, a)
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}
