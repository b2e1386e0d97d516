package versioning

import (
	"graphsync/domain/core/aggregates"
	"graphsync/domain/core/entities"
	"graphsync/domain/core/valueobjects"
)

// Clone wraps another author's repository as read-only remote branches of
// a repository that has no local branches.
func Clone(remote aggregates.Repository, remoteAuthor valueobjects.AuthorID) aggregates.Repository {
	return FetchRemote(aggregates.EmptyRepository(remote.ID), remote, remoteAuthor, "")
}

// FetchRemote adds the commits and objects of remote to repo and replaces
// the tracked branch set of remoteAuthor with remote's local branches.
// Origins inside the incoming branches are rewritten from remoteAuthor's
// point of view to localAuthor's. Nothing is ever removed from the store.
func FetchRemote(repo, remote aggregates.Repository, remoteAuthor, localAuthor valueobjects.AuthorID) aggregates.Repository {
	out := repo
	out.ContentStore = repo.ContentStore.Union(remote.Commits, remote.Objects)

	branches := make(map[string]entities.Branch, len(remote.Branches))
	for name, b := range remote.Branches {
		tracked := entities.Branch{Head: b.Head}
		if b.Staged != nil {
			tracked = tracked.WithStaged(*b.Staged)
		}
		if b.Origin != nil {
			origin := b.Origin.Relative(remoteAuthor, localAuthor)
			tracked.Origin = &origin
		}
		branches[name] = tracked
	}
	return out.SetRemote(remoteAuthor, branches)
}

// Pull fetches remote and then advances every local branch that tracks a
// branch of remoteAuthor, when the new remote head descends from the local
// head. Diverged remote branches stay visible in Remotes only. Staged edits
// on a fast-forwarded branch are kept.
func Pull(repo, remote aggregates.Repository, remoteAuthor, localAuthor valueobjects.AuthorID) aggregates.Repository {
	out := FetchRemote(repo, remote, remoteAuthor, localAuthor)
	tracked := out.Remotes[remoteAuthor]

	for _, name := range out.LocalBranchNames() {
		b := out.Branches[name]
		if b.Origin == nil || !b.HasCommits() {
			continue
		}
		author, isRemote := b.Origin.Origin()
		if !isRemote || author != remoteAuthor {
			continue
		}
		rb, ok := tracked[b.Origin.Name()]
		if !ok || !rb.HasCommits() || rb.Head == b.Head {
			continue
		}
		if IsFastForward(out, b.Head, rb.Head) {
			b.Head = rb.Head
			out = out.SetBranch(name, b)
		}
	}
	return out
}

// MergeKnowledgeData assembles the local view: the local author's snapshot
// with every other author's repositories pulled in as remote branches.
// Authors are folded in sorted order. Views and the active workspace are
// always the local author's.
func MergeKnowledgeData(perAuthor map[valueobjects.AuthorID]aggregates.KnowledgeData, localAuthor valueobjects.AuthorID) aggregates.KnowledgeData {
	result := aggregates.NewKnowledgeData()
	if own, ok := perAuthor[localAuthor]; ok {
		result.ActiveWorkspace = own.ActiveWorkspace
		for k, v := range own.Views {
			result.Views[k] = v
		}
		for id, r := range own.Repositories {
			result.Repositories[id] = r
		}
	}

	for _, author := range sortedAuthors(perAuthor) {
		if author == localAuthor {
			continue
		}
		for id, remote := range perAuthor[author].Repositories {
			existing, ok := result.Repositories[id]
			if !ok {
				existing = aggregates.EmptyRepository(id)
			}
			result.Repositories[id] = Pull(existing, remote, author, localAuthor)
		}
	}
	return result
}
