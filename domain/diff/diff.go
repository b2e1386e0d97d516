// Package diff computes and applies structural differences between two
// knowledge snapshots.
//
// Inside a Diff a nil map means "unchanged" and a key mapped to a nil
// pointer is a tombstone meaning "deleted".
package diff

import (
	"sort"

	"graphsync/domain/core/aggregates"
	"graphsync/domain/core/entities"
	"graphsync/domain/core/valueobjects"
)

// Diff is the difference between two snapshots of one author
type Diff struct {
	Repositories    map[valueobjects.ID]*RepositoryDiff
	ActiveWorkspace *valueobjects.ID
	Views           map[string]*aggregates.ViewMetadata
}

// RepositoryDiff carries new history of one repository and its changed
// local branches. Remote tracking branches are derived state and never
// travel in a diff.
type RepositoryDiff struct {
	Commits  map[valueobjects.Hash]entities.Commit
	Objects  map[valueobjects.Hash]entities.Node
	Branches map[string]*entities.Branch
}

// IsEmpty reports whether the diff is the canonical no-op
func (d Diff) IsEmpty() bool {
	return d.Repositories == nil && d.ActiveWorkspace == nil && d.Views == nil
}

// RepositoryIDs returns the ids of all repository entries in sorted order
func (d Diff) RepositoryIDs() []valueobjects.ID {
	ids := make([]valueobjects.ID, 0, len(d.Repositories))
	for id := range d.Repositories {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	return ids
}

func (rd *RepositoryDiff) isEmpty() bool {
	return len(rd.Commits) == 0 && len(rd.Objects) == 0 && len(rd.Branches) == 0
}

// Compare computes the diff that turns base into updated. Repositories only
// in updated are sent in full, repositories only in base are tombstoned and
// shared ones carry new commits and objects plus changed branches.
func Compare(base, updated aggregates.KnowledgeData) Diff {
	var d Diff

	repos := make(map[valueobjects.ID]*RepositoryDiff)
	for id, repo := range updated.Repositories {
		old, ok := base.Repositories[id]
		if !ok {
			repos[id] = fullRepositoryDiff(repo)
			continue
		}
		if rd := compareRepository(old, repo); !rd.isEmpty() {
			repos[id] = rd
		}
	}
	for id := range base.Repositories {
		if _, ok := updated.Repositories[id]; !ok {
			repos[id] = nil
		}
	}
	if len(repos) > 0 {
		d.Repositories = repos
	}

	if base.ActiveWorkspace != updated.ActiveWorkspace {
		ws := updated.ActiveWorkspace
		d.ActiveWorkspace = &ws
	}

	views := make(map[string]*aggregates.ViewMetadata)
	for key, view := range updated.Views {
		old, ok := base.Views[key]
		if ok && old.Equal(view) {
			continue
		}
		v := view
		views[key] = &v
	}
	for key := range base.Views {
		if _, ok := updated.Views[key]; !ok {
			views[key] = nil
		}
	}
	if len(views) > 0 {
		d.Views = views
	}
	return d
}

func fullRepositoryDiff(repo aggregates.Repository) *RepositoryDiff {
	rd := &RepositoryDiff{
		Commits:  make(map[valueobjects.Hash]entities.Commit, len(repo.Commits)),
		Objects:  make(map[valueobjects.Hash]entities.Node, len(repo.Objects)),
		Branches: make(map[string]*entities.Branch, len(repo.Branches)),
	}
	for h, c := range repo.Commits {
		rd.Commits[h] = c
	}
	for h, n := range repo.Objects {
		rd.Objects[h] = n
	}
	for name, b := range repo.Branches {
		branch := b
		rd.Branches[name] = &branch
	}
	return rd
}

func compareRepository(base, updated aggregates.Repository) *RepositoryDiff {
	rd := &RepositoryDiff{}
	for h, c := range updated.Commits {
		if _, ok := base.Commits[h]; !ok {
			if rd.Commits == nil {
				rd.Commits = make(map[valueobjects.Hash]entities.Commit)
			}
			rd.Commits[h] = c
		}
	}
	for h, n := range updated.Objects {
		if _, ok := base.Objects[h]; !ok {
			if rd.Objects == nil {
				rd.Objects = make(map[valueobjects.Hash]entities.Node)
			}
			rd.Objects[h] = n
		}
	}
	for name, b := range updated.Branches {
		if old, ok := base.Branches[name]; ok && old.Equal(b) {
			continue
		}
		if rd.Branches == nil {
			rd.Branches = make(map[string]*entities.Branch)
		}
		branch := b
		rd.Branches[name] = &branch
	}
	for name := range base.Branches {
		if _, ok := updated.Branches[name]; !ok {
			if rd.Branches == nil {
				rd.Branches = make(map[string]*entities.Branch)
			}
			rd.Branches[name] = nil
		}
	}
	return rd
}

// Apply merges d into base. History is only ever added; branches and views
// are set or deleted; tombstoned repositories are removed and unknown ones
// created. Applying the same diff twice gives the same result as applying it
// once.
func Apply(base aggregates.KnowledgeData, d Diff) aggregates.KnowledgeData {
	out := base
	if out.Repositories == nil {
		out.Repositories = make(map[valueobjects.ID]aggregates.Repository)
	}
	if out.Views == nil {
		out.Views = make(map[string]aggregates.ViewMetadata)
	}

	if d.Repositories != nil {
		repos := make(map[valueobjects.ID]aggregates.Repository, len(out.Repositories)+len(d.Repositories))
		for id, r := range out.Repositories {
			repos[id] = r
		}
		for id, rd := range d.Repositories {
			if rd == nil {
				delete(repos, id)
				continue
			}
			repo, ok := repos[id]
			if !ok {
				repo = aggregates.EmptyRepository(id)
			}
			repos[id] = applyRepository(repo, rd)
		}
		out.Repositories = repos
	}

	if d.ActiveWorkspace != nil {
		out.ActiveWorkspace = *d.ActiveWorkspace
	}

	if d.Views != nil {
		views := make(map[string]aggregates.ViewMetadata, len(out.Views)+len(d.Views))
		for k, v := range out.Views {
			views[k] = v
		}
		for k, v := range d.Views {
			if v == nil {
				delete(views, k)
				continue
			}
			views[k] = *v
		}
		out.Views = views
	}
	return out
}

func applyRepository(repo aggregates.Repository, rd *RepositoryDiff) aggregates.Repository {
	out := repo
	out.ContentStore = repo.ContentStore.Union(rd.Commits, rd.Objects)
	for name, b := range rd.Branches {
		if b == nil {
			out = out.RemoveBranch(name)
			continue
		}
		if existing, ok := out.Branches[name]; ok && existing.Equal(*b) {
			continue
		}
		out = out.SetBranch(name, *b)
	}
	return out
}
