package valueobjects

import (
	"errors"
	"strings"
)

// DefaultBranchName is the branch every new repository starts with.
const DefaultBranchName = "main"

// BranchPath addresses a branch either in the local branch set or in the
// read-only tracking set of a remote author. The zero value is local.
type BranchPath struct {
	origin AuthorID
	remote bool
	name   string
}

// LocalBranch creates a path to a local branch
func LocalBranch(name string) BranchPath {
	return BranchPath{name: name}
}

// RemoteBranch creates a path to a branch fetched from another author
func RemoteBranch(author AuthorID, name string) BranchPath {
	return BranchPath{origin: author, remote: true, name: name}
}

// ParseBranchPath reads "name" as a local path and "author:name" as remote.
// Author ids may contain colons; branch names may not, so the path splits at
// the last one.
func ParseBranchPath(s string) (BranchPath, error) {
	if strings.TrimSpace(s) == "" {
		return BranchPath{}, errors.New("branch path cannot be empty")
	}
	i := strings.LastIndex(s, ":")
	if i < 0 {
		return LocalBranch(s), nil
	}
	author, name := s[:i], s[i+1:]
	if author == "" || name == "" {
		return BranchPath{}, errors.New("remote branch path must be author:name")
	}
	return RemoteBranch(AuthorID(author), name), nil
}

// ValidBranchName reports whether name can be used for a branch
func ValidBranchName(name string) bool {
	return strings.TrimSpace(name) != "" && !strings.Contains(name, ":")
}

// Name returns the branch name
func (p BranchPath) Name() string {
	return p.name
}

// Origin returns the remote author, or false for a local branch
func (p BranchPath) Origin() (AuthorID, bool) {
	return p.origin, p.remote
}

// IsLocal reports whether the path addresses a local branch
func (p BranchPath) IsLocal() bool {
	return !p.remote
}

// IsZero checks if the BranchPath is the zero value
func (p BranchPath) IsZero() bool {
	return p == BranchPath{}
}

// String renders the path in the form accepted by ParseBranchPath
func (p BranchPath) String() string {
	if !p.remote {
		return p.name
	}
	return string(p.origin) + ":" + p.name
}

// Relative rewrites a path recorded by remoteAuthor so that it keeps its
// meaning for localAuthor: the remote's local branches become remote paths
// of remoteAuthor and paths pointing at localAuthor become local.
func (p BranchPath) Relative(remoteAuthor, localAuthor AuthorID) BranchPath {
	if !p.remote {
		return RemoteBranch(remoteAuthor, p.name)
	}
	if !localAuthor.IsZero() && p.origin == localAuthor {
		return LocalBranch(p.name)
	}
	return p
}
