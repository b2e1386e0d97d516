package entities

import "graphsync/domain/core/valueobjects"

// Branch is a named pointer into a repository's history. A branch either
// has a head, staged content, or both.
type Branch struct {
	Head   valueobjects.Hash
	Staged *Node
	// Origin is the remote branch this one was checked out from.
	Origin *valueobjects.BranchPath
}

// NewStagedBranch creates an uncommitted branch
func NewStagedBranch(node Node, origin *valueobjects.BranchPath) Branch {
	staged := node.Clone()
	return Branch{Staged: &staged, Origin: copyPath(origin)}
}

// HasCommits reports whether the branch points at a commit
func (b Branch) HasCommits() bool {
	return !b.Head.IsZero()
}

// HasStaged reports whether the branch carries uncommitted content
func (b Branch) HasStaged() bool {
	return b.Staged != nil
}

// WithStaged returns a copy of the branch carrying node as staged content
func (b Branch) WithStaged(node Node) Branch {
	staged := node.Clone()
	b.Staged = &staged
	return b
}

// Equal compares head, staged content and origin structurally
func (b Branch) Equal(other Branch) bool {
	if b.Head != other.Head {
		return false
	}
	if (b.Staged == nil) != (other.Staged == nil) {
		return false
	}
	if b.Staged != nil && !b.Staged.Equal(*other.Staged) {
		return false
	}
	if (b.Origin == nil) != (other.Origin == nil) {
		return false
	}
	return b.Origin == nil || *b.Origin == *other.Origin
}

func copyPath(p *valueobjects.BranchPath) *valueobjects.BranchPath {
	if p == nil {
		return nil
	}
	c := *p
	return &c
}
