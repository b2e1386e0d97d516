package entities

import (
	"time"

	"graphsync/domain/core/valueobjects"
)

// Commit is a vertex of a repository's history DAG. A commit without
// parents is a root.
type Commit struct {
	Hash    valueobjects.Hash
	Parents []valueobjects.Hash
	Date    time.Time
}

// NewCommit creates a commit with a sorted parent set and a normalized date
func NewCommit(hash valueobjects.Hash, parents []valueobjects.Hash, date time.Time) Commit {
	return Commit{
		Hash:    hash,
		Parents: valueobjects.SortedHashes(parents),
		Date:    NormalizeDate(date),
	}
}

// NormalizeDate truncates to the millisecond precision the wire format keeps
func NormalizeDate(t time.Time) time.Time {
	if t.IsZero() {
		return time.Time{}
	}
	return t.UTC().Truncate(time.Millisecond)
}

// IsRoot reports whether the commit has no parents
func (c Commit) IsRoot() bool {
	return len(c.Parents) == 0
}

// Equal compares commits by value
func (c Commit) Equal(other Commit) bool {
	if c.Hash != other.Hash || !c.Date.Equal(other.Date) || len(c.Parents) != len(other.Parents) {
		return false
	}
	for i := range c.Parents {
		if c.Parents[i] != other.Parents[i] {
			return false
		}
	}
	return true
}
