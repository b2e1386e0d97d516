package entities

import (
	"encoding/json"
	"sort"

	"graphsync/domain/core/valueobjects"
)

// Node is the content of a single knowledge unit at one point in its
// history. A committed Node is never modified; edits produce a new Node that
// is staged on a branch. Relation lists may point at repositories that are
// not present locally.
type Node struct {
	Text      string
	Type      valueobjects.NodeType
	Relations map[valueobjects.RelationType][]valueobjects.ID
}

// NewNode creates a node without relations
func NewNode(text string, nodeType valueobjects.NodeType) Node {
	return Node{Text: text, Type: nodeType}
}

// WithText returns a copy of the node with different text
func (n Node) WithText(text string) Node {
	c := n.Clone()
	c.Text = text
	return c
}

// WithRelation returns a copy of the node whose relation list of the given
// type is replaced by ids.
func (n Node) WithRelation(relationType valueobjects.RelationType, ids ...valueobjects.ID) Node {
	c := n.Clone()
	if c.Relations == nil {
		c.Relations = make(map[valueobjects.RelationType][]valueobjects.ID)
	}
	if len(ids) == 0 {
		delete(c.Relations, relationType)
		return c
	}
	c.Relations[relationType] = append([]valueobjects.ID(nil), ids...)
	return c
}

// Clone returns a deep copy
func (n Node) Clone() Node {
	c := Node{Text: n.Text, Type: n.Type}
	if len(n.Relations) > 0 {
		c.Relations = make(map[valueobjects.RelationType][]valueobjects.ID, len(n.Relations))
		for k, v := range n.Relations {
			c.Relations[k] = append([]valueobjects.ID(nil), v...)
		}
	}
	return c
}

// Equal compares nodes structurally. A nil relation map, an empty one and
// one holding only empty lists are all equal.
func (n Node) Equal(other Node) bool {
	if n.Text != other.Text || n.Type != other.Type {
		return false
	}
	a, b := n.canonicalRelations(), other.canonicalRelations()
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i].Type != b[i].Type || len(a[i].Items) != len(b[i].Items) {
			return false
		}
		for j := range a[i].Items {
			if a[i].Items[j] != b[i].Items[j] {
				return false
			}
		}
	}
	return true
}

type canonicalRelation struct {
	Type  valueobjects.RelationType `json:"t"`
	Items []valueobjects.ID         `json:"i"`
}

type canonicalCommit struct {
	Text      string                `json:"text"`
	Type      valueobjects.NodeType `json:"type"`
	Relations []canonicalRelation   `json:"relations"`
	Parents   []valueobjects.Hash   `json:"parents"`
}

func (n Node) canonicalRelations() []canonicalRelation {
	out := make([]canonicalRelation, 0, len(n.Relations))
	for t, items := range n.Relations {
		if len(items) == 0 {
			continue
		}
		out = append(out, canonicalRelation{Type: t, Items: items})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Type < out[j].Type })
	return out
}

// CommitHash computes the content address of committing this node on top
// of the given parents. The commit date does not take part in the hash.
func (n Node) CommitHash(parents []valueobjects.Hash) valueobjects.Hash {
	sorted := valueobjects.SortedHashes(parents)
	if sorted == nil {
		sorted = []valueobjects.Hash{}
	}
	payload, err := json.Marshal(canonicalCommit{
		Text:      n.Text,
		Type:      n.Type,
		Relations: n.canonicalRelations(),
		Parents:   sorted,
	})
	if err != nil {
		// strings and slices of strings always marshal
		panic(err)
	}
	return valueobjects.HashContent(payload)
}
