package valueobjects

import "fmt"

// NodeType classifies the content of a node
type NodeType string

const (
	NodeTypeText      NodeType = "TEXT"
	NodeTypeURL       NodeType = "URL"
	NodeTypeTitle     NodeType = "TITLE"
	NodeTypeView      NodeType = "VIEW"
	NodeTypeWorkspace NodeType = "WORKSPACE"
)

// ParseNodeType validates a node type string
func ParseNodeType(s string) (NodeType, error) {
	t := NodeType(s)
	if !t.IsValid() {
		return "", fmt.Errorf("unknown node type %q", s)
	}
	return t, nil
}

// IsValid checks if the node type is one of the known types
func (t NodeType) IsValid() bool {
	switch t {
	case NodeTypeText, NodeTypeURL, NodeTypeTitle, NodeTypeView, NodeTypeWorkspace:
		return true
	}
	return false
}

// RelationType names an ordered relation list on a node. Users may define
// their own; the constants are the ones every workspace starts with.
type RelationType string

const (
	RelationChildren    RelationType = "CHILDREN"
	RelationReferences  RelationType = "REFERENCES"
	RelationNotRelevant RelationType = "NOT_RELEVANT"
)
