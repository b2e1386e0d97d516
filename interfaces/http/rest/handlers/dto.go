package handlers

import (
	"sort"

	"graphsync/domain/core/aggregates"
	"graphsync/domain/core/entities"
	"graphsync/domain/core/valueobjects"
)

// NodeDTO is the JSON form of a node
type NodeDTO struct {
	Text      string              `json:"text" validate:"max=100000"`
	Type      string              `json:"type" validate:"required,nodetype"`
	Relations map[string][]string `json:"relations,omitempty" validate:"omitempty,dive,keys,required,endkeys,dive,required"`
}

func (d NodeDTO) toNode() entities.Node {
	n := entities.NewNode(d.Text, valueobjects.NodeType(d.Type))
	for rt, items := range d.Relations {
		ids := make([]valueobjects.ID, len(items))
		for i, item := range items {
			ids[i] = valueobjects.ID(item)
		}
		n = n.WithRelation(valueobjects.RelationType(rt), ids...)
	}
	return n
}

func nodeToDTO(n entities.Node) NodeDTO {
	dto := NodeDTO{Text: n.Text, Type: string(n.Type)}
	if len(n.Relations) > 0 {
		dto.Relations = make(map[string][]string, len(n.Relations))
		for rt, ids := range n.Relations {
			items := make([]string, len(ids))
			for i, id := range ids {
				items[i] = id.String()
			}
			dto.Relations[string(rt)] = items
		}
	}
	return dto
}

// CreateRepositoryRequest represents the request body for creating a repository
type CreateRepositoryRequest struct {
	ID   string  `json:"id,omitempty" validate:"omitempty,max=128"`
	Node NodeDTO `json:"node"`
}

// BranchRequest names a branch as "name" or "author:name"
type BranchRequest struct {
	Branch string `json:"branch" validate:"required,branchpath"`
}

// WorkspaceRequest selects the active workspace
type WorkspaceRequest struct {
	RepositoryID string `json:"repository_id" validate:"required"`
}

// ContactRequest follows another author
type ContactRequest struct {
	Author string `json:"author" validate:"required,author"`
}

// ViewDTO is the JSON form of view metadata
type ViewDTO struct {
	DisplaySubjects bool   `json:"display_subjects"`
	Width           int    `json:"width" validate:"min=0"`
	Branch          string `json:"branch,omitempty" validate:"omitempty,branchpath"`
	Expanded        bool   `json:"expanded"`
}

func (d ViewDTO) toView() aggregates.ViewMetadata {
	v := aggregates.ViewMetadata{DisplaySubjects: d.DisplaySubjects, Width: d.Width, Expanded: d.Expanded}
	if d.Branch != "" {
		if p, err := valueobjects.ParseBranchPath(d.Branch); err == nil {
			v.Branch = &p
		}
	}
	return v
}

func viewToDTO(v aggregates.ViewMetadata) ViewDTO {
	dto := ViewDTO{DisplaySubjects: v.DisplaySubjects, Width: v.Width, Expanded: v.Expanded}
	if v.Branch != nil {
		dto.Branch = v.Branch.String()
	}
	return dto
}

// ResolveResponse is the content of one branch
type ResolveResponse struct {
	RepositoryID string  `json:"repository_id"`
	Branch       string  `json:"branch"`
	Node         NodeDTO `json:"node"`
}

// BranchDTO summarizes a branch
type BranchDTO struct {
	Name   string `json:"name"`
	Head   string `json:"head,omitempty"`
	Staged bool   `json:"staged"`
	Origin string `json:"origin,omitempty"`
}

// RepositoryDTO summarizes a repository in the merged view
type RepositoryDTO struct {
	ID            string                 `json:"id"`
	DefaultBranch string                 `json:"default_branch,omitempty"`
	Branches      []BranchDTO            `json:"branches"`
	Remotes       map[string][]BranchDTO `json:"remotes,omitempty"`
	Commits       int                    `json:"commits"`
}

// KnowledgeResponse is the merged view
type KnowledgeResponse struct {
	ActiveWorkspace string             `json:"active_workspace,omitempty"`
	Repositories    []RepositoryDTO    `json:"repositories"`
	Views           map[string]ViewDTO `json:"views"`
}

func branchesToDTO(branches map[string]entities.Branch) []BranchDTO {
	names := make([]string, 0, len(branches))
	for name := range branches {
		names = append(names, name)
	}
	sort.Strings(names)

	out := make([]BranchDTO, 0, len(names))
	for _, name := range names {
		b := branches[name]
		dto := BranchDTO{Name: name, Head: b.Head.String(), Staged: b.HasStaged()}
		if b.Origin != nil {
			dto.Origin = b.Origin.String()
		}
		out = append(out, dto)
	}
	return out
}

func knowledgeToResponse(k aggregates.KnowledgeData) KnowledgeResponse {
	resp := KnowledgeResponse{
		ActiveWorkspace: k.ActiveWorkspace.String(),
		Repositories:    make([]RepositoryDTO, 0, len(k.Repositories)),
		Views:           make(map[string]ViewDTO, len(k.Views)),
	}

	ids := make([]valueobjects.ID, 0, len(k.Repositories))
	for id := range k.Repositories {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })

	for _, id := range ids {
		repo := k.Repositories[id]
		dto := RepositoryDTO{
			ID:       id.String(),
			Branches: branchesToDTO(repo.Branches),
			Commits:  len(repo.Commits),
		}
		if def, ok := repo.DefaultBranch(); ok {
			dto.DefaultBranch = def.String()
		}
		if len(repo.Remotes) > 0 {
			dto.Remotes = make(map[string][]BranchDTO, len(repo.Remotes))
			for author, branches := range repo.Remotes {
				dto.Remotes[author.String()] = branchesToDTO(branches)
			}
		}
		resp.Repositories = append(resp.Repositories, dto)
	}
	for key, v := range k.Views {
		resp.Views[key] = viewToDTO(v)
	}
	return resp
}
