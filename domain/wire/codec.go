// Package wire encodes diffs into the compact JSON carried by knowledge
// events, splits them into size-bounded chunks and rebuilds per-author
// snapshots from received events.
package wire

import (
	"encoding/json"
	"fmt"
	"time"

	"graphsync/domain/core/aggregates"
	"graphsync/domain/core/entities"
	"graphsync/domain/core/valueobjects"
	"graphsync/domain/diff"
	pkgerrors "graphsync/pkg/errors"
)

// WireDiff is the serialized form of a diff. A null map value is a
// tombstone; an omitted key is unchanged.
type WireDiff struct {
	Repositories    map[string]*WireRepository `json:"r,omitempty"`
	ActiveWorkspace *string                    `json:"w,omitempty"`
	Views           map[string]*WireView       `json:"v,omitempty"`
}

// WireRepository is the serialized form of a repository diff
type WireRepository struct {
	Commits  map[string]*WireCommit `json:"c,omitempty"`
	Objects  map[string]*WireNode   `json:"o,omitempty"`
	Branches map[string]*WireBranch `json:"b,omitempty"`
}

// WireCommit carries parents and the commit date in unix milliseconds
type WireCommit struct {
	Parents []string `json:"p,omitempty"`
	Date    int64    `json:"d"`
}

// WireNode is the serialized form of a node
type WireNode struct {
	Text      string              `json:"t"`
	Type      string              `json:"y"`
	Relations map[string][]string `json:"l,omitempty"`
}

// WireBranch is the serialized form of a branch
type WireBranch struct {
	Head   string    `json:"h,omitempty"`
	Staged *WireNode `json:"s,omitempty"`
	Origin *WirePath `json:"o,omitempty"`
}

// WirePath is a branch path. Author is the self marker for paths of the
// encoding author and an author id otherwise.
type WirePath struct {
	Author string `json:"a"`
	Name   string `json:"n"`
}

// WireView is the serialized form of view metadata
type WireView struct {
	DisplaySubjects bool      `json:"s,omitempty"`
	Width           int       `json:"w,omitempty"`
	Branch          *WirePath `json:"b,omitempty"`
	Expanded        bool      `json:"e,omitempty"`
}

// DiffToWire converts a diff to its wire form. Branch paths are written
// relative to localAuthor, the author publishing the diff.
func DiffToWire(d diff.Diff, localAuthor valueobjects.AuthorID) WireDiff {
	var w WireDiff
	if d.Repositories != nil {
		w.Repositories = make(map[string]*WireRepository, len(d.Repositories))
		for id, rd := range d.Repositories {
			if rd == nil {
				w.Repositories[id.String()] = nil
				continue
			}
			w.Repositories[id.String()] = repositoryToWire(rd, localAuthor)
		}
	}
	if d.ActiveWorkspace != nil {
		ws := d.ActiveWorkspace.String()
		w.ActiveWorkspace = &ws
	}
	if d.Views != nil {
		w.Views = make(map[string]*WireView, len(d.Views))
		for key, v := range d.Views {
			if v == nil {
				w.Views[key] = nil
				continue
			}
			w.Views[key] = &WireView{
				DisplaySubjects: v.DisplaySubjects,
				Width:           v.Width,
				Branch:          pathToWire(v.Branch, localAuthor),
				Expanded:        v.Expanded,
			}
		}
	}
	return w
}

func repositoryToWire(rd *diff.RepositoryDiff, localAuthor valueobjects.AuthorID) *WireRepository {
	wr := &WireRepository{}
	if len(rd.Commits) > 0 {
		wr.Commits = make(map[string]*WireCommit, len(rd.Commits))
		for h, c := range rd.Commits {
			wc := &WireCommit{Date: dateToWire(c.Date)}
			for _, p := range c.Parents {
				wc.Parents = append(wc.Parents, p.String())
			}
			wr.Commits[h.String()] = wc
		}
	}
	if len(rd.Objects) > 0 {
		wr.Objects = make(map[string]*WireNode, len(rd.Objects))
		for h, n := range rd.Objects {
			wr.Objects[h.String()] = nodeToWire(n)
		}
	}
	if len(rd.Branches) > 0 {
		wr.Branches = make(map[string]*WireBranch, len(rd.Branches))
		for name, b := range rd.Branches {
			if b == nil {
				wr.Branches[name] = nil
				continue
			}
			wb := &WireBranch{Head: b.Head.String(), Origin: pathToWire(b.Origin, localAuthor)}
			if b.Staged != nil {
				wb.Staged = nodeToWire(*b.Staged)
			}
			wr.Branches[name] = wb
		}
	}
	return wr
}

func nodeToWire(n entities.Node) *WireNode {
	wn := &WireNode{Text: n.Text, Type: string(n.Type)}
	for t, ids := range n.Relations {
		if len(ids) == 0 {
			continue
		}
		if wn.Relations == nil {
			wn.Relations = make(map[string][]string, len(n.Relations))
		}
		items := make([]string, len(ids))
		for i, id := range ids {
			items[i] = id.String()
		}
		wn.Relations[string(t)] = items
	}
	return wn
}

func pathToWire(p *valueobjects.BranchPath, localAuthor valueobjects.AuthorID) *WirePath {
	if p == nil {
		return nil
	}
	author, remote := p.Origin()
	if !remote || author == localAuthor {
		return &WirePath{Author: valueobjects.SelfMarker, Name: p.Name()}
	}
	return &WirePath{Author: author.String(), Name: p.Name()}
}

func dateToWire(t time.Time) int64 {
	if t.IsZero() {
		return 0
	}
	return t.UnixMilli()
}

// WireToDiff converts and validates a wire diff. localAuthor must be the
// author that published it; paths marked with the self marker or naming
// localAuthor become local paths.
func WireToDiff(w WireDiff, localAuthor valueobjects.AuthorID) (diff.Diff, error) {
	var d diff.Diff
	if w.Repositories != nil {
		d.Repositories = make(map[valueobjects.ID]*diff.RepositoryDiff, len(w.Repositories))
		for id, wr := range w.Repositories {
			repoID, err := valueobjects.NewIDFromString(id)
			if err != nil {
				return diff.Diff{}, pkgerrors.NewDecodeFailureError("invalid repository id", err)
			}
			if wr == nil {
				d.Repositories[repoID] = nil
				continue
			}
			rd, err := repositoryFromWire(wr, localAuthor)
			if err != nil {
				return diff.Diff{}, pkgerrors.NewDecodeFailureError(fmt.Sprintf("repository %s", id), err)
			}
			d.Repositories[repoID] = rd
		}
	}
	if w.ActiveWorkspace != nil {
		ws := valueobjects.ID(*w.ActiveWorkspace)
		d.ActiveWorkspace = &ws
	}
	if w.Views != nil {
		d.Views = make(map[string]*aggregates.ViewMetadata, len(w.Views))
		for key, wv := range w.Views {
			if wv == nil {
				d.Views[key] = nil
				continue
			}
			branch, err := pathFromWire(wv.Branch, localAuthor)
			if err != nil {
				return diff.Diff{}, pkgerrors.NewDecodeFailureError(fmt.Sprintf("view %s", key), err)
			}
			d.Views[key] = &aggregates.ViewMetadata{
				DisplaySubjects: wv.DisplaySubjects,
				Width:           wv.Width,
				Branch:          branch,
				Expanded:        wv.Expanded,
			}
		}
	}
	return d, nil
}

func repositoryFromWire(wr *WireRepository, localAuthor valueobjects.AuthorID) (*diff.RepositoryDiff, error) {
	rd := &diff.RepositoryDiff{}
	if wr.Commits != nil {
		rd.Commits = make(map[valueobjects.Hash]entities.Commit, len(wr.Commits))
		for key, wc := range wr.Commits {
			h, err := valueobjects.ParseHash(key)
			if err != nil {
				return nil, err
			}
			if wc == nil {
				return nil, fmt.Errorf("commit %s cannot be a tombstone", key)
			}
			parents := make([]valueobjects.Hash, 0, len(wc.Parents))
			for _, p := range wc.Parents {
				ph, err := valueobjects.ParseHash(p)
				if err != nil {
					return nil, fmt.Errorf("commit %s: %w", key, err)
				}
				parents = append(parents, ph)
			}
			rd.Commits[h] = entities.NewCommit(h, parents, dateFromWire(wc.Date))
		}
	}
	if wr.Objects != nil {
		rd.Objects = make(map[valueobjects.Hash]entities.Node, len(wr.Objects))
		for key, wn := range wr.Objects {
			h, err := valueobjects.ParseHash(key)
			if err != nil {
				return nil, err
			}
			if wn == nil {
				return nil, fmt.Errorf("object %s cannot be a tombstone", key)
			}
			n, err := nodeFromWire(wn)
			if err != nil {
				return nil, fmt.Errorf("object %s: %w", key, err)
			}
			rd.Objects[h] = n
		}
	}
	if wr.Branches != nil {
		rd.Branches = make(map[string]*entities.Branch, len(wr.Branches))
		for name, wb := range wr.Branches {
			if !valueobjects.ValidBranchName(name) {
				return nil, fmt.Errorf("invalid branch name %q", name)
			}
			if wb == nil {
				rd.Branches[name] = nil
				continue
			}
			b, err := branchFromWire(wb, localAuthor)
			if err != nil {
				return nil, fmt.Errorf("branch %s: %w", name, err)
			}
			rd.Branches[name] = b
		}
	}
	return rd, nil
}

func branchFromWire(wb *WireBranch, localAuthor valueobjects.AuthorID) (*entities.Branch, error) {
	if wb.Head == "" && wb.Staged == nil {
		return nil, fmt.Errorf("branch needs a head or staged content")
	}
	b := &entities.Branch{}
	if wb.Head != "" {
		h, err := valueobjects.ParseHash(wb.Head)
		if err != nil {
			return nil, err
		}
		b.Head = h
	}
	if wb.Staged != nil {
		n, err := nodeFromWire(wb.Staged)
		if err != nil {
			return nil, err
		}
		b.Staged = &n
	}
	origin, err := pathFromWire(wb.Origin, localAuthor)
	if err != nil {
		return nil, err
	}
	b.Origin = origin
	return b, nil
}

func nodeFromWire(wn *WireNode) (entities.Node, error) {
	t, err := valueobjects.ParseNodeType(wn.Type)
	if err != nil {
		return entities.Node{}, err
	}
	n := entities.NewNode(wn.Text, t)
	for rt, items := range wn.Relations {
		if rt == "" {
			return entities.Node{}, fmt.Errorf("relation type cannot be empty")
		}
		if len(items) == 0 {
			continue
		}
		ids := make([]valueobjects.ID, len(items))
		for i, item := range items {
			ids[i] = valueobjects.ID(item)
		}
		n = n.WithRelation(valueobjects.RelationType(rt), ids...)
	}
	return n, nil
}

func pathFromWire(wp *WirePath, localAuthor valueobjects.AuthorID) (*valueobjects.BranchPath, error) {
	if wp == nil {
		return nil, nil
	}
	if wp.Name == "" || wp.Author == "" {
		return nil, fmt.Errorf("branch path needs an author and a name")
	}
	var p valueobjects.BranchPath
	if wp.Author == valueobjects.SelfMarker || valueobjects.AuthorID(wp.Author) == localAuthor {
		p = valueobjects.LocalBranch(wp.Name)
	} else {
		p = valueobjects.RemoteBranch(valueobjects.AuthorID(wp.Author), wp.Name)
	}
	return &p, nil
}

func dateFromWire(ms int64) time.Time {
	if ms == 0 {
		return time.Time{}
	}
	return time.UnixMilli(ms).UTC()
}

// Encode serializes a diff for publishing by localAuthor
func Encode(d diff.Diff, localAuthor valueobjects.AuthorID) ([]byte, error) {
	data, err := json.Marshal(DiffToWire(d, localAuthor))
	if err != nil {
		return nil, pkgerrors.NewInternalError("failed to encode diff").WithCause(err)
	}
	return data, nil
}

// Decode parses a payload published by localAuthor
func Decode(data []byte, localAuthor valueobjects.AuthorID) (diff.Diff, error) {
	var w WireDiff
	if err := json.Unmarshal(data, &w); err != nil {
		return diff.Diff{}, pkgerrors.NewDecodeFailureError("malformed diff payload", err)
	}
	return WireToDiff(w, localAuthor)
}
