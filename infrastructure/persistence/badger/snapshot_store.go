package badger

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/dgraph-io/badger/v4"

	"graphsync/application/ports"
	"graphsync/domain/core/aggregates"
	"graphsync/domain/core/valueobjects"
	"graphsync/domain/diff"
	"graphsync/domain/wire"
	pkgerrors "graphsync/pkg/errors"
)

const snapshotPrefix = "snapshot/"

// snapshotRecord is the stored form of a workspace. Both snapshots are
// kept as the wire encoding of their diff against an empty snapshot.
type snapshotRecord struct {
	Current   wire.WireDiff `json:"current"`
	Published wire.WireDiff `json:"published"`
	Contacts  []string      `json:"contacts,omitempty"`
}

// SnapshotStore implements ports.SnapshotStore on BadgerDB
type SnapshotStore struct {
	db *badger.DB
}

var _ ports.SnapshotStore = (*SnapshotStore)(nil)

// NewSnapshotStore wraps an open database
func NewSnapshotStore(db *badger.DB) *SnapshotStore {
	return &SnapshotStore{db: db}
}

func snapshotKey(author valueobjects.AuthorID) []byte {
	return []byte(snapshotPrefix + author.String())
}

// Save replaces the state stored for author
func (s *SnapshotStore) Save(ctx context.Context, author valueobjects.AuthorID, state ports.SnapshotState) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	empty := aggregates.NewKnowledgeData()
	record := snapshotRecord{
		Current:   wire.DiffToWire(diff.Compare(empty, state.Current), author),
		Published: wire.DiffToWire(diff.Compare(empty, state.Published), author),
	}
	for _, c := range state.Contacts {
		record.Contacts = append(record.Contacts, c.String())
	}

	data, err := json.Marshal(record)
	if err != nil {
		return pkgerrors.NewInternalError("failed to encode snapshot").WithCause(err)
	}

	err = s.db.Update(func(txn *badger.Txn) error {
		return txn.Set(snapshotKey(author), data)
	})
	if err != nil {
		return pkgerrors.NewDatabaseError("save snapshot", err)
	}
	return nil
}

// Load returns the state stored for author
func (s *SnapshotStore) Load(ctx context.Context, author valueobjects.AuthorID) (ports.SnapshotState, error) {
	if err := ctx.Err(); err != nil {
		return ports.SnapshotState{}, err
	}

	var data []byte
	err := s.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get(snapshotKey(author))
		if err != nil {
			return err
		}
		data, err = item.ValueCopy(nil)
		return err
	})
	if errors.Is(err, badger.ErrKeyNotFound) {
		return ports.SnapshotState{}, pkgerrors.NewNotFoundError(fmt.Sprintf("snapshot of %s", author))
	}
	if err != nil {
		return ports.SnapshotState{}, pkgerrors.NewDatabaseError("load snapshot", err)
	}

	var record snapshotRecord
	if err := json.Unmarshal(data, &record); err != nil {
		return ports.SnapshotState{}, pkgerrors.NewDecodeFailureError("corrupt snapshot", err)
	}

	current, err := restore(record.Current, author)
	if err != nil {
		return ports.SnapshotState{}, err
	}
	published, err := restore(record.Published, author)
	if err != nil {
		return ports.SnapshotState{}, err
	}

	state := ports.SnapshotState{Current: current, Published: published}
	for _, c := range record.Contacts {
		contact, err := valueobjects.NewAuthorID(c)
		if err != nil {
			return ports.SnapshotState{}, pkgerrors.NewDecodeFailureError("corrupt snapshot contact", err)
		}
		state.Contacts = append(state.Contacts, contact)
	}
	return state, nil
}

func restore(w wire.WireDiff, author valueobjects.AuthorID) (aggregates.KnowledgeData, error) {
	d, err := wire.WireToDiff(w, author)
	if err != nil {
		return aggregates.KnowledgeData{}, err
	}
	return diff.Apply(aggregates.NewKnowledgeData(), d), nil
}
