package badger

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"graphsync/application/ports"
	"graphsync/domain/core/aggregates"
	"graphsync/domain/core/entities"
	"graphsync/domain/core/valueobjects"
	pkgerrors "graphsync/pkg/errors"
)

func openTestStore(t *testing.T) *SnapshotStore {
	t.Helper()
	db, err := Open(InMemoryConfig())
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })
	return NewSnapshotStore(db)
}

func TestOpen_RequiresPath(t *testing.T) {
	_, err := Open(Config{})
	require.Error(t, err)
}

func TestSnapshotStore_NotFound(t *testing.T) {
	store := openTestStore(t)
	_, err := store.Load(context.Background(), "alice")
	require.Error(t, err)
	assert.True(t, pkgerrors.IsNotFound(err))
}

func TestSnapshotStore_RoundTrip(t *testing.T) {
	ctx := context.Background()
	store := openTestStore(t)
	at := time.Date(2024, 5, 1, 10, 0, 0, 0, time.UTC)

	child := entities.NewNode("child", valueobjects.NodeTypeText)
	root := entities.NewNode("root", valueobjects.NodeTypeTitle).
		WithRelation(valueobjects.RelationChildren, "r2")

	bobMain := valueobjects.RemoteBranch("bob", valueobjects.DefaultBranchName)
	committed := aggregates.NewRepository(root, "r1", nil).CommitAll(at)
	staged, err := committed.Stage(root.WithText("root v2"), valueobjects.DefaultBranchName)
	require.NoError(t, err)
	tracked := aggregates.NewRepository(child, "r2", &bobMain).CommitAll(at)

	published := aggregates.NewKnowledgeData().WithRepository(committed)
	current := aggregates.NewKnowledgeData().
		WithRepository(staged).
		WithRepository(tracked).
		WithView("root", aggregates.ViewMetadata{DisplaySubjects: true, Width: 320, Branch: &bobMain, Expanded: true})
	current.ActiveWorkspace = "r1"

	state := ports.SnapshotState{
		Current:   current,
		Published: published,
		Contacts:  []valueobjects.AuthorID{"bob", "carol"},
	}
	require.NoError(t, store.Save(ctx, "alice", state))

	got, err := store.Load(ctx, "alice")
	require.NoError(t, err)
	assert.True(t, got.Current.Equal(current), "current snapshot must survive storage")
	assert.True(t, got.Published.Equal(published), "published snapshot must survive storage")
	assert.Equal(t, state.Contacts, got.Contacts)

	repo, ok := got.Current.Repository("r2")
	require.True(t, ok)
	b, ok := repo.Branches[valueobjects.DefaultBranchName]
	require.True(t, ok)
	require.NotNil(t, b.Origin)
	assert.Equal(t, bobMain, *b.Origin)
}

func TestSnapshotStore_SaveReplaces(t *testing.T) {
	ctx := context.Background()
	store := openTestStore(t)

	first := ports.SnapshotState{
		Current:   aggregates.NewKnowledgeData().WithRepository(aggregates.NewRepository(entities.NewNode("a", valueobjects.NodeTypeText), "r1", nil)),
		Published: aggregates.NewKnowledgeData(),
		Contacts:  []valueobjects.AuthorID{"bob"},
	}
	require.NoError(t, store.Save(ctx, "alice", first))
	require.NoError(t, store.Save(ctx, "alice", ports.SnapshotState{
		Current:   aggregates.NewKnowledgeData(),
		Published: aggregates.NewKnowledgeData(),
	}))

	got, err := store.Load(ctx, "alice")
	require.NoError(t, err)
	assert.Empty(t, got.Current.Repositories)
	assert.Empty(t, got.Contacts)
}
