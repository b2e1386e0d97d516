package services

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"graphsync/application/ports"
	"graphsync/domain/core/valueobjects"
	"graphsync/domain/events"
)

func TestRegistry_Get(t *testing.T) {
	env := newTestEnv()
	registry := NewRegistry(env.deps)

	bob := registry.Get("bob")
	alice := registry.Get("alice")
	assert.Same(t, bob, registry.Get("bob"))
	assert.NotSame(t, alice, bob)

	all := registry.All()
	require.Len(t, all, 2)
	assert.Equal(t, valueobjects.AuthorID("alice"), all[0].Author())
	assert.Equal(t, valueobjects.AuthorID("bob"), all[1].Author())
}

func TestSyncWorker_RunOnce(t *testing.T) {
	ctx := context.Background()
	env := newTestEnv()
	registry := NewRegistry(env.deps)
	worker := NewSyncWorker(registry, time.Hour, zap.NewNop())

	alice := registry.Get("alice")
	bob := registry.Get("bob")
	_, err := alice.CreateRepository(ctx, text("from alice"), "r1")
	require.NoError(t, err)
	_, err = alice.CommitAll(ctx)
	require.NoError(t, err)
	require.NoError(t, bob.AddContact(ctx, "alice"))

	assert.Zero(t, worker.RunOnce(ctx))

	node, path, err := bob.Resolve(ctx, "r1", nil)
	require.NoError(t, err)
	assert.Equal(t, "from alice", node.Text)
	assert.Equal(t, "alice:main", path.String())

	cancelled, cancel := context.WithCancel(ctx)
	cancel()
	assert.Zero(t, worker.RunOnce(cancelled))
}

type appendFailingStore struct {
	ports.EventStore
}

func (appendFailingStore) Append(ctx context.Context, evts []events.KnowledgeEvent) error {
	return errors.New("table unavailable")
}

func TestSyncWorker_RunOnce_SyncsAfterPublishFailure(t *testing.T) {
	ctx := context.Background()
	env := newTestEnv()
	alice := NewKnowledgeService("alice", env.deps)
	_, err := alice.CreateRepository(ctx, text("from alice"), "r1")
	require.NoError(t, err)
	_, err = alice.CommitAll(ctx)
	require.NoError(t, err)
	_, err = alice.Publish(ctx)
	require.NoError(t, err)

	deps := env.deps
	deps.Events = appendFailingStore{EventStore: env.events}
	registry := NewRegistry(deps)
	bob := registry.Get("bob")
	require.NoError(t, bob.AddContact(ctx, "alice"))
	_, err = bob.CreateRepository(ctx, text("from bob"), "r2")
	require.NoError(t, err)

	worker := NewSyncWorker(registry, time.Hour, zap.NewNop())
	assert.Equal(t, 1, worker.RunOnce(ctx))

	node, path, err := bob.Resolve(ctx, "r1", nil)
	require.NoError(t, err)
	assert.Equal(t, "from alice", node.Text)
	assert.Equal(t, "alice:main", path.String())
}

func TestSyncWorker_StartStop(t *testing.T) {
	env := newTestEnv()
	registry := NewRegistry(env.deps)
	_, err := registry.Get("alice").CreateRepository(context.Background(), text("tick"), "r1")
	require.NoError(t, err)

	worker := NewSyncWorker(registry, 10*time.Millisecond, zap.NewNop())
	worker.Start(context.Background())
	assert.Eventually(t, func() bool { return env.events.Len() > 0 }, time.Second, 5*time.Millisecond)
	worker.Stop()
}

func TestOutboxProcessor_StartStop(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	env := newTestEnv()
	env.publisher.fail = true
	alice := NewKnowledgeService("alice", env.deps)
	_, err := alice.CreateRepository(ctx, text("queued"), "r1")
	require.NoError(t, err)
	_, err = alice.Publish(ctx)
	require.NoError(t, err)

	env.publisher.mu.Lock()
	env.publisher.fail = false
	env.publisher.mu.Unlock()

	outbox := NewOutboxProcessor(env.events, env.publisher, nil, zap.NewNop())
	outbox.processingInterval = 10 * time.Millisecond
	outbox.Start(ctx)
	assert.Eventually(t, func() bool { return env.publisher.count() == 1 }, time.Second, 5*time.Millisecond)
	cancel()
	<-outbox.stoppedChan
}
