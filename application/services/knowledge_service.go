package services

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/oklog/ulid/v2"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"

	"graphsync/application/ports"
	"graphsync/domain/core/aggregates"
	"graphsync/domain/core/entities"
	"graphsync/domain/core/valueobjects"
	"graphsync/domain/diff"
	"graphsync/domain/events"
	"graphsync/domain/versioning"
	"graphsync/domain/wire"
	pkgerrors "graphsync/pkg/errors"
	"graphsync/pkg/observability"
)

var tracer = otel.Tracer("graphsync/application/services")

// Dependencies groups the collaborators shared by every workspace
type Dependencies struct {
	Events        ports.EventStore
	Publisher     ports.EventPublisher
	Snapshots     ports.SnapshotStore
	Clock         ports.Clock
	Metrics       *observability.Collector
	Logger        *zap.Logger
	MaxChunkChars int

	// DefaultContacts are followed by workspaces that have no stored snapshot
	DefaultContacts []valueobjects.AuthorID
}

// KnowledgeService owns one author's workspace: the snapshot the author
// edits, the last snapshot published to the event store, and the merged
// view that layers every contact's repositories on top as remote branches.
//
// Edits operate on the merged view so remote branches can be checked out
// and merged; the result is written back to the owned snapshot without
// remotes.
type KnowledgeService struct {
	author  valueobjects.AuthorID
	deps    Dependencies
	decoder *wire.Decoder
	logger  *zap.Logger

	mu        sync.Mutex
	loaded    bool
	own       aggregates.KnowledgeData
	published aggregates.KnowledgeData
	others    map[valueobjects.AuthorID]aggregates.KnowledgeData
	view      aggregates.KnowledgeData
	contacts  map[valueobjects.AuthorID]struct{}
}

// NewKnowledgeService creates a workspace service for author
func NewKnowledgeService(author valueobjects.AuthorID, deps Dependencies) *KnowledgeService {
	if deps.Logger == nil {
		deps.Logger = zap.NewNop()
	}
	if deps.MaxChunkChars <= 0 {
		deps.MaxChunkChars = wire.DefaultMaxChunkChars
	}
	logger := deps.Logger.With(zap.String("author", author.String()))
	return &KnowledgeService{
		author:    author,
		deps:      deps,
		decoder:   wire.NewDecoder(logger),
		logger:    logger,
		own:       aggregates.NewKnowledgeData(),
		published: aggregates.NewKnowledgeData(),
		others:    make(map[valueobjects.AuthorID]aggregates.KnowledgeData),
		view:      aggregates.NewKnowledgeData(),
		contacts:  make(map[valueobjects.AuthorID]struct{}),
	}
}

// Author returns the workspace owner
func (s *KnowledgeService) Author() valueobjects.AuthorID {
	return s.author
}

// ensureLoaded restores state from the snapshot store, or rebuilds the
// owned snapshot from the author's own events when nothing is stored.
// Callers hold s.mu.
func (s *KnowledgeService) ensureLoaded(ctx context.Context) error {
	if s.loaded {
		return nil
	}

	state, err := s.deps.Snapshots.Load(ctx, s.author)
	switch {
	case err == nil:
		s.own = normalize(state.Current)
		s.published = normalize(state.Published)
		for _, c := range state.Contacts {
			s.contacts[c] = struct{}{}
		}
	case pkgerrors.IsNotFound(err):
		evts, err := s.deps.Events.ListByAuthors(ctx, []valueobjects.AuthorID{s.author})
		if err != nil {
			return fmt.Errorf("failed to load own events: %w", err)
		}
		if own, ok := s.decoder.Reconstruct(evts)[s.author]; ok {
			s.own = own
			s.published = own
		}
		for _, c := range s.deps.DefaultContacts {
			if c != s.author {
				s.contacts[c] = struct{}{}
			}
		}
		s.logger.Info("Rebuilt workspace from event store", zap.Int("events", len(evts)))
	default:
		return fmt.Errorf("failed to load snapshot: %w", err)
	}

	s.loaded = true
	s.rebuildView()
	return nil
}

func normalize(k aggregates.KnowledgeData) aggregates.KnowledgeData {
	if k.Repositories == nil {
		k.Repositories = make(map[valueobjects.ID]aggregates.Repository)
	}
	if k.Views == nil {
		k.Views = make(map[string]aggregates.ViewMetadata)
	}
	return k
}

func (s *KnowledgeService) rebuildView() {
	perAuthor := make(map[valueobjects.AuthorID]aggregates.KnowledgeData, len(s.others)+1)
	for a, k := range s.others {
		perAuthor[a] = k
	}
	perAuthor[s.author] = s.own
	s.view = versioning.MergeKnowledgeData(perAuthor, s.author)
}

func (s *KnowledgeService) persist(ctx context.Context) error {
	state := ports.SnapshotState{
		Current:   s.own,
		Published: s.published,
		Contacts:  s.contactList(),
	}
	if err := s.deps.Snapshots.Save(ctx, s.author, state); err != nil {
		return fmt.Errorf("failed to save snapshot: %w", err)
	}
	return nil
}

func (s *KnowledgeService) contactList() []valueobjects.AuthorID {
	out := make([]valueobjects.AuthorID, 0, len(s.contacts))
	for c := range s.contacts {
		out = append(out, c)
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}

// update runs fn against the current owned snapshot under the lock, then
// rebuilds the view and persists.
func (s *KnowledgeService) update(ctx context.Context, fn func() error) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.ensureLoaded(ctx); err != nil {
		return err
	}
	previous := s.own
	if err := fn(); err != nil {
		s.own = previous
		return err
	}
	s.rebuildView()
	if err := s.persist(ctx); err != nil {
		s.own = previous
		s.rebuildView()
		return err
	}
	return nil
}

// viewRepository returns a repository as seen in the merged view
func (s *KnowledgeService) viewRepository(id valueobjects.ID) (aggregates.Repository, error) {
	repo, ok := s.view.Repository(id)
	if !ok {
		return aggregates.Repository{}, pkgerrors.NewNotFoundError(fmt.Sprintf("repository %s", id))
	}
	return repo, nil
}

// writeBack stores a repository edited through the view
func (s *KnowledgeService) writeBack(repo aggregates.Repository) {
	s.own = s.own.WithRepository(repo.WithoutRemotes())
}

// CreateRepository creates a new repository with node staged on main
func (s *KnowledgeService) CreateRepository(ctx context.Context, node entities.Node, id valueobjects.ID) (aggregates.Repository, error) {
	var repo aggregates.Repository
	err := s.update(ctx, func() error {
		if !id.IsZero() {
			if _, exists := s.own.Repository(id); exists {
				return pkgerrors.NewInvalidOperationError(fmt.Sprintf("repository %s already exists", id))
			}
		}
		repo = aggregates.NewRepository(node, id, nil)
		s.own = s.own.WithRepository(repo)
		return nil
	})
	if err != nil {
		return aggregates.Repository{}, err
	}
	s.logger.Debug("Created repository", zap.String("repository", repo.ID.String()))
	return repo, nil
}

// DeleteRepository removes an owned repository; the next publish carries
// the tombstone
func (s *KnowledgeService) DeleteRepository(ctx context.Context, id valueobjects.ID) error {
	return s.update(ctx, func() error {
		if _, ok := s.own.Repository(id); !ok {
			return pkgerrors.NewNotFoundError(fmt.Sprintf("repository %s", id))
		}
		s.own = s.own.WithoutRepository(id)
		return nil
	})
}

// Stage replaces the staged content of a local branch
func (s *KnowledgeService) Stage(ctx context.Context, id valueobjects.ID, branch string, node entities.Node) error {
	return s.update(ctx, func() error {
		repo, err := s.viewRepository(id)
		if err != nil {
			return err
		}
		staged, err := repo.Stage(node, branch)
		if err != nil {
			return err
		}
		s.writeBack(staged)
		return nil
	})
}

// CommitAll commits staged content in every owned repository and returns
// the number of repositories that changed
func (s *KnowledgeService) CommitAll(ctx context.Context) (int, error) {
	committed := 0
	err := s.update(ctx, func() error {
		at := s.deps.Clock.Now()
		repos := make(map[valueobjects.ID]aggregates.Repository, len(s.own.Repositories))
		for id, repo := range s.own.Repositories {
			if hasStaged(repo) {
				committed++
			}
			repos[id] = repo.CommitAll(at)
		}
		s.own.Repositories = repos
		return nil
	})
	return committed, err
}

func hasStaged(repo aggregates.Repository) bool {
	for _, b := range repo.Branches {
		if b.HasStaged() {
			return true
		}
	}
	return false
}

// Resolve returns the node of a branch, or of the default branch when path
// is nil, together with the branch that was resolved
func (s *KnowledgeService) Resolve(ctx context.Context, id valueobjects.ID, path *valueobjects.BranchPath) (entities.Node, valueobjects.BranchPath, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.ensureLoaded(ctx); err != nil {
		return entities.Node{}, valueobjects.BranchPath{}, err
	}

	repo, err := s.viewRepository(id)
	if err != nil {
		return entities.Node{}, valueobjects.BranchPath{}, err
	}
	target, err := pathOrDefault(repo, path)
	if err != nil {
		return entities.Node{}, valueobjects.BranchPath{}, err
	}
	node, err := repo.Resolve(target)
	return node, target, err
}

// DefaultBranch returns the branch shown for a repository by default
func (s *KnowledgeService) DefaultBranch(ctx context.Context, id valueobjects.ID) (valueobjects.BranchPath, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.ensureLoaded(ctx); err != nil {
		return valueobjects.BranchPath{}, err
	}

	repo, err := s.viewRepository(id)
	if err != nil {
		return valueobjects.BranchPath{}, err
	}
	return pathOrDefault(repo, nil)
}

func pathOrDefault(repo aggregates.Repository, path *valueobjects.BranchPath) (valueobjects.BranchPath, error) {
	if path != nil {
		return *path, nil
	}
	def, ok := repo.DefaultBranch()
	if !ok {
		return valueobjects.BranchPath{}, pkgerrors.NewNotFoundError(fmt.Sprintf("default branch of %s", repo.ID))
	}
	return def, nil
}

// Divergence describes branch b relative to branch a
func (s *KnowledgeService) Divergence(ctx context.Context, id valueobjects.ID, a, b valueobjects.BranchPath) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.ensureLoaded(ctx); err != nil {
		return "", err
	}

	repo, err := s.viewRepository(id)
	if err != nil {
		return "", err
	}
	return versioning.DescribeDivergence(repo, a, b)
}

// Checkout copies a remote branch into a new local branch
func (s *KnowledgeService) Checkout(ctx context.Context, id valueobjects.ID, path valueobjects.BranchPath) (valueobjects.BranchPath, error) {
	var local valueobjects.BranchPath
	err := s.update(ctx, func() error {
		repo, err := s.viewRepository(id)
		if err != nil {
			return err
		}
		out, p, err := versioning.CheckoutRemoteBranch(repo, path)
		if err != nil {
			return err
		}
		local = p
		s.writeBack(out)
		return nil
	})
	return local, err
}

// Merge accepts a branch into the repository's default branch
func (s *KnowledgeService) Merge(ctx context.Context, id valueobjects.ID, source valueobjects.BranchPath) (valueobjects.BranchPath, error) {
	var target valueobjects.BranchPath
	err := s.update(ctx, func() error {
		repo, err := s.viewRepository(id)
		if err != nil {
			return err
		}
		out, p, err := versioning.MergeIntoDefault(repo, source, s.deps.Clock.Now())
		if err != nil {
			return err
		}
		target = p
		s.writeBack(out)
		return nil
	})
	if err == nil {
		s.logger.Info("Merged branch",
			zap.String("repository", id.String()),
			zap.String("source", source.String()),
			zap.String("target", target.String()))
	}
	return target, err
}

// SetActiveWorkspace selects the repository opened as workspace root
func (s *KnowledgeService) SetActiveWorkspace(ctx context.Context, id valueobjects.ID) error {
	return s.update(ctx, func() error {
		s.own.ActiveWorkspace = id
		return nil
	})
}

// SetView stores view metadata under key
func (s *KnowledgeService) SetView(ctx context.Context, key string, view aggregates.ViewMetadata) error {
	return s.update(ctx, func() error {
		s.own = s.own.WithView(key, view)
		return nil
	})
}

// DeleteView removes view metadata
func (s *KnowledgeService) DeleteView(ctx context.Context, key string) error {
	return s.update(ctx, func() error {
		if _, ok := s.own.Views[key]; !ok {
			return pkgerrors.NewNotFoundError(fmt.Sprintf("view %s", key))
		}
		s.own = s.own.WithoutView(key)
		return nil
	})
}

// AddContact follows another author; their repositories show up as remote
// branches after the next sync
func (s *KnowledgeService) AddContact(ctx context.Context, contact valueobjects.AuthorID) error {
	if contact == s.author {
		return pkgerrors.NewValidationError("cannot follow yourself")
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.ensureLoaded(ctx); err != nil {
		return err
	}
	s.contacts[contact] = struct{}{}
	return s.persist(ctx)
}

// Contacts returns the followed authors in sorted order
func (s *KnowledgeService) Contacts(ctx context.Context) ([]valueobjects.AuthorID, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.ensureLoaded(ctx); err != nil {
		return nil, err
	}
	return s.contactList(), nil
}

// View returns the merged view
func (s *KnowledgeService) View(ctx context.Context) (aggregates.KnowledgeData, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.ensureLoaded(ctx); err != nil {
		return aggregates.KnowledgeData{}, err
	}
	return s.view, nil
}

// Publish stores everything changed since the last publish as chunked
// knowledge events and fans them out. Fan-out is best effort: events that
// could not be delivered stay pending for the outbox processor. It returns
// the number of chunks written.
func (s *KnowledgeService) Publish(ctx context.Context) (int, error) {
	ctx, span := tracer.Start(ctx, "KnowledgeService.Publish",
		trace.WithAttributes(attribute.String("author", s.author.String())))
	defer span.End()
	start := time.Now()

	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.ensureLoaded(ctx); err != nil {
		span.RecordError(err)
		return 0, err
	}

	d := diff.Compare(s.published, s.own)
	if d.IsEmpty() {
		return 0, nil
	}

	chunks, err := wire.SplitDiff(d, s.author, s.deps.MaxChunkChars)
	if err != nil {
		span.RecordError(err)
		return 0, err
	}
	evts := make([]events.KnowledgeEvent, 0, len(chunks))
	for _, chunk := range chunks {
		payload, err := wire.Encode(chunk, s.author)
		if err != nil {
			span.RecordError(err)
			return 0, err
		}
		at := s.deps.Clock.Now()
		id := ulid.MustNew(ulid.Timestamp(at), ulid.DefaultEntropy()).String()
		evts = append(evts, events.NewKnowledgeDiffEvent(id, s.author, payload, at))
	}

	if err := s.deps.Events.Append(ctx, evts); err != nil {
		s.deps.Metrics.RecordPublishFailure("append")
		span.RecordError(err)
		return 0, fmt.Errorf("failed to append events: %w", err)
	}
	s.published = s.own
	if err := s.persist(ctx); err != nil {
		s.logger.Warn("Failed to persist published snapshot", zap.Error(err))
	}

	if s.deps.Publisher != nil {
		if err := s.deps.Publisher.PublishBatch(ctx, evts); err != nil {
			stage := "fanout"
			if pkgerrors.IsUnavailable(err) {
				stage = "fanout_unavailable"
			}
			s.deps.Metrics.RecordPublishFailure(stage)
			s.logger.Warn("Fan-out failed, leaving events in outbox",
				zap.Int("events", len(evts)), zap.Error(err))
		} else if err := s.deps.Events.MarkPublished(ctx, evts); err != nil {
			s.logger.Warn("Failed to mark events published", zap.Error(err))
		}
	}

	s.deps.Metrics.RecordPublish(len(evts), time.Since(start))
	span.SetAttributes(attribute.Int("chunks", len(evts)))
	s.logger.Info("Published knowledge diff", zap.Int("chunks", len(evts)))
	return len(evts), nil
}

// Sync reads the events of every contact, rebuilds each contact's
// snapshot and refreshes the merged view. The owned snapshot is
// never replaced by what was read back.
func (s *KnowledgeService) Sync(ctx context.Context) error {
	ctx, span := tracer.Start(ctx, "KnowledgeService.Sync",
		trace.WithAttributes(attribute.String("author", s.author.String())))
	defer span.End()
	start := time.Now()

	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.ensureLoaded(ctx); err != nil {
		span.RecordError(err)
		return err
	}

	contacts := s.contactList()
	if len(contacts) == 0 {
		s.others = make(map[valueobjects.AuthorID]aggregates.KnowledgeData)
		s.rebuildView()
		return nil
	}

	evts, err := s.deps.Events.ListByAuthors(ctx, contacts)
	if err != nil {
		span.RecordError(err)
		return fmt.Errorf("failed to list events: %w", err)
	}

	snapshots := s.decoder.Reconstruct(evts)
	delete(snapshots, s.author)
	s.others = snapshots
	s.rebuildView()

	s.deps.Metrics.RecordSync(len(evts), time.Since(start))
	span.SetAttributes(attribute.Int("events", len(evts)), attribute.Int("authors", len(snapshots)))
	s.logger.Debug("Synced contacts",
		zap.Int("events", len(evts)),
		zap.Int("authors", len(snapshots)),
		zap.Int("repositories", len(s.view.Repositories)))
	return nil
}
