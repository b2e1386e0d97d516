package versioning

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"graphsync/domain/core/aggregates"
	"graphsync/domain/core/entities"
	"graphsync/domain/core/valueobjects"
	pkgerrors "graphsync/pkg/errors"
)

var t0 = time.Date(2024, 5, 1, 10, 0, 0, 0, time.UTC)

func text(s string) entities.Node {
	return entities.NewNode(s, valueobjects.NodeTypeText)
}

func local(name string) valueobjects.BranchPath {
	return valueobjects.LocalBranch(name)
}

// commitOn stages node on branch and commits
func commitOn(t *testing.T, repo aggregates.Repository, branch string, node entities.Node) aggregates.Repository {
	t.Helper()
	staged, err := repo.Stage(node, branch)
	require.NoError(t, err)
	return staged.CommitAll(t0)
}

// branchFrom creates branch at the head of main
func branchFrom(repo aggregates.Repository, name string) aggregates.Repository {
	return repo.SetBranch(name, entities.Branch{Head: repo.Branches["main"].Head})
}

func TestDescribeDivergence_HelloWorld(t *testing.T) {
	repo := aggregates.NewRepository(text("Hello World"), "r", nil).CommitAll(t0)
	h1 := repo.Branches["main"].Head
	repo = commitOn(t, repo, "main", text("Hello World!"))
	h2 := repo.Branches["main"].Head

	assert.Equal(t, []valueobjects.Hash{h1}, repo.Commits[h2].Parents)
	assert.Equal(t, "1 changes ahead", DescribeHashDivergence(repo, h1, h2))
	assert.Equal(t, "1 changes behind", DescribeHashDivergence(repo, h2, h1))
	assert.Equal(t, NoChanges, DescribeHashDivergence(repo, h2, h2))

	repo = repo.SetBranch("old", entities.Branch{Head: h1})
	got, err := DescribeDivergence(repo, local("old"), local("main"))
	require.NoError(t, err)
	assert.Equal(t, "1 changes ahead", got)

	_, err = DescribeDivergence(repo, local("old"), local("missing"))
	assert.True(t, pkgerrors.IsNotFound(err))
}

func TestDescribeDivergence_EqualContentAtDifferentCommits(t *testing.T) {
	repo := aggregates.NewRepository(text("x"), "r", nil).CommitAll(t0)
	first := repo.Branches["main"].Head
	repo = commitOn(t, repo, "main", text("y"))
	repo = commitOn(t, repo, "main", text("x"))
	last := repo.Branches["main"].Head
	require.NotEqual(t, first, last)

	repo = repo.SetBranch("old", entities.Branch{Head: first})
	got, err := DescribeDivergence(repo, local("old"), local("main"))
	require.NoError(t, err)
	assert.Equal(t, NoChanges, got, "content comparison comes first")
	assert.Equal(t, "2 changes ahead", DescribeHashDivergence(repo, first, last))
}

func TestAncestorDistance(t *testing.T) {
	repo := aggregates.NewRepository(text("a"), "r", nil).CommitAll(t0)
	a := repo.Branches["main"].Head
	repo = commitOn(t, repo, "main", text("b"))
	repo = commitOn(t, repo, "main", text("c"))
	c := repo.Branches["main"].Head

	d, ok := AncestorDistance(repo, a, c)
	assert.True(t, ok)
	assert.Equal(t, 2, d)

	_, ok = AncestorDistance(repo, c, a)
	assert.False(t, ok)
	assert.True(t, IsFastForward(repo, a, c))
	assert.False(t, IsFastForward(repo, c, a))
}

func TestAncestorDistance_Cycle(t *testing.T) {
	repo := aggregates.EmptyRepository("r")
	repo.Commits["aaaaaaaaaa"] = entities.NewCommit("aaaaaaaaaa", []valueobjects.Hash{"bbbbbbbbbb"}, t0)
	repo.Commits["bbbbbbbbbb"] = entities.NewCommit("bbbbbbbbbb", []valueobjects.Hash{"aaaaaaaaaa"}, t0)

	_, ok := AncestorDistance(repo, "cccccccccc", "aaaaaaaaaa")
	assert.False(t, ok)
	d, ok := AncestorDistance(repo, "bbbbbbbbbb", "aaaaaaaaaa")
	assert.True(t, ok)
	assert.Equal(t, 1, d)
}

func TestMergeIntoDefault_FastForward(t *testing.T) {
	repo := aggregates.NewRepository(text("c1"), "r", nil).CommitAll(t0)
	c1 := repo.Branches["main"].Head
	repo = branchFrom(repo, "other")
	repo = commitOn(t, repo, "other", text("c2"))
	c2 := repo.Branches["other"].Head
	require.Equal(t, []valueobjects.Hash{c1}, repo.Commits[c2].Parents)

	merged, path, err := MergeIntoDefault(repo, local("other"), t0)
	require.NoError(t, err)
	assert.Equal(t, local("main"), path)
	assert.Equal(t, c2, merged.Branches["main"].Head)
	assert.Equal(t, repo.Len(), merged.Len(), "no merge commit")
}

func TestMergeIntoDefault_DefaultAhead(t *testing.T) {
	repo := aggregates.NewRepository(text("c1"), "r", nil).CommitAll(t0)
	repo = branchFrom(repo, "old")
	repo = commitOn(t, repo, "main", text("c2"))
	head := repo.Branches["main"].Head

	merged, _, err := MergeIntoDefault(repo, local("old"), t0)
	require.NoError(t, err)
	assert.Equal(t, head, merged.Branches["main"].Head)
	assert.Equal(t, repo.Len(), merged.Len())
}

func TestMergeIntoDefault_Diverged(t *testing.T) {
	repo := aggregates.NewRepository(text("base"), "r", nil).CommitAll(t0)
	repo = branchFrom(repo, "theirs")
	repo = commitOn(t, repo, "main", text("mine"))
	repo = commitOn(t, repo, "theirs", text("theirs"))
	headA := repo.Branches["main"].Head
	headB := repo.Branches["theirs"].Head

	status, err := DescribeDivergence(repo, local("main"), local("theirs"))
	require.NoError(t, err)
	assert.Equal(t, VersionDiffers, status)

	merged, path, err := MergeIntoDefault(repo, local("theirs"), t0.Add(time.Hour))
	require.NoError(t, err)
	assert.Equal(t, local("main"), path)
	assert.Equal(t, repo.Len()+1, merged.Len(), "exactly one new commit")

	mergeHead := merged.Branches["main"].Head
	assert.ElementsMatch(t, []valueobjects.Hash{headA, headB}, merged.Commits[mergeHead].Parents)

	node, err := merged.Resolve(local("main"))
	require.NoError(t, err)
	assert.Equal(t, "theirs", node.Text)

	status, err = DescribeDivergence(merged, local("main"), local("theirs"))
	require.NoError(t, err)
	assert.Equal(t, NoChanges, status)
}

func TestMergeIntoDefault_DivergedSourceWithStagedEdit(t *testing.T) {
	repo := aggregates.NewRepository(text("base"), "r", nil).CommitAll(t0)
	repo = branchFrom(repo, "other")
	repo = commitOn(t, repo, "main", text("main edit"))
	repo = commitOn(t, repo, "other", text("other edit"))
	repo, err := repo.Stage(text("other staged"), "other")
	require.NoError(t, err)
	headA := repo.Branches["main"].Head
	headB := repo.Branches["other"].Head

	merged, _, err := MergeIntoDefault(repo, local("other"), t0)
	require.NoError(t, err)

	main := merged.Branches["main"]
	assert.False(t, main.HasStaged())
	assert.ElementsMatch(t, []valueobjects.Hash{headA, headB}, merged.Commits[main.Head].Parents)

	node, err := merged.Resolve(local("main"))
	require.NoError(t, err)
	assert.Equal(t, "other staged", node.Text)

	status, err := DescribeDivergence(merged, local("main"), local("other"))
	require.NoError(t, err)
	assert.Equal(t, NoChanges, status)
}

func TestMergeIntoDefault_FastForwardCarriesStagedEdit(t *testing.T) {
	tests := []struct {
		name  string
		build func(t *testing.T) aggregates.Repository
	}{
		{
			name: "source ahead",
			build: func(t *testing.T) aggregates.Repository {
				repo := aggregates.NewRepository(text("c1"), "r", nil).CommitAll(t0)
				repo = branchFrom(repo, "other")
				return commitOn(t, repo, "other", text("c2"))
			},
		},
		{
			name: "default ahead",
			build: func(t *testing.T) aggregates.Repository {
				repo := aggregates.NewRepository(text("c1"), "r", nil).CommitAll(t0)
				repo = branchFrom(repo, "other")
				return commitOn(t, repo, "main", text("c2"))
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			repo, err := tt.build(t).Stage(text("draft"), "other")
			require.NoError(t, err)

			merged, _, err := MergeIntoDefault(repo, local("other"), t0)
			require.NoError(t, err)
			assert.Equal(t, repo.Len(), merged.Len(), "no merge commit")

			node, err := merged.Resolve(local("main"))
			require.NoError(t, err)
			assert.Equal(t, "draft", node.Text)
		})
	}
}

func TestMergeIntoDefault_Errors(t *testing.T) {
	repo := aggregates.NewRepository(text("x"), "r", nil)

	_, _, err := MergeIntoDefault(repo, local("main"), t0)
	assert.True(t, pkgerrors.IsInvalidOperation(err))

	_, _, err = MergeIntoDefault(repo, local("missing"), t0)
	assert.True(t, pkgerrors.IsNotFound(err))
}

func TestMergeIntoDefault_UncommittedDefault(t *testing.T) {
	remote := aggregates.NewRepository(text("remote"), "r", nil).CommitAll(t0)
	repo := FetchRemote(aggregates.NewRepository(text("draft"), "r", nil), remote, "bob", "alice")

	merged, path, err := MergeIntoDefault(repo, valueobjects.RemoteBranch("bob", "main"), t0)
	require.NoError(t, err)
	assert.Equal(t, local("main"), path)

	main := merged.Branches["main"]
	assert.Equal(t, remote.Branches["main"].Head, main.Head)
	assert.False(t, main.HasStaged())
	require.NotNil(t, main.Origin)
	assert.Equal(t, valueobjects.RemoteBranch("bob", "main"), *main.Origin)
}

func TestMergeIntoDefault_RemoteSourceCleanup(t *testing.T) {
	base := aggregates.NewRepository(text("base"), "r", nil).CommitAll(t0)

	theirs := branchFrom(base, "idea")
	theirs = commitOn(t, theirs, "idea", text("their idea"))
	mine := commitOn(t, base, "main", text("mine"))

	repo := FetchRemote(mine, theirs, "bob", "alice")
	merged, path, err := MergeIntoDefault(repo, valueobjects.RemoteBranch("bob", "idea"), t0)
	require.NoError(t, err)
	assert.Equal(t, local("main"), path)
	assert.Equal(t, []string{"main"}, merged.LocalBranchNames(), "transient tracking branch removed")

	node, err := merged.Resolve(local("main"))
	require.NoError(t, err)
	assert.Equal(t, "their idea", node.Text)
}

func TestMergeIntoDefault_NoLocalBranches(t *testing.T) {
	remote := aggregates.NewRepository(text("remote"), "r", nil).CommitAll(t0)
	repo := Clone(remote, "bob")

	merged, path, err := MergeIntoDefault(repo, valueobjects.RemoteBranch("bob", "main"), t0)
	require.NoError(t, err)
	assert.Equal(t, local("main"), path)
	assert.Equal(t, remote.Branches["main"].Head, merged.Branches["main"].Head)
}

func TestCheckoutRemoteBranch(t *testing.T) {
	remote := aggregates.NewRepository(text("x"), "r", nil).CommitAll(t0)
	repo := FetchRemote(aggregates.NewRepository(text("mine"), "r", nil), remote, "bob", "alice")
	bobMain := valueobjects.RemoteBranch("bob", "main")

	repo, first, err := CheckoutRemoteBranch(repo, bobMain)
	require.NoError(t, err)
	assert.Equal(t, local("main-1"), first)

	repo, second, err := CheckoutRemoteBranch(repo, bobMain)
	require.NoError(t, err)
	assert.Equal(t, local("main-2"), second)

	b := repo.Branches["main-1"]
	assert.Equal(t, remote.Branches["main"].Head, b.Head)
	require.NotNil(t, b.Origin)
	assert.Equal(t, bobMain, *b.Origin)
	// remote state untouched
	assert.Nil(t, repo.Remotes["bob"]["main"].Origin)

	_, _, err = CheckoutRemoteBranch(repo, local("main"))
	assert.True(t, pkgerrors.IsInvalidOperation(err))
	_, _, err = CheckoutRemoteBranch(repo, valueobjects.RemoteBranch("carol", "main"))
	assert.True(t, pkgerrors.IsNotFound(err))
}

func TestEnsureLocalTracking(t *testing.T) {
	remote := aggregates.NewRepository(text("x"), "r", nil).CommitAll(t0)
	bobMain := valueobjects.RemoteBranch("bob", "main")

	t.Run("local path is a no-op", func(t *testing.T) {
		repo := aggregates.NewRepository(text("x"), "r", nil)
		out, path, err := EnsureLocalTracking(repo, local("main"))
		require.NoError(t, err)
		assert.Equal(t, local("main"), path)
		assert.True(t, out.Equal(repo))
	})

	t.Run("reuses branch at same head", func(t *testing.T) {
		repo := FetchRemote(remote, remote, "bob", "alice")
		out, path, err := EnsureLocalTracking(repo, bobMain)
		require.NoError(t, err)
		assert.Equal(t, local("main"), path)
		assert.Equal(t, []string{"main"}, out.LocalBranchNames())
	})

	t.Run("staged edits prevent reuse", func(t *testing.T) {
		repo := FetchRemote(remote, remote, "bob", "alice")
		repo, err := repo.Stage(text("edit"), "main")
		require.NoError(t, err)
		out, path, err := EnsureLocalTracking(repo, bobMain)
		require.NoError(t, err)
		assert.Equal(t, local("main-1"), path)
		assert.Len(t, out.Branches, 2)
	})
}

func TestFetchRemote_RewritesOrigins(t *testing.T) {
	aliceMain := valueobjects.RemoteBranch("alice", "main")
	carolMain := valueobjects.RemoteBranch("carol", "main")
	bobRepo := aggregates.NewRepository(text("x"), "r", &aliceMain).CommitAll(t0)
	bobRepo = bobRepo.SetBranch("c", entities.Branch{Head: bobRepo.Branches["main"].Head, Origin: &carolMain})

	fetched := FetchRemote(aggregates.EmptyRepository("r"), bobRepo, "bob", "alice")

	tracked := fetched.Remotes["bob"]
	require.Len(t, tracked, 2)
	assert.Equal(t, local("main"), *tracked["main"].Origin)
	assert.Equal(t, carolMain, *tracked["c"].Origin)
	assert.Equal(t, bobRepo.Len(), fetched.Len())
	assert.Empty(t, fetched.Branches)
}

func TestPull_FastForwardsTrackingBranch(t *testing.T) {
	bob := aggregates.NewRepository(text("v1"), "r", nil).CommitAll(t0)

	alice := Clone(bob, "bob")
	assert.Empty(t, alice.Branches)
	alice, path, err := CheckoutRemoteBranch(alice, valueobjects.RemoteBranch("bob", "main"))
	require.NoError(t, err)
	require.Equal(t, local("main"), path)

	bob = commitOn(t, bob, "main", text("v2"))
	pulled := Pull(alice, bob, "bob", "alice")

	assert.Equal(t, bob.Branches["main"].Head, pulled.Branches["main"].Head)
	assert.Equal(t, bob.Len(), pulled.Len(), "no merge commit")
}

func TestPull_LeavesDivergedBranch(t *testing.T) {
	bob := aggregates.NewRepository(text("v1"), "r", nil).CommitAll(t0)
	alice, _, err := CheckoutRemoteBranch(Clone(bob, "bob"), valueobjects.RemoteBranch("bob", "main"))
	require.NoError(t, err)

	alice = commitOn(t, alice, "main", text("alice edit"))
	aliceHead := alice.Branches["main"].Head
	bob = commitOn(t, bob, "main", text("bob edit"))

	pulled := Pull(alice, bob, "bob", "alice")
	assert.Equal(t, aliceHead, pulled.Branches["main"].Head)
	assert.Equal(t, bob.Branches["main"].Head, pulled.Remotes["bob"]["main"].Head)

	status, err := DescribeDivergence(pulled, local("main"), valueobjects.RemoteBranch("bob", "main"))
	require.NoError(t, err)
	assert.Equal(t, VersionDiffers, status)
}

func TestMergeKnowledgeData(t *testing.T) {
	shared := aggregates.NewRepository(text("shared"), "shared", nil).CommitAll(t0)
	onlyBob := aggregates.NewRepository(text("bob only"), "bob-only", nil).CommitAll(t0)

	aliceData := aggregates.NewKnowledgeData().WithRepository(shared)
	aliceData.ActiveWorkspace = "shared"
	aliceData = aliceData.WithView("v", aggregates.ViewMetadata{Width: 1})

	bobShared := commitOn(t, shared, "main", text("shared v2"))
	bobData := aggregates.NewKnowledgeData().WithRepository(bobShared).WithRepository(onlyBob)
	bobData.ActiveWorkspace = "bob-only"
	bobData = bobData.WithView("v", aggregates.ViewMetadata{Width: 9})

	merged := MergeKnowledgeData(map[valueobjects.AuthorID]aggregates.KnowledgeData{
		"alice": aliceData,
		"bob":   bobData,
	}, "alice")

	assert.Equal(t, valueobjects.ID("shared"), merged.ActiveWorkspace)
	assert.Equal(t, 1, merged.Views["v"].Width)
	require.Len(t, merged.Repositories, 2)

	s := merged.Repositories["shared"]
	assert.Equal(t, shared.Branches["main"].Head, s.Branches["main"].Head)
	assert.Equal(t, bobShared.Branches["main"].Head, s.Remotes["bob"]["main"].Head)

	b := merged.Repositories["bob-only"]
	assert.Empty(t, b.Branches)
	node, err := b.Resolve(valueobjects.RemoteBranch("bob", "main"))
	require.NoError(t, err)
	assert.Equal(t, "bob only", node.Text)

	// inputs untouched
	assert.Empty(t, aliceData.Repositories["shared"].Remotes)
}
