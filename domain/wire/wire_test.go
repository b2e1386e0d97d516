package wire

import (
	"encoding/json"
	"fmt"
	"strings"
	"testing"
	"time"
	"unicode/utf8"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"

	"graphsync/domain/core/aggregates"
	"graphsync/domain/core/entities"
	"graphsync/domain/core/valueobjects"
	"graphsync/domain/diff"
	"graphsync/domain/events"
	pkgerrors "graphsync/pkg/errors"
)

const alice valueobjects.AuthorID = "alice"

var t0 = time.Date(2024, 7, 1, 9, 30, 0, 0, time.UTC)

func text(s string) entities.Node {
	return entities.NewNode(s, valueobjects.NodeTypeText)
}

func snapshot(t *testing.T, n int) aggregates.KnowledgeData {
	t.Helper()
	bobMain := valueobjects.RemoteBranch("bob", "main")
	k := aggregates.NewKnowledgeData()
	for i := 0; i < n; i++ {
		id := valueobjects.ID(fmt.Sprintf("repo-%02d", i))
		node := text(fmt.Sprintf("node %d ünïcödé", i)).
			WithRelation(valueobjects.RelationChildren, "repo-00", "missing")
		repo := aggregates.NewRepository(node, id, &bobMain).CommitAll(t0)
		staged, err := repo.Stage(node.WithText("draft"), "main")
		require.NoError(t, err)
		k = k.WithRepository(staged)
	}
	k.ActiveWorkspace = "repo-00"
	return k.WithView("root", aggregates.ViewMetadata{Width: 2, Branch: &bobMain, Expanded: true})
}

func TestEncodeDecode_RoundTrip(t *testing.T) {
	base := snapshot(t, 2)
	updated := base.WithoutRepository("repo-01").WithoutView("root").WithRepository(aggregates.EmptyRepository("bare"))
	updated.ActiveWorkspace = "bare"

	for _, d := range []diff.Diff{diff.Compare(aggregates.NewKnowledgeData(), base), diff.Compare(base, updated)} {
		data, err := Encode(d, alice)
		require.NoError(t, err)

		decoded, err := Decode(data, alice)
		require.NoError(t, err)

		for _, start := range []aggregates.KnowledgeData{aggregates.NewKnowledgeData(), base} {
			assert.True(t, diff.Apply(start, decoded).Equal(diff.Apply(start, d)))
		}
	}
}

func TestEncode_EmptyDiff(t *testing.T) {
	data, err := Encode(diff.Diff{}, alice)
	require.NoError(t, err)
	assert.Equal(t, "{}", string(data))

	decoded, err := Decode(data, alice)
	require.NoError(t, err)
	assert.True(t, decoded.IsEmpty())
}

func TestEncode_Tombstones(t *testing.T) {
	d := diff.Diff{
		Repositories: map[valueobjects.ID]*diff.RepositoryDiff{
			"gone": nil,
			"kept": {Branches: map[string]*entities.Branch{"tmp": nil}},
		},
		Views: map[string]*aggregates.ViewMetadata{"v": nil},
	}
	data, err := Encode(d, alice)
	require.NoError(t, err)
	assert.JSONEq(t, `{"r":{"gone":null,"kept":{"b":{"tmp":null}}},"v":{"v":null}}`, string(data))

	decoded, err := Decode(data, alice)
	require.NoError(t, err)
	gone, ok := decoded.Repositories["gone"]
	assert.True(t, ok)
	assert.Nil(t, gone)
	tmp, ok := decoded.Repositories["kept"].Branches["tmp"]
	assert.True(t, ok)
	assert.Nil(t, tmp)
	v, ok := decoded.Views["v"]
	assert.True(t, ok)
	assert.Nil(t, v)
}

func TestDiffToWire_SelfMarker(t *testing.T) {
	self := valueobjects.LocalBranch("main")
	bob := valueobjects.RemoteBranch("bob", "draft")
	d := diff.Diff{
		Repositories: map[valueobjects.ID]*diff.RepositoryDiff{
			"r": {Branches: map[string]*entities.Branch{
				"a": {Head: "0123456789", Origin: &self},
				"b": {Head: "0123456789", Origin: &bob},
			}},
		},
	}

	w := DiffToWire(d, alice)
	assert.Equal(t, &WirePath{Author: valueobjects.SelfMarker, Name: "main"}, w.Repositories["r"].Branches["a"].Origin)
	assert.Equal(t, &WirePath{Author: "bob", Name: "draft"}, w.Repositories["r"].Branches["b"].Origin)

	back, err := WireToDiff(w, alice)
	require.NoError(t, err)
	assert.Equal(t, self, *back.Repositories["r"].Branches["a"].Origin)
	assert.Equal(t, bob, *back.Repositories["r"].Branches["b"].Origin)

	// decoded by bob, paths naming bob are bob's own branches
	asBob, err := WireToDiff(w, "bob")
	require.NoError(t, err)
	assert.Equal(t, valueobjects.LocalBranch("draft"), *asBob.Repositories["r"].Branches["b"].Origin)
}

func TestDecode_Failures(t *testing.T) {
	tests := []struct {
		name    string
		payload string
	}{
		{name: "not json", payload: `{"r":`},
		{name: "wrong shape", payload: `{"r":[1,2]}`},
		{name: "bad commit hash", payload: `{"r":{"x":{"c":{"nothex!!!!":{"d":1}}}}}`},
		{name: "bad parent hash", payload: `{"r":{"x":{"c":{"0123456789":{"p":["abc"],"d":1}}}}}`},
		{name: "commit tombstone", payload: `{"r":{"x":{"c":{"0123456789":null}}}}`},
		{name: "object tombstone", payload: `{"r":{"x":{"o":{"0123456789":null}}}}`},
		{name: "unknown node type", payload: `{"r":{"x":{"o":{"0123456789":{"t":"a","y":"IMAGE"}}}}}`},
		{name: "branch name with colon", payload: `{"r":{"x":{"b":{"bob:main":{"h":"0123456789"}}}}}`},
		{name: "empty branch", payload: `{"r":{"x":{"b":{"main":{}}}}}`},
		{name: "bad head", payload: `{"r":{"x":{"b":{"main":{"h":"zz"}}}}}`},
		{name: "origin without author", payload: `{"r":{"x":{"b":{"main":{"h":"0123456789","o":{"n":"main"}}}}}}`},
		{name: "empty repository id", payload: `{"r":{"":null}}`},
		{name: "view path without name", payload: `{"v":{"k":{"b":{"a":"@"}}}}`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Decode([]byte(tt.payload), alice)
			require.Error(t, err)
			assert.True(t, pkgerrors.IsDecodeFailure(err))
		})
	}
}

func TestSplitDiff(t *testing.T) {
	base := snapshot(t, 1)
	d := diff.Compare(base, snapshot(t, 7))
	require.Len(t, d.Repositories, 6)

	whole, err := Encode(d, alice)
	require.NoError(t, err)
	limit := utf8.RuneCount(whole) / 3

	chunks, err := SplitDiff(d, alice, limit)
	require.NoError(t, err)
	require.Greater(t, len(chunks), 1)

	seen := make(map[valueobjects.ID]int)
	for i, c := range chunks {
		data, err := Encode(c, alice)
		require.NoError(t, err)
		if len(c.Repositories) > 1 {
			assert.LessOrEqual(t, utf8.RuneCount(data), limit)
		}
		if i > 0 {
			assert.Nil(t, c.Views)
			assert.Nil(t, c.ActiveWorkspace)
		}
		for id := range c.Repositories {
			seen[id]++
		}
	}
	for id := range d.Repositories {
		assert.Equal(t, 1, seen[id], "repository %s in exactly one chunk", id)
	}
}

func TestSplitDiff_OversizedRepositoriesStayWhole(t *testing.T) {
	d := diff.Compare(aggregates.NewKnowledgeData(), snapshot(t, 3))

	chunks, err := SplitDiff(d, alice, 10)
	require.NoError(t, err)
	require.Len(t, chunks, 4)

	assert.Empty(t, chunks[0].Repositories)
	assert.NotNil(t, chunks[0].Views)
	assert.NotNil(t, chunks[0].ActiveWorkspace)
	for _, c := range chunks[1:] {
		assert.Len(t, c.Repositories, 1)
	}
}

func TestSplitDiff_Edges(t *testing.T) {
	chunks, err := SplitDiff(diff.Diff{}, alice, 100)
	require.NoError(t, err)
	assert.Empty(t, chunks)

	_, err = SplitDiff(diff.Diff{}, alice, 0)
	assert.True(t, pkgerrors.IsInvalidOperation(err))

	d := diff.Compare(aggregates.NewKnowledgeData(), snapshot(t, 3))
	chunks, err = SplitDiff(d, alice, DefaultMaxChunkChars)
	require.NoError(t, err)
	assert.Len(t, chunks, 1)
}

func TestSplitDiff_AnyPermutationEqualsWholeDiff(t *testing.T) {
	base := snapshot(t, 2)
	updated := snapshot(t, 5).WithoutRepository("repo-00")
	updated.ActiveWorkspace = "repo-03"
	d := diff.Compare(base, updated)

	whole, err := Encode(d, alice)
	require.NoError(t, err)
	chunks, err := SplitDiff(d, alice, utf8.RuneCount(whole)/3)
	require.NoError(t, err)
	require.GreaterOrEqual(t, len(chunks), 3)

	// chunks travel encoded
	decoded := make([]diff.Diff, len(chunks))
	for i, c := range chunks {
		data, err := Encode(c, alice)
		require.NoError(t, err)
		decoded[i], err = Decode(data, alice)
		require.NoError(t, err)
	}

	want := diff.Apply(base, d)
	require.True(t, want.Equal(updated))
	for _, order := range permutations(len(decoded)) {
		got := base
		for _, i := range order {
			got = diff.Apply(got, decoded[i])
		}
		assert.True(t, got.Equal(want), "order %v", order)
	}
}

func permutations(n int) [][]int {
	if n == 0 {
		return [][]int{{}}
	}
	var out [][]int
	for _, p := range permutations(n - 1) {
		for i := 0; i <= len(p); i++ {
			perm := make([]int, 0, n)
			perm = append(perm, p[:i]...)
			perm = append(perm, n-1)
			perm = append(perm, p[i:]...)
			out = append(out, perm)
		}
	}
	return out
}

func diffEvent(t *testing.T, id string, author valueobjects.AuthorID, d diff.Diff, at time.Time) events.KnowledgeEvent {
	t.Helper()
	data, err := Encode(d, author)
	require.NoError(t, err)
	return events.NewKnowledgeDiffEvent(id, author, data, at)
}

func TestDecoder_ParseEvents(t *testing.T) {
	core, logs := observer.New(zap.WarnLevel)
	decoder := NewDecoder(zap.New(core))

	good := diffEvent(t, "e1", alice, diff.Compare(aggregates.NewKnowledgeData(), snapshot(t, 1)), t0)
	corrupt := events.NewKnowledgeDiffEvent("e2", alice, []byte("{not json"), t0)
	other := events.KnowledgeEvent{ID: "e3", Author: alice, Kind: "contact.list", Payload: "{}"}

	parsed := decoder.ParseEvents([]events.KnowledgeEvent{good, corrupt, other, good})
	assert.Len(t, parsed, 1)
	assert.Contains(t, parsed, "e1")

	require.Equal(t, 1, logs.Len())
	assert.Equal(t, "e2", logs.All()[0].ContextMap()["event_id"])
}

func TestDecoder_Reconstruct(t *testing.T) {
	decoder := NewDecoder(zap.NewNop())

	v1 := snapshot(t, 2)
	v2 := v1.WithoutRepository("repo-01")
	v3 := v2.WithRepository(aggregates.NewRepository(text("late"), "late", nil).CommitAll(t0))

	empty := aggregates.NewKnowledgeData()
	e1 := diffEvent(t, "a1", alice, diff.Compare(empty, v1), t0)
	e2 := diffEvent(t, "a2", alice, diff.Compare(v1, v2), t0.Add(time.Second))
	e3 := diffEvent(t, "a3", alice, diff.Compare(v2, v3), t0.Add(2*time.Second))
	bobData := empty.WithRepository(aggregates.NewRepository(text("bob"), "bob-repo", nil).CommitAll(t0))
	bobEvent := diffEvent(t, "b1", "bob", diff.Compare(empty, bobData), t0)
	corrupt := events.NewKnowledgeDiffEvent("bad", alice, []byte(`{"r":{"x":{"b":{"main":{}}}}}`), t0.Add(time.Second))

	// delivered out of order, with a redelivery and a corrupt event
	got := decoder.Reconstruct([]events.KnowledgeEvent{e3, bobEvent, e2, corrupt, e1, e2})

	require.Len(t, got, 2)
	assert.True(t, got[alice].Equal(v3))
	assert.True(t, got["bob"].Equal(bobData))
}

func TestDecoder_ReconstructTiesBrokenByID(t *testing.T) {
	decoder := NewDecoder(nil)
	empty := aggregates.NewKnowledgeData()
	v1 := snapshot(t, 1)
	v2 := v1.WithoutRepository("repo-00")

	first := diffEvent(t, "0001", alice, diff.Compare(empty, v1), t0)
	second := diffEvent(t, "0002", alice, diff.Compare(v1, v2), t0)

	got := decoder.Reconstruct([]events.KnowledgeEvent{second, first})
	assert.True(t, got[alice].Equal(v2))
}

func TestWireDiff_CompactKeys(t *testing.T) {
	d := diff.Compare(aggregates.NewKnowledgeData(), snapshot(t, 1))
	data, err := Encode(d, alice)
	require.NoError(t, err)

	var raw map[string]json.RawMessage
	require.NoError(t, json.Unmarshal(data, &raw))
	assert.ElementsMatch(t, []string{"r", "w", "v"}, keys(raw))
	assert.True(t, strings.Contains(string(data), `"y":"TEXT"`))
}

func keys(m map[string]json.RawMessage) []string {
	out := make([]string, 0, len(m))
	for k := range m {
		out = append(out, k)
	}
	return out
}
