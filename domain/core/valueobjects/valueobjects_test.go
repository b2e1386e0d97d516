package valueobjects

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewID(t *testing.T) {
	id := NewID()
	assert.False(t, id.IsZero())
	assert.NotEqual(t, id, NewID())

	_, err := NewIDFromString("   ")
	assert.Error(t, err)
}

func TestNewAuthorID(t *testing.T) {
	a, err := NewAuthorID("npub1alice")
	require.NoError(t, err)
	assert.Equal(t, "npub1alice", a.String())

	_, err = NewAuthorID("")
	assert.Error(t, err)
	_, err = NewAuthorID(SelfMarker)
	assert.Error(t, err)
}

func TestHashContent(t *testing.T) {
	h1 := HashContent([]byte("Hello World"))
	h2 := HashContent([]byte("Hello World"))
	h3 := HashContent([]byte("Hello World!"))

	assert.Len(t, h1.String(), HashLength)
	assert.Equal(t, h1, h2)
	assert.NotEqual(t, h1, h3)

	parsed, err := ParseHash(h1.String())
	require.NoError(t, err)
	assert.Equal(t, h1, parsed)
}

func TestParseHash(t *testing.T) {
	tests := []struct {
		name    string
		input   string
		wantErr bool
	}{
		{name: "valid", input: "0123456789", wantErr: false},
		{name: "too short", input: "abc", wantErr: true},
		{name: "uppercase", input: "ABCDEF0123", wantErr: true},
		{name: "non hex", input: "zzzzzzzzzz", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := ParseHash(tt.input)
			if tt.wantErr {
				assert.Error(t, err)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func TestSortedHashes(t *testing.T) {
	assert.Nil(t, SortedHashes(nil))
	assert.Equal(t, []Hash{"a", "b", "c"}, SortedHashes([]Hash{"c", "a", "b", "a"}))
}

func TestBranchPath(t *testing.T) {
	local := LocalBranch("main")
	assert.True(t, local.IsLocal())
	assert.Equal(t, "main", local.String())
	_, remote := local.Origin()
	assert.False(t, remote)

	bob := RemoteBranch("bob", "main")
	assert.False(t, bob.IsLocal())
	author, remote := bob.Origin()
	assert.True(t, remote)
	assert.Equal(t, AuthorID("bob"), author)
	assert.Equal(t, "bob:main", bob.String())

	assert.Equal(t, RemoteBranch("bob", "main"), bob)
	assert.NotEqual(t, local, bob)
}

func TestParseBranchPath(t *testing.T) {
	tests := []struct {
		name    string
		input   string
		want    BranchPath
		wantErr bool
	}{
		{name: "local", input: "main", want: LocalBranch("main")},
		{name: "remote", input: "bob:draft", want: RemoteBranch("bob", "draft")},
		{name: "empty", input: "", wantErr: true},
		{name: "missing name", input: "bob:", wantErr: true},
		{name: "missing author", input: ":main", wantErr: true},
		{name: "author with colons", input: "did:key:z6Mk:main", want: RemoteBranch("did:key:z6Mk", "main")},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ParseBranchPath(tt.input)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestBranchPath_StringRoundTrip(t *testing.T) {
	paths := []BranchPath{
		LocalBranch("main"),
		RemoteBranch("bob", "draft"),
		RemoteBranch("did:key:z6Mk", "main"),
		RemoteBranch("auth0|x:y", "main-1"),
	}
	for _, p := range paths {
		got, err := ParseBranchPath(p.String())
		require.NoError(t, err, p.String())
		assert.Equal(t, p, got)
	}
}

func TestValidBranchName(t *testing.T) {
	assert.True(t, ValidBranchName("main-1"))
	assert.False(t, ValidBranchName(""))
	assert.False(t, ValidBranchName("bob:main"))
}

func TestBranchPath_Relative(t *testing.T) {
	// bob's own branch is bob's remote branch from alice's point of view
	assert.Equal(t, RemoteBranch("bob", "main"), LocalBranch("main").Relative("bob", "alice"))
	// bob tracking alice's branch is a local branch for alice
	assert.Equal(t, LocalBranch("main"), RemoteBranch("alice", "main").Relative("bob", "alice"))
	// third parties are untouched
	assert.Equal(t, RemoteBranch("carol", "x"), RemoteBranch("carol", "x").Relative("bob", "alice"))
	// without a local author nothing becomes local
	assert.Equal(t, RemoteBranch("alice", "x"), RemoteBranch("alice", "x").Relative("bob", ""))
}

func TestNodeType(t *testing.T) {
	typ, err := ParseNodeType("TEXT")
	require.NoError(t, err)
	assert.Equal(t, NodeTypeText, typ)

	_, err = ParseNodeType("IMAGE")
	assert.Error(t, err)
}
