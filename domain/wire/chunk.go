package wire

import (
	"fmt"
	"unicode/utf8"

	"graphsync/domain/core/valueobjects"
	"graphsync/domain/diff"
	pkgerrors "graphsync/pkg/errors"
)

// DefaultMaxChunkChars is the chunk size used when none is configured
const DefaultMaxChunkChars = 10000

// SplitDiff cuts d into chunks whose encoding stays within maxChunkChars
// characters. Repositories are added in id order and never split, so a
// single repository larger than the limit forms an oversized chunk of its
// own. Only the first chunk carries the active workspace and views. An
// empty diff yields no chunks.
func SplitDiff(d diff.Diff, localAuthor valueobjects.AuthorID, maxChunkChars int) ([]diff.Diff, error) {
	if maxChunkChars <= 0 {
		return nil, pkgerrors.NewInvalidOperationError(fmt.Sprintf("chunk size must be positive, got %d", maxChunkChars))
	}
	if d.IsEmpty() {
		return nil, nil
	}

	var chunks []diff.Diff
	current := diff.Diff{ActiveWorkspace: d.ActiveWorkspace, Views: d.Views}

	for _, id := range d.RepositoryIDs() {
		candidate := withRepository(current, id, d.Repositories[id])
		size, err := encodedChars(candidate, localAuthor)
		if err != nil {
			return nil, err
		}
		if size > maxChunkChars && !current.IsEmpty() {
			chunks = append(chunks, current)
			current = withRepository(diff.Diff{}, id, d.Repositories[id])
			continue
		}
		current = candidate
	}
	if !current.IsEmpty() {
		chunks = append(chunks, current)
	}
	return chunks, nil
}

// withRepository returns a copy of chunk with one more repository entry
func withRepository(chunk diff.Diff, id valueobjects.ID, rd *diff.RepositoryDiff) diff.Diff {
	repos := make(map[valueobjects.ID]*diff.RepositoryDiff, len(chunk.Repositories)+1)
	for k, v := range chunk.Repositories {
		repos[k] = v
	}
	repos[id] = rd
	chunk.Repositories = repos
	return chunk
}

func encodedChars(d diff.Diff, localAuthor valueobjects.AuthorID) (int, error) {
	data, err := Encode(d, localAuthor)
	if err != nil {
		return 0, err
	}
	return utf8.RuneCount(data), nil
}
