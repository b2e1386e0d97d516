package valueobjects

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"sort"
)

// HashLength is the number of hex characters in a Hash (40 bits).
const HashLength = 10

// Hash is a truncated SHA-256 content digest identifying a commit and the
// node object it points at.
type Hash string

// HashContent digests a canonical payload into a Hash
func HashContent(payload []byte) Hash {
	sum := sha256.Sum256(payload)
	return Hash(hex.EncodeToString(sum[:])[:HashLength])
}

// ParseHash validates a hash received from outside the process
func ParseHash(s string) (Hash, error) {
	if len(s) != HashLength {
		return "", fmt.Errorf("hash %q must be %d hex characters", s, HashLength)
	}
	for _, c := range s {
		if !(c >= '0' && c <= '9' || c >= 'a' && c <= 'f') {
			return "", fmt.Errorf("hash %q contains non-hex character %q", s, c)
		}
	}
	return Hash(s), nil
}

// String returns the string representation of the Hash
func (h Hash) String() string {
	return string(h)
}

// IsZero checks if the Hash is the zero value
func (h Hash) IsZero() bool {
	return h == ""
}

// SortedHashes returns a sorted, de-duplicated copy of hashes
func SortedHashes(hashes []Hash) []Hash {
	if len(hashes) == 0 {
		return nil
	}
	seen := make(map[Hash]struct{}, len(hashes))
	out := make([]Hash, 0, len(hashes))
	for _, h := range hashes {
		if _, ok := seen[h]; ok {
			continue
		}
		seen[h] = struct{}{}
		out = append(out, h)
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}
