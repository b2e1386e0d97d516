package valueobjects

import (
	"errors"
	"strings"

	"github.com/google/uuid"
)

// ID identifies a repository. Every knowledge node lives in a repository of
// its own, so relation lists refer to nodes by repository ID.
type ID string

// NewID creates a new random ID
func NewID() ID {
	return ID(uuid.New().String())
}

// NewIDFromString creates an ID from an existing string
func NewIDFromString(s string) (ID, error) {
	if strings.TrimSpace(s) == "" {
		return "", errors.New("id cannot be empty")
	}
	return ID(s), nil
}

// String returns the string representation of the ID
func (id ID) String() string {
	return string(id)
}

// IsZero checks if the ID is the zero value
func (id ID) IsZero() bool {
	return id == ""
}

// AuthorID identifies the owner of a knowledge snapshot, typically the
// public key or subject the transport authenticates events with.
type AuthorID string

// NewAuthorID validates and creates an AuthorID
func NewAuthorID(s string) (AuthorID, error) {
	if strings.TrimSpace(s) == "" {
		return "", errors.New("author ID cannot be empty")
	}
	if s == SelfMarker {
		return "", errors.New("author ID cannot be the self marker")
	}
	return AuthorID(s), nil
}

// String returns the string representation of the AuthorID
func (a AuthorID) String() string {
	return string(a)
}

// IsZero checks if the AuthorID is the zero value
func (a AuthorID) IsZero() bool {
	return a == ""
}

// SelfMarker stands in for the encoding author inside wire payloads.
const SelfMarker = "@"
