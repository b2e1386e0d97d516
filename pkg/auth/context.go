package auth

import (
	"context"
	"errors"

	"graphsync/domain/core/valueobjects"
)

// ErrNoAuthor is returned when a request carries no authenticated author
var ErrNoAuthor = errors.New("no authenticated author in context")

type authorKey struct{}

// SetAuthorInContext stores the authenticated author
func SetAuthorInContext(ctx context.Context, author valueobjects.AuthorID) context.Context {
	return context.WithValue(ctx, authorKey{}, author)
}

// GetAuthorFromContext returns the authenticated author
func GetAuthorFromContext(ctx context.Context) (valueobjects.AuthorID, error) {
	author, ok := ctx.Value(authorKey{}).(valueobjects.AuthorID)
	if !ok || author.IsZero() {
		return "", ErrNoAuthor
	}
	return author, nil
}
