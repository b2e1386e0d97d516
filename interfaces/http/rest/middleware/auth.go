package middleware

import (
	"errors"
	"net/http"
	"strings"

	"go.uber.org/zap"

	"graphsync/pkg/auth"
	pkgerrors "graphsync/pkg/errors"
)

// Authenticate validates the bearer token and puts its author in the
// request context
func Authenticate(validator *auth.JWTValidator, errorHandler *pkgerrors.ErrorHandler, logger *zap.Logger) func(next http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			reject := func(message string) {
				errorHandler.Handle(w, r, pkgerrors.NewUnauthorizedError(message))
			}

			token := extractToken(r)
			if token == "" {
				reject("Missing authentication token")
				return
			}

			claims, err := validator.ValidateToken(token)
			if err != nil {
				logger.Warn("Invalid token",
					zap.Error(err),
					zap.String("path", r.URL.Path),
				)
				switch {
				case errors.Is(err, auth.ErrExpiredToken):
					reject("Token has expired")
				case errors.Is(err, auth.ErrInvalidSignature):
					reject("Invalid token signature")
				default:
					reject("Invalid token")
				}
				return
			}

			author, err := claims.Author()
			if err != nil {
				reject("Invalid token subject")
				return
			}

			logger.Debug("Request authenticated",
				zap.String("author", author.String()),
				zap.String("path", r.URL.Path),
				zap.String("method", r.Method),
			)

			ctx := auth.SetAuthorInContext(r.Context(), author)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// extractToken reads the token from the Authorization header
func extractToken(r *http.Request) string {
	header := r.Header.Get("Authorization")
	if header == "" {
		return ""
	}
	parts := strings.SplitN(header, " ", 2)
	if len(parts) == 2 && strings.EqualFold(parts[0], "bearer") {
		return strings.TrimSpace(parts[1])
	}
	return header
}
