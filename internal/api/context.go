package api

import (
	"context"
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/hyperengineering/recollect/internal/validation"
)

// userIDContextKey is the context key for the canonical user id.
type userIDContextKey struct{}

// ErrNoUserInContext indicates no user id was found in the context.
var ErrNoUserInContext = errors.New("no user id in context")

// WithUserID returns a new context with the user id attached.
func WithUserID(ctx context.Context, id string) context.Context {
	return context.WithValue(ctx, userIDContextKey{}, id)
}

// UserIDFromContext extracts the user id from the context.
// Returns ErrNoUserInContext if not present or empty.
func UserIDFromContext(ctx context.Context) (string, error) {
	id, ok := ctx.Value(userIDContextKey{}).(string)
	if !ok || id == "" {
		return "", ErrNoUserInContext
	}
	return id, nil
}

// MustUserIDFromContext extracts the user id or panics.
// Use only when middleware guarantees its presence.
func MustUserIDFromContext(ctx context.Context) string {
	id, err := UserIDFromContext(ctx)
	if err != nil {
		panic("user id not in context: middleware misconfiguration")
	}
	return id
}

// UserMiddleware canonicalises the {uuid} path parameter and attaches it to
// the request context. Invalid ids are rejected with 400.
func UserMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id, err := validation.NormalizeUserID(chi.URLParam(r, "uuid"))
		if err != nil {
			MapError(w, r, err)
			return
		}
		next.ServeHTTP(w, r.WithContext(WithUserID(r.Context(), id)))
	})
}
