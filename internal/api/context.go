package api

import (
	"context"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/hyperengineering/lifexp/internal/validation"
)

// userIDContextKey is the context key for the validated user ID.
type userIDContextKey struct{}

// userIDSinkKey carries a *string that UserMiddleware fills in, so the
// outer request log can report the user.
type userIDSinkKeyType struct{}

var userIDSinkKey = userIDSinkKeyType{}

// WithUserID returns a new context with the user ID attached.
func WithUserID(ctx context.Context, id string) context.Context {
	return context.WithValue(ctx, userIDContextKey{}, id)
}

// UserIDFromContext extracts the user ID from the context.
// Returns "" if not present.
func UserIDFromContext(ctx context.Context) string {
	id, _ := ctx.Value(userIDContextKey{}).(string)
	return id
}

// UserMiddleware validates the {userID} path parameter and stores it in the
// request context. Invalid IDs get a 422 problem response.
func UserMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id := chi.URLParam(r, "userID")
		if verr := validation.ValidateUserID("user_id", id); verr != nil {
			WriteProblemWithErrors(w, r, "Invalid user ID", []validation.ValidationError{*verr})
			return
		}
		if sink, ok := r.Context().Value(userIDSinkKey).(*string); ok {
			*sink = id
		}
		next.ServeHTTP(w, r.WithContext(WithUserID(r.Context(), id)))
	})
}
