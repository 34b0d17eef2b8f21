// Package api implements the habithub REST API using chi.
package api

import (
	"context"
	"net/http"
	"strings"

	"github.com/starford/habithub/internal/models"
)

// UserHeader names the acting user. There are no passwords; the header is
// trusted as-is.
const UserHeader = "X-User-Email"

type userKey struct{}

// AuthMiddleware returns middleware that validates a Bearer token.
// If enabled is false, all requests pass through (disabled mode).
// If enabled is true, requests must carry a valid "Authorization: Bearer <token>" header.
func AuthMiddleware(enabled bool, token string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if !enabled {
				next.ServeHTTP(w, r)
				return
			}
			auth := r.Header.Get("Authorization")
			if !strings.HasPrefix(auth, "Bearer ") || strings.TrimPrefix(auth, "Bearer ") != token {
				writeJSON(w, http.StatusUnauthorized, errorBody("unauthorized"))
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

// RequireUser rejects requests without an acting user and stores the
// normalized email in the request context.
func RequireUser(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		email := models.NormalizeEmail(r.Header.Get(UserHeader))
		if email == "" {
			writeJSON(w, http.StatusUnauthorized, errorBody("missing "+UserHeader+" header"))
			return
		}
		next.ServeHTTP(w, r.WithContext(context.WithValue(r.Context(), userKey{}, email)))
	})
}

// CurrentUser returns the acting user set by RequireUser.
func CurrentUser(ctx context.Context) string {
	email, _ := ctx.Value(userKey{}).(string)
	return email
}
