/*
middleware.go - Bearer-token authentication and role gating

AUTHORIZATION MODEL:
  Every /api route passes through Authenticate, which validates the bearer
  token and stores the caller's role in the request context. Write routes
  are additionally wrapped in RequireWriter: viewers read, treasurers and
  admins write. The decision lives here, in one place, instead of being
  re-checked inside individual handlers.

  With no verifier configured (dev mode) both middlewares pass everything
  through and the role defaults to admin.
*/
package api

import (
	"context"
	"net/http"
	"strings"

	"github.com/stewardly/treasury/auth"
)

type contextKey string

const roleKey contextKey = "role"

// RoleFromContext returns the authenticated caller's role, defaulting to
// admin when authentication is disabled.
func RoleFromContext(ctx context.Context) auth.Role {
	if role, ok := ctx.Value(roleKey).(auth.Role); ok {
		return role
	}
	return auth.RoleAdmin
}

// Authenticate validates the Authorization header and attaches the caller's
// role to the request context. A nil verifier disables authentication.
func Authenticate(verifier *auth.Verifier) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if verifier == nil {
				next.ServeHTTP(w, r)
				return
			}

			header := r.Header.Get("Authorization")
			if header == "" {
				writeJSON(w, http.StatusUnauthorized, ErrorResponse{Error: auth.ErrMissingToken.Error()})
				return
			}
			token := strings.TrimPrefix(header, "Bearer ")
			if token == header {
				writeJSON(w, http.StatusUnauthorized, ErrorResponse{Error: "authorization header must use the Bearer scheme"})
				return
			}

			claims, err := verifier.Verify(token)
			if err != nil {
				writeJSON(w, http.StatusUnauthorized, ErrorResponse{Error: auth.ErrInvalidToken.Error()})
				return
			}

			ctx := context.WithValue(r.Context(), roleKey, claims.Role)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// RequireWriter rejects callers whose role cannot perform balance-affecting
// writes.
func RequireWriter(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !RoleFromContext(r.Context()).CanWrite() {
			writeJSON(w, http.StatusForbidden, ErrorResponse{Error: "role does not permit writes"})
			return
		}
		next.ServeHTTP(w, r)
	})
}
