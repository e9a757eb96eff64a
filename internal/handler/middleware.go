package handler

import (
	"context"
	"net/http"

	"github.com/gofrs/uuid"
)

// Principal is the authenticated identity injected by the upstream
// gateway. Authentication itself is out of scope: the core trusts
// these headers.
type Principal struct {
	UserID uuid.UUID
	Role   string
}

func (p Principal) IsAdmin() bool {
	return p.Role == "admin"
}

type ctxKey int

const principalKey ctxKey = iota

// Auth extracts the principal from the X-User-ID / X-User-Role headers
// set by the upstream gateway.
func Auth(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		raw := r.Header.Get("X-User-ID")
		userID, err := uuid.FromString(raw)
		if raw == "" || err != nil {
			respondError(w, http.StatusUnauthorized, "Authentication required", "UNAUTHORIZED")
			return
		}

		role := r.Header.Get("X-User-Role")
		if role == "" {
			role = "customer"
		}

		ctx := context.WithValue(r.Context(), principalKey, Principal{UserID: userID, Role: role})
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// RequireAdmin guards admin-only routes. It must run after Auth.
func RequireAdmin(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !principalFrom(r.Context()).IsAdmin() {
			respondError(w, http.StatusForbidden, "Admin access required", "FORBIDDEN")
			return
		}
		next.ServeHTTP(w, r)
	})
}

func principalFrom(ctx context.Context) Principal {
	p, _ := ctx.Value(principalKey).(Principal)
	return p
}

// WithPrincipal returns a context carrying the given principal. Used
// by tests that call handlers directly.
func WithPrincipal(ctx context.Context, p Principal) context.Context {
	return context.WithValue(ctx, principalKey, p)
}
