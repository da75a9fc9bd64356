// Package middleware provides HTTP middleware for the route layer: caller
// identity, request logging, gzip and rate limiting.
package middleware

import (
	"context"
	"net/http"
	"strconv"
	"strings"

	"github.com/atinyakov/suborg-shortener/internal/models"
)

// ContextKey is a custom type used for keys in the context.
type ContextKey string

// IdentityKey is the key the caller identity is stored under.
const IdentityKey ContextKey = "identity"

// Headers set by the authenticating gateway in front of the service.
const (
	HeaderUserID      = "X-User-ID"
	HeaderUserEmail   = "X-User-Email"
	HeaderUserName    = "X-User-Name"
	HeaderBlacklisted = "X-User-Blacklisted"
	HeaderRole        = "X-User-Role"
)

// InjectIdentity adds identity to the request context.
func InjectIdentity(req *http.Request, identity models.Identity) *http.Request {
	ctx := context.WithValue(req.Context(), IdentityKey, identity)
	return req.WithContext(ctx)
}

// IdentityFrom returns the identity stored in ctx, if any.
func IdentityFrom(ctx context.Context) (models.Identity, bool) {
	identity, ok := ctx.Value(IdentityKey).(models.Identity)
	return identity, ok && identity.UserID != ""
}

// WithIdentity reads the caller identity from the gateway headers. The
// headers are trusted as-is; nothing here authenticates anybody.
func WithIdentity(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		userID := strings.TrimSpace(r.Header.Get(HeaderUserID))
		if userID == "" {
			next.ServeHTTP(w, r)
			return
		}

		blacklisted, _ := strconv.ParseBool(r.Header.Get(HeaderBlacklisted))

		next.ServeHTTP(w, InjectIdentity(r, models.Identity{
			UserID:      userID,
			Email:       r.Header.Get(HeaderUserEmail),
			Name:        r.Header.Get(HeaderUserName),
			Blacklisted: blacklisted,
			Admin:       strings.EqualFold(r.Header.Get(HeaderRole), "admin"),
		}))
	})
}

// RequireIdentity rejects requests that carry no identity.
func RequireIdentity(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if _, ok := IdentityFrom(r.Context()); !ok {
			w.WriteHeader(http.StatusUnauthorized)
			return
		}
		next.ServeHTTP(w, r)
	})
}

// RequireAdmin rejects requests from non-admin callers.
func RequireAdmin(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		identity, ok := IdentityFrom(r.Context())
		if !ok {
			w.WriteHeader(http.StatusUnauthorized)
			return
		}
		if !identity.Admin {
			w.WriteHeader(http.StatusForbidden)
			return
		}
		next.ServeHTTP(w, r)
	})
}
