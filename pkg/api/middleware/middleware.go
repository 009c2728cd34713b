package middleware

import (
	"context"
	"fmt"
	"net/http"
	"strings"

	"github.com/cbodonnell/arena/pkg/auth"
	authproviders "github.com/cbodonnell/arena/pkg/auth/providers"
	"github.com/cbodonnell/arena/pkg/log"
)

type ContextKey int

const (
	// IdentityContextKey is the key used to store the caller's identity in the request context
	IdentityContextKey ContextKey = iota
)

// NewIdentityMiddleware resolves the caller from a bearer token or, for
// browsers that cannot set headers on a websocket upgrade, the token query
// parameter. A request without a token is treated as a new guest.
func NewIdentityMiddleware(resolver *authproviders.IdentityResolver) func(next http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			token, err := parseToken(r)
			if err != nil {
				log.Debug("failed to parse token: %v", err)
				http.Error(w, "failed to parse token", http.StatusUnauthorized)
				return
			}

			identity, err := resolver.Resolve(r.Context(), token)
			if err != nil {
				log.Debug("failed to resolve identity: %v", err)
				http.Error(w, "failed to verify token", http.StatusUnauthorized)
				return
			}

			ctx := context.WithValue(r.Context(), IdentityContextKey, identity)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// IdentityFromContext returns the identity stored by the identity middleware.
func IdentityFromContext(ctx context.Context) (auth.Identity, bool) {
	identity, ok := ctx.Value(IdentityContextKey).(auth.Identity)
	return identity, ok
}

// NewCORSMiddleware allows the configured origins. "*" allows any origin.
func NewCORSMiddleware(allowedOrigins []string) func(next http.Handler) http.Handler {
	allowed := make(map[string]struct{}, len(allowedOrigins))
	for _, o := range allowedOrigins {
		allowed[o] = struct{}{}
	}
	_, allowAll := allowed["*"]

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			origin := r.Header.Get("Origin")
			if _, ok := allowed[origin]; ok || (allowAll && origin != "") {
				w.Header().Set("Access-Control-Allow-Origin", origin)
				w.Header().Set("Access-Control-Allow-Methods", "GET, POST, OPTIONS")
				w.Header().Set("Access-Control-Allow-Headers", "Authorization")
				w.Header().Add("Vary", "Origin")
			}
			if r.Method == http.MethodOptions {
				w.WriteHeader(http.StatusNoContent)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

// parseToken returns the bearer token, falling back to the token query parameter
func parseToken(r *http.Request) (string, error) {
	authHeader := r.Header.Get("Authorization")
	if authHeader == "" {
		return r.URL.Query().Get("token"), nil
	}

	// Check if the Authorization header has the Bearer scheme
	parts := strings.Split(authHeader, " ")
	if len(parts) != 2 || strings.ToLower(parts[0]) != "bearer" {
		return "", fmt.Errorf("invalid Authorization header format")
	}
	return parts[1], nil
}
