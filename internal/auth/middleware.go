// ABOUTME: Optional bearer token authentication for the API.
// ABOUTME: Rejects /api requests without the configured token; open when no token is set.

package auth

import (
	"context"
	"crypto/subtle"
	"net/http"
	"strings"

	apierrors "github.com/2389/monthcal/internal/errors"
)

type contextKey string

const clientContextKey contextKey = "client"

// Client identities recorded on the request context.
const (
	ClientAnonymous = "anonymous"
	ClientToken     = "token"
)

// Middleware requires "Authorization: Bearer <token>" on every path under
// /api. An empty token disables the check.
func Middleware(token string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			presented := extractToken(r.Header.Get("Authorization"))
			client := ClientAnonymous

			if token != "" {
				if presented != "" && subtle.ConstantTimeCompare([]byte(presented), []byte(token)) == 1 {
					client = ClientToken
				} else if strings.HasPrefix(r.URL.Path, "/api/") {
					w.Header().Set("WWW-Authenticate", `Bearer realm="monthcal"`)
					apierrors.WriteError(w, http.StatusUnauthorized, apierrors.ErrUnauthorized, "A valid API token is required")
					return
				}
			}

			ctx := context.WithValue(r.Context(), clientContextKey, client)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// ClientFromContext returns how the request authenticated.
func ClientFromContext(ctx context.Context) string {
	client, ok := ctx.Value(clientContextKey).(string)
	if !ok || client == "" {
		return ClientAnonymous
	}
	return client
}

func extractToken(authHeader string) string {
	if !strings.HasPrefix(authHeader, "Bearer ") {
		return ""
	}
	return strings.TrimSpace(strings.TrimPrefix(authHeader, "Bearer "))
}
