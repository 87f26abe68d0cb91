package auth

import (
	"context"
	"net/http"
	"strings"

	"github.com/mkessler/hypercloud/internal/models"
)

// contextKey is a custom type for context keys
type contextKey string

const (
	// SessionContextKey is the key for storing session claims in context
	SessionContextKey contextKey = "session"
)

// SessionMiddleware resolves the session token from the request and
// injects its claims into the request context. A missing, invalid, or
// expired token is not an error at this layer: the request proceeds
// with no session, and handlers that need one reject it themselves.
func SessionMiddleware(sm *SessionManager) func(next http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			tokenString := extractToken(r)

			claims, status := sm.Verify(tokenString)
			if status != models.SessionValid {
				next.ServeHTTP(w, r)
				return
			}

			ctx := context.WithValue(r.Context(), SessionContextKey, claims)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// RequireSession rejects requests that carry no valid session.
func RequireSession(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if SessionFromContext(r.Context()) == nil {
			http.Error(w, "unauthorized", http.StatusUnauthorized)
			return
		}
		next.ServeHTTP(w, r)
	})
}

// RequireScope rejects sessions that lack the given scope. Used with
// RequireSession already applied.
func RequireScope(scope string) func(next http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			claims := SessionFromContext(r.Context())
			if claims == nil || !models.HasScope(claims.Scopes, scope) {
				http.Error(w, "forbidden", http.StatusForbidden)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

// SessionFromContext returns the session claims for the request, or
// nil when the request carries no valid session.
func SessionFromContext(ctx context.Context) *models.SessionClaims {
	claims, ok := ctx.Value(SessionContextKey).(*models.SessionClaims)
	if !ok {
		return nil
	}
	return claims
}

// extractToken pulls the session token from the sess cookie or, for
// API clients, from a Bearer authorization header.
func extractToken(r *http.Request) string {
	if token, err := GetSessionCookie(r); err == nil && token != "" {
		return token
	}

	authHeader := r.Header.Get("Authorization")
	if authHeader == "" {
		return ""
	}
	parts := strings.SplitN(authHeader, " ", 2)
	if len(parts) != 2 || parts[0] != "Bearer" {
		return ""
	}
	return parts[1]
}
