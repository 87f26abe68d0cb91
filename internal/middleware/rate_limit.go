package middleware

import (
	"net/http"
	"time"

	"github.com/go-chi/httprate"

	"github.com/mkessler/hypercloud/internal/auth"
	pkghttp "github.com/mkessler/hypercloud/pkg/http"
)

// RateLimitConfig holds rate limiting configuration
type RateLimitConfig struct {
	RequestsPerMinute int
}

// DefaultAuthRateLimit returns default rate limit config for account
// lifecycle endpoints (5 requests per minute)
func DefaultAuthRateLimit() RateLimitConfig {
	return RateLimitConfig{
		RequestsPerMinute: 5,
	}
}

// DefaultAccountRateLimit returns default rate limit config for
// authenticated account endpoints (60 requests per minute)
func DefaultAccountRateLimit() RateLimitConfig {
	return RateLimitConfig{
		RequestsPerMinute: 60,
	}
}

// RateLimitByIP creates a middleware that rate limits requests by client IP
func RateLimitByIP(config RateLimitConfig) func(next http.Handler) http.Handler {
	return httprate.Limit(
		config.RequestsPerMinute,
		1*time.Minute,
		httprate.WithKeyByRealIP(),
		httprate.WithLimitHandler(limitExceededHandler),
	)
}

// RateLimitBySession creates a middleware that rate limits by the
// session's user and client IP together. Requests without a session
// are keyed by IP alone.
func RateLimitBySession(config RateLimitConfig) func(next http.Handler) http.Handler {
	return httprate.Limit(
		config.RequestsPerMinute,
		1*time.Minute,
		httprate.WithKeyFuncs(sessionKey, httprate.KeyByRealIP),
		httprate.WithLimitHandler(limitExceededHandler),
	)
}

func sessionKey(r *http.Request) (string, error) {
	if claims := auth.SessionFromContext(r.Context()); claims != nil {
		return "user:" + claims.UserID, nil
	}
	return "", nil
}

func limitExceededHandler(w http.ResponseWriter, r *http.Request) {
	pkghttp.WriteTooManyRequests(w, "Too many requests")
}
