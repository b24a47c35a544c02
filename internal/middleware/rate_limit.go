package middleware

import (
	"net/http"
	"strconv"
	"time"

	"github.com/BradenHooton/jardim/internal/auth"
	pkghttp "github.com/BradenHooton/jardim/pkg/http"
	"github.com/go-chi/httprate"
)

// RateLimitConfig holds rate limiting configuration
type RateLimitConfig struct {
	RequestsPerMinute int
}

// DefaultAuthRateLimit returns the limit for login attempts (5 per minute)
func DefaultAuthRateLimit() RateLimitConfig {
	return RateLimitConfig{RequestsPerMinute: 5}
}

// DefaultPasswordChangeRateLimit returns the limit for password changes
// (10 per minute per subject)
func DefaultPasswordChangeRateLimit() RateLimitConfig {
	return RateLimitConfig{RequestsPerMinute: 10}
}

// RateLimitByIP creates a middleware that rate limits requests by client IP
func RateLimitByIP(config RateLimitConfig) func(next http.Handler) http.Handler {
	return httprate.Limit(
		config.RequestsPerMinute,
		1*time.Minute,
		httprate.WithKeyByRealIP(),
		httprate.WithLimitHandler(limitExceeded),
	)
}

// RateLimitBySubject rate limits by authenticated subject, falling back to
// the client IP when no subject is in context. Must run after
// auth.AuthMiddleware.
func RateLimitBySubject(config RateLimitConfig) func(next http.Handler) http.Handler {
	return httprate.Limit(
		config.RequestsPerMinute,
		1*time.Minute,
		httprate.WithKeyFuncs(subjectKey),
		httprate.WithLimitHandler(limitExceeded),
	)
}

func subjectKey(r *http.Request) (string, error) {
	if subject, ok := auth.SubjectFromContext(r.Context()); ok {
		return "subject:" + strconv.FormatInt(subject.ID, 10), nil
	}
	ip, err := httprate.KeyByRealIP(r)
	return "ip:" + ip, err
}

func limitExceeded(w http.ResponseWriter, r *http.Request) {
	pkghttp.WriteTooManyRequests(w, "rate limit exceeded")
}
