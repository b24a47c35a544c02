package auth

import (
	"context"
	"net/http"
	"strings"

	"github.com/BradenHooton/jardim/internal/models"
	pkghttp "github.com/BradenHooton/jardim/pkg/http"
)

// contextKey is a custom type for context keys
type contextKey string

const (
	// SubjectContextKey is the key for storing the authenticated subject
	SubjectContextKey contextKey = "subject"
	// TokenContextKey is the key for storing the raw bearer token
	TokenContextKey contextKey = "token"
)

// SubjectParser turns a bearer token into a subject
type SubjectParser interface {
	ParseSubject(tokenString string) (Subject, error)
}

// AuthMiddleware validates bearer tokens and injects the subject into context
func AuthMiddleware(parser SubjectParser) func(next http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			tokenString, ok := BearerToken(r)
			if !ok {
				pkghttp.WriteUnauthorized(w, "missing or malformed authorization header")
				return
			}

			subject, err := parser.ParseSubject(tokenString)
			if err != nil {
				pkghttp.WriteUnauthorized(w, "invalid or expired token")
				return
			}

			ctx := WithSubject(r.Context(), subject)
			ctx = context.WithValue(ctx, TokenContextKey, tokenString)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// RequireRole rejects subjects without the given role. Must run after
// AuthMiddleware.
func RequireRole(role models.Role) func(next http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			subject, ok := SubjectFromContext(r.Context())
			if !ok {
				pkghttp.WriteUnauthorized(w, "unauthorized")
				return
			}
			if subject.Role != role {
				pkghttp.WriteForbidden(w, "insufficient permissions")
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

// BearerToken extracts the token from an "Authorization: Bearer" header
func BearerToken(r *http.Request) (string, bool) {
	parts := strings.SplitN(r.Header.Get("Authorization"), " ", 2)
	if len(parts) != 2 || parts[0] != "Bearer" || parts[1] == "" {
		return "", false
	}
	return parts[1], true
}

// WithSubject stores the subject in ctx
func WithSubject(ctx context.Context, s Subject) context.Context {
	return context.WithValue(ctx, SubjectContextKey, s)
}

// SubjectFromContext returns the authenticated subject, if any
func SubjectFromContext(ctx context.Context) (Subject, bool) {
	s, ok := ctx.Value(SubjectContextKey).(Subject)
	return s, ok
}

// TokenFromContext returns the raw bearer token of the request
func TokenFromContext(ctx context.Context) string {
	token, _ := ctx.Value(TokenContextKey).(string)
	return token
}
