package handlers

import (
	"context"
	"net/http"
	"time"

	pkghttp "github.com/BradenHooton/jardim/pkg/http"
)

// HealthChecker reports whether a dependency is reachable
type HealthChecker interface {
	HealthCheck(ctx context.Context) error
}

// Health returns a handler for GET /health. A nil checker always reports ok.
func Health(checker HealthChecker) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if checker != nil {
			ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
			defer cancel()
			if err := checker.HealthCheck(ctx); err != nil {
				pkghttp.WriteServiceUnavailable(w, "database unreachable")
				return
			}
		}
		pkghttp.WriteJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	}
}
