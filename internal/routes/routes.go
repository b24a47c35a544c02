package routes

import (
	"log/slog"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/BradenHooton/jardim/internal/auth"
	"github.com/BradenHooton/jardim/internal/handlers"
	"github.com/BradenHooton/jardim/internal/metrics"
	middlewareCustom "github.com/BradenHooton/jardim/internal/middleware"
	"github.com/BradenHooton/jardim/internal/models"
)

// RouterConfig holds what the shared middleware stack needs
type RouterConfig struct {
	Env            string
	AllowedOrigins []string
	Logger         *slog.Logger
	Metrics        *metrics.Metrics
}

// NewRouter creates a router with the middleware stack shared by both
// servers. /metrics is mounted when Metrics is set.
func NewRouter(cfg RouterConfig) chi.Router {
	router := chi.NewRouter()
	router.Use(middleware.RequestID)
	router.Use(middleware.RealIP)
	router.Use(middlewareCustom.SecurityHeaders(middlewareCustom.SecurityHeadersConfig{Env: cfg.Env}))
	router.Use(middlewareCustom.CORS(middlewareCustom.DefaultCORSConfig(cfg.AllowedOrigins)))
	router.Use(middlewareCustom.SecureLogger(cfg.Logger))
	if cfg.Metrics != nil {
		router.Use(cfg.Metrics.Middleware)
	}
	router.Use(middleware.Recoverer)
	router.Use(middleware.Timeout(60 * time.Second))

	if cfg.Metrics != nil {
		router.Handle("/metrics", cfg.Metrics.Handler())
	}
	return router
}

// RegisterRecordRoutes registers the record service routes
func RegisterRecordRoutes(
	router chi.Router,
	accountHandler *handlers.AccountHandler,
	parser auth.SubjectParser,
	health handlers.HealthChecker,
) {
	router.Get("/health", handlers.Health(health))

	// Public routes - no authentication required
	router.With(middlewareCustom.RateLimitByIP(middlewareCustom.DefaultAuthRateLimit())).
		Post("/auth/login", accountHandler.Login)

	// Protected routes - authentication required
	router.Group(func(r chi.Router) {
		r.Use(auth.AuthMiddleware(parser))
		passwordLimit := middlewareCustom.RateLimitBySubject(middlewareCustom.DefaultPasswordChangeRateLimit())

		// Any authenticated account
		r.Get("/users", accountHandler.GetUser)
		r.With(passwordLimit).Patch("/users/password", accountHandler.ChangeOwnPassword)

		// Admin-only routes
		r.Group(func(r chi.Router) {
			r.Use(auth.RequireRole(models.RolePrivileged))
			r.Get("/admins/{id}", accountHandler.GetAdmin)
			r.With(passwordLimit).Patch("/admins/{id}/password", accountHandler.ChangeAdminPassword)
		})
	})
}

// RegisterConsoleRoutes registers the console page API
func RegisterConsoleRoutes(router chi.Router, consoleHandler *handlers.ConsoleHandler, parser auth.SubjectParser) {
	router.Get("/health", handlers.Health(nil))

	router.Group(func(r chi.Router) {
		r.Use(auth.AuthMiddleware(parser))

		r.Get("/format/national-id", consoleHandler.FormatNationalID)

		r.Post("/pages/{kind}", consoleHandler.OpenPage)
		r.Get("/pages/{id}", consoleHandler.GetPage)
		r.Delete("/pages/{id}", consoleHandler.ClosePage)
		r.Post("/pages/{id}/search", consoleHandler.Search)
		r.Post("/pages/{id}/credential", consoleHandler.UpdateCredential)
		r.Post("/pages/{id}/delete", consoleHandler.RequestDelete)
	})
}
