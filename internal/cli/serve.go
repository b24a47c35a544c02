package cli

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/BradenHooton/jardim/internal/auth"
	"github.com/BradenHooton/jardim/internal/config"
	"github.com/BradenHooton/jardim/internal/console"
	"github.com/BradenHooton/jardim/internal/database"
	"github.com/BradenHooton/jardim/internal/handlers"
	"github.com/BradenHooton/jardim/internal/metrics"
	"github.com/BradenHooton/jardim/internal/recordclient"
	"github.com/BradenHooton/jardim/internal/repositories"
	"github.com/BradenHooton/jardim/internal/routes"
	"github.com/BradenHooton/jardim/internal/services"
	pkghttp "github.com/BradenHooton/jardim/pkg/http"
	pkglogger "github.com/BradenHooton/jardim/pkg/logger"
)

const shutdownTimeout = 30 * time.Second

var serveRecordsCmd = &cobra.Command{
	Use:   "serve-records",
	Short: "Run the record service API",
	Long: `Runs the record service: account lookups, password changes and login,
backed by PostgreSQL. Pending migrations are applied on start.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := config.LoadRecordService()
		if err != nil {
			return err
		}
		logger := newLogger(cfg.Server.LogLevel)
		logger.Info("configuration loaded", slog.String("env", cfg.Server.Env))

		ctx := cmd.Context()
		db, err := database.NewConnection(cmd.Context(), &cfg.Database, logger)
		if err != nil {
			return fmt.Errorf("failed to connect to database: %w", err)
		}
		defer db.Close()

		if err := db.Migrate(ctx); err != nil {
			return err
		}

		m := metrics.New()
		tokens := auth.NewTokenManager(cfg.Auth.JWTSecret, cfg.Auth.AccessTokenExpiry)
		opts := []services.AccountServiceOption{
			services.WithRecorder(m),
			services.WithLoginDelay(auth.NewTimingDelay(auth.TimingConfig{
				BaseDelay:   cfg.Auth.LoginDelay,
				RandomDelay: cfg.Auth.LoginDelayJitter,
			})),
		}
		if cfg.Email.Enabled {
			email, err := services.NewAWSSESEmailService(ctx, cfg.Email.AWSRegion, cfg.Email.FromAddress, cfg.Email.AppName, logger)
			if err != nil {
				return fmt.Errorf("failed to initialize email service: %w", err)
			}
			opts = append(opts, services.WithEmailService(email))
		}

		svc := services.NewAccountService(
			repositories.NewAccountRepository(db),
			tokens,
			pkglogger.NewAuditLogger(logger),
			logger,
			opts...,
		)
		ipConfig := &pkghttp.IPConfig{TrustedProxies: cfg.Server.TrustedProxies}

		router := routes.NewRouter(routes.RouterConfig{
			Env:            cfg.Server.Env,
			AllowedOrigins: cfg.Server.AllowedOrigins,
			Logger:         logger,
			Metrics:        m,
		})
		routes.RegisterRecordRoutes(router, handlers.NewAccountHandler(svc, ipConfig, logger), tokens, db)

		g, ctx := errgroup.WithContext(ctx)
		g.Go(func() error {
			return serve(ctx, newServer(cfg.Server, router), logger)
		})
		return g.Wait()
	},
}

var serveConsoleCmd = &cobra.Command{
	Use:   "serve-console",
	Short: "Run the operator console API",
	Long: `Runs the console: account pages that look records up and change
passwords through the record service at RECORDS_BASE_URL.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := config.LoadConsole()
		if err != nil {
			return err
		}
		logger := newLogger(cfg.Server.LogLevel)
		logger.Info("configuration loaded",
			slog.String("env", cfg.Server.Env),
			slog.String("records_base_url", cfg.Records.BaseURL))

		m := metrics.New()
		tokens := auth.NewTokenManager(cfg.Auth.JWTSecret, cfg.Auth.AccessTokenExpiry)
		client := recordclient.New(cfg.Records.BaseURL, cfg.Records.Timeout, logger)
		registry := console.NewRegistry(client, console.Config{
			PageTTL:         cfg.Console.PageTTL,
			MaxPages:        cfg.Console.MaxPages,
			NoticeQueueSize: cfg.Console.NoticeQueueSize,
		}, logger,
			console.WithAuditLogger(pkglogger.NewAuditLogger(logger)),
			console.WithObserver(m),
			console.WithPageMetrics(m),
		)
		reaper := console.NewReaper(registry, logger, cfg.Console.ReapInterval)

		router := routes.NewRouter(routes.RouterConfig{
			Env:            cfg.Server.Env,
			AllowedOrigins: cfg.Server.AllowedOrigins,
			Logger:         logger,
			Metrics:        m,
		})
		routes.RegisterConsoleRoutes(router, handlers.NewConsoleHandler(registry, logger), tokens)

		g, ctx := errgroup.WithContext(cmd.Context())
		g.Go(func() error {
			reaper.Start(ctx)
			return nil
		})
		g.Go(func() error {
			return serve(ctx, newServer(cfg.Server, router), logger)
		})
		return g.Wait()
	},
}

func newServer(cfg config.ServerConfig, handler http.Handler) *http.Server {
	return &http.Server{
		Addr:         ":" + cfg.Port,
		Handler:      handler,
		ReadTimeout:  cfg.ReadTimeout,
		WriteTimeout: cfg.WriteTimeout,
		IdleTimeout:  cfg.IdleTimeout,
	}
}

// serve runs server until ctx is done, then shuts it down gracefully
func serve(ctx context.Context, server *http.Server, logger *slog.Logger) error {
	errCh := make(chan error, 1)
	go func() {
		logger.Info("starting server", slog.String("addr", server.Addr))
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err, ok := <-errCh:
		if ok {
			return fmt.Errorf("server error: %w", err)
		}
		return nil
	case <-ctx.Done():
	}

	logger.Info("shutdown signal received")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("server shutdown error: %w", err)
	}
	logger.Info("server stopped gracefully")
	return nil
}
