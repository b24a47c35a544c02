// Package cli implements the jardim command line: both servers, database
// maintenance, and terminal versions of the console pages.
package cli

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/spf13/cobra"
)

var logLevel string

var rootCmd = &cobra.Command{
	Use:           "jardim",
	Short:         "Identity record service and operator console",
	SilenceUsage:  true,
	SilenceErrors: false,
}

func init() {
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "", "log level (debug, info, warn, error); defaults to LOG_LEVEL")
	rootCmd.AddCommand(
		serveRecordsCmd,
		serveConsoleCmd,
		migrateCmd,
		createAccountCmd,
		mintTokenCmd,
		lookupCmd,
		passwdCmd,
	)
}

// Execute runs the root command until it finishes or SIGINT/SIGTERM arrives
func Execute() error {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()
	return rootCmd.ExecuteContext(ctx)
}

// newLogger builds the JSON logger every command uses. The flag wins over
// the configured level.
func newLogger(configured string) *slog.Logger {
	level := configured
	if logLevel != "" {
		level = logLevel
	}
	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: parseLevel(level)}))
	slog.SetDefault(logger)
	return logger
}

func parseLevel(s string) slog.Level {
	switch strings.ToLower(s) {
	case "debug":
		return slog.LevelDebug
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}
