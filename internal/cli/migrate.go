package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/BradenHooton/jardim/internal/config"
	"github.com/BradenHooton/jardim/internal/database"
)

var migrateCmd = &cobra.Command{
	Use:   "migrate",
	Short: "Apply all pending database migrations",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := config.LoadRecordService()
		if err != nil {
			return err
		}
		logger := newLogger(cfg.Server.LogLevel)

		db, err := database.NewConnection(cmd.Context(), &cfg.Database, logger)
		if err != nil {
			return fmt.Errorf("failed to connect to database: %w", err)
		}
		defer db.Close()

		return db.Migrate(cmd.Context())
	},
}
