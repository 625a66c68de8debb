package cli

import (
	"fmt"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/bolibooks/bolibooks/migrations"
	"github.com/bolibooks/bolibooks/pkg/database"
)

func newMigrateCmd(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "migrate",
		Short: "Apply pending database migrations",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, logger, err := opts.bootstrap(false)
			if err != nil {
				return err
			}
			defer logger.Sync()

			db, err := database.New(database.Config{
				Path:         cfg.Database.Path,
				MaxOpenConns: 1,
				BusyTimeout:  cfg.Database.BusyTimeout,
			}, logger)
			if err != nil {
				return err
			}
			defer db.Close()

			applied, err := database.NewMigrator(db, logger).Run(migrations.FS)
			if err != nil {
				return fmt.Errorf("migration failed: %w", err)
			}

			logger.Info("Migrations complete", zap.Int("applied", applied), zap.String("path", cfg.Database.Path))
			fmt.Fprintf(cmd.OutOrStdout(), "applied %d migration(s) to %s\n", applied, cfg.Database.Path)
			return nil
		},
	}
}
