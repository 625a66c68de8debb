// Package cli holds the bolibooks command tree.
package cli

import (
	"fmt"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/bolibooks/bolibooks/internal/config"
	"github.com/bolibooks/bolibooks/pkg/utils"
)

var (
	version = "dev"
	commit  = "none"
)

// rootOptions are the flags shared by every subcommand
type rootOptions struct {
	configPath string
}

func newRootCmd() *cobra.Command {
	opts := &rootOptions{}
	cmd := &cobra.Command{
		Use:           "bolibooks",
		Short:         "Invoicing, payments and point of sale for small businesses",
		Version:       fmt.Sprintf("%s (%s)", version, commit),
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	cmd.PersistentFlags().StringVarP(&opts.configPath, "config", "c", "configs/config.yaml", "path to the YAML config file")

	cmd.AddCommand(newServeCmd(opts))
	cmd.AddCommand(newMigrateCmd(opts))
	cmd.AddCommand(newSeedCmd(opts))
	return cmd
}

// Execute runs the command tree
func Execute() error {
	return newRootCmd().Execute()
}

// SetVersion records build metadata injected through ldflags
func SetVersion(v, c string) {
	if v != "" {
		version = v
	}
	if c != "" {
		commit = c
	}
}

// bootstrap loads configuration and builds the process logger. Commands
// that only touch the database skip full validation.
func (o *rootOptions) bootstrap(validate bool) (*config.Config, *zap.Logger, error) {
	load := config.Read
	if validate {
		load = config.Load
	}
	cfg, err := load(o.configPath)
	if err != nil {
		return nil, nil, err
	}

	logger, err := utils.NewLogger(utils.LoggerConfig{
		Level:      cfg.Logger.Level,
		OutputPath: cfg.Logger.OutputPath,
		Format:     cfg.Logger.Format,
		Service:    "bolibooks",
	})
	if err != nil {
		return nil, nil, fmt.Errorf("failed to initialize logger: %w", err)
	}
	return cfg, logger, nil
}
