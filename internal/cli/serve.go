package cli

import (
	"context"
	"fmt"
	"os/signal"
	"syscall"

	"github.com/gin-gonic/gin"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/bolibooks/bolibooks/internal/container"
	httpapi "github.com/bolibooks/bolibooks/internal/interfaces/http"
)

func newServeCmd(opts *rootOptions) *cobra.Command {
	var noWorkers bool

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP API and background workers",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, logger, err := opts.bootstrap(true)
			if err != nil {
				return err
			}
			defer logger.Sync()

			if cfg.Logger.Level == "debug" {
				gin.SetMode(gin.DebugMode)
			} else {
				gin.SetMode(gin.ReleaseMode)
			}

			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()

			return runServer(ctx, cfg.ToContainerConfig(), !noWorkers, logger)
		},
	}
	cmd.Flags().BoolVar(&noWorkers, "no-workers", false, "serve the API without the overdue sweep")
	return cmd
}

// runServer starts the container and blocks serving HTTP until ctx is done
func runServer(ctx context.Context, cfg *container.Config, startWorkers bool, logger *zap.Logger) error {
	logger.Info("Starting BoliBooks",
		zap.String("version", version),
		zap.Int("port", cfg.Server.Port))

	c, err := container.NewContainer(cfg, logger)
	if err != nil {
		return err
	}
	if err := c.Start(ctx, startWorkers); err != nil {
		_ = c.Close()
		return fmt.Errorf("failed to start container: %w", err)
	}
	defer func() {
		if err := c.Close(); err != nil {
			logger.Error("Container shutdown failed", zap.Error(err))
		}
	}()

	s := c.Services()
	server := httpapi.NewServer(httpapi.ServerConfig{
		Host:            cfg.Server.Host,
		Port:            cfg.Server.Port,
		ReadTimeout:     cfg.Server.ReadTimeout,
		WriteTimeout:    cfg.Server.WriteTimeout,
		ShutdownTimeout: cfg.Server.ShutdownTimeout,
		Version:         version,
	}, httpapi.Services{
		Auth:      s.Auth,
		Company:   s.Company,
		Plans:     s.Plans,
		Customers: s.Customers,
		Products:  s.Products,
		Documents: s.Documents,
		Payments:  s.Payments,
		POS:       s.POS,
		Checkout:  s.Checkout,
		Portal:    s.Portal,
		Activity:  s.Activity,
	}, c.ServiceLogger())

	if err := server.Start(ctx); err != nil {
		return fmt.Errorf("http server: %w", err)
	}
	logger.Info("Server exited successfully")
	return nil
}
