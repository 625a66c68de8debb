package config

import (
	"github.com/bolibooks/bolibooks/internal/container"
)

// ToContainerConfig converts the application Config to a container.Config.
// This provides a bridge between the file-based config loaded by viper
// and the container's configuration structure.
func (c *Config) ToContainerConfig() *container.Config {
	gw := c.Gateways
	redirect := gw.BML.RedirectURL
	if redirect == "" {
		redirect = c.Server.PublicURL
	}
	return &container.Config{
		Database: container.DatabaseConfig{
			Path:            c.Database.Path,
			MaxOpenConns:    c.Database.MaxOpenConns,
			MaxIdleConns:    c.Database.MaxIdleConns,
			ConnMaxLifetime: c.Database.ConnMaxLifetime,
			BusyTimeout:     c.Database.BusyTimeout,
		},
		Auth: container.AuthConfig{
			JWTSecret:  c.Auth.JWTSecret,
			TokenTTL:   c.Auth.TokenTTL,
			BcryptCost: c.Auth.BcryptCost,
		},
		Gateways: container.GatewayConfig{
			StripeEnabled:       gw.Stripe.Enabled(),
			StripeSecretKey:     gw.Stripe.SecretKey,
			StripeWebhookSecret: gw.Stripe.WebhookSecret,
			PayPalEnabled:       gw.PayPal.Enabled(),
			PayPalClientID:      gw.PayPal.ClientID,
			PayPalSecret:        gw.PayPal.Secret,
			PayPalAPIBase:       gw.PayPal.APIBase,
			PayPalWebhookID:     gw.PayPal.WebhookID,
			BMLEnabled:          gw.BML.Enabled(),
			BMLBaseURL:          gw.BML.BaseURL,
			BMLAPIKey:           gw.BML.APIKey,
			BMLWebhookSecret:    gw.BML.WebhookSecret,
			BMLRedirectURL:      redirect,
			BMLTimeout:          gw.BML.Timeout,
		},
		Server: container.ServerConfig{
			Host:            c.Server.Host,
			Port:            c.Server.Port,
			ReadTimeout:     c.Server.ReadTimeout,
			WriteTimeout:    c.Server.WriteTimeout,
			ShutdownTimeout: c.Server.ShutdownTimeout,
		},
		Worker: container.WorkerConfig{
			OverdueInterval:     c.Worker.OverdueInterval,
			OverdueBatchSize:    c.Worker.OverdueBatchSize,
			OverdueSweepTimeout: c.Worker.OverdueSweepTimeout,
		},
	}
}
