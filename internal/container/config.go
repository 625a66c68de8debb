// Package container provides dependency injection and lifecycle management
// for BoliBooks following Clean Architecture principles.
package container

import (
	"fmt"
	"time"
)

// Config holds all configuration for the Container.
// It aggregates configurations for all subsystems.
type Config struct {
	// Database configuration
	Database DatabaseConfig

	// Token and password settings
	Auth AuthConfig

	// Online payment providers
	Gateways GatewayConfig

	// Server configuration
	Server ServerConfig

	// Worker configuration
	Worker WorkerConfig
}

// DatabaseConfig holds database connection settings.
type DatabaseConfig struct {
	// Path to SQLite database file
	Path string

	// MaxOpenConns is the maximum number of open connections
	MaxOpenConns int

	// MaxIdleConns is the maximum number of idle connections
	MaxIdleConns int

	// ConnMaxLifetime is the maximum connection lifetime
	ConnMaxLifetime time.Duration

	// BusyTimeout is how long a writer waits on a locked database
	BusyTimeout time.Duration
}

// AuthConfig holds JWT and bcrypt settings.
type AuthConfig struct {
	JWTSecret  string
	TokenTTL   time.Duration
	BcryptCost int
}

// GatewayConfig holds provider credentials. A provider is wired only when
// its Enabled flag is set.
type GatewayConfig struct {
	StripeEnabled       bool
	StripeSecretKey     string
	StripeWebhookSecret string

	PayPalEnabled   bool
	PayPalClientID  string
	PayPalSecret    string
	PayPalAPIBase   string
	PayPalWebhookID string

	BMLEnabled       bool
	BMLBaseURL       string
	BMLAPIKey        string
	BMLWebhookSecret string
	BMLRedirectURL   string
	BMLTimeout       time.Duration
}

// ServerConfig holds HTTP server settings.
type ServerConfig struct {
	// Host to bind to
	Host string

	// Port to listen on
	Port int

	// ReadTimeout for HTTP server
	ReadTimeout time.Duration

	// WriteTimeout for HTTP server
	WriteTimeout time.Duration

	// ShutdownTimeout bounds graceful shutdown
	ShutdownTimeout time.Duration

	// Version reported by /health
	Version string
}

// WorkerConfig holds background worker settings.
type WorkerConfig struct {
	OverdueInterval     time.Duration
	OverdueBatchSize    int
	OverdueSweepTimeout time.Duration
}

// DefaultConfig returns a Config with sensible defaults.
func DefaultConfig() *Config {
	return &Config{
		Database: DatabaseConfig{
			Path:            "data/bolibooks.db",
			MaxOpenConns:    10,
			MaxIdleConns:    5,
			ConnMaxLifetime: 5 * time.Minute,
			BusyTimeout:     5 * time.Second,
		},
		Auth: AuthConfig{
			TokenTTL:   24 * time.Hour,
			BcryptCost: 12,
		},
		Gateways: GatewayConfig{
			PayPalAPIBase: "https://api-m.sandbox.paypal.com",
			BMLTimeout:    20 * time.Second,
		},
		Server: ServerConfig{
			Host:            "0.0.0.0",
			Port:            8080,
			ReadTimeout:     30 * time.Second,
			WriteTimeout:    30 * time.Second,
			ShutdownTimeout: 15 * time.Second,
			Version:         "dev",
		},
		Worker: WorkerConfig{
			OverdueInterval:     time.Hour,
			OverdueBatchSize:    200,
			OverdueSweepTimeout: 2 * time.Minute,
		},
	}
}

// Validate checks that required configuration values are present.
func (c *Config) Validate() error {
	if c.Database.Path == "" {
		return fmt.Errorf("database.path is required")
	}
	if len(c.Auth.JWTSecret) < 32 {
		return fmt.Errorf("auth.jwt_secret must be at least 32 bytes")
	}
	if c.Gateways.StripeEnabled && (c.Gateways.StripeSecretKey == "" || c.Gateways.StripeWebhookSecret == "") {
		return fmt.Errorf("stripe is enabled without credentials")
	}
	if c.Gateways.PayPalEnabled && c.Gateways.PayPalWebhookID == "" {
		return fmt.Errorf("paypal is enabled without a webhook id")
	}
	if c.Gateways.BMLEnabled && c.Gateways.BMLWebhookSecret == "" {
		return fmt.Errorf("bml is enabled without a webhook secret")
	}
	return nil
}
