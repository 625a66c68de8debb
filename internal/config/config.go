package config

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/spf13/viper"
	"github.com/subosito/gotenv"
)

// MinJWTSecretLength is the shortest accepted HS256 signing secret
const MinJWTSecretLength = 32

// Config holds all application configuration
type Config struct {
	Server   ServerConfig   `mapstructure:"server"`
	Database DatabaseConfig `mapstructure:"database"`
	Auth     AuthConfig     `mapstructure:"auth"`
	Gateways GatewaysConfig `mapstructure:"gateways"`
	Worker   WorkerConfig   `mapstructure:"worker"`
	Logger   LoggerConfig   `mapstructure:"logger"`
}

// ServerConfig holds HTTP server configuration
type ServerConfig struct {
	Host            string        `mapstructure:"host"`
	Port            int           `mapstructure:"port"`
	ReadTimeout     time.Duration `mapstructure:"read_timeout"`
	WriteTimeout    time.Duration `mapstructure:"write_timeout"`
	ShutdownTimeout time.Duration `mapstructure:"shutdown_timeout"`
	PublicURL       string        `mapstructure:"public_url"`
}

// DatabaseConfig holds database configuration
type DatabaseConfig struct {
	Path            string        `mapstructure:"path"`
	MaxOpenConns    int           `mapstructure:"max_open_conns"`
	MaxIdleConns    int           `mapstructure:"max_idle_conns"`
	ConnMaxLifetime time.Duration `mapstructure:"conn_max_lifetime"`
	BusyTimeout     time.Duration `mapstructure:"busy_timeout"`
}

// AuthConfig holds token and password settings
type AuthConfig struct {
	JWTSecret  string        `mapstructure:"jwt_secret"`
	TokenTTL   time.Duration `mapstructure:"token_ttl"`
	BcryptCost int           `mapstructure:"bcrypt_cost"`
}

// GatewaysConfig holds the online payment providers
type GatewaysConfig struct {
	Stripe StripeConfig `mapstructure:"stripe"`
	PayPal PayPalConfig `mapstructure:"paypal"`
	BML    BMLConfig    `mapstructure:"bml"`
}

// StripeConfig holds Stripe credentials
type StripeConfig struct {
	SecretKey     string `mapstructure:"secret_key"`
	WebhookSecret string `mapstructure:"webhook_secret"`
}

// Enabled reports whether both Stripe credentials are present
func (s StripeConfig) Enabled() bool {
	return s.SecretKey != "" && s.WebhookSecret != ""
}

// PayPalConfig holds PayPal REST credentials
type PayPalConfig struct {
	ClientID  string `mapstructure:"client_id"`
	Secret    string `mapstructure:"secret"`
	APIBase   string `mapstructure:"api_base"`
	WebhookID string `mapstructure:"webhook_id"`
}

// Enabled reports whether the PayPal client and webhook are configured
func (p PayPalConfig) Enabled() bool {
	return p.ClientID != "" && p.Secret != "" && p.WebhookID != ""
}

// BMLConfig holds Bank of Maldives Connect credentials
type BMLConfig struct {
	BaseURL       string        `mapstructure:"base_url"`
	APIKey        string        `mapstructure:"api_key"`
	WebhookSecret string        `mapstructure:"webhook_secret"`
	RedirectURL   string        `mapstructure:"redirect_url"`
	Timeout       time.Duration `mapstructure:"timeout"`
}

// Enabled reports whether the BML key and webhook secret are present
func (b BMLConfig) Enabled() bool {
	return b.APIKey != "" && b.WebhookSecret != ""
}

// WorkerConfig holds background worker configuration
type WorkerConfig struct {
	OverdueInterval     time.Duration `mapstructure:"overdue_interval"`
	OverdueBatchSize    int           `mapstructure:"overdue_batch_size"`
	OverdueSweepTimeout time.Duration `mapstructure:"overdue_sweep_timeout"`
}

// LoggerConfig holds logger configuration
type LoggerConfig struct {
	Level      string `mapstructure:"level"`
	OutputPath string `mapstructure:"output_path"`
	Format     string `mapstructure:"format"`
}

// Load reads and validates the configuration
func Load(configPath string) (*Config, error) {
	cfg, err := Read(configPath)
	if err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return cfg, nil
}

// Read loads configuration from the YAML file, a .env file in the working
// directory and the process environment without validating it. A missing
// config file is tolerated so the binary can run on environment variables alone.
func Read(configPath string) (*Config, error) {
	if err := gotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf("failed to load .env: %w", err)
	}

	v := viper.New()
	v.SetConfigFile(configPath)
	v.SetConfigType("yaml")
	v.SetEnvPrefix("BOLIBOOKS")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	setDefaults(v)

	if err := v.ReadInConfig(); err != nil {
		if !errors.Is(err, os.ErrNotExist) {
			var notFound viper.ConfigFileNotFoundError
			if !errors.As(err, &notFound) {
				return nil, fmt.Errorf("failed to read config file: %w", err)
			}
		}
	}

	if err := bindEnvVars(v); err != nil {
		return nil, err
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}
	return &cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("server.host", "0.0.0.0")
	v.SetDefault("server.port", 8080)
	v.SetDefault("server.read_timeout", 30*time.Second)
	v.SetDefault("server.write_timeout", 30*time.Second)
	v.SetDefault("server.shutdown_timeout", 15*time.Second)
	v.SetDefault("server.public_url", "http://localhost:8080")

	v.SetDefault("database.path", "data/bolibooks.db")
	v.SetDefault("database.max_open_conns", 10)
	v.SetDefault("database.max_idle_conns", 5)
	v.SetDefault("database.conn_max_lifetime", 5*time.Minute)
	v.SetDefault("database.busy_timeout", 5*time.Second)

	v.SetDefault("auth.token_ttl", 24*time.Hour)
	v.SetDefault("auth.bcrypt_cost", 12)

	v.SetDefault("gateways.paypal.api_base", "https://api-m.sandbox.paypal.com")
	v.SetDefault("gateways.bml.base_url", "https://api.uat.merchants.bankofmaldives.com.mv/public")
	v.SetDefault("gateways.bml.timeout", 20*time.Second)

	v.SetDefault("worker.overdue_interval", time.Hour)
	v.SetDefault("worker.overdue_batch_size", 200)
	v.SetDefault("worker.overdue_sweep_timeout", 2*time.Minute)

	v.SetDefault("logger.level", "info")
	v.SetDefault("logger.output_path", "stdout")
	v.SetDefault("logger.format", "json")
}

// bindEnvVars binds secrets to their conventional variable names
func bindEnvVars(v *viper.Viper) error {
	bindings := map[string]string{
		"auth.jwt_secret":                "BOLIBOOKS_JWT_SECRET",
		"gateways.stripe.secret_key":     "STRIPE_SECRET_KEY",
		"gateways.stripe.webhook_secret": "STRIPE_WEBHOOK_SECRET",
		"gateways.paypal.client_id":      "PAYPAL_CLIENT_ID",
		"gateways.paypal.secret":         "PAYPAL_SECRET",
		"gateways.paypal.webhook_id":     "PAYPAL_WEBHOOK_ID",
		"gateways.bml.api_key":           "BML_API_KEY",
		"gateways.bml.webhook_secret":    "BML_WEBHOOK_SECRET",
	}
	for key, env := range bindings {
		if err := v.BindEnv(key, env); err != nil {
			return fmt.Errorf("failed to bind %s: %w", env, err)
		}
	}
	return nil
}

// Validate validates the configuration
func (c *Config) Validate() error {
	if len(c.Auth.JWTSecret) < MinJWTSecretLength {
		return fmt.Errorf("auth.jwt_secret must be at least %d bytes", MinJWTSecretLength)
	}
	if c.Auth.TokenTTL <= 0 {
		return fmt.Errorf("auth.token_ttl must be positive")
	}
	if c.Database.Path == "" {
		return fmt.Errorf("database.path is required")
	}
	if c.Database.MaxOpenConns <= 0 || c.Database.MaxIdleConns < 0 {
		return fmt.Errorf("database pool sizes must be positive")
	}
	if c.Server.Port <= 0 || c.Server.Port > 65535 {
		return fmt.Errorf("server.port %d is out of range", c.Server.Port)
	}
	if c.Worker.OverdueInterval <= 0 || c.Worker.OverdueBatchSize <= 0 {
		return fmt.Errorf("worker overdue interval and batch size must be positive")
	}
	return nil
}
