package container

import (
	"database/sql"
	"fmt"

	"go.uber.org/zap"

	"github.com/bolibooks/bolibooks/internal/application/dispatcher"
	"github.com/bolibooks/bolibooks/internal/application/port"
	"github.com/bolibooks/bolibooks/internal/application/service"
	"github.com/bolibooks/bolibooks/internal/infrastructure/auth"
	"github.com/bolibooks/bolibooks/internal/infrastructure/export"
	"github.com/bolibooks/bolibooks/internal/infrastructure/external/gateway"
	"github.com/bolibooks/bolibooks/internal/infrastructure/persistence/repository"
	"github.com/bolibooks/bolibooks/internal/infrastructure/persistence/sqlite"
	"github.com/bolibooks/bolibooks/internal/infrastructure/worker"
	"github.com/bolibooks/bolibooks/migrations"
	"github.com/bolibooks/bolibooks/pkg/database"
)

// DatabaseBundle holds database-related components.
type DatabaseBundle struct {
	Raw            *database.DB
	TransactionMgr *sqlite.DB
}

// ProvideDatabase opens the SQLite file and applies pending migrations.
func ProvideDatabase(cfg *DatabaseConfig, logger *zap.Logger) (*DatabaseBundle, error) {
	if cfg == nil {
		return nil, fmt.Errorf("database config is required")
	}
	if logger == nil {
		return nil, fmt.Errorf("logger is required")
	}

	db, err := database.New(database.Config{
		Path:            cfg.Path,
		MaxOpenConns:    cfg.MaxOpenConns,
		MaxIdleConns:    cfg.MaxIdleConns,
		ConnMaxLifetime: cfg.ConnMaxLifetime,
		BusyTimeout:     cfg.BusyTimeout,
	}, logger)
	if err != nil {
		return nil, err
	}

	if _, err := database.NewMigrator(db, logger).Run(migrations.FS); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to run migrations: %w", err)
	}

	return &DatabaseBundle{
		Raw:            db,
		TransactionMgr: sqlite.NewDB(db.DB, logger),
	}, nil
}

// ProvideRepositories creates all repositories from a database connection.
func ProvideRepositories(sqlDB *sql.DB, logger *zap.Logger) (*RepositoryBundle, error) {
	if sqlDB == nil {
		return nil, fmt.Errorf("database connection is required")
	}
	if logger == nil {
		return nil, fmt.Errorf("logger is required")
	}

	return &RepositoryBundle{
		Company:  repository.NewCompanyRepository(sqlDB, logger),
		User:     repository.NewUserRepository(sqlDB, logger),
		Plan:     repository.NewSubscriptionPlanRepository(sqlDB, logger),
		Customer: repository.NewCustomerRepository(sqlDB, logger),
		Product:  repository.NewProductRepository(sqlDB, logger),
		Invoice:  repository.NewInvoiceRepository(sqlDB, logger),
		Payment:  repository.NewPaymentRepository(sqlDB, logger),
		Sequence: repository.NewSequenceRepository(sqlDB, logger),
		Sale:     repository.NewPOSSaleRepository(sqlDB, logger),
		Activity: repository.NewActivityRepository(sqlDB, logger),
	}, nil
}

// ProvideGateways builds the registry of enabled payment providers.
func ProvideGateways(cfg *GatewayConfig, logger *zap.Logger) (*gateway.Registry, error) {
	var enabled []port.PaymentGateway

	if cfg.StripeEnabled {
		enabled = append(enabled, gateway.NewStripeGateway(cfg.StripeSecretKey, cfg.StripeWebhookSecret, nil, logger))
	}
	if cfg.PayPalEnabled {
		pp, err := gateway.NewPayPalGateway(cfg.PayPalClientID, cfg.PayPalSecret, cfg.PayPalAPIBase, cfg.PayPalWebhookID, logger)
		if err != nil {
			return nil, fmt.Errorf("failed to create paypal gateway: %w", err)
		}
		enabled = append(enabled, pp)
	}
	if cfg.BMLEnabled {
		enabled = append(enabled, gateway.NewBMLGateway(gateway.BMLConfig{
			BaseURL:       cfg.BMLBaseURL,
			APIKey:        cfg.BMLAPIKey,
			WebhookSecret: cfg.BMLWebhookSecret,
			RedirectURL:   cfg.BMLRedirectURL,
			Timeout:       cfg.BMLTimeout,
		}, logger))
	}

	return gateway.NewRegistry(logger, enabled...), nil
}

// ProvideDispatcher creates the event dispatcher.
func ProvideDispatcher(logger *zap.Logger) (dispatcher.Dispatcher, error) {
	if logger == nil {
		return nil, fmt.Errorf("logger is required")
	}
	return dispatcher.NewDispatcher(dispatcher.WithLogger(&dispatcherLoggerAdapter{logger: logger})), nil
}

// ServiceDeps holds dependencies for creating services.
type ServiceDeps struct {
	Repos      *RepositoryBundle
	TxManager  port.TransactionManager
	Dispatcher dispatcher.Dispatcher
	Gateways   port.GatewayRegistry
	Auth       *AuthConfig
	Logger     *zap.Logger
}

// ProvideServices creates all application services and registers the
// event subscribers that tie them together.
func ProvideServices(deps *ServiceDeps) (*ServiceBundle, error) {
	if deps == nil {
		return nil, fmt.Errorf("service dependencies are required")
	}
	if deps.Repos == nil || deps.TxManager == nil || deps.Dispatcher == nil || deps.Gateways == nil {
		return nil, fmt.Errorf("repositories, transaction manager, dispatcher and gateways are required")
	}

	repos := deps.Repos
	log := &zapLoggerAdapter{logger: deps.Logger}

	issuer, err := auth.NewJWTIssuer(deps.Auth.JWTSecret, deps.Auth.TokenTTL)
	if err != nil {
		return nil, fmt.Errorf("failed to create token issuer: %w", err)
	}

	payments := service.NewPaymentService(repos.Invoice, repos.Payment, deps.TxManager,
		export.NewXLSXExporter(deps.Logger), deps.Dispatcher, log)
	activity := service.NewActivityService(repos.Activity, log)
	checkout := service.NewCheckoutService(repos.Invoice, deps.Gateways, deps.Dispatcher, log)

	service.RegisterSubscribers(deps.Dispatcher, payments, activity, log)

	return &ServiceBundle{
		Auth: service.NewAuthService(repos.Company, repos.User, repos.Plan, deps.TxManager,
			issuer, auth.BcryptHasher{Cost: deps.Auth.BcryptCost}, log),
		Company:   service.NewCompanyService(repos.Company, repos.Plan, log),
		Plans:     service.NewSubscriptionPlanService(repos.Plan, log),
		Customers: service.NewCustomerService(repos.Customer, log),
		Products:  service.NewProductService(repos.Product, log),
		Documents: service.NewDocumentService(repos.Invoice, repos.Customer, repos.Product, repos.Company,
			repos.Payment, repos.Sequence, repos.Activity, deps.TxManager, deps.Dispatcher, log),
		Payments: payments,
		POS: service.NewPOSService(repos.Sale, repos.Product, repos.Customer, repos.Sequence,
			repos.Activity, deps.TxManager, log),
		Checkout: checkout,
		Portal:   service.NewPortalService(repos.Invoice, repos.Company, repos.Payment, checkout, log),
		Activity: activity,
	}, nil
}

// WorkerDeps holds dependencies for creating workers.
type WorkerDeps struct {
	Marker    worker.OverdueMarker
	WorkerCfg *WorkerConfig
	Logger    *zap.Logger
}

// ProvideWorkers creates the worker manager with all background workers registered.
func ProvideWorkers(deps *WorkerDeps) (*worker.Manager, error) {
	if deps == nil || deps.Marker == nil {
		return nil, fmt.Errorf("overdue marker is required")
	}

	cfg := worker.DefaultOverdueWorkerConfig()
	if deps.WorkerCfg != nil {
		if deps.WorkerCfg.OverdueInterval > 0 {
			cfg.Interval = deps.WorkerCfg.OverdueInterval
		}
		if deps.WorkerCfg.OverdueBatchSize > 0 {
			cfg.BatchSize = deps.WorkerCfg.OverdueBatchSize
		}
		if deps.WorkerCfg.OverdueSweepTimeout > 0 {
			cfg.SweepTimeout = deps.WorkerCfg.OverdueSweepTimeout
		}
	}

	manager := worker.NewManager(deps.Logger)
	manager.Register(worker.NewOverdueWorker(cfg, deps.Marker, deps.Logger))
	return manager, nil
}
