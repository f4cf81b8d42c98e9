// internal/app.go
package app

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"

	"github.com/jmoiron/sqlx"

	router "papertrade/internal/api"
	"papertrade/internal/api/handler"
	"papertrade/internal/config"
	"papertrade/internal/metrics"
	"papertrade/internal/pricefeed"
	"papertrade/internal/repository"
	"papertrade/internal/repository/sqlstore"
	"papertrade/internal/service"
	"papertrade/internal/tracker"
	"papertrade/internal/util"
	"papertrade/pkg/db"
)

// Application holds all the initialized components of the application.
type Application struct {
	Config  *config.AppConfig
	Logger  *slog.Logger
	DB      *sqlx.DB
	Metrics *metrics.Metrics

	// Repositories
	PortfolioRepository   repository.PortfolioRepository
	TransactionRepository repository.TransactionRepository

	// Market data
	Feed    *pricefeed.Client
	Tracker *tracker.Service

	// Services
	PortfolioService service.PortfolioService

	// HTTP API
	HTTPHandler http.Handler
}

// NewApplication creates a new Application instance.
func NewApplication() *Application {
	return &Application{Logger: util.GetLogger()}
}

// Initialize loads configuration from the environment and initializes all components.
func (app *Application) Initialize(ctx context.Context) error {
	// 1. Load Configuration
	cfg, err := config.LoadConfig()
	if err != nil {
		return fmt.Errorf("failed to load configuration: %w", err)
	}
	return app.InitializeWithConfig(ctx, cfg)
}

// InitializeWithConfig initializes all components from cfg.
func (app *Application) InitializeWithConfig(ctx context.Context, cfg *config.AppConfig) error {
	app.Config = cfg

	// 2. Initialize Logger
	if err := util.InitLogger(cfg.Logger); err != nil {
		return fmt.Errorf("failed to initialize logger: %w", err)
	}
	app.Logger = util.GetLogger()
	app.Logger.Info("Application configuration loaded successfully.")

	// 3. Connect to Database
	database, err := db.Open(ctx, cfg.DB)
	if err != nil {
		return fmt.Errorf("failed to connect to database: %w", err)
	}
	app.DB = database
	app.Logger.Info("Database connection established.", "driver", cfg.DB.Driver)

	// 4. Initialize Repositories
	app.PortfolioRepository = sqlstore.NewPortfolioRepository()
	app.TransactionRepository = sqlstore.NewTransactionRepository()
	app.Logger.Info("Repositories initialized.")

	// 5. Initialize market data
	app.Metrics = metrics.New()
	app.Feed = pricefeed.NewClient(cfg.PriceFeed, app.Metrics, app.Logger)
	app.Tracker = tracker.NewService(app.Feed, cfg.Tracker, app.Metrics, app.Logger)
	app.Logger.Info("Price feed initialized.", "base_url", cfg.PriceFeed.BaseURL)

	// 6. Initialize Services
	// Pass the concrete db.BeginTx, db.CommitTx, db.RollbackTx functions from pkg/db
	app.PortfolioService, err = service.NewPortfolioService(
		ctx,
		app.DB, // This is the DBTxBeginner
		app.DB, // This is the DBExecutor
		app.PortfolioRepository,
		app.TransactionRepository,
		app.Feed,
		db.BeginTx,
		db.CommitTx,
		db.RollbackTx,
		cfg.Portfolio,
		app.Metrics,
		app.Logger,
	)
	if err != nil {
		_ = app.DB.Close()
		return fmt.Errorf("failed to initialize portfolio: %w", err)
	}
	app.Logger.Info("Services initialized.", "balance", app.PortfolioService.GetBalance())

	// 7. Initialize HTTP Handlers and Router
	portfolioHandler := handler.NewPortfolioHandler(app.PortfolioService, app.Logger)
	priceHandler := handler.NewPriceHandler(app.Feed, app.Tracker, app.Logger)
	var metricsHandler http.Handler
	if cfg.Metrics.Enabled {
		metricsHandler = app.Metrics.Handler()
	}
	app.HTTPHandler = router.NewRouter(portfolioHandler, priceHandler, cfg.Metrics.Path, metricsHandler, app.Logger)
	app.Logger.Info("HTTP router and handlers initialized.")

	return nil
}

// Shutdown gracefully shuts down application resources.
func (app *Application) Shutdown(ctx context.Context) error {
	app.Logger.Info("Shutting down application...")
	if app.Tracker != nil {
		app.Tracker.UntrackAll()
		app.Logger.Info("Price tracking stopped.")
	}
	if app.DB != nil {
		if err := app.DB.Close(); err != nil {
			app.Logger.Error("Failed to close database connection", "error", err)
			return fmt.Errorf("failed to close database connection: %w", err)
		}
		app.Logger.Info("Database connection closed.")
	}
	app.Logger.Info("Application shut down gracefully.")
	return nil
}
