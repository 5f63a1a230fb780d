// cmd/server/app.go
package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"go.uber.org/zap"

	"biosignal-service/internal/config"
	"biosignal-service/internal/database"
	"biosignal-service/internal/handler"
	"biosignal-service/internal/repository"
	"biosignal-service/internal/routes"
	"biosignal-service/internal/service"
	"biosignal-service/internal/utils"
)

const (
	shutdownTimeout = 30 * time.Second
	// results kept when no database is configured
	memoryResultCapacity = 1000
)

// Application represents the main application
type Application struct {
	config   *config.Config
	logger   *zap.Logger
	server   *http.Server
	database *database.DB

	// Services
	eventBus           *handler.EventBus
	acquisitionService *service.AcquisitionService
	discoveryService   *service.DiscoveryService
	wsHandler          *handler.WebSocketHandler

	// Repositories
	sessionRepo repository.SessionRepository
}

// NewApplication creates a new application instance
func NewApplication(cfg *config.Config, buildVersion string) (*Application, error) {
	logger, err := utils.NewLogger(&cfg.Logging)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize logger: %w", err)
	}

	serviceLogger := utils.NewServiceLogger(logger, "biosignal-service")
	serviceLogger.LogServiceStart(buildVersion, cfg)

	app := &Application{
		config: cfg,
		logger: logger,
	}

	if err := app.initializeDatabase(); err != nil {
		return nil, fmt.Errorf("failed to initialize database: %w", err)
	}

	app.initializeRepositories()
	app.initializeServices()
	app.initializeServer()

	return app, nil
}

// initializeDatabase sets up the database connection and runs migrations.
// Persistence is optional; without it results live in memory.
func (app *Application) initializeDatabase() error {
	if !app.config.Database.Enabled {
		app.logger.Info("Database persistence disabled, using in-memory session store")
		return nil
	}

	migrator := database.NewMigrator(app.config.GetDatabaseURL(), app.logger)
	if err := migrator.Up(); err != nil {
		return fmt.Errorf("failed to run database migrations: %w", err)
	}

	db, err := database.NewConnection(app.config.GetDatabaseDSN(), &app.config.Database, app.logger)
	if err != nil {
		return fmt.Errorf("failed to create database connection: %w", err)
	}
	app.database = db

	app.logger.Info("Database initialized successfully")
	return nil
}

// initializeRepositories creates repository instances
func (app *Application) initializeRepositories() {
	if app.database != nil {
		app.sessionRepo = repository.NewSessionRepository(app.database, app.logger)
	} else {
		app.sessionRepo = repository.NewMemorySessionRepository(memoryResultCapacity)
	}
}

// initializeServices creates service instances
func (app *Application) initializeServices() {
	app.eventBus = handler.NewEventBus(app.logger)

	app.acquisitionService = service.NewAcquisitionService(
		app.config,
		app.eventBus,
		app.eventBus,
		app.sessionRepo,
		app.logger,
	)

	app.discoveryService = service.NewDiscoveryService(app.config, app.logger)

	app.logger.Info("Services initialized successfully")
}

// initializeServer sets up HTTP server and routes
func (app *Application) initializeServer() {
	routerManager := routes.NewRouter(
		app.config,
		app.logger,
		app.database,
		app.acquisitionService,
		app.discoveryService,
		app.eventBus,
	)
	app.wsHandler = routerManager.WebSocketHandler()

	app.server = &http.Server{
		Addr:         app.config.GetServerAddr(),
		Handler:      routerManager.SetupRouter(),
		ReadTimeout:  app.config.Server.ReadTimeout,
		WriteTimeout: app.config.Server.WriteTimeout,
		IdleTimeout:  app.config.Server.IdleTimeout,
	}

	app.logger.Info("HTTP server initialized",
		zap.String("address", app.config.GetServerAddr()),
		zap.Bool("tls_enabled", app.config.Server.TLS.Enabled),
	)
}

// Start runs the background loops and the HTTP server until a shutdown
// signal arrives or the server fails.
func (app *Application) Start() error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	loopCtx, cancelLoops := context.WithCancel(context.Background())
	var loops sync.WaitGroup

	loops.Add(3)
	go func() {
		defer loops.Done()
		app.eventBus.Start(loopCtx)
	}()
	go func() {
		defer loops.Done()
		if err := app.acquisitionService.Run(loopCtx); err != nil {
			app.logger.Error("Acquisition loop stopped", zap.Error(err))
		}
	}()
	go func() {
		defer loops.Done()
		app.wsHandler.Run(loopCtx)
	}()

	serverErr := make(chan error, 1)
	go func() {
		app.logger.Info("Starting HTTP server", zap.String("address", app.server.Addr))

		var err error
		if app.config.Server.TLS.Enabled {
			err = app.server.ListenAndServeTLS(
				app.config.Server.TLS.CertFile,
				app.config.Server.TLS.KeyFile,
			)
		} else {
			err = app.server.ListenAndServe()
		}

		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			serverErr <- err
		}
		close(serverErr)
	}()

	var runErr error
	select {
	case <-ctx.Done():
		app.logger.Info("Received shutdown signal")
	case err := <-serverErr:
		if err != nil {
			app.logger.Error("HTTP server failed", zap.Error(err))
			runErr = fmt.Errorf("http server: %w", err)
		}
	}

	app.shutdown(cancelLoops, &loops)
	return runErr
}

// shutdown performs graceful shutdown. The HTTP server stops first so no
// new commands reach the acquisition loop, then the loop finalizes any
// active session and pending results are flushed before the database closes.
func (app *Application) shutdown(cancelLoops context.CancelFunc, loops *sync.WaitGroup) {
	serviceLogger := utils.NewServiceLogger(app.logger, "biosignal-service")
	serviceLogger.LogServiceStop("shutdown requested")

	ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()

	if err := app.server.Shutdown(ctx); err != nil {
		app.logger.Error("HTTP server shutdown error", zap.Error(err))
	} else {
		app.logger.Info("HTTP server stopped")
	}

	cancelLoops()
	loops.Wait()
	app.acquisitionService.Wait()

	if app.database != nil {
		if err := app.database.Close(); err != nil {
			app.logger.Error("Database close error", zap.Error(err))
		} else {
			app.logger.Info("Database connection closed")
		}
	}

	app.logger.Info("Application shutdown completed")

	if err := utils.CloseLogger(app.logger); err != nil {
		fmt.Fprintf(os.Stderr, "Logger close error: %v\n", err)
	}
}
