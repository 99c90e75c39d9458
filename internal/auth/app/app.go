package app

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/warungtech/gatekit/internal/auth/google"
	httpapi "github.com/warungtech/gatekit/internal/auth/http"
	"github.com/warungtech/gatekit/internal/auth/service"
	"github.com/warungtech/gatekit/internal/auth/store"
	"github.com/warungtech/gatekit/internal/auth/store/drivers/sqlite"
	"github.com/warungtech/gatekit/pkg/jwtx"
	"github.com/warungtech/gatekit/pkg/slogx"
)

// BuildVersion should be set at build time via ldflags.
var BuildVersion = "v0.1.0"

// Application encapsulates the auth service with all its dependencies.
type Application struct {
	cfg    Config
	logger *slog.Logger

	db     store.Store
	tokens *service.TokenService
	google *google.Provider // nil when federated login is unconfigured

	authService       *service.AuthService
	apiKeyService     *service.APIKeyService
	permissionService *service.PermissionService
	userService       *service.UserService

	server *http.Server
	router *httpapi.Router
}

// New creates an Application instance with all dependencies initialized.
func New(cfg Config) (*Application, error) {
	app := &Application{
		cfg: cfg,
		logger: slogx.New(slogx.Config{
			Service: "auth-service",
			Version: BuildVersion,
			Env:     cfg.Env,
			Level:   cfg.LogLevel,
			Format:  cfg.LogFormat,
		}),
	}

	if err := app.initDatabase(); err != nil {
		return nil, err
	}

	if err := app.initGoogle(); err != nil {
		_ = app.db.Close()
		return nil, err
	}

	if err := app.initServices(); err != nil {
		_ = app.db.Close()
		return nil, err
	}
	if err := app.initHTTP(); err != nil {
		_ = app.db.Close()
		return nil, err
	}

	return app, nil
}

// Run starts the application and blocks until shutdown is requested.
func (app *Application) Run() error {
	app.logger.Info("auth service starting", "port", app.cfg.Port, "version", BuildVersion)

	serverErrors := make(chan error, 1)
	go func() {
		serverErrors <- app.server.ListenAndServe()
	}()

	shutdown := make(chan os.Signal, 1)
	signal.Notify(shutdown, os.Interrupt, syscall.SIGTERM)

	select {
	case err := <-serverErrors:
		if err != nil && err != http.ErrServerClosed {
			return fmt.Errorf("server failed: %w", err)
		}
	case sig := <-shutdown:
		app.logger.Info("shutdown signal received", "signal", sig)

		if err := app.Shutdown(); err != nil {
			return fmt.Errorf("graceful shutdown failed: %w", err)
		}
	}

	return nil
}

// Shutdown gracefully shuts down the application.
func (app *Application) Shutdown() error {
	app.logger.Info("shutting down auth service...")

	ctx, cancel := context.WithTimeout(context.Background(), app.cfg.ShutdownGracePeriod)
	defer cancel()

	if err := app.server.Shutdown(ctx); err != nil {
		app.logger.Error("graceful server shutdown failed", "error", err)
		if err := app.server.Close(); err != nil {
			app.logger.Error("error closing server", "error", err)
		}
	}

	if err := app.db.Close(); err != nil {
		app.logger.Error("error closing database", "error", err)
		return err
	}

	app.logger.Info("auth service stopped")
	return nil
}

func (app *Application) initDatabase() error {
	host := fmt.Sprintf("file:%s?_busy_timeout=5000&_journal_mode=WAL", app.cfg.DatabaseFile)
	db, err := sqlite.NewStore(host)
	if err != nil {
		return fmt.Errorf("failed to initialize database: %w", err)
	}
	app.db = db

	if err := db.ApplyMigrations(); err != nil {
		_ = db.Close()
		return fmt.Errorf("failed to apply database migrations: %w", err)
	}

	app.logger.Info("database migrations applied successfully")
	return nil
}

func (app *Application) initGoogle() error {
	if app.cfg.GoogleClientID == "" {
		app.logger.Info("google federated login disabled: no client id configured")
		return nil
	}

	provider, err := google.NewProvider(context.Background(), google.Config{
		ClientID:     app.cfg.GoogleClientID,
		ClientSecret: app.cfg.GoogleClientSecret,
		CallbackURL:  app.cfg.GoogleCallbackURL,
	})
	if err != nil {
		return fmt.Errorf("failed to initialize google provider: %w", err)
	}

	app.google = provider
	app.logger.Info("google federated login enabled")
	return nil
}

func (app *Application) initServices() error {
	accessSigner, err := jwtx.NewSigner(app.cfg.JWTSecretKey)
	if err != nil {
		return fmt.Errorf("failed to initialize access signer: %w", err)
	}
	refreshSigner, err := jwtx.NewSigner(app.cfg.JWTRefreshKey)
	if err != nil {
		return fmt.Errorf("failed to initialize refresh signer: %w", err)
	}

	app.tokens = &service.TokenService{
		AccessSigner:  accessSigner,
		RefreshSigner: refreshSigner,
		AccessTTL:     app.cfg.AccessTTL,
		RefreshTTL:    app.cfg.RefreshTTL,
	}

	app.authService = &service.AuthService{Store: app.db, Tokens: app.tokens}
	app.apiKeyService = &service.APIKeyService{Store: app.db}
	app.permissionService = &service.PermissionService{Store: app.db}
	app.userService = &service.UserService{Store: app.db}

	return nil
}

func (app *Application) initHTTP() error {
	accessVerifier, err := jwtx.NewVerifier(app.cfg.JWTSecretKey)
	if err != nil {
		return fmt.Errorf("failed to initialize access verifier: %w", err)
	}
	refreshVerifier, err := jwtx.NewVerifier(app.cfg.JWTRefreshKey)
	if err != nil {
		return fmt.Errorf("failed to initialize refresh verifier: %w", err)
	}

	router := httpapi.NewRouter(
		accessVerifier,
		refreshVerifier,
		BuildVersion,
		app.db,
		app.logger,
	)

	router.AuthService = app.authService
	router.APIKeyService = app.apiKeyService
	router.PermissionService = app.permissionService
	router.UserService = app.userService
	if app.google != nil {
		router.Google = app.google
	}
	router.ApplyRoutes()

	app.router = router

	app.server = &http.Server{
		Addr:              fmt.Sprintf(":%d", app.cfg.Port),
		Handler:           router,
		ReadHeaderTimeout: 3 * time.Second,
	}

	return nil
}
