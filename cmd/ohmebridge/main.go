package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"ohmebridge/config"
	"ohmebridge/internal/api"
	"ohmebridge/internal/drivers/ohme"
	"ohmebridge/internal/logging"
	"ohmebridge/internal/scheduler"
	"ohmebridge/internal/storage/sqlite"
)

const (
	shutdownTimeout   = 10 * time.Second
	startupTimeout    = 60 * time.Second
	defaultConfigPath = "config.yaml"
)

func main() {
	if err := run(); err != nil {
		log.Fatalf("Application error: %v", err)
	}
}

func run() error {
	configPath := flag.String("config", defaultConfigPath, "Path to configuration file (JSON or YAML)")
	useEnv := flag.Bool("env", false, "Load configuration from environment variables")
	flag.Parse()

	var cfg *config.Config
	var err error

	if *useEnv {
		cfg, err = config.LoadFromEnv()
	} else {
		cfg, err = config.Load(*configPath)
	}

	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}

	logger := logging.NewLogger(logging.LoggerConfig{
		Format: cfg.Logging.Format,
		Level:  logging.ParseLevel(cfg.Logging.Level),
	})
	slog.SetDefault(logger)

	logger.Info("Initializing SQLite database", "path", cfg.Database.Path)
	db, err := sqlite.New(cfg.Database.Path)
	if err != nil {
		return fmt.Errorf("failed to initialize database: %w", err)
	}
	defer db.Close()

	httpClient := &http.Client{Timeout: cfg.Ohme.HTTPTimeout()}

	auth := ohme.NewAuthSession(ohme.AuthConfig{
		APIKey:         cfg.Ohme.APIKey,
		Email:          cfg.Ohme.Email,
		IdentityURL:    cfg.Ohme.IdentityURL,
		SecureTokenURL: cfg.Ohme.SecureTokenURL,
		HTTPClient:     httpClient,
		Logger:         logger,
	})
	charger := ohme.NewCharger(auth, ohme.Config{
		BaseURL:    cfg.Ohme.BaseURL,
		HTTPClient: httpClient,
		Logger:     logger,
	})
	controller := logging.NewChargerLogger(charger, logger)

	startupCtx, cancelStartup := context.WithTimeout(context.Background(), startupTimeout)
	defer cancelStartup()

	logger.Info("Signing in", "email", cfg.Ohme.Email)
	if err := auth.SignIn(startupCtx, cfg.Ohme.Password); err != nil {
		return fmt.Errorf("failed to sign in: %w", err)
	}

	sched := scheduler.NewScheduler(controller, db, cfg.Ohme.PollInterval(), logger)
	sched.SetAuthenticator(ohme.NewReauthenticator(auth, cfg.Ohme.Password))

	// A charger with no active session still serves the API; the poller retries.
	if err := sched.Poll(startupCtx); err != nil {
		if !errors.Is(err, ohme.ErrNoChargeSession) {
			logger.Warn("Initial charger refresh failed", "error", err)
		} else {
			logger.Info("No charge session yet")
		}
	}

	go sched.Start()

	router := api.NewRouter(api.RouterConfig{
		Charger: controller,
		Storage: db,
		Poller:  sched,
		APIKey:  cfg.Security.APIKey,
		Logger:  logger,
	})

	server := &http.Server{
		Addr:         fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port),
		Handler:      router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 2 * cfg.Ohme.HTTPTimeout(),
		IdleTimeout:  60 * time.Second,
	}

	serverErrors := make(chan error, 1)
	go func() {
		logger.Info("Starting HTTP server", "addr", server.Addr)
		serverErrors <- server.ListenAndServe()
	}()

	shutdown := make(chan os.Signal, 1)
	signal.Notify(shutdown, os.Interrupt, syscall.SIGTERM)

	select {
	case err := <-serverErrors:
		sched.Stop()
		return fmt.Errorf("server error: %w", err)

	case sig := <-shutdown:
		logger.Info("Starting graceful shutdown", "signal", sig.String())

		sched.Stop()

		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer shutdownCancel()

		if err := server.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("server shutdown error: %w", err)
		}

		logger.Info("Graceful shutdown complete")
	}

	return nil
}
