/*
main.go - Application entry point

PURPOSE:
  Initializes and starts the staff pay engine server.
  Handles configuration, store selection, the year-end scheduler and
  graceful shutdown.

STARTUP SEQUENCE:
  1. Load configuration (.env, environment, then flags)
  2. Open the store selected by DB_DRIVER
  3. Load leave/pay settings (SETTINGS_FILE or defaults)
  4. Create API handler and start the reconciliation scheduler
  5. Configure HTTP router
  6. Start server with graceful shutdown

COMMAND-LINE FLAGS:
  -port    HTTP server port (overrides APP_PORT)
  -db      SQLite database path (overrides DB_PATH)
           Use ":memory:" for in-memory database

ENVIRONMENT:
  APP_PORT, APP_ENV, LOG_LEVEL
  DB_DRIVER (sqlite|postgres|memory), DB_PATH, DATABASE_URL
  RATE_LIMIT_RPS, RATE_LIMIT_BURST
  SETTINGS_FILE, RECONCILE_INTERVAL

GRACEFUL SHUTDOWN:
  On SIGINT/SIGTERM:
  1. Stop the scheduler
  2. Stop accepting new connections
  3. Wait for active requests to complete (30s timeout)
  4. Close database connection

EXAMPLES:
  # Run with file database
  ./server -db="./data/staffpay.db"

  # Run against Postgres
  DB_DRIVER=postgres DATABASE_URL=postgres://localhost/staffpay ./server

SEE ALSO:
  - config/config.go: Environment configuration
  - api/server.go: Router configuration
  - api/scheduler.go: Year-end reconciliation
*/
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/warp/staff-pay-engine/api"
	"github.com/warp/staff-pay-engine/config"
	"github.com/warp/staff-pay-engine/factory"
	"github.com/warp/staff-pay-engine/staff"
	"github.com/warp/staff-pay-engine/store/memory"
	"github.com/warp/staff-pay-engine/store/postgres"
	"github.com/warp/staff-pay-engine/store/sqlite"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		slog.Error("failed to load configuration", slog.Any("error", err))
		os.Exit(1)
	}

	// Flags
	port := flag.Int("port", cfg.App.Port, "HTTP server port")
	dbPath := flag.String("db", cfg.Database.Path, "SQLite database path")
	flag.Parse()
	cfg.App.Port = *port
	cfg.Database.Path = *dbPath

	logger := api.NewLogger(cfg.App.Env, cfg.SlogLevel())
	slog.SetDefault(logger)

	store, closeStore, err := openStore(cfg.Database)
	if err != nil {
		logger.Error("failed to initialize store", slog.String("driver", cfg.Database.Driver), slog.Any("error", err))
		os.Exit(1)
	}
	defer closeStore()

	settings := factory.DefaultSettings()
	if cfg.SettingsFile != "" {
		if settings, err = factory.NewSettingsFactory().LoadFile(cfg.SettingsFile); err != nil {
			logger.Error("failed to load settings", slog.String("file", cfg.SettingsFile), slog.Any("error", err))
			os.Exit(1)
		}
	}

	handler := api.NewHandler(store, settings, logger)

	scheduler := api.NewReconciliationScheduler(handler, cfg.ReconcileInterval)
	scheduler.Start()

	opts := api.DefaultRouterOptions()
	opts.RateLimitRPS = cfg.RateLimit.RPS
	opts.RateLimitBurst = cfg.RateLimit.Burst
	opts.LogLevel = cfg.SlogLevel()
	router := api.NewRouter(handler, opts)

	server := &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.App.Port),
		Handler:      router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		logger.Info("server starting",
			slog.Int("port", cfg.App.Port),
			slog.String("driver", cfg.Database.Driver))
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("server failed", slog.Any("error", err))
			os.Exit(1)
		}
	}()

	// Wait for interrupt signal
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info("shutting down server")
	scheduler.Stop()

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := server.Shutdown(ctx); err != nil {
		logger.Error("server forced to shutdown", slog.Any("error", err))
	}

	logger.Info("server stopped")
}

// openStore returns the store for the configured driver and its close func.
func openStore(db config.DatabaseConfig) (staff.Store, func(), error) {
	switch db.Driver {
	case "postgres":
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		store, err := postgres.New(ctx, db.URL)
		if err != nil {
			return nil, nil, err
		}
		return store, store.Close, nil
	case "memory":
		return memory.NewTx(), func() {}, nil
	default:
		store, err := sqlite.New(db.Path)
		if err != nil {
			return nil, nil, err
		}
		return store, func() { store.Close() }, nil
	}
}
