/*
main.go - Application entry point

PURPOSE:
  Initializes and starts the shift engine server.
  Handles configuration, dependency injection, and graceful shutdown.

STARTUP SEQUENCE:
  1. Resolve configuration (defaults, YAML file, environment, flags)
  2. Initialize logger and store (SQLite or PostgreSQL)
  3. Apply the startup catalog, if any
  4. Create API handler and router
  5. Start the background sweep and the HTTP server
  6. Shut down gracefully on SIGINT/SIGTERM

COMMAND-LINE FLAGS:
  -config      YAML config file (env SHIFT_CONFIG)
  -port        HTTP server port (env PORT, default: 8080)
  -db-driver   sqlite | postgres (env DB_DRIVER, default: sqlite)
  -db          DSN (env DATABASE_URL, default: shifts.db)
               Use ":memory:" for in-memory database
  -catalog     YAML catalog applied at startup (env CATALOG_PATH)
  -log-level   debug | info | warn | error (env LOG_LEVEL)
  -log-format  console | json (env LOG_FORMAT)

  Environment only: DEFAULT_HOURLY_RATE, SWEEP_INTERVAL,
  REQUEST_SWEEP_EVERY, CONFIG_TTL, CORS_ALLOWED_ORIGINS.

GRACEFUL SHUTDOWN:
  On SIGINT/SIGTERM:
  1. Stop accepting new connections
  2. Wait for active requests to complete (30s timeout)
  3. Stop the background sweep
  4. Close database connection

EXAMPLES:
  ./server -db=":memory:" -catalog=./catalog.yaml
  DATABASE_URL="postgres://u:p@localhost/shifts?sslmode=disable" ./server -db-driver=postgres

SEE ALSO:
  - api/server.go: Router configuration
  - factory/catalog.go: Catalog format
*/
package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog"
	"github.com/warp/shift-engine/api"
	"github.com/warp/shift-engine/factory"
	"github.com/warp/shift-engine/store/sqlstore"
)

func main() {
	cfg, err := loadConfig(os.Args[1:])
	if err != nil {
		fmt.Fprintf(os.Stderr, "config: %v\n", err)
		os.Exit(2)
	}
	log := newLogger(cfg.Log, os.Stdout)

	if err := run(cfg, log); err != nil {
		log.Fatal().Err(err).Msg("server failed")
	}
}

func run(cfg Config, log zerolog.Logger) error {
	// Initialize store
	store, err := sqlstore.Open(cfg.Database.Driver, cfg.Database.DSN)
	if err != nil {
		return fmt.Errorf("initialize database: %w", err)
	}
	defer store.Close()
	log.Info().Str("driver", store.Dialect()).Msg("database ready")

	rate, _ := cfg.defaultRate()
	handler := api.NewHandler(store, nil, log, api.Options{
		DefaultRate:    rate,
		ConfigTTL:      cfg.ConfigTTL,
		SweepEvery:     cfg.RequestSweepEvery,
		AllowedOrigins: cfg.AllowedOrigins,
	})

	if cfg.Catalog != "" {
		if err := seedCatalog(context.Background(), handler, cfg.Catalog, log); err != nil {
			return err
		}
	}

	scheduler := api.NewReconciliationScheduler(handler.Reconciler, log)
	scheduler.CheckInterval = cfg.SweepInterval
	scheduler.Enabled = cfg.SweepInterval > 0
	handler.Scheduler = scheduler
	scheduler.Start()
	defer scheduler.Stop()

	server := &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.Port),
		Handler:      api.NewRouter(handler),
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	errc := make(chan error, 1)
	go func() {
		log.Info().Int("port", cfg.Port).Msgf("server starting on http://localhost:%d", cfg.Port)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errc <- err
		}
	}()

	// Wait for interrupt signal
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	select {
	case err := <-errc:
		return err
	case <-quit:
	}

	log.Info().Msg("shutting down server")

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := server.Shutdown(ctx); err != nil {
		return fmt.Errorf("forced shutdown: %w", err)
	}
	log.Info().Msg("server stopped")
	return nil
}

func seedCatalog(ctx context.Context, h *api.Handler, path string, log zerolog.Logger) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read catalog: %w", err)
	}
	catalog, err := factory.ParseCatalog(data)
	if err != nil {
		return fmt.Errorf("catalog %s: %w", path, err)
	}
	sum, err := factory.Apply(ctx, h.Store, catalog, h.Clock.Now())
	h.Config.Invalidate()
	if err != nil {
		return fmt.Errorf("apply catalog %s: %w", path, err)
	}
	log.Info().
		Str("path", path).
		Int("workers", sum.Workers).
		Int("templates", sum.Templates).
		Int("tier_sets", sum.TierSets).
		Int("goals", sum.Goals).
		Msg("catalog applied")
	return nil
}
