/*
main.go - Application entry point

PURPOSE:
  Initializes and starts the hostel exit request server.
  Handles configuration, dependency injection, and graceful shutdown.

STARTUP SEQUENCE:
  1. Parse command-line flags, load config (YAML + environment)
  2. Initialize logger
  3. Open the store (SQLite by default, PostgreSQL when configured)
  4. Build the extraction service and orchestrator
  5. Create the exit request service, API handler and router
  6. Start server with graceful shutdown

COMMAND-LINE FLAGS:
  -config  Path to YAML config (optional; environment and defaults suffice)

GRACEFUL SHUTDOWN:
  On SIGINT/SIGTERM:
  1. Stop accepting new connections
  2. Wait for active requests to complete (30s timeout)
  3. Close database connection
  4. Exit

EXAMPLES:
  # Local development with the canned extraction backend
  JWT_SECRET=$(openssl rand -hex 32) ./server

  # Ollama on this machine
  EXTRACTION_PROVIDER=ollama ./server -config=config.yaml

SEE ALSO:
  - config/config.go: Configuration schema and environment overrides
  - api/server.go: Router configuration
*/
package main

import (
	"context"
	"flag"
	"io"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/warp/exit-engine/api"
	"github.com/warp/exit-engine/auth"
	"github.com/warp/exit-engine/config"
	"github.com/warp/exit-engine/exitreq"
	"github.com/warp/exit-engine/extract"
	"github.com/warp/exit-engine/logger"
	"github.com/warp/exit-engine/rules"
	"github.com/warp/exit-engine/store/postgres"
	"github.com/warp/exit-engine/store/sqlite"
	"github.com/warp/exit-engine/temporal"
)

func main() {
	// Flags
	configPath := flag.String("config", "", "Path to YAML config file")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		logger.Error("Failed to load configuration", "error", err)
		os.Exit(1)
	}

	logger.Initialize(cfg.Log.Level, cfg.Log.Format)
	loc := cfg.Location()

	// Initialize store
	store, closer, err := openStore(cfg, loc)
	if err != nil {
		logger.Error("Failed to initialize database", "driver", cfg.Database.Driver, "error", err)
		os.Exit(1)
	}
	defer closer.Close()

	// Extraction
	extractionSvc, err := extract.NewService(extract.ServiceConfig{
		Provider:    cfg.Extraction.Provider,
		Model:       cfg.Extraction.Model,
		Endpoint:    cfg.Extraction.Endpoint,
		APIKey:      cfg.Extraction.APIKey,
		MaxRetries:  cfg.Extraction.MaxRetries,
		Temperature: cfg.Extraction.Temperature,
		MaxTokens:   cfg.Extraction.MaxTokens,
		JSONMode:    cfg.Extraction.JSONMode,
		HTTPTimeout: cfg.ExtractionTimeout(),
	})
	if err != nil {
		logger.Error("Failed to configure extraction service", "error", err)
		os.Exit(1)
	}
	orchestrator := extract.NewOrchestrator(extractionSvc, cfg.ExtractionTimeout(), loc)

	// Rules
	fees, err := rules.NewFeeSchedule(cfg.Fees.TwoSeaterPerDay, cfg.Fees.DefaultPerDay, cfg.Fees.FreeDays)
	if err != nil {
		logger.Error("Invalid fee schedule", "error", err)
		os.Exit(1)
	}

	svc := exitreq.NewService(store, orchestrator, temporal.NewNormalizer(loc),
		exitreq.WithFeeSchedule(fees),
		exitreq.WithRiskThresholds(rules.RiskThresholds{MediumDays: cfg.Risk.MediumDays, HighDays: cfg.Risk.HighDays}),
	)

	// Create router
	handler := api.NewHandler(svc, auth.NewVerifier(cfg.JWT.Secret, cfg.JWT.Issuer))
	router := api.NewRouter(handler, cfg.Server.AllowedOrigins)

	// Create server
	server := &http.Server{
		Addr:         cfg.GetServerAddress(),
		Handler:      router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: cfg.ExtractionTimeout() + 15*time.Second,
		IdleTimeout:  60 * time.Second,
	}

	// Start server in goroutine
	go func() {
		logger.Info("Server starting",
			"addr", server.Addr,
			"database", cfg.Database.Driver,
			"extraction", extractionSvc.Name(),
			"timezone", loc.String())
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Error("Server failed", "error", err)
			os.Exit(1)
		}
	}()

	// Wait for interrupt signal
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info("Shutting down server...")

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := server.Shutdown(ctx); err != nil {
		logger.Error("Server forced to shutdown", "error", err)
		return
	}

	logger.Info("Server stopped")
}

func openStore(cfg *config.Config, loc *time.Location) (exitreq.Store, io.Closer, error) {
	if cfg.Database.Driver == "postgres" {
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()

		store, err := postgres.Open(ctx, cfg.GetDatabaseConnectionString(), loc)
		if err != nil {
			return nil, nil, err
		}
		if err := store.Migrate(ctx); err != nil {
			store.Close()
			return nil, nil, err
		}
		return store, store, nil
	}

	store, err := sqlite.New(cfg.Database.Path, sqlite.WithLocation(loc))
	if err != nil {
		return nil, nil, err
	}
	return store, store, nil
}
