/*
main.go - Application entry point

PURPOSE:
  Initializes and starts the sales engine server. Handles configuration,
  dependency injection, and graceful shutdown.

STARTUP SEQUENCE:
  1. Load configuration (.env / environment)
  2. Initialize SQLite store
  3. Create API handler with the configured engine components
  4. Start the pay-run scheduler
  5. Start server with graceful shutdown

CONFIGURATION:
  All config via environment (see config/config.go for the knobs and
  their defaults). DATABASE_PATH accepts ":memory:" for throwaway runs.

GRACEFUL SHUTDOWN:
  On SIGINT/SIGTERM:
  1. Stop accepting new connections
  2. Wait for active requests to complete (30s timeout)
  3. Stop the pay-run scheduler
  4. Close database connection
  5. Exit

SEE ALSO:
  - api/server.go: Router configuration
  - api/handlers.go: HTTP handlers
  - store/sqlite/sqlite.go: Database implementation
*/
package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/cumberland/sales-engine/api"
	"github.com/cumberland/sales-engine/config"
	"github.com/cumberland/sales-engine/crm"
	"github.com/cumberland/sales-engine/store/sqlite"
)

func main() {
	log := logrus.New()
	log.SetFormatter(&logrus.TextFormatter{FullTimestamp: true})

	cfg, err := config.New()
	if err != nil {
		log.WithError(err).Fatal("failed to load configuration")
	}
	log.SetLevel(cfg.LogrusLevel())

	// Initialize store
	st, err := sqlite.New(cfg.Database.Path)
	if err != nil {
		log.WithError(err).Fatal("failed to initialize database")
	}
	defer st.Close()

	// Initialize handler with the configured engine components
	handler := api.NewHandler(st, st, log)
	handler.Arbitrator = &crm.Arbitrator{StaleAfter: cfg.StaleAfter()}
	handler.Calculator = &crm.Calculator{
		Periods: cfg.EnginePayPeriods(),
		Tiers:   cfg.EngineTiers(),
		Plans:   cfg.EnginePlans(),
	}
	handler.Summarizer = &crm.Summarizer{
		Periods: cfg.EnginePayPeriods(),
		Tiers:   cfg.EngineTiers(),
	}

	if cfg.App.SeedDemo {
		leads, records, err := api.SeedDemo(context.Background(), st, st, handler.Calculator, time.Now())
		if err != nil {
			log.WithError(err).Warn("failed to seed demo data")
		} else {
			log.WithFields(logrus.Fields{"leads": leads, "records": records}).Info("demo data seeded")
		}
	}

	// Pay-run scheduler
	scheduler := api.NewPayRunScheduler(st, log)
	scheduler.CheckInterval = cfg.PayRunInterval()
	scheduler.Enabled = cfg.PayRun.Enabled
	scheduler.Start()
	defer scheduler.Stop()

	// Create router and server
	router := api.NewRouter(handler)
	server := &http.Server{
		Addr:         cfg.Addr(),
		Handler:      router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	// Start server in goroutine
	go func() {
		log.WithField("addr", cfg.Addr()).Info("server starting")
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.WithError(err).Fatal("server failed")
		}
	}()

	// Wait for interrupt signal
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info("shutting down server")

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := server.Shutdown(ctx); err != nil {
		log.WithError(err).Fatal("server forced to shutdown")
	}

	log.Info("server stopped")
}
