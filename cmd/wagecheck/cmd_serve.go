/*
cmd_serve.go - HTTP server startup

STARTUP SEQUENCE:
  1. Load configuration and build the logger
  2. Open the SQLite store; save --awards rule sets into it
  3. Build the rule table from presets plus stored rule sets
  4. Create the review queue, API handler and router
  5. Start the SLA monitor and the server

GRACEFUL SHUTDOWN:
  On SIGINT/SIGTERM:
  1. Stop the SLA monitor
  2. Stop accepting new connections
  3. Wait for active requests to complete (30s timeout)
  4. Close database connection
*/
package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/warp/wage-compliance/api"
	"github.com/warp/wage-compliance/awards"
	"github.com/warp/wage-compliance/compliance"
	"github.com/warp/wage-compliance/store/sqlite"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the HTTP API and the SLA monitor",
	RunE:  runServe,
}

func runServe(cmd *cobra.Command, _ []string) error {
	cfg, log, err := setup()
	if err != nil {
		return err
	}
	defer log.Sync()

	engineCfg, err := cfg.EngineSettings()
	if err != nil {
		return err
	}
	reviewCfg, err := cfg.ReviewSettings()
	if err != nil {
		return err
	}
	loc, err := cfg.Location()
	if err != nil {
		return err
	}

	store, err := sqlite.New(cfg.Database.Path)
	if err != nil {
		return fmt.Errorf("failed to initialize database: %w", err)
	}
	defer store.Close()

	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}

	extra, err := extraRuleSets()
	if err != nil {
		return err
	}
	for _, set := range extra {
		if err := store.SaveRuleSet(ctx, set); err != nil {
			return fmt.Errorf("save rule set %s %s: %w", set.AwardID, set.Version, err)
		}
	}
	stored, err := store.RuleSets(ctx)
	if err != nil {
		return fmt.Errorf("load rule sets: %w", err)
	}
	rules, err := awards.Table(stored...)
	if err != nil {
		return fmt.Errorf("build rule table: %w", err)
	}

	national, err := store.Holidays(ctx, "")
	if err != nil {
		return fmt.Errorf("load holidays: %w", err)
	}
	reviews := compliance.NewReviewQueue(store, reviewCfg, compliance.NewHolidaySet(national...), log.Named("review"))

	handler := api.NewHandler(store, store, rules, reviews, api.Options{
		Engine:  engineCfg,
		Workers: cfg.Batch.Workers,
		Mode:    cfg.ReportMode(),
	}, log.Named("api"))
	router := api.NewRouter(handler, cfg.Server.AllowedOrigins)

	monitor, err := api.NewSLAMonitor(reviews, cfg.Scheduler.SLAMonitor, loc, log.Named("sla"))
	if err != nil {
		return err
	}

	server := &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.Server.Port),
		Handler:      router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 5 * time.Minute,
		IdleTimeout:  60 * time.Second,
	}

	sigCtx, stop := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	serveErr := make(chan error, 1)
	go func() {
		log.Info("server starting",
			zap.Int("port", cfg.Server.Port),
			zap.String("database", cfg.Database.Path),
			zap.Int("award_versions", len(rules.All())))
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serveErr <- err
		}
		close(serveErr)
	}()
	monitor.Start()

	select {
	case err := <-serveErr:
		monitor.Stop()
		if err != nil {
			return fmt.Errorf("server failed: %w", err)
		}
		return nil
	case <-sigCtx.Done():
	}

	log.Info("shutting down server")
	monitor.Stop()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("server forced to shutdown: %w", err)
	}

	log.Info("server stopped")
	return nil
}
