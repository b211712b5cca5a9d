// Package main runs one batch review: every patient is prescribed from the drug
// catalogue, each prescription is checked for conflicts, and the findings are written
// to a CSV report and summarized on stdout.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/sirupsen/logrus"

	"github.com/drug-conflict-mcp-server/internal/config"
	"github.com/drug-conflict-mcp-server/internal/domain"
	"github.com/drug-conflict-mcp-server/internal/ingest"
	"github.com/drug-conflict-mcp-server/internal/reviewlog"
	"github.com/drug-conflict-mcp-server/internal/service"
)

func main() {
	cfg := config.LoadLiteConfig()
	logger := config.NewLogger(domain.LoggingConfig{Level: cfg.LogLevel, Format: cfg.LogFormat})

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, cfg, logger); err != nil {
		logger.WithError(err).Error("Review failed")
		os.Exit(1)
	}
}

func run(ctx context.Context, cfg *config.LiteConfig, logger *logrus.Logger) error {
	records, err := ingest.LoadRuleRecords(cfg.RulesPath())
	if err != nil {
		return err
	}
	patients, err := ingest.LoadPatients(cfg.PatientsPath())
	if err != nil {
		return err
	}
	drugs, err := ingest.LoadDrugs(cfg.DrugsPath())
	if err != nil {
		return err
	}

	valid, rejected := service.NewRuleValidator(logger).Validate(records)
	logger.WithFields(logrus.Fields{
		"rules":    len(valid),
		"rejected": len(rejected),
		"patients": len(patients),
		"drugs":    len(drugs),
	}).Info("Loaded review inputs")
	if len(valid) == 0 {
		return fmt.Errorf("%w in %s", domain.ErrNoValidRules, cfg.RulesPath())
	}

	cache, err := service.NewConflictCache(cfg.CacheMaxItems, logger)
	if err != nil {
		return err
	}
	engine := service.NewRuleEngine(valid, cache, logger)

	var recorder service.ReviewRecorder
	if cfg.StoreReviews {
		store, err := reviewlog.NewSQLiteStore(cfg.ReviewDBPath())
		if err != nil {
			return fmt.Errorf("failed to open review log: %w", err)
		}
		defer store.Close()
		recorder = store
	}

	reviews := service.NewReviewService(engine, recorder, logger)
	entries, summary, err := reviews.ReviewAll(ctx, patients, service.NewCatalogPrescriber(drugs))
	if err != nil {
		return err
	}

	if err := cfg.EnsureOutputDir(); err != nil {
		return fmt.Errorf("failed to create output directory: %w", err)
	}
	reportPath := cfg.ConflictsCSVPath()
	f, err := os.Create(reportPath)
	if err != nil {
		return fmt.Errorf("failed to create report: %w", err)
	}
	if err := reviewlog.WriteCSV(f, entries); err != nil {
		f.Close()
		return err
	}
	if err := f.Close(); err != nil {
		return fmt.Errorf("failed to write report: %w", err)
	}

	return reviewlog.WriteSummary(os.Stdout, summary, reportPath)
}
