// Package main provides the MCP stdio entry point for the drug conflict checker.
// It needs no external services: rules come from a CSV file and results are cached in memory.
package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/sirupsen/logrus"

	"github.com/drug-conflict-mcp-server/internal/config"
	"github.com/drug-conflict-mcp-server/internal/domain"
	"github.com/drug-conflict-mcp-server/internal/ingest"
	"github.com/drug-conflict-mcp-server/internal/mcp"
	"github.com/drug-conflict-mcp-server/internal/service"
	"github.com/drug-conflict-mcp-server/internal/setup"
)

func main() {
	// Check for setup subcommand
	if len(os.Args) > 1 && os.Args[1] == "setup" {
		cli := setup.NewCLI(os.Stdin, os.Stdout)
		if err := cli.Run(os.Args[2:]); err != nil {
			log.Fatalf("Setup failed: %v", err)
		}
		return
	}

	// Load lightweight configuration
	cfg := config.LoadLiteConfig()
	logger := config.NewLogger(domain.LoggingConfig{Level: cfg.LogLevel, Format: cfg.LogFormat})

	records, err := ingest.LoadRuleRecords(cfg.RulesPath())
	if err != nil {
		log.Fatalf("Failed to load rules: %v", err)
	}
	valid, rejected := service.NewRuleValidator(logger).Validate(records)
	logger.WithFields(logrus.Fields{
		"file":     cfg.RulesPath(),
		"accepted": len(valid),
		"rejected": len(rejected),
	}).Info("Loaded rules")
	if len(valid) == 0 {
		log.Fatalf("Failed to load rules: %v in %s", domain.ErrNoValidRules, cfg.RulesPath())
	}

	cache, err := service.NewConflictCache(cfg.CacheMaxItems, logger)
	if err != nil {
		log.Fatalf("Failed to create conflict cache: %v", err)
	}
	server := mcp.NewServer(service.NewRuleEngine(valid, cache, logger), logger)

	// Setup graceful shutdown
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Handle shutdown signals
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		<-sigChan
		logger.Info("Shutdown signal received, gracefully shutting down...")
		cancel()
	}()

	// Start MCP server
	if err := server.Start(ctx); err != nil && ctx.Err() == nil {
		log.Fatalf("MCP server failed: %v", err)
	}

	logger.Info("Drug conflict MCP server stopped")
}
