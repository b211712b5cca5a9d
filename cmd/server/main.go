package main

import (
	"context"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/sirupsen/logrus"

	"github.com/drug-conflict-mcp-server/internal/api"
	"github.com/drug-conflict-mcp-server/internal/config"
	"github.com/drug-conflict-mcp-server/internal/database"
	"github.com/drug-conflict-mcp-server/internal/domain"
	"github.com/drug-conflict-mcp-server/internal/ingest"
	"github.com/drug-conflict-mcp-server/internal/reviewlog"
	"github.com/drug-conflict-mcp-server/internal/service"
)

func main() {
	// Load configuration
	configManager, err := config.NewManager()
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}

	// Validate configuration
	if err := configManager.Validate(); err != nil {
		log.Fatalf("Configuration validation failed: %v", err)
	}

	cfg := configManager.GetConfig()
	logger := config.NewLogger(cfg.Logging)
	logger.WithFields(logrus.Fields{
		"host":        cfg.Server.Host,
		"port":        cfg.Server.Port,
		"environment": cfg.Environment,
	}).Info("Starting drug conflict server")

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	records, err := loadRules(cfg.Data.RulesFile, logger)
	if err != nil {
		logger.WithError(err).Fatal("Failed to load rules")
	}

	// Conflict cache with optional shared Redis tier
	cache, err := service.NewConflictCache(cfg.Cache.MaxItems, logger)
	if err != nil {
		logger.WithError(err).Fatal("Failed to create conflict cache")
	}
	if cfg.Cache.RemoteEnabled {
		remote, err := service.NewRemoteTier(cfg.Cache, logger)
		if err != nil {
			logger.WithError(err).Warn("Redis tier unavailable, continuing with local cache only")
		} else {
			cache.WithRemote(remote)
			defer remote.Close()
		}
	}

	engine := service.NewRuleEngine(records, cache, logger)

	store, err := openStore(ctx, configManager, logger)
	if err != nil {
		logger.WithError(err).Fatal("Failed to open review log")
	}
	if store != nil {
		defer store.Close()
	}

	// Create server
	server := api.NewServer(configManager, engine, store, logger)

	// Handle shutdown and reload signals
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM, syscall.SIGHUP)

	go func() {
		for sig := range sigChan {
			if sig == syscall.SIGHUP {
				reloadRules(engine, cfg.Data.RulesFile, logger)
				continue
			}
			logger.Info("Shutdown signal received, gracefully shutting down...")
			cancel()
			return
		}
	}()

	// Start server
	if err := server.Start(ctx); err != nil {
		logger.WithError(err).Fatal("Server failed")
	}

	logger.Info("Server stopped")
}

func loadRules(path string, logger *logrus.Logger) ([]domain.RuleRecord, error) {
	records, err := ingest.LoadRuleRecords(path)
	if err != nil {
		return nil, err
	}
	valid, rejected := service.NewRuleValidator(logger).Validate(records)
	logger.WithFields(logrus.Fields{
		"file":     path,
		"accepted": len(valid),
		"rejected": len(rejected),
	}).Info("Loaded rules")
	if len(valid) == 0 {
		return nil, fmt.Errorf("%w in %s: %d row(s) rejected", domain.ErrNoValidRules, path, len(rejected))
	}
	return valid, nil
}

func reloadRules(engine *service.RuleEngine, path string, logger *logrus.Logger) {
	records, err := loadRules(path, logger)
	if err != nil {
		logger.WithError(err).Error("Rule reload failed, keeping current knowledge base")
		return
	}
	engine.Reload(records)
}

// openStore opens the configured review log backend. Driver "none" yields a nil store.
func openStore(ctx context.Context, configManager *config.Manager, logger *logrus.Logger) (reviewlog.Store, error) {
	cfg := configManager.GetConfig()

	switch cfg.Storage.Driver {
	case "sqlite":
		store, err := reviewlog.NewSQLiteStore(cfg.Storage.SQLitePath)
		if err != nil {
			return nil, err
		}
		return store, nil

	case "postgres":
		runner, err := database.NewMigrationRunner(configManager.GetDatabaseURL(), "", logger)
		if err != nil {
			return nil, fmt.Errorf("failed to create migration runner: %w", err)
		}
		defer runner.Close()
		if err := runner.Up(ctx); err != nil {
			return nil, fmt.Errorf("failed to run migrations: %w", err)
		}

		db, err := database.NewConnection(ctx, cfg.Database, logger)
		if err != nil {
			return nil, err
		}
		store, err := reviewlog.NewPostgresStore(ctx, db.Pool)
		if err != nil {
			db.Close()
			return nil, err
		}
		return &pgStore{PostgresStore: store, db: db}, nil

	default:
		logger.Warn("Review log storage disabled")
		return nil, nil
	}
}

// pgStore closes the connection pool along with the store.
type pgStore struct {
	*reviewlog.PostgresStore
	db *database.DB
}

func (s *pgStore) Close() error {
	s.db.Close()
	return nil
}
