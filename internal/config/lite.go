// Package config provides configuration management for the conflict checker.
// This file contains the lightweight configuration for the MCP and review binaries.
package config

import (
	"os"
	"path/filepath"
	"strconv"
)

// LiteConfig is a simplified configuration for standalone operation.
// It requires no external databases and uses sensible defaults.
type LiteConfig struct {
	// Data files
	DataDir      string // Base directory for CSV inputs and the review log
	RulesFile    string
	PatientsFile string
	DrugsFile    string
	OutputDir    string // Where review reports are written

	// Cache settings
	CacheMaxItems int // Maximum cached results, 0 for unbounded

	// Review log
	StoreReviews bool // Persist review entries to SQLite

	// Logging
	LogLevel  string // Log level: debug, info, warn, error
	LogFormat string // Log format: json, text
}

// DefaultLiteConfig returns a configuration with sensible defaults.
func DefaultLiteConfig() *LiteConfig {
	return &LiteConfig{
		DataDir:       ".",
		OutputDir:     "output",
		CacheMaxItems: 1000,
		StoreReviews:  false,
		LogLevel:      "info",
		LogFormat:     "json",
	}
}

// LoadLiteConfig loads configuration from environment variables.
// Falls back to defaults if not set.
func LoadLiteConfig() *LiteConfig {
	cfg := DefaultLiteConfig()

	if v := os.Getenv("RXCHECK_DATA_DIR"); v != "" {
		cfg.DataDir = v
	}
	cfg.RulesFile = os.Getenv("RXCHECK_RULES_FILE")
	cfg.PatientsFile = os.Getenv("RXCHECK_PATIENTS_FILE")
	cfg.DrugsFile = os.Getenv("RXCHECK_DRUGS_FILE")
	if v := os.Getenv("RXCHECK_OUTPUT_DIR"); v != "" {
		cfg.OutputDir = v
	}

	if v := os.Getenv("RXCHECK_CACHE_MAX_ITEMS"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n >= 0 {
			cfg.CacheMaxItems = n
		}
	}

	if v := os.Getenv("RXCHECK_STORE_REVIEWS"); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			cfg.StoreReviews = b
		}
	}

	if v := os.Getenv("RXCHECK_LOG_LEVEL"); v != "" {
		cfg.LogLevel = v
	}
	if v := os.Getenv("RXCHECK_LOG_FORMAT"); v != "" {
		cfg.LogFormat = v
	}

	return cfg
}

// RulesPath returns the rules CSV, defaulting to rules.csv in the data directory.
func (c *LiteConfig) RulesPath() string {
	return c.fileOrDefault(c.RulesFile, "rules.csv")
}

// PatientsPath returns the patients CSV, defaulting to patients.csv in the data directory.
func (c *LiteConfig) PatientsPath() string {
	return c.fileOrDefault(c.PatientsFile, "patients.csv")
}

// DrugsPath returns the drug catalogue CSV, defaulting to drugs.csv in the data directory.
func (c *LiteConfig) DrugsPath() string {
	return c.fileOrDefault(c.DrugsFile, "drugs.csv")
}

// ReviewDBPath returns the path to the review log SQLite database.
func (c *LiteConfig) ReviewDBPath() string {
	return filepath.Join(c.DataDir, "review_log.db")
}

// ConflictsCSVPath returns where the conflicts report is written.
func (c *LiteConfig) ConflictsCSVPath() string {
	return filepath.Join(c.OutputDir, "conflicts.csv")
}

// EnsureOutputDir creates the output directory if it doesn't exist.
func (c *LiteConfig) EnsureOutputDir() error {
	return os.MkdirAll(c.OutputDir, 0755)
}

func (c *LiteConfig) fileOrDefault(file, name string) string {
	if file != "" {
		return file
	}
	return filepath.Join(c.DataDir, name)
}
