package domain

import (
	"context"
)

// ConflictChecker is the caller-facing entry point used by review workflows.
type ConflictChecker interface {
	CheckConflicts(ctx context.Context, prescription, conditions, allergies []string) ([]Conflict, error)
}

// Prescriber chooses the drugs prescribed to a patient. Prescribing heuristics live outside
// the conflict checker; review workflows only consume this interface.
type Prescriber interface {
	Prescribe(patient Patient) []string
}

// ConfigManager defines the interface for configuration management
type ConfigManager interface {
	GetConfig() *Config
	GetServerConfig() *ServerConfig
	GetDatabaseConfig() *DatabaseConfig
	GetCacheConfig() *CacheConfig
	Reload() error
	Validate() error
	GetDatabaseURL() string
	IsProduction() bool
	IsDevelopment() bool
}
