// Package reviewlog persists the conflicts found while reviewing prescriptions.
// Each stored entry is one conflict for one patient in one review batch.
package reviewlog

import (
	"context"
	"io"
	"strings"
	"time"

	"github.com/drug-conflict-mcp-server/internal/domain"
)

// Store defines the interface for review log storage operations.
type Store interface {
	// Save appends entries in one transaction and assigns their IDs.
	Save(ctx context.Context, entries []domain.ReviewEntry) error

	// List returns entries newest batch first, in review order within a batch.
	List(ctx context.Context, limit, offset int) ([]domain.ReviewEntry, error)

	// ListByPatient returns the entries of one patient.
	// It returns domain.ErrNotFound when the patient has none.
	ListByPatient(ctx context.Context, patientID string, limit int) ([]domain.ReviewEntry, error)

	// Count returns the total number of entries.
	Count(ctx context.Context) (int64, error)

	// CountBySeverity returns the number of entries per severity.
	CountBySeverity(ctx context.Context) (map[domain.Severity]int64, error)

	// ExportJSON exports all entries to a JSON writer.
	ExportJSON(ctx context.Context, writer io.Writer) error

	// Close closes the store and releases resources.
	Close() error
}

// ReviewExport represents the JSON export format.
type ReviewExport struct {
	Version    string               `json:"version"`
	ExportedAt time.Time            `json:"exported_at"`
	Count      int                  `json:"count"`
	Entries    []domain.ReviewEntry `json:"entries"`
}

// maxExportLimit is the maximum number of entries to export at once.
const maxExportLimit = 1000000

const exportVersion = "1.0"

func joinPrescription(rx []string) string {
	return strings.Join(rx, ";")
}

func splitPrescription(s string) []string {
	if s == "" {
		return []string{}
	}
	return strings.Split(s, ";")
}
