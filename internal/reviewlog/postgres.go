package reviewlog

import (
	"context"
	"fmt"
	"io"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/drug-conflict-mcp-server/internal/domain"
)

// PostgresStore implements the Store interface using PostgreSQL.
type PostgresStore struct {
	pool *pgxpool.Pool
}

var _ Store = (*PostgresStore)(nil)

// NewPostgresStore creates a new PostgreSQL review log.
// It expects the schema to already exist (created via migrations).
func NewPostgresStore(ctx context.Context, pool *pgxpool.Pool) (*PostgresStore, error) {
	if pool == nil {
		return nil, fmt.Errorf("database connection is required")
	}

	if err := pool.Ping(ctx); err != nil {
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	return &PostgresStore{pool: pool}, nil
}

// Save appends entries in one transaction.
func (s *PostgresStore) Save(ctx context.Context, entries []domain.ReviewEntry) error {
	if len(entries) == 0 {
		return nil
	}

	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback(ctx)

	query := `
		INSERT INTO review_log (
			batch_id, patient_id, patient_name, prescription,
			type, item_a, item_b, severity, score, recommendation, created_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
		RETURNING id
	`

	now := time.Now().UTC()
	for i := range entries {
		e := &entries[i]
		if e.CreatedAt.IsZero() {
			e.CreatedAt = now
		}

		err := tx.QueryRow(ctx, query,
			e.BatchID,
			e.PatientID,
			e.PatientName,
			joinPrescription(e.Prescription),
			string(e.Kind),
			e.ItemA,
			e.ItemB,
			string(e.Severity),
			e.Score,
			e.Recommendation,
			e.CreatedAt,
		).Scan(&e.ID)
		if err != nil {
			return fmt.Errorf("failed to save review entry: %w", err)
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("failed to commit review entries: %w", err)
	}
	return nil
}

// List returns entries with pagination.
func (s *PostgresStore) List(ctx context.Context, limit, offset int) ([]domain.ReviewEntry, error) {
	query := `
		SELECT ` + selectColumns + `
		FROM review_log
		ORDER BY created_at DESC, id ASC
		LIMIT $1 OFFSET $2
	`

	rows, err := s.pool.Query(ctx, query, limit, offset)
	if err != nil {
		return nil, fmt.Errorf("failed to list review log: %w", err)
	}
	return collectPgx(rows)
}

// ListByPatient returns the entries of one patient.
func (s *PostgresStore) ListByPatient(ctx context.Context, patientID string, limit int) ([]domain.ReviewEntry, error) {
	query := `
		SELECT ` + selectColumns + `
		FROM review_log
		WHERE patient_id = $1
		ORDER BY created_at DESC, id ASC
		LIMIT $2
	`

	rows, err := s.pool.Query(ctx, query, patientID, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to list review log: %w", err)
	}

	entries, err := collectPgx(rows)
	if err != nil {
		return nil, err
	}
	if len(entries) == 0 {
		return nil, fmt.Errorf("review entries for patient %s: %w", patientID, domain.ErrNotFound)
	}
	return entries, nil
}

func collectPgx(rows pgx.Rows) ([]domain.ReviewEntry, error) {
	defer rows.Close()

	result := make([]domain.ReviewEntry, 0)
	for rows.Next() {
		e, err := scanEntry(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan row: %w", err)
		}
		result = append(result, e)
	}
	return result, rows.Err()
}

// Count returns the total number of entries.
func (s *PostgresStore) Count(ctx context.Context) (int64, error) {
	var count int64
	err := s.pool.QueryRow(ctx, "SELECT COUNT(*) FROM review_log").Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("failed to count review log: %w", err)
	}
	return count, nil
}

// CountBySeverity returns the number of entries per severity.
func (s *PostgresStore) CountBySeverity(ctx context.Context) (map[domain.Severity]int64, error) {
	rows, err := s.pool.Query(ctx, "SELECT severity, COUNT(*) FROM review_log GROUP BY severity")
	if err != nil {
		return nil, fmt.Errorf("failed to count review log: %w", err)
	}
	defer rows.Close()

	counts := make(map[domain.Severity]int64)
	for rows.Next() {
		var (
			severity string
			n        int64
		)
		if err := rows.Scan(&severity, &n); err != nil {
			return nil, fmt.Errorf("failed to scan row: %w", err)
		}
		counts[domain.Severity(severity)] = n
	}
	return counts, rows.Err()
}

// ExportJSON exports all entries to a JSON writer.
func (s *PostgresStore) ExportJSON(ctx context.Context, writer io.Writer) error {
	all, err := s.List(ctx, maxExportLimit, 0)
	if err != nil {
		return fmt.Errorf("failed to list review log: %w", err)
	}
	return writeExport(writer, all)
}

// Close is a no-op; the pool belongs to the caller.
func (s *PostgresStore) Close() error {
	return nil
}
