package reviewlog

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"time"

	_ "modernc.org/sqlite"

	"github.com/drug-conflict-mcp-server/internal/domain"
)

// SQLiteStore implements the Store interface using SQLite.
type SQLiteStore struct {
	db     *sql.DB
	dbPath string
}

var _ Store = (*SQLiteStore)(nil)

// NewSQLiteStore creates a new SQLite review log.
// It creates the database file and schema if they don't exist.
func NewSQLiteStore(dbPath string) (*SQLiteStore, error) {
	dir := filepath.Dir(dbPath)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create directory: %w", err)
	}

	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	// Enable WAL mode for better concurrency
	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to set WAL mode: %w", err)
	}

	if err := createSchema(db); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to create schema: %w", err)
	}

	return &SQLiteStore{
		db:     db,
		dbPath: dbPath,
	}, nil
}

// NewSQLiteStoreWithDB wraps an already opened database whose schema exists.
func NewSQLiteStoreWithDB(db *sql.DB) *SQLiteStore {
	return &SQLiteStore{db: db}
}

// scanner is an interface for sql.Row and sql.Rows
type scanner interface {
	Scan(dest ...interface{}) error
}

const selectColumns = `id, batch_id, patient_id, patient_name, prescription,
	type, item_a, item_b, severity, score, recommendation, created_at`

// scanEntry scans a row into a ReviewEntry.
func scanEntry(s scanner) (domain.ReviewEntry, error) {
	var (
		e                  domain.ReviewEntry
		rx, kind, severity string
	)

	err := s.Scan(
		&e.ID, &e.BatchID, &e.PatientID, &e.PatientName, &rx,
		&kind, &e.ItemA, &e.ItemB, &severity, &e.Score, &e.Recommendation, &e.CreatedAt,
	)
	if err != nil {
		return e, err
	}

	e.Prescription = splitPrescription(rx)
	e.Kind = domain.RuleKind(kind)
	e.Severity = domain.Severity(severity)
	return e, nil
}

// createSchema creates the database tables and indexes.
func createSchema(db *sql.DB) error {
	schema := `
	CREATE TABLE IF NOT EXISTS review_log (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		batch_id TEXT NOT NULL,
		patient_id TEXT NOT NULL,
		patient_name TEXT NOT NULL DEFAULT '',
		prescription TEXT NOT NULL DEFAULT '',
		type TEXT NOT NULL,
		item_a TEXT NOT NULL,
		item_b TEXT NOT NULL,
		severity TEXT NOT NULL,
		score INTEGER NOT NULL DEFAULT 0,
		recommendation TEXT NOT NULL DEFAULT '',
		created_at DATETIME DEFAULT CURRENT_TIMESTAMP
	);

	CREATE INDEX IF NOT EXISTS idx_review_log_patient_id ON review_log(patient_id);
	CREATE INDEX IF NOT EXISTS idx_review_log_batch_id ON review_log(batch_id);
	CREATE INDEX IF NOT EXISTS idx_review_log_created_at ON review_log(created_at);
	CREATE INDEX IF NOT EXISTS idx_review_log_severity ON review_log(severity);
	`

	_, err := db.Exec(schema)
	return err
}

// Save appends entries in one transaction.
func (s *SQLiteStore) Save(ctx context.Context, entries []domain.ReviewEntry) error {
	if len(entries) == 0 {
		return nil
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	stmt, err := tx.PrepareContext(ctx, `
		INSERT INTO review_log (
			batch_id, patient_id, patient_name, prescription,
			type, item_a, item_b, severity, score, recommendation, created_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`)
	if err != nil {
		return fmt.Errorf("failed to prepare insert: %w", err)
	}
	defer stmt.Close()

	now := time.Now().UTC()
	for i := range entries {
		e := &entries[i]
		if e.CreatedAt.IsZero() {
			e.CreatedAt = now
		}

		result, err := stmt.ExecContext(ctx,
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
		)
		if err != nil {
			return fmt.Errorf("failed to insert: %w", err)
		}

		id, err := result.LastInsertId()
		if err != nil {
			return fmt.Errorf("failed to get insert ID: %w", err)
		}
		e.ID = id
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit: %w", err)
	}
	return nil
}

// List returns entries with pagination.
func (s *SQLiteStore) List(ctx context.Context, limit, offset int) ([]domain.ReviewEntry, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT `+selectColumns+`
		FROM review_log
		ORDER BY created_at DESC, id ASC
		LIMIT ? OFFSET ?
	`, limit, offset)
	if err != nil {
		return nil, fmt.Errorf("failed to query: %w", err)
	}
	return collect(rows)
}

// ListByPatient returns the entries of one patient.
func (s *SQLiteStore) ListByPatient(ctx context.Context, patientID string, limit int) ([]domain.ReviewEntry, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT `+selectColumns+`
		FROM review_log
		WHERE patient_id = ?
		ORDER BY created_at DESC, id ASC
		LIMIT ?
	`, patientID, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to query: %w", err)
	}

	entries, err := collect(rows)
	if err != nil {
		return nil, err
	}
	if len(entries) == 0 {
		return nil, fmt.Errorf("review entries for patient %s: %w", patientID, domain.ErrNotFound)
	}
	return entries, nil
}

func collect(rows *sql.Rows) ([]domain.ReviewEntry, error) {
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
func (s *SQLiteStore) Count(ctx context.Context) (int64, error) {
	var count int64
	err := s.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM review_log").Scan(&count)
	return count, err
}

// CountBySeverity returns the number of entries per severity.
func (s *SQLiteStore) CountBySeverity(ctx context.Context) (map[domain.Severity]int64, error) {
	rows, err := s.db.QueryContext(ctx, "SELECT severity, COUNT(*) FROM review_log GROUP BY severity")
	if err != nil {
		return nil, fmt.Errorf("failed to query: %w", err)
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
func (s *SQLiteStore) ExportJSON(ctx context.Context, writer io.Writer) error {
	all, err := s.List(ctx, maxExportLimit, 0)
	if err != nil {
		return fmt.Errorf("failed to list review log: %w", err)
	}
	return writeExport(writer, all)
}

func writeExport(writer io.Writer, entries []domain.ReviewEntry) error {
	export := &ReviewExport{
		Version:    exportVersion,
		ExportedAt: time.Now(),
		Count:      len(entries),
		Entries:    entries,
	}

	encoder := json.NewEncoder(writer)
	encoder.SetIndent("", "  ")
	return encoder.Encode(export)
}

// Close closes the store and releases resources.
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}
