// Package ingest loads rule, patient and drug catalogue CSV files into domain records.
package ingest

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/drug-conflict-mcp-server/internal/domain"
)

// ListSeparator separates values inside list columns such as conditions and allergies.
const ListSeparator = ";"

// ErrMissingColumn is returned when a required header is absent.
var ErrMissingColumn = errors.New("missing required column")

// table is a header-indexed CSV body.
type table struct {
	index map[string]int
	rows  [][]string
}

func readTable(r io.Reader, required ...string) (*table, error) {
	cr := csv.NewReader(r)
	cr.FieldsPerRecord = -1
	cr.TrimLeadingSpace = true

	header, err := cr.Read()
	if err == io.EOF {
		return nil, fmt.Errorf("empty csv: %w", ErrMissingColumn)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read csv header: %w", err)
	}

	index := make(map[string]int, len(header))
	for i, h := range header {
		h = strings.ToLower(strings.TrimSpace(strings.TrimPrefix(h, "\ufeff")))
		index[h] = i
	}
	for _, col := range required {
		if _, ok := index[col]; !ok {
			return nil, fmt.Errorf("%w: %s", ErrMissingColumn, col)
		}
	}

	rows, err := cr.ReadAll()
	if err != nil {
		return nil, fmt.Errorf("failed to read csv rows: %w", err)
	}
	return &table{index: index, rows: rows}, nil
}

func (t *table) get(row []string, col string) string {
	i, ok := t.index[col]
	if !ok || i >= len(row) {
		return ""
	}
	return strings.TrimSpace(row[i])
}

func blank(row []string) bool {
	for _, v := range row {
		if strings.TrimSpace(v) != "" {
			return false
		}
	}
	return true
}

// SplitList splits a ';'-separated cell, trimming entries and dropping empty and "none" values.
func SplitList(cell string) []string {
	out := make([]string, 0)
	for _, part := range strings.Split(cell, ListSeparator) {
		part = strings.TrimSpace(part)
		if part == "" || strings.EqualFold(part, "none") {
			continue
		}
		out = append(out, part)
	}
	return out
}

// ReadRuleRecords reads interaction rules with columns type, item_a, item_b, severity,
// recommendation and an optional notes column. Values are returned unvalidated.
func ReadRuleRecords(r io.Reader) ([]domain.RuleRecord, error) {
	t, err := readTable(r, "type", "item_a", "item_b", "severity", "recommendation")
	if err != nil {
		return nil, fmt.Errorf("rules: %w", err)
	}

	records := make([]domain.RuleRecord, 0, len(t.rows))
	for _, row := range t.rows {
		if blank(row) {
			continue
		}
		records = append(records, domain.RuleRecord{
			Type:           t.get(row, "type"),
			ItemA:          t.get(row, "item_a"),
			ItemB:          t.get(row, "item_b"),
			Severity:       t.get(row, "severity"),
			Recommendation: t.get(row, "recommendation"),
			Notes:          t.get(row, "notes"),
		})
	}
	return records, nil
}

// ReadPatients reads patients with columns id, name, conditions and allergies.
// A missing name defaults to "Patient-<id>".
func ReadPatients(r io.Reader) ([]domain.Patient, error) {
	t, err := readTable(r, "id")
	if err != nil {
		return nil, fmt.Errorf("patients: %w", err)
	}

	patients := make([]domain.Patient, 0, len(t.rows))
	for i, row := range t.rows {
		if blank(row) {
			continue
		}
		id := t.get(row, "id")
		if id == "" {
			return nil, fmt.Errorf("patients: row %d: %w", i+1, domain.NewValidationError("id", "value cannot be empty", id))
		}
		name := t.get(row, "name")
		if name == "" {
			name = "Patient-" + id
		}
		patients = append(patients, domain.Patient{
			ID:         id,
			Name:       name,
			Conditions: SplitList(t.get(row, "conditions")),
			Allergies:  SplitList(t.get(row, "allergies")),
		})
	}
	return patients, nil
}

// ReadDrugs reads the drug catalogue with columns drug, condition and optional
// category and replacements.
func ReadDrugs(r io.Reader) ([]domain.DrugEntry, error) {
	t, err := readTable(r, "drug", "condition")
	if err != nil {
		return nil, fmt.Errorf("drugs: %w", err)
	}

	drugs := make([]domain.DrugEntry, 0, len(t.rows))
	for _, row := range t.rows {
		if blank(row) {
			continue
		}
		drugs = append(drugs, domain.DrugEntry{
			Drug:         t.get(row, "drug"),
			Condition:    t.get(row, "condition"),
			Category:     t.get(row, "category"),
			Replacements: SplitList(t.get(row, "replacements")),
		})
	}
	return drugs, nil
}

// LoadRuleRecords opens path and reads rule records from it.
func LoadRuleRecords(path string) ([]domain.RuleRecord, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open rules file: %w", err)
	}
	defer f.Close()
	return ReadRuleRecords(f)
}

// LoadPatients opens path and reads patients from it.
func LoadPatients(path string) ([]domain.Patient, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open patients file: %w", err)
	}
	defer f.Close()
	return ReadPatients(f)
}

// LoadDrugs opens path and reads the drug catalogue from it.
func LoadDrugs(path string) ([]domain.DrugEntry, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open drugs file: %w", err)
	}
	defer f.Close()
	return ReadDrugs(f)
}
