package reviewlog

import (
	"encoding/csv"
	"fmt"
	"io"
	"strconv"

	"github.com/drug-conflict-mcp-server/internal/domain"
)

// CSVHeader is the column order of the conflicts report.
var CSVHeader = []string{
	"patient_id", "patient_name", "prescription",
	"type", "item_a", "item_b", "severity", "score", "recommendation",
}

// WriteCSV writes entries as a conflicts report with a header row.
func WriteCSV(w io.Writer, entries []domain.ReviewEntry) error {
	cw := csv.NewWriter(w)

	if err := cw.Write(CSVHeader); err != nil {
		return fmt.Errorf("conflicts csv: write header: %w", err)
	}

	for _, e := range entries {
		record := []string{
			e.PatientID,
			e.PatientName,
			joinPrescription(e.Prescription),
			string(e.Kind),
			e.ItemA,
			e.ItemB,
			string(e.Severity),
			strconv.Itoa(e.Score),
			e.Recommendation,
		}
		if err := cw.Write(record); err != nil {
			return fmt.Errorf("conflicts csv: write record: %w", err)
		}
	}

	cw.Flush()
	return cw.Error()
}
