package reviewlog

import (
	"bytes"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/drug-conflict-mcp-server/internal/domain"
)

func TestWriteCSV(t *testing.T) {
	var buf bytes.Buffer

	require.NoError(t, WriteCSV(&buf, sampleEntries("batch-1")[:2]))

	expected := "patient_id,patient_name,prescription,type,item_a,item_b,severity,score,recommendation\n" +
		"P001,Ada,Aspirin;Warfarin,drug-drug,Aspirin,Warfarin,Major,3,Avoid combination\n" +
		"P002,Ben,Ibuprofen,drug-condition,Hypertension,Ibuprofen,Moderate,2,Prefer Paracetamol\n"
	assert.Equal(t, expected, buf.String())
}

func TestWriteCSV_HeaderOnly(t *testing.T) {
	var buf bytes.Buffer

	require.NoError(t, WriteCSV(&buf, nil))
	assert.Equal(t, "patient_id,patient_name,prescription,type,item_a,item_b,severity,score,recommendation\n", buf.String())
}

type failingWriter struct{}

func (failingWriter) Write([]byte) (int, error) {
	return 0, errors.New("broken pipe")
}

func TestWriteCSV_WriterError(t *testing.T) {
	err := WriteCSV(failingWriter{}, sampleEntries("batch-1"))
	assert.ErrorContains(t, err, "broken pipe")
}

func TestWriteSummary(t *testing.T) {
	t.Run("With_Conflicts", func(t *testing.T) {
		var buf bytes.Buffer
		summary := &domain.ReviewSummary{
			TotalPrescriptions: 4,
			TotalConflicts:     3,
			BySeverity:         map[domain.Severity]int{domain.Major: 2, domain.Minor: 1},
		}

		require.NoError(t, WriteSummary(&buf, summary, "output/conflicts.csv"))

		expected := "\n=== Review Summary ===\n" +
			"Total prescriptions: 4\n" +
			"Conflicts detected: 3\n" +
			"By severity:\n" +
			"  - Major: 2\n" +
			"  - Moderate: 0\n" +
			"  - Minor: 1\n" +
			"\nReport saved to: output/conflicts.csv\n"
		assert.Equal(t, expected, buf.String())
	})

	t.Run("No_Conflicts", func(t *testing.T) {
		var buf bytes.Buffer
		summary := &domain.ReviewSummary{TotalPrescriptions: 2, BySeverity: map[domain.Severity]int{}}

		require.NoError(t, WriteSummary(&buf, summary, "ignored.csv"))
		assert.Contains(t, buf.String(), "No conflicts found.\n")
		assert.NotContains(t, buf.String(), "ignored.csv")
	})

	t.Run("Writer_Error", func(t *testing.T) {
		err := WriteSummary(failingWriter{}, &domain.ReviewSummary{}, "")
		assert.ErrorContains(t, err, "broken pipe")
	})
}
