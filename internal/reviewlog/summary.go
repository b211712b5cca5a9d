package reviewlog

import (
	"fmt"
	"io"

	"github.com/drug-conflict-mcp-server/internal/domain"
)

// WriteSummary prints the console summary of a review run.
// reportPath is mentioned only when conflicts were found.
func WriteSummary(w io.Writer, summary *domain.ReviewSummary, reportPath string) error {
	var err error
	printf := func(format string, args ...any) {
		if err == nil {
			_, err = fmt.Fprintf(w, format, args...)
		}
	}

	printf("\n=== Review Summary ===\n")
	printf("Total prescriptions: %d\n", summary.TotalPrescriptions)
	printf("Conflicts detected: %d\n", summary.TotalConflicts)
	if summary.TotalConflicts == 0 {
		printf("No conflicts found.\n")
		return err
	}

	printf("By severity:\n")
	for _, sev := range domain.Severities() {
		printf("  - %s: %d\n", sev, summary.BySeverity[sev])
	}
	printf("\nReport saved to: %s\n", reportPath)
	return err
}
