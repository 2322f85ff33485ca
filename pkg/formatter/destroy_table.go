package formatter

import (
	"fmt"
	"io"
	"sort"

	"github.com/pivotal/ciborg/internal/models"
)

// FormatDestroyReport writes one line per candidate instance of a destroy call
func FormatDestroyReport(writer io.Writer, report *models.DestroyReport) {
	if report == nil || report.Candidates() == 0 {
		fmt.Fprintln(writer, "No instances to destroy.")
		return
	}

	w := newTableWriter(writer)
	fmt.Fprintln(w, "INSTANCE ID\tRESULT")

	destroyed := append([]string(nil), report.Destroyed...)
	sort.Strings(destroyed)
	for _, id := range destroyed {
		fmt.Fprintf(w, "%s\tterminating\n", id)
	}

	declined := append([]string(nil), report.Declined...)
	sort.Strings(declined)
	for _, id := range declined {
		fmt.Fprintf(w, "%s\tkept\n", id)
	}

	for _, id := range report.FailedIDs() {
		fmt.Fprintf(w, "%s\tfailed: %v\n", id, report.Failed[id])
	}

	fmt.Fprintf(w, "Total: %d terminating, %d kept, %d failed\n",
		len(report.Destroyed), len(report.Declined), len(report.Failed))
	w.Flush()
}
