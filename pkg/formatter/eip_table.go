package formatter

import (
	"fmt"
	"io"
	"sort"

	"github.com/pivotal/ciborg/internal/models"
)

// FormatAddressesTable writes a table of Elastic IPs sorted by address
func FormatAddressesTable(writer io.Writer, eips []models.EIPInfo) {
	if len(eips) == 0 {
		fmt.Fprintln(writer, "No Elastic IPs allocated.")
		return
	}

	sorted := make([]models.EIPInfo, len(eips))
	copy(sorted, eips)
	sort.Slice(sorted, func(i, j int) bool {
		if sorted[i].Region == sorted[j].Region {
			return sorted[i].PublicIP < sorted[j].PublicIP
		}
		return sorted[i].Region < sorted[j].Region
	})

	w := newTableWriter(writer)
	fmt.Fprintln(w, "PUBLIC IP\tALLOCATION ID\tREGION\tSTATUS\tINSTANCE")

	unattached := 0
	for _, eip := range sorted {
		status := "attached"
		if !eip.Attached() {
			status = "unattached"
			unattached++
		}
		fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\n",
			eip.PublicIP,
			orNone(eip.AllocationID),
			eip.Region,
			status,
			orNone(eip.InstanceID),
		)
	}

	fmt.Fprintf(w, "Total: %d addresses (%d unattached)\n", len(sorted), unattached)
	w.Flush()
}
