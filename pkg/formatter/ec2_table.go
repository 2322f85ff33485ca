package formatter

import (
	"fmt"
	"io"
	"sort"
	"time"

	"github.com/pivotal/ciborg/internal/models"
)

// FormatInstancesTable writes a table of instances, oldest launch first
func FormatInstancesTable(writer io.Writer, instances []models.InstanceInfo, now time.Time) {
	if len(instances) == 0 {
		fmt.Fprintln(writer, "No ciborg instances found.")
		return
	}

	sorted := make([]models.InstanceInfo, len(instances))
	copy(sorted, instances)
	sort.SliceStable(sorted, func(i, j int) bool {
		return sorted[i].LaunchTime.Before(sorted[j].LaunchTime)
	})

	w := newTableWriter(writer)
	fmt.Fprintln(w, "INSTANCE ID\tNAME\tFLAVOR\tSTATE\tPUBLIC IP\tZONE\tLAUNCHED")

	running := 0
	for _, instance := range sorted {
		if instance.Running() {
			running++
		}
		fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\t%s\t%s\n",
			instance.InstanceID,
			Truncate(getInstanceName(instance.Name), maxNameWidth),
			orNone(instance.Flavor),
			instance.State,
			orNone(instance.PublicIP),
			orNone(instance.AvailabilityZone),
			formatAge(instance.LaunchTime, now),
		)
	}

	fmt.Fprintf(w, "Total: %d instances (%d running)\n", len(sorted), running)
	w.Flush()
}

// getInstanceName returns a formatted instance name or <unnamed> if empty
func getInstanceName(name string) string {
	if name == "" {
		return "<unnamed>"
	}
	return name
}
