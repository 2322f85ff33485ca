package formatter

import (
	"fmt"
	"io"
	"strings"

	"github.com/pivotal/ciborg/internal/models"
	"github.com/pivotal/ciborg/pkg/pricing"
)

// FormatLaunchSummary writes the details of a freshly launched instance
func FormatLaunchSummary(writer io.Writer, instance *models.InstanceInfo, quote pricing.Quote) {
	w := newTableWriter(writer)
	fmt.Fprintf(w, "Instance:\t%s\n", instance.InstanceID)
	fmt.Fprintf(w, "State:\t%s\n", instance.State)
	fmt.Fprintf(w, "Public IP:\t%s\n", orNone(instance.PublicIP))
	fmt.Fprintf(w, "Flavor:\t%s\n", orNone(instance.Flavor))
	fmt.Fprintf(w, "Image:\t%s\n", orNone(instance.ImageID))
	fmt.Fprintf(w, "Zone:\t%s\n", orNone(instance.AvailabilityZone))
	fmt.Fprintf(w, "Key pair:\t%s\n", orNone(instance.KeyName))
	fmt.Fprintf(w, "Security groups:\t%s\n", orNone(strings.Join(instance.SecurityGroups, ", ")))
	fmt.Fprintf(w, "Price:\t%s\n", formatHourly(quote))
	fmt.Fprintf(w, "Pricing:\t%s\n", GetPricingMarker(quote.Source))
	w.Flush()

	if instance.PublicIP != "" {
		fmt.Fprintf(writer, "\nConnect with: ssh ubuntu@%s\n", instance.PublicIP)
	}
}
