package formatter

import (
	"fmt"
	"io"
	"text/tabwriter"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/pivotal/ciborg/pkg/pricing"
)

const none = "-"

// newTableWriter returns a tabwriter with kubectl style spacing
func newTableWriter(writer io.Writer) *tabwriter.Writer {
	return tabwriter.NewWriter(writer, 0, 8, 2, ' ', 0)
}

// orNone returns s, or a dash if s is empty
func orNone(s string) string {
	if s == "" {
		return none
	}
	return s
}

// formatAge returns how long ago t was relative to now, e.g. "3 hours ago"
func formatAge(t, now time.Time) string {
	if t.IsZero() {
		return none
	}
	return humanize.RelTime(t, now, "ago", "from now")
}

// formatHourly formats an hourly price with its monthly estimate
func formatHourly(quote pricing.Quote) string {
	if !quote.Available() {
		return string(pricing.PricingSourceNA)
	}
	return fmt.Sprintf("$%s/hr ($%s/mo)",
		humanize.FormatFloat("#,###.####", quote.Hourly),
		humanize.FormatFloat("#,###.##", quote.Monthly()),
	)
}

// GetPricingMarker returns a suitable marker for the pricing source
func GetPricingMarker(source pricing.PricingSource) string {
	switch source {
	case pricing.PricingSourceAPI:
		return "API"
	case pricing.PricingSourceCache:
		return "CACHE"
	case pricing.PricingSourceNA:
		return "N/A"
	default:
		return none
	}
}
