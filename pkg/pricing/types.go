package pricing

// PricingSource represents the source of pricing information
type PricingSource string

const (
	// PricingSourceAPI indicates pricing data came from AWS API
	PricingSourceAPI PricingSource = "API"

	// PricingSourceCache indicates pricing data came from cache
	PricingSourceCache PricingSource = "Cache"

	// PricingSourceNA indicates pricing data is not available
	PricingSourceNA PricingSource = "N/A"
)

// HoursPerMonth is 365 days / 12 months * 24 hours
const HoursPerMonth = 730

// Quote is the on-demand Linux price of one instance flavor in one region
type Quote struct {
	Flavor string
	Region string
	Hourly float64
	Source PricingSource
}

// Monthly returns the estimated cost of running the instance for a month
func (q Quote) Monthly() float64 {
	return q.Hourly * HoursPerMonth
}

// Available reports whether a price was found
func (q Quote) Available() bool {
	return q.Source != PricingSourceNA
}
