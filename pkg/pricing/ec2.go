package pricing

import (
	"context"
	"fmt"

	"github.com/aws/aws-sdk-go-v2/service/pricing/types"
	"github.com/chainguard-dev/clog"
	"github.com/pivotal/ciborg/pkg/utils"
)

// HourlyPrice returns the on-demand Linux price of flavor in region. When
// the price cannot be found the quote's source is PricingSourceNA and the
// error says why.
func (c *Client) HourlyPrice(ctx context.Context, flavor, region string) (Quote, error) {
	quote := Quote{Flavor: flavor, Region: region, Source: PricingSourceNA}
	cacheKey := fmt.Sprintf("%s:%s", region, flavor)

	c.mu.RLock()
	price, exists := c.cache[cacheKey]
	c.mu.RUnlock()
	if exists {
		quote.Hourly = price
		quote.Source = PricingSourceCache
		return quote, nil
	}

	price, err := c.getEC2PriceFromAPI(ctx, flavor, region)
	if err != nil {
		clog.FromContext(ctx).Debug("price lookup failed", "flavor", flavor, "region", region, "error", err)
		return quote, err
	}

	c.mu.Lock()
	c.cache[cacheKey] = price
	c.mu.Unlock()

	quote.Hourly = price
	quote.Source = PricingSourceAPI
	return quote, nil
}

func (c *Client) getEC2PriceFromAPI(ctx context.Context, flavor, region string) (float64, error) {
	filters := ec2Filters(flavor, region)

	priceJSON, err := c.getPriceFromAPI(ctx, "AmazonEC2", filters, flavor, region)
	if err != nil {
		return 0, err
	}

	return ExtractOnDemandPrice(priceJSON)
}

// ec2Filters selects shared-tenancy Linux instances without preinstalled software
func ec2Filters(flavor, region string) []types.Filter {
	return []types.Filter{
		termMatch("instanceType", flavor),
		termMatch("location", utils.GetRegionDescriptiveName(region)),
		termMatch("operatingSystem", "Linux"),
		termMatch("tenancy", "Shared"),
		termMatch("preInstalledSw", "NA"),
		termMatch("capacitystatus", "Used"),
	}
}
