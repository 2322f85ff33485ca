package pricing

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/pricing"
	"github.com/aws/aws-sdk-go-v2/service/pricing/types"
)

const (
	// APIRegion is where the Pricing API is served from; it is only
	// available in us-east-1 and ap-south-1
	APIRegion = "us-east-1"

	requestTimeout = 5 * time.Second
)

// ProductsAPI is the part of the Pricing API this package calls
type ProductsAPI interface {
	GetProducts(ctx context.Context, params *pricing.GetProductsInput, optFns ...func(*pricing.Options)) (*pricing.GetProductsOutput, error)
}

var _ ProductsAPI = (*pricing.Client)(nil)

// Client looks up EC2 prices and caches them for its lifetime
type Client struct {
	api ProductsAPI

	mu    sync.RWMutex
	cache map[string]float64
}

// NewClient creates a pricing client from cfg. The region in cfg is ignored
// in favour of APIRegion.
func NewClient(cfg aws.Config) *Client {
	cfg = cfg.Copy()
	cfg.Region = APIRegion
	return NewClientWithAPI(pricing.NewFromConfig(cfg))
}

// NewClientWithAPI creates a pricing client on top of an existing API client
func NewClientWithAPI(api ProductsAPI) *Client {
	return &Client{
		api:   api,
		cache: make(map[string]float64),
	}
}

// getPriceFromAPI returns the first price list entry matching filters
func (c *Client) getPriceFromAPI(ctx context.Context, serviceCode string, filters []types.Filter, resourceType, region string) (string, error) {
	ctx, cancel := context.WithTimeout(ctx, requestTimeout)
	defer cancel()

	resp, err := c.api.GetProducts(ctx, &pricing.GetProductsInput{
		ServiceCode: aws.String(serviceCode),
		Filters:     filters,
		MaxResults:  aws.Int32(1),
	})
	if err != nil {
		return "", fmt.Errorf("error calling AWS Pricing API: %w", err)
	}

	if len(resp.PriceList) == 0 {
		return "", fmt.Errorf("no pricing found for %s in region %s", resourceType, region)
	}

	return resp.PriceList[0], nil
}

func termMatch(field, value string) types.Filter {
	return types.Filter{
		Type:  types.FilterTypeTermMatch,
		Field: aws.String(field),
		Value: aws.String(value),
	}
}
