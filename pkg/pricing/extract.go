package pricing

import (
	"errors"
	"fmt"
	"strconv"

	"github.com/pivotal/ciborg/pkg/utils"
)

// ErrMalformedPrice is returned when a price list entry does not have the
// terms.OnDemand.<sku>.priceDimensions.<dim>.pricePerUnit.USD layout
var ErrMalformedPrice = errors.New("malformed price list entry")

// ExtractOnDemandPrice extracts the USD on-demand price from a price list entry
func ExtractOnDemandPrice(priceJSON string) (float64, error) {
	priceData, err := utils.ParseJSON(priceJSON)
	if err != nil {
		return 0, fmt.Errorf("error parsing pricing data: %w", err)
	}

	terms, err := field(priceData, "terms")
	if err != nil {
		return 0, err
	}
	onDemand, err := field(terms, "OnDemand")
	if err != nil {
		return 0, err
	}
	offer, err := first(onDemand, "SKU offer")
	if err != nil {
		return 0, err
	}
	dimensions, err := field(offer, "priceDimensions")
	if err != nil {
		return 0, err
	}
	dimension, err := first(dimensions, "price dimension")
	if err != nil {
		return 0, err
	}
	perUnit, err := field(dimension, "pricePerUnit")
	if err != nil {
		return 0, err
	}

	usd, ok := perUnit["USD"].(string)
	if !ok {
		return 0, fmt.Errorf("%w: USD price not found", ErrMalformedPrice)
	}
	price, err := strconv.ParseFloat(usd, 64)
	if err != nil {
		return 0, fmt.Errorf("%w: error parsing price %q: %w", ErrMalformedPrice, usd, err)
	}
	return price, nil
}

func field(m map[string]any, name string) (map[string]any, error) {
	value, ok := m[name].(map[string]any)
	if !ok {
		return nil, fmt.Errorf("%w: %s field not found or invalid", ErrMalformedPrice, name)
	}
	return value, nil
}

// first returns the first nested object of m; offers and dimensions are
// keyed by opaque SKU codes
func first(m map[string]any, what string) (map[string]any, error) {
	value, err := utils.GetFirstMapValue(m)
	if err != nil {
		return nil, fmt.Errorf("%w: no %s found", ErrMalformedPrice, what)
	}
	nested, ok := value.(map[string]any)
	if !ok {
		return nil, fmt.Errorf("%w: %s is not an object", ErrMalformedPrice, what)
	}
	return nested, nil
}
