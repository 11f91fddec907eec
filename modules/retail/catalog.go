package retail

import (
	"fmt"

	"github.com/vk/substepgrid/internal/state"
)

const (
	envStocks     = "product_stocks"
	envPrices     = "product_prices"
	envPromotions = "product_promotions"
	envThreshold  = "restock_threshold"
	envQuantity   = "restock_quantity"
	envDelivered  = "units_delivered"

	attrBudget      = "budget"
	attrSensitivity = "price_sensitivity"
)

func envPath(name string) string { return "environment/" + name }

// Catalog is the consumer-facing view of the products on offer.
type Catalog struct {
	Stocks     []float64
	Prices     []float64
	Promotions []float64
}

// Len returns the number of products.
func (c *Catalog) Len() int { return len(c.Prices) }

// EffectivePrice is the amount charged for product i.
func (c *Catalog) EffectivePrice(i int) float64 {
	return c.Prices[i] * c.Promotions[i]
}

// readCatalog gathers stocks, prices and promotions. Negative stocks read as
// zero. Promotions default to 1 when the environment does not declare them.
func readCatalog(s *state.Store) (*Catalog, error) {
	stocks, err := s.Env(envStocks)
	if err != nil {
		return nil, err
	}
	prices, err := s.Env(envPrices)
	if err != nil {
		return nil, err
	}
	c := &Catalog{Stocks: stocks.Numbers(), Prices: prices.Numbers()}
	if len(c.Stocks) != len(c.Prices) {
		return nil, fmt.Errorf("%w: %s has %d products, %s has %d",
			state.ErrTypeMismatch, envStocks, len(c.Stocks), envPrices, len(c.Prices))
	}
	for i, x := range c.Stocks {
		c.Stocks[i] = max(x, 0)
	}

	c.Promotions = make([]float64, len(c.Prices))
	for i := range c.Promotions {
		c.Promotions[i] = 1
	}
	if s.HasEnv(envPromotions) {
		promo, err := s.Env(envPromotions)
		if err != nil {
			return nil, err
		}
		if promo.Len() != len(c.Prices) {
			return nil, fmt.Errorf("%w: %s has %d products, want %d",
				state.ErrTypeMismatch, envPromotions, promo.Len(), len(c.Prices))
		}
		c.Promotions = promo.Numbers()
	}
	return c, nil
}

func activeGroup(active []string) string {
	if len(active) > 0 {
		return active[0]
	}
	return DefaultGroup
}

// scalarEnv reads a single-element numeric environment variable.
func scalarEnv(s *state.Store, name string) (float64, error) {
	v, err := s.Env(name)
	if err != nil {
		return 0, err
	}
	return v.Scalar()
}
