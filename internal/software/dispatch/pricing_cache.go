package dispatch

import (
	"context"
	"math"
	"sync"

	"ride-hail/internal/domain/ride"
	"ride-hail/internal/ports"
)

// pricingCache is the in-memory Pricing Cache (spec §4.1): reads never hit
// Postgres on the booking hot path. It is filled only by Load; admin price
// writes to the store do not refresh it.
type pricingCache struct {
	mu     sync.RWMutex
	repo   ports.PricingRepository
	prices map[ride.VehicleType]int
}

func newPricingCache(repo ports.PricingRepository) *pricingCache {
	return &pricingCache{repo: repo, prices: make(map[ride.VehicleType]int)}
}

// Load hydrates the cache from its durable store. Called once at process
// start (spec §6's state S bootstrap).
func (c *pricingCache) Load(ctx context.Context) error {
	prices, err := c.repo.LoadAll(ctx)
	if err != nil {
		return err
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	c.prices = prices
	return nil
}

// PricePerKM returns the current rate for vt, or 0 if never set.
func (c *pricingCache) PricePerKM(vt ride.VehicleType) int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.prices[vt]
}

// Fare computes the authoritative server-side fare for a trip.
func (c *pricingCache) Fare(vt ride.VehicleType, distanceKM float64) float64 {
	return math.Round(float64(c.PricePerKM(vt)) * distanceKM)
}
