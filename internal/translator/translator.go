// Package translator maps market-state snapshots to the scalar pressure
// and growth parameters consumed by the territory engine. Translation
// is pure; the two engines share no mutable state.
package translator

import (
	"sync"
	"time"

	"github.com/nathanyu/market-spread/internal/domain"
)

// Clamp bounds for the translated parameters.
const (
	minGrowthRate = 0.1
	maxGrowthRate = 0.8

	minMutationRate = 0.01
	maxMutationRate = 0.2

	minSpreadSpeed = 0.5
	maxSpreadSpeed = 2.0

	maxDecayPressure = 0.3
	baseDecayRate    = 0.05

	// Reference magnitudes that normalize raw metrics into factors.
	capReference    = 10_000.0
	volumeReference = 2_000.0
)

// Pressure extracts the scalar signal driving territory target
// coverage.
func Pressure(snap domain.MarketSnapshot) float64 {
	return snap.MarketCap
}

// Parameters converts a market snapshot into clamped growth parameters.
//
// Mapping rules:
//   - Growth rate: market-cap factor (0.1..0.4) plus trend momentum.
//   - Mutation rate: volume factor (0.01..0.15) plus volatility.
//   - Spread speed: volume-based with a market-cap modifier.
//   - Decay pressure: rises in downtrends, zero in uptrends.
func Parameters(snap domain.MarketSnapshot) domain.GrowthParameters {
	capFactor := clamp(snap.MarketCap/capReference*0.3, 0.1, 0.4)
	momentum := abs(snap.Trend)
	growthRate := clamp(capFactor+momentum*0.4, minGrowthRate, maxGrowthRate)

	volume := snap.BuyVolume + snap.SellVolume
	volumeFactor := clamp(volume/volumeReference*0.1, minMutationRate, 0.15)
	mutationRate := clamp(volumeFactor+snap.Volatility*0.1, minMutationRate, maxMutationRate)

	baseSpeed := volume / volumeReference
	capModifier := clamp(snap.MarketCap/(capReference*2), 0, 0.5)
	spreadSpeed := clamp(baseSpeed+capModifier, minSpreadSpeed, maxSpreadSpeed)

	decay := baseDecayRate
	if snap.Trend < 0 {
		decay += -snap.Trend * 0.2
	}
	decay = clamp(decay, 0, maxDecayPressure)

	return domain.GrowthParameters{
		GrowthRate:    growthRate,
		MutationRate:  mutationRate,
		SpreadSpeed:   spreadSpeed,
		DecayPressure: decay,
		Pressure:      Pressure(snap),
	}
}

func clamp(v, lo, hi float64) float64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}

func abs(v float64) float64 {
	if v < 0 {
		return -v
	}
	return v
}

// Cache memoizes the most recent translation for a TTL so that a fast
// driver tick does not redo the mapping on every iteration.
type Cache struct {
	mu       sync.Mutex
	ttl      time.Duration
	params   domain.GrowthParameters
	storedAt time.Time
	valid    bool
}

// NewCache creates a translation cache with the given TTL.
func NewCache(ttl time.Duration) *Cache {
	return &Cache{ttl: ttl}
}

// Get returns the cached parameters if still valid.
func (c *Cache) Get(now time.Time) (domain.GrowthParameters, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if !c.valid || now.Sub(c.storedAt) >= c.ttl {
		return domain.GrowthParameters{}, false
	}
	return c.params, true
}

// Set stores freshly translated parameters.
func (c *Cache) Set(params domain.GrowthParameters, now time.Time) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.params = params
	c.storedAt = now
	c.valid = true
}
