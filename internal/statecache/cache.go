// Package statecache holds the latest composite engine state, tracks
// consecutive-state diffs, and decides when a change is significant
// enough to broadcast.
package statecache

import (
	"math"
	"sync"
	"time"

	"github.com/nathanyu/market-spread/internal/domain"
)

const (
	// A relative price move or coverage change beyond these fractions
	// is considered significant.
	priceChangeThreshold    = 0.1
	coverageChangeThreshold = 0.1
)

// Diff captures what changed between two consecutive states.
type Diff struct {
	PriceDelta    float64 `json:"price_delta"`
	CoverageDelta int     `json:"coverage_delta"`
	StrainChanged bool    `json:"strain_changed"`
	TradeDelta    int     `json:"trade_delta"`
}

// Cache stores the latest composite state with TTL validity.
type Cache struct {
	mu sync.RWMutex

	ttl       time.Duration
	current   domain.CompositeState
	previous  domain.CompositeState
	hasState  bool
	hasPrev   bool
	updatedAt time.Time
}

// New creates a state cache whose Get refuses entries older than ttl.
func New(ttl time.Duration) *Cache {
	return &Cache{ttl: ttl}
}

// Update replaces the cached state and records the previous one for
// diffing.
func (c *Cache) Update(state domain.CompositeState, now time.Time) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.hasState {
		c.previous = c.current
		c.hasPrev = true
	}
	c.current = state
	c.hasState = true
	c.updatedAt = now
}

// Get returns the cached state if it is still valid.
func (c *Cache) Get(now time.Time) (domain.CompositeState, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	if !c.hasState || now.Sub(c.updatedAt) >= c.ttl {
		return domain.CompositeState{}, false
	}
	return c.current, true
}

// GetDiff returns the difference between the current and previous
// states, or false when fewer than two states have been recorded.
func (c *Cache) GetDiff() (Diff, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	if !c.hasPrev {
		return Diff{}, false
	}
	return Diff{
		PriceDelta:    c.current.Market.Price - c.previous.Market.Price,
		CoverageDelta: c.current.Territory.Coverage - c.previous.Territory.Coverage,
		StrainChanged: c.current.Territory.Strain != c.previous.Territory.Strain,
		TradeDelta:    c.current.Market.TradeCount - c.previous.Market.TradeCount,
	}, true
}

// Significant reports whether the latest transition warrants an
// immediate broadcast: a strain change, a large relative price move, or
// a large relative coverage change.
func (c *Cache) Significant() bool {
	c.mu.RLock()
	defer c.mu.RUnlock()

	if !c.hasPrev {
		return c.hasState
	}
	if c.current.Territory.Strain != c.previous.Territory.Strain {
		return true
	}
	if c.previous.Market.Price != 0 {
		move := math.Abs(c.current.Market.Price-c.previous.Market.Price) / c.previous.Market.Price
		if move > priceChangeThreshold {
			return true
		}
	}
	if c.previous.Territory.Coverage != 0 {
		change := math.Abs(float64(c.current.Territory.Coverage-c.previous.Territory.Coverage)) /
			float64(c.previous.Territory.Coverage)
		if change > coverageChangeThreshold {
			return true
		}
	}
	return false
}
