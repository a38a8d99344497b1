package translator

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/nathanyu/market-spread/internal/domain"
)

func TestPressure(t *testing.T) {
	snap := domain.MarketSnapshot{MarketCap: 12345.6}
	assert.Equal(t, 12345.6, Pressure(snap))
}

func TestParameters_QuietMarketClampsLow(t *testing.T) {
	p := Parameters(domain.MarketSnapshot{})

	assert.Equal(t, minGrowthRate, p.GrowthRate)
	assert.Equal(t, minMutationRate, p.MutationRate)
	assert.Equal(t, minSpreadSpeed, p.SpreadSpeed)
	assert.Equal(t, baseDecayRate, p.DecayPressure)
	assert.Zero(t, p.Pressure)
}

func TestParameters_HotMarketClampsHigh(t *testing.T) {
	p := Parameters(domain.MarketSnapshot{
		MarketCap:  1e9,
		Trend:      5,
		Volatility: 10,
		BuyVolume:  1e6,
		SellVolume: 1e6,
	})

	assert.Equal(t, maxGrowthRate, p.GrowthRate)
	assert.Equal(t, maxMutationRate, p.MutationRate)
	assert.Equal(t, maxSpreadSpeed, p.SpreadSpeed)
	assert.Equal(t, 1e9, p.Pressure)
}

func TestParameters_DowntrendRaisesDecay(t *testing.T) {
	up := Parameters(domain.MarketSnapshot{Trend: 0.5})
	down := Parameters(domain.MarketSnapshot{Trend: -0.5})
	crash := Parameters(domain.MarketSnapshot{Trend: -5})

	assert.Equal(t, baseDecayRate, up.DecayPressure, "uptrend keeps the base decay")
	assert.InDelta(t, baseDecayRate+0.1, down.DecayPressure, 1e-9)
	assert.Equal(t, maxDecayPressure, crash.DecayPressure, "decay saturates in a crash")

	// Trend magnitude feeds growth regardless of sign.
	assert.Equal(t, up.GrowthRate, down.GrowthRate)
}

func TestParameters_MonotoneInMarketCap(t *testing.T) {
	prev := 0.0
	for _, marketCap := range []float64{0, 1_000, 5_000, 10_000, 50_000} {
		p := Parameters(domain.MarketSnapshot{MarketCap: marketCap})
		assert.GreaterOrEqual(t, p.GrowthRate, prev)
		prev = p.GrowthRate
	}
}

func TestParameters_VolumeDrivesSpreadSpeed(t *testing.T) {
	quiet := Parameters(domain.MarketSnapshot{BuyVolume: 100, SellVolume: 100})
	busy := Parameters(domain.MarketSnapshot{BuyVolume: 1500, SellVolume: 1500})

	assert.Equal(t, minSpreadSpeed, quiet.SpreadSpeed)
	assert.InDelta(t, 1.5, busy.SpreadSpeed, 1e-9)
}

func TestCache_TTL(t *testing.T) {
	c := NewCache(time.Second)
	now := time.Now()

	_, ok := c.Get(now)
	assert.False(t, ok, "empty cache misses")

	params := domain.GrowthParameters{GrowthRate: 0.42}
	c.Set(params, now)

	got, ok := c.Get(now.Add(500 * time.Millisecond))
	assert.True(t, ok)
	assert.Equal(t, params, got)

	_, ok = c.Get(now.Add(time.Second))
	assert.False(t, ok, "entry expires at the TTL boundary")
}
