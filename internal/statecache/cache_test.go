package statecache

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nathanyu/market-spread/internal/domain"
)

func state(price float64, coverage, strain, trades int) domain.CompositeState {
	return domain.CompositeState{
		Market: domain.MarketSnapshot{Price: price, TradeCount: trades},
		Territory: domain.TerritoryStats{
			Coverage: coverage,
			Strain:   strain,
		},
	}
}

func TestGet_TTL(t *testing.T) {
	c := New(time.Second)
	now := time.Now()

	_, ok := c.Get(now)
	assert.False(t, ok, "empty cache misses")

	c.Update(state(100, 20, 0, 0), now)

	got, ok := c.Get(now.Add(500 * time.Millisecond))
	require.True(t, ok)
	assert.Equal(t, 100.0, got.Market.Price)

	_, ok = c.Get(now.Add(time.Second))
	assert.False(t, ok, "entry expires at the TTL boundary")

	// A fresh update revalidates.
	c.Update(state(101, 20, 0, 0), now.Add(2*time.Second))
	_, ok = c.Get(now.Add(2 * time.Second))
	assert.True(t, ok)
}

func TestGetDiff(t *testing.T) {
	c := New(time.Minute)
	now := time.Now()

	_, ok := c.GetDiff()
	assert.False(t, ok, "one state is not enough to diff")

	c.Update(state(100, 20, 0, 5), now)
	_, ok = c.GetDiff()
	assert.False(t, ok)

	c.Update(state(110, 25, 1, 9), now.Add(time.Second))

	diff, ok := c.GetDiff()
	require.True(t, ok)
	assert.InDelta(t, 10.0, diff.PriceDelta, 1e-9)
	assert.Equal(t, 5, diff.CoverageDelta)
	assert.True(t, diff.StrainChanged)
	assert.Equal(t, 4, diff.TradeDelta)
}

func TestSignificant_FirstState(t *testing.T) {
	c := New(time.Minute)
	assert.False(t, c.Significant(), "empty cache has nothing to broadcast")

	c.Update(state(100, 20, 0, 0), time.Now())
	assert.True(t, c.Significant(), "the first state is always significant")
}

func TestSignificant_Thresholds(t *testing.T) {
	now := time.Now()

	cases := []struct {
		name string
		next domain.CompositeState
		want bool
	}{
		{"no change", state(100, 20, 0, 0), false},
		{"small price move", state(105, 20, 0, 0), false},
		{"large price move", state(112, 20, 0, 0), true},
		{"small coverage change", state(100, 21, 0, 0), false},
		{"large coverage change", state(100, 25, 0, 0), true},
		{"strain change", state(100, 20, 1, 0), true},
		{"trades alone", state(100, 20, 0, 50), false},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			c := New(time.Minute)
			c.Update(state(100, 20, 0, 0), now)
			c.Update(tc.next, now.Add(time.Second))
			assert.Equal(t, tc.want, c.Significant())
		})
	}
}
