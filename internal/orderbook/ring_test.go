package orderbook

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nathanyu/market-spread/internal/domain"
)

func TestTradeRing_PartialFill(t *testing.T) {
	r := NewTradeRing(5)
	assert.Zero(t, r.Len())
	assert.Nil(t, r.All())

	r.Push(domain.Trade{Price: 1})
	r.Push(domain.Trade{Price: 2})

	assert.Equal(t, 2, r.Len())
	assert.Equal(t, []float64{1, 2}, r.Prices())
}

func TestTradeRing_WrapAround(t *testing.T) {
	r := NewTradeRing(3)
	for i := 1; i <= 5; i++ {
		r.Push(domain.Trade{Price: float64(i)})
	}

	require.Equal(t, 3, r.Len())
	assert.Equal(t, []float64{3, 4, 5}, r.Prices())

	all := r.All()
	require.Len(t, all, 3)
	assert.Equal(t, 3.0, all[0].Price)
	assert.Equal(t, 5.0, all[2].Price)
}
