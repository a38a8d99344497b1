package orderbook

import "github.com/nathanyu/market-spread/internal/domain"

// TradeRing is a fixed-size circular buffer of trades. When full, the
// oldest trade is evicted first (FIFO).
type TradeRing struct {
	data  []domain.Trade
	head  int // next write position
	count int
}

// NewTradeRing creates a ring buffer holding at most capacity trades.
func NewTradeRing(capacity int) *TradeRing {
	return &TradeRing{data: make([]domain.Trade, capacity)}
}

// Push adds a trade to the ring buffer.
func (r *TradeRing) Push(t domain.Trade) {
	r.data[r.head] = t
	r.head = (r.head + 1) % len(r.data)
	if r.count < len(r.data) {
		r.count++
	}
}

// Len returns the number of retained trades.
func (r *TradeRing) Len() int {
	return r.count
}

// All returns retained trades in chronological order.
func (r *TradeRing) All() []domain.Trade {
	if r.count == 0 {
		return nil
	}

	result := make([]domain.Trade, r.count)
	start := (r.head - r.count + len(r.data)) % len(r.data)
	for i := 0; i < r.count; i++ {
		result[i] = r.data[(start+i)%len(r.data)]
	}
	return result
}

// Prices returns retained trade prices in chronological order.
func (r *TradeRing) Prices() []float64 {
	trades := r.All()
	prices := make([]float64, len(trades))
	for i, t := range trades {
		prices[i] = t.Price
	}
	return prices
}
