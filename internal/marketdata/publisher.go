// Package marketdata aggregates matched trades into OHLCV candlesticks
// for the rendering layer.
package marketdata

import (
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/nathanyu/market-spread/internal/domain"
)

const (
	ringBufferCapacity = 100
	defaultInterval    = "1m"
	maxTradeLog        = 1000
)

// candleState tracks the current (building) candlestick.
type candleState struct {
	current  *domain.Candlestick
	hasData  bool
	interval time.Duration
}

// RingBuffer is a fixed-size circular buffer of completed candlesticks.
type RingBuffer struct {
	data  [ringBufferCapacity]*domain.Candlestick
	head  int // next write position
	count int
}

// Push adds a candlestick to the ring buffer.
func (rb *RingBuffer) Push(c *domain.Candlestick) {
	rb.data[rb.head] = c
	rb.head = (rb.head + 1) % ringBufferCapacity
	if rb.count < ringBufferCapacity {
		rb.count++
	}
}

// GetRecent returns the N most recent candlesticks in chronological
// order.
func (rb *RingBuffer) GetRecent(n int) []*domain.Candlestick {
	if n <= 0 || rb.count == 0 {
		return nil
	}
	if n > rb.count {
		n = rb.count
	}

	result := make([]*domain.Candlestick, n)
	start := (rb.head - n + ringBufferCapacity) % ringBufferCapacity
	for i := 0; i < n; i++ {
		result[i] = rb.data[(start+i)%ringBufferCapacity]
	}
	return result
}

// Publisher receives trades and maintains candlestick data plus a
// bounded trade log.
type Publisher struct {
	mu sync.RWMutex

	candles *RingBuffer
	state   candleState
	trades  []domain.Trade

	// TradeIn receives matched trades from the driver.
	TradeIn chan domain.Trade

	done   chan struct{}
	ticker *time.Ticker
	logger *zap.Logger
}

// NewPublisher creates a market data publisher.
func NewPublisher(bufferSize int, logger *zap.Logger) *Publisher {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Publisher{
		candles: &RingBuffer{},
		state:   candleState{interval: 1 * time.Minute},
		TradeIn: make(chan domain.Trade, bufferSize),
		done:    make(chan struct{}),
		logger:  logger,
	}
}

// Start begins the publisher's application loop.
func (p *Publisher) Start() {
	p.ticker = time.NewTicker(1 * time.Minute)
	go p.run()
}

// Stop shuts down the publisher.
func (p *Publisher) Stop() {
	if p.ticker != nil {
		p.ticker.Stop()
	}
	close(p.done)
}

// run is the main application loop.
func (p *Publisher) run() {
	p.logger.Info("market data publisher started")
	for {
		select {
		case trade := <-p.TradeIn:
			p.processTrade(trade)
		case <-p.ticker.C:
			p.rotateCandle()
		case <-p.done:
			p.logger.Info("market data publisher stopped")
			return
		}
	}
}

// processTrade folds a trade into the building candle and the trade
// log.
func (p *Publisher) processTrade(trade domain.Trade) {
	p.mu.Lock()
	defer p.mu.Unlock()

	p.trades = append(p.trades, trade)
	if len(p.trades) > maxTradeLog {
		p.trades = p.trades[len(p.trades)-maxTradeLog:]
	}
	p.updateCandle(trade)
}

// updateCandle updates the current candlestick from a trade.
func (p *Publisher) updateCandle(trade domain.Trade) {
	if !p.state.hasData {
		p.state.current = &domain.Candlestick{
			Open:      trade.Price,
			High:      trade.Price,
			Low:       trade.Price,
			Close:     trade.Price,
			Volume:    trade.Amount,
			Timestamp: trade.Timestamp.Truncate(p.state.interval),
			Interval:  defaultInterval,
		}
		p.state.hasData = true
		return
	}

	c := p.state.current
	if trade.Price > c.High {
		c.High = trade.Price
	}
	if trade.Price < c.Low {
		c.Low = trade.Price
	}
	c.Close = trade.Price
	c.Volume += trade.Amount
}

// rotateCandle closes the current candle and starts a new interval.
func (p *Publisher) rotateCandle() {
	p.mu.Lock()
	defer p.mu.Unlock()

	if !p.state.hasData {
		return
	}
	p.candles.Push(p.state.current)
	p.state.hasData = false
	p.state.current = nil
}

// GetCandles returns the most recent candlesticks including the
// building one. The building candle is still being mutated under the
// lock, so callers get a copy of it; completed candles in the ring are
// immutable after rotation.
func (p *Publisher) GetCandles(count int) []*domain.Candlestick {
	p.mu.RLock()
	defer p.mu.RUnlock()

	result := p.candles.GetRecent(count)
	if p.state.hasData {
		building := *p.state.current
		result = append(result, &building)
	}
	return result
}

// GetTrades returns trades from the log, newest last, filtered by
// since when non-zero.
func (p *Publisher) GetTrades(since time.Time) []domain.Trade {
	p.mu.RLock()
	defer p.mu.RUnlock()

	var result []domain.Trade
	for _, trade := range p.trades {
		if !since.IsZero() && trade.Timestamp.Before(since) {
			continue
		}
		result = append(result, trade)
	}
	return result
}
