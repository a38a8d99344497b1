package orderbook

import (
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/nathanyu/market-spread/internal/domain"
)

const (
	defaultBasePrice    = 100.0
	defaultMaxLevels    = 20
	defaultTradeHistory = 100
)

// Config holds the tunable constants of the book. All fields are
// optional; zero values fall back to documented defaults.
type Config struct {
	BasePrice     float64 // starting price before any trade (default 100)
	MaxLevels     int     // retained price levels per side (default 20)
	TradeHistory  int     // retained trades for metrics (default 100)
	BaseMarketCap float64 // fixed offset added to market cap (default 0)
}

func (c *Config) applyDefaults() {
	if c.BasePrice <= 0 {
		c.BasePrice = defaultBasePrice
	}
	if c.MaxLevels <= 0 {
		c.MaxLevels = defaultMaxLevels
	}
	if c.TradeHistory <= 0 {
		c.TradeHistory = defaultTradeHistory
	}
}

// levelEntry pairs a resting order with its arrival sequence so that
// matching can tie-break orders created in the same instant.
type levelEntry struct {
	order *domain.Order
	seq   uint64
}

// bookLevel aggregates all orders sharing one price.
// Invariant: TotalAmount equals the sum of Amount over Entries.
type bookLevel struct {
	Price       float64
	Entries     map[string]*levelEntry // orderID -> entry
	TotalAmount float64
}

func newLevel(price float64) *bookLevel {
	return &bookLevel{Price: price, Entries: make(map[string]*levelEntry)}
}

// oldest returns the earliest-created entry at this level, tie-broken
// by arrival sequence. Returns nil if the level is empty.
func (l *bookLevel) oldest() *levelEntry {
	var best *levelEntry
	for _, e := range l.Entries {
		if best == nil ||
			e.order.CreatedAt.Before(best.order.CreatedAt) ||
			(e.order.CreatedAt.Equal(best.order.CreatedAt) && e.seq < best.seq) {
			best = e
		}
	}
	return best
}

// Book is a two-sided price-level ledger with a bounded trade history.
// It is not safe for concurrent use; callers drive it from a single
// cooperative tick (see internal/driver).
type Book struct {
	cfg Config

	buyLevels  map[float64]*bookLevel
	sellLevels map[float64]*bookLevel

	currentPrice   float64
	lastTradePrice float64
	trades         *TradeRing
	totalTrades    uint64

	seq    uint64
	logger *zap.Logger
}

// NewBook creates an empty order book.
func NewBook(cfg Config, logger *zap.Logger) *Book {
	cfg.applyDefaults()
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Book{
		cfg:          cfg,
		buyLevels:    make(map[float64]*bookLevel),
		sellLevels:   make(map[float64]*bookLevel),
		currentPrice: cfg.BasePrice,
		trades:       NewTradeRing(cfg.TradeHistory),
		logger:       logger,
	}
}

// AddOrder validates and inserts a new order, then runs level retention
// and matching. Validation failures are rejected before any mutation.
func (b *Book) AddOrder(price, amount float64, side domain.Side) (*domain.Order, error) {
	if price <= 0 {
		return nil, fmt.Errorf("price %v: %w", price, domain.ErrInvalidOrder)
	}
	if amount <= 0 {
		return nil, fmt.Errorf("amount %v: %w", amount, domain.ErrInvalidOrder)
	}
	if side != domain.SideBuy && side != domain.SideSell {
		return nil, fmt.Errorf("side %q: %w", side, domain.ErrUnknownSide)
	}

	order := &domain.Order{
		OrderID:   uuid.New().String(),
		Price:     price,
		Amount:    amount,
		Side:      side,
		CreatedAt: time.Now(),
	}

	levels := b.sideLevels(side)
	level, ok := levels[price]
	if !ok {
		level = newLevel(price)
		levels[price] = level
	}
	b.seq++
	level.Entries[order.OrderID] = &levelEntry{order: order, seq: b.seq}
	level.TotalAmount += amount

	b.trimLevels(side)
	b.match()
	return order, nil
}

// RemoveOrder deletes an order from its level. A missing order returns
// ErrOrderNotFound; callers that want the reference no-op behavior may
// ignore it.
func (b *Book) RemoveOrder(orderID string, price float64, side domain.Side) error {
	if side != domain.SideBuy && side != domain.SideSell {
		return fmt.Errorf("side %q: %w", side, domain.ErrUnknownSide)
	}
	levels := b.sideLevels(side)
	level, ok := levels[price]
	if !ok {
		return fmt.Errorf("level %v: %w", price, domain.ErrOrderNotFound)
	}
	entry, ok := level.Entries[orderID]
	if !ok {
		return fmt.Errorf("order %s: %w", orderID, domain.ErrOrderNotFound)
	}

	b.removeEntry(levels, level, entry)
	b.match()
	return nil
}

// removeEntry deletes an entry from a level and the level from its side
// the instant it becomes empty.
func (b *Book) removeEntry(levels map[float64]*bookLevel, level *bookLevel, entry *levelEntry) {
	delete(level.Entries, entry.order.OrderID)
	level.TotalAmount -= entry.order.Amount
	if len(level.Entries) == 0 {
		delete(levels, level.Price)
	}
}

func (b *Book) sideLevels(side domain.Side) map[float64]*bookLevel {
	if side == domain.SideBuy {
		return b.buyLevels
	}
	return b.sellLevels
}

// trimLevels evicts levels beyond MaxLevels, least competitive first:
// lowest prices for buys, highest for sells.
func (b *Book) trimLevels(side domain.Side) {
	levels := b.sideLevels(side)
	for len(levels) > b.cfg.MaxLevels {
		var worst float64
		first := true
		for price := range levels {
			if first {
				worst = price
				first = false
				continue
			}
			if side == domain.SideBuy && price < worst {
				worst = price
			}
			if side == domain.SideSell && price > worst {
				worst = price
			}
		}
		b.logger.Debug("evicting price level",
			zap.String("side", string(side)),
			zap.Float64("price", worst),
		)
		delete(levels, worst)
	}
}

// BestBid returns the highest buy price, if any.
func (b *Book) BestBid() (float64, bool) {
	return bestPrice(b.buyLevels, true)
}

// BestAsk returns the lowest sell price, if any.
func (b *Book) BestAsk() (float64, bool) {
	return bestPrice(b.sellLevels, false)
}

func bestPrice(levels map[float64]*bookLevel, highest bool) (float64, bool) {
	var best float64
	found := false
	for price := range levels {
		if !found || (highest && price > best) || (!highest && price < best) {
			best = price
			found = true
		}
	}
	return best, found
}

// match resolves any bid/ask crossing. Each crossing fully removes the
// earliest-created order on both crossing levels and records a trade at
// the midpoint. Absence of a cross merely re-marks the current price.
func (b *Book) match() {
	for {
		bid, hasBid := b.BestBid()
		ask, hasAsk := b.BestAsk()
		if !hasBid || !hasAsk {
			return
		}

		mid := (bid + ask) / 2
		if bid < ask {
			// Uncrossed book: midpoint becomes the marked price.
			b.currentPrice = mid
			return
		}

		buyLevel := b.buyLevels[bid]
		sellLevel := b.sellLevels[ask]
		buyEntry := buyLevel.oldest()
		sellEntry := sellLevel.oldest()

		amount := min(buyEntry.order.Amount, sellEntry.order.Amount)
		trade := domain.Trade{
			Price:     mid,
			Amount:    amount,
			Timestamp: time.Now(),
		}
		b.trades.Push(trade)
		b.totalTrades++
		b.currentPrice = mid
		b.lastTradePrice = mid

		b.removeEntry(b.buyLevels, buyLevel, buyEntry)
		b.removeEntry(b.sellLevels, sellLevel, sellEntry)

		b.logger.Debug("trade matched",
			zap.Float64("price", mid),
			zap.Float64("amount", amount),
		)
	}
}

// PurgeStale removes orders older than maxAge and reruns matching.
// Returns the number of removed orders.
func (b *Book) PurgeStale(maxAge time.Duration, now time.Time) int {
	removed := 0
	for _, levels := range []map[float64]*bookLevel{b.buyLevels, b.sellLevels} {
		for _, level := range levels {
			for _, entry := range level.Entries {
				if now.Sub(entry.order.CreatedAt) > maxAge {
					b.removeEntry(levels, level, entry)
					removed++
				}
			}
		}
	}
	if removed > 0 {
		b.match()
	}
	return removed
}

// CurrentPrice returns the marked price (last trade or midpoint).
func (b *Book) CurrentPrice() float64 {
	return b.currentPrice
}

// LastTradePrice returns the price of the most recent trade, or 0 if no
// trade has occurred yet.
func (b *Book) LastTradePrice() float64 {
	return b.lastTradePrice
}

// RecentTrades returns the retained trades in chronological order.
func (b *Book) RecentTrades() []domain.Trade {
	return b.trades.All()
}

// TradeCount returns the number of retained trades.
func (b *Book) TradeCount() int {
	return b.trades.Len()
}

// TotalTrades returns the cumulative number of trades ever matched,
// including those already evicted from the retained history.
func (b *Book) TotalTrades() uint64 {
	return b.totalTrades
}
