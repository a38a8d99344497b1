// Package market wraps the order book with synthetic order flow: a
// randomized generator, whale injections, subscriber fan-out, and timed
// activity overrides.
package market

import (
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/nathanyu/market-spread/internal/domain"
	"github.com/nathanyu/market-spread/internal/orderbook"
)

const (
	defaultMinOrderAmount  = 1.0
	defaultMaxOrderAmount  = 10.0
	defaultWhaleMultiplier = 10.0
	defaultMaxSpreadFrac   = 0.0005 // 0.05% of the reference price
	defaultWhaleChance     = 0.05
	defaultOrdersPerTick   = 2
	defaultMaxOrderAge     = 30 * time.Second
)

// Rand is the random source used by the simulator. *math/rand.Rand
// satisfies it; tests inject a seeded source.
type Rand interface {
	Float64() float64
	Intn(n int) int
}

// Subscriber receives the latest market snapshot after every mutating
// operation. Subscribers must not re-enter the simulator's mutating
// methods from within a notification.
type Subscriber func(domain.MarketSnapshot)

// Config holds the simulator's tunable constants. Zero values fall back
// to documented defaults.
type Config struct {
	MinOrderAmount  float64       // default 1
	MaxOrderAmount  float64       // default 10
	WhaleMultiplier float64       // amount scale for whales (default 10)
	MaxSpreadFrac   float64       // max price offset fraction (default 0.0005)
	WhaleChance     float64       // whale probability per tick (default 0.05)
	OrdersPerTick   int           // baseline generated orders per tick (default 2)
	MaxOrderAge     time.Duration // stale order cutoff (default 30s)
}

func (c *Config) applyDefaults() {
	if c.MinOrderAmount <= 0 {
		c.MinOrderAmount = defaultMinOrderAmount
	}
	if c.MaxOrderAmount <= c.MinOrderAmount {
		c.MaxOrderAmount = c.MinOrderAmount + defaultMaxOrderAmount
	}
	if c.WhaleMultiplier <= 0 {
		c.WhaleMultiplier = defaultWhaleMultiplier
	}
	if c.MaxSpreadFrac <= 0 {
		c.MaxSpreadFrac = defaultMaxSpreadFrac
	}
	if c.WhaleChance <= 0 {
		c.WhaleChance = defaultWhaleChance
	}
	if c.OrdersPerTick <= 0 {
		c.OrdersPerTick = defaultOrdersPerTick
	}
	if c.MaxOrderAge <= 0 {
		c.MaxOrderAge = defaultMaxOrderAge
	}
}

// Simulator owns the order book and generates synthetic flow against
// it. Every mutating call publishes a fresh snapshot to subscribers.
type Simulator struct {
	mu sync.Mutex

	cfg  Config
	book *orderbook.Book
	rng  Rand

	subscribers map[int]Subscriber
	nextSubID   int

	// Activity multiplier scales generated flow. A boost or suppress
	// schedules a single reset timer; a new request replaces it.
	multiplier float64
	resetTimer *time.Timer

	lastTradeTotal uint64

	logger *zap.Logger
}

// NewSimulator creates a simulator over the given book and random
// source.
func NewSimulator(cfg Config, book *orderbook.Book, rng Rand, logger *zap.Logger) *Simulator {
	cfg.applyDefaults()
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Simulator{
		cfg:         cfg,
		book:        book,
		rng:         rng,
		subscribers: make(map[int]Subscriber),
		multiplier:  1.0,
		logger:      logger,
	}
}

// Subscribe registers a listener and returns its id for Unsubscribe.
func (s *Simulator) Subscribe(fn Subscriber) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.nextSubID++
	s.subscribers[s.nextSubID] = fn
	return s.nextSubID
}

// Unsubscribe removes a previously registered listener.
func (s *Simulator) Unsubscribe(id int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.subscribers, id)
}

// PlaceOrder inserts a caller-supplied order and notifies subscribers.
func (s *Simulator) PlaceOrder(price, amount float64, side domain.Side) (*domain.Order, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	order, err := s.book.AddOrder(price, amount, side)
	if err != nil {
		return nil, err
	}
	s.notify()
	return order, nil
}

// CancelOrder removes a resting order and notifies subscribers.
func (s *Simulator) CancelOrder(orderID string, price float64, side domain.Side) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.book.RemoveOrder(orderID, price, side); err != nil {
		return err
	}
	s.notify()
	return nil
}

// GenerateRandomOrder produces one unit of passive flow: uniform side,
// bounded uniform amount, price offset from the best bid/ask by at most
// MaxSpreadFrac on the non-aggressive side.
func (s *Simulator) GenerateRandomOrder() (*domain.Order, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.generateRandomOrder()
}

func (s *Simulator) generateRandomOrder() (*domain.Order, error) {
	side := domain.SideBuy
	if s.rng.Intn(2) == 1 {
		side = domain.SideSell
	}

	amount := s.cfg.MinOrderAmount + s.rng.Float64()*(s.cfg.MaxOrderAmount-s.cfg.MinOrderAmount)

	ref := s.book.CurrentPrice()
	var price float64
	if side == domain.SideBuy {
		if bid, ok := s.book.BestBid(); ok {
			ref = bid
		}
		price = ref * (1 - s.rng.Float64()*s.cfg.MaxSpreadFrac)
	} else {
		if ask, ok := s.book.BestAsk(); ok {
			ref = ask
		}
		price = ref * (1 + s.rng.Float64()*s.cfg.MaxSpreadFrac)
	}

	order, err := s.book.AddOrder(price, amount, side)
	if err != nil {
		return nil, err
	}
	s.notify()
	return order, nil
}

// GenerateWhaleOrder produces a large aggressive order priced to cross
// the opposing best, guaranteeing an immediate trade when the opposing
// side is populated.
func (s *Simulator) GenerateWhaleOrder() (*domain.Order, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.generateWhaleOrder()
}

func (s *Simulator) generateWhaleOrder() (*domain.Order, error) {
	side := domain.SideBuy
	if s.rng.Intn(2) == 1 {
		side = domain.SideSell
	}

	amount := s.cfg.WhaleMultiplier *
		(s.cfg.MinOrderAmount + s.rng.Float64()*(s.cfg.MaxOrderAmount-s.cfg.MinOrderAmount))

	ref := s.book.CurrentPrice()
	var price float64
	if side == domain.SideBuy {
		if ask, ok := s.book.BestAsk(); ok {
			ref = ask
		}
		price = ref * (1 + s.cfg.MaxSpreadFrac)
	} else {
		if bid, ok := s.book.BestBid(); ok {
			ref = bid
		}
		price = ref * (1 - s.cfg.MaxSpreadFrac)
	}

	s.logger.Debug("whale order",
		zap.String("side", string(side)),
		zap.Float64("price", price),
		zap.Float64("amount", amount),
	)

	order, err := s.book.AddOrder(price, amount, side)
	if err != nil {
		return nil, err
	}
	s.notify()
	return order, nil
}

// Tick advances the simulation one step: generated flow scaled by the
// activity multiplier, an occasional whale, and stale-order cleanup.
// It returns the resulting snapshot and the trades matched this tick.
func (s *Simulator) Tick(now time.Time) (domain.MarketSnapshot, []domain.Trade) {
	s.mu.Lock()
	defer s.mu.Unlock()

	n := int(float64(s.cfg.OrdersPerTick)*s.multiplier + 0.5)
	if n < 1 {
		n = 1
	}
	for _i := 0; _i < n; _i++ {
		if _, err := s.generateRandomOrder(); err != nil {
			s.logger.Warn("generated order rejected", zap.Error(err))
		}
	}

	if s.rng.Float64() < s.cfg.WhaleChance*s.multiplier {
		if _, err := s.generateWhaleOrder(); err != nil {
			s.logger.Warn("whale order rejected", zap.Error(err))
		}
	}

	if purged := s.book.PurgeStale(s.cfg.MaxOrderAge, now); purged > 0 {
		s.logger.Debug("purged stale orders", zap.Int("count", purged))
		s.notify()
	}

	total := s.book.TotalTrades()
	fresh := int(total - s.lastTradeTotal)
	s.lastTradeTotal = total

	recent := s.book.RecentTrades()
	if fresh > len(recent) {
		fresh = len(recent)
	}
	return s.book.Snapshot(now), recent[len(recent)-fresh:]
}

// Boost temporarily overrides the activity multiplier. Only one reset
// may be pending at a time; a new call cancels and replaces it. Use a
// multiplier below 1 to suppress activity.
func (s *Simulator) Boost(multiplier float64, duration time.Duration) {
	if multiplier <= 0 {
		multiplier = 1.0
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.resetTimer != nil {
		s.resetTimer.Stop()
	}
	s.multiplier = multiplier
	s.resetTimer = time.AfterFunc(duration, func() {
		s.mu.Lock()
		s.multiplier = 1.0
		s.resetTimer = nil
		s.mu.Unlock()
	})
	s.logger.Info("activity override",
		zap.Float64("multiplier", multiplier),
		zap.Duration("duration", duration),
	)
}

// Multiplier returns the current activity multiplier.
func (s *Simulator) Multiplier() float64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.multiplier
}

// Close cancels any pending override reset so it cannot fire after
// disposal.
func (s *Simulator) Close() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.resetTimer != nil {
		s.resetTimer.Stop()
		s.resetTimer = nil
	}
}

// Snapshot returns the current market state.
func (s *Simulator) Snapshot() domain.MarketSnapshot {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.book.Snapshot(time.Now())
}

// BookSnapshot returns an aggregated view of the book.
func (s *Simulator) BookSnapshot(depth int) domain.BookSnapshot {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.book.BookSnapshot(depth)
}

// notify fans the latest snapshot out to all subscribers synchronously.
// Callers must hold s.mu.
func (s *Simulator) notify() {
	if len(s.subscribers) == 0 {
		return
	}
	snap := s.book.Snapshot(time.Now())
	for _, fn := range s.subscribers {
		fn(snap)
	}
}
