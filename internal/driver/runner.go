// Package driver schedules the cooperative ticks of both engines and
// moves snapshots across the market/territory boundary.
package driver

import (
	"time"

	"go.uber.org/zap"

	"github.com/nathanyu/market-spread/internal/domain"
	"github.com/nathanyu/market-spread/internal/market"
	"github.com/nathanyu/market-spread/internal/marketdata"
	"github.com/nathanyu/market-spread/internal/middleware"
	"github.com/nathanyu/market-spread/internal/statecache"
	"github.com/nathanyu/market-spread/internal/territory"
	"github.com/nathanyu/market-spread/internal/translator"
	"github.com/nathanyu/market-spread/internal/ws"
)

const (
	defaultMarketTick     = 250 * time.Millisecond
	defaultTerritoryTick  = 100 * time.Millisecond
	defaultTranslationTTL = time.Second
)

// Config holds the tick intervals. Zero values fall back to defaults.
type Config struct {
	MarketTick     time.Duration
	TerritoryTick  time.Duration
	TranslationTTL time.Duration
}

func (c *Config) applyDefaults() {
	if c.MarketTick <= 0 {
		c.MarketTick = defaultMarketTick
	}
	if c.TerritoryTick <= 0 {
		c.TerritoryTick = defaultTerritoryTick
	}
	if c.TranslationTTL <= 0 {
		c.TranslationTTL = defaultTranslationTTL
	}
}

// Runner drives both engines from a single goroutine. Every tick fully
// completes before the next may run, so the engines never observe
// concurrent mutation.
type Runner struct {
	cfg Config

	sim   *market.Simulator
	terr  *territory.Territory
	pub   *marketdata.Publisher
	cache *statecache.Cache
	hub   *ws.Hub

	tcache   *translator.Cache
	lastSnap domain.MarketSnapshot

	done   chan struct{}
	logger *zap.Logger
}

// NewRunner wires the simulator, territory engine, and downstream
// consumers together. hub may be nil when no streaming surface exists.
func NewRunner(cfg Config, sim *market.Simulator, terr *territory.Territory,
	pub *marketdata.Publisher, cache *statecache.Cache, hub *ws.Hub, logger *zap.Logger) *Runner {
	cfg.applyDefaults()
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Runner{
		cfg:    cfg,
		sim:    sim,
		terr:   terr,
		pub:    pub,
		cache:  cache,
		hub:    hub,
		tcache: translator.NewCache(cfg.TranslationTTL),
		done:   make(chan struct{}),
		logger: logger,
	}
}

// Start begins the runner's application loop in a goroutine.
func (r *Runner) Start() {
	go r.run()
}

// Stop signals the runner to shut down and cancels any pending
// simulator override timer.
func (r *Runner) Stop() {
	close(r.done)
	r.sim.Close()
}

// run is the main application loop.
func (r *Runner) run() {
	r.logger.Info("driver started",
		zap.Duration("market_tick", r.cfg.MarketTick),
		zap.Duration("territory_tick", r.cfg.TerritoryTick),
	)

	marketTicker := time.NewTicker(r.cfg.MarketTick)
	territoryTicker := time.NewTicker(r.cfg.TerritoryTick)
	defer marketTicker.Stop()
	defer territoryTicker.Stop()

	for {
		select {
		case <-marketTicker.C:
			r.marketTick(time.Now())
		case <-territoryTicker.C:
			r.territoryTick()
		case <-r.done:
			r.logger.Info("driver stopped")
			return
		}
	}
}

// marketTick advances the market simulation and pushes its outputs
// downstream: trades to the candle publisher, translated parameters to
// the territory engine, and the composite state to cache and clients.
func (r *Runner) marketTick(now time.Time) {
	snap, trades := r.sim.Tick(now)
	r.lastSnap = snap

	for _, trade := range trades {
		select {
		case r.pub.TradeIn <- trade:
		default:
			r.logger.Warn("trade channel full, dropping trade")
		}
	}

	params, ok := r.tcache.Get(now)
	if !ok {
		params = translator.Parameters(snap)
		r.tcache.Set(params, now)
	}
	r.terr.SetParameters(params)

	middleware.TradesTotal.Add(float64(len(trades)))
	middleware.CurrentPrice.Set(snap.Price)
	middleware.MarketCap.Set(snap.MarketCap)

	r.publishState(now)
}

// territoryTick advances the growth engine one step. dt is normalized
// so one unit corresponds to a 100ms tick.
func (r *Runner) territoryTick() {
	r.terr.Tick(r.cfg.TerritoryTick.Seconds() * 10)

	stats := r.terr.Stats()
	middleware.TerritoryCoverage.Set(float64(stats.Coverage))
	middleware.TerritoryTarget.Set(float64(stats.TargetCoverage))
	middleware.TerritoryStrain.Set(float64(stats.Strain))

	r.publishState(time.Now())
}

// publishState refreshes the state cache and broadcasts when the
// transition is significant.
func (r *Runner) publishState(now time.Time) {
	state := domain.CompositeState{
		Market:    r.lastSnap,
		Territory: r.terr.Stats(),
		Timestamp: now,
	}
	r.cache.Update(state, now)

	if r.hub != nil && r.cache.Significant() {
		r.hub.Broadcast(state)
	}
}
