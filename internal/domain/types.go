package domain

import "time"

// Side represents the order side (buy or sell).
type Side string

const (
	SideBuy  Side = "buy"
	SideSell Side = "sell"
)

// Order represents a synthetic limit order resting in the book.
// Orders are immutable once created; age is derived at snapshot time.
type Order struct {
	OrderID   string    `json:"order_id"`
	Price     float64   `json:"price"`
	Amount    float64   `json:"amount"`
	Side      Side      `json:"side"`
	CreatedAt time.Time `json:"created_at"`
}

// Trade is produced only by matching and retained for metric computation.
type Trade struct {
	Price     float64   `json:"price"`
	Amount    float64   `json:"amount"`
	Timestamp time.Time `json:"timestamp"`
}

// PriceLevel is an aggregated price level in a book snapshot.
type PriceLevel struct {
	Price       float64 `json:"price"`
	TotalAmount float64 `json:"total_amount"`
	OrderCount  int     `json:"order_count"`
}

// BookSnapshot is an aggregated two-sided view of the order book.
// Bids are sorted descending, asks ascending.
type BookSnapshot struct {
	Bids []PriceLevel `json:"bids"`
	Asks []PriceLevel `json:"asks"`
}

// MarketSnapshot is the state published to subscribers after every
// mutating operation. It is the only value that crosses the boundary
// between the market engine and the territory engine.
type MarketSnapshot struct {
	Price          float64   `json:"price"`
	LastTradePrice float64   `json:"last_trade_price"`
	Volatility     float64   `json:"volatility"`
	Trend          float64   `json:"trend"`
	MarketCap      float64   `json:"market_cap"`
	BuyVolume      float64   `json:"buy_volume"`
	SellVolume     float64   `json:"sell_volume"`
	BuyOrders      []Order   `json:"buy_orders"`
	SellOrders     []Order   `json:"sell_orders"`
	TradeCount     int       `json:"trade_count"`
	Timestamp      time.Time `json:"timestamp"`
}

// Candlestick represents OHLCV data for a time interval.
type Candlestick struct {
	Open      float64   `json:"open"`
	High      float64   `json:"high"`
	Low       float64   `json:"low"`
	Close     float64   `json:"close"`
	Volume    float64   `json:"volume"`
	Timestamp time.Time `json:"timestamp"`
	Interval  string    `json:"interval"` // e.g. "1m"
}

// GrowthParameters are the translated market metrics that drive the
// territory engine. All fields are clamped to documented ranges by the
// translator.
type GrowthParameters struct {
	GrowthRate    float64 `json:"growth_rate"`    // 0.1 .. 0.8
	MutationRate  float64 `json:"mutation_rate"`  // 0.01 .. 0.2
	SpreadSpeed   float64 `json:"spread_speed"`   // 0.5 .. 2.0
	DecayPressure float64 `json:"decay_pressure"` // 0.0 .. 0.3
	Pressure      float64 `json:"pressure"`       // raw scalar (market cap)
}

// Point is the render projection of a single territory cell.
type Point struct {
	Position [2]float64 `json:"position"`
	Weight   float64    `json:"weight"`
}

// TerritoryStats summarizes the territory engine state.
type TerritoryStats struct {
	Coverage       int     `json:"coverage"`
	TargetCoverage int     `json:"target_coverage"`
	EdgeCount      int     `json:"edge_count"`
	SourceCount    int     `json:"source_count"`
	MaxGeneration  int     `json:"max_generation"`
	Strain         int     `json:"strain"`
	Pressure       float64 `json:"pressure"`
}

// CompositeState bundles the latest outputs of both engines for
// caching and broadcast to clients.
type CompositeState struct {
	Market    MarketSnapshot `json:"market"`
	Territory TerritoryStats `json:"territory"`
	Timestamp time.Time      `json:"timestamp"`
}
