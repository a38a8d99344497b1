package middleware

import (
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// HTTPRequestDuration tracks request latency by method and path.
	HTTPRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "http_request_duration_seconds",
			Help:    "HTTP request duration in seconds",
			Buckets: []float64{0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1},
		},
		[]string{"method", "path", "status"},
	)

	// OrdersTotal counts generated and injected orders by side.
	OrdersTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "spread_orders_total",
			Help: "Total number of orders by side",
		},
		[]string{"side"},
	)

	// TradesTotal counts matched trades.
	TradesTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "spread_trades_total",
			Help: "Total number of matched trades",
		},
	)

	// CurrentPrice tracks the marked market price.
	CurrentPrice = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "spread_market_price",
			Help: "Current marked market price",
		},
	)

	// MarketCap tracks the derived market capitalization.
	MarketCap = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "spread_market_cap",
			Help: "Current derived market capitalization",
		},
	)

	// TerritoryCoverage tracks the number of covered grid cells.
	TerritoryCoverage = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "spread_territory_coverage",
			Help: "Current number of covered grid cells",
		},
	)

	// TerritoryTarget tracks the target coverage derived from pressure.
	TerritoryTarget = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "spread_territory_target_coverage",
			Help: "Target coverage derived from market pressure",
		},
	)

	// TerritoryStrain tracks the current mutation strain.
	TerritoryStrain = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "spread_territory_strain",
			Help: "Current mutation strain number",
		},
	)
)

// PrometheusMiddleware records request metrics.
func PrometheusMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		duration := time.Since(start).Seconds()

		HTTPRequestDuration.WithLabelValues(
			c.Request.Method,
			c.FullPath(),
			strconv.Itoa(c.Writer.Status()),
		).Observe(duration)
	}
}
