package handler

import (
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/nathanyu/market-spread/internal/domain"
	"github.com/nathanyu/market-spread/internal/market"
	"github.com/nathanyu/market-spread/internal/marketdata"
	"github.com/nathanyu/market-spread/internal/middleware"
	"github.com/nathanyu/market-spread/internal/statecache"
	"github.com/nathanyu/market-spread/internal/territory"
	"github.com/nathanyu/market-spread/internal/ws"
)

// Handler holds the HTTP handler dependencies.
type Handler struct {
	sim   *market.Simulator
	terr  *territory.Territory
	pub   *marketdata.Publisher
	cache *statecache.Cache
	hub   *ws.Hub
}

// NewHandler creates a new Handler.
func NewHandler(sim *market.Simulator, terr *territory.Territory,
	pub *marketdata.Publisher, cache *statecache.Cache, hub *ws.Hub) *Handler {
	return &Handler{
		sim:   sim,
		terr:  terr,
		pub:   pub,
		cache: cache,
		hub:   hub,
	}
}

// RegisterRoutes sets up the Gin routes.
func (h *Handler) RegisterRoutes(r *gin.Engine) {
	r.GET("/health", h.Health)

	v1 := r.Group("/v1")
	{
		v1.GET("/market/state", h.GetMarketState)
		v1.GET("/market/orderbook", h.GetOrderBook)
		v1.GET("/market/candles", h.GetCandles)
		v1.GET("/market/trades", h.GetTrades)
		v1.POST("/market/order", h.PlaceOrder)
		v1.DELETE("/market/order/:id", h.CancelOrder)
		v1.POST("/market/whale", h.TriggerWhale)
		v1.POST("/market/boost", h.Boost)
		v1.GET("/territory/points", h.GetPoints)
		v1.GET("/territory/stats", h.GetTerritoryStats)
		v1.GET("/state", h.GetCompositeState)
	}

	r.GET("/ws", func(c *gin.Context) {
		h.hub.HandleWS(c.Writer, c.Request)
	})
}

// Health returns a health check response.
func (h *Handler) Health(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status":  "ok",
		"service": "market-spread",
	})
}

// GetMarketState handles GET /v1/market/state.
func (h *Handler) GetMarketState(c *gin.Context) {
	c.JSON(http.StatusOK, h.sim.Snapshot())
}

// GetOrderBook handles GET /v1/market/orderbook.
func (h *Handler) GetOrderBook(c *gin.Context) {
	depthStr := c.DefaultQuery("depth", "10")
	depth, err := strconv.Atoi(depthStr)
	if err != nil || depth <= 0 {
		depth = 10
	}
	c.JSON(http.StatusOK, h.sim.BookSnapshot(depth))
}

// GetCandles handles GET /v1/market/candles.
func (h *Handler) GetCandles(c *gin.Context) {
	countStr := c.DefaultQuery("count", "100")
	count, err := strconv.Atoi(countStr)
	if err != nil || count <= 0 {
		count = 100
	}

	candles := h.pub.GetCandles(count)
	if candles == nil {
		candles = []*domain.Candlestick{}
	}
	c.JSON(http.StatusOK, candles)
}

// GetTrades handles GET /v1/market/trades.
func (h *Handler) GetTrades(c *gin.Context) {
	var since time.Time
	if sinceStr := c.Query("since"); sinceStr != "" {
		parsed, err := time.Parse(time.RFC3339, sinceStr)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid since format, use RFC3339"})
			return
		}
		since = parsed
	}

	trades := h.pub.GetTrades(since)
	if trades == nil {
		trades = []domain.Trade{}
	}
	c.JSON(http.StatusOK, trades)
}

// PlaceOrderRequest is the request body for injecting an order.
type PlaceOrderRequest struct {
	Price  float64     `json:"price" binding:"required,gt=0"`
	Amount float64     `json:"amount" binding:"required,gt=0"`
	Side   domain.Side `json:"side" binding:"required"`
}

// PlaceOrder handles POST /v1/market/order.
func (h *Handler) PlaceOrder(c *gin.Context) {
	var req PlaceOrderRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	order, err := h.sim.PlaceOrder(req.Price, req.Amount, req.Side)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	middleware.OrdersTotal.WithLabelValues(string(order.Side)).Inc()
	c.JSON(http.StatusCreated, order)
}

// CancelOrder handles DELETE /v1/market/order/:id. Price and side come
// from query parameters; intermediaries commonly strip DELETE bodies.
func (h *Handler) CancelOrder(c *gin.Context) {
	price, err := strconv.ParseFloat(c.Query("price"), 64)
	if err != nil || price <= 0 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "price must be a positive number"})
		return
	}
	side := domain.Side(c.Query("side"))
	if side != domain.SideBuy && side != domain.SideSell {
		c.JSON(http.StatusBadRequest, gin.H{"error": "side must be buy or sell"})
		return
	}

	err = h.sim.CancelOrder(c.Param("id"), price, side)
	if err != nil {
		if errors.Is(err, domain.ErrOrderNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": err.Error()})
			return
		}
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "canceled"})
}

// TriggerWhale handles POST /v1/market/whale.
func (h *Handler) TriggerWhale(c *gin.Context) {
	order, err := h.sim.GenerateWhaleOrder()
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	middleware.OrdersTotal.WithLabelValues(string(order.Side)).Inc()
	c.JSON(http.StatusCreated, order)
}

// BoostRequest is the request body for a temporary activity override.
type BoostRequest struct {
	Multiplier float64 `json:"multiplier" binding:"required,gt=0"`
	DurationMs int     `json:"duration_ms" binding:"required,gt=0"`
}

// Boost handles POST /v1/market/boost. A multiplier below 1 suppresses
// activity.
func (h *Handler) Boost(c *gin.Context) {
	var req BoostRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	h.sim.Boost(req.Multiplier, time.Duration(req.DurationMs)*time.Millisecond)
	c.JSON(http.StatusOK, gin.H{
		"multiplier":  req.Multiplier,
		"duration_ms": req.DurationMs,
	})
}

// GetPoints handles GET /v1/territory/points.
func (h *Handler) GetPoints(c *gin.Context) {
	points := h.terr.Points()
	if points == nil {
		points = []domain.Point{}
	}
	c.JSON(http.StatusOK, points)
}

// GetTerritoryStats handles GET /v1/territory/stats.
func (h *Handler) GetTerritoryStats(c *gin.Context) {
	c.JSON(http.StatusOK, h.terr.Stats())
}

// GetCompositeState handles GET /v1/state.
func (h *Handler) GetCompositeState(c *gin.Context) {
	state, ok := h.cache.Get(time.Now())
	if !ok {
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "no recent state"})
		return
	}
	c.JSON(http.StatusOK, state)
}
