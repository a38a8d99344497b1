package handler

import (
	"encoding/json"
	"math/rand"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nathanyu/market-spread/internal/domain"
	"github.com/nathanyu/market-spread/internal/market"
	"github.com/nathanyu/market-spread/internal/marketdata"
	"github.com/nathanyu/market-spread/internal/orderbook"
	"github.com/nathanyu/market-spread/internal/statecache"
	"github.com/nathanyu/market-spread/internal/territory"
	"github.com/nathanyu/market-spread/internal/ws"
)

func setupTestRouter() (*gin.Engine, *Handler) {
	gin.SetMode(gin.TestMode)

	rng := rand.New(rand.NewSource(1))
	book := orderbook.NewBook(orderbook.Config{BasePrice: 100}, nil)
	sim := market.NewSimulator(market.Config{}, book, rng, nil)
	terr := territory.NewTerritory(territory.Config{}, rng, nil)
	terr.Initialize([2]float64{0, 0})
	pub := marketdata.NewPublisher(16, nil)
	cache := statecache.New(5 * time.Second)
	hub := ws.NewHub(nil)

	h := NewHandler(sim, terr, pub, cache, hub)
	r := gin.New()
	h.RegisterRoutes(r)
	return r, h
}

func doRequest(r *gin.Engine, method, path, body string) *httptest.ResponseRecorder {
	var req *http.Request
	if body == "" {
		req = httptest.NewRequest(method, path, nil)
	} else {
		req = httptest.NewRequest(method, path, strings.NewReader(body))
		req.Header.Set("Content-Type", "application/json")
	}
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func TestHealth(t *testing.T) {
	r, _ := setupTestRouter()

	w := doRequest(r, http.MethodGet, "/health", "")
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "ok")
}

func TestGetMarketState(t *testing.T) {
	r, _ := setupTestRouter()

	w := doRequest(r, http.MethodGet, "/v1/market/state", "")
	require.Equal(t, http.StatusOK, w.Code)

	var snap domain.MarketSnapshot
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &snap))
	assert.Equal(t, 100.0, snap.Price)
}

func TestPlaceOrder(t *testing.T) {
	r, _ := setupTestRouter()

	w := doRequest(r, http.MethodPost, "/v1/market/order",
		`{"price": 99, "amount": 5, "side": "buy"}`)
	require.Equal(t, http.StatusCreated, w.Code)

	var order domain.Order
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &order))
	assert.NotEmpty(t, order.OrderID)
	assert.Equal(t, domain.SideBuy, order.Side)
}

func TestPlaceOrder_BadRequest(t *testing.T) {
	r, _ := setupTestRouter()

	w := doRequest(r, http.MethodPost, "/v1/market/order",
		`{"price": -1, "amount": 5, "side": "buy"}`)
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = doRequest(r, http.MethodPost, "/v1/market/order",
		`{"price": 99, "amount": 5, "side": "hold"}`)
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = doRequest(r, http.MethodPost, "/v1/market/order", `not json`)
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestCancelOrder(t *testing.T) {
	r, h := setupTestRouter()

	order, err := h.sim.PlaceOrder(99, 5, domain.SideBuy)
	require.NoError(t, err)

	// Cancel identifies the order via query parameters, no body.
	path := "/v1/market/order/" + order.OrderID + "?price=99&side=buy"
	w := doRequest(r, http.MethodDelete, path, "")
	assert.Equal(t, http.StatusOK, w.Code)

	// A second cancel cannot find the order.
	w = doRequest(r, http.MethodDelete, path, "")
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestCancelOrder_BadParams(t *testing.T) {
	r, _ := setupTestRouter()

	w := doRequest(r, http.MethodDelete, "/v1/market/order/x?side=buy", "")
	assert.Equal(t, http.StatusBadRequest, w.Code, "missing price")

	w = doRequest(r, http.MethodDelete, "/v1/market/order/x?price=-1&side=buy", "")
	assert.Equal(t, http.StatusBadRequest, w.Code, "non-positive price")

	w = doRequest(r, http.MethodDelete, "/v1/market/order/x?price=99&side=hold", "")
	assert.Equal(t, http.StatusBadRequest, w.Code, "unknown side")
}

func TestTriggerWhale(t *testing.T) {
	r, _ := setupTestRouter()

	w := doRequest(r, http.MethodPost, "/v1/market/whale", "")
	require.Equal(t, http.StatusCreated, w.Code)

	var order domain.Order
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &order))
	assert.GreaterOrEqual(t, order.Amount, 10.0)
}

func TestBoost(t *testing.T) {
	r, h := setupTestRouter()

	w := doRequest(r, http.MethodPost, "/v1/market/boost",
		`{"multiplier": 3, "duration_ms": 60000}`)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, 3.0, h.sim.Multiplier())

	w = doRequest(r, http.MethodPost, "/v1/market/boost",
		`{"multiplier": 0, "duration_ms": 1000}`)
	assert.Equal(t, http.StatusBadRequest, w.Code)

	h.sim.Close()
}

func TestGetOrderBook(t *testing.T) {
	r, h := setupTestRouter()

	_, err := h.sim.PlaceOrder(99, 5, domain.SideBuy)
	require.NoError(t, err)
	_, err = h.sim.PlaceOrder(101, 3, domain.SideSell)
	require.NoError(t, err)

	w := doRequest(r, http.MethodGet, "/v1/market/orderbook?depth=5", "")
	require.Equal(t, http.StatusOK, w.Code)

	var snap domain.BookSnapshot
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &snap))
	require.Len(t, snap.Bids, 1)
	assert.Equal(t, 99.0, snap.Bids[0].Price)
	require.Len(t, snap.Asks, 1)
	assert.Equal(t, 101.0, snap.Asks[0].Price)
}

func TestGetCandles_EmptyIsArray(t *testing.T) {
	r, _ := setupTestRouter()

	w := doRequest(r, http.MethodGet, "/v1/market/candles", "")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "[]", strings.TrimSpace(w.Body.String()))
}

func TestGetTrades_BadSince(t *testing.T) {
	r, _ := setupTestRouter()

	w := doRequest(r, http.MethodGet, "/v1/market/trades?since=yesterday", "")
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = doRequest(r, http.MethodGet, "/v1/market/trades", "")
	assert.Equal(t, http.StatusOK, w.Code)
}

func TestGetPoints(t *testing.T) {
	r, _ := setupTestRouter()

	w := doRequest(r, http.MethodGet, "/v1/territory/points", "")
	require.Equal(t, http.StatusOK, w.Code)

	var points []domain.Point
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &points))
	assert.Len(t, points, 5, "freshly seeded territory exposes the seed cells")
}

func TestGetTerritoryStats(t *testing.T) {
	r, _ := setupTestRouter()

	w := doRequest(r, http.MethodGet, "/v1/territory/stats", "")
	require.Equal(t, http.StatusOK, w.Code)

	var stats domain.TerritoryStats
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &stats))
	assert.Equal(t, 5, stats.Coverage)
	assert.Equal(t, 5, stats.SourceCount)
}

func TestGetCompositeState(t *testing.T) {
	r, h := setupTestRouter()

	w := doRequest(r, http.MethodGet, "/v1/state", "")
	assert.Equal(t, http.StatusServiceUnavailable, w.Code, "no state cached yet")

	h.cache.Update(domain.CompositeState{
		Market:    domain.MarketSnapshot{Price: 100},
		Territory: domain.TerritoryStats{Coverage: 5},
		Timestamp: time.Now(),
	}, time.Now())

	w = doRequest(r, http.MethodGet, "/v1/state", "")
	require.Equal(t, http.StatusOK, w.Code)

	var state domain.CompositeState
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &state))
	assert.Equal(t, 100.0, state.Market.Price)
}
