package main

import (
	"context"
	"math/rand"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/nathanyu/market-spread/internal/config"
	"github.com/nathanyu/market-spread/internal/driver"
	"github.com/nathanyu/market-spread/internal/handler"
	"github.com/nathanyu/market-spread/internal/market"
	"github.com/nathanyu/market-spread/internal/marketdata"
	"github.com/nathanyu/market-spread/internal/middleware"
	"github.com/nathanyu/market-spread/internal/orderbook"
	"github.com/nathanyu/market-spread/internal/statecache"
	"github.com/nathanyu/market-spread/internal/territory"
	"github.com/nathanyu/market-spread/internal/ws"
)

const channelBufferSize = 4096

func main() {
	// .env is optional; environment variables win either way.
	_ = godotenv.Load()

	logger, err := zap.NewProduction()
	if err != nil {
		panic(err)
	}
	defer logger.Sync()

	cfg, err := config.Load()
	if err != nil {
		logger.Fatal("invalid configuration", zap.Error(err))
	}

	logger.Info("starting market-spread service")

	// --- Core components ---

	rng := rand.New(rand.NewSource(time.Now().UnixNano()))

	book := orderbook.NewBook(orderbook.Config{
		BasePrice:     cfg.BasePrice,
		MaxLevels:     cfg.MaxLevels,
		BaseMarketCap: cfg.BaseMarketCap,
	}, logger.Named("orderbook"))

	sim := market.NewSimulator(market.Config{}, book, rng, logger.Named("market"))

	terr := territory.NewTerritory(territory.Config{
		GridSize:      cfg.GridSize,
		MinCoverage:   cfg.MinCoverage,
		CoverageScale: cfg.CoverageScale,
	}, rng, logger.Named("territory"))
	terr.Initialize([2]float64{cfg.SeedCenterX, cfg.SeedCenterY})

	pub := marketdata.NewPublisher(channelBufferSize, logger.Named("marketdata"))
	cache := statecache.New(5 * time.Second)
	hub := ws.NewHub(logger.Named("ws"))

	runner := driver.NewRunner(driver.Config{
		MarketTick:    cfg.MarketTick,
		TerritoryTick: cfg.TerritoryTick,
	}, sim, terr, pub, cache, hub, logger.Named("driver"))

	pub.Start()
	runner.Start()

	// --- HTTP Server ---

	gin.SetMode(gin.ReleaseMode)
	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(middleware.PrometheusMiddleware())

	h := handler.NewHandler(sim, terr, pub, cache, hub)
	h.RegisterRoutes(r)

	srv := &http.Server{
		Addr:    ":" + cfg.Port,
		Handler: r,
	}

	// --- Metrics Server ---

	metricsMux := http.NewServeMux()
	metricsMux.Handle("/metrics", promhttp.Handler())
	metricsSrv := &http.Server{
		Addr:    ":" + cfg.MetricsPort,
		Handler: metricsMux,
	}

	go func() {
		logger.Info("metrics server listening", zap.String("port", cfg.MetricsPort))
		if err := metricsSrv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Fatal("metrics server error", zap.Error(err))
		}
	}()

	go func() {
		logger.Info("http server listening", zap.String("port", cfg.Port))
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Fatal("http server error", zap.Error(err))
		}
	}()

	// --- Graceful shutdown ---

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info("shutting down")

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	runner.Stop()
	pub.Stop()
	hub.Close()

	if err := srv.Shutdown(ctx); err != nil {
		logger.Error("http server shutdown error", zap.Error(err))
	}
	if err := metricsSrv.Shutdown(ctx); err != nil {
		logger.Error("metrics server shutdown error", zap.Error(err))
	}

	logger.Info("market-spread service stopped")
}
