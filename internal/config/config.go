// Package config defines the runtime configuration, populated from
// environment variables with documented defaults.
package config

import (
	"fmt"
	"os"
	"strconv"
	"time"
)

// Config is the root configuration structure.
type Config struct {
	Port        string
	MetricsPort string

	BasePrice     float64
	MaxLevels     int
	BaseMarketCap float64

	GridSize      float64
	MinCoverage   int
	CoverageScale float64

	SeedCenterX float64
	SeedCenterY float64

	MarketTick    time.Duration
	TerritoryTick time.Duration
}

// Load reads configuration from SPREAD_* environment variables,
// falling back to defaults.
func Load() (*Config, error) {
	cfg := &Config{
		Port:          envString("SPREAD_PORT", "8080"),
		MetricsPort:   envString("SPREAD_METRICS_PORT", "9090"),
		BasePrice:     envFloat("SPREAD_BASE_PRICE", 100.0),
		MaxLevels:     envInt("SPREAD_MAX_LEVELS", 20),
		BaseMarketCap: envFloat("SPREAD_BASE_MARKET_CAP", 0),
		GridSize:      envFloat("SPREAD_GRID_SIZE", 0.005),
		MinCoverage:   envInt("SPREAD_MIN_COVERAGE", 20),
		CoverageScale: envFloat("SPREAD_COVERAGE_SCALE", 30.0),
		SeedCenterX:   envFloat("SPREAD_SEED_X", 0),
		SeedCenterY:   envFloat("SPREAD_SEED_Y", 0),
		MarketTick:    envDuration("SPREAD_MARKET_TICK", 250*time.Millisecond),
		TerritoryTick: envDuration("SPREAD_TERRITORY_TICK", 100*time.Millisecond),
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate rejects configurations with non-positive numeric parameters.
func (c *Config) Validate() error {
	if c.BasePrice <= 0 {
		return fmt.Errorf("base price must be positive, got %v", c.BasePrice)
	}
	if c.MaxLevels <= 0 {
		return fmt.Errorf("max levels must be positive, got %d", c.MaxLevels)
	}
	if c.GridSize <= 0 {
		return fmt.Errorf("grid size must be positive, got %v", c.GridSize)
	}
	if c.MinCoverage <= 0 {
		return fmt.Errorf("min coverage must be positive, got %d", c.MinCoverage)
	}
	if c.CoverageScale <= 0 {
		return fmt.Errorf("coverage scale must be positive, got %v", c.CoverageScale)
	}
	if c.MarketTick <= 0 || c.TerritoryTick <= 0 {
		return fmt.Errorf("tick intervals must be positive")
	}
	return nil
}

func envString(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func envInt(key string, fallback int) int {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
	}
	return fallback
}

func envFloat(key string, fallback float64) float64 {
	if v := os.Getenv(key); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			return f
		}
	}
	return fallback
}

func envDuration(key string, fallback time.Duration) time.Duration {
	if v := os.Getenv(key); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			return d
		}
	}
	return fallback
}
