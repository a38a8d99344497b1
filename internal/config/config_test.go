package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad_Defaults(t *testing.T) {
	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "8080", cfg.Port)
	assert.Equal(t, "9090", cfg.MetricsPort)
	assert.Equal(t, 100.0, cfg.BasePrice)
	assert.Equal(t, 20, cfg.MaxLevels)
	assert.Equal(t, 0.005, cfg.GridSize)
	assert.Equal(t, 250*time.Millisecond, cfg.MarketTick)
	assert.Equal(t, 100*time.Millisecond, cfg.TerritoryTick)
}

func TestLoad_EnvOverrides(t *testing.T) {
	t.Setenv("SPREAD_PORT", "9999")
	t.Setenv("SPREAD_BASE_PRICE", "42.5")
	t.Setenv("SPREAD_MIN_COVERAGE", "7")
	t.Setenv("SPREAD_MARKET_TICK", "1s")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "9999", cfg.Port)
	assert.Equal(t, 42.5, cfg.BasePrice)
	assert.Equal(t, 7, cfg.MinCoverage)
	assert.Equal(t, time.Second, cfg.MarketTick)
}

func TestLoad_MalformedValuesFallBack(t *testing.T) {
	t.Setenv("SPREAD_MAX_LEVELS", "many")
	t.Setenv("SPREAD_GRID_SIZE", "small")
	t.Setenv("SPREAD_TERRITORY_TICK", "fast")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, 20, cfg.MaxLevels)
	assert.Equal(t, 0.005, cfg.GridSize)
	assert.Equal(t, 100*time.Millisecond, cfg.TerritoryTick)
}

func TestLoad_RejectsNonPositive(t *testing.T) {
	t.Setenv("SPREAD_BASE_PRICE", "-1")

	_, err := Load()
	assert.ErrorContains(t, err, "base price")
}

func TestValidate(t *testing.T) {
	valid := Config{
		BasePrice:     100,
		MaxLevels:     20,
		GridSize:      0.005,
		MinCoverage:   20,
		CoverageScale: 30,
		MarketTick:    time.Second,
		TerritoryTick: time.Second,
	}
	require.NoError(t, valid.Validate())

	broken := valid
	broken.CoverageScale = 0
	assert.Error(t, broken.Validate())

	broken = valid
	broken.MarketTick = 0
	assert.Error(t, broken.Validate())
}
