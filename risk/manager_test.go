package risk

import (
	"testing"

	"pivot_curve_bot/config"
	"pivot_curve_bot/exchange"
	"pivot_curve_bot/strategy"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var cfg = config.PowerNConfig{W: 2, P: 1, C: 1000, YieldMult: 1, InitialYieldMult: 1}

func flatAt(price float64) strategy.Strategy {
	return strategy.NewPowerNWithState(cfg, strategy.State{K: price, P: price})
}

func TestGuardHaltsAndResumesLeveraged(t *testing.T) {
	g := NewSafeRangeGuard("BTCUSDT")
	exp := Exposure{Strategy: flatAt(100), Market: exchange.MarketInfo{Leverage: 3}, Currency: 1}

	acts := g.CheckAndManageRisk(100, exp)
	require.Len(t, acts, 1)
	assert.IsType(t, &NoOpAction{}, acts[0])
	r := g.LastRange()
	assert.Less(t, r.Min, 100.0)
	assert.Greater(t, r.Max, 100.0)

	acts = g.CheckAndManageRisk(110, exp)
	require.IsType(t, &HaltTradingAction{}, acts[0])
	assert.Equal(t, 110.0, acts[0].(*HaltTradingAction).Price)
	assert.Contains(t, acts[0].Description(), "BTCUSDT")
	assert.True(t, g.IsHalted())

	// Still outside, no repeated halt.
	acts = g.CheckAndManageRisk(80, exp)
	assert.IsType(t, &NoOpAction{}, acts[0])
	assert.True(t, g.IsHalted())

	acts = g.CheckAndManageRisk(101, exp)
	assert.IsType(t, &ResumeTradingAction{}, acts[0])
	assert.False(t, g.IsHalted())
}

func TestGuardIgnoresUpperBoundOnSpot(t *testing.T) {
	g := NewSafeRangeGuard("BTCUSDT")
	exp := Exposure{Strategy: flatAt(100), Market: exchange.MarketInfo{}, Currency: 1000}

	acts := g.CheckAndManageRisk(150, exp)
	assert.IsType(t, &NoOpAction{}, acts[0])
	assert.False(t, g.IsHalted())
	assert.Equal(t, 100.0, g.LastRange().Max)
}

func TestGuardSkipsUninitializedStrategy(t *testing.T) {
	g := NewSafeRangeGuard("BTCUSDT")
	exp := Exposure{Strategy: strategy.NewPowerN(cfg), Market: exchange.MarketInfo{Leverage: 1}}

	acts := g.CheckAndManageRisk(1, exp)
	assert.IsType(t, &NoOpAction{}, acts[0])
	assert.False(t, g.IsHalted())

	acts = g.CheckAndManageRisk(1, Exposure{})
	assert.IsType(t, &NoOpAction{}, acts[0])
}
