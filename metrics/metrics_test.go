package metrics

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// sample sums the values of every series of a family.
func sample(t *testing.T, m *Metrics, name string) float64 {
	t.Helper()
	families, err := m.Registry().Gather()
	require.NoError(t, err)
	for _, f := range families {
		if f.GetName() != name {
			continue
		}
		var sum float64
		for _, s := range f.GetMetric() {
			if g := s.GetGauge(); g != nil {
				sum += g.GetValue()
			}
			if c := s.GetCounter(); c != nil {
				sum += c.GetValue()
			}
		}
		return sum
	}
	t.Fatalf("metric %s not registered", name)
	return 0
}

func TestObserveEngine(t *testing.T) {
	m := New("BTCUSDT")
	m.ObserveEngine(101, 100, -0.25, 480)

	assert.Equal(t, 101.0, sample(t, m, "pivot_bot_price"))
	assert.Equal(t, 100.0, sample(t, m, "pivot_bot_pivot"))
	assert.Equal(t, -0.25, sample(t, m, "pivot_bot_position"))
	assert.Equal(t, 480.0, sample(t, m, "pivot_bot_budget"))
}

func TestObserveSafeRange(t *testing.T) {
	m := New("BTCUSDT")
	m.ObserveSafeRange(90, math.Inf(1), true)
	assert.Equal(t, 90.0, sample(t, m, "pivot_bot_safe_range_min"))
	assert.True(t, math.IsInf(sample(t, m, "pivot_bot_safe_range_max"), 1))
	assert.Equal(t, 1.0, sample(t, m, "pivot_bot_trading_halted"))

	m.ObserveSafeRange(90, 110, false)
	assert.Zero(t, sample(t, m, "pivot_bot_trading_halted"))
}

func TestCounters(t *testing.T) {
	m := New("ETHUSDT")
	m.RecordTrade("BUY")
	m.RecordTrade("SELL")
	m.ObserveProfit(1.5)
	m.ObserveProfit(2)
	m.RecordIdle()
	m.RecordAlert()
	m.RecordStorageFailure()
	m.RecordStorageFailure()

	assert.Equal(t, 2.0, sample(t, m, "pivot_bot_trades_total"))
	assert.Equal(t, 2.0, sample(t, m, "pivot_bot_norm_profit"))
	assert.Equal(t, 1.0, sample(t, m, "pivot_bot_idle_ticks_total"))
	assert.Equal(t, 1.0, sample(t, m, "pivot_bot_alerts_total"))
	assert.Equal(t, 2.0, sample(t, m, "pivot_bot_storage_failures_total"))
}

func TestServeDisabled(t *testing.T) {
	assert.Nil(t, New("BTCUSDT").Serve(""))
}
