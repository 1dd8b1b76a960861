package exchange

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCalcMinSize(t *testing.T) {
	m := MarketInfo{MinSize: 0.001, MinVolume: 10, AssetStep: 0.001}
	assert.InDelta(t, 0.1, m.CalcMinSize(100), 1e-12)
	assert.InDelta(t, 0.001, m.CalcMinSize(1e6), 1e-12)

	assert.Equal(t, 0.0, MarketInfo{}.CalcMinSize(100))
}

func TestPaperExchangeIsDeterministic(t *testing.T) {
	a := NewPaperExchange(MarketInfo{}, 100, 0, 1000, 0.01, 42)
	b := NewPaperExchange(MarketInfo{}, 100, 0, 1000, 0.01, 42)
	for i := 0; i < 20; i++ {
		ta, err := a.GetTicker()
		require.NoError(t, err)
		tb, err := b.GetTicker()
		require.NoError(t, err)
		assert.Equal(t, ta.Last, tb.Last)
		assert.Greater(t, ta.Last, 0.0)
		assert.Less(t, ta.Bid, ta.Ask)
	}
}

func TestPaperExchangeFills(t *testing.T) {
	ex := NewPaperExchange(MarketInfo{Symbol: "BTCUSDT", MinSize: 0.01}, 100, 0, 1000, 0, 1)

	fill, err := ex.PlaceMarketOrder(2)
	require.NoError(t, err)
	assert.Equal(t, 100.0, fill.Price)
	assert.Equal(t, 2.0, fill.AssetsLeft)
	assert.Equal(t, 800.0, fill.CurrencyLeft)

	_, err = ex.PlaceMarketOrder(0.001)
	assert.ErrorIs(t, err, ErrOrderTooSmall)

	_, err = ex.PlaceMarketOrder(-3)
	assert.ErrorIs(t, err, ErrInsufficientFunds)

	_, err = ex.PlaceMarketOrder(9)
	assert.ErrorIs(t, err, ErrInsufficientFunds)

	assets, currency := ex.GetBalance()
	assert.Equal(t, 2.0, assets)
	assert.Equal(t, 800.0, currency)
}

func TestPaperExchangeLeveragedCanShort(t *testing.T) {
	ex := NewPaperExchange(MarketInfo{Leverage: 5}, 50, 0, 100, 0, 1)
	fill, err := ex.PlaceMarketOrder(-4)
	require.NoError(t, err)
	assert.Equal(t, -4.0, fill.AssetsLeft)
	assert.Equal(t, 300.0, fill.CurrencyLeft)
}
