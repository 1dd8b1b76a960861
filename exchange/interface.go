package exchange

import (
	"math"
	"time"

	"pivot_curve_bot/utils"
)

// MarketInfo holds the trading rules of a single instrument.
type MarketInfo struct {
	Symbol    string  `json:"symbol" yaml:"symbol"`
	MinSize   float64 `json:"min_size" yaml:"min_size"`     // Smallest tradable asset quantity
	MinVolume float64 `json:"min_volume" yaml:"min_volume"` // Smallest order notional in currency
	AssetStep float64 `json:"asset_step" yaml:"asset_step"` // Lot step
	Leverage  float64 `json:"leverage" yaml:"leverage"`     // 0 for spot accounts
}

// CalcMinSize returns the smallest quantity that can be traded at price.
// Positions below it are dust.
func (m MarketInfo) CalcMinSize(price float64) float64 {
	size := m.MinSize
	if m.MinVolume > 0 && price > 0 {
		size = math.Max(size, m.MinVolume/price)
	}
	return utils.CeilToStep(size, m.AssetStep)
}

// IsLeveraged reports whether the account trades on margin.
func (m MarketInfo) IsLeveraged() bool {
	return m.Leverage > 0
}

// Ticker is a top-of-book snapshot.
type Ticker struct {
	Bid  float64
	Ask  float64
	Last float64
	Time time.Time
}

// Fill describes an executed market order.
type Fill struct {
	Price        float64
	Size         float64 // Signed: positive buys, negative sells
	AssetsLeft   float64
	CurrencyLeft float64
	Time         time.Time
}

// Client is the subset of an exchange the orchestrator drives.
type Client interface {
	// GetTicker advances the feed and returns the latest quote.
	GetTicker() (Ticker, error)

	// GetBalance returns the asset position and the free currency.
	GetBalance() (assets float64, currency float64)

	// PlaceMarketOrder executes size (signed) at the current price.
	PlaceMarketOrder(size float64) (Fill, error)

	// GetMarketInfo returns the trading rules of the instrument.
	GetMarketInfo() MarketInfo
}
