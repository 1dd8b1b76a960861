package exchange

import (
	"errors"
	"fmt"
	"math"
	"math/rand"
	"sync"
	"time"

	"pivot_curve_bot/logs"
)

//
// Paper exchange for running the strategy without a real API
//

var (
	ErrOrderTooSmall     = errors.New("order size below exchange minimum")
	ErrInsufficientFunds = errors.New("insufficient balance")
)

// Ensure PaperExchange implements Client interface
var _ Client = (*PaperExchange)(nil)

// PaperExchange simulates a single instrument: a seeded geometric random walk
// for the price and an account that fills market orders at the last price.
type PaperExchange struct {
	mu         sync.Mutex
	market     MarketInfo
	price      float64
	volatility float64 // Per-tick standard deviation of log returns
	assets     float64
	currency   float64
	rng        *rand.Rand
	now        func() time.Time
}

// NewPaperExchange creates a paper exchange with an initial price and balance.
func NewPaperExchange(market MarketInfo, initialPrice, assets, currency, volatility float64, seed int64) *PaperExchange {
	return &PaperExchange{
		market:     market,
		price:      initialPrice,
		volatility: volatility,
		assets:     assets,
		currency:   currency,
		rng:        rand.New(rand.NewSource(seed)),
		now:        time.Now,
	}
}

// SetPrice forces the next quote (the walk continues from it).
func (c *PaperExchange) SetPrice(price float64) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.price = price
}

// GetTicker advances the random walk by one step and returns the new quote.
func (c *PaperExchange) GetTicker() (Ticker, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.volatility > 0 {
		c.price *= math.Exp(c.volatility * c.rng.NormFloat64())
	}
	if !(c.price > 0) {
		return Ticker{}, fmt.Errorf("paper price degenerated to %v", c.price)
	}
	half := c.price * 0.0005
	return Ticker{
		Bid:  c.price - half,
		Ask:  c.price + half,
		Last: c.price,
		Time: c.now(),
	}, nil
}

func (c *PaperExchange) GetBalance() (float64, float64) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.assets, c.currency
}

func (c *PaperExchange) GetMarketInfo() MarketInfo {
	return c.market
}

// PlaceMarketOrder fills size at the current price. Spot accounts cannot go
// short or spend more currency than they hold.
func (c *PaperExchange) PlaceMarketOrder(size float64) (Fill, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if size == 0 || math.Abs(size) < c.market.CalcMinSize(c.price) {
		return Fill{}, fmt.Errorf("%w: %.8f", ErrOrderTooSmall, size)
	}

	newAssets := c.assets + size
	newCurrency := c.currency - size*c.price
	if !c.market.IsLeveraged() && (newAssets < 0 || newCurrency < 0) {
		return Fill{}, fmt.Errorf("%w: size %.8f at %.4f (assets %.8f, currency %.4f)",
			ErrInsufficientFunds, size, c.price, c.assets, c.currency)
	}

	c.assets, c.currency = newAssets, newCurrency
	logs.Debugf("[Paper] Market order filled: %.8f %s at %.4f", size, c.market.Symbol, c.price)

	return Fill{
		Price:        c.price,
		Size:         size,
		AssetsLeft:   c.assets,
		CurrencyLeft: c.currency,
		Time:         c.now(),
	}, nil
}
