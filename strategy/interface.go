// strategy/interface.go
package strategy

import (
	"errors"
	"fmt"

	"pivot_curve_bot/config"
	"pivot_curve_bot/exchange"
)

var (
	// ErrInitialization is returned when a strategy cannot derive a valid state.
	ErrInitialization = errors.New("unable to initialize strategy")
	// ErrUnknownStrategy is returned by New for an unrecognized variant name.
	ErrUnknownStrategy = errors.New("unknown strategy")
)

// AlertPolicy tells the host how to treat a requested order that cannot be placed.
type AlertPolicy int

const (
	AlertDisabled AlertPolicy = iota
	AlertEnabled              // Place an alert (zero-size re-quote) instead of the order
	AlertForced
)

// OrderData is the order a strategy requests for a given price.
type OrderData struct {
	Price float64 // 0 means the requested price itself
	Size  float64 // Signed: positive buys, negative sells
	Alert AlertPolicy
}

// OnTradeResult summarizes the effect of one fill.
type OnTradeResult struct {
	NormProfit float64
	Fee        float64
	NewPivot   float64
	Extra      float64
}

// MinMax is a closed price interval.
type MinMax struct {
	Min float64
	Max float64
}

// BudgetInfo reports the strategy's view of its own budget.
type BudgetInfo struct {
	Total  float64
	Assets float64
}

// ChartPoint is one point of the strategy's position/budget chart.
type ChartPoint struct {
	Valid    bool
	Position float64
	Budget   float64
}

// Strategy is the contract every strategy variant honors. Implementations are
// immutable: methods that change state return a new Strategy and leave the
// receiver untouched.
type Strategy interface {
	Init(minfo exchange.MarketInfo, price, assets, currency float64) (Strategy, error)
	GetNewOrder(minfo exchange.MarketInfo, curPrice, newPrice, dir, assets, currency float64, rej bool) (OrderData, error)
	OnTrade(minfo exchange.MarketInfo, price, size, assetsLeft, currencyLeft float64) (OnTradeResult, Strategy, error)
	OnIdle(minfo exchange.MarketInfo, ticker exchange.Ticker, assets, currency float64) (Strategy, error)
	Reset() Strategy
	IsValid() bool

	ExportState() map[string]interface{}
	ImportState(src map[string]interface{}, minfo exchange.MarketInfo) (Strategy, error)
	DumpStatePretty(minfo exchange.MarketInfo) map[string]interface{}

	CalcInitialPosition(minfo exchange.MarketInfo, price, assets, currency float64) float64
	GetCenterPrice(lastPrice, assets float64) float64
	GetEquilibrium(assets float64) float64
	CalcSafeRange(minfo exchange.MarketInfo, assets, currency float64) MinMax
	CalcCurrencyAllocation(price float64, leveraged bool) float64
	GetBudgetInfo() BudgetInfo
	CalcChart(price float64) ChartPoint
	GetID() string
}

// New builds the strategy variant selected in the configuration, with an empty state.
func New(cfg *config.Config) (Strategy, error) {
	switch cfg.Strategy {
	case config.StrategyPowerN:
		return NewPowerN(*cfg.PowerN), nil
	}
	return nil, fmt.Errorf("%w: '%s'", ErrUnknownStrategy, cfg.Strategy)
}
