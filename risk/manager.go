// risk/manager.go
package risk

import (
	"sync"

	"pivot_curve_bot/exchange"
	"pivot_curve_bot/logs"
	"pivot_curve_bot/strategy"
)

// Exposure is what the risk manager sees of the account on each check.
type Exposure struct {
	Strategy strategy.Strategy
	Market   exchange.MarketInfo
	Assets   float64
	Currency float64
}

// RiskManager defines the interface for any risk management module,
// so the orchestrator stays independent of the concrete policy.
type RiskManager interface {
	// CheckAndManageRisk is called on every step and returns the actions to execute.
	CheckAndManageRisk(currentPrice float64, exp Exposure) []Action

	// IsHalted reports whether trading is currently suspended.
	IsHalted() bool

	// LastRange returns the safe range computed by the latest check.
	LastRange() strategy.MinMax
}

// SafeRangeGuard halts trading while the price is outside the range in
// which the strategy's budget stays non-negative. Spot accounts cannot be
// depleted above the pivot, so only the lower bound applies to them.
type SafeRangeGuard struct {
	mu        sync.Mutex
	symbol    string
	halted    bool
	lastRange strategy.MinMax
}

// NewSafeRangeGuard creates a guard for one instrument.
func NewSafeRangeGuard(symbol string) *SafeRangeGuard {
	return &SafeRangeGuard{symbol: symbol}
}

func (g *SafeRangeGuard) CheckAndManageRisk(currentPrice float64, exp Exposure) []Action {
	g.mu.Lock()
	defer g.mu.Unlock()

	if exp.Strategy == nil || !exp.Strategy.IsValid() {
		return []Action{&NoOpAction{}}
	}

	r := exp.Strategy.CalcSafeRange(exp.Market, exp.Assets, exp.Currency)
	g.lastRange = r

	outside := currentPrice < r.Min
	if exp.Market.IsLeveraged() && currentPrice > r.Max {
		outside = true
	}

	switch {
	case outside && !g.halted:
		g.halted = true
		act := &HaltTradingAction{Symbol: g.symbol, Price: currentPrice, Range: r}
		logs.Warnf("[Risk] %s", act.Description())
		return []Action{act}
	case !outside && g.halted:
		g.halted = false
		act := &ResumeTradingAction{Symbol: g.symbol, Price: currentPrice}
		logs.Infof("[Risk] %s", act.Description())
		return []Action{act}
	}
	return []Action{&NoOpAction{}}
}

func (g *SafeRangeGuard) IsHalted() bool {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.halted
}

func (g *SafeRangeGuard) LastRange() strategy.MinMax {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.lastRange
}
