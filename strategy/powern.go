// strategy/powern.go
package strategy

import (
	"encoding/json"
	"fmt"
	"math"

	"pivot_curve_bot/config"
	"pivot_curve_bot/exchange"
	"pivot_curve_bot/logs"
	"pivot_curve_bot/numerics"
)

// State is the persisted state of the PowerN strategy.
type State struct {
	Val float64 // Accumulated value under the current pivot
	K   float64 // Pivot price
	P   float64 // Last observed price
	Pos float64 // Position
}

// IsValid reports whether the state has been initialized.
func (s State) IsValid() bool {
	return s.K > 0 && s.P > 0
}

// ruleResult is one evaluation of the re-centering rule.
type ruleResult struct {
	K   float64
	Val float64
	Pos float64
}

// PowerN keeps a pivot-centered position curve and moves the pivot
// only on losses, alerts, or when the budget runs dry.
type PowerN struct {
	cfg   config.PowerNConfig
	state State
}

// NewPowerN creates an engine with an empty (invalid) state.
func NewPowerN(cfg config.PowerNConfig) PowerN {
	return PowerN{cfg: cfg}
}

// NewPowerNWithState creates an engine carrying st.
func NewPowerNWithState(cfg config.PowerNConfig, st State) PowerN {
	return PowerN{cfg: cfg, state: st}
}

// State returns a copy of the engine state.
func (s PowerN) State() State { return s.state }

// Config returns the engine parameters.
func (s PowerN) Config() config.PowerNConfig { return s.cfg }

func (s PowerN) GetID() string { return config.StrategyPowerN }

func (s PowerN) IsValid() bool { return s.state.IsValid() }

// findKRule evaluates the re-centering rule at newPrice.
func (s PowerN) findKRule(newPrice float64, alert bool) ruleResult {
	st := s.state
	aprxPnl := st.Pos * (newPrice - st.P)
	newVal := st.Val + aprxPnl
	newK := st.K
	yield := Value(s.cfg, st.K, newPrice) - Value(s.cfg, st.K, st.P)

	if (st.P-st.K)*(newPrice-st.K) < 0 {
		// Price crossed the pivot, the old curve no longer applies.
		newK = newPrice
	} else {
		if aprxPnl < 0 || alert {
			newK = findK(s.cfg, newPrice, newVal, pivotSide(s.cfg, st.Pos))
		} else if newVal < 0 || st.Pos == 0 {
			mult, hint := s.cfg.InitialYieldMult, st.P-newPrice
			if st.Pos != 0 {
				mult, hint = s.cfg.YieldMult, pivotSide(s.cfg, st.Pos)
			}
			newVal += yield * mult
			newK = findK(s.cfg, newPrice, newVal, hint)
		}
		// Never move the pivot against the inventory being held.
		if st.Pos != 0 && (newK-st.K)*(newPrice-st.K) < 0 {
			newK = st.K
		}
	}

	return ruleResult{
		K:   newK,
		Val: Value(s.cfg, newK, newPrice),
		Pos: Position(s.cfg, newK, newPrice),
	}
}

// Init derives a pivot consistent with holding assets at price.
func (s PowerN) Init(minfo exchange.MarketInfo, price, assets, currency float64) (Strategy, error) {
	st := State{
		K:   findKFromPos(s.cfg, price, assets),
		P:   price,
		Pos: assets,
	}
	st.Val = Value(s.cfg, st.K, price)
	if !st.IsValid() || math.IsNaN(st.Val) {
		return nil, fmt.Errorf("%w: price=%v assets=%v", ErrInitialization, price, assets)
	}
	if st.K == price && math.Abs(assets) >= valueEpsilon {
		logs.Warnf("[Engine] No pivot holds %.8f assets at price %.8f, falling back to the price as pivot", assets, price)
	}
	logs.Debugf("[Engine] Initialized at price %.8f, assets %.8f: pivot %.8f, value %.8f", price, assets, st.K, st.Val)
	return PowerN{cfg: s.cfg, state: st}, nil
}

// bootstrap returns a valid engine, initializing lazily when needed.
func (s PowerN) bootstrap(minfo exchange.MarketInfo, price, assets, currency float64) (PowerN, error) {
	if s.IsValid() {
		return s, nil
	}
	out, err := s.Init(minfo, price, assets, currency)
	if err != nil {
		return s, err
	}
	return out.(PowerN), nil
}

func (s PowerN) GetNewOrder(minfo exchange.MarketInfo, curPrice, newPrice, dir, assets, currency float64, rej bool) (OrderData, error) {
	e, err := s.bootstrap(minfo, curPrice, assets, currency)
	if err != nil {
		return OrderData{}, err
	}
	r := e.findKRule(newPrice, false)
	diff := r.Pos*dir - e.state.Pos*dir
	return OrderData{Price: 0, Size: diff * dir, Alert: AlertEnabled}, nil
}

func (s PowerN) OnTrade(minfo exchange.MarketInfo, price, size, assetsLeft, currencyLeft float64) (OnTradeResult, Strategy, error) {
	e, err := s.bootstrap(minfo, price, assetsLeft-size, currencyLeft)
	if err != nil {
		return OnTradeResult{}, s, err
	}

	if math.Abs(assetsLeft) < minfo.CalcMinSize(price) {
		assetsLeft = 0
	}

	r := e.findKRule(price, size == 0)
	newPrice := price
	if size != 0 {
		// Two-pass refine: place the new position on the candidate curve, then re-evaluate there.
		newPrice = PriceFromPosition(e.cfg, r.K, assetsLeft)
		r = e.findKRule(newPrice, false)
	}

	old := e.state
	next := State{Val: r.Val, K: r.K, P: newPrice, Pos: assetsLeft}
	pnl := old.Val - r.Val + (price-old.P)*(assetsLeft-size)

	logs.Debugf("[Engine] Trade %.8f @ %.8f: pivot %.8f -> %.8f, value %.8f -> %.8f, pnl %.8f",
		size, price, old.K, next.K, old.Val, next.Val, pnl)

	return OnTradeResult{NormProfit: pnl, Fee: 0, NewPivot: r.K, Extra: 0},
		PowerN{cfg: e.cfg, state: next}, nil
}

func (s PowerN) OnIdle(minfo exchange.MarketInfo, ticker exchange.Ticker, assets, currency float64) (Strategy, error) {
	if s.IsValid() {
		return s, nil
	}
	return s.Init(minfo, ticker.Last, assets, currency)
}

func (s PowerN) Reset() Strategy {
	return PowerN{cfg: s.cfg}
}

func (s PowerN) CalcInitialPosition(minfo exchange.MarketInfo, price, assets, currency float64) float64 {
	return 0
}

func (s PowerN) GetCenterPrice(lastPrice, assets float64) float64 {
	return s.GetEquilibrium(assets)
}

func (s PowerN) GetEquilibrium(assets float64) float64 {
	return PriceFromPosition(s.cfg, s.state.K, assets)
}

// CalcSafeRange returns the price interval in which the budget stays non-negative.
func (s PowerN) CalcSafeRange(minfo exchange.MarketInfo, assets, currency float64) MinMax {
	k := s.state.K
	var f func(x float64) float64
	if minfo.IsLeveraged() {
		budget := currency - s.state.Val
		f = func(x float64) float64 {
			return Value(s.cfg, k, x) + budget
		}
	} else {
		budget := currency + assets*s.state.P - s.state.Val
		f = func(x float64) float64 {
			return Value(s.cfg, k, x) + Position(s.cfg, k, x)*x + budget
		}
	}

	// Without a root the budget either never depletes or is already depleted at the pivot.
	minFallback, maxFallback := 0.0, math.Inf(1)
	if f(k) < 0 {
		minFallback, maxFallback = k, k
	}
	out := MinMax{Min: numerics.FindRootToZero(k, f).Or(minFallback), Max: k}
	if minfo.IsLeveraged() {
		out.Max = numerics.FindRootToInf(k, f).Or(maxFallback)
	}
	return out
}

func (s PowerN) CalcCurrencyAllocation(price float64, leveraged bool) float64 {
	if leveraged {
		return Value(s.cfg, s.state.K, price) + s.cfg.InitialBudget
	}
	return s.state.Val + s.cfg.InitialBudget - s.state.P*s.state.Pos
}

func (s PowerN) GetBudgetInfo() BudgetInfo {
	return BudgetInfo{
		Total:  s.cfg.InitialBudget + s.state.Val,
		Assets: s.state.Pos,
	}
}

func (s PowerN) CalcChart(price float64) ChartPoint {
	return ChartPoint{
		Valid:    true,
		Position: Position(s.cfg, s.state.K, price),
		Budget:   Value(s.cfg, s.state.K, price) + s.cfg.InitialBudget,
	}
}

// --- State persistence ---

func (s PowerN) ExportState() map[string]interface{} {
	return map[string]interface{}{
		"val": s.state.Val,
		"k":   s.state.K,
		"p":   s.state.P,
		"pos": s.state.Pos,
	}
}

// ImportState rebuilds the engine from an exported document.
// Missing fields read as zero, which leaves the engine to bootstrap lazily.
func (s PowerN) ImportState(src map[string]interface{}, minfo exchange.MarketInfo) (Strategy, error) {
	var st State
	fields := []struct {
		key string
		dst *float64
	}{
		{"val", &st.Val}, {"k", &st.K}, {"p", &st.P}, {"pos", &st.Pos},
	}
	for _, f := range fields {
		raw, ok := src[f.key]
		if !ok || raw == nil {
			continue
		}
		v, err := toFloat(raw)
		if err != nil {
			return nil, fmt.Errorf("invalid state field '%s': %w", f.key, err)
		}
		*f.dst = v
	}
	return PowerN{cfg: s.cfg, state: st}, nil
}

func (s PowerN) DumpStatePretty(minfo exchange.MarketInfo) map[string]interface{} {
	return map[string]interface{}{
		"Pivot":      s.state.K,
		"Last price": s.state.P,
		"Position":   s.state.Pos,
		"Value":      s.state.Val,
		"Budget":     s.cfg.InitialBudget + s.state.Val,
		"Valid":      s.IsValid(),
	}
}

// toFloat accepts the numeric shapes produced by the JSON and MessagePack decoders.
func toFloat(v interface{}) (float64, error) {
	switch n := v.(type) {
	case float64:
		return n, nil
	case float32:
		return float64(n), nil
	case int:
		return float64(n), nil
	case int8:
		return float64(n), nil
	case int16:
		return float64(n), nil
	case int32:
		return float64(n), nil
	case int64:
		return float64(n), nil
	case uint:
		return float64(n), nil
	case uint8:
		return float64(n), nil
	case uint16:
		return float64(n), nil
	case uint32:
		return float64(n), nil
	case uint64:
		return float64(n), nil
	case json.Number:
		return n.Float64()
	}
	return 0, fmt.Errorf("not a number: %T", v)
}
