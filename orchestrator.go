// orchestrator.go
package main

import (
	"context"
	"errors"
	"fmt"
	"math"
	"net/http"
	"sync"
	"time"

	"pivot_curve_bot/config"
	"pivot_curve_bot/exchange"
	"pivot_curve_bot/investment"
	"pivot_curve_bot/logs"
	"pivot_curve_bot/metrics"
	"pivot_curve_bot/monitor"
	"pivot_curve_bot/profit"
	"pivot_curve_bot/risk"
	"pivot_curve_bot/state"
	"pivot_curve_bot/strategy"
	"pivot_curve_bot/utils"

	"github.com/sirupsen/logrus"
)

// Orchestrator owns the strategy of one instrument and serializes every
// transition on it: observe, size, execute, account and persist.
type Orchestrator struct {
	cfg               *config.Config
	client            exchange.Client
	market            exchange.MarketInfo
	strategy          strategy.Strategy
	riskManager       risk.RiskManager
	investmentManager *investment.Manager
	profitAccountant  *profit.Accountant
	stateStorage      state.Storage
	profitStorage     state.Storage
	metrics           *metrics.Metrics
	metricsServer     *http.Server
	lastPrice         float64

	mu     sync.Mutex
	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// NewOrchestrator wires the bot against the paper exchange described in cfg.
func NewOrchestrator(cfg *config.Config) (*Orchestrator, error) {
	market := exchange.MarketInfo{
		Symbol:    cfg.Symbol,
		MinSize:   cfg.Market.MinSize,
		MinVolume: cfg.Market.MinVolume,
		AssetStep: cfg.Market.AssetStep,
		Leverage:  cfg.Market.Leverage,
	}
	sim := cfg.Simulation
	client := exchange.NewPaperExchange(market, sim.InitialPrice, sim.InitialAssets, sim.InitialCurrency, sim.Volatility, sim.Seed)
	logs.Warnf("<<<<<<<<<< WARNING: Running in simulation mode >>>>>>>>>>")

	format, err := state.ParseFormat(cfg.Storage.Format)
	if err != nil {
		return nil, err
	}
	factory := state.NewFactory(cfg.Normal.StateDirectory, cfg.Storage.Versions, format)
	return newOrchestrator(cfg, client, factory)
}

func newOrchestrator(cfg *config.Config, client exchange.Client, factory *state.Factory) (*Orchestrator, error) {
	strat, err := strategy.New(cfg)
	if err != nil {
		return nil, fmt.Errorf("failed to create strategy: %w", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	o := &Orchestrator{
		cfg:               cfg,
		client:            client,
		market:            client.GetMarketInfo(),
		strategy:          strat,
		riskManager:       risk.NewSafeRangeGuard(cfg.Symbol),
		investmentManager: investment.NewManager(client, cfg.Symbol, cfg.TotalInvestment),
		profitAccountant:  profit.NewAccountant(),
		stateStorage:      factory.Create(cfg.Symbol),
		profitStorage:     factory.Create(cfg.Symbol + "_profit"),
		metrics:           metrics.New(cfg.Symbol),
		ctx:               ctx,
		cancel:            cancel,
	}

	if err := o.reconcileStateOnStartup(); err != nil {
		cancel()
		return nil, fmt.Errorf("state reconciliation failed: %w", err)
	}
	return o, nil
}

// reconcileStateOnStartup restores the last snapshot and drops it when it
// no longer matches the account.
func (o *Orchestrator) reconcileStateOnStartup() error {
	logs.Info("[Orchestrator] Starting state reconciliation on startup...")

	doc, err := o.stateStorage.Load()
	if errors.Is(err, state.ErrNoSnapshot) {
		logs.Warnf("[Orchestrator] No saved strategy state. This is a fresh start.")
		return nil
	}
	if err != nil {
		return err
	}

	restored, err := o.strategy.ImportState(doc, o.market)
	if err != nil {
		logs.Errorf("[Orchestrator] Saved strategy state is unusable (%v), starting fresh.", err)
		return nil
	}

	assets, _ := o.client.GetBalance()
	saved := restored.GetBudgetInfo().Assets
	if restored.IsValid() && math.Abs(saved-assets) >= math.Max(o.market.MinSize, utils.Epsilon) {
		logs.Warnf("[Orchestrator] Saved position %.8f does not match account position %.8f. Ignoring saved state.", saved, assets)
		return nil
	}
	o.strategy = restored
	if p, ok := restored.ExportState()["p"].(float64); ok {
		o.lastPrice = p
	}

	if pdoc, err := o.profitStorage.Load(); err == nil {
		o.profitAccountant.Restore(pdoc)
	}
	logs.WithFields(logrus.Fields{
		"valid":       restored.IsValid(),
		"norm_profit": o.profitAccountant.GetNormProfit(),
	}).Info("[Orchestrator] State file restored.")
	return nil
}

// Step processes one market observation.
func (o *Orchestrator) Step() error {
	o.mu.Lock()
	defer o.mu.Unlock()

	ticker, err := o.client.GetTicker()
	if err != nil {
		return fmt.Errorf("failed to get ticker: %w", err)
	}
	price := ticker.Last
	assets, currency := o.client.GetBalance()

	if !o.strategy.IsValid() {
		next, err := o.strategy.OnIdle(o.market, ticker, assets, currency)
		if err != nil {
			return fmt.Errorf("failed to initialize strategy: %w", err)
		}
		o.strategy = next
		logs.Infof("[Orchestrator] Strategy %s initialized at price %.8f with %.8f assets.", o.strategy.GetID(), price, assets)
		return o.commit(price)
	}

	o.investmentManager.CheckAndUpdate(price)
	actions := o.riskManager.CheckAndManageRisk(price, risk.Exposure{
		Strategy: o.strategy,
		Market:   o.market,
		Assets:   assets,
		Currency: currency,
	})
	for _, action := range actions {
		switch act := action.(type) {
		case *risk.HaltTradingAction:
			logs.Warnf("[Orchestrator] Detected halt instruction, pausing orders: %s", act.Description())
		case *risk.ResumeTradingAction:
			logs.Infof("[Orchestrator] Detected resume instruction, resuming orders: %s", act.Description())
		case *risk.NoOpAction:
		default:
			logs.Warnf("[Orchestrator] Received unknown risk control instruction type: %T", act)
		}
	}
	if o.riskManager.IsHalted() {
		return o.idle(ticker, assets, currency)
	}

	dir := 1.0
	if price > o.lastPrice {
		dir = -1
	}
	order, err := o.strategy.GetNewOrder(o.market, o.lastPrice, price, dir, assets, currency, false)
	if err != nil {
		return fmt.Errorf("failed to compute order: %w", err)
	}

	minSize := o.market.CalcMinSize(price)
	size := utils.RoundToStep(order.Size, o.market.AssetStep)
	if math.Abs(size) < minSize {
		return o.idle(ticker, assets, currency)
	}

	placeable := o.clampToBalance(size, price, assets, currency)
	if math.Abs(placeable) < minSize || !o.investmentManager.Allows(assets, placeable) {
		if order.Alert == strategy.AlertDisabled {
			return o.idle(ticker, assets, currency)
		}
		return o.alert(price, assets, currency)
	}

	fill, err := o.client.PlaceMarketOrder(placeable)
	switch {
	case errors.Is(err, exchange.ErrOrderTooSmall):
		return o.idle(ticker, assets, currency)
	case errors.Is(err, exchange.ErrInsufficientFunds):
		return o.alert(price, assets, currency)
	case err != nil:
		return fmt.Errorf("failed to place order: %w", err)
	}
	return o.onFill(fill)
}

// clampToBalance shrinks a spot order to what the account can settle.
func (o *Orchestrator) clampToBalance(size, price, assets, currency float64) float64 {
	if o.market.IsLeveraged() {
		return size
	}
	if size < 0 && -size > assets {
		size = -assets
	}
	if size > 0 && size*price > currency {
		size = currency / price
	}
	return utils.RoundToStep(size, o.market.AssetStep)
}

func (o *Orchestrator) onFill(fill exchange.Fill) error {
	res, next, err := o.strategy.OnTrade(o.market, fill.Price, fill.Size, fill.AssetsLeft, fill.CurrencyLeft)
	if err != nil {
		return fmt.Errorf("strategy rejected fill: %w", err)
	}
	o.strategy = next

	side := profit.SideOf(fill.Size)
	o.profitAccountant.RecordTrade(profit.Trade{
		Side:       side,
		Price:      fill.Price,
		Quantity:   math.Abs(fill.Size),
		Pivot:      res.NewPivot,
		NormProfit: res.NormProfit,
		Timestamp:  fill.Time.UnixMilli(),
	})
	o.metrics.RecordTrade(side)

	logs.WithFields(logrus.Fields{
		"side":        side,
		"size":        fill.Size,
		"price":       fill.Price,
		"pivot":       res.NewPivot,
		"norm_profit": res.NormProfit,
	}).Info("[Orchestrator] Order filled.")
	return o.commit(fill.Price)
}

// alert re-quotes the strategy at price without a fill.
func (o *Orchestrator) alert(price, assets, currency float64) error {
	res, next, err := o.strategy.OnTrade(o.market, price, 0, assets, currency)
	if err != nil {
		return fmt.Errorf("strategy rejected alert: %w", err)
	}
	o.strategy = next
	o.profitAccountant.RecordPNL(res.NormProfit)
	o.metrics.RecordAlert()
	logs.Debugf("[Orchestrator] Order not placeable at %.8f, re-quoted pivot to %.8f.", price, res.NewPivot)
	return o.commit(price)
}

func (o *Orchestrator) idle(ticker exchange.Ticker, assets, currency float64) error {
	next, err := o.strategy.OnIdle(o.market, ticker, assets, currency)
	if err != nil {
		return fmt.Errorf("strategy idle failed: %w", err)
	}
	o.strategy = next
	o.metrics.RecordIdle()
	o.lastPrice = ticker.Last
	o.observe(ticker.Last)
	return nil
}

// commit persists the current state and refreshes the metrics.
func (o *Orchestrator) commit(price float64) error {
	o.lastPrice = price
	o.observe(price)

	if err := o.stateStorage.Store(o.strategy.ExportState()); err != nil {
		o.metrics.RecordStorageFailure()
		return fmt.Errorf("failed to persist strategy state: %w", err)
	}
	if err := o.profitStorage.Store(o.profitAccountant.Export()); err != nil {
		o.metrics.RecordStorageFailure()
		return fmt.Errorf("failed to persist profit state: %w", err)
	}
	return nil
}

func (o *Orchestrator) observe(price float64) {
	budget := o.strategy.GetBudgetInfo()
	o.metrics.ObserveEngine(price, o.strategy.GetEquilibrium(0), budget.Assets, budget.Total)
	r := o.riskManager.LastRange()
	o.metrics.ObserveSafeRange(r.Min, r.Max, o.riskManager.IsHalted())
	o.metrics.ObserveProfit(o.profitAccountant.GetNormProfit())
	o.profitAccountant.UpdateUnrealizedProfit(price)
}

func (o *Orchestrator) Start() {
	o.metricsServer = o.metrics.Serve(o.cfg.Metrics.ListenAddress)

	o.wg.Add(1)
	go func() {
		defer o.wg.Done()
		monitor.Start(
			o,
			time.Duration(o.cfg.Normal.MonitorIntervalSeconds)*time.Second,
			time.Duration(o.cfg.Normal.HeartbeatIntervalMinutes)*time.Minute,
			o.ctx.Done(),
		)
	}()
	logs.Infof("Strategy %s started on %s, press Ctrl+C to exit.", o.strategy.GetID(), o.cfg.Symbol)
}

func (o *Orchestrator) Stop() {
	logs.Info("Received close signal, starting graceful shutdown...")

	// Stop the monitor first so no step runs during shutdown.
	o.cancel()
	o.wg.Wait()

	o.mu.Lock()
	if o.strategy.IsValid() {
		if err := o.commit(o.lastPrice); err != nil {
			logs.Errorf("Failed to save final state: %v", err)
		} else {
			logs.Info("[Orchestrator] Final state saved.")
		}
	}
	o.printFinalSummary()
	o.mu.Unlock()

	if o.metricsServer != nil {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := o.metricsServer.Shutdown(ctx); err != nil {
			logs.Errorf("Failed to stop metrics server: %v", err)
		}
	}
	logs.Info("All services stopped successfully.")
}

func (o *Orchestrator) printFinalSummary() {
	pos := o.profitAccountant.GetPositionState()
	budget := o.strategy.GetBudgetInfo()
	assets, currency := o.client.GetBalance()

	logs.Info("--- Final PnL Summary ---")
	logs.Infof("Strategy normalized profit: %.4f over %d trades", pos.NormProfit, pos.TradeCount)
	logs.Infof("Cost-basis realized profit: %.4f, unrealized: %.4f", pos.RealizedProfit, pos.UnrealizedProfit)
	logs.Infof("Strategy budget: %.4f, position: %.8f", budget.Total, budget.Assets)
	logs.Infof("Account balance: %.8f %s, %.4f currency", assets, o.cfg.Symbol, currency)
	logs.Info("--------------------")
}
