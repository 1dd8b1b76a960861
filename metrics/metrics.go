// Package metrics exposes the bot's state to Prometheus.
//
//   - pivot_bot_price / pivot / position / budget   engine snapshot (gauges)
//   - pivot_bot_safe_range_min / max                 latest safe range (gauges)
//   - pivot_bot_norm_profit                          cumulative strategy profit (gauge)
//   - pivot_bot_trading_halted                       1 while the risk guard halts trading
//   - pivot_bot_trades_total{side}                   fills
//   - pivot_bot_idle_ticks_total, alerts_total       steps without a fill
//   - pivot_bot_storage_failures_total               failed snapshot writes
package metrics

import (
	"errors"
	"net/http"
	"time"

	"pivot_curve_bot/logs"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "pivot_bot"

// Metrics holds the collectors of one instrument in a private registry.
type Metrics struct {
	registry *prometheus.Registry

	price      prometheus.Gauge
	pivot      prometheus.Gauge
	position   prometheus.Gauge
	budget     prometheus.Gauge
	safeMin    prometheus.Gauge
	safeMax    prometheus.Gauge
	normProfit prometheus.Gauge
	halted     prometheus.Gauge

	trades          *prometheus.CounterVec
	idleTicks       prometheus.Counter
	alerts          prometheus.Counter
	storageFailures prometheus.Counter
}

// New creates and registers the collectors, labelled with symbol.
func New(symbol string) *Metrics {
	labels := prometheus.Labels{"symbol": symbol}
	gauge := func(name, help string) prometheus.Gauge {
		return prometheus.NewGauge(prometheus.GaugeOpts{Namespace: namespace, Name: name, Help: help, ConstLabels: labels})
	}
	counter := func(name, help string) prometheus.Counter {
		return prometheus.NewCounter(prometheus.CounterOpts{Namespace: namespace, Name: name, Help: help, ConstLabels: labels})
	}

	m := &Metrics{
		registry:   prometheus.NewRegistry(),
		price:      gauge("price", "Last observed market price"),
		pivot:      gauge("pivot", "Current pivot price of the curve"),
		position:   gauge("position", "Position held by the strategy"),
		budget:     gauge("budget", "Initial budget plus accumulated value"),
		safeMin:    gauge("safe_range_min", "Lower bound of the safe price range"),
		safeMax:    gauge("safe_range_max", "Upper bound of the safe price range, +Inf when unbounded"),
		normProfit: gauge("norm_profit", "Cumulative normalized profit reported by the strategy"),
		halted:     gauge("trading_halted", "1 while the risk guard halts trading"),
		trades: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace, Name: "trades_total", Help: "Executed fills", ConstLabels: labels,
		}, []string{"side"}),
		idleTicks:       counter("idle_ticks_total", "Steps that ended without a fill"),
		alerts:          counter("alerts_total", "Zero-size re-quotes sent to the strategy"),
		storageFailures: counter("storage_failures_total", "Failed state snapshot writes"),
	}
	m.registry.MustRegister(
		m.price, m.pivot, m.position, m.budget, m.safeMin, m.safeMax, m.normProfit, m.halted,
		m.trades, m.idleTicks, m.alerts, m.storageFailures,
	)
	return m
}

// Registry returns the registry holding the collectors.
func (m *Metrics) Registry() *prometheus.Registry { return m.registry }

// ObserveEngine records the engine snapshot after a step.
func (m *Metrics) ObserveEngine(price, pivot, position, budget float64) {
	m.price.Set(price)
	m.pivot.Set(pivot)
	m.position.Set(position)
	m.budget.Set(budget)
}

// ObserveSafeRange records the latest safe range and halt status.
func (m *Metrics) ObserveSafeRange(min, max float64, halted bool) {
	m.safeMin.Set(min)
	m.safeMax.Set(max)
	if halted {
		m.halted.Set(1)
	} else {
		m.halted.Set(0)
	}
}

// ObserveProfit records the cumulative normalized profit.
func (m *Metrics) ObserveProfit(normProfit float64) {
	m.normProfit.Set(normProfit)
}

// RecordTrade counts a fill.
func (m *Metrics) RecordTrade(side string) {
	m.trades.WithLabelValues(side).Inc()
}

func (m *Metrics) RecordIdle()           { m.idleTicks.Inc() }
func (m *Metrics) RecordAlert()          { m.alerts.Inc() }
func (m *Metrics) RecordStorageFailure() { m.storageFailures.Inc() }

// Serve exposes /metrics and /healthz on addr in the background.
// It returns nil when addr is empty.
func (m *Metrics) Serve(addr string) *http.Server {
	if addr == "" {
		return nil
	}
	mux := http.NewServeMux()
	mux.HandleFunc("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte("ok\n"))
	})
	mux.Handle("/metrics", promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{}))

	srv := &http.Server{Addr: addr, Handler: mux, ReadHeaderTimeout: 5 * time.Second}
	go func() {
		logs.Infof("[Metrics] Serving metrics on %s/metrics", addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logs.Errorf("[Metrics] Server stopped: %v", err)
		}
	}()
	return srv
}
