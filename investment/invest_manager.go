// investment/invest_manager.go
package investment

import (
	"math"

	"pivot_curve_bot/logs"
)

// BalanceSource is the part of the exchange client this module needs, convenient for testing.
type BalanceSource interface {
	GetBalance() (assets float64, currency float64)
}

// Manager caps the notional value of the held position.
type Manager struct {
	client          BalanceSource
	symbol          string
	investmentLimit float64
	isLimitExceeded bool
}

// NewManager creates a new investment manager. A limit of 0 disables the cap.
func NewManager(client BalanceSource, symbol string, limit float64) *Manager {
	return &Manager{
		client:          client,
		symbol:          symbol,
		investmentLimit: limit,
	}
}

// CheckAndUpdate revalues the position at price and updates the halt status.
func (m *Manager) CheckAndUpdate(price float64) {
	if m.investmentLimit <= 0 {
		if m.isLimitExceeded {
			m.isLimitExceeded = false
			logs.Infof("[Investment-Management-Restore] Investment limit removed or set to 0, resuming position opening.")
		}
		return
	}

	assets, _ := m.client.GetBalance()
	currentInvestment := math.Abs(assets) * price

	if currentInvestment >= m.investmentLimit {
		if !m.isLimitExceeded {
			logs.Warnf("[Investment-Management-Warning] %s notional value %.4f has reached or exceeded limit %.4f. Will prohibit increasing the position.",
				m.symbol, currentInvestment, m.investmentLimit)
		}
		m.isLimitExceeded = true
	} else {
		if m.isLimitExceeded {
			logs.Infof("[Investment-Management-Restore] %s notional value %.4f has fallen back below limit %.4f. Resuming position opening.",
				m.symbol, currentInvestment, m.investmentLimit)
		}
		m.isLimitExceeded = false
	}
}

// IsTradingHalted returns whether orders that grow the position should be blocked.
func (m *Manager) IsTradingHalted() bool {
	return m.isLimitExceeded
}

// Allows reports whether an order of size may be placed while holding assets.
// Reducing orders always pass.
func (m *Manager) Allows(assets, size float64) bool {
	if !m.isLimitExceeded {
		return true
	}
	return math.Abs(assets+size) < math.Abs(assets)
}
