// risk/actions.go
package risk

import (
	"fmt"

	"pivot_curve_bot/strategy"
)

// Action is a generic interface for any action returned by the risk manager.
type Action interface {
	Description() string
}

// === Specific Action Implementations ===

// NoOpAction represents that no action should be taken.
type NoOpAction struct{}

func (a *NoOpAction) Description() string { return "No operation." }

// HaltTradingAction instructs the host to stop placing orders.
type HaltTradingAction struct {
	Symbol string
	Price  float64
	Range  strategy.MinMax
}

func (a *HaltTradingAction) Description() string {
	return fmt.Sprintf("Halt trading on %s: price %.8f outside safe range [%.8f, %.8f]", a.Symbol, a.Price, a.Range.Min, a.Range.Max)
}

// ResumeTradingAction instructs the host to resume placing orders.
type ResumeTradingAction struct {
	Symbol string
	Price  float64
}

func (a *ResumeTradingAction) Description() string {
	return fmt.Sprintf("Resume trading on %s at price %.8f", a.Symbol, a.Price)
}
