package profit

import (
	"math"
	"sync"
	"time"

	"github.com/google/uuid"
)

// Trade represents a single fill together with the strategy's view of it.
type Trade struct {
	ID         string  `json:"id"`
	Side       string  `json:"side"`        // "BUY" or "SELL"
	Price      float64 `json:"price"`       // Execution price
	Quantity   float64 `json:"quantity"`    // Execution quantity, always positive
	Pivot      float64 `json:"pivot"`       // Pivot after the fill
	NormProfit float64 `json:"norm_profit"` // Profit reported by the strategy
	Timestamp  int64   `json:"timestamp"`   // Unix milliseconds
}

// PositionState represents the overall position state of an asset.
type PositionState struct {
	TotalQuantity    float64 // Negative for short positions
	AverageCost      float64 // Weighted average cost of the position
	RealizedProfit   float64 // Cost-basis profit from closed quantity
	UnrealizedProfit float64 // Floating profit/loss of the current position
	NormProfit       float64 // Sum of the strategy's normalized profit
	TradeCount       int
}

// maxJournal bounds the in-memory trade journal.
const maxJournal = 1000

// Accountant tracks fills with the weighted average cost method and
// accumulates the profit the strategy reports per fill.
type Accountant struct {
	mu           sync.Mutex
	position     PositionState
	tradeHistory []Trade
}

// NewAccountant creates a new accounting core.
func NewAccountant() *Accountant {
	return &Accountant{tradeHistory: make([]Trade, 0)}
}

// RecordTrade records a fill and updates the position state. It returns the stored trade.
func (a *Accountant) RecordTrade(trade Trade) Trade {
	a.mu.Lock()
	defer a.mu.Unlock()

	if trade.ID == "" {
		trade.ID = uuid.NewString()
	}
	if trade.Timestamp == 0 {
		trade.Timestamp = time.Now().UnixMilli()
	}
	a.tradeHistory = append(a.tradeHistory, trade)
	if len(a.tradeHistory) > maxJournal {
		a.tradeHistory = a.tradeHistory[len(a.tradeHistory)-maxJournal:]
	}
	a.position.TradeCount++
	a.position.NormProfit += trade.NormProfit

	isBuy := trade.Side == "BUY"
	qty := trade.Quantity
	curQty := a.position.TotalQuantity
	curCost := a.position.AverageCost

	// Closing part of the position realizes cost-basis profit.
	isClosing := (curQty > 0 && !isBuy) || (curQty < 0 && isBuy)
	if isClosing {
		closed := math.Min(math.Abs(curQty), qty)
		if isBuy {
			a.position.RealizedProfit += (curCost - trade.Price) * closed
		} else {
			a.position.RealizedProfit += (trade.Price - curCost) * closed
		}
	}

	signed := qty
	if !isBuy {
		signed = -qty
	}

	if !isClosing {
		value := curCost*math.Abs(curQty) + trade.Price*qty
		a.position.TotalQuantity += signed
		if a.position.TotalQuantity != 0 {
			a.position.AverageCost = value / math.Abs(a.position.TotalQuantity)
		} else {
			a.position.AverageCost = 0
		}
		return trade
	}

	a.position.TotalQuantity += signed
	if curQty*a.position.TotalQuantity < 0 {
		// Reversed: the remainder was opened at this price.
		a.position.AverageCost = trade.Price
	} else if a.position.TotalQuantity == 0 {
		a.position.AverageCost = 0
	}
	return trade
}

// UpdateUnrealizedProfit revalues the open position at currentPrice.
func (a *Accountant) UpdateUnrealizedProfit(currentPrice float64) {
	a.mu.Lock()
	defer a.mu.Unlock()

	if a.position.TotalQuantity == 0 {
		a.position.UnrealizedProfit = 0
		return
	}
	a.position.UnrealizedProfit = (currentPrice - a.position.AverageCost) * a.position.TotalQuantity
}

// GetPositionState returns a copy of the current position state.
func (a *Accountant) GetPositionState() PositionState {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.position
}

// Trades returns a copy of the journal, oldest first.
func (a *Accountant) Trades() []Trade {
	a.mu.Lock()
	defer a.mu.Unlock()
	out := make([]Trade, len(a.tradeHistory))
	copy(out, a.tradeHistory)
	return out
}

// RecordPNL records strategy profit that did not come with a fill, such as a pivot re-quote.
func (a *Accountant) RecordPNL(pnl float64) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.position.NormProfit += pnl
}

// GetNormProfit returns the cumulative profit reported by the strategy.
func (a *Accountant) GetNormProfit() float64 {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.position.NormProfit
}

// Export captures the totals for persistence.
func (a *Accountant) Export() map[string]interface{} {
	a.mu.Lock()
	defer a.mu.Unlock()
	return map[string]interface{}{
		"quantity":     a.position.TotalQuantity,
		"average_cost": a.position.AverageCost,
		"realized":     a.position.RealizedProfit,
		"norm_profit":  a.position.NormProfit,
		"trades":       float64(a.position.TradeCount),
	}
}

// Restore recovers the totals from a document produced by Export.
// Unknown or malformed fields are left at zero.
func (a *Accountant) Restore(doc map[string]interface{}) {
	a.mu.Lock()
	defer a.mu.Unlock()
	num := func(key string) float64 {
		if v, ok := doc[key].(float64); ok {
			return v
		}
		return 0
	}
	a.position = PositionState{
		TotalQuantity:  num("quantity"),
		AverageCost:    num("average_cost"),
		RealizedProfit: num("realized"),
		NormProfit:     num("norm_profit"),
		TradeCount:     int(num("trades")),
	}
}

// SideOf maps a signed size to an order side.
func SideOf(size float64) string {
	if size < 0 {
		return "SELL"
	}
	return "BUY"
}
