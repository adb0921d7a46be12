package valuation

import (
	"math"
	"sort"
	"time"

	"github.com/quantclub/paperledger/internal/domain/position"
)

// Quote is the latest known price for a symbol. A zero or negative
// price is treated as absent.
type Quote struct {
	Symbol string    `json:"symbol"`
	Price  float64   `json:"price"`
	AsOf   time.Time `json:"as_of"`
}

// PositionValue is the mark-to-market view of a single position.
// When no usable quote exists the position is valued at its own entry
// price and flagged Stale; totals stay defined either way.
type PositionValue struct {
	Symbol        string             `json:"symbol"`
	Direction     position.Direction `json:"direction"`
	Quantity      float64            `json:"quantity"`
	CostBasis     float64            `json:"cost_basis"`
	EntryPrice    float64            `json:"entry_price"`
	CurrentPrice  float64            `json:"current_price"`
	MarketValue   float64            `json:"market_value"`
	UnrealizedPnL float64            `json:"unrealized_pnl"`
	Stale         bool               `json:"stale"`
}

// Summary is the portfolio-level valuation result.
type Summary struct {
	CashBalance      float64 `json:"cash_balance"`
	TotalMarketValue float64 `json:"total_market_value"`
	TotalEquity      float64 `json:"total_equity"`
	TotalPnL         float64 `json:"total_pnl"`
	TotalReturnPct   float64 `json:"total_return_pct"`
	PositionCount    int     `json:"position_count"`
	StaleCount       int     `json:"stale_count"`
}

// Value marks the position book to market. Market value carries the
// position's natural sign (shorts contribute negatively), so
// cashBalance + totalMarketValue always equals totalEquity: short-sale
// proceeds already sit in cash.
func Value(positions map[string]position.Position, cashBalance, initialCapital float64, quotes map[string]Quote) (Summary, []PositionValue) {
	values := make([]PositionValue, 0, len(positions))

	summary := Summary{
		CashBalance:   cashBalance,
		PositionCount: len(positions),
	}

	for _, pos := range positions {
		entryPrice := pos.EntryPrice()
		price := entryPrice
		stale := true

		if q, ok := quotes[pos.Symbol]; ok && q.Price > 0 {
			price = q.Price
			stale = false
		}

		absQty := math.Abs(pos.Quantity)
		marketValue := pos.Quantity * price

		var pnl float64
		if pos.Direction == position.DirectionLong {
			pnl = (price - entryPrice) * absQty
		} else {
			pnl = (entryPrice - price) * absQty
		}

		if stale {
			summary.StaleCount++
		}

		values = append(values, PositionValue{
			Symbol:        pos.Symbol,
			Direction:     pos.Direction,
			Quantity:      pos.Quantity,
			CostBasis:     pos.CostBasis,
			EntryPrice:    entryPrice,
			CurrentPrice:  price,
			MarketValue:   marketValue,
			UnrealizedPnL: pnl,
			Stale:         stale,
		})

		summary.TotalMarketValue += marketValue
	}

	sort.Slice(values, func(i, j int) bool {
		return values[i].Symbol < values[j].Symbol
	})

	summary.TotalEquity = cashBalance + summary.TotalMarketValue
	summary.TotalPnL = summary.TotalEquity - initialCapital
	if initialCapital != 0 {
		summary.TotalReturnPct = summary.TotalPnL / initialCapital * 100
	}

	return summary, values
}
