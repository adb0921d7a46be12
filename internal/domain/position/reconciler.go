package position

import (
	"math"

	"github.com/rs/zerolog/log"

	"github.com/quantclub/paperledger/internal/domain/ledger"
)

// flatEpsilon is the absolute quantity below which a position is
// considered flat and dropped from the book.
const flatEpsilon = 1e-4

// Direction labels which side of the market a position is on.
type Direction string

const (
	DirectionLong  Direction = "LONG"
	DirectionShort Direction = "SHORT"
)

// Position is the derived per-symbol holding after replaying the ledger.
// Quantity is signed (negative for shorts); CostBasis is always the
// non-negative total the current quantity is valued against.
type Position struct {
	Symbol    string    `json:"symbol"`
	Quantity  float64   `json:"quantity"`
	CostBasis float64   `json:"cost_basis"`
	Direction Direction `json:"direction"`
}

// EntryPrice is the average price implied by the position's cost basis.
func (p Position) EntryPrice() float64 {
	qty := math.Abs(p.Quantity)
	if qty < flatEpsilon {
		return 0
	}
	return p.CostBasis / qty
}

// Result is the outcome of a full ledger replay for one profile.
type Result struct {
	Positions         map[string]Position
	CashBalance       float64
	RealizedPnL       float64
	TotalBuyNotional  float64
	TotalSellNotional float64
	TradeCount        int
	SkippedRows       int
}

// Reconcile replays an ordered trade sequence (oldest first) into the
// current position book and cash balance. Malformed rows are skipped
// with a warning; the replay itself never fails. Replaying the same
// sequence always yields the same result.
func Reconcile(initialCapital float64, trades []ledger.TradeEvent) Result {
	res := Result{
		Positions:   make(map[string]Position),
		CashBalance: initialCapital,
	}

	book := make(map[string]*bookEntry)

	for _, raw := range trades {
		ev, err := ledger.Normalize(raw)
		if err != nil {
			log.Warn().Err(err).Str("trade_id", raw.ID).Msg("Skipping malformed ledger row")
			res.SkippedRows++
			continue
		}

		entry := book[ev.Symbol]
		if entry == nil {
			entry = &bookEntry{}
			book[ev.Symbol] = entry
		}

		switch ev.Side {
		case ledger.SideBuy:
			res.RealizedPnL += entry.applyBuy(ev.Quantity, ev.Price, ev.Notional)
			res.TotalBuyNotional += ev.Notional
			res.CashBalance -= ev.Notional
		case ledger.SideSell:
			res.RealizedPnL += entry.applySell(ev.Quantity, ev.Price, ev.Notional)
			res.TotalSellNotional += ev.Notional
			res.CashBalance += ev.Notional
		}
		res.TradeCount++
	}

	for symbol, entry := range book {
		if math.Abs(entry.qty) < flatEpsilon {
			continue
		}
		dir := DirectionLong
		if entry.qty < 0 {
			dir = DirectionShort
		}
		res.Positions[symbol] = Position{
			Symbol:    symbol,
			Quantity:  entry.qty,
			CostBasis: entry.costBasis,
			Direction: dir,
		}
	}

	return res
}

// bookEntry is the mutable netting state for one symbol during replay.
type bookEntry struct {
	qty       float64
	costBasis float64
}

// impliedPrice is the average entry price of the current holding.
func (e *bookEntry) impliedPrice() float64 {
	qty := math.Abs(e.qty)
	if qty < flatEpsilon {
		return 0
	}
	return e.costBasis / qty
}

// applyBuy nets a buy into the entry and returns the realized P&L of
// any short quantity the buy covered.
func (e *bookEntry) applyBuy(qty, price, notional float64) float64 {
	oldQty := e.qty

	if oldQty >= 0 {
		// Opening or extending a long.
		e.qty = oldQty + qty
		e.costBasis += notional
		return 0
	}

	// Covering a short.
	covered := math.Min(qty, -oldQty)
	realized := (e.impliedPrice() - price) * covered

	newQty := oldQty + qty
	switch {
	case math.Abs(newQty) < flatEpsilon:
		e.qty = 0
		e.costBasis = 0
	case newQty > 0:
		// Flipped to long: the basis restarts at the flip price.
		e.qty = newQty
		e.costBasis = newQty * price
	default:
		// Still short: reduce the basis proportionally.
		e.costBasis = e.costBasis * (newQty / oldQty)
		e.qty = newQty
	}
	return realized
}

// applySell nets a sell into the entry and returns the realized P&L of
// any long quantity the sell closed.
func (e *bookEntry) applySell(qty, price, notional float64) float64 {
	oldQty := e.qty

	if oldQty > 0 {
		// Reducing or closing a long.
		closed := math.Min(qty, oldQty)
		avgCost := e.impliedPrice()
		realized := (price - avgCost) * closed

		newQty := oldQty - qty
		switch {
		case math.Abs(newQty) < flatEpsilon:
			e.qty = 0
			e.costBasis = 0
		case newQty > 0:
			// Proportional reduction preserves the average cost.
			e.costBasis = newQty * avgCost
			e.qty = newQty
		default:
			// Flipped to short: basis is the shorted quantity at the trade price.
			e.qty = newQty
			e.costBasis = math.Abs(newQty) * price
		}
		return realized
	}

	// Opening or extending a short: the new basis is the quantity-weighted
	// average of the old short's implied price and the trade price, scaled
	// by the new absolute quantity.
	oldAbs := math.Abs(oldQty)
	newQty := oldQty - qty
	newAbs := math.Abs(newQty)
	if oldAbs < flatEpsilon {
		e.qty = newQty
		e.costBasis = notional
		return 0
	}
	weightedAvg := (oldAbs*e.impliedPrice() + qty*price) / (oldAbs + qty)
	e.qty = newQty
	e.costBasis = newAbs * weightedAvg
	return 0
}
