package ledger

import (
	"fmt"
	"strings"
	"time"
)

// Side is the direction of a trade event.
type Side string

const (
	SideBuy  Side = "buy"
	SideSell Side = "sell"
)

// TradeEvent is one immutable row of the append-only trade ledger.
// Events are ordered ascending by Timestamp and are the source of truth
// for all derived position and cash state.
type TradeEvent struct {
	ID        string    `json:"id" db:"id"`
	ProfileID string    `json:"profile_id" db:"profile_id"`
	Timestamp time.Time `json:"ts" db:"placed_at"`
	Symbol    string    `json:"symbol" db:"symbol"`
	Side      Side      `json:"side" db:"side"`
	Quantity  float64   `json:"quantity" db:"quantity"`
	Price     float64   `json:"price" db:"price"`
	Notional  float64   `json:"notional" db:"notional"`
}

// ParseSide normalizes a raw side string ("BUY", " sell ", ...) to a Side.
func ParseSide(raw string) (Side, error) {
	switch strings.ToLower(strings.TrimSpace(raw)) {
	case "buy":
		return SideBuy, nil
	case "sell":
		return SideSell, nil
	default:
		return "", fmt.Errorf("unknown trade side: %q", raw)
	}
}

// Normalize validates a raw trade event and fills derived fields:
// the symbol is trimmed and uppercased, the side canonicalized, and a
// missing notional defaults to quantity x price.
func Normalize(raw TradeEvent) (TradeEvent, error) {
	ev := raw

	ev.Symbol = strings.ToUpper(strings.TrimSpace(ev.Symbol))
	if ev.Symbol == "" {
		return ev, fmt.Errorf("trade %s: missing symbol", ev.ID)
	}

	side, err := ParseSide(string(ev.Side))
	if err != nil {
		return ev, fmt.Errorf("trade %s: %w", ev.ID, err)
	}
	ev.Side = side

	if ev.Quantity <= 0 {
		return ev, fmt.Errorf("trade %s: quantity must be positive, got %f", ev.ID, ev.Quantity)
	}
	if ev.Price <= 0 {
		return ev, fmt.Errorf("trade %s: price must be positive, got %f", ev.ID, ev.Price)
	}

	if ev.Notional <= 0 {
		ev.Notional = ev.Quantity * ev.Price
	}

	return ev, nil
}
