package ledger

import (
	"testing"
	"time"
)

func TestNormalize_DefaultsNotional(t *testing.T) {
	ev, err := Normalize(TradeEvent{
		ID:       "t1",
		Symbol:   " aapl ",
		Side:     "BUY",
		Quantity: 100,
		Price:    150,
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if ev.Symbol != "AAPL" {
		t.Errorf("expected symbol AAPL, got %s", ev.Symbol)
	}
	if ev.Side != SideBuy {
		t.Errorf("expected side buy, got %s", ev.Side)
	}
	if ev.Notional != 15000 {
		t.Errorf("expected notional 15000, got %f", ev.Notional)
	}
}

func TestNormalize_KeepsExplicitNotional(t *testing.T) {
	ev, err := Normalize(TradeEvent{
		Symbol:   "MSFT",
		Side:     "sell",
		Quantity: 10,
		Price:    400,
		Notional: 3995, // fee-adjusted by the placement collaborator
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if ev.Notional != 3995 {
		t.Errorf("expected notional 3995, got %f", ev.Notional)
	}
}

func TestNormalize_Rejections(t *testing.T) {
	base := TradeEvent{
		Symbol:    "AAPL",
		Side:      "buy",
		Quantity:  1,
		Price:     100,
		Timestamp: time.Now(),
	}

	testCases := []struct {
		name   string
		mutate func(*TradeEvent)
	}{
		{"missing symbol", func(ev *TradeEvent) { ev.Symbol = "  " }},
		{"unknown side", func(ev *TradeEvent) { ev.Side = "hold" }},
		{"empty side", func(ev *TradeEvent) { ev.Side = "" }},
		{"zero quantity", func(ev *TradeEvent) { ev.Quantity = 0 }},
		{"negative quantity", func(ev *TradeEvent) { ev.Quantity = -5 }},
		{"zero price", func(ev *TradeEvent) { ev.Price = 0 }},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			ev := base
			tc.mutate(&ev)
			if _, err := Normalize(ev); err == nil {
				t.Errorf("expected error for %s", tc.name)
			}
		})
	}
}

func TestParseSide_CaseInsensitive(t *testing.T) {
	for _, raw := range []string{"buy", "BUY", " Buy "} {
		side, err := ParseSide(raw)
		if err != nil {
			t.Fatalf("unexpected error for %q: %v", raw, err)
		}
		if side != SideBuy {
			t.Errorf("expected buy for %q, got %s", raw, side)
		}
	}
}
