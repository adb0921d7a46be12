package prices

import (
	"testing"
	"time"
)

func TestNormalizeResponse_EnvelopeShape(t *testing.T) {
	body := []byte(`{"data": {"AAPL": {"price": 187.2}, "msft ": {"last": 402.1}, "BAD": {"price": -1}}}`)
	asOf := time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)

	quotes, err := normalizeResponse(body, asOf)
	if err != nil {
		t.Fatalf("normalizeResponse failed: %v", err)
	}

	if len(quotes) != 2 {
		t.Fatalf("expected 2 quotes, got %d: %v", len(quotes), quotes)
	}
	if q := quotes["AAPL"]; q.Price != 187.2 || !q.AsOf.Equal(asOf) {
		t.Errorf("unexpected AAPL quote: %+v", q)
	}
	if q := quotes["MSFT"]; q.Price != 402.1 {
		t.Errorf("symbol should be trimmed and uppercased, got %+v", quotes)
	}
	if _, ok := quotes["BAD"]; ok {
		t.Error("non-positive prices must be dropped")
	}
}

func TestNormalizeResponse_ArrayShape(t *testing.T) {
	body := []byte(`[
		{"symbol": "aapl", "price": 187.2},
		{"ticker": "MSFT", "last": 402.1},
		{"symbol": "TSLA", "close": 250.5},
		{"symbol": "NVDA", "current": 910.0},
		{"symbol": "NOPRICE"},
		{"price": 10.0}
	]`)

	quotes, err := normalizeResponse(body, time.Now())
	if err != nil {
		t.Fatalf("normalizeResponse failed: %v", err)
	}

	want := map[string]float64{"AAPL": 187.2, "MSFT": 402.1, "TSLA": 250.5, "NVDA": 910.0}
	if len(quotes) != len(want) {
		t.Fatalf("expected %d quotes, got %d: %v", len(want), len(quotes), quotes)
	}
	for symbol, price := range want {
		if quotes[symbol].Price != price {
			t.Errorf("%s: expected price %v, got %+v", symbol, price, quotes[symbol])
		}
	}
}

func TestNormalizeResponse_FlatShape(t *testing.T) {
	body := []byte(`{"AAPL": 187.2, "MSFT": {"price": 402.1}, "ZERO": 0}`)

	quotes, err := normalizeResponse(body, time.Now())
	if err != nil {
		t.Fatalf("normalizeResponse failed: %v", err)
	}

	if len(quotes) != 2 {
		t.Fatalf("expected 2 quotes, got %d: %v", len(quotes), quotes)
	}
	if quotes["AAPL"].Price != 187.2 {
		t.Errorf("bare number price not read: %+v", quotes["AAPL"])
	}
	if quotes["MSFT"].Price != 402.1 {
		t.Errorf("nested price not read: %+v", quotes["MSFT"])
	}
}

func TestNormalizeResponse_Invalid(t *testing.T) {
	testCases := []struct {
		name string
		body string
	}{
		{"empty", ""},
		{"whitespace", "   \n"},
		{"broken array", `[{"symbol": "AAPL"`},
		{"broken object", `{"AAPL": `},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			if _, err := normalizeResponse([]byte(tc.body), time.Now()); err == nil {
				t.Errorf("expected error for %q", tc.body)
			}
		})
	}
}
