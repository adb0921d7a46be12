package prices

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/quantclub/paperledger/internal/domain/valuation"
)

// Quote providers in the wild answer in one of three shapes:
//
//	(a) {"data": {"AAPL": {"price": 187.2}, ...}}
//	(b) [{"symbol": "AAPL", "price": 187.2}, {"ticker": "MSFT", "last": 402.1}, ...]
//	(c) {"AAPL": 187.2, "MSFT": {"price": 402.1}, ...}
//
// normalizeResponse collapses all three into a symbol-keyed quote map,
// trimming and uppercasing symbols and dropping prices <= 0.
func normalizeResponse(body []byte, asOf time.Time) (map[string]valuation.Quote, error) {
	body = []byte(strings.TrimSpace(string(body)))
	if len(body) == 0 {
		return nil, fmt.Errorf("empty price response")
	}

	quotes := make(map[string]valuation.Quote)

	if body[0] == '[' {
		var rows []map[string]json.RawMessage
		if err := json.Unmarshal(body, &rows); err != nil {
			return nil, fmt.Errorf("failed to parse price array: %w", err)
		}
		for _, row := range rows {
			symbol := stringField(row, "symbol", "ticker")
			price := priceField(row)
			addQuote(quotes, symbol, price, asOf)
		}
		return quotes, nil
	}

	var obj map[string]json.RawMessage
	if err := json.Unmarshal(body, &obj); err != nil {
		return nil, fmt.Errorf("failed to parse price object: %w", err)
	}

	// Shape (a): everything nested under a "data" envelope.
	if data, ok := obj["data"]; ok {
		var inner map[string]json.RawMessage
		if err := json.Unmarshal(data, &inner); err == nil {
			obj = inner
		}
	}

	for symbol, raw := range obj {
		addQuote(quotes, symbol, extractPrice(raw), asOf)
	}

	return quotes, nil
}

// extractPrice reads a price from either a bare number or an object
// carrying one of the known price keys.
func extractPrice(raw json.RawMessage) float64 {
	var num float64
	if err := json.Unmarshal(raw, &num); err == nil {
		return num
	}

	var fields map[string]json.RawMessage
	if err := json.Unmarshal(raw, &fields); err != nil {
		return 0
	}
	return priceField(fields)
}

func priceField(fields map[string]json.RawMessage) float64 {
	for _, key := range []string{"price", "last", "close", "current"} {
		raw, ok := fields[key]
		if !ok {
			continue
		}
		var num float64
		if err := json.Unmarshal(raw, &num); err == nil {
			return num
		}
	}
	return 0
}

func stringField(fields map[string]json.RawMessage, keys ...string) string {
	for _, key := range keys {
		raw, ok := fields[key]
		if !ok {
			continue
		}
		var s string
		if err := json.Unmarshal(raw, &s); err == nil {
			return s
		}
	}
	return ""
}

func addQuote(quotes map[string]valuation.Quote, symbol string, price float64, asOf time.Time) {
	symbol = strings.ToUpper(strings.TrimSpace(symbol))
	if symbol == "" || price <= 0 {
		return
	}
	quotes[symbol] = valuation.Quote{
		Symbol: symbol,
		Price:  price,
		AsOf:   asOf,
	}
}
