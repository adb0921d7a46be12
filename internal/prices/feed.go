package prices

import (
	"context"
	"sync"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/quantclub/paperledger/internal/domain/valuation"
)

// Fetcher is the upstream quote source. *Client satisfies it; tests
// substitute fakes.
type Fetcher interface {
	Fetch(ctx context.Context, symbols []string) (map[string]valuation.Quote, error)
}

// Feed maintains the last known quote map for a session. A failed
// refresh keeps the previous map intact, so downstream valuation
// degrades to stale prices instead of losing them.
type Feed struct {
	fetcher Fetcher
	cache   Cache
	ttl     time.Duration

	mu     sync.RWMutex
	latest map[string]valuation.Quote
}

// NewFeed creates a quote feed over the given fetcher. Cache may be
// nil when no cross-instance sharing is wanted.
func NewFeed(fetcher Fetcher, cache Cache, ttl time.Duration) *Feed {
	return &Feed{
		fetcher: fetcher,
		cache:   cache,
		ttl:     ttl,
		latest:  make(map[string]valuation.Quote),
	}
}

// Refresh fetches quotes for the given symbols and merges them over
// the retained map. Fetch errors are returned but never clear state.
func (f *Feed) Refresh(ctx context.Context, symbols []string) error {
	quotes, err := f.fetcher.Fetch(ctx, symbols)
	if err != nil {
		log.Warn().Err(err).Int("symbols", len(symbols)).Msg("Price refresh failed, retaining previous quotes")
		return err
	}

	f.mu.Lock()
	for symbol, quote := range quotes {
		f.latest[symbol] = quote
	}
	f.mu.Unlock()

	if f.cache != nil && len(quotes) > 0 {
		f.cache.SetAll(ctx, quotes, f.ttl)
	}

	return nil
}

// Latest returns a copy of the retained quote map. Symbols never seen
// are looked up in the shared cache as a fallback.
func (f *Feed) Latest(ctx context.Context, symbols []string) map[string]valuation.Quote {
	f.mu.RLock()
	out := make(map[string]valuation.Quote, len(symbols))
	var missing []string
	for _, symbol := range symbols {
		if quote, ok := f.latest[symbol]; ok {
			out[symbol] = quote
		} else {
			missing = append(missing, symbol)
		}
	}
	f.mu.RUnlock()

	if f.cache != nil {
		for _, symbol := range missing {
			if quote, ok := f.cache.Get(ctx, symbol); ok {
				out[symbol] = quote
			}
		}
	}

	return out
}
