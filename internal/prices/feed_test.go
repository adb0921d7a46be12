package prices

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/quantclub/paperledger/internal/domain/valuation"
)

type fakeFetcher struct {
	quotes map[string]valuation.Quote
	err    error
	calls  int
}

func (f *fakeFetcher) Fetch(_ context.Context, _ []string) (map[string]valuation.Quote, error) {
	f.calls++
	if f.err != nil {
		return nil, f.err
	}
	return f.quotes, nil
}

func quote(symbol string, price float64) valuation.Quote {
	return valuation.Quote{Symbol: symbol, Price: price, AsOf: time.Now()}
}

func TestFeedRefresh_MergesQuotes(t *testing.T) {
	fetcher := &fakeFetcher{quotes: map[string]valuation.Quote{
		"AAPL": quote("AAPL", 187.2),
	}}
	feed := NewFeed(fetcher, nil, time.Minute)

	require.NoError(t, feed.Refresh(context.Background(), []string{"AAPL"}))

	latest := feed.Latest(context.Background(), []string{"AAPL"})
	assert.Equal(t, 187.2, latest["AAPL"].Price)

	// Second refresh covers a new symbol without dropping the first.
	fetcher.quotes = map[string]valuation.Quote{"MSFT": quote("MSFT", 402.1)}
	require.NoError(t, feed.Refresh(context.Background(), []string{"MSFT"}))

	latest = feed.Latest(context.Background(), []string{"AAPL", "MSFT"})
	assert.Len(t, latest, 2)
	assert.Equal(t, 187.2, latest["AAPL"].Price)
	assert.Equal(t, 402.1, latest["MSFT"].Price)
}

func TestFeedRefresh_RetainsQuotesOnFailure(t *testing.T) {
	fetcher := &fakeFetcher{quotes: map[string]valuation.Quote{
		"AAPL": quote("AAPL", 187.2),
	}}
	feed := NewFeed(fetcher, nil, time.Minute)
	require.NoError(t, feed.Refresh(context.Background(), []string{"AAPL"}))

	fetcher.err = errors.New("upstream down")
	err := feed.Refresh(context.Background(), []string{"AAPL"})
	require.Error(t, err)

	latest := feed.Latest(context.Background(), []string{"AAPL"})
	assert.Equal(t, 187.2, latest["AAPL"].Price, "failed refresh must not clear state")
}

func TestFeedLatest_CacheFallback(t *testing.T) {
	cache := NewMemoryCache()
	cache.SetAll(context.Background(), map[string]valuation.Quote{
		"TSLA": quote("TSLA", 250.5),
	}, time.Minute)

	feed := NewFeed(&fakeFetcher{}, cache, time.Minute)

	latest := feed.Latest(context.Background(), []string{"TSLA", "UNKNOWN"})
	assert.Len(t, latest, 1)
	assert.Equal(t, 250.5, latest["TSLA"].Price)
}

func TestFeedRefresh_WritesThroughToCache(t *testing.T) {
	cache := NewMemoryCache()
	fetcher := &fakeFetcher{quotes: map[string]valuation.Quote{
		"AAPL": quote("AAPL", 187.2),
	}}
	feed := NewFeed(fetcher, cache, time.Minute)

	require.NoError(t, feed.Refresh(context.Background(), []string{"AAPL"}))

	cached, ok := cache.Get(context.Background(), "AAPL")
	require.True(t, ok)
	assert.Equal(t, 187.2, cached.Price)
}

func TestMemoryCache_EntriesOutliveTTL(t *testing.T) {
	cache := NewMemoryCache()
	cache.SetAll(context.Background(), map[string]valuation.Quote{
		"AAPL": quote("AAPL", 187.2),
	}, time.Nanosecond)

	time.Sleep(time.Millisecond)

	cached, ok := cache.Get(context.Background(), "AAPL")
	require.True(t, ok, "expired entries stay readable for staleness-tolerant valuation")
	assert.Equal(t, 187.2, cached.Price)
}
