package prices

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/quantclub/paperledger/internal/domain/valuation"
)

// Cache holds the last known quote per symbol so a failed refresh
// never clears state the valuation engine depends on.
type Cache interface {
	Get(ctx context.Context, symbol string) (valuation.Quote, bool)
	SetAll(ctx context.Context, quotes map[string]valuation.Quote, ttl time.Duration)
}

// MemoryCache is the in-process quote cache used when no Redis is
// configured. Entries outlive their TTL for staleness-tolerant reads;
// the TTL only marks them stale.
type MemoryCache struct {
	mu      sync.RWMutex
	entries map[string]memoryEntry
}

type memoryEntry struct {
	quote   valuation.Quote
	expires time.Time
}

// NewMemoryCache creates an empty in-process quote cache.
func NewMemoryCache() *MemoryCache {
	return &MemoryCache{
		entries: make(map[string]memoryEntry),
	}
}

// Get returns the cached quote for a symbol, expired or not. Callers
// decide staleness from the quote's AsOf.
func (c *MemoryCache) Get(_ context.Context, symbol string) (valuation.Quote, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	entry, ok := c.entries[symbol]
	if !ok {
		return valuation.Quote{}, false
	}
	return entry.quote, true
}

// SetAll stores a batch of fresh quotes.
func (c *MemoryCache) SetAll(_ context.Context, quotes map[string]valuation.Quote, ttl time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()

	expires := time.Now().Add(ttl)
	for symbol, quote := range quotes {
		c.entries[symbol] = memoryEntry{quote: quote, expires: expires}
	}
}

// RedisCache shares the latest quotes across engine instances so
// per-profile sessions don't each hammer the upstream feed.
type RedisCache struct {
	client *redis.Client
	prefix string
}

// NewRedisCache creates a Redis-backed quote cache.
func NewRedisCache(client *redis.Client, prefix string) *RedisCache {
	if prefix == "" {
		prefix = "paperledger:quote"
	}
	return &RedisCache{
		client: client,
		prefix: prefix,
	}
}

func (c *RedisCache) key(symbol string) string {
	return fmt.Sprintf("%s:%s", c.prefix, symbol)
}

// Get returns the shared cached quote for a symbol.
func (c *RedisCache) Get(ctx context.Context, symbol string) (valuation.Quote, bool) {
	data, err := c.client.Get(ctx, c.key(symbol)).Bytes()
	if err != nil {
		return valuation.Quote{}, false
	}

	var quote valuation.Quote
	if err := json.Unmarshal(data, &quote); err != nil {
		return valuation.Quote{}, false
	}
	return quote, true
}

// SetAll stores a batch of fresh quotes with the given TTL.
func (c *RedisCache) SetAll(ctx context.Context, quotes map[string]valuation.Quote, ttl time.Duration) {
	pipe := c.client.Pipeline()
	for symbol, quote := range quotes {
		data, err := json.Marshal(quote)
		if err != nil {
			continue
		}
		pipe.Set(ctx, c.key(symbol), data, ttl)
	}
	// Cache writes are best effort; the in-memory map is authoritative.
	_, _ = pipe.Exec(ctx)
}
