package prices

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/sony/gobreaker"
	"golang.org/x/time/rate"

	"github.com/quantclub/paperledger/internal/domain/valuation"
)

// ClientConfig tunes the quote feed HTTP client.
type ClientConfig struct {
	BaseURL        string        `yaml:"base_url"`
	RequestTimeout time.Duration `yaml:"request_timeout"`
	MaxRetries     int           `yaml:"max_retries"`
	BackoffBase    time.Duration `yaml:"backoff_base"`
	RateLimit      float64       `yaml:"rate_limit"` // requests per second
	Burst          int           `yaml:"burst"`
	UserAgent      string        `yaml:"user_agent"`
}

// DefaultClientConfig returns conservative feed client defaults.
func DefaultClientConfig() ClientConfig {
	return ClientConfig{
		RequestTimeout: 10 * time.Second,
		MaxRetries:     2,
		BackoffBase:    250 * time.Millisecond,
		RateLimit:      4,
		Burst:          2,
		UserAgent:      "paperledger/1.0",
	}
}

// Client fetches latest quotes from the external market-data API with
// rate limiting, retries and a circuit breaker in front of the feed.
type Client struct {
	config  ClientConfig
	client  *http.Client
	limiter *rate.Limiter
	breaker *gobreaker.CircuitBreaker
}

// NewClient creates a quote feed client.
func NewClient(config ClientConfig) *Client {
	settings := gobreaker.Settings{
		Name:    "price_feed",
		Timeout: 30 * time.Second,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= 5
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			log.Warn().Str("breaker", name).
				Str("from", from.String()).Str("to", to.String()).
				Msg("Price feed breaker state change")
		},
	}

	return &Client{
		config:  config,
		client:  &http.Client{Timeout: config.RequestTimeout},
		limiter: rate.NewLimiter(rate.Limit(config.RateLimit), config.Burst),
		breaker: gobreaker.NewCircuitBreaker(settings),
	}
}

// BreakerState reports the current circuit breaker state for health checks.
func (c *Client) BreakerState() string {
	return c.breaker.State().String()
}

// Fetch requests quotes for a set of symbols. The returned map may be
// partial: symbols the feed does not know, or answers with price <= 0,
// are simply absent.
func (c *Client) Fetch(ctx context.Context, symbols []string) (map[string]valuation.Quote, error) {
	if len(symbols) == 0 {
		return map[string]valuation.Quote{}, nil
	}

	if err := c.limiter.Wait(ctx); err != nil {
		return nil, fmt.Errorf("rate limiter wait: %w", err)
	}

	result, err := c.breaker.Execute(func() (interface{}, error) {
		return c.fetchWithRetry(ctx, symbols)
	})
	if err != nil {
		return nil, err
	}

	return result.(map[string]valuation.Quote), nil
}

func (c *Client) fetchWithRetry(ctx context.Context, symbols []string) (map[string]valuation.Quote, error) {
	var lastErr error

	for attempt := 0; attempt <= c.config.MaxRetries; attempt++ {
		if attempt > 0 {
			backoff := c.config.BackoffBase * time.Duration(1<<uint(attempt-1))
			log.Debug().Dur("backoff", backoff).Int("attempt", attempt).Msg("Retrying price fetch")
			select {
			case <-time.After(backoff):
			case <-ctx.Done():
				return nil, ctx.Err()
			}
		}

		quotes, err := c.fetchOnce(ctx, symbols)
		if err == nil {
			return quotes, nil
		}
		lastErr = err

		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
	}

	return nil, lastErr
}

func (c *Client) fetchOnce(ctx context.Context, symbols []string) (map[string]valuation.Quote, error) {
	endpoint, err := url.Parse(c.config.BaseURL)
	if err != nil {
		return nil, fmt.Errorf("invalid feed URL: %w", err)
	}

	q := endpoint.Query()
	q.Set("symbols", strings.Join(symbols, ","))
	endpoint.RawQuery = q.Encode()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint.String(), nil)
	if err != nil {
		return nil, fmt.Errorf("failed to build feed request: %w", err)
	}
	if c.config.UserAgent != "" {
		req.Header.Set("User-Agent", c.config.UserAgent)
	}

	resp, err := c.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("price fetch failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		io.Copy(io.Discard, resp.Body)
		return nil, fmt.Errorf("price feed returned HTTP %d", resp.StatusCode)
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read feed response: %w", err)
	}

	return normalizeResponse(body, time.Now())
}
