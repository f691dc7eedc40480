package pricefeed

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/shopspring/decimal"
	"golang.org/x/time/rate"
)

// Quote is one instrument's entry in a batched price API response.
type Quote struct {
	Symbol string
	Price  decimal.Decimal
}

// Fetcher performs a batched price lookup against a fixed quote asset.
// Instruments absent from the returned map had no price data.
type Fetcher interface {
	Lookup(ctx context.Context, mints []string) (map[string]Quote, error)
}

// ClientConfig holds price API client settings.
type ClientConfig struct {
	BaseURL            string
	RequestTimeout     time.Duration
	RateLimitPerSecond int
}

// Client fetches prices from the aggregator's batched price endpoint.
// All prices are denominated in the chain's native coin.
type Client struct {
	cfg     ClientConfig
	client  *http.Client
	limiter *rate.Limiter
}

// NewClient creates a new price API client.
func NewClient(cfg ClientConfig) *Client {
	timeout := cfg.RequestTimeout
	if timeout == 0 {
		timeout = 10 * time.Second
	}
	rps := cfg.RateLimitPerSecond
	if rps <= 0 {
		rps = 10
	}

	return &Client{
		cfg:     cfg,
		client:  &http.Client{Timeout: timeout},
		limiter: rate.NewLimiter(rate.Limit(rps), rps),
	}
}

// priceResponse mirrors the price API's wire format. Prices arrive as
// strings to avoid float truncation.
type priceResponse struct {
	Data map[string]struct {
		ID     string `json:"id"`
		Symbol string `json:"mintSymbol"`
		Price  string `json:"price"`
	} `json:"data"`
	TimeTaken float64 `json:"timeTaken"`
}

// Lookup fetches prices for a batch of mints in one request. Mints the API
// does not index are simply absent from the result; that is not an error.
func (c *Client) Lookup(ctx context.Context, mints []string) (map[string]Quote, error) {
	if len(mints) == 0 {
		return map[string]Quote{}, nil
	}

	if err := c.limiter.Wait(ctx); err != nil {
		return nil, fmt.Errorf("rate limit wait: %w", err)
	}

	u, err := url.Parse(c.cfg.BaseURL)
	if err != nil {
		return nil, fmt.Errorf("parse base url: %w", err)
	}
	q := u.Query()
	q.Set("ids", strings.Join(mints, ","))
	u.RawQuery = q.Encode()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u.String(), nil)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}

	resp, err := c.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("price request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("price API returned status %d", resp.StatusCode)
	}

	var body priceResponse
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		return nil, fmt.Errorf("decode price response: %w", err)
	}

	quotes := make(map[string]Quote, len(body.Data))
	for mint, entry := range body.Data {
		price, err := decimal.NewFromString(entry.Price)
		if err != nil {
			// One malformed entry must not poison the batch.
			continue
		}
		quotes[mint] = Quote{Symbol: entry.Symbol, Price: price}
	}
	return quotes, nil
}
