package executor

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/shopspring/decimal"
	"golang.org/x/time/rate"
)

// QuoteRequest describes one quote lookup against the swap-building API.
// Amount is in the input asset's smallest unit.
type QuoteRequest struct {
	InputMint      string
	OutputMint     string
	Amount         decimal.Decimal
	SlippageBps    int
	PlatformFeeBps int // 0 means no fee field is sent at all
}

// RouteStep is one hop of the route the aggregator picked.
type RouteStep struct {
	SwapInfo struct {
		Label      string `json:"label"`
		AmmKey     string `json:"ammKey"`
		InputMint  string `json:"inputMint"`
		OutputMint string `json:"outputMint"`
	} `json:"swapInfo"`
	Percent int `json:"percent"`
}

// Quote is a priced route. Raw carries the untouched response body because
// the swap-build endpoint wants the quote echoed back verbatim.
type Quote struct {
	InputMint      string          `json:"inputMint"`
	InAmount       string          `json:"inAmount"`
	OutputMint     string          `json:"outputMint"`
	OutAmount      string          `json:"outAmount"`
	PriceImpactPct string          `json:"priceImpactPct"`
	RoutePlan      []RouteStep     `json:"routePlan"`
	Raw            json.RawMessage `json:"-"`
}

// SwapBuild is an unsigned transaction built from a quote.
type SwapBuild struct {
	SwapTransaction      string `json:"swapTransaction"`
	LastValidBlockHeight uint64 `json:"lastValidBlockHeight"`
}

// SwapAPI is the external quoting/routing service boundary.
type SwapAPI interface {
	GetQuote(ctx context.Context, req QuoteRequest) (*Quote, error)
	BuildSwap(ctx context.Context, quote *Quote, owner, feeAccount string) (*SwapBuild, error)
}

// ClientConfig holds swap API client settings.
type ClientConfig struct {
	BaseURL            string
	RequestTimeout     time.Duration
	RateLimitPerSecond int
}

// Client talks to the aggregator's quote and swap endpoints.
type Client struct {
	cfg     ClientConfig
	client  *http.Client
	limiter *rate.Limiter
}

// NewClient creates a new swap API client.
func NewClient(cfg ClientConfig) *Client {
	timeout := cfg.RequestTimeout
	if timeout == 0 {
		timeout = 15 * time.Second
	}
	rps := cfg.RateLimitPerSecond
	if rps <= 0 {
		rps = 5
	}
	return &Client{
		cfg:     cfg,
		client:  &http.Client{Timeout: timeout},
		limiter: rate.NewLimiter(rate.Limit(rps), rps),
	}
}

// GetQuote requests a priced route for the given pair and amount.
func (c *Client) GetQuote(ctx context.Context, req QuoteRequest) (*Quote, error) {
	if err := c.limiter.Wait(ctx); err != nil {
		return nil, fmt.Errorf("rate limit wait: %w", err)
	}

	u, err := url.Parse(c.cfg.BaseURL + "/quote")
	if err != nil {
		return nil, fmt.Errorf("parse quote url: %w", err)
	}
	q := u.Query()
	q.Set("inputMint", req.InputMint)
	q.Set("outputMint", req.OutputMint)
	q.Set("amount", req.Amount.String())
	q.Set("slippageBps", strconv.Itoa(req.SlippageBps))
	if req.PlatformFeeBps > 0 {
		q.Set("platformFeeBps", strconv.Itoa(req.PlatformFeeBps))
	}
	u.RawQuery = q.Encode()

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodGet, u.String(), nil)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}

	resp, err := c.client.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("quote request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("quote API returned status %d", resp.StatusCode)
	}

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read quote response: %w", err)
	}
	var quote Quote
	if err := json.Unmarshal(data, &quote); err != nil {
		return nil, fmt.Errorf("decode quote response: %w", err)
	}
	quote.Raw = json.RawMessage(data)
	return &quote, nil
}

// swapRequest is the swap-build request body. The quote is echoed back
// verbatim; FeeAccount is omitted entirely when no fee recipient is
// configured.
type swapRequest struct {
	QuoteResponse json.RawMessage `json:"quoteResponse"`
	UserPublicKey string          `json:"userPublicKey"`
	FeeAccount    string          `json:"feeAccount,omitempty"`
	WrapUnwrapSOL bool            `json:"wrapAndUnwrapSol"`
}

// BuildSwap requests an unsigned transaction built against a quote.
func (c *Client) BuildSwap(ctx context.Context, quote *Quote, owner, feeAccount string) (*SwapBuild, error) {
	if err := c.limiter.Wait(ctx); err != nil {
		return nil, fmt.Errorf("rate limit wait: %w", err)
	}

	body, err := json.Marshal(swapRequest{
		QuoteResponse: quote.Raw,
		UserPublicKey: owner,
		FeeAccount:    feeAccount,
		WrapUnwrapSOL: true,
	})
	if err != nil {
		return nil, fmt.Errorf("marshal swap request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.cfg.BaseURL+"/swap", bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("swap request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("swap API returned status %d", resp.StatusCode)
	}

	var build SwapBuild
	if err := json.NewDecoder(resp.Body).Decode(&build); err != nil {
		return nil, fmt.Errorf("decode swap response: %w", err)
	}
	if build.SwapTransaction == "" {
		return nil, fmt.Errorf("swap API returned empty transaction")
	}
	return &build, nil
}
