// Package chain provides read-only blockchain RPC lookups.
package chain

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/shopspring/decimal"
)

// BalanceLookup resolves an owner's token balance in the token's smallest
// unit. Implemented by Client; mocked in tests.
type BalanceLookup interface {
	TokenBalance(ctx context.Context, owner, mint string) (decimal.Decimal, error)
}

// ClientConfig holds RPC client settings.
type ClientConfig struct {
	RPCURL         string
	RequestTimeout time.Duration
}

// Client is a minimal JSON-RPC client for balance queries.
type Client struct {
	cfg    ClientConfig
	client *http.Client
}

// NewClient creates a new RPC client.
func NewClient(cfg ClientConfig) *Client {
	timeout := cfg.RequestTimeout
	if timeout == 0 {
		timeout = 10 * time.Second
	}
	return &Client{
		cfg:    cfg,
		client: &http.Client{Timeout: timeout},
	}
}

type rpcRequest struct {
	JSONRPC string `json:"jsonrpc"`
	ID      int    `json:"id"`
	Method  string `json:"method"`
	Params  []any  `json:"params"`
}

type rpcError struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
}

type tokenAccountsResponse struct {
	Result struct {
		Value []struct {
			Account struct {
				Data struct {
					Parsed struct {
						Info struct {
							TokenAmount struct {
								Amount string `json:"amount"`
							} `json:"tokenAmount"`
						} `json:"info"`
					} `json:"parsed"`
				} `json:"data"`
			} `json:"account"`
		} `json:"value"`
	} `json:"result"`
	Error *rpcError `json:"error"`
}

// TokenBalance sums the owner's token account balances for a mint,
// returned in the token's smallest unit. No accounts means zero balance,
// not an error; the caller decides whether zero is terminal.
func (c *Client) TokenBalance(ctx context.Context, owner, mint string) (decimal.Decimal, error) {
	reqBody := rpcRequest{
		JSONRPC: "2.0",
		ID:      1,
		Method:  "getTokenAccountsByOwner",
		Params: []any{
			owner,
			map[string]string{"mint": mint},
			map[string]string{"encoding": "jsonParsed"},
		},
	}

	payload, err := json.Marshal(reqBody)
	if err != nil {
		return decimal.Zero, fmt.Errorf("marshal rpc request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.cfg.RPCURL, bytes.NewReader(payload))
	if err != nil {
		return decimal.Zero, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.client.Do(req)
	if err != nil {
		return decimal.Zero, fmt.Errorf("rpc request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return decimal.Zero, fmt.Errorf("rpc returned status %d", resp.StatusCode)
	}

	var body tokenAccountsResponse
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		return decimal.Zero, fmt.Errorf("decode rpc response: %w", err)
	}
	if body.Error != nil {
		return decimal.Zero, fmt.Errorf("rpc error %d: %s", body.Error.Code, body.Error.Message)
	}

	total := decimal.Zero
	for _, acct := range body.Result.Value {
		amount, err := decimal.NewFromString(acct.Account.Data.Parsed.Info.TokenAmount.Amount)
		if err != nil {
			return decimal.Zero, fmt.Errorf("parse token amount %q: %w", acct.Account.Data.Parsed.Info.TokenAmount.Amount, err)
		}
		total = total.Add(amount)
	}
	return total, nil
}
