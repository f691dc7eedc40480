package chain

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/shopspring/decimal"
)

func newRPCServer(t *testing.T, handler http.HandlerFunc) *Client {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)
	return NewClient(ClientConfig{RPCURL: srv.URL, RequestTimeout: 2 * time.Second})
}

func TestTokenBalanceSumsAccounts(t *testing.T) {
	client := newRPCServer(t, func(w http.ResponseWriter, r *http.Request) {
		var req rpcRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			t.Errorf("decode request: %v", err)
		}
		if req.Method != "getTokenAccountsByOwner" {
			t.Errorf("method = %s", req.Method)
		}
		_, _ = w.Write([]byte(`{"result": {"value": [
			{"account": {"data": {"parsed": {"info": {"tokenAmount": {"amount": "1000000"}}}}}},
			{"account": {"data": {"parsed": {"info": {"tokenAmount": {"amount": "500000"}}}}}}
		]}}`))
	})

	bal, err := client.TokenBalance(context.Background(), "owner", "mint")
	if err != nil {
		t.Fatalf("TokenBalance: %v", err)
	}
	if !bal.Equal(decimal.RequireFromString("1500000")) {
		t.Errorf("balance = %s, want 1500000", bal)
	}
}

func TestTokenBalanceNoAccounts(t *testing.T) {
	client := newRPCServer(t, func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte(`{"result": {"value": []}}`))
	})

	bal, err := client.TokenBalance(context.Background(), "owner", "mint")
	if err != nil {
		t.Fatalf("no accounts must not be an error: %v", err)
	}
	if !bal.IsZero() {
		t.Errorf("balance = %s, want 0", bal)
	}
}

func TestTokenBalanceRPCError(t *testing.T) {
	client := newRPCServer(t, func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte(`{"error": {"code": -32602, "message": "invalid params"}}`))
	})

	if _, err := client.TokenBalance(context.Background(), "owner", "mint"); err == nil {
		t.Fatal("rpc error body should surface as an error")
	}
}

func TestTokenBalanceHTTPError(t *testing.T) {
	client := newRPCServer(t, func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	})

	if _, err := client.TokenBalance(context.Background(), "owner", "mint"); err == nil {
		t.Fatal("non-200 status should be an error")
	}
}
