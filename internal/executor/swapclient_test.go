package executor

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"
)

func newSwapServer(t *testing.T, handler http.HandlerFunc) *Client {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)
	return NewClient(ClientConfig{
		BaseURL:            srv.URL,
		RequestTimeout:     2 * time.Second,
		RateLimitPerSecond: 1000,
	})
}

const quoteBody = `{
	"inputMint": "native",
	"inAmount": "1500000000",
	"outputMint": "mintA",
	"outAmount": "123456789",
	"priceImpactPct": "0.0015",
	"routePlan": [{"swapInfo": {"label": "Raydium"}, "percent": 100}]
}`

func TestGetQuote(t *testing.T) {
	var gotQuery map[string][]string
	client := newSwapServer(t, func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/quote" {
			t.Errorf("path = %s", r.URL.Path)
		}
		gotQuery = r.URL.Query()
		_, _ = w.Write([]byte(quoteBody))
	})

	quote, err := client.GetQuote(context.Background(), QuoteRequest{
		InputMint:      "native",
		OutputMint:     "mintA",
		Amount:         d("1500000000"),
		SlippageBps:    50,
		PlatformFeeBps: 85,
	})
	if err != nil {
		t.Fatalf("GetQuote: %v", err)
	}

	if gotQuery["amount"][0] != "1500000000" || gotQuery["slippageBps"][0] != "50" {
		t.Errorf("query = %v", gotQuery)
	}
	if gotQuery["platformFeeBps"][0] != "85" {
		t.Errorf("platformFeeBps = %v", gotQuery["platformFeeBps"])
	}
	if quote.OutAmount != "123456789" {
		t.Errorf("outAmount = %s", quote.OutAmount)
	}
	if len(quote.Raw) == 0 {
		t.Error("raw quote body must be retained for the swap-build echo")
	}
}

func TestGetQuoteOmitsZeroFee(t *testing.T) {
	var query map[string][]string
	client := newSwapServer(t, func(w http.ResponseWriter, r *http.Request) {
		query = r.URL.Query()
		_, _ = w.Write([]byte(quoteBody))
	})

	_, err := client.GetQuote(context.Background(), QuoteRequest{
		InputMint:  "native",
		OutputMint: "mintA",
		Amount:     d("1"),
	})
	if err != nil {
		t.Fatal(err)
	}
	if _, present := query["platformFeeBps"]; present {
		t.Error("zero fee must omit the platformFeeBps parameter entirely")
	}
}

func TestBuildSwap(t *testing.T) {
	var gotBody swapRequest
	client := newSwapServer(t, func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/swap" {
			t.Errorf("path = %s", r.URL.Path)
		}
		if err := json.NewDecoder(r.Body).Decode(&gotBody); err != nil {
			t.Errorf("decode body: %v", err)
		}
		_, _ = w.Write([]byte(`{"swapTransaction": "AQIDBA==", "lastValidBlockHeight": 999}`))
	})

	quote := &Quote{Raw: json.RawMessage(quoteBody)}
	build, err := client.BuildSwap(context.Background(), quote, "owner-pubkey", "fee-account")
	if err != nil {
		t.Fatalf("BuildSwap: %v", err)
	}

	if gotBody.UserPublicKey != "owner-pubkey" || gotBody.FeeAccount != "fee-account" {
		t.Errorf("request body = %+v", gotBody)
	}
	if build.SwapTransaction != "AQIDBA==" || build.LastValidBlockHeight != 999 {
		t.Errorf("build = %+v", build)
	}
}

func TestBuildSwapEmptyTransaction(t *testing.T) {
	client := newSwapServer(t, func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte(`{"swapTransaction": ""}`))
	})

	if _, err := client.BuildSwap(context.Background(), &Quote{Raw: []byte(`{}`)}, "owner", ""); err == nil {
		t.Fatal("empty transaction should be an error")
	}
}

func TestSwapAPIStatusError(t *testing.T) {
	client := newSwapServer(t, func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	})

	if _, err := client.GetQuote(context.Background(), QuoteRequest{Amount: d("1")}); err == nil {
		t.Fatal("non-200 quote should be an error")
	}
	if _, err := client.BuildSwap(context.Background(), &Quote{Raw: []byte(`{}`)}, "o", ""); err == nil {
		t.Fatal("non-200 swap should be an error")
	}
}
