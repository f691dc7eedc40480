// Package executor builds unsigned swap transactions for triggered orders.
//
// The adapter only builds: signing and submission happen in the owner's
// wallet session, outside this system.
package executor

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/shopspring/decimal"

	"github.com/ducnguyen96/swap-sentinel/internal/chain"
	"github.com/ducnguyen96/swap-sentinel/internal/types"
)

var bpsDenominator = decimal.NewFromInt(10000)

// Builder is the execution boundary the dispatcher drives.
type Builder interface {
	// BuildBuy quotes and builds a native-coin -> token swap for the
	// order's stored amount.
	BuildBuy(ctx context.Context, o types.Order, price decimal.Decimal) (*types.SwapDescriptor, error)

	// BuildSell resolves the owner's live token balance and quotes and
	// builds a token -> native-coin swap for the full balance. A zero
	// balance fails with ErrNothingToSell, which is terminal.
	BuildSell(ctx context.Context, o types.Order, price decimal.Decimal) (*types.SwapDescriptor, error)
}

// Config holds adapter settings.
type Config struct {
	NativeMint     string
	NativeDecimals int

	// FeeBps and FeeRecipient configure the platform fee. With no
	// recipient the fee is omitted entirely, never charged at a
	// different rate.
	FeeBps       int
	FeeRecipient string
}

// Adapter implements Builder against the swap API and chain RPC.
type Adapter struct {
	cfg     Config
	swap    SwapAPI
	balance chain.BalanceLookup
	logger  *slog.Logger
}

// NewAdapter creates an executor adapter.
func NewAdapter(cfg Config, swap SwapAPI, balance chain.BalanceLookup, logger *slog.Logger) *Adapter {
	if logger == nil {
		logger = slog.Default()
	}
	if cfg.NativeDecimals <= 0 {
		cfg.NativeDecimals = 9
	}
	return &Adapter{
		cfg:     cfg,
		swap:    swap,
		balance: balance,
		logger:  logger,
	}
}

// feeBps returns the platform fee in basis points, zero when no recipient
// is configured.
func (a *Adapter) feeBps() int {
	if a.cfg.FeeRecipient == "" {
		return 0
	}
	return a.cfg.FeeBps
}

// slippageBps converts the order's percentage tolerance to the API's
// basis-point convention.
func slippageBps(pct decimal.Decimal) int {
	return int(pct.Mul(decimal.NewFromInt(100)).IntPart())
}

// BuildBuy builds a buy-leg swap: quote asset -> token.
func (a *Adapter) BuildBuy(ctx context.Context, o types.Order, price decimal.Decimal) (*types.SwapDescriptor, error) {
	// Order sizing is in whole native coins; the API wants the smallest
	// unit.
	amountIn := o.AmountIn.Shift(int32(a.cfg.NativeDecimals)).Truncate(0)
	if !amountIn.IsPositive() {
		return nil, fmt.Errorf("order %s: non-positive buy amount %s", o.ID, o.AmountIn)
	}

	return a.build(ctx, o, price, QuoteRequest{
		InputMint:      a.cfg.NativeMint,
		OutputMint:     o.Mint,
		Amount:         amountIn,
		SlippageBps:    slippageBps(o.SlippagePct),
		PlatformFeeBps: a.feeBps(),
	})
}

// BuildSell builds a sell-leg swap: token -> quote asset, for the owner's
// entire live balance.
func (a *Adapter) BuildSell(ctx context.Context, o types.Order, price decimal.Decimal) (*types.SwapDescriptor, error) {
	balance, err := a.balance.TokenBalance(ctx, o.Owner, o.Mint)
	if err != nil {
		return nil, fmt.Errorf("order %s: balance lookup for %s: %w", o.ID, o.Mint, err)
	}
	if !balance.IsPositive() {
		return nil, fmt.Errorf("order %s: %w: owner %s holds no %s", o.ID, types.ErrNothingToSell, o.Owner, o.Mint)
	}

	return a.build(ctx, o, price, QuoteRequest{
		InputMint:      o.Mint,
		OutputMint:     a.cfg.NativeMint,
		Amount:         balance,
		SlippageBps:    slippageBps(o.SlippagePct),
		PlatformFeeBps: a.feeBps(),
	})
}

func (a *Adapter) build(ctx context.Context, o types.Order, price decimal.Decimal, req QuoteRequest) (*types.SwapDescriptor, error) {
	quote, err := a.swap.GetQuote(ctx, req)
	if err != nil {
		return nil, fmt.Errorf("order %s: %w: %s -> %s: %v", o.ID, types.ErrQuoteFailed, req.InputMint, req.OutputMint, err)
	}

	build, err := a.swap.BuildSwap(ctx, quote, o.Owner, a.cfg.FeeRecipient)
	if err != nil {
		return nil, fmt.Errorf("order %s: %w: %v", o.ID, types.ErrSwapBuildFailed, err)
	}

	inAmount, err := decimal.NewFromString(quote.InAmount)
	if err != nil {
		return nil, fmt.Errorf("order %s: parse quote inAmount %q: %w", o.ID, quote.InAmount, err)
	}
	outAmount, err := decimal.NewFromString(quote.OutAmount)
	if err != nil {
		return nil, fmt.Errorf("order %s: parse quote outAmount %q: %w", o.ID, quote.OutAmount, err)
	}

	// priceImpactPct is informational; a missing value is not fatal.
	impact, _ := decimal.NewFromString(quote.PriceImpactPct)

	route := make([]string, 0, len(quote.RoutePlan))
	for _, step := range quote.RoutePlan {
		route = append(route, step.SwapInfo.Label)
	}

	desc := &types.SwapDescriptor{
		OrderID:        o.ID,
		Owner:          o.Owner,
		InputMint:      req.InputMint,
		OutputMint:     req.OutputMint,
		InAmount:       inAmount,
		OutAmount:      outAmount,
		Price:          price,
		PriceImpactPct: impact,
		PlatformFee:    a.platformFee(req, inAmount, outAmount),
		Route:          route,
		UnsignedTx:     build.SwapTransaction,
		QuotedAt:       time.Now(),
	}

	a.logger.Debug("swap built",
		"order_id", o.ID,
		"in_mint", desc.InputMint,
		"out_mint", desc.OutputMint,
		"in_amount", desc.InAmount,
		"out_amount", desc.OutAmount,
		"route", desc.Route,
	)

	return desc, nil
}

// platformFee computes the fee in quote-asset smallest units. The fee is
// taken on whichever leg is the native coin.
func (a *Adapter) platformFee(req QuoteRequest, inAmount, outAmount decimal.Decimal) decimal.Decimal {
	if req.PlatformFeeBps == 0 {
		return decimal.Zero
	}
	bps := decimal.NewFromInt(int64(req.PlatformFeeBps))
	if req.InputMint == a.cfg.NativeMint {
		return inAmount.Mul(bps).Div(bpsDenominator).Truncate(0)
	}
	return outAmount.Mul(bps).Div(bpsDenominator).Truncate(0)
}
