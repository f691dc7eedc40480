// Package types defines shared types used across the order engine.
package types

import (
	"time"

	"github.com/shopspring/decimal"
)

// OrderKind identifies the trigger condition family of an order.
// The set is closed: every kind has a constructor that takes exactly the
// parameters that kind requires, so a well-formed Order never carries a
// missing condition parameter.
type OrderKind int

const (
	KindLimitBuy OrderKind = iota
	KindTakeProfit
	KindStopLoss
	KindTrailingStop
)

func (k OrderKind) String() string {
	switch k {
	case KindLimitBuy:
		return "LIMIT_BUY"
	case KindTakeProfit:
		return "TAKE_PROFIT"
	case KindStopLoss:
		return "STOP_LOSS"
	case KindTrailingStop:
		return "TRAILING_STOP"
	default:
		return "UNKNOWN"
	}
}

// IsSell returns true for kinds that close a position (token -> quote asset).
// The sell amount is never stored on the order; it is resolved from the live
// on-chain balance at execution time.
func (k OrderKind) IsSell() bool {
	switch k {
	case KindTakeProfit, KindStopLoss, KindTrailingStop:
		return true
	default:
		return false
	}
}

// OrderStatus represents the lifecycle state of an order.
// Transitions are one-way: active -> {filled | cancelled | failed}.
type OrderStatus int

const (
	StatusActive OrderStatus = iota
	StatusFilled
	StatusCancelled
	StatusFailed
)

func (s OrderStatus) String() string {
	switch s {
	case StatusActive:
		return "ACTIVE"
	case StatusFilled:
		return "FILLED"
	case StatusCancelled:
		return "CANCELLED"
	case StatusFailed:
		return "FAILED"
	default:
		return "UNKNOWN"
	}
}

// IsTerminal returns true once the order can no longer change state.
func (s OrderStatus) IsTerminal() bool {
	return s != StatusActive
}

// Order is the central entity: a conditional instruction to swap a token
// against the chain's native coin once a price condition is met.
type Order struct {
	ID    string
	Owner string // wallet address, string identity only
	Mint  string // token address being traded against the native coin
	Kind  OrderKind

	// AmountIn is the trade size in the native coin, buy kinds only.
	// Sell kinds resolve their size from the live balance at execution.
	AmountIn decimal.Decimal

	// Kind-specific condition parameters. Only the fields the kind's
	// constructor sets are meaningful; the evaluator treats anything
	// else as "never triggers".
	TargetPrice      decimal.Decimal // LimitBuy, StopLoss
	EntryPrice       decimal.Decimal // TakeProfit
	TargetMultiplier decimal.Decimal // TakeProfit
	TrailPercent     decimal.Decimal // TrailingStop

	// PeakPrice is the highest price observed since a TrailingStop order
	// became active. Monotonically non-decreasing while active, persisted
	// on every new peak so a restart does not re-arm the stop low.
	PeakPrice decimal.Decimal

	// SlippagePct is applied to every quote request for this order,
	// expressed as a percentage (0.5 = 0.5%).
	SlippagePct decimal.Decimal

	Status     OrderStatus
	FailReason string
	CreatedAt  time.Time
	UpdatedAt  time.Time
}

// NewLimitBuy builds an order that buys when price <= target.
func NewLimitBuy(owner, mint string, amountIn, targetPrice, slippagePct decimal.Decimal) (Order, error) {
	if owner == "" || mint == "" {
		return Order{}, ErrInvalidOrderParams
	}
	if !amountIn.IsPositive() || !targetPrice.IsPositive() {
		return Order{}, ErrInvalidOrderParams
	}
	return Order{
		Owner:       owner,
		Mint:        mint,
		Kind:        KindLimitBuy,
		AmountIn:    amountIn,
		TargetPrice: targetPrice,
		SlippagePct: slippagePct,
		Status:      StatusActive,
	}, nil
}

// NewTakeProfit builds an order that sells when
// price >= entry * multiplier. Both parameters are required.
func NewTakeProfit(owner, mint string, entryPrice, targetMultiplier, slippagePct decimal.Decimal) (Order, error) {
	if owner == "" || mint == "" {
		return Order{}, ErrInvalidOrderParams
	}
	if !entryPrice.IsPositive() || !targetMultiplier.IsPositive() {
		return Order{}, ErrInvalidOrderParams
	}
	return Order{
		Owner:            owner,
		Mint:             mint,
		Kind:             KindTakeProfit,
		EntryPrice:       entryPrice,
		TargetMultiplier: targetMultiplier,
		SlippagePct:      slippagePct,
		Status:           StatusActive,
	}, nil
}

// NewStopLoss builds an order that sells when price <= target.
func NewStopLoss(owner, mint string, targetPrice, slippagePct decimal.Decimal) (Order, error) {
	if owner == "" || mint == "" {
		return Order{}, ErrInvalidOrderParams
	}
	if !targetPrice.IsPositive() {
		return Order{}, ErrInvalidOrderParams
	}
	return Order{
		Owner:       owner,
		Mint:        mint,
		Kind:        KindStopLoss,
		TargetPrice: targetPrice,
		SlippagePct: slippagePct,
		Status:      StatusActive,
	}, nil
}

// NewTrailingStop builds an order that sells when price falls trailPercent
// below the highest price seen since activation.
func NewTrailingStop(owner, mint string, trailPercent, slippagePct decimal.Decimal) (Order, error) {
	if owner == "" || mint == "" {
		return Order{}, ErrInvalidOrderParams
	}
	if !trailPercent.IsPositive() || trailPercent.GreaterThanOrEqual(decimal.NewFromInt(100)) {
		return Order{}, ErrInvalidOrderParams
	}
	return Order{
		Owner:        owner,
		Mint:         mint,
		Kind:         KindTrailingStop,
		TrailPercent: trailPercent,
		SlippagePct:  slippagePct,
		Status:       StatusActive,
	}, nil
}

// PriceObservation is the latest known state of a watched instrument.
// Ephemeral: held only in memory, never the system of record.
type PriceObservation struct {
	Mint       string
	Symbol     string
	Price      decimal.Decimal
	Unindexed  bool // present in a request but absent from the response
	ObservedAt time.Time
}

// PriceUpdate is a change notification emitted by the feed. Fired on the
// first observation for an instrument and on every subsequent change.
type PriceUpdate struct {
	Mint   string
	Price  decimal.Decimal
	Symbol string
	At     time.Time
	Source string // "poll" or "push"
}

// SwapDescriptor is a fully-built but unsigned swap, handed to the order's
// owner for wallet signature. This system never signs or submits it.
type SwapDescriptor struct {
	OrderID    string
	Owner      string
	InputMint  string
	OutputMint string

	// InAmount and OutAmount are in each asset's smallest unit.
	InAmount  decimal.Decimal
	OutAmount decimal.Decimal

	// Price is the observation that triggered the order.
	Price decimal.Decimal

	PriceImpactPct decimal.Decimal
	PlatformFee    decimal.Decimal // in quote-asset terms; zero if no fee recipient
	Route          []string        // ordered hop labels, observability only

	// UnsignedTx is the serialized transaction payload awaiting signature.
	UnsignedTx string
	QuotedAt   time.Time
}

// Fill captures the terminal record of a matched order. ExecutionRef is a
// placeholder until the external wallet session signs and submits; "filled"
// means matched and handed off, not settled on-chain.
type Fill struct {
	Price        decimal.Decimal
	ExecutionRef string
	Proceeds     decimal.Decimal
	Fee          decimal.Decimal
}
