// Package evaluator implements the pure trigger-decision logic.
//
// Evaluate is side-effect free: it reports what should happen for one order
// at one price observation, and the dispatcher applies the consequences
// (peak write-through, execution, terminal writes).
package evaluator

import (
	"fmt"

	"github.com/shopspring/decimal"

	"github.com/ducnguyen96/swap-sentinel/internal/types"
)

var hundred = decimal.NewFromInt(100)

// Decision is the outcome of evaluating one order against one price.
type Decision struct {
	Triggered bool
	Reason    string

	// PeakAdvanced is set when a TrailingStop order observed a new high
	// this tick. NewPeak carries the advanced value and must be applied
	// to the order (and persisted best-effort) by the caller.
	PeakAdvanced bool
	NewPeak      decimal.Decimal
}

// Evaluate decides whether an order's condition is satisfied by price.
//
// Malformed or missing kind-specific parameters mean the order never
// triggers: orders are rehydrated from the store, so the constructor
// guarantees in types do not cover every path and a bad row must sit
// inert rather than break the tick loop.
func Evaluate(o types.Order, price decimal.Decimal) Decision {
	if !price.IsPositive() {
		return Decision{}
	}

	switch o.Kind {
	case types.KindLimitBuy:
		return evalPriceAtOrBelow(o.TargetPrice, price)
	case types.KindStopLoss:
		return evalPriceAtOrBelow(o.TargetPrice, price)
	case types.KindTakeProfit:
		return evalTakeProfit(o, price)
	case types.KindTrailingStop:
		return evalTrailingStop(o, price)
	default:
		return Decision{}
	}
}

// evalPriceAtOrBelow covers LimitBuy and StopLoss: the boundary is closed,
// price exactly at target triggers.
func evalPriceAtOrBelow(target, price decimal.Decimal) Decision {
	if !target.IsPositive() {
		return Decision{}
	}
	if price.LessThanOrEqual(target) {
		return Decision{
			Triggered: true,
			Reason:    fmt.Sprintf("price %s <= target %s", price, target),
		}
	}
	return Decision{}
}

func evalTakeProfit(o types.Order, price decimal.Decimal) Decision {
	// Both fields are required; either missing means no trigger, ever.
	if !o.EntryPrice.IsPositive() || !o.TargetMultiplier.IsPositive() {
		return Decision{}
	}
	target := o.EntryPrice.Mul(o.TargetMultiplier)
	if price.GreaterThanOrEqual(target) {
		return Decision{
			Triggered: true,
			Reason:    fmt.Sprintf("price %s >= entry %s x %s = %s", price, o.EntryPrice, o.TargetMultiplier, target),
		}
	}
	return Decision{}
}

func evalTrailingStop(o types.Order, price decimal.Decimal) Decision {
	if !o.TrailPercent.IsPositive() || o.TrailPercent.GreaterThanOrEqual(hundred) {
		return Decision{}
	}

	// The peak updates before the trigger check, on the same tick. A new
	// high can never itself trigger: price == peak implies price is above
	// any threshold strictly below peak.
	peak := o.PeakPrice
	var dec Decision
	if price.GreaterThan(peak) {
		peak = price
		dec.PeakAdvanced = true
		dec.NewPeak = price
	}

	if !peak.IsPositive() {
		return dec
	}

	threshold := peak.Mul(hundred.Sub(o.TrailPercent)).Div(hundred)
	if price.LessThanOrEqual(threshold) {
		dec.Triggered = true
		dec.Reason = fmt.Sprintf("price %s <= peak %s - %s%% = %s", price, peak, o.TrailPercent, threshold)
	}
	return dec
}
