package types

import (
	"testing"

	"github.com/shopspring/decimal"
)

func d(s string) decimal.Decimal {
	return decimal.RequireFromString(s)
}

func TestNewLimitBuy(t *testing.T) {
	o, err := NewLimitBuy("owner1", "mintA", d("1.5"), d("0.01"), d("0.5"))
	if err != nil {
		t.Fatalf("NewLimitBuy: %v", err)
	}
	if o.Kind != KindLimitBuy {
		t.Errorf("kind = %v, want LIMIT_BUY", o.Kind)
	}
	if o.Status != StatusActive {
		t.Errorf("status = %v, want ACTIVE", o.Status)
	}
	if o.Kind.IsSell() {
		t.Error("LimitBuy should not be a sell kind")
	}
}

func TestConstructorValidation(t *testing.T) {
	tests := []struct {
		name string
		fn   func() (Order, error)
	}{
		{"limit buy zero amount", func() (Order, error) {
			return NewLimitBuy("o", "m", decimal.Zero, d("0.01"), decimal.Zero)
		}},
		{"limit buy zero target", func() (Order, error) {
			return NewLimitBuy("o", "m", d("1"), decimal.Zero, decimal.Zero)
		}},
		{"limit buy no owner", func() (Order, error) {
			return NewLimitBuy("", "m", d("1"), d("0.01"), decimal.Zero)
		}},
		{"take profit missing entry", func() (Order, error) {
			return NewTakeProfit("o", "m", decimal.Zero, d("2"), decimal.Zero)
		}},
		{"take profit missing multiplier", func() (Order, error) {
			return NewTakeProfit("o", "m", d("1"), decimal.Zero, decimal.Zero)
		}},
		{"stop loss negative target", func() (Order, error) {
			return NewStopLoss("o", "m", d("-1"), decimal.Zero)
		}},
		{"trailing stop zero trail", func() (Order, error) {
			return NewTrailingStop("o", "m", decimal.Zero, decimal.Zero)
		}},
		{"trailing stop trail >= 100", func() (Order, error) {
			return NewTrailingStop("o", "m", d("100"), decimal.Zero)
		}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := tt.fn(); err == nil {
				t.Error("expected ErrInvalidOrderParams, got nil")
			}
		})
	}
}

func TestSellKinds(t *testing.T) {
	sellKinds := []OrderKind{KindTakeProfit, KindStopLoss, KindTrailingStop}
	for _, k := range sellKinds {
		if !k.IsSell() {
			t.Errorf("%v should be a sell kind", k)
		}
	}
}

func TestStatusIsTerminal(t *testing.T) {
	if StatusActive.IsTerminal() {
		t.Error("ACTIVE must not be terminal")
	}
	for _, s := range []OrderStatus{StatusFilled, StatusCancelled, StatusFailed} {
		if !s.IsTerminal() {
			t.Errorf("%v must be terminal", s)
		}
	}
}

func TestIsTerminalExecErr(t *testing.T) {
	if !IsTerminalExecErr(ErrNothingToSell) {
		t.Error("ErrNothingToSell must be terminal")
	}
	if IsTerminalExecErr(ErrQuoteFailed) {
		t.Error("ErrQuoteFailed must be retryable")
	}
}
