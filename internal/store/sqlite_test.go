package store

import (
	"bytes"
	"context"
	"errors"
	"io"
	"log/slog"
	"path/filepath"
	"strings"
	"testing"

	"github.com/shopspring/decimal"

	"github.com/ducnguyen96/swap-sentinel/internal/types"
)

func d(s string) decimal.Decimal {
	return decimal.RequireFromString(s)
}

func newTestStore(t *testing.T) *SQLiteStore {
	t.Helper()
	s, err := NewSQLiteStore(filepath.Join(t.TempDir(), "orders.db"), slog.New(slog.NewTextHandler(io.Discard, nil)))
	if err != nil {
		t.Fatalf("open store: %v", err)
	}
	t.Cleanup(func() { _ = s.Close() })
	return s
}

func createLimitBuy(t *testing.T, s *SQLiteStore, owner string) types.Order {
	t.Helper()
	o, err := types.NewLimitBuy(owner, "mintA", d("1.5"), d("0.01"), d("0.5"))
	if err != nil {
		t.Fatal(err)
	}
	created, err := s.CreateOrder(context.Background(), o)
	if err != nil {
		t.Fatalf("create order: %v", err)
	}
	return created
}

func TestCreateAndGet(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	created := createLimitBuy(t, s, "owner1")
	if created.ID == "" {
		t.Fatal("store must assign an id")
	}

	got, err := s.GetOrder(ctx, created.ID)
	if err != nil {
		t.Fatalf("get order: %v", err)
	}
	if got.Owner != "owner1" || got.Mint != "mintA" || got.Kind != types.KindLimitBuy {
		t.Errorf("round trip mismatch: %+v", got)
	}
	if !got.AmountIn.Equal(d("1.5")) || !got.TargetPrice.Equal(d("0.01")) {
		t.Errorf("decimal fields mismatch: %+v", got)
	}
	if got.Status != types.StatusActive {
		t.Errorf("status = %v, want ACTIVE", got.Status)
	}
}

func TestGetOrderNotFound(t *testing.T) {
	s := newTestStore(t)
	if _, err := s.GetOrder(context.Background(), "missing"); !errors.Is(err, types.ErrOrderNotFound) {
		t.Errorf("err = %v, want ErrOrderNotFound", err)
	}
}

func TestGetActiveOrders(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	o1 := createLimitBuy(t, s, "owner1")
	o2 := createLimitBuy(t, s, "owner2")
	if err := s.FailOrder(ctx, o2.ID, "test"); err != nil {
		t.Fatal(err)
	}

	active, err := s.GetActiveOrders(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if len(active) != 1 || active[0].ID != o1.ID {
		t.Errorf("active = %+v, want only %s", active, o1.ID)
	}
}

func TestCancelOrder(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	o := createLimitBuy(t, s, "owner1")

	cancelled, err := s.CancelOrder(ctx, o.ID, "owner1")
	if err != nil {
		t.Fatalf("cancel: %v", err)
	}
	if cancelled.Status != types.StatusCancelled {
		t.Errorf("status = %v, want CANCELLED", cancelled.Status)
	}

	// Second cancel must fail: terminal states are immutable.
	if _, err := s.CancelOrder(ctx, o.ID, "owner1"); !errors.Is(err, types.ErrOrderNotActive) {
		t.Errorf("double cancel err = %v, want ErrOrderNotActive", err)
	}
}

func TestCancelWrongOwner(t *testing.T) {
	s := newTestStore(t)
	o := createLimitBuy(t, s, "owner1")

	if _, err := s.CancelOrder(context.Background(), o.ID, "intruder"); !errors.Is(err, types.ErrOrderNotActive) {
		t.Errorf("cancel by non-owner err = %v, want ErrOrderNotActive", err)
	}
}

func TestFillOrder(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	o := createLimitBuy(t, s, "owner1")
	fill := types.Fill{
		Price:        d("0.0095"),
		ExecutionRef: "pending-signature",
		Proceeds:     d("157894736"),
		Fee:          d("12750000"),
	}
	if err := s.FillOrder(ctx, o.ID, fill); err != nil {
		t.Fatalf("fill: %v", err)
	}

	got, err := s.GetOrder(ctx, o.ID)
	if err != nil {
		t.Fatal(err)
	}
	if got.Status != types.StatusFilled {
		t.Errorf("status = %v, want FILLED", got.Status)
	}
}

func TestTerminalWritesAreFirstWriteWins(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	// Cancel lands first: the fill must be rejected.
	o := createLimitBuy(t, s, "owner1")
	if _, err := s.CancelOrder(ctx, o.ID, "owner1"); err != nil {
		t.Fatal(err)
	}
	err := s.FillOrder(ctx, o.ID, types.Fill{Price: d("1"), Proceeds: d("1"), Fee: decimal.Zero})
	if !errors.Is(err, types.ErrOrderNotActive) {
		t.Errorf("fill after cancel err = %v, want ErrOrderNotActive", err)
	}

	// Fill lands first: the cancel must be rejected.
	o2 := createLimitBuy(t, s, "owner1")
	if err := s.FillOrder(ctx, o2.ID, types.Fill{Price: d("1"), Proceeds: d("1"), Fee: decimal.Zero}); err != nil {
		t.Fatal(err)
	}
	if _, err := s.CancelOrder(ctx, o2.ID, "owner1"); !errors.Is(err, types.ErrOrderNotActive) {
		t.Errorf("cancel after fill err = %v, want ErrOrderNotActive", err)
	}
}

func TestFailOrderCapturesReason(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	o := createLimitBuy(t, s, "owner1")
	if err := s.FailOrder(ctx, o.ID, "no token balance to sell"); err != nil {
		t.Fatal(err)
	}

	got, _ := s.GetOrder(ctx, o.ID)
	if got.Status != types.StatusFailed {
		t.Errorf("status = %v, want FAILED", got.Status)
	}
	if got.FailReason != "no token balance to sell" {
		t.Errorf("fail_reason = %q", got.FailReason)
	}
}

func TestUpdatePeak(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	o, err := types.NewTrailingStop("owner1", "mintA", d("15"), d("0.5"))
	if err != nil {
		t.Fatal(err)
	}
	created, err := s.CreateOrder(ctx, o)
	if err != nil {
		t.Fatal(err)
	}

	if err := s.UpdatePeak(ctx, created.ID, d("1.5")); err != nil {
		t.Fatalf("update peak: %v", err)
	}

	got, _ := s.GetOrder(ctx, created.ID)
	if !got.PeakPrice.Equal(d("1.5")) {
		t.Errorf("peak = %s, want 1.5", got.PeakPrice)
	}

	// Peak writes stop once the order resolves.
	if err := s.FailOrder(ctx, created.ID, "test"); err != nil {
		t.Fatal(err)
	}
	if err := s.UpdatePeak(ctx, created.ID, d("2.0")); !errors.Is(err, types.ErrOrderNotActive) {
		t.Errorf("peak write on resolved order err = %v, want ErrOrderNotActive", err)
	}
}

func TestPeakSurvivesReload(t *testing.T) {
	// A persisted peak must come back on GetActiveOrders so a restart does
	// not re-arm a trailing stop at a stale level.
	s := newTestStore(t)
	ctx := context.Background()

	o, _ := types.NewTrailingStop("owner1", "mintA", d("10"), decimal.Zero)
	created, err := s.CreateOrder(ctx, o)
	if err != nil {
		t.Fatal(err)
	}
	if err := s.UpdatePeak(ctx, created.ID, d("3.33")); err != nil {
		t.Fatal(err)
	}

	active, err := s.GetActiveOrders(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if len(active) != 1 || !active[0].PeakPrice.Equal(d("3.33")) {
		t.Errorf("reloaded peak = %+v", active)
	}
}

func TestCountActive(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	createLimitBuy(t, s, "owner1")
	createLimitBuy(t, s, "owner1")
	o3 := createLimitBuy(t, s, "owner1")
	createLimitBuy(t, s, "owner2")

	if err := s.FailOrder(ctx, o3.ID, "test"); err != nil {
		t.Fatal(err)
	}

	n, err := s.CountActive(ctx, "owner1")
	if err != nil {
		t.Fatal(err)
	}
	if n != 2 {
		t.Errorf("count = %d, want 2", n)
	}

	n, _ = s.CountActive(ctx, "nobody")
	if n != 0 {
		t.Errorf("count for unknown owner = %d, want 0", n)
	}
}

func TestCorruptDecimalColumnLogsAndZeroes(t *testing.T) {
	var logged bytes.Buffer
	s, err := NewSQLiteStore(filepath.Join(t.TempDir(), "orders.db"),
		slog.New(slog.NewTextHandler(&logged, nil)))
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { _ = s.Close() })
	ctx := context.Background()

	o := createLimitBuy(t, s, "owner1")
	if _, err := s.db.Exec(`UPDATE orders SET target_price = 'garbage' WHERE id = ?`, o.ID); err != nil {
		t.Fatal(err)
	}

	got, err := s.GetOrder(ctx, o.ID)
	if err != nil {
		t.Fatalf("get order with corrupt column: %v", err)
	}
	if !got.TargetPrice.IsZero() {
		t.Errorf("target_price = %s, want zero", got.TargetPrice)
	}
	if !got.AmountIn.Equal(d("1.5")) {
		t.Errorf("healthy column disturbed: amount_in = %s", got.AmountIn)
	}
	if out := logged.String(); !strings.Contains(out, "corrupt decimal column") ||
		!strings.Contains(out, "target_price") {
		t.Errorf("corrupt column not surfaced in log:\n%s", out)
	}

	// The row still comes back from the active scan instead of aborting it.
	active, err := s.GetActiveOrders(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if len(active) != 1 {
		t.Fatalf("active = %d, want 1", len(active))
	}
}
