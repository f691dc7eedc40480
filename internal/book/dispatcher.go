package book

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"github.com/shopspring/decimal"

	"github.com/ducnguyen96/swap-sentinel/internal/evaluator"
	"github.com/ducnguyen96/swap-sentinel/internal/events"
	"github.com/ducnguyen96/swap-sentinel/internal/executor"
	"github.com/ducnguyen96/swap-sentinel/internal/metrics"
	"github.com/ducnguyen96/swap-sentinel/internal/store"
	"github.com/ducnguyen96/swap-sentinel/internal/types"
)

// PendingSignatureRef marks a fill awaiting the owner's wallet signature.
// Execution here means matched and handed off, never settled on-chain.
const PendingSignatureRef = "pending-signature"

// publisher is the slice of the event hub the dispatcher needs.
type publisher interface {
	Publish(ev events.Event)
}

// Config holds dispatcher settings.
type Config struct {
	// MaxAttempts bounds execution retries per trigger.
	MaxAttempts int
	// RetryUnit is the linear backoff unit: attempt n waits n * RetryUnit
	// before attempt n+1.
	RetryUnit time.Duration
	// ReconcileInterval is how often the book is reloaded from the store.
	// It is the maximum lag before an externally created or cancelled
	// order is picked up.
	ReconcileInterval time.Duration
	// ExecutionTimeout bounds one quote-and-build attempt.
	ExecutionTimeout time.Duration
}

// DefaultConfig returns default dispatcher settings.
func DefaultConfig() Config {
	return Config{
		MaxAttempts:       3,
		RetryUnit:         2 * time.Second,
		ReconcileInterval: 30 * time.Second,
		ExecutionTimeout:  30 * time.Second,
	}
}

// Dispatcher orchestrates the matching pipeline: price ticks in, evaluated
// against the book, triggered orders executed with bounded retry, terminal
// outcomes written to the store and surfaced as events.
type Dispatcher struct {
	cfg      Config
	book     *Book
	store    store.Store
	builder  executor.Builder
	events   publisher
	updates  <-chan types.PriceUpdate
	logger   *slog.Logger
	recorder *metrics.Recorder

	// inflight enforces at-most-one execution per order id regardless of
	// how many ticks arrive while a build is in progress.
	inflightMu sync.Mutex
	inflight   map[string]struct{}

	wg sync.WaitGroup
}

// NewDispatcher creates a dispatcher. updates is the feed subscription the
// tick loop consumes.
func NewDispatcher(cfg Config, b *Book, st store.Store, builder executor.Builder, hub publisher, updates <-chan types.PriceUpdate, logger *slog.Logger) *Dispatcher {
	if logger == nil {
		logger = slog.Default()
	}
	def := DefaultConfig()
	if cfg.MaxAttempts <= 0 {
		cfg.MaxAttempts = def.MaxAttempts
	}
	if cfg.RetryUnit <= 0 {
		cfg.RetryUnit = def.RetryUnit
	}
	if cfg.ReconcileInterval <= 0 {
		cfg.ReconcileInterval = def.ReconcileInterval
	}
	if cfg.ExecutionTimeout <= 0 {
		cfg.ExecutionTimeout = def.ExecutionTimeout
	}

	return &Dispatcher{
		cfg:      cfg,
		book:     b,
		store:    st,
		builder:  builder,
		events:   hub,
		updates:  updates,
		logger:   logger,
		recorder: metrics.NewRecorder(),
		inflight: make(map[string]struct{}),
	}
}

// Start runs an initial reconciliation and launches the tick and reconcile
// loops. It returns once the initial load is done.
func (d *Dispatcher) Start(ctx context.Context) {
	d.Reconcile(ctx)

	d.wg.Add(2)
	go d.tickLoop(ctx)
	go d.reconcileLoop(ctx)
}

// Wait blocks until all dispatcher goroutines, including in-flight
// executions, have finished.
func (d *Dispatcher) Wait() {
	d.wg.Wait()
}

// Submit persists a new order, adds it to the book and announces it.
func (d *Dispatcher) Submit(ctx context.Context, o types.Order) (types.Order, error) {
	persisted, err := d.store.CreateOrder(ctx, o)
	if err != nil {
		return types.Order{}, err
	}

	d.book.Add(persisted)
	d.recorder.RecordActiveOrders(d.book.Len())
	d.logger.Info("order submitted",
		"order_id", persisted.ID,
		"owner", persisted.Owner,
		"mint", persisted.Mint,
		"kind", persisted.Kind.String(),
	)

	d.events.Publish(events.Event{
		Type:    events.TypeCreated,
		OrderID: persisted.ID,
		Owner:   persisted.Owner,
		Mint:    persisted.Mint,
		Kind:    persisted.Kind.String(),
	})

	return persisted, nil
}

// Cancel transitions an active order to cancelled on behalf of its owner.
// An order whose execution is already in flight cannot be cancelled; the
// execution runs to completion and its terminal write wins.
func (d *Dispatcher) Cancel(ctx context.Context, id, owner string) (*types.Order, error) {
	if d.isInflight(id) {
		return nil, types.ErrExecutionInFlight
	}

	o, err := d.store.CancelOrder(ctx, id, owner)
	if err != nil {
		return nil, err
	}

	d.book.Remove(id)
	d.recorder.RecordActiveOrders(d.book.Len())
	d.recorder.RecordTerminal(types.StatusCancelled.String())
	d.logger.Info("order cancelled", "order_id", id, "owner", owner)

	d.events.Publish(events.Event{
		Type:    events.TypeCancelled,
		OrderID: id,
		Owner:   owner,
		Mint:    o.Mint,
		Kind:    o.Kind.String(),
	})

	return o, nil
}

func (d *Dispatcher) tickLoop(ctx context.Context) {
	defer d.wg.Done()

	for {
		select {
		case <-ctx.Done():
			return
		case upd, ok := <-d.updates:
			if !ok {
				return
			}
			d.OnPriceChange(ctx, upd)
		}
	}
}

// OnPriceChange evaluates every order on the updated instrument. Orders
// are independent: one order's failure or trigger does not block the rest
// of the tick.
func (d *Dispatcher) OnPriceChange(ctx context.Context, upd types.PriceUpdate) {
	orders := d.book.OrdersFor(upd.Mint)
	for _, o := range orders {
		d.evaluate(ctx, o, upd.Price)
	}
}

func (d *Dispatcher) evaluate(ctx context.Context, o types.Order, price decimal.Decimal) {
	d.recorder.RecordEvaluation(o.Kind.String())

	dec := evaluator.Evaluate(o, price)

	if dec.PeakAdvanced {
		d.book.SetPeak(o.ID, dec.NewPeak)
		d.persistPeak(o.ID, dec.NewPeak)
	}

	if !dec.Triggered {
		return
	}

	if !d.acquire(o.ID) {
		// A previous tick already put this order into execution.
		return
	}

	d.recorder.RecordTrigger(o.Kind.String())
	d.logger.Info("order triggered",
		"order_id", o.ID,
		"kind", o.Kind.String(),
		"mint", o.Mint,
		"price", price,
		"reason", dec.Reason,
	)

	d.wg.Add(1)
	go d.execute(ctx, o, price)
}

// persistPeak writes a new peak through to the store in the background. A
// failed write is logged, not fatal: the book keeps the higher in-memory
// peak for this process's lifetime, and reconciliation never lowers it.
func (d *Dispatcher) persistPeak(id string, peak decimal.Decimal) {
	d.wg.Add(1)
	go func() {
		defer d.wg.Done()
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := d.store.UpdatePeak(ctx, id, peak); err != nil {
			d.logger.Warn("peak persist failed", "order_id", id, "peak", peak, "err", err)
		}
	}()
}

// execute runs the bounded-retry execution state machine for one trigger.
// The in-flight guard is held for the whole run and released only after
// the terminal write.
func (d *Dispatcher) execute(ctx context.Context, o types.Order, price decimal.Decimal) {
	defer d.wg.Done()
	defer d.release(o.ID)

	timer := metrics.NewTimer()
	var lastErr error

	for attempt := 1; attempt <= d.cfg.MaxAttempts; attempt++ {
		swap, err := d.buildSwap(ctx, o, price)
		if err == nil {
			d.recorder.RecordExecutionAttempt("success")
			timer.ObserveExecution()
			d.finalizeFill(o, swap)
			return
		}
		lastErr = err
		d.recorder.RecordExecutionAttempt("error")

		if types.IsTerminalExecErr(err) {
			d.logger.Warn("execution failed terminally", "order_id", o.ID, "attempt", attempt, "err", err)
			break
		}

		// A cancelled process context is a shutdown, not a business
		// failure: no terminal write, the order stays active and the
		// next start's reconcile re-arms it.
		if ctx.Err() != nil {
			d.logger.Info("execution interrupted by shutdown, order stays active",
				"order_id", o.ID, "attempt", attempt)
			return
		}

		d.logger.Warn("execution attempt failed",
			"order_id", o.ID,
			"attempt", attempt,
			"max_attempts", d.cfg.MaxAttempts,
			"err", err,
		)

		if attempt < d.cfg.MaxAttempts {
			select {
			case <-ctx.Done():
				d.logger.Info("execution interrupted by shutdown, order stays active",
					"order_id", o.ID, "attempt", attempt)
				return
			case <-time.After(time.Duration(attempt) * d.cfg.RetryUnit):
			}
		}
	}

	d.finalizeFail(o, lastErr.Error())
}

func (d *Dispatcher) buildSwap(ctx context.Context, o types.Order, price decimal.Decimal) (*types.SwapDescriptor, error) {
	buildCtx, cancel := context.WithTimeout(ctx, d.cfg.ExecutionTimeout)
	defer cancel()

	if o.Kind.IsSell() {
		return d.builder.BuildSell(buildCtx, o, price)
	}
	return d.builder.BuildBuy(buildCtx, o, price)
}

// finalizeFill records the fill and hands the unsigned swap to the owner
// via the event stream. Terminal writes use a fresh context so a shutdown
// mid-execution does not lose the record.
func (d *Dispatcher) finalizeFill(o types.Order, swap *types.SwapDescriptor) {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	fill := types.Fill{
		Price:        swap.Price,
		ExecutionRef: PendingSignatureRef,
		Proceeds:     swap.OutAmount,
		Fee:          swap.PlatformFee,
	}
	if err := d.store.FillOrder(ctx, o.ID, fill); err != nil {
		// Resolved elsewhere between trigger and write. The store's guard
		// makes that resolution the one that counts; drop ours.
		if errors.Is(err, types.ErrOrderNotActive) || errors.Is(err, types.ErrOrderNotFound) {
			d.logger.Warn("fill superseded by earlier terminal write", "order_id", o.ID, "err", err)
		} else {
			d.logger.Error("fill write failed", "order_id", o.ID, "err", err)
		}
		d.book.Remove(o.ID)
		d.recorder.RecordActiveOrders(d.book.Len())
		return
	}

	d.book.Remove(o.ID)
	d.recorder.RecordActiveOrders(d.book.Len())
	d.recorder.RecordTerminal(types.StatusFilled.String())
	d.logger.Info("order filled",
		"order_id", o.ID,
		"owner", o.Owner,
		"price", swap.Price,
		"proceeds", swap.OutAmount,
		"fee", swap.PlatformFee,
	)

	d.events.Publish(events.Event{
		Type:    events.TypeTriggered,
		OrderID: o.ID,
		Owner:   o.Owner,
		Mint:    o.Mint,
		Kind:    o.Kind.String(),
		Swap:    swap,
	})
}

func (d *Dispatcher) finalizeFail(o types.Order, reason string) {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := d.store.FailOrder(ctx, o.ID, reason); err != nil {
		if errors.Is(err, types.ErrOrderNotActive) || errors.Is(err, types.ErrOrderNotFound) {
			d.logger.Warn("fail superseded by earlier terminal write", "order_id", o.ID, "err", err)
		} else {
			d.logger.Error("fail write failed", "order_id", o.ID, "err", err)
		}
		d.book.Remove(o.ID)
		d.recorder.RecordActiveOrders(d.book.Len())
		return
	}

	d.book.Remove(o.ID)
	d.recorder.RecordActiveOrders(d.book.Len())
	d.recorder.RecordTerminal(types.StatusFailed.String())
	d.logger.Warn("order failed", "order_id", o.ID, "owner", o.Owner, "reason", reason)

	d.events.Publish(events.Event{
		Type:    events.TypeFailed,
		OrderID: o.ID,
		Owner:   o.Owner,
		Mint:    o.Mint,
		Kind:    o.Kind.String(),
		Reason:  reason,
	})
}

func (d *Dispatcher) reconcileLoop(ctx context.Context) {
	defer d.wg.Done()

	ticker := time.NewTicker(d.cfg.ReconcileInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			d.Reconcile(ctx)
		}
	}
}

// Reconcile reloads the active set from the store: orders created by
// another path are added and their instruments watched, orders no longer
// active are dropped. Orders already in the book keep their in-memory
// state, so a peak that failed to persist is not rolled back here.
func (d *Dispatcher) Reconcile(ctx context.Context) {
	active, err := d.store.GetActiveOrders(ctx)
	if err != nil {
		d.logger.Error("reconcile: loading active orders failed", "err", err)
		return
	}

	activeIDs := make(map[string]struct{}, len(active))
	added := 0
	for _, o := range active {
		activeIDs[o.ID] = struct{}{}
		if d.book.Add(o) {
			added++
			d.events.Publish(events.Event{
				Type:    events.TypeCreated,
				OrderID: o.ID,
				Owner:   o.Owner,
				Mint:    o.Mint,
				Kind:    o.Kind.String(),
			})
		}
	}

	dropped := 0
	for _, id := range d.book.IDs() {
		if _, ok := activeIDs[id]; ok {
			continue
		}
		// An in-flight execution owns its order's removal.
		if d.isInflight(id) {
			continue
		}
		if d.book.Remove(id) {
			dropped++
		}
	}

	d.recorder.RecordReconcile()
	d.recorder.RecordActiveOrders(d.book.Len())

	if added > 0 || dropped > 0 {
		d.logger.Info("reconciled order book", "active", d.book.Len(), "added", added, "dropped", dropped)
	}
}

func (d *Dispatcher) acquire(id string) bool {
	d.inflightMu.Lock()
	defer d.inflightMu.Unlock()
	if _, busy := d.inflight[id]; busy {
		return false
	}
	d.inflight[id] = struct{}{}
	return true
}

func (d *Dispatcher) release(id string) {
	d.inflightMu.Lock()
	defer d.inflightMu.Unlock()
	delete(d.inflight, id)
}

func (d *Dispatcher) isInflight(id string) bool {
	d.inflightMu.Lock()
	defer d.inflightMu.Unlock()
	_, busy := d.inflight[id]
	return busy
}
