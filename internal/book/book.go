// Package book holds the in-process active-order set and the dispatcher
// that matches price ticks against it.
//
// The book is a cache of the persistent store, kept approximately fresh by
// periodic reconciliation plus explicit add/remove from the API path. It is
// indexed by instrument so a price tick resolves to the orders that care
// about it without scanning the whole set.
package book

import (
	"sync"

	"github.com/shopspring/decimal"

	"github.com/ducnguyen96/swap-sentinel/internal/types"
)

// Watcher is the slice of the price feed the book drives: instruments are
// watched while at least one active order references them and unwatched
// when the last one goes.
type Watcher interface {
	Watch(mint string)
	Unwatch(mint string)
}

// Book is the concurrency-safe active-order set.
type Book struct {
	watcher Watcher

	mu     sync.RWMutex
	orders map[string]types.Order
	byMint map[string]map[string]struct{}
}

// NewBook creates an empty order book wired to the given watcher.
func NewBook(watcher Watcher) *Book {
	return &Book{
		watcher: watcher,
		orders:  make(map[string]types.Order),
		byMint:  make(map[string]map[string]struct{}),
	}
}

// Add inserts an order and watches its instrument if it is the first order
// referencing it. Idempotent by id: re-adding an existing order is a no-op
// and reports false.
func (b *Book) Add(o types.Order) bool {
	if o.ID == "" {
		return false
	}

	b.mu.Lock()
	if _, exists := b.orders[o.ID]; exists {
		b.mu.Unlock()
		return false
	}
	b.orders[o.ID] = o

	ids, watched := b.byMint[o.Mint]
	if !watched {
		ids = make(map[string]struct{})
		b.byMint[o.Mint] = ids
	}
	ids[o.ID] = struct{}{}
	b.mu.Unlock()

	if !watched {
		b.watcher.Watch(o.Mint)
	}
	return true
}

// Remove deletes an order and unwatches its instrument if it was the last
// active order referencing it. Reports whether the order was present.
func (b *Book) Remove(id string) bool {
	b.mu.Lock()
	o, exists := b.orders[id]
	if !exists {
		b.mu.Unlock()
		return false
	}
	delete(b.orders, id)

	lastForMint := false
	if ids, ok := b.byMint[o.Mint]; ok {
		delete(ids, id)
		if len(ids) == 0 {
			delete(b.byMint, o.Mint)
			lastForMint = true
		}
	}
	b.mu.Unlock()

	if lastForMint {
		b.watcher.Unwatch(o.Mint)
	}
	return true
}

// Get returns a copy of an order by id.
func (b *Book) Get(id string) (types.Order, bool) {
	b.mu.RLock()
	defer b.mu.RUnlock()
	o, ok := b.orders[id]
	return o, ok
}

// OrdersFor returns copies of all orders on the given instrument.
func (b *Book) OrdersFor(mint string) []types.Order {
	b.mu.RLock()
	defer b.mu.RUnlock()

	ids, ok := b.byMint[mint]
	if !ok {
		return nil
	}
	out := make([]types.Order, 0, len(ids))
	for id := range ids {
		out = append(out, b.orders[id])
	}
	return out
}

// IDs returns a snapshot of all order ids currently in the book.
func (b *Book) IDs() []string {
	b.mu.RLock()
	defer b.mu.RUnlock()
	out := make([]string, 0, len(b.orders))
	for id := range b.orders {
		out = append(out, id)
	}
	return out
}

// SetPeak records a trailing-stop order's advanced peak. The peak only
// moves up; a stale lower value is ignored.
func (b *Book) SetPeak(id string, peak decimal.Decimal) {
	b.mu.Lock()
	defer b.mu.Unlock()
	o, ok := b.orders[id]
	if !ok || peak.LessThanOrEqual(o.PeakPrice) {
		return
	}
	o.PeakPrice = peak
	b.orders[id] = o
}

// Len returns the number of orders in the book.
func (b *Book) Len() int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.orders)
}
