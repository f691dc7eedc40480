// Package store provides persistent storage for orders.
//
// The store is the system of record; the in-memory order book is a cache of
// it. All terminal transitions are guarded so that an order can be resolved
// by at most one writer: whichever of cancel/fill/fail commits first wins,
// later writers get ErrOrderNotActive.
package store

import (
	"context"

	"github.com/shopspring/decimal"

	"github.com/ducnguyen96/swap-sentinel/internal/types"
)

// Store defines the persistence interface for orders.
type Store interface {
	// CreateOrder persists a new order and assigns its id.
	CreateOrder(ctx context.Context, o types.Order) (types.Order, error)

	// GetOrder returns an order by id, or ErrOrderNotFound.
	GetOrder(ctx context.Context, id string) (*types.Order, error)

	// GetActiveOrders returns every order currently in status active.
	GetActiveOrders(ctx context.Context) ([]types.Order, error)

	// CancelOrder transitions an order to cancelled. It only succeeds for
	// an order that is currently active and owned by owner; otherwise it
	// returns nil and ErrOrderNotActive (or ErrOrderNotFound).
	CancelOrder(ctx context.Context, id, owner string) (*types.Order, error)

	// FillOrder transitions an active order to filled with its execution
	// record. "Filled" means matched and handed off for signature, not
	// settled on-chain.
	FillOrder(ctx context.Context, id string, fill types.Fill) error

	// FailOrder transitions an active order to failed with a reason.
	FailOrder(ctx context.Context, id, reason string) error

	// UpdatePeak persists a trailing-stop order's new peak price.
	UpdatePeak(ctx context.Context, id string, peak decimal.Decimal) error

	// CountActive returns the number of active orders for an owner.
	CountActive(ctx context.Context, owner string) (int, error)

	// Lifecycle
	Close() error
	Migrate(ctx context.Context) error
}
