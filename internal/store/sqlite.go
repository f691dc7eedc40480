package store

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/ducnguyen96/swap-sentinel/internal/types"

	_ "github.com/mattn/go-sqlite3" // SQLite driver
)

// SQLiteStore implements Store using SQLite.
type SQLiteStore struct {
	db     *sql.DB
	logger *slog.Logger
}

// NewSQLiteStore opens (and migrates) a SQLite-backed store.
func NewSQLiteStore(path string, logger *slog.Logger) (*SQLiteStore, error) {
	if logger == nil {
		logger = slog.Default()
	}
	db, err := sql.Open("sqlite3", path+"?_journal_mode=WAL&_busy_timeout=5000")
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}

	if err := db.Ping(); err != nil {
		return nil, fmt.Errorf("ping database: %w", err)
	}

	s := &SQLiteStore{db: db, logger: logger}

	if err := s.Migrate(context.Background()); err != nil {
		return nil, fmt.Errorf("migrate: %w", err)
	}

	return s, nil
}

// Migrate runs database migrations.
func (s *SQLiteStore) Migrate(ctx context.Context) error {
	migrations := []string{
		`CREATE TABLE IF NOT EXISTS orders (
			id TEXT PRIMARY KEY,
			owner TEXT NOT NULL,
			mint TEXT NOT NULL,
			kind INTEGER NOT NULL,
			amount_in TEXT NOT NULL DEFAULT '0',
			target_price TEXT NOT NULL DEFAULT '0',
			entry_price TEXT NOT NULL DEFAULT '0',
			target_multiplier TEXT NOT NULL DEFAULT '0',
			trail_percent TEXT NOT NULL DEFAULT '0',
			peak_price TEXT NOT NULL DEFAULT '0',
			slippage_pct TEXT NOT NULL DEFAULT '0',
			status INTEGER NOT NULL,
			fail_reason TEXT NOT NULL DEFAULT '',
			fill_price TEXT,
			execution_ref TEXT,
			proceeds TEXT,
			fee TEXT,
			created_at DATETIME NOT NULL,
			updated_at DATETIME NOT NULL,
			resolved_at DATETIME
		)`,
		`CREATE INDEX IF NOT EXISTS idx_orders_status ON orders(status)`,
		`CREATE INDEX IF NOT EXISTS idx_orders_owner_status ON orders(owner, status)`,
		`CREATE INDEX IF NOT EXISTS idx_orders_mint ON orders(mint)`,
	}

	for _, migration := range migrations {
		if _, err := s.db.ExecContext(ctx, migration); err != nil {
			return fmt.Errorf("execute migration: %w", err)
		}
	}

	return nil
}

// CreateOrder persists a new order, assigning its id and timestamps.
func (s *SQLiteStore) CreateOrder(ctx context.Context, o types.Order) (types.Order, error) {
	o.ID = uuid.NewString()
	o.Status = types.StatusActive
	now := time.Now().UTC()
	o.CreatedAt = now
	o.UpdatedAt = now

	query := `INSERT INTO orders
		(id, owner, mint, kind, amount_in, target_price, entry_price, target_multiplier,
		 trail_percent, peak_price, slippage_pct, status, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`

	_, err := s.db.ExecContext(ctx, query,
		o.ID,
		o.Owner,
		o.Mint,
		o.Kind,
		o.AmountIn.String(),
		o.TargetPrice.String(),
		o.EntryPrice.String(),
		o.TargetMultiplier.String(),
		o.TrailPercent.String(),
		o.PeakPrice.String(),
		o.SlippagePct.String(),
		o.Status,
		o.CreatedAt,
		o.UpdatedAt,
	)
	if err != nil {
		return types.Order{}, fmt.Errorf("insert order: %w", err)
	}

	return o, nil
}

const orderColumns = `id, owner, mint, kind, amount_in, target_price, entry_price,
	target_multiplier, trail_percent, peak_price, slippage_pct, status, fail_reason,
	created_at, updated_at`

func (s *SQLiteStore) scanOrder(scan func(dest ...any) error) (types.Order, error) {
	var o types.Order
	var amountIn, targetPrice, entryPrice, targetMult, trailPct, peak, slippage string

	err := scan(
		&o.ID,
		&o.Owner,
		&o.Mint,
		&o.Kind,
		&amountIn,
		&targetPrice,
		&entryPrice,
		&targetMult,
		&trailPct,
		&peak,
		&slippage,
		&o.Status,
		&o.FailReason,
		&o.CreatedAt,
		&o.UpdatedAt,
	)
	if err != nil {
		return types.Order{}, err
	}

	// A corrupt column rehydrates as zero, which the evaluator treats as
	// "never triggers". Surfaced in the log so the row does not rot
	// silently.
	o.AmountIn = s.parseDecimal(o.ID, "amount_in", amountIn)
	o.TargetPrice = s.parseDecimal(o.ID, "target_price", targetPrice)
	o.EntryPrice = s.parseDecimal(o.ID, "entry_price", entryPrice)
	o.TargetMultiplier = s.parseDecimal(o.ID, "target_multiplier", targetMult)
	o.TrailPercent = s.parseDecimal(o.ID, "trail_percent", trailPct)
	o.PeakPrice = s.parseDecimal(o.ID, "peak_price", peak)
	o.SlippagePct = s.parseDecimal(o.ID, "slippage_pct", slippage)

	return o, nil
}

func (s *SQLiteStore) parseDecimal(id, column, raw string) decimal.Decimal {
	v, err := decimal.NewFromString(raw)
	if err != nil {
		s.logger.Warn("corrupt decimal column, treating as zero",
			"order_id", id,
			"column", column,
			"value", raw,
			"err", err,
		)
		return decimal.Zero
	}
	return v
}

// GetOrder returns an order by id.
func (s *SQLiteStore) GetOrder(ctx context.Context, id string) (*types.Order, error) {
	query := `SELECT ` + orderColumns + ` FROM orders WHERE id = ?`

	o, err := s.scanOrder(s.db.QueryRowContext(ctx, query, id).Scan)
	if err == sql.ErrNoRows {
		return nil, types.ErrOrderNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("query order: %w", err)
	}
	return &o, nil
}

// GetActiveOrders returns every active order.
func (s *SQLiteStore) GetActiveOrders(ctx context.Context) ([]types.Order, error) {
	query := `SELECT ` + orderColumns + ` FROM orders WHERE status = ? ORDER BY created_at`

	rows, err := s.db.QueryContext(ctx, query, types.StatusActive)
	if err != nil {
		return nil, fmt.Errorf("query active orders: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var orders []types.Order
	for rows.Next() {
		o, err := s.scanOrder(rows.Scan)
		if err != nil {
			return nil, fmt.Errorf("scan order: %w", err)
		}
		orders = append(orders, o)
	}
	return orders, rows.Err()
}

// CancelOrder transitions an active order owned by owner to cancelled.
// The guard makes terminal writes first-write-wins: a cancel racing a fill
// only succeeds if it commits before the fill does.
func (s *SQLiteStore) CancelOrder(ctx context.Context, id, owner string) (*types.Order, error) {
	query := `UPDATE orders
		SET status = ?, updated_at = ?, resolved_at = ?
		WHERE id = ? AND owner = ? AND status = ?`

	now := time.Now().UTC()
	res, err := s.db.ExecContext(ctx, query, types.StatusCancelled, now, now, id, owner, types.StatusActive)
	if err != nil {
		return nil, fmt.Errorf("cancel order: %w", err)
	}

	affected, err := res.RowsAffected()
	if err != nil {
		return nil, fmt.Errorf("rows affected: %w", err)
	}
	if affected == 0 {
		// Either missing, wrong owner, or already resolved.
		if _, getErr := s.GetOrder(ctx, id); getErr != nil {
			return nil, getErr
		}
		return nil, types.ErrOrderNotActive
	}

	return s.GetOrder(ctx, id)
}

// FillOrder transitions an active order to filled with its execution record.
func (s *SQLiteStore) FillOrder(ctx context.Context, id string, fill types.Fill) error {
	query := `UPDATE orders
		SET status = ?, fill_price = ?, execution_ref = ?, proceeds = ?, fee = ?,
		    updated_at = ?, resolved_at = ?
		WHERE id = ? AND status = ?`

	now := time.Now().UTC()
	res, err := s.db.ExecContext(ctx, query,
		types.StatusFilled,
		fill.Price.String(),
		fill.ExecutionRef,
		fill.Proceeds.String(),
		fill.Fee.String(),
		now,
		now,
		id,
		types.StatusActive,
	)
	if err != nil {
		return fmt.Errorf("fill order: %w", err)
	}
	return s.requireAffected(ctx, res, id)
}

// FailOrder transitions an active order to failed with a captured reason.
func (s *SQLiteStore) FailOrder(ctx context.Context, id, reason string) error {
	query := `UPDATE orders
		SET status = ?, fail_reason = ?, updated_at = ?, resolved_at = ?
		WHERE id = ? AND status = ?`

	now := time.Now().UTC()
	res, err := s.db.ExecContext(ctx, query, types.StatusFailed, reason, now, now, id, types.StatusActive)
	if err != nil {
		return fmt.Errorf("fail order: %w", err)
	}
	return s.requireAffected(ctx, res, id)
}

// UpdatePeak persists a trailing-stop order's peak price. Only active
// orders take the write; a resolved order's record is immutable.
func (s *SQLiteStore) UpdatePeak(ctx context.Context, id string, peak decimal.Decimal) error {
	query := `UPDATE orders SET peak_price = ?, updated_at = ? WHERE id = ? AND status = ?`

	res, err := s.db.ExecContext(ctx, query, peak.String(), time.Now().UTC(), id, types.StatusActive)
	if err != nil {
		return fmt.Errorf("update peak: %w", err)
	}
	return s.requireAffected(ctx, res, id)
}

// CountActive returns the number of active orders for an owner.
func (s *SQLiteStore) CountActive(ctx context.Context, owner string) (int, error) {
	query := `SELECT COUNT(*) FROM orders WHERE owner = ? AND status = ?`

	var n int
	if err := s.db.QueryRowContext(ctx, query, owner, types.StatusActive).Scan(&n); err != nil {
		return 0, fmt.Errorf("count active: %w", err)
	}
	return n, nil
}

// Close closes the database.
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

func (s *SQLiteStore) requireAffected(ctx context.Context, res sql.Result, id string) error {
	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("rows affected: %w", err)
	}
	if affected == 0 {
		if _, getErr := s.GetOrder(ctx, id); getErr != nil {
			return getErr
		}
		return types.ErrOrderNotActive
	}
	return nil
}
