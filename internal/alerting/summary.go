package alerting

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"
)

// Digest accumulates engine activity over a reporting period and emits a
// summary alert when the period rolls over.
type Digest struct {
	alerter Alerter
	logger  *slog.Logger

	mu          sync.Mutex
	periodStart time.Time
	triggered   map[string]int
	filled      int
	failed      int
	cancelled   int
	feedErrors  int
}

// NewDigest creates a digest tracker.
func NewDigest(alerter Alerter, logger *slog.Logger) *Digest {
	if logger == nil {
		logger = slog.Default()
	}
	return &Digest{
		alerter:     alerter,
		logger:      logger,
		periodStart: time.Now(),
		triggered:   make(map[string]int),
	}
}

// RecordTriggered counts a trigger for the given order kind.
func (d *Digest) RecordTriggered(kind string) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.triggered[kind]++
}

// RecordFilled counts a filled order.
func (d *Digest) RecordFilled() {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.filled++
}

// RecordFailed counts a failed order.
func (d *Digest) RecordFailed() {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.failed++
}

// RecordCancelled counts a cancelled order.
func (d *Digest) RecordCancelled() {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.cancelled++
}

// RecordFeedError counts a failed price fetch.
func (d *Digest) RecordFeedError() {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.feedErrors++
}

// Run emits a summary every interval until the context is cancelled. A
// final summary is sent on shutdown if the period saw any activity.
func (d *Digest) Run(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			d.flush(context.Background())
			return
		case <-ticker.C:
			d.flush(ctx)
		}
	}
}

// flush sends the accumulated summary and resets the counters.
func (d *Digest) flush(ctx context.Context) {
	d.mu.Lock()
	triggered := d.triggered
	filled, failed, cancelled, feedErrors := d.filled, d.failed, d.cancelled, d.feedErrors
	start := d.periodStart

	d.triggered = make(map[string]int)
	d.filled, d.failed, d.cancelled, d.feedErrors = 0, 0, 0, 0
	d.periodStart = time.Now()
	d.mu.Unlock()

	total := filled + failed + cancelled
	for _, n := range triggered {
		total += n
	}
	if total == 0 && feedErrors == 0 {
		return
	}

	fields := []any{
		"period_start", start.UTC().Format(time.RFC3339),
		"filled", filled,
		"failed", failed,
		"cancelled", cancelled,
	}
	for kind, n := range triggered {
		fields = append(fields, fmt.Sprintf("triggered_%s", kind), n)
	}
	if feedErrors > 0 {
		fields = append(fields, "feed_errors", feedErrors)
	}

	severity := SeverityInfo
	if failed > 0 {
		severity = SeverityWarning
	}

	if err := d.alerter.Alert(ctx, severity, "Activity summary", fields...); err != nil {
		d.logger.Warn("failed to send summary alert", "error", err)
	}
}
