// Package pricefeed maintains the set of watched instruments and their
// latest known price, sourced by periodic batched polling of the price API
// with an optional websocket push stream.
package pricefeed

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/ducnguyen96/swap-sentinel/internal/metrics"
	"github.com/ducnguyen96/swap-sentinel/internal/types"
)

// Config holds feed settings.
type Config struct {
	PollInterval   time.Duration
	BatchSize      int
	RequestTimeout time.Duration

	// DegradedThreshold is how many consecutive fetch failures count as a
	// degraded feed, reported once per degradation episode.
	DegradedThreshold int
}

// DefaultConfig returns default feed settings.
func DefaultConfig() Config {
	return Config{
		PollInterval:      5 * time.Second,
		BatchSize:         100,
		RequestTimeout:    10 * time.Second,
		DegradedThreshold: 3,
	}
}

// Feed polls prices for the watched set and notifies subscribers of
// changes. A change event fires on the first observation for an instrument
// and on every price differing from the last-known value, so a freshly
// watched instrument is evaluated immediately rather than on the next
// price movement.
type Feed struct {
	cfg      Config
	fetcher  Fetcher
	logger   *slog.Logger
	recorder *metrics.Recorder

	mu      sync.RWMutex
	watched map[string]struct{}
	prices  map[string]types.PriceObservation

	subMu sync.RWMutex
	subs  []chan types.PriceUpdate

	failMu     sync.Mutex
	failStreak int
	onDegraded func(failures int)

	done      chan struct{}
	closeOnce sync.Once
	wg        sync.WaitGroup
}

// New creates a feed backed by the given fetcher.
func New(cfg Config, fetcher Fetcher, logger *slog.Logger) *Feed {
	if logger == nil {
		logger = slog.Default()
	}
	if cfg.PollInterval <= 0 {
		cfg.PollInterval = DefaultConfig().PollInterval
	}
	if cfg.BatchSize <= 0 {
		cfg.BatchSize = DefaultConfig().BatchSize
	}
	if cfg.RequestTimeout <= 0 {
		cfg.RequestTimeout = DefaultConfig().RequestTimeout
	}
	if cfg.DegradedThreshold <= 0 {
		cfg.DegradedThreshold = DefaultConfig().DegradedThreshold
	}

	return &Feed{
		cfg:      cfg,
		fetcher:  fetcher,
		logger:   logger,
		recorder: metrics.NewRecorder(),
		watched:  make(map[string]struct{}),
		prices:   make(map[string]types.PriceObservation),
		done:     make(chan struct{}),
	}
}

// Watch adds an instrument to the polling set. Idempotent: re-adding an
// already-watched instrument is a no-op and does not duplicate it in batch
// requests.
func (f *Feed) Watch(mint string) {
	if mint == "" {
		return
	}
	f.mu.Lock()
	_, exists := f.watched[mint]
	if !exists {
		f.watched[mint] = struct{}{}
	}
	n := len(f.watched)
	f.mu.Unlock()

	if !exists {
		f.recorder.RecordWatchedInstruments(n)
		f.logger.Debug("watching instrument", "mint", mint, "watched", n)
	}
}

// Unwatch removes an instrument from the polling set. Idempotent.
func (f *Feed) Unwatch(mint string) {
	f.mu.Lock()
	_, exists := f.watched[mint]
	if exists {
		delete(f.watched, mint)
		delete(f.prices, mint)
	}
	n := len(f.watched)
	f.mu.Unlock()

	if exists {
		f.recorder.RecordWatchedInstruments(n)
		f.logger.Debug("unwatched instrument", "mint", mint, "watched", n)
	}
}

// CurrentPrice returns the latest observation for an instrument, if any.
// An observation with Unindexed set means the API had no price data for
// the instrument on the last cycle, as opposed to an unchanged price.
func (f *Feed) CurrentPrice(mint string) (types.PriceObservation, bool) {
	f.mu.RLock()
	defer f.mu.RUnlock()
	obs, ok := f.prices[mint]
	return obs, ok
}

// Watched returns a snapshot of the watched set.
func (f *Feed) Watched() []string {
	f.mu.RLock()
	defer f.mu.RUnlock()
	mints := make([]string, 0, len(f.watched))
	for m := range f.watched {
		mints = append(mints, m)
	}
	return mints
}

// Subscribe registers a listener for price change events. The returned
// channel is buffered; a slow consumer drops updates rather than stalling
// the feed.
func (f *Feed) Subscribe(buffer int) <-chan types.PriceUpdate {
	if buffer <= 0 {
		buffer = 64
	}
	ch := make(chan types.PriceUpdate, buffer)
	f.subMu.Lock()
	f.subs = append(f.subs, ch)
	f.subMu.Unlock()
	return ch
}

// Start launches the polling loop. It returns immediately; polling stops
// when ctx is cancelled or Close is called.
func (f *Feed) Start(ctx context.Context) {
	f.wg.Add(1)
	go f.pollLoop(ctx)
}

// Close stops the feed and closes all subscriber channels.
func (f *Feed) Close() {
	f.closeOnce.Do(func() {
		close(f.done)
		f.wg.Wait()

		f.subMu.Lock()
		for _, ch := range f.subs {
			close(ch)
		}
		f.subs = nil
		f.subMu.Unlock()
	})
}

func (f *Feed) pollLoop(ctx context.Context) {
	defer f.wg.Done()

	ticker := time.NewTicker(f.cfg.PollInterval)
	defer ticker.Stop()

	f.logger.Info("price feed started", "poll_interval", f.cfg.PollInterval, "batch_size", f.cfg.BatchSize)

	for {
		select {
		case <-ctx.Done():
			return
		case <-f.done:
			return
		case <-ticker.C:
			f.PollOnce(ctx)
		}
	}
}

// PollOnce runs a single observation cycle over the watched set.
// Transient fetch failures are logged and skipped; the next scheduled tick
// recovers them.
func (f *Feed) PollOnce(ctx context.Context) {
	mints := f.Watched()
	if len(mints) == 0 {
		return
	}

	for start := 0; start < len(mints); start += f.cfg.BatchSize {
		end := start + f.cfg.BatchSize
		if end > len(mints) {
			end = len(mints)
		}
		batch := mints[start:end]

		fetchCtx, cancel := context.WithTimeout(ctx, f.cfg.RequestTimeout)
		quotes, err := f.fetcher.Lookup(fetchCtx, batch)
		cancel()

		if err != nil {
			f.recorder.RecordFeedError()
			f.noteFetchFailure()
			f.logger.Warn("price fetch failed, skipping batch", "batch_size", len(batch), "err", err)
			continue
		}
		f.noteFetchSuccess()
		f.applyBatch(batch, quotes)
	}
}

// SetDegradedHandler registers a callback fired once per degradation
// episode, when consecutive fetch failures reach the configured threshold.
// Must be called before Start.
func (f *Feed) SetDegradedHandler(fn func(failures int)) {
	f.failMu.Lock()
	defer f.failMu.Unlock()
	f.onDegraded = fn
}

func (f *Feed) noteFetchFailure() {
	f.failMu.Lock()
	f.failStreak++
	streak := f.failStreak
	fn := f.onDegraded
	f.failMu.Unlock()

	if streak == f.cfg.DegradedThreshold && fn != nil {
		fn(streak)
	}
}

func (f *Feed) noteFetchSuccess() {
	f.failMu.Lock()
	f.failStreak = 0
	f.failMu.Unlock()
}

// applyBatch merges one batch response into the price map, firing change
// events. Requested mints absent from the response are marked unindexed
// rather than left stale.
func (f *Feed) applyBatch(batch []string, quotes map[string]Quote) {
	now := time.Now()

	for _, mint := range batch {
		quote, ok := quotes[mint]
		if !ok {
			f.markUnindexed(mint, now)
			continue
		}
		f.Ingest(types.PriceObservation{
			Mint:       mint,
			Symbol:     quote.Symbol,
			Price:      quote.Price,
			ObservedAt: now,
		}, "poll")
	}
}

func (f *Feed) markUnindexed(mint string, now time.Time) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if _, watched := f.watched[mint]; !watched {
		return
	}
	prev := f.prices[mint]
	f.prices[mint] = types.PriceObservation{
		Mint:       mint,
		Symbol:     prev.Symbol,
		Unindexed:  true,
		ObservedAt: now,
	}
}

// Ingest records one observation and publishes a change event if the price
// is new or differs from the last-known value. It is the shared entry
// point for the polling path and the push stream.
func (f *Feed) Ingest(obs types.PriceObservation, source string) {
	f.mu.Lock()
	if _, watched := f.watched[obs.Mint]; !watched {
		f.mu.Unlock()
		return
	}
	prev, seen := f.prices[obs.Mint]
	changed := !seen || prev.Unindexed || !prev.Price.Equal(obs.Price)
	f.prices[obs.Mint] = obs
	f.mu.Unlock()

	f.recorder.RecordPriceTick(source)

	if changed {
		f.publish(types.PriceUpdate{
			Mint:   obs.Mint,
			Price:  obs.Price,
			Symbol: obs.Symbol,
			At:     obs.ObservedAt,
			Source: source,
		})
	}
}

func (f *Feed) publish(upd types.PriceUpdate) {
	f.subMu.RLock()
	defer f.subMu.RUnlock()
	for _, ch := range f.subs {
		select {
		case ch <- upd:
		default:
			f.recorder.RecordUpdateDropped()
			f.logger.Warn("subscriber buffer full, dropping price update", "mint", upd.Mint)
		}
	}
}
