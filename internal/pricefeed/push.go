package pricefeed

import (
	"context"
	"encoding/json"
	"log/slog"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/shopspring/decimal"

	"github.com/ducnguyen96/swap-sentinel/internal/types"
)

// PushConfig holds websocket stream settings. The reconnect delay doubles
// from Floor up to Ceiling and resets to Floor on every successful
// (re)connection.
type PushConfig struct {
	URL              string
	ReconnectFloor   time.Duration
	ReconnectCeiling time.Duration
	ReadTimeout      time.Duration
}

// DefaultPushConfig returns default push stream settings.
func DefaultPushConfig(url string) PushConfig {
	return PushConfig{
		URL:              url,
		ReconnectFloor:   1 * time.Second,
		ReconnectCeiling: 30 * time.Second,
		ReadTimeout:      60 * time.Second,
	}
}

// PushSource maintains a persistent connection to a lower-latency price
// stream and supplies observations to a Feed. It does not change the
// feed's external contract: the polling path still runs and still owns
// unindexed marking.
type PushSource struct {
	cfg    PushConfig
	feed   *Feed
	logger *slog.Logger

	done      chan struct{}
	closeOnce sync.Once
	wg        sync.WaitGroup
}

// NewPushSource creates a push source that writes into feed.
func NewPushSource(cfg PushConfig, feed *Feed, logger *slog.Logger) *PushSource {
	if logger == nil {
		logger = slog.Default()
	}
	if cfg.ReconnectFloor <= 0 {
		cfg.ReconnectFloor = 1 * time.Second
	}
	if cfg.ReconnectCeiling < cfg.ReconnectFloor {
		cfg.ReconnectCeiling = 30 * time.Second
	}
	if cfg.ReadTimeout <= 0 {
		cfg.ReadTimeout = 60 * time.Second
	}

	return &PushSource{
		cfg:    cfg,
		feed:   feed,
		logger: logger,
		done:   make(chan struct{}),
	}
}

// Start launches the connect/read loop.
func (p *PushSource) Start(ctx context.Context) {
	p.wg.Add(1)
	go p.run(ctx)
}

// Close stops the push source.
func (p *PushSource) Close() {
	p.closeOnce.Do(func() {
		close(p.done)
		p.wg.Wait()
	})
}

func (p *PushSource) run(ctx context.Context) {
	defer p.wg.Done()

	delay := p.cfg.ReconnectFloor

	for {
		select {
		case <-ctx.Done():
			return
		case <-p.done:
			return
		default:
		}

		conn, _, err := websocket.DefaultDialer.DialContext(ctx, p.cfg.URL, nil)
		if err != nil {
			p.logger.Warn("push stream dial failed", "url", p.cfg.URL, "retry_in", delay, "err", err)
			if !p.sleep(ctx, delay) {
				return
			}
			delay = p.nextDelay(delay)
			continue
		}

		p.logger.Info("push stream connected", "url", p.cfg.URL)
		delay = p.cfg.ReconnectFloor // reset backoff on successful connection

		p.readLoop(ctx, conn)
		_ = conn.Close()

		select {
		case <-ctx.Done():
			return
		case <-p.done:
			return
		default:
		}

		p.logger.Warn("push stream disconnected, reconnecting", "retry_in", delay)
		if !p.sleep(ctx, delay) {
			return
		}
		delay = p.nextDelay(delay)
	}
}

func (p *PushSource) nextDelay(cur time.Duration) time.Duration {
	next := cur * 2
	if next > p.cfg.ReconnectCeiling {
		next = p.cfg.ReconnectCeiling
	}
	return next
}

func (p *PushSource) sleep(ctx context.Context, d time.Duration) bool {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return false
	case <-p.done:
		return false
	case <-t.C:
		return true
	}
}

// pushMessage mirrors the stream's wire format.
type pushMessage struct {
	Mint   string `json:"mint"`
	Symbol string `json:"symbol"`
	Price  string `json:"price"`
}

func (p *PushSource) readLoop(ctx context.Context, conn *websocket.Conn) {
	// Unblock ReadMessage on shutdown.
	stop := make(chan struct{})
	defer close(stop)
	go func() {
		select {
		case <-ctx.Done():
		case <-p.done:
		case <-stop:
			return
		}
		_ = conn.Close()
	}()

	for {
		_ = conn.SetReadDeadline(time.Now().Add(p.cfg.ReadTimeout))
		_, data, err := conn.ReadMessage()
		if err != nil {
			return
		}

		var msg pushMessage
		if err := json.Unmarshal(data, &msg); err != nil {
			p.logger.Warn("malformed push message", "err", err)
			continue
		}
		price, err := decimal.NewFromString(msg.Price)
		if err != nil || msg.Mint == "" {
			continue
		}

		p.feed.Ingest(types.PriceObservation{
			Mint:       msg.Mint,
			Symbol:     msg.Symbol,
			Price:      price,
			ObservedAt: time.Now(),
		}, "push")
	}
}
