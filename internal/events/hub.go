// Package events is the in-process hub for order lifecycle events.
//
// The front door subscribes per owner and relays events over its own
// transport; this core only publishes.
package events

import (
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/ducnguyen96/swap-sentinel/internal/metrics"
	"github.com/ducnguyen96/swap-sentinel/internal/types"
)

// Type classifies a lifecycle event.
type Type string

const (
	TypeCreated   Type = "created"
	TypeTriggered Type = "triggered"
	TypeCancelled Type = "cancelled"
	TypeFailed    Type = "failed"
)

// Event is one order lifecycle notification. Triggered events carry the
// unsigned swap payload for relay to the owning wallet's session.
type Event struct {
	ID      string
	Type    Type
	OrderID string
	Owner   string
	Mint    string
	Kind    string
	At      time.Time

	// Swap is set on triggered events only.
	Swap *types.SwapDescriptor
	// Reason is set on failed events only.
	Reason string
}

type subscriber struct {
	owner string // empty means all owners
	ch    chan Event
}

// Hub fans events out to subscribers, keyed by owner. Publishing never
// blocks: a subscriber that cannot keep up drops events.
type Hub struct {
	buffer   int
	recorder *metrics.Recorder

	mu   sync.Mutex
	subs map[*subscriber]struct{}
}

// NewHub creates a hub. buffer is each subscriber channel's capacity.
func NewHub(buffer int) *Hub {
	if buffer <= 0 {
		buffer = 64
	}
	return &Hub{
		buffer:   buffer,
		recorder: metrics.NewRecorder(),
		subs:     make(map[*subscriber]struct{}),
	}
}

// Subscribe returns a channel of events for one owner ("" for all) and a
// cancel func that unsubscribes and closes the channel.
func (h *Hub) Subscribe(owner string) (<-chan Event, func()) {
	sub := &subscriber{owner: owner, ch: make(chan Event, h.buffer)}

	h.mu.Lock()
	h.subs[sub] = struct{}{}
	h.mu.Unlock()

	var once sync.Once
	cancel := func() {
		once.Do(func() {
			h.mu.Lock()
			delete(h.subs, sub)
			h.mu.Unlock()
			close(sub.ch)
		})
	}
	return sub.ch, cancel
}

// Publish delivers an event to every matching subscriber. The event id
// and timestamp are assigned here.
func (h *Hub) Publish(ev Event) {
	ev.ID = uuid.NewString()
	if ev.At.IsZero() {
		ev.At = time.Now()
	}

	h.recorder.RecordEventPublished(string(ev.Type))

	h.mu.Lock()
	defer h.mu.Unlock()
	for sub := range h.subs {
		if sub.owner != "" && sub.owner != ev.Owner {
			continue
		}
		select {
		case sub.ch <- ev:
		default:
			h.recorder.RecordEventDropped()
		}
	}
}
