package event

import (
	"context"
	"sync"
	"time"

	"github.com/loykin/chainforge/internal/history"
)

// Event names emitted by the control plane. Log events carry the raw line
// as payload; terminated events carry the exit code (or nil when unknown).
const (
	NodeLog           = "node-log"
	MinerLog          = "miner-log"
	MinerStats        = "miner-stats"
	WalletLog         = "wallet-log"
	NodeTerminated    = "node-terminated"
	MinerTerminated   = "miner-terminated"
	WalletTerminated  = "wallet-terminated"
	GatewayError      = "gateway-error"
	GatewayTerminated = "gateway-terminated"
)

// Event is a named notification published to local subscribers. Delivery is
// best effort: a subscriber whose buffer is full misses the event.
type Event struct {
	Name    string    `json:"name"`
	Service string    `json:"service,omitempty"`
	Payload any       `json:"payload,omitempty"`
	At      time.Time `json:"at"`
}

// Bus fans events out to in-memory subscribers and mirrors lifecycle
// records to configured history sinks. Safe for concurrent use.
type Bus struct {
	mu    sync.RWMutex
	subs  map[int]chan Event
	next  int
	sinks []history.Sink
}

func NewBus() *Bus {
	return &Bus{subs: make(map[int]chan Event)}
}

// SetHistorySinks configures external history sinks (SQLite, PostgreSQL,
// ClickHouse). Passing no sinks clears the list.
func (b *Bus) SetHistorySinks(sinks ...history.Sink) {
	b.mu.Lock()
	b.sinks = append([]history.Sink(nil), sinks...)
	b.mu.Unlock()
}

// Subscribe registers a subscriber with the given buffer size and returns
// its channel plus a cancel function. The channel is closed on cancel.
func (b *Bus) Subscribe(buffer int) (<-chan Event, func()) {
	if buffer <= 0 {
		buffer = 64
	}
	ch := make(chan Event, buffer)
	b.mu.Lock()
	id := b.next
	b.next++
	b.subs[id] = ch
	b.mu.Unlock()

	var once sync.Once
	cancel := func() {
		once.Do(func() {
			b.mu.Lock()
			delete(b.subs, id)
			b.mu.Unlock()
			close(ch)
		})
	}
	return ch, cancel
}

// Publish delivers e to all current subscribers without blocking. The
// timestamp is filled in when the caller left it zero.
func (b *Bus) Publish(e Event) {
	if e.At.IsZero() {
		e.At = time.Now()
	}
	b.mu.RLock()
	defer b.mu.RUnlock()
	for _, ch := range b.subs {
		select {
		case ch <- e:
		default:
			// subscriber too slow; drop
		}
	}
}

// Record mirrors a lifecycle event to the configured history sinks.
// Failures are ignored; this is a fire-and-forget audit trail.
func (b *Bus) Record(e history.Event) {
	b.mu.RLock()
	sinks := append([]history.Sink(nil), b.sinks...)
	b.mu.RUnlock()
	if e.OccurredAt.IsZero() {
		e.OccurredAt = time.Now().UTC()
	}
	for _, s := range sinks {
		_ = s.Send(context.Background(), e)
	}
}

// Close closes the history sinks. Subscriber channels are left to their
// owners' cancel functions.
func (b *Bus) Close() error {
	b.mu.Lock()
	sinks := b.sinks
	b.sinks = nil
	b.mu.Unlock()
	var firstErr error
	for _, s := range sinks {
		if err := s.Close(); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}
