package event

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/loykin/chainforge/internal/history"
)

type memSink struct {
	mu     sync.Mutex
	events []history.Event
	closed bool
}

func (m *memSink) Send(_ context.Context, e history.Event) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.events = append(m.events, e)
	return nil
}

func (m *memSink) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.closed = true
	return nil
}

func TestPublishDeliversToSubscribers(t *testing.T) {
	b := NewBus()
	ch, cancel := b.Subscribe(4)
	defer cancel()

	b.Publish(Event{Name: NodeLog, Service: "node", Payload: "line"})

	select {
	case ev := <-ch:
		require.Equal(t, NodeLog, ev.Name)
		require.Equal(t, "line", ev.Payload)
		require.False(t, ev.At.IsZero())
	case <-time.After(time.Second):
		t.Fatal("event not delivered")
	}
}

func TestPublishDropsWhenBufferFull(t *testing.T) {
	b := NewBus()
	ch, cancel := b.Subscribe(1)
	defer cancel()

	b.Publish(Event{Name: MinerStats, Payload: "1"})
	b.Publish(Event{Name: MinerStats, Payload: "2"}) // dropped, buffer full

	require.Equal(t, "1", (<-ch).Payload)
	select {
	case ev := <-ch:
		t.Fatalf("unexpected event %v", ev)
	default:
	}
}

func TestCancelIsIdempotent(t *testing.T) {
	b := NewBus()
	ch, cancel := b.Subscribe(1)

	cancel()
	cancel() // second call must not panic on the closed channel

	_, open := <-ch
	require.False(t, open)

	// Publishing after cancel must not reach the closed channel.
	b.Publish(Event{Name: NodeLog})
}

func TestRecordMirrorsToSinks(t *testing.T) {
	b := NewBus()
	sink := &memSink{}
	b.SetHistorySinks(sink)

	b.Record(history.Event{Type: history.EventStarted, Service: "node", PID: 7})

	sink.mu.Lock()
	defer sink.mu.Unlock()
	require.Len(t, sink.events, 1)
	require.Equal(t, history.EventStarted, sink.events[0].Type)
	require.False(t, sink.events[0].OccurredAt.IsZero())
}

func TestCloseClosesSinks(t *testing.T) {
	b := NewBus()
	sink := &memSink{}
	b.SetHistorySinks(sink)

	require.NoError(t, b.Close())
	require.True(t, sink.closed)

	// Records after close go nowhere.
	b.Record(history.Event{Type: history.EventStopped})
	require.Len(t, sink.events, 0)
}
