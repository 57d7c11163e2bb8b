package messaging

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/fastresult/results-core/internal/domain/shared"
	"github.com/fastresult/results-core/pkg/retry"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func transitioned(id string) shared.Event {
	return shared.NewResultTransitionedEvent(id, "S1", "CSC301", "2025-1", "submitted", "under_review", "officer", "")
}

func syncBus() *InMemoryEventBus {
	return NewInMemoryEventBus(InMemoryEventBusConfig{AsyncMode: false})
}

// ══════════════════════════════════════════════════════════════════════════════
// IN-MEMORY BUS
// ══════════════════════════════════════════════════════════════════════════════

func TestInMemoryEventBus_RoutesByType(t *testing.T) {
	bus := syncBus()
	var typed, all []string

	require.NoError(t, bus.Subscribe(shared.EventResultTransitioned, func(e shared.Event) error {
		typed = append(typed, e.AggregateID())
		return nil
	}))
	require.NoError(t, bus.SubscribeAll(func(e shared.Event) error {
		all = append(all, string(e.EventType()))
		return nil
	}))

	require.NoError(t, bus.Publish(transitioned("r1")))
	require.NoError(t, bus.Publish(shared.NewAggregatesRecomputedEvent("S1", "2025-1", "3.000", "3.000", 3)))

	assert.Equal(t, []string{"r1"}, typed)
	assert.Equal(t, []string{"result.transitioned", "gpa.aggregates_recomputed"}, all)
}

func TestInMemoryEventBus_HandlerFailureDoesNotReachPublisher(t *testing.T) {
	bus := syncBus()
	require.NoError(t, bus.SubscribeAll(func(shared.Event) error { panic("boom") }))
	require.NoError(t, bus.SubscribeAll(func(shared.Event) error { return errors.New("failed") }))

	assert.NoError(t, bus.Publish(transitioned("r1")))
}

func TestInMemoryEventBus_AsyncCloseWaitsForHandlers(t *testing.T) {
	bus := NewInMemoryEventBus(InMemoryEventBusConfig{AsyncMode: true, WorkerPoolSize: 2})
	var handled atomic.Int32
	require.NoError(t, bus.SubscribeAll(func(shared.Event) error {
		time.Sleep(5 * time.Millisecond)
		handled.Add(1)
		return nil
	}))

	for i := 0; i < 5; i++ {
		require.NoError(t, bus.Publish(transitioned("r")))
	}
	require.NoError(t, bus.Close())

	assert.Equal(t, int32(5), handled.Load())
	assert.ErrorIs(t, bus.Publish(transitioned("r")), ErrEventBusClosed)
	assert.ErrorIs(t, bus.SubscribeAll(func(shared.Event) error { return nil }), ErrEventBusClosed)
}

// ══════════════════════════════════════════════════════════════════════════════
// REDIS BUS
// ══════════════════════════════════════════════════════════════════════════════

type fakeRedis struct {
	mu        sync.Mutex
	published []string
	failWith  error
	incoming  chan RedisMessage
}

func (f *fakeRedis) Publish(_ context.Context, _ string, message interface{}) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.failWith != nil {
		return f.failWith
	}
	f.published = append(f.published, message.(string))
	return nil
}

func (f *fakeRedis) Subscribe(context.Context, ...string) (<-chan RedisMessage, error) {
	return f.incoming, nil
}

func (f *fakeRedis) Close() error { return nil }

func newRedisBus(t *testing.T, client *fakeRedis) *RedisEventBus {
	t.Helper()
	bus, err := NewRedisEventBus(RedisEventBusConfig{
		Client:         client,
		InstanceID:     "me",
		LocalBusConfig: InMemoryEventBusConfig{AsyncMode: false},
	})
	require.NoError(t, err)
	t.Cleanup(func() { _ = bus.Close() })
	return bus
}

func TestRedisEventBus_PublishesEnvelopeAndDeliversLocally(t *testing.T) {
	client := &fakeRedis{incoming: make(chan RedisMessage)}
	bus := newRedisBus(t, client)

	var local []string
	require.NoError(t, bus.SubscribeAll(func(e shared.Event) error {
		local = append(local, e.AggregateID())
		return nil
	}))
	require.NoError(t, bus.Publish(transitioned("r1")))

	assert.Equal(t, []string{"r1"}, local)
	require.Len(t, client.published, 1)

	var env map[string]interface{}
	require.NoError(t, json.Unmarshal([]byte(client.published[0]), &env))
	assert.Equal(t, "me", env["instance_id"])
	assert.Equal(t, "result.transitioned", env["event_type"])
	assert.Equal(t, "r1", env["aggregate_id"])
}

func TestRedisEventBus_RedisFailureStillDeliversLocally(t *testing.T) {
	client := &fakeRedis{incoming: make(chan RedisMessage), failWith: errors.New("down")}
	bus := newRedisBus(t, client)

	delivered := 0
	require.NoError(t, bus.SubscribeAll(func(shared.Event) error { delivered++; return nil }))
	require.NoError(t, bus.Publish(transitioned("r1")))
	assert.Equal(t, 1, delivered)
}

func TestRedisEventBus_ReplaysRemoteEventsOnly(t *testing.T) {
	client := &fakeRedis{incoming: make(chan RedisMessage)}
	bus := newRedisBus(t, client)

	got := make(chan shared.Event, 2)
	require.NoError(t, bus.SubscribeAll(func(e shared.Event) error { got <- e; return nil }))

	own, _ := json.Marshal(map[string]interface{}{"instance_id": "me", "event_type": "result.transitioned", "aggregate_id": "mine"})
	remote, _ := json.Marshal(map[string]interface{}{
		"instance_id": "other", "event_type": "gpa.aggregates_recomputed", "aggregate_id": "S9",
		"payload": map[string]interface{}{"semester_id": "2025-1"},
	})
	client.incoming <- RedisMessage{Payload: string(own)}
	client.incoming <- RedisMessage{Payload: "not json"}
	client.incoming <- RedisMessage{Payload: string(remote)}

	select {
	case e := <-got:
		assert.Equal(t, shared.EventAggregatesRecomputed, e.EventType())
		assert.Equal(t, "S9", e.AggregateID())
		assert.Equal(t, "2025-1", e.Payload()["semester_id"])
	case <-time.After(time.Second):
		t.Fatal("remote event was not delivered")
	}
	assert.Empty(t, got)
}

// ══════════════════════════════════════════════════════════════════════════════
// DISPATCHER
// ══════════════════════════════════════════════════════════════════════════════

func fastRetrier(attempts int) *retry.Retrier {
	return retry.New(
		retry.WithMaxAttempts(attempts),
		retry.WithInitialDelay(time.Millisecond),
		retry.WithMaxDelay(time.Millisecond),
		retry.WithRetryIf(func(error) bool { return true }),
	)
}

func TestDispatcher_RetriesThenSucceeds(t *testing.T) {
	bus := syncBus()
	d := NewDispatcher(DispatcherConfig{Bus: bus, Retrier: fastRetrier(3)})

	calls := 0
	require.NoError(t, d.Register(shared.EventResultTransitioned, "flaky", func(shared.Event) error {
		calls++
		if calls < 3 {
			return errors.New("transient")
		}
		return nil
	}))

	require.NoError(t, bus.Publish(transitioned("r1")))
	assert.Equal(t, 3, calls)
	assert.Zero(t, d.DeadLetterQueue().Size())
}

func TestDispatcher_DeadLettersExhaustedHandler(t *testing.T) {
	bus := syncBus()
	d := NewDispatcher(DispatcherConfig{Bus: bus, Retrier: fastRetrier(2)})

	require.NoError(t, d.Register(shared.EventResultTransitioned, "broken", func(shared.Event) error {
		panic("nil map")
	}))
	require.NoError(t, bus.Publish(transitioned("r1")))

	entries := d.DeadLetterQueue().Entries()
	require.Len(t, entries, 1)
	assert.Equal(t, "broken", entries[0].HandlerName)
	assert.Equal(t, 2, entries[0].Attempts)
	assert.ErrorIs(t, entries[0].Error, ErrHandlerPanic)
}

func TestDeadLetterQueue_DropsOldest(t *testing.T) {
	q := NewDeadLetterQueue(2)
	q.Add(DeadLetterEntry{HandlerName: "a"})
	q.Add(DeadLetterEntry{HandlerName: "b"})
	q.Add(DeadLetterEntry{HandlerName: "c"})

	entries := q.Entries()
	require.Len(t, entries, 2)
	assert.Equal(t, "b", entries[0].HandlerName)
	assert.Equal(t, "c", entries[1].HandlerName)
}
