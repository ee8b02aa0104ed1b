package event

import (
	"encoding/json"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

func TestEmit_SequencePerSession_StartsAtOneWithoutGaps(t *testing.T) {
	bus := NewBus()

	types := []string{LLMRequestStarted, ToolRequested, ToolCompleted, LLMResponseCompleted}
	for i, typ := range types {
		ev := bus.Emit(typ, "conv_a", SourceChat, nil, nil)
		assert.Equal(t, int64(i+1), ev.Seq)
	}

	other := bus.Emit(LLMRequestStarted, "conv_b", SourceChat, nil, nil)
	assert.Equal(t, int64(1), other.Seq, "sessions keep independent counters")

	next := bus.Emit(ToolError, "conv_a", SourceTools, nil, nil)
	assert.Equal(t, int64(5), next.Seq)
}

func TestEmit_StampsIDTimestampAndPayload(t *testing.T) {
	fixed := time.Date(2026, 3, 4, 5, 6, 7, 891_000_000, time.FixedZone("X", 3600))
	bus := NewBus(WithClock(func() time.Time { return fixed }))

	cost := 0.0125
	ev := bus.Emit(LLMResponseCompleted, "conv_a", SourceChat, map[string]any{"model": "m"}, &cost)

	assert.NotEmpty(t, ev.ID)
	assert.Equal(t, "2026-03-04T04:06:07.891Z", ev.Timestamp)
	assert.Equal(t, "m", ev.Payload["model"])
	require.NotNil(t, ev.CostUSD)
	assert.InDelta(t, 0.0125, *ev.CostUSD, 1e-9)

	ev2 := bus.Emit(LLMResponseCompleted, "conv_a", SourceChat, nil, nil)
	assert.NotEqual(t, ev.ID, ev2.ID)
	assert.NotNil(t, ev2.Payload)
}

func TestEvent_JSONShape(t *testing.T) {
	bus := NewBus()
	ev := bus.Emit(ToolRequested, "conv_a", SourceTools, map[string]any{"tool_id": "t1"}, nil)

	data, err := json.Marshal(ev)
	require.NoError(t, err)

	var decoded map[string]any
	require.NoError(t, json.Unmarshal(data, &decoded))
	for _, key := range []string{"event_id", "type", "ts", "session_id", "source", "seq", "payload", "cost_usd"} {
		assert.Contains(t, decoded, key)
	}
	assert.Nil(t, decoded["cost_usd"])
	assert.Equal(t, float64(1), decoded["seq"])
}

func TestSubscribe_ReceivesEventsInOrder(t *testing.T) {
	bus := NewBus()
	sub := bus.Subscribe()
	defer bus.Unsubscribe(sub)

	bus.Emit(LLMRequestStarted, "s", SourceChat, nil, nil)
	bus.Emit(LLMResponseCompleted, "s", SourceChat, nil, nil)

	first := <-sub.C
	second := <-sub.C
	assert.Equal(t, LLMRequestStarted, first.Type)
	assert.Equal(t, LLMResponseCompleted, second.Type)
}

func TestEmit_FullSubscriber_DroppedWithoutBlocking(t *testing.T) {
	drops := 0
	bus := NewBus(WithBuffer(3), WithDropHook(func() { drops++ }))
	slow := bus.Subscribe()
	healthy := bus.Subscribe()

	for range 3 {
		bus.Emit(ToolRequested, "s", SourceTools, nil, nil)
	}
	for range 3 {
		<-healthy.C
	}

	done := make(chan struct{})
	go func() {
		bus.Emit(ToolCompleted, "s", SourceTools, nil, nil)
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("Emit blocked on a full subscriber")
	}

	assert.Equal(t, 1, bus.SubscriberCount())
	assert.Equal(t, 1, drops)

	// The dropped subscriber drains what it had and then sees a closed channel.
	received := 0
	for range slow.C {
		received++
	}
	assert.Equal(t, 3, received)

	ev := <-healthy.C
	assert.Equal(t, ToolCompleted, ev.Type)
	bus.Unsubscribe(healthy)
}

func TestUnsubscribe_Idempotent(t *testing.T) {
	bus := NewBus()
	sub := bus.Subscribe()

	bus.Unsubscribe(sub)
	bus.Unsubscribe(sub)
	bus.Unsubscribe(nil)

	_, open := <-sub.C
	assert.False(t, open)
	assert.Equal(t, 0, bus.SubscriberCount())
}

func TestEmit_ConcurrentSessions_NoRace(t *testing.T) {
	bus := NewBus()
	sub := bus.Subscribe()

	var wg sync.WaitGroup
	for _, session := range []string{"a", "b", "c", "d"} {
		wg.Add(1)
		go func(session string) {
			defer wg.Done()
			for range 50 {
				bus.Emit(ToolRequested, session, SourceTools, nil, nil)
			}
		}(session)
	}
	wg.Wait()
	bus.Unsubscribe(sub)

	last := make(map[string]int64)
	for ev := range sub.C {
		assert.Equal(t, last[ev.SessionID]+1, ev.Seq, "session %s", ev.SessionID)
		last[ev.SessionID] = ev.Seq
	}
	for _, session := range []string{"a", "b", "c", "d"} {
		assert.Equal(t, int64(50), last[session])
	}
}
