package event

import (
	"sync"
	"time"

	"github.com/google/uuid"
)

// DefaultBuffer is the per-subscriber queue capacity.
const DefaultBuffer = 1000

// Subscription receives events on C. C is closed when the subscriber
// unsubscribes or is dropped for falling behind.
type Subscription struct {
	C  <-chan Event
	ch chan Event
}

// Bus fans events out to subscribers without ever blocking the emitter.
type Bus struct {
	mu     sync.Mutex
	seq    map[string]int64
	subs   map[*Subscription]struct{}
	buffer int
	now    func() time.Time
	onDrop func()
}

// Option configures a Bus.
type Option func(*Bus)

// WithBuffer sets the per-subscriber queue capacity.
func WithBuffer(n int) Option {
	return func(b *Bus) {
		if n > 0 {
			b.buffer = n
		}
	}
}

// WithDropHook registers a callback invoked each time a subscriber is dropped.
func WithDropHook(fn func()) Option {
	return func(b *Bus) { b.onDrop = fn }
}

// WithClock overrides the timestamp source.
func WithClock(now func() time.Time) Option {
	return func(b *Bus) { b.now = now }
}

// NewBus creates an event bus.
func NewBus(opts ...Option) *Bus {
	b := &Bus{
		seq:    make(map[string]int64),
		subs:   make(map[*Subscription]struct{}),
		buffer: DefaultBuffer,
		now:    time.Now,
	}
	for _, opt := range opts {
		opt(b)
	}
	return b
}

// Subscribe registers a new subscriber.
func (b *Bus) Subscribe() *Subscription {
	ch := make(chan Event, b.buffer)
	sub := &Subscription{C: ch, ch: ch}

	b.mu.Lock()
	b.subs[sub] = struct{}{}
	b.mu.Unlock()
	return sub
}

// Unsubscribe removes a subscriber and closes its channel. Unknown or
// already dropped subscriptions are ignored.
func (b *Bus) Unsubscribe(sub *Subscription) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.removeLocked(sub)
}

// SubscriberCount returns the number of active subscribers.
func (b *Bus) SubscriberCount() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.subs)
}

// Emit stamps and broadcasts an event. A subscriber whose queue is full is
// dropped rather than blocking the caller.
func (b *Bus) Emit(eventType, sessionID, source string, payload map[string]any, cost *float64) Event {
	if payload == nil {
		payload = map[string]any{}
	}

	b.mu.Lock()
	defer b.mu.Unlock()

	b.seq[sessionID]++
	ev := Event{
		ID:        uuid.NewString(),
		Type:      eventType,
		Timestamp: b.now().UTC().Format(TimeLayout),
		SessionID: sessionID,
		Source:    source,
		Seq:       b.seq[sessionID],
		Payload:   payload,
		CostUSD:   cost,
	}

	for sub := range b.subs {
		select {
		case sub.ch <- ev:
		default:
			b.removeLocked(sub)
			if b.onDrop != nil {
				b.onDrop()
			}
		}
	}
	return ev
}

func (b *Bus) removeLocked(sub *Subscription) {
	if sub == nil {
		return
	}
	if _, ok := b.subs[sub]; !ok {
		return
	}
	delete(b.subs, sub)
	close(sub.ch)
}
