// Package eventbus implements the in-process publish/subscribe bus every
// other gateway component uses to observe what happened without being
// wired directly to the component that caused it. Topics are hierarchical
// dotted strings ("download.failed", "monitoring.degraded"); subscribers
// may match an exact topic or a "*" wildcard for every topic.
package eventbus

import (
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
)

// Event is one fact published to the bus.
type Event struct {
	ID            string
	Topic         string
	CorrelationID string
	Payload       any
	Timestamp     time.Time
}

// Handler receives one Event. A Handler that panics is recovered by the
// bus, counted in DispatchErrors and passed to the OnDispatchError callback
// when one is installed; it never brings down the publisher or other
// subscribers.
type Handler func(Event)

// Bus is a bounded, in-memory event bus with topic subscription and
// correlation-id history lookups.
//
// Concurrency: Bus is safe for concurrent Publish/Subscribe from any
// number of goroutines. Each subscription has its own background goroutine
// draining a private FIFO queue, so one handler's invocations are always
// delivered in emit order and one slow or panicking handler never blocks
// or brings down another.
type Bus struct {
	mu           sync.RWMutex
	subscribers  map[string][]*subscription
	history      []Event
	maxHistory   int
	errorHandler func(topic string, err any)
	dispatchErrs atomic.Int64
}

// Config tunes the Bus.
type Config struct {
	// MaxHistorySize bounds the ring buffer of retained events. Default 1000.
	MaxHistorySize int
}

// New constructs a Bus.
func New(cfg Config) *Bus {
	max := cfg.MaxHistorySize
	if max <= 0 {
		max = 1000
	}
	return &Bus{
		subscribers: make(map[string][]*subscription),
		history:     make([]Event, 0, max),
		maxHistory:  max,
	}
}

// OnDispatchError installs a callback invoked when a Handler panics.
// Optional; a nil callback means panics are silently recovered.
func (b *Bus) OnDispatchError(fn func(topic string, err any)) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.errorHandler = fn
}

// Subscribe registers fn to be invoked for every Event published to topic.
// Passing "*" subscribes to every topic. Returns an unsubscribe function.
func (b *Bus) Subscribe(topic string, fn Handler) (unsubscribe func()) {
	b.mu.Lock()
	defer b.mu.Unlock()

	sub := newSubscription(b, fn)
	b.subscribers[topic] = append(b.subscribers[topic], sub)
	idx := len(b.subscribers[topic]) - 1

	return func() {
		b.mu.Lock()
		handlers := b.subscribers[topic]
		if idx < len(handlers) && handlers[idx] == sub {
			handlers[idx] = nil // leave a hole rather than reindex concurrent subscribers
		}
		b.mu.Unlock()
		sub.close()
	}
}

// Publish appends a new Event to the history and dispatches it to every
// subscriber of its topic plus every wildcard subscriber. CorrelationID, if
// empty, is generated so callers can always join on it afterward.
func (b *Bus) Publish(topic string, correlationID string, payload any) Event {
	if correlationID == "" {
		correlationID = uuid.New().String()
	}
	ev := Event{
		ID:            uuid.New().String(),
		Topic:         topic,
		CorrelationID: correlationID,
		Payload:       payload,
		Timestamp:     time.Now(),
	}

	b.mu.Lock()
	b.appendHistoryLocked(ev)
	// Enqueueing while still holding the bus lock (rather than snapshotting
	// and dispatching after unlocking) guarantees that concurrent Publish
	// calls feed each subscription's FIFO queue in the same order they are
	// serialized here. A subscription's own goroutine then drains its queue
	// strictly in that order, which is what gives a wildcard subscriber
	// (e.g. the activity log) a stable emit-order view across rapid
	// concurrent publishes.
	for _, sub := range b.subscribers[topic] {
		if sub != nil {
			sub.enqueue(ev)
		}
	}
	for _, sub := range b.subscribers["*"] {
		if sub != nil {
			sub.enqueue(ev)
		}
	}
	b.mu.Unlock()

	return ev
}

// DispatchErrors returns the number of handler panics recovered so far.
func (b *Bus) DispatchErrors() int64 {
	return b.dispatchErrs.Load()
}

func (b *Bus) appendHistoryLocked(ev Event) {
	if len(b.history) >= b.maxHistory {
		// Drop the oldest entry; history is a FIFO ring buffer.
		copy(b.history, b.history[1:])
		b.history = b.history[:len(b.history)-1]
	}
	b.history = append(b.history, ev)
}

// History returns every retained event, oldest first.
func (b *Bus) History() []Event {
	b.mu.RLock()
	defer b.mu.RUnlock()
	out := make([]Event, len(b.history))
	copy(out, b.history)
	return out
}

// ByCorrelationID returns every retained event sharing the given
// correlation id, oldest first, used to reconstruct a monitoring →
// recovery chain for a single failure.
func (b *Bus) ByCorrelationID(id string) []Event {
	b.mu.RLock()
	defer b.mu.RUnlock()
	var out []Event
	for _, ev := range b.history {
		if ev.CorrelationID == id {
			out = append(out, ev)
		}
	}
	return out
}

// subscription is one Subscribe registration: a handler plus a private FIFO
// queue drained by a single dedicated goroutine, so this handler's
// invocations are always sequential and in enqueue order regardless of how
// many goroutines call Publish concurrently, while a panic or a slow
// handler here never affects any other subscription.
type subscription struct {
	bus     *Bus
	handler Handler

	mu     sync.Mutex
	cond   *sync.Cond
	queue  []Event
	closed bool
}

func newSubscription(b *Bus, fn Handler) *subscription {
	s := &subscription{bus: b, handler: fn}
	s.cond = sync.NewCond(&s.mu)
	go s.run()
	return s
}

// enqueue appends ev to the queue and wakes the draining goroutine. It never
// blocks on handler execution, so a slow subscriber only delays its own
// future invocations, never the publisher or other subscribers.
func (s *subscription) enqueue(ev Event) {
	s.mu.Lock()
	s.queue = append(s.queue, ev)
	s.mu.Unlock()
	s.cond.Signal()
}

// close stops the draining goroutine once its queue empties; already
// enqueued events are still delivered.
func (s *subscription) close() {
	s.mu.Lock()
	s.closed = true
	s.mu.Unlock()
	s.cond.Broadcast()
}

func (s *subscription) run() {
	for {
		s.mu.Lock()
		for len(s.queue) == 0 && !s.closed {
			s.cond.Wait()
		}
		if len(s.queue) == 0 {
			s.mu.Unlock()
			return
		}
		ev := s.queue[0]
		s.queue = s.queue[1:]
		s.mu.Unlock()

		s.dispatch(ev)
	}
}

func (s *subscription) dispatch(ev Event) {
	defer func() {
		if r := recover(); r != nil {
			s.bus.dispatchErrs.Add(1)
			s.bus.mu.RLock()
			onErr := s.bus.errorHandler
			s.bus.mu.RUnlock()
			if onErr != nil {
				onErr(ev.Topic, r)
			}
		}
	}()
	s.handler(ev)
}
