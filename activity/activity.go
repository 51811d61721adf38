// Package activity materializes a queryable history from Event Bus events
// (spec.md §4.8): a wildcard subscriber that appends selected events into an
// in-memory, FIFO-bounded log with paging, correlation-id filtering, and
// topic filtering. This is the data source the (out-of-scope) activity API
// surface reads from.
package activity

import (
	"context"
	"sync"

	"github.com/mediabridge/gatewayd/eventbus"
)

// Item is one materialized activity entry.
type Item struct {
	ID            string
	Topic         string
	CorrelationID string
	Payload       any
	EmittedAtUnix int64
}

// Config tunes the Log.
type Config struct {
	// MaxItems bounds the FIFO log; oldest entries are evicted first.
	// Default 1000.
	MaxItems int

	// AllowedTopics is the allow-list of topics materialized into the log.
	// Nil or empty means every topic is recorded.
	AllowedTopics []string
}

func (c Config) withDefaults() Config {
	if c.MaxItems <= 0 {
		c.MaxItems = 1000
	}
	return c
}

// Log is the in-memory, FIFO-bounded activity history, mirroring the
// map+mutex+insertion-order idiom used by health.Aggregator and
// recovery.registry, here applied to a flat ordered slice since activity
// has no per-key identity beyond insertion order.
type Log struct {
	bus    *eventbus.Bus
	cfg    Config
	allow  map[string]bool

	mu    sync.RWMutex
	items []Item
}

// New constructs a Log bound to bus. Call Run to subscribe and start
// recording.
func New(bus *eventbus.Bus, cfg Config) *Log {
	cfg = cfg.withDefaults()
	var allow map[string]bool
	if len(cfg.AllowedTopics) > 0 {
		allow = make(map[string]bool, len(cfg.AllowedTopics))
		for _, t := range cfg.AllowedTopics {
			allow[t] = true
		}
	}
	return &Log{
		bus:   bus,
		cfg:   cfg,
		allow: allow,
		items: make([]Item, 0, cfg.MaxItems),
	}
}

// Run subscribes to every bus topic and blocks until ctx is cancelled.
func (l *Log) Run(ctx context.Context) {
	unsubscribe := l.bus.Subscribe("*", l.record)
	defer unsubscribe()
	<-ctx.Done()
}

func (l *Log) record(ev eventbus.Event) {
	if l.allow != nil && !l.allow[ev.Topic] {
		return
	}

	item := Item{
		ID:            ev.ID,
		Topic:         ev.Topic,
		CorrelationID: ev.CorrelationID,
		Payload:       ev.Payload,
		EmittedAtUnix: ev.Timestamp.Unix(),
	}

	l.mu.Lock()
	defer l.mu.Unlock()
	if len(l.items) >= l.cfg.MaxItems {
		copy(l.items, l.items[1:])
		l.items = l.items[:len(l.items)-1]
	}
	l.items = append(l.items, item)
}

// ListOptions filters and pages a List call. Zero value lists every item,
// most-recent-first, unbounded.
type ListOptions struct {
	Topic         string // empty matches every topic
	CorrelationID string // empty matches every correlation id
	Offset        int
	Limit         int // 0 means unbounded
}

// List returns items matching opts, most-recent-first.
func (l *Log) List(opts ListOptions) []Item {
	l.mu.RLock()
	defer l.mu.RUnlock()

	matched := make([]Item, 0, len(l.items))
	for i := len(l.items) - 1; i >= 0; i-- {
		it := l.items[i]
		if opts.Topic != "" && it.Topic != opts.Topic {
			continue
		}
		if opts.CorrelationID != "" && it.CorrelationID != opts.CorrelationID {
			continue
		}
		matched = append(matched, it)
	}

	if opts.Offset > 0 {
		if opts.Offset >= len(matched) {
			return []Item{}
		}
		matched = matched[opts.Offset:]
	}
	if opts.Limit > 0 && opts.Limit < len(matched) {
		matched = matched[:opts.Limit]
	}
	return matched
}

// Len returns the current number of retained items.
func (l *Log) Len() int {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return len(l.items)
}
