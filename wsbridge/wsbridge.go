// Package wsbridge fans Event Bus events out to live WebSocket clients.
// Adapted from the single-hub-goroutine pattern used for audit broadcast:
// one goroutine owns the connection set, registration/unregistration and
// broadcast all flow through channels so the set itself needs no lock.
package wsbridge

import (
	"context"
	"encoding/json"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/mediabridge/gatewayd/eventbus"
	"github.com/mediabridge/gatewayd/observe"
)

// Frame is the JSON envelope sent to every client for a bus event.
type Frame struct {
	Type          string `json:"type"`
	EventType     string `json:"eventType,omitempty"`
	CorrelationID string `json:"correlationId,omitempty"`
	Timestamp     int64  `json:"timestamp,omitempty"`
	Payload       any    `json:"payload,omitempty"`
	Meta          any    `json:"meta,omitempty"`
}

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool { return true },
}

// conn wraps one WebSocket client connection.
type conn struct {
	ws   *websocket.Conn
	send chan []byte
	mu   sync.Mutex
}

// Bridge owns the set of connected clients and subscribes to a configurable
// set of Event Bus topics, translating each event into a Frame.
type Bridge struct {
	bus    *eventbus.Bus
	topics []string
	logger observe.Logger

	connections  map[*conn]bool
	broadcastCh  chan []byte
	registerCh   chan *conn
	unregisterCh chan *conn

	unsubscribe []func()
}

// Config tunes the Bridge.
type Config struct {
	// Topics is the subscribed topic set. Nil means eventbus.DefaultBridgeTopics.
	Topics []string
}

// New constructs a Bridge bound to bus. Call Run to start the hub loop.
func New(bus *eventbus.Bus, cfg Config, logger observe.Logger) *Bridge {
	topics := cfg.Topics
	if topics == nil {
		topics = eventbus.DefaultBridgeTopics
	}
	if logger == nil {
		logger = observe.NewLogger("info")
	}
	return &Bridge{
		bus:          bus,
		topics:       topics,
		logger:       logger,
		connections:  make(map[*conn]bool),
		broadcastCh:  make(chan []byte, 256),
		registerCh:   make(chan *conn),
		unregisterCh: make(chan *conn),
	}
}

// Run starts the hub loop and the bus subscriptions. Blocks until ctx is
// cancelled.
func (b *Bridge) Run(ctx context.Context) {
	for _, topic := range b.topics {
		topic := topic
		unsub := b.bus.Subscribe(topic, func(ev eventbus.Event) {
			b.handleEvent(topic, ev)
		})
		b.unsubscribe = append(b.unsubscribe, unsub)
	}

	for {
		select {
		case <-ctx.Done():
			for _, unsub := range b.unsubscribe {
				unsub()
			}
			return

		case c := <-b.registerCh:
			b.connections[c] = true

		case c := <-b.unregisterCh:
			if _, ok := b.connections[c]; ok {
				delete(b.connections, c)
				close(c.send)
			}

		case msg := <-b.broadcastCh:
			for c := range b.connections {
				select {
				case c.send <- msg:
				default:
					delete(b.connections, c)
					close(c.send)
				}
			}
		}
	}
}

func (b *Bridge) handleEvent(topic string, ev eventbus.Event) {
	frame := Frame{
		Type:          "event",
		EventType:     topic,
		CorrelationID: ev.CorrelationID,
		Timestamp:     ev.Timestamp.Unix(),
		Payload:       ev.Payload,
	}
	data, err := json.Marshal(frame)
	if err != nil {
		b.logger.Error(context.Background(), "wsbridge: marshal frame failed", observe.Field{Key: "error", Value: err.Error()})
		return
	}
	b.Broadcast(data)
}

// Broadcast sends a raw frame to every connected client. Non-blocking; if
// the hub's broadcast channel is full the message is dropped.
func (b *Bridge) Broadcast(msg []byte) {
	select {
	case b.broadcastCh <- msg:
	default:
	}
}

// ServeHTTP upgrades the request to a WebSocket connection, sends the
// connection.established welcome frame, and registers the client.
func (b *Bridge) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	ws, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		b.logger.Error(r.Context(), "wsbridge: upgrade failed", observe.Field{Key: "error", Value: err.Error()})
		return
	}

	c := &conn{ws: ws, send: make(chan []byte, 64)}
	b.registerCh <- c

	welcome, _ := json.Marshal(Frame{
		Type:      "event",
		EventType: eventbus.TopicConnectionEstablished,
		Timestamp: time.Now().Unix(),
	})
	select {
	case c.send <- welcome:
	default:
	}

	go c.writePump()
	go c.readPump(b)
}

func (c *conn) writePump() {
	defer c.ws.Close()
	for msg := range c.send {
		c.mu.Lock()
		err := c.ws.WriteMessage(websocket.TextMessage, msg)
		c.mu.Unlock()
		if err != nil {
			return
		}
	}
}

func (c *conn) readPump(b *Bridge) {
	defer func() {
		b.unregisterCh <- c
		c.ws.Close()
	}()
	for {
		if _, _, err := c.ws.ReadMessage(); err != nil {
			return
		}
	}
}
