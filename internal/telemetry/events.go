package telemetry

import (
	"encoding/json"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// EventType categorizes a published Event.
type EventType string

const (
	EventInfo     EventType = "info"
	EventEjection EventType = "ejection"
	EventRecovery EventType = "recovery"
	EventReload   EventType = "reload"
	EventError    EventType = "error"
)

// Event is one notification on the bus. ID is a uuid so a downstream
// consumer (the SSE endpoint, a log correlation) can dedupe or cite it
// without depending on send order.
type Event struct {
	ID        string    `json:"id"`
	Type      EventType `json:"type"`
	Pool      string    `json:"pool,omitempty"`
	Message   string    `json:"message"`
	Timestamp time.Time `json:"timestamp"`
}

// Subscriber is a channel that receives JSON-encoded events.
type Subscriber chan string

// EventBus fans published events out to every current subscriber and
// keeps a bounded in-memory history for late subscribers and the
// /debug/events backlog.
type EventBus struct {
	log *zap.Logger

	subsMu sync.RWMutex
	subs   map[Subscriber]bool

	histMu    sync.RWMutex
	history   []Event
	maxEvents int
}

// NewEventBus creates a bus retaining up to maxEvents in history.
func NewEventBus(log *zap.Logger, maxEvents int) *EventBus {
	if maxEvents <= 0 {
		maxEvents = 200
	}
	return &EventBus{
		log:       log,
		subs:      make(map[Subscriber]bool),
		history:   make([]Event, 0, maxEvents),
		maxEvents: maxEvents,
	}
}

// Subscribe registers a new subscriber channel.
func (b *EventBus) Subscribe() Subscriber {
	b.subsMu.Lock()
	defer b.subsMu.Unlock()
	sub := make(Subscriber, 16)
	b.subs[sub] = true
	return sub
}

// Unsubscribe removes and closes a subscriber channel.
func (b *EventBus) Unsubscribe(sub Subscriber) {
	b.subsMu.Lock()
	defer b.subsMu.Unlock()
	if _, ok := b.subs[sub]; ok {
		delete(b.subs, sub)
		close(sub)
	}
}

// Publish broadcasts an event to history and every current subscriber.
// A full subscriber buffer drops the event for that subscriber rather
// than blocking the publisher.
func (b *EventBus) Publish(typ EventType, pool, message string) {
	evt := Event{
		ID:        uuid.NewString(),
		Type:      typ,
		Pool:      pool,
		Message:   message,
		Timestamp: time.Now(),
	}

	b.histMu.Lock()
	if len(b.history) >= b.maxEvents {
		b.history = append(b.history[1:], evt)
	} else {
		b.history = append(b.history, evt)
	}
	b.histMu.Unlock()

	payload, err := json.Marshal(evt)
	if err != nil {
		if b.log != nil {
			b.log.Error("marshal event", zap.Error(err))
		}
		return
	}

	b.subsMu.RLock()
	defer b.subsMu.RUnlock()
	for sub := range b.subs {
		select {
		case sub <- string(payload):
		default:
			if b.log != nil {
				b.log.Warn("event subscriber buffer full, dropping event")
			}
		}
	}
}

// Recent returns up to limit of the most recently published events.
func (b *EventBus) Recent(limit int) []Event {
	b.histMu.RLock()
	defer b.histMu.RUnlock()

	if limit <= 0 || limit > len(b.history) {
		limit = len(b.history)
	}
	start := len(b.history) - limit
	out := make([]Event, len(b.history[start:]))
	copy(out, b.history[start:])
	return out
}
