package events

import (
	"encoding/json"
	"sync"
	"time"
)

// Event types published by the client core.
const (
	SessionSignedIn    = "session.signed_in"
	SessionSignedOut   = "session.signed_out"
	ReservationCreated = "reservation.created"
	ReservationDeleted = "reservation.deleted"
	ClassroomCreated   = "classroom.created"
)

// Event is a lightweight in-process notification.
type Event struct {
	Type      string
	Payload   []byte
	CreatedAt time.Time
}

// Decode unmarshals the JSON payload into out.
func (e Event) Decode(out any) error {
	return json.Unmarshal(e.Payload, out)
}

// Handler reacts to an event.
type Handler func(event Event) error

// Bus provides in-process pub/sub. A nil *Bus drops everything.
type Bus struct {
	subscribers map[string][]Handler
	mu          sync.RWMutex
}

func NewBus() *Bus {
	return &Bus{subscribers: make(map[string][]Handler)}
}

// Subscribe registers a handler for an event type.
func (b *Bus) Subscribe(eventType string, handler Handler) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.subscribers[eventType] = append(b.subscribers[eventType], handler)
}

// Publish runs the subscribers of the event type synchronously and returns the first handler error.
func (b *Bus) Publish(event Event) error {
	if b == nil {
		return nil
	}
	b.mu.RLock()
	handlers := append([]Handler(nil), b.subscribers[event.Type]...)
	b.mu.RUnlock()

	if event.CreatedAt.IsZero() {
		event.CreatedAt = time.Now()
	}

	var first error
	for _, handler := range handlers {
		if err := handler(event); err != nil && first == nil {
			first = err
		}
	}
	return first
}

// PublishJSON marshals payload and publishes it under eventType.
func (b *Bus) PublishJSON(eventType string, payload any) error {
	if b == nil {
		return nil
	}
	data, err := json.Marshal(payload)
	if err != nil {
		return err
	}
	return b.Publish(Event{Type: eventType, Payload: data})
}
