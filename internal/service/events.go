package service

import (
	"sync"

	"patchbay/internal/domain"
)

// EventType defines the type of event
type EventType string

const (
	// EventConnectionLearned: a link made by any actor was added to the store
	EventConnectionLearned EventType = "connection_learned"
	// EventConnectionForgotten: a link removed by any actor was dropped from the store
	EventConnectionForgotten EventType = "connection_forgotten"
	// EventLinked: patchbay asked the registry for a link and it was accepted
	EventLinked EventType = "linked"
	// EventStoreReloaded: the store was re-read after an external edit
	EventStoreReloaded EventType = "store_reloaded"
)

// Event represents something the engine did
type Event struct {
	Type       EventType         `json:"type"`
	Connection domain.Connection `json:"connection,omitzero"`
	Count      int               `json:"count,omitempty"` // EventStoreReloaded: connections after reload
}

// EventBus allows publishing and subscribing to events
type EventBus struct {
	mu          sync.RWMutex
	subscribers []chan<- Event
}

// NewEventBus creates a new event bus
func NewEventBus() *EventBus {
	return &EventBus{
		subscribers: make([]chan<- Event, 0),
	}
}

// Subscribe adds a subscriber to receive events
func (eb *EventBus) Subscribe(ch chan<- Event) {
	eb.mu.Lock()
	defer eb.mu.Unlock()
	eb.subscribers = append(eb.subscribers, ch)
}

// Unsubscribe removes ch. Once it returns no further Publish sends on ch, so
// the caller may close it.
func (eb *EventBus) Unsubscribe(ch chan<- Event) {
	eb.mu.Lock()
	defer eb.mu.Unlock()
	for i, sub := range eb.subscribers {
		if sub == ch {
			eb.subscribers = append(eb.subscribers[:i], eb.subscribers[i+1:]...)
			return
		}
	}
}

// Publish sends an event to all subscribers. A nil bus drops the event.
func (eb *EventBus) Publish(event Event) {
	if eb == nil {
		return
	}
	eb.mu.RLock()
	defer eb.mu.RUnlock()
	for _, ch := range eb.subscribers {
		select {
		case ch <- event:
		default:
			// Subscriber is slow, skip
		}
	}
}

// Activity tallies events over a daemon run.
type Activity struct {
	Learned   int
	Forgotten int
	Linked    int
	Reloads   int
}

// Record counts ev. Unknown types are ignored.
func (a *Activity) Record(ev Event) {
	switch ev.Type {
	case EventConnectionLearned:
		a.Learned++
	case EventConnectionForgotten:
		a.Forgotten++
	case EventLinked:
		a.Linked++
	case EventStoreReloaded:
		a.Reloads++
	}
}
