package service

import (
	"sync"
	"time"

	"github.com/google/uuid"
)

// EventType defines the type of event
type EventType string

const (
	EventElementCreated   EventType = "element_created"
	EventElementUpdated   EventType = "element_updated"
	EventElementRemoved   EventType = "element_removed"
	EventTopologyImported EventType = "topology_imported"
	EventLayersChanged    EventType = "layers_changed"
	EventMapStateChanged  EventType = "map_state_changed"
)

// Event represents an event that occurred in the system
type Event struct {
	ID      string    `json:"id"`
	Type    EventType `json:"type"`
	At      time.Time `json:"at"`
	Payload any       `json:"payload,omitempty"`
}

// NewEvent stamps an event with a fresh id and the current time
func NewEvent(t EventType, payload any) Event {
	return Event{
		ID:      uuid.NewString(),
		Type:    t,
		At:      time.Now().UTC(),
		Payload: payload,
	}
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

// Unsubscribe removes ch; it is not closed
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

// Publish sends an event to all subscribers
func (eb *EventBus) Publish(event Event) {
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
