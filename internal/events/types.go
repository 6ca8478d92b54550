package events

import (
	"time"

	"github.com/google/uuid"
)

// Event is the base interface for all fog and preview events
type Event interface {
	// ID returns a unique identifier for this event instance
	ID() string
	// Type returns the event type as a string for filtering and logging
	Type() string
	// Timestamp returns when the event occurred
	Timestamp() time.Time
	// MapName returns the map this event belongs to
	MapName() string
}

// BaseEvent provides common fields for all events
type BaseEvent struct {
	EventID   string    `json:"id"`
	EventType string    `json:"type"`
	Time      time.Time `json:"timestamp"`
	Map       string    `json:"map_name"`
}

func newBase(eventType, mapName string) BaseEvent {
	return BaseEvent{
		EventID:   uuid.NewString(),
		EventType: eventType,
		Time:      time.Now(),
		Map:       mapName,
	}
}

// ID implements Event interface
func (e BaseEvent) ID() string {
	return e.EventID
}

// Type implements Event interface
func (e BaseEvent) Type() string {
	return e.EventType
}

// Timestamp implements Event interface
func (e BaseEvent) Timestamp() time.Time {
	return e.Time
}

// MapName implements Event interface
func (e BaseEvent) MapName() string {
	return e.Map
}

// EventHandler is a function that processes events
type EventHandler func(Event)

// Subscriber represents an entity that can receive events
type Subscriber interface {
	// ID returns a unique identifier for this subscriber
	ID() string
	// HandleEvent processes an event
	HandleEvent(Event)
	// InterestedIn returns true if the subscriber wants to receive this event type
	InterestedIn(eventType string) bool
}

// Publisher is the interface for publishing events
type Publisher interface {
	// Publish sends an event to all interested subscribers
	Publish(Event)
}

// Bus is the main event bus interface
type Bus interface {
	Publisher
	// Subscribe adds a new subscriber to the event bus
	Subscribe(Subscriber)
	// Unsubscribe removes a subscriber from the event bus
	Unsubscribe(subscriberID string)
	// SubscribeFunc adds a function handler for specific event types
	SubscribeFunc(eventType string, handler EventHandler)
}

// NopPublisher drops every event
type NopPublisher struct{}

// Publish implements Publisher
func (NopPublisher) Publish(Event) {}
