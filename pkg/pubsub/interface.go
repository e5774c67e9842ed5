package pubsub

import (
	"context"
	"encoding/json"
	"time"
)

// Event is the envelope carried on the bus. Source identifies the
// publishing instance so subscribers can skip their own events.
type Event struct {
	Type      string          `json:"type"`
	RoomID    string          `json:"room_id"`
	Source    string          `json:"source"`
	Payload   json.RawMessage `json:"payload"`
	Timestamp time.Time       `json:"timestamp"`
}

// NewEvent creates a new event stamped with source and the current time.
func NewEvent(eventType, roomID, source string, payload interface{}) (*Event, error) {
	data, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}
	return &Event{
		Type:      eventType,
		RoomID:    roomID,
		Source:    source,
		Payload:   data,
		Timestamp: time.Now().UTC(),
	}, nil
}

// FromSource reports whether the event was published by source.
func (e *Event) FromSource(source string) bool {
	return e.Source != "" && e.Source == source
}

// UnmarshalPayload unmarshals the event payload into the given struct.
func (e *Event) UnmarshalPayload(v interface{}) error {
	return json.Unmarshal(e.Payload, v)
}

// Publisher publishes events to the event bus.
type Publisher interface {
	Publish(ctx context.Context, channel string, event *Event) error
}

// Subscriber subscribes to events from the event bus. The returned channel
// is closed when ctx is done or the subscription is removed.
type Subscriber interface {
	Subscribe(ctx context.Context, channel string) (<-chan *Event, error)
	SubscribePattern(ctx context.Context, pattern string) (<-chan *Event, error)
	Unsubscribe(ctx context.Context, channel string) error
}

// PubSub combines Publisher and Subscriber interfaces.
type PubSub interface {
	Publisher
	Subscriber
	Close() error
}
