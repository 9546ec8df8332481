// Package eventbus carries mission lifecycle notifications between the
// runops processes.
package eventbus

import (
	"context"

	"github.com/atypis/runops/pkg/events"
)

// Event is any payload the bus can route, keyed by its declared type.
type Event interface {
	GetType() events.EventType
}

// EventHandler consumes one deserialized event.
type EventHandler func(ctx context.Context, event any) error

// EventBus publishes mission lifecycle events and lets consumers register
// typed handlers before starting the subscribe loop.
type EventBus interface {
	Publish(ctx context.Context, key string, event Event) error
	Handle(eventType events.EventType, handler EventHandler) error
	Subscribe(ctx context.Context) error
	Close() error
	GenerateID() string
}
