// Package eventbus carries definition lifecycle and issue transition events
// between the engine and whoever listens: the audit log, caches in other
// replicas, downstream notification services.
package eventbus

import (
	"context"
	"fmt"

	"github.com/dukex/issueflow/pkg/events"
)

// Event is anything published on the bus. Subscribers receive the concrete
// events.* type as a pointer.
type Event interface {
	GetType() events.EventType
}

// EventPublisher publishes events. The key orders delivery: events sharing a
// key (a workflow ID or an issue ID) reach subscribers in publish order.
type EventPublisher interface {
	Publish(ctx context.Context, key string, event Event) error
}

// EventSubscriber routes incoming events to one handler per event type.
// Handlers must be registered before Subscribe is called.
type EventSubscriber interface {
	Handle(eventType events.EventType, handler EventHandler) error
	Subscribe(ctx context.Context) error
}

type EventHandler func(ctx context.Context, event Event) error

type EventBus interface {
	EventPublisher
	EventSubscriber
	Close() error
}

// HandleEach registers the same handler for every given event type.
func HandleEach(sub EventSubscriber, handler EventHandler, eventTypes ...events.EventType) error {
	for _, eventType := range eventTypes {
		if err := sub.Handle(eventType, handler); err != nil {
			return fmt.Errorf("failed to handle %s: %w", eventType, err)
		}
	}

	return nil
}
