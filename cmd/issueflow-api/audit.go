package main

import (
	"context"
	"log/slog"

	"github.com/dukex/issueflow/pkg/eventbus"
	"github.com/dukex/issueflow/pkg/events"
)

var auditedEvents = []events.EventType{
	events.WorkflowCreatedEvent,
	events.WorkflowUpdatedEvent,
	events.WorkflowDeletedEvent,
	events.StepCreatedEvent,
	events.TransitionCreatedEvent,
	events.IssueTransitionedEvent,
}

// auditEvents writes every lifecycle event seen on the bus to the log.
func auditEvents(ctx context.Context, bus eventbus.EventSubscriber, logger *slog.Logger) error {
	err := eventbus.HandleEach(bus, func(ctx context.Context, event eventbus.Event) error {
		logger.InfoContext(ctx, "Event", "event_type", event.GetType(), "event", event)

		return nil
	}, auditedEvents...)
	if err != nil {
		return err
	}

	return bus.Subscribe(ctx)
}
