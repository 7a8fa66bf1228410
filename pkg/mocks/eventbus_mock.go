package mocks

import (
	"context"

	"github.com/dukex/issueflow/pkg/eventbus"
	"github.com/dukex/issueflow/pkg/events"
	"github.com/stretchr/testify/mock"
)

// MockEventBus records published events for assertions in service tests.
type MockEventBus struct {
	mock.Mock
}

func (m *MockEventBus) Publish(ctx context.Context, key string, event eventbus.Event) error {
	args := m.Called(ctx, key, event)

	return args.Error(0)
}

func (m *MockEventBus) Handle(eventType events.EventType, handler eventbus.EventHandler) error {
	args := m.Called(eventType, handler)

	return args.Error(0)
}

func (m *MockEventBus) Subscribe(ctx context.Context) error {
	args := m.Called(ctx)

	return args.Error(0)
}

func (m *MockEventBus) Close() error {
	args := m.Called()

	return args.Error(0)
}

// OfType matches a published event by its type.
func OfType(eventType events.EventType) any {
	return mock.MatchedBy(func(event eventbus.Event) bool {
		return event.GetType() == eventType
	})
}
