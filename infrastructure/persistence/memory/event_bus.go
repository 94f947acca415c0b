package memory

import (
	"context"
	"sync"

	"go.uber.org/zap"

	"loom-backend/application/ports"
	"loom-backend/domain/events"
)

// EventBus is a synchronous in-process ports.EventBus. Handlers run on
// the publisher's goroutine; a failing handler is logged and does not
// stop delivery to the others.
type EventBus struct {
	mu        sync.RWMutex
	handlers  map[string][]ports.EventHandler
	published []events.DomainEvent
	logger    *zap.Logger
}

// NewEventBus creates an empty event bus
func NewEventBus(logger *zap.Logger) *EventBus {
	return &EventBus{
		handlers: make(map[string][]ports.EventHandler),
		logger:   logger,
	}
}

// Subscribe registers a handler for an event type
func (b *EventBus) Subscribe(eventType string, handler ports.EventHandler) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.handlers[eventType] = append(b.handlers[eventType], handler)
	return nil
}

// Publish delivers one event to every matching handler
func (b *EventBus) Publish(ctx context.Context, event events.DomainEvent) error {
	b.mu.Lock()
	b.published = append(b.published, event)
	handlers := append([]ports.EventHandler(nil), b.handlers[event.EventType()]...)
	b.mu.Unlock()

	for _, handler := range handlers {
		if !handler.CanHandle(event.EventType()) {
			continue
		}
		if err := handler.Handle(ctx, event); err != nil {
			b.logger.Warn("event handler failed",
				zap.String("eventType", event.EventType()),
				zap.String("eventId", event.EventID()),
				zap.Error(err))
		}
	}
	return nil
}

// PublishBatch delivers events in order
func (b *EventBus) PublishBatch(ctx context.Context, batch []events.DomainEvent) error {
	for _, event := range batch {
		if err := b.Publish(ctx, event); err != nil {
			return err
		}
	}
	return nil
}

// Published returns the events seen so far, for tests
func (b *EventBus) Published() []events.DomainEvent {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return append([]events.DomainEvent(nil), b.published...)
}
