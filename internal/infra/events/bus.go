package events

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"go.uber.org/zap"
)

// ErrUnsupportedEvent is returned when a value that is not an Event is published.
var ErrUnsupportedEvent = errors.New("unsupported event")

// Bus dispatches events to in-process handlers in registration order.
// It satisfies outbound.EventPublisherPort.
type Bus struct {
	mu       sync.RWMutex
	handlers map[string][]Handler
	logger   *zap.Logger
}

// NewBus creates a new event bus.
func NewBus(logger *zap.Logger) *Bus {
	return &Bus{
		handlers: make(map[string][]Handler),
		logger:   logger.Named("events"),
	}
}

// Register subscribes handlers to the event types they declare.
func (b *Bus) Register(handlers ...Handler) {
	b.mu.Lock()
	defer b.mu.Unlock()

	for _, handler := range handlers {
		for _, eventType := range handler.Handles() {
			b.handlers[eventType] = append(b.handlers[eventType], handler)
			b.logger.Debug("registered event handler", zap.String("event_type", eventType))
		}
	}
}

// Publish runs every handler for the event. A failing handler does not stop
// the others; all failures are returned joined.
func (b *Bus) Publish(ctx context.Context, event interface{}) error {
	evt, ok := event.(Event)
	if !ok {
		return fmt.Errorf("%w: %T", ErrUnsupportedEvent, event)
	}

	b.mu.RLock()
	handlers := b.handlers[evt.EventType()]
	b.mu.RUnlock()

	if len(handlers) == 0 {
		b.logger.Debug("no handlers registered for event",
			zap.String("event_type", evt.EventType()),
			zap.String("event_id", evt.EventID().String()),
		)
		return nil
	}

	var errs []error
	for _, handler := range handlers {
		if err := handler.Handle(ctx, evt); err != nil {
			b.logger.Error("event handler failed",
				zap.String("event_type", evt.EventType()),
				zap.String("event_id", evt.EventID().String()),
				zap.String("aggregate_id", evt.AggregateID().String()),
				zap.Error(err),
			)
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
