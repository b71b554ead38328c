package rabbitmq

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/sokoni/server/internal/infra/events"
	"github.com/sokoni/server/internal/port/outbound"
	"go.uber.org/zap"
)

// PaymentForwarder relays resolved payments to the broker. Every resolution
// goes to the resolved queue; successful ones also go to the succeeded queue
// for fulfilment consumers.
type PaymentForwarder struct {
	broker         outbound.MessagePort
	resolvedQueue  string
	succeededQueue string
	logger         *zap.Logger
}

// NewPaymentForwarder creates a bus handler that publishes to broker.
func NewPaymentForwarder(broker outbound.MessagePort, resolvedQueue, succeededQueue string, logger *zap.Logger) *PaymentForwarder {
	return &PaymentForwarder{
		broker:         broker,
		resolvedQueue:  resolvedQueue,
		succeededQueue: succeededQueue,
		logger:         logger.Named("forwarder"),
	}
}

func (f *PaymentForwarder) Handles() []string {
	return []string{events.PaymentResolvedType}
}

func (f *PaymentForwarder) Handle(ctx context.Context, event events.Event) error {
	evt, ok := event.(*events.PaymentResolvedEvent)
	if !ok {
		return fmt.Errorf("%w: %T", events.ErrUnsupportedEvent, event)
	}

	body, err := json.Marshal(evt)
	if err != nil {
		return fmt.Errorf("marshal %s: %w", evt.EventType(), err)
	}

	if err := f.broker.Publish(ctx, f.resolvedQueue, body); err != nil {
		return err
	}
	if evt.Succeeded() && f.succeededQueue != "" {
		if err := f.broker.Publish(ctx, f.succeededQueue, body); err != nil {
			return err
		}
	}

	f.logger.Debug("payment event forwarded",
		zap.String("correlation_id", evt.CorrelationID),
		zap.String("status", string(evt.Status)),
	)
	return nil
}

// Compile-time check
var _ events.Handler = (*PaymentForwarder)(nil)
