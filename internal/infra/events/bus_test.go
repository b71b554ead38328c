package events

import (
	"context"
	"errors"
	"testing"

	"github.com/google/uuid"
	"github.com/sokoni/server/internal/model"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func resolvedRequest(status model.PaymentStatus) *model.PaymentRequest {
	orderID := uuid.New()
	code := 0
	receipt := "ABC123"
	return &model.PaymentRequest{
		ID:                 uuid.New(),
		CorrelationID:      "ws_CO_1",
		OrderRef:           &orderID,
		Amount:             1500,
		Status:             status,
		ProviderResultCode: &code,
		ProviderReceiptID:  &receipt,
	}
}

func TestBus_Publish(t *testing.T) {
	t.Run("dispatches to subscribed handlers in order", func(t *testing.T) {
		bus := NewBus(zap.NewNop())
		var seen []string
		bus.Register(
			NewHandlerFunc([]string{PaymentResolvedType}, func(_ context.Context, e Event) error {
				seen = append(seen, "first:"+e.EventType())
				return nil
			}),
			NewHandlerFunc([]string{"Other"}, func(context.Context, Event) error {
				seen = append(seen, "other")
				return nil
			}),
			NewHandlerFunc([]string{PaymentResolvedType}, func(context.Context, Event) error {
				seen = append(seen, "second")
				return nil
			}),
		)

		err := bus.Publish(context.Background(), NewPaymentResolvedEvent(resolvedRequest(model.PaymentStatusSuccess), model.ResolutionSourceCallback))
		require.NoError(t, err)
		assert.Equal(t, []string{"first:PaymentResolved", "second"}, seen)
	})

	t.Run("handler failure does not stop the rest", func(t *testing.T) {
		bus := NewBus(zap.NewNop())
		boom := errors.New("broker down")
		called := false
		bus.Register(
			NewHandlerFunc([]string{PaymentResolvedType}, func(context.Context, Event) error { return boom }),
			NewHandlerFunc([]string{PaymentResolvedType}, func(context.Context, Event) error {
				called = true
				return nil
			}),
		)

		err := bus.Publish(context.Background(), NewPaymentResolvedEvent(resolvedRequest(model.PaymentStatusFailed), model.ResolutionSourceQuery))
		assert.ErrorIs(t, err, boom)
		assert.True(t, called)
	})

	t.Run("no handlers", func(t *testing.T) {
		bus := NewBus(zap.NewNop())
		err := bus.Publish(context.Background(), NewPaymentResolvedEvent(resolvedRequest(model.PaymentStatusSuccess), model.ResolutionSourceQuery))
		assert.NoError(t, err)
	})

	t.Run("rejects non events", func(t *testing.T) {
		bus := NewBus(zap.NewNop())
		err := bus.Publish(context.Background(), "not an event")
		assert.ErrorIs(t, err, ErrUnsupportedEvent)
	})
}

func TestNewPaymentResolvedEvent(t *testing.T) {
	req := resolvedRequest(model.PaymentStatusSuccess)
	evt := NewPaymentResolvedEvent(req, model.ResolutionSourceCallback)

	assert.Equal(t, PaymentResolvedType, evt.EventType())
	assert.Equal(t, req.ID, evt.AggregateID())
	assert.Equal(t, AggregatePaymentRequest, evt.AggregateType())
	assert.Equal(t, "ABC123", evt.ReceiptID)
	assert.Equal(t, req.OrderRef, evt.OrderID)
	assert.True(t, evt.Succeeded())

	failed := NewPaymentResolvedEvent(resolvedRequest(model.PaymentStatusCancelled), model.ResolutionSourceQuery)
	assert.False(t, failed.Succeeded())
}
