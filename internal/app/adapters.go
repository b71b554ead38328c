package app

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/sokoni/server/internal/domain/order"
	"github.com/sokoni/server/internal/domain/payment"
	"github.com/sokoni/server/internal/model"
	"github.com/sokoni/server/internal/port/outbound"
)

// orderBridgeAdapter adapts OrderDomain to outbound.OrderBridgePort.
type orderBridgeAdapter struct {
	domain order.OrderDomain
}

func newOrderBridgeAdapter(domain order.OrderDomain) outbound.OrderBridgePort {
	return &orderBridgeAdapter{domain: domain}
}

func (a *orderBridgeAdapter) GetOrder(ctx context.Context, orderID uuid.UUID) (*model.Order, error) {
	o, err := a.domain.GetOrder(ctx, orderID)
	if err != nil {
		return nil, mapOrderError(err)
	}
	return o, nil
}

func (a *orderBridgeAdapter) LockOrder(ctx context.Context, orderID uuid.UUID) (*model.Order, error) {
	o, err := a.domain.GetOrderForUpdate(ctx, orderID)
	if err != nil {
		return nil, mapOrderError(err)
	}
	return o, nil
}

func (a *orderBridgeAdapter) MarkPaid(ctx context.Context, orderID uuid.UUID) error {
	return mapOrderError(a.domain.MarkPaid(ctx, orderID))
}

// mapOrderError translates order errors into the payment vocabulary, keeping the detail.
func mapOrderError(err error) error {
	switch {
	case err == nil:
		return nil
	case errors.Is(err, order.ErrOrderNotFound):
		return payment.ErrOrderNotFound
	case errors.Is(err, order.ErrOrderNotPayable):
		return fmt.Errorf("%w: %v", payment.ErrOrderNotPayable, err)
	default:
		return err
	}
}
