package order

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/sokoni/server/internal/model"
	"github.com/sokoni/server/internal/port/outbound"
	"go.uber.org/zap"
)

// OrderDomain defines the order operations the payment core relies on.
type OrderDomain interface {
	GetOrder(ctx context.Context, orderID uuid.UUID) (*model.Order, error)
	GetOrderByNumber(ctx context.Context, orderNumber string) (*model.Order, error)

	// GetOrderForUpdate returns the order locked until the surrounding transaction ends.
	GetOrderForUpdate(ctx context.Context, orderID uuid.UUID) (*model.Order, error)

	// MarkPaid records a received payment. Calling it again for a paid order is a no-op.
	MarkPaid(ctx context.Context, orderID uuid.UUID) error
}

// orderDomain implements OrderDomain.
type orderDomain struct {
	orderDB outbound.OrderDatabasePort
	logger  *zap.Logger
}

// NewOrderDomain creates a new order domain service.
func NewOrderDomain(orderDB outbound.OrderDatabasePort, logger *zap.Logger) OrderDomain {
	return &orderDomain{
		orderDB: orderDB,
		logger:  logger,
	}
}

func (d *orderDomain) GetOrder(ctx context.Context, orderID uuid.UUID) (*model.Order, error) {
	order, err := d.orderDB.GetByID(ctx, orderID)
	if err != nil {
		return nil, err
	}
	if order == nil {
		return nil, ErrOrderNotFound
	}
	return order, nil
}

func (d *orderDomain) GetOrderByNumber(ctx context.Context, orderNumber string) (*model.Order, error) {
	order, err := d.orderDB.GetByOrderNumber(ctx, orderNumber)
	if err != nil {
		return nil, err
	}
	if order == nil {
		return nil, ErrOrderNotFound
	}
	return order, nil
}

func (d *orderDomain) GetOrderForUpdate(ctx context.Context, orderID uuid.UUID) (*model.Order, error) {
	order, err := d.orderDB.GetByIDForUpdate(ctx, orderID)
	if err != nil {
		return nil, err
	}
	if order == nil {
		return nil, ErrOrderNotFound
	}
	return order, nil
}

func (d *orderDomain) MarkPaid(ctx context.Context, orderID uuid.UUID) error {
	// Lock the order so two payments for it cannot both flip it
	order, err := d.GetOrderForUpdate(ctx, orderID)
	if err != nil {
		return err
	}

	if order.IsPaid() {
		d.logger.Info("order already paid, skipping",
			zap.String("order_id", orderID.String()))
		return nil
	}
	if order.PaymentStatus == model.OrderPaymentRefunded {
		return fmt.Errorf("%w: payment status is %s", ErrOrderNotPayable, order.PaymentStatus)
	}

	now := time.Now()
	order.PaymentStatus = model.OrderPaymentPaid
	order.PaidAt = &now
	order.UpdatedAt = now

	if order.Status.CanTransitionTo(model.OrderStatusConfirmed) {
		order.Status = model.OrderStatusConfirmed
	} else {
		// Money arrived for an order that moved on without it; keep the
		// fulfillment status and surface it for manual follow-up.
		d.logger.Warn("paid order not in a confirmable state",
			zap.String("order_id", orderID.String()),
			zap.String("status", order.Status.String()))
	}

	if err := d.orderDB.Update(ctx, order); err != nil {
		return fmt.Errorf("update order: %w", err)
	}

	d.logger.Info("order marked paid",
		zap.String("order_id", orderID.String()),
		zap.String("order_number", order.OrderNumber))

	return nil
}
