package outbound

import (
	"context"

	"github.com/google/uuid"
	"github.com/sokoni/server/internal/model"
)

// OrderDatabasePort defines the interface for order database operations.
type OrderDatabasePort interface {
	Create(ctx context.Context, order *model.Order) error
	GetByID(ctx context.Context, id uuid.UUID) (*model.Order, error)
	GetByIDForUpdate(ctx context.Context, id uuid.UUID) (*model.Order, error)
	GetByOrderNumber(ctx context.Context, orderNumber string) (*model.Order, error)
	Update(ctx context.Context, order *model.Order) error
}

// OrderBridgePort is the narrow view of order management used by payment
// reconciliation.
type OrderBridgePort interface {
	// GetOrder returns the order, or an order-not-found error.
	GetOrder(ctx context.Context, orderID uuid.UUID) (*model.Order, error)

	// LockOrder returns the order locked for the rest of the caller's transaction.
	LockOrder(ctx context.Context, orderID uuid.UUID) (*model.Order, error)

	// MarkPaid sets the order paid and confirmed. No-op if already paid.
	MarkPaid(ctx context.Context, orderID uuid.UUID) error
}
