package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/sokoni/server/internal/model"
	"github.com/sokoni/server/internal/port/outbound"
	"github.com/sokoni/server/internal/shared/database"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// orderAdapter implements outbound.OrderDatabasePort.
type orderAdapter struct {
	db *gorm.DB
}

// NewOrderAdapter creates a new order database adapter.
func NewOrderAdapter(db *gorm.DB) outbound.OrderDatabasePort {
	return &orderAdapter{db: db}
}

func (a *orderAdapter) Create(ctx context.Context, order *model.Order) error {
	return database.Conn(ctx, a.db).Create(order).Error
}

func (a *orderAdapter) GetByID(ctx context.Context, id uuid.UUID) (*model.Order, error) {
	var order model.Order
	err := database.Conn(ctx, a.db).First(&order, "id = ?", id).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &order, nil
}

func (a *orderAdapter) GetByIDForUpdate(ctx context.Context, id uuid.UUID) (*model.Order, error) {
	var order model.Order
	err := database.Conn(ctx, a.db).
		Clauses(clause.Locking{Strength: "UPDATE"}).
		First(&order, "id = ?", id).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, fmt.Errorf("lock order: %w", err)
	}
	return &order, nil
}

func (a *orderAdapter) GetByOrderNumber(ctx context.Context, orderNumber string) (*model.Order, error) {
	var order model.Order
	err := database.Conn(ctx, a.db).First(&order, "order_number = ?", orderNumber).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &order, nil
}

func (a *orderAdapter) Update(ctx context.Context, order *model.Order) error {
	return database.Conn(ctx, a.db).Save(order).Error
}

// Compile-time check
var _ outbound.OrderDatabasePort = (*orderAdapter)(nil)
