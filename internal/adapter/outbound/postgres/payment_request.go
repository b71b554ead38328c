package postgres

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/sokoni/server/internal/model"
	"github.com/sokoni/server/internal/port/outbound"
	"github.com/sokoni/server/internal/shared/database"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// paymentRequestAdapter implements outbound.PaymentRequestDatabasePort.
type paymentRequestAdapter struct {
	db *gorm.DB
}

// NewPaymentRequestAdapter creates a new ledger database adapter.
func NewPaymentRequestAdapter(db *gorm.DB) outbound.PaymentRequestDatabasePort {
	return &paymentRequestAdapter{db: db}
}

func (a *paymentRequestAdapter) Create(ctx context.Context, req *model.PaymentRequest) error {
	if err := database.Conn(ctx, a.db).Create(req).Error; err != nil {
		if errors.Is(err, gorm.ErrDuplicatedKey) {
			return fmt.Errorf("create payment request: %w", outbound.ErrDuplicate)
		}
		return fmt.Errorf("create payment request: %w", err)
	}
	return nil
}

func (a *paymentRequestAdapter) FindByCorrelationID(ctx context.Context, correlationID string) (*model.PaymentRequest, error) {
	var req model.PaymentRequest
	err := database.Conn(ctx, a.db).First(&req, "correlation_id = ?", correlationID).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, fmt.Errorf("find payment request: %w", err)
	}
	return &req, nil
}

func (a *paymentRequestAdapter) FindByCorrelationIDForUpdate(ctx context.Context, correlationID string) (*model.PaymentRequest, error) {
	var req model.PaymentRequest
	err := database.Conn(ctx, a.db).
		Clauses(clause.Locking{Strength: "UPDATE"}).
		First(&req, "correlation_id = ?", correlationID).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, fmt.Errorf("lock payment request: %w", err)
	}
	return &req, nil
}

func (a *paymentRequestAdapter) FindPendingByOrder(ctx context.Context, orderID uuid.UUID) (*model.PaymentRequest, error) {
	var req model.PaymentRequest
	err := database.Conn(ctx, a.db).
		Where("order_ref = ? AND status = ?", orderID, model.PaymentStatusPending).
		Order("created_at DESC").
		First(&req).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, fmt.Errorf("find pending payment request: %w", err)
	}
	return &req, nil
}

func (a *paymentRequestAdapter) FindByOrder(ctx context.Context, orderID uuid.UUID) ([]*model.PaymentRequest, error) {
	var reqs []*model.PaymentRequest
	err := database.Conn(ctx, a.db).
		Where("order_ref = ?", orderID).
		Order("created_at DESC").
		Find(&reqs).Error
	if err != nil {
		return nil, fmt.Errorf("list payment requests: %w", err)
	}
	return reqs, nil
}

func (a *paymentRequestAdapter) FindPendingBefore(ctx context.Context, cutoff time.Time, limit int) ([]*model.PaymentRequest, error) {
	var reqs []*model.PaymentRequest
	err := database.Conn(ctx, a.db).
		Where("status = ? AND created_at < ?", model.PaymentStatusPending, cutoff).
		Order("created_at ASC").
		Limit(limit).
		Find(&reqs).Error
	if err != nil {
		return nil, fmt.Errorf("list stale payment requests: %w", err)
	}
	return reqs, nil
}

func (a *paymentRequestAdapter) Update(ctx context.Context, req *model.PaymentRequest) error {
	if err := database.Conn(ctx, a.db).Save(req).Error; err != nil {
		return fmt.Errorf("update payment request: %w", err)
	}
	return nil
}

// Compile-time check
var _ outbound.PaymentRequestDatabasePort = (*paymentRequestAdapter)(nil)
