package events

import (
	"github.com/google/uuid"
	"github.com/sokoni/server/internal/model"
)

// Event type names.
const (
	PaymentResolvedType = "PaymentResolved"
)

// Aggregate type names.
const (
	AggregatePaymentRequest = "PaymentRequest"
)

// PaymentResolvedEvent is published after a ledger entry leaves pending.
type PaymentResolvedEvent struct {
	BaseEvent
	CorrelationID string              `json:"correlation_id"`
	OrderID       *uuid.UUID          `json:"order_id,omitempty"`
	Status        model.PaymentStatus `json:"status"`
	Amount        int64               `json:"amount"`
	ResultCode    *int                `json:"result_code,omitempty"`
	ReceiptID     string              `json:"receipt_id,omitempty"`
	Source        string              `json:"source"`
}

// NewPaymentResolvedEvent creates a PaymentResolvedEvent from a resolved entry.
func NewPaymentResolvedEvent(req *model.PaymentRequest, source string) *PaymentResolvedEvent {
	evt := &PaymentResolvedEvent{
		BaseEvent:     NewBaseEvent(PaymentResolvedType, req.ID, AggregatePaymentRequest),
		CorrelationID: req.CorrelationID,
		OrderID:       req.OrderRef,
		Status:        req.Status,
		Amount:        req.Amount,
		ResultCode:    req.ProviderResultCode,
		Source:        source,
	}
	if req.ProviderReceiptID != nil {
		evt.ReceiptID = *req.ProviderReceiptID
	}
	return evt
}

// Succeeded reports whether the payment went through.
func (e *PaymentResolvedEvent) Succeeded() bool {
	return e.Status == model.PaymentStatusSuccess
}
