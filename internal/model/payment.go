package model

import (
	"time"

	"github.com/google/uuid"
)

// PaymentStatus represents the status of a payment request.
type PaymentStatus string

const (
	PaymentStatusPending   PaymentStatus = "pending"
	PaymentStatusSuccess   PaymentStatus = "success"
	PaymentStatusFailed    PaymentStatus = "failed"
	PaymentStatusCancelled PaymentStatus = "cancelled"
)

// IsValid checks if the status is a known payment status.
func (s PaymentStatus) IsValid() bool {
	switch s {
	case PaymentStatusPending, PaymentStatusSuccess, PaymentStatusFailed, PaymentStatusCancelled:
		return true
	}
	return false
}

// IsTerminal returns true if the status is a terminal state.
func (s PaymentStatus) IsTerminal() bool {
	return s == PaymentStatusSuccess || s == PaymentStatusFailed || s == PaymentStatusCancelled
}

// CanTransitionTo returns true if the status can transition to the target status.
// Only pending requests move, and only into a terminal state.
func (s PaymentStatus) CanTransitionTo(target PaymentStatus) bool {
	return s == PaymentStatusPending && target.IsTerminal()
}

// InitiationResponseCode is the provider's acknowledgement code for a push request.
// It is a string on the wire and unrelated to ResultCode.
type InitiationResponseCode string

// InitiationAccepted means the provider accepted the push request.
const InitiationAccepted InitiationResponseCode = "0"

// IsAccepted reports whether the provider accepted the push request.
func (c InitiationResponseCode) IsAccepted() bool {
	return c == InitiationAccepted
}

// ResultCode is the provider's numeric resolution code for a payment.
type ResultCode int

const (
	ResultCodeSuccess         ResultCode = 0
	ResultCodeCancelledByUser ResultCode = 1032
	ResultCodeTimeout         ResultCode = 1037
)

// Status maps a resolution code onto the ledger status it produces.
func (c ResultCode) Status() PaymentStatus {
	switch c {
	case ResultCodeSuccess:
		return PaymentStatusSuccess
	case ResultCodeCancelledByUser, ResultCodeTimeout:
		return PaymentStatusCancelled
	default:
		return PaymentStatusFailed
	}
}

// PaymentRequest is a ledger entry for a single push payment attempt.
type PaymentRequest struct {
	ID                           uuid.UUID     `json:"id" gorm:"type:uuid;primaryKey"`
	CorrelationID                string        `json:"correlation_id" gorm:"uniqueIndex;not null"`
	SecondaryCorrelationID       string        `json:"secondary_correlation_id,omitempty"`
	OrderRef                     *uuid.UUID    `json:"order_ref,omitempty" gorm:"type:uuid;index"`
	Amount                       int64         `json:"amount" gorm:"not null"`
	PayerPhone                   string        `json:"payer_phone" gorm:"not null"`
	Status                       PaymentStatus `json:"status" gorm:"not null;default:pending;index"`
	ProviderResultCode           *int          `json:"provider_result_code,omitempty"`
	ProviderResultMessage        *string       `json:"provider_result_message,omitempty"`
	ProviderReceiptID            *string       `json:"provider_receipt_id,omitempty"`
	ProviderTransactionTimestamp *string       `json:"provider_transaction_timestamp,omitempty"`
	CreatedAt                    time.Time     `json:"created_at"`
	UpdatedAt                    time.Time     `json:"updated_at"`
}

// TableName returns the table name for GORM.
func (PaymentRequest) TableName() string {
	return "payment_requests"
}

// CallbackEvent is a stored provider callback, kept for audit.
type CallbackEvent struct {
	ID            uuid.UUID  `json:"id" gorm:"type:uuid;primaryKey"`
	Provider      string     `json:"provider" gorm:"not null;index"`
	CorrelationID string     `json:"correlation_id" gorm:"index"`
	Data          string     `json:"data" gorm:"type:text"`
	Processed     bool       `json:"processed" gorm:"default:false"`
	ProcessedAt   *time.Time `json:"processed_at,omitempty"`
	Error         *string    `json:"error,omitempty"`
	CreatedAt     time.Time  `json:"created_at"`
}

// TableName returns the table name for GORM.
func (CallbackEvent) TableName() string {
	return "callback_events"
}

// Resolution source labels.
const (
	ResolutionSourceCallback = "callback"
	ResolutionSourceQuery    = "query"
)

// Resolution is a provider outcome for a correlation id, from either the
// callback or the query path.
type Resolution struct {
	CorrelationID string
	// ResultCode is nil when the provider gave no classifiable code.
	ResultCode    *int
	ResultMessage string
	// Metadata holds named callback items such as MpesaReceiptNumber.
	Metadata map[string]string
	Source   string
}

// Callback metadata item names.
const (
	MetadataReceiptNumber   = "MpesaReceiptNumber"
	MetadataTransactionDate = "TransactionDate"
	MetadataAmount          = "Amount"
	MetadataPhoneNumber     = "PhoneNumber"
)

// --- Provider DTOs ---

// ProviderInitiation is the input to a push payment request.
type ProviderInitiation struct {
	Phone       string
	Amount      int64
	AccountRef  string
	Description string
}

// ProviderInitiationResult holds the correlation ids issued by the provider.
type ProviderInitiationResult struct {
	CorrelationID          string
	SecondaryCorrelationID string
	ResponseCode           InitiationResponseCode
	ResponseDescription    string
	CustomerMessage        string
}

// ProviderQueryResult is the raw outcome of a status query.
type ProviderQueryResult struct {
	CorrelationID string
	ResultCode    int
	ResultMessage string
}

// ProviderCallback is a parsed provider push.
type ProviderCallback struct {
	CorrelationID          string
	SecondaryCorrelationID string
	ResultCode             int
	ResultMessage          string
	Metadata               map[string]string
}

// --- API DTOs ---

// InitiatePaymentRequest is the body of POST /payments/initiate.
type InitiatePaymentRequest struct {
	Phone   string    `json:"phone" binding:"required"`
	OrderID uuid.UUID `json:"orderId" binding:"required"`
}

// InitiatePaymentResponse is returned after a successful push.
type InitiatePaymentResponse struct {
	CorrelationID string `json:"correlationId"`
	Message       string `json:"message"`
}

// PaymentRequestResponse is the public view of a ledger entry.
type PaymentRequestResponse struct {
	CorrelationID string        `json:"correlationId"`
	OrderID       *uuid.UUID    `json:"orderId,omitempty"`
	Amount        int64         `json:"amount"`
	PhoneNumber   string        `json:"phoneNumber"`
	Status        PaymentStatus `json:"status"`
	ResultCode    *int          `json:"resultCode,omitempty"`
	ResultMessage *string       `json:"resultMessage,omitempty"`
	ReceiptID     *string       `json:"receiptId,omitempty"`
	CreatedAt     time.Time     `json:"createdAt"`
	UpdatedAt     time.Time     `json:"updatedAt"`
}

// ToResponse converts a ledger entry to its API form.
func (p *PaymentRequest) ToResponse() *PaymentRequestResponse {
	return &PaymentRequestResponse{
		CorrelationID: p.CorrelationID,
		OrderID:       p.OrderRef,
		Amount:        p.Amount,
		PhoneNumber:   p.PayerPhone,
		Status:        p.Status,
		ResultCode:    p.ProviderResultCode,
		ResultMessage: p.ProviderResultMessage,
		ReceiptID:     p.ProviderReceiptID,
		CreatedAt:     p.CreatedAt,
		UpdatedAt:     p.UpdatedAt,
	}
}
