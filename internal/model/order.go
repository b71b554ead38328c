package model

import (
	"time"

	"github.com/google/uuid"
)

// OrderStatus represents the fulfillment status of an order.
type OrderStatus string

const (
	OrderStatusPending    OrderStatus = "pending"
	OrderStatusConfirmed  OrderStatus = "confirmed"
	OrderStatusProcessing OrderStatus = "processing"
	OrderStatusShipped    OrderStatus = "shipped"
	OrderStatusDelivered  OrderStatus = "delivered"
	OrderStatusCancelled  OrderStatus = "cancelled"
	OrderStatusRefunded   OrderStatus = "refunded"
)

// String returns the string representation of the status.
func (s OrderStatus) String() string {
	return string(s)
}

// IsValid checks if the status is a valid order status.
func (s OrderStatus) IsValid() bool {
	switch s {
	case OrderStatusPending, OrderStatusConfirmed, OrderStatusProcessing, OrderStatusShipped,
		OrderStatusDelivered, OrderStatusCancelled, OrderStatusRefunded:
		return true
	}
	return false
}

// IsTerminal returns true if the status is a terminal state.
func (s OrderStatus) IsTerminal() bool {
	return s == OrderStatusDelivered || s == OrderStatusCancelled || s == OrderStatusRefunded
}

// CanTransitionTo checks if a transition from the current status to target is valid.
func (s OrderStatus) CanTransitionTo(target OrderStatus) bool {
	for _, a := range orderTransitions[s] {
		if a == target {
			return true
		}
	}
	return false
}

// orderTransitions defines valid fulfillment transitions.
var orderTransitions = map[OrderStatus][]OrderStatus{
	OrderStatusPending:    {OrderStatusConfirmed, OrderStatusCancelled},
	OrderStatusConfirmed:  {OrderStatusProcessing, OrderStatusCancelled, OrderStatusRefunded},
	OrderStatusProcessing: {OrderStatusShipped, OrderStatusCancelled, OrderStatusRefunded},
	OrderStatusShipped:    {OrderStatusDelivered},
	OrderStatusDelivered:  {OrderStatusRefunded},
	OrderStatusCancelled:  {},
	OrderStatusRefunded:   {},
}

// OrderPaymentStatus represents the payment status of an order.
type OrderPaymentStatus string

const (
	OrderPaymentPending  OrderPaymentStatus = "pending"
	OrderPaymentPaid     OrderPaymentStatus = "paid"
	OrderPaymentFailed   OrderPaymentStatus = "failed"
	OrderPaymentRefunded OrderPaymentStatus = "refunded"
)

// IsPaid returns true once money has been received for the order.
func (s OrderPaymentStatus) IsPaid() bool {
	return s == OrderPaymentPaid
}

// Order is the storefront order. It is owned by the order collaborator; the
// payment core only reads it and flips it to paid through the order bridge.
type Order struct {
	ID            uuid.UUID          `json:"id" gorm:"type:uuid;primaryKey;default:gen_random_uuid()"`
	OrderNumber   string             `json:"order_number" gorm:"uniqueIndex;not null"`
	UserID        *uuid.UUID         `json:"user_id,omitempty" gorm:"type:uuid;index"`
	Status        OrderStatus        `json:"status" gorm:"not null;default:pending"`
	PaymentStatus OrderPaymentStatus `json:"payment_status" gorm:"not null;default:pending"`
	Subtotal      int64              `json:"subtotal"`
	DeliveryFee   int64              `json:"delivery_fee"`
	Total         int64              `json:"total"`
	CustomerName  string             `json:"customer_name"`
	CustomerPhone string             `json:"customer_phone"`
	CustomerEmail string             `json:"customer_email"`
	PaidAt        *time.Time         `json:"paid_at,omitempty"`
	CreatedAt     time.Time          `json:"created_at"`
	UpdatedAt     time.Time          `json:"updated_at"`
}

// TableName returns the database table name.
func (Order) TableName() string {
	return "orders"
}

// IsPaid returns true if the order has been paid.
func (o *Order) IsPaid() bool {
	return o.PaymentStatus.IsPaid()
}
