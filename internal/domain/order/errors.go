package order

import "errors"

var (
	// ErrOrderNotFound is returned when no order has the given id or number.
	ErrOrderNotFound = errors.New("order not found")
	// ErrOrderNotPayable is returned when a refunded order receives a payment.
	ErrOrderNotPayable = errors.New("order cannot be paid")
)
