package payment

import (
	"errors"
	"fmt"

	"github.com/sokoni/server/internal/port/outbound"
)

var (
	// ErrValidation is the parent of every input validation error.
	ErrValidation = errors.New("validation failed")

	// ErrInvalidPhone is returned when a phone number does not normalize to 2547XXXXXXXX form.
	ErrInvalidPhone = fmt.Errorf("%w: enter a valid Kenyan phone number (e.g. 0712345678)", ErrValidation)

	// ErrInvalidAmount is returned when an order total cannot be charged.
	ErrInvalidAmount = fmt.Errorf("%w: amount must be positive", ErrValidation)

	// ErrMalformedCallback is returned when a provider push cannot be parsed.
	ErrMalformedCallback = fmt.Errorf("%w: malformed callback", ErrValidation)

	// ErrInvalidResolution is returned when a resolution has no correlation id.
	ErrInvalidResolution = fmt.Errorf("%w: resolution requires a correlation id", ErrValidation)

	// ErrUnknownTransaction is returned when a correlation id was never issued to us.
	ErrUnknownTransaction = errors.New("unknown transaction")

	// ErrOrderNotFound is returned when initiating a payment for a missing order.
	ErrOrderNotFound = errors.New("order not found")

	// ErrOrderNotPayable is returned by the order bridge when an order can no
	// longer accept a payment, such as after a refund.
	ErrOrderNotPayable = errors.New("order cannot be paid")

	// ErrOrderAlreadyPaid is returned when initiating a payment for a paid order.
	ErrOrderAlreadyPaid = errors.New("order already paid")

	// ErrPaymentInProgress is returned when an order already has a pending payment request.
	ErrPaymentInProgress = errors.New("payment already in progress for order")
)

// Provider errors, re-exported so callers only need this package.
var (
	ErrProviderAuth        = outbound.ErrProviderAuth
	ErrProviderRequest     = outbound.ErrProviderRequest
	ErrProviderUnavailable = outbound.ErrProviderUnavailable
)
