package gin

import (
	"errors"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/sokoni/server/internal/domain/payment"
	"github.com/sokoni/server/internal/model"
)

// handlePaymentError maps payment domain errors to HTTP responses.
func handlePaymentError(c *gin.Context, err error) {
	var statusCode int
	var errorCode string
	var message string

	switch {
	case errors.Is(err, payment.ErrValidation):
		statusCode = http.StatusBadRequest
		errorCode = "validation_error"
		message = strings.TrimPrefix(err.Error(), payment.ErrValidation.Error()+": ")

	case errors.Is(err, payment.ErrOrderNotFound):
		statusCode = http.StatusNotFound
		errorCode = "order_not_found"
		message = "Order not found"

	case errors.Is(err, payment.ErrUnknownTransaction):
		statusCode = http.StatusNotFound
		errorCode = "unknown_transaction"
		message = "Payment request not found"

	case errors.Is(err, payment.ErrPaymentInProgress):
		statusCode = http.StatusConflict
		errorCode = "payment_in_progress"
		message = "A payment for this order is already in progress"

	case errors.Is(err, payment.ErrOrderAlreadyPaid):
		statusCode = http.StatusConflict
		errorCode = "order_already_paid"
		message = "Order already paid"

	case errors.Is(err, payment.ErrProviderUnavailable):
		statusCode = http.StatusServiceUnavailable
		errorCode = "provider_unavailable"
		message = "Payment provider unavailable, try again shortly"

	case errors.Is(err, payment.ErrProviderAuth):
		statusCode = http.StatusBadGateway
		errorCode = "provider_auth_failed"
		message = "Payment provider rejected our credentials"

	case errors.Is(err, payment.ErrProviderRequest):
		statusCode = http.StatusBadGateway
		errorCode = "provider_rejected"
		message = "Payment provider rejected the request"

	default:
		statusCode = http.StatusInternalServerError
		errorCode = "internal_error"
		message = "Internal server error"
	}

	c.JSON(statusCode, model.ErrorResponse{
		Code:    errorCode,
		Message: message,
	})
}
