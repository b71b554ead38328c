package inbound

import "github.com/gin-gonic/gin"

// PaymentHttpPort defines HTTP handler interface for payment operations.
type PaymentHttpPort interface {
	// Initiate handles POST /payments/initiate
	// Sends a payment prompt to the customer's phone for an order.
	Initiate(c *gin.Context)

	// Callback handles POST /payments/callback
	// Receives the provider's asynchronous result. Always acknowledged.
	Callback(c *gin.Context)

	// GetStatus handles GET /payments/status/:correlationId
	// Returns the stored record without contacting the provider.
	GetStatus(c *gin.Context)

	// QueryStatus handles GET /payments/query/:correlationId
	// Asks the provider for the outcome of a pending request.
	QueryStatus(c *gin.Context)

	// ListByOrder handles GET /payments/orders/:orderId
	// Lists every payment attempt for an order.
	ListByOrder(c *gin.Context)
}

// PaymentStreamPort defines the websocket status stream.
type PaymentStreamPort interface {
	// Stream handles GET /payments/stream/:correlationId
	// Pushes the record on connect and again once it resolves.
	Stream(c *gin.Context)
}
