package gin

import (
	"errors"
	"io"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/sokoni/server/internal/domain/payment"
	"github.com/sokoni/server/internal/model"
	"github.com/sokoni/server/internal/port/inbound"
	"github.com/sokoni/server/internal/utils/requestctx"
	"go.uber.org/zap"
)

// maxCallbackBytes bounds how much of a callback body is read.
const maxCallbackBytes = 64 << 10

// paymentAdapter implements inbound.PaymentHttpPort.
type paymentAdapter struct {
	domain payment.PaymentDomain
	logger *zap.Logger
}

// NewPaymentAdapter creates a new payment HTTP adapter.
func NewPaymentAdapter(domain payment.PaymentDomain, logger *zap.Logger) inbound.PaymentHttpPort {
	return &paymentAdapter{domain: domain, logger: logger.Named("payment_http")}
}

// RegisterPaymentRoutes registers payment routes. initiateMW runs in front of
// the initiate handler only (rate limiting, idempotency).
func RegisterPaymentRoutes(r *gin.RouterGroup, adapter inbound.PaymentHttpPort, stream inbound.PaymentStreamPort, initiateMW ...gin.HandlerFunc) {
	payments := r.Group("/payments")
	{
		payments.POST("/initiate", append(initiateMW, adapter.Initiate)...)
		payments.POST("/callback", adapter.Callback)
		payments.GET("/status/:correlationId", adapter.GetStatus)
		payments.GET("/query/:correlationId", adapter.QueryStatus)
		payments.GET("/orders/:orderId", adapter.ListByOrder)
		if stream != nil {
			payments.GET("/stream/:correlationId", stream.Stream)
		}
	}
}

// Initiate godoc
// @Summary      Initiate an STK push payment
// @Description  Sends a payment prompt to the customer's phone for the order total
// @Tags         payments
// @Accept       json
// @Produce      json
// @Param        Idempotency-Key  header    string                        false  "Idempotency key"
// @Param        request          body      model.InitiatePaymentRequest  true   "Order and phone"
// @Success      200              {object}  model.InitiatePaymentResponse
// @Failure      400              {object}  model.ErrorResponse
// @Failure      404              {object}  model.ErrorResponse
// @Failure      409              {object}  model.ErrorResponse
// @Failure      502              {object}  model.ErrorResponse
// @Failure      503              {object}  model.ErrorResponse
// @Router       /payments/initiate [post]
func (a *paymentAdapter) Initiate(c *gin.Context) {
	var req model.InitiatePaymentRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, model.ErrorResponse{
			Code:    "invalid_input",
			Message: err.Error(),
		})
		return
	}

	created, err := a.domain.Initiate(c.Request.Context(), req.OrderID, req.Phone)
	if err != nil {
		handlePaymentError(c, err)
		return
	}

	c.JSON(http.StatusOK, model.InitiatePaymentResponse{
		CorrelationID: created.CorrelationID,
		Message:       payment.CustomerMessage,
	})
}

// Callback godoc
// @Summary      Provider result callback
// @Description  Receives the asynchronous STK push result. Always acknowledged with ResultCode 0.
// @Tags         payments
// @Accept       json
// @Produce      json
// @Success      200  {object}  model.CallbackAck
// @Router       /payments/callback [post]
func (a *paymentAdapter) Callback(c *gin.Context) {
	ctx := c.Request.Context()
	log := requestctx.Logger(ctx, a.logger)

	defer func() {
		if r := recover(); r != nil {
			log.Error("callback handler panicked", zap.Any("panic", r))
			c.JSON(http.StatusOK, model.CallbackAccepted)
		}
	}()

	body, err := io.ReadAll(io.LimitReader(c.Request.Body, maxCallbackBytes))
	if err != nil {
		log.Warn("failed to read callback body", zap.Error(err))
		c.JSON(http.StatusOK, model.CallbackAccepted)
		return
	}

	req, err := a.domain.HandleCallback(ctx, body)
	switch {
	case err == nil:
		log.Info("callback applied",
			zap.String("correlation_id", req.CorrelationID),
			zap.String("status", string(req.Status)),
		)
	case errors.Is(err, payment.ErrUnknownTransaction), errors.Is(err, payment.ErrValidation):
		log.Warn("callback ignored", zap.Error(err))
	default:
		log.Error("callback processing failed", zap.Error(err))
	}

	c.JSON(http.StatusOK, model.CallbackAccepted)
}

// GetStatus godoc
// @Summary      Get payment status
// @Description  Returns the stored payment record without contacting the provider
// @Tags         payments
// @Produce      json
// @Param        correlationId  path      string  true  "Provider correlation id"
// @Success      200            {object}  model.PaymentRequestResponse
// @Failure      404            {object}  model.ErrorResponse
// @Router       /payments/status/{correlationId} [get]
func (a *paymentAdapter) GetStatus(c *gin.Context) {
	req, err := a.domain.GetStatus(c.Request.Context(), c.Param("correlationId"))
	if err != nil {
		handlePaymentError(c, err)
		return
	}

	c.JSON(http.StatusOK, req.ToResponse())
}

// QueryStatus godoc
// @Summary      Query payment status
// @Description  Asks the provider for the outcome of a pending request and records it
// @Tags         payments
// @Produce      json
// @Param        correlationId  path      string  true  "Provider correlation id"
// @Success      200            {object}  model.PaymentRequestResponse
// @Failure      404            {object}  model.ErrorResponse
// @Router       /payments/query/{correlationId} [get]
func (a *paymentAdapter) QueryStatus(c *gin.Context) {
	req, err := a.domain.QueryStatus(c.Request.Context(), c.Param("correlationId"))
	if err != nil {
		handlePaymentError(c, err)
		return
	}

	c.JSON(http.StatusOK, req.ToResponse())
}

// ListByOrder godoc
// @Summary      List payments for an order
// @Tags         payments
// @Produce      json
// @Param        orderId  path      string  true  "Order ID"
// @Success      200      {array}   model.PaymentRequestResponse
// @Failure      400      {object}  model.ErrorResponse
// @Router       /payments/orders/{orderId} [get]
func (a *paymentAdapter) ListByOrder(c *gin.Context) {
	orderID, err := uuid.Parse(c.Param("orderId"))
	if err != nil {
		c.JSON(http.StatusBadRequest, model.ErrorResponse{
			Code:    "invalid_id",
			Message: "invalid order ID",
		})
		return
	}

	reqs, err := a.domain.ListByOrder(c.Request.Context(), orderID)
	if err != nil {
		handlePaymentError(c, err)
		return
	}

	resp := make([]*model.PaymentRequestResponse, 0, len(reqs))
	for _, r := range reqs {
		resp = append(resp, r.ToResponse())
	}
	c.JSON(http.StatusOK, resp)
}

// Compile-time check
var _ inbound.PaymentHttpPort = (*paymentAdapter)(nil)
