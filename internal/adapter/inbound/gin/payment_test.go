package gin

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/sokoni/server/internal/domain/payment"
	"github.com/sokoni/server/internal/model"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func init() {
	gin.SetMode(gin.TestMode)
}

type MockPaymentDomain struct {
	mock.Mock
}

func (m *MockPaymentDomain) Initiate(ctx context.Context, orderID uuid.UUID, phone string) (*model.PaymentRequest, error) {
	args := m.Called(ctx, orderID, phone)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*model.PaymentRequest), args.Error(1)
}

func (m *MockPaymentDomain) ApplyResolution(ctx context.Context, res *model.Resolution) (*model.PaymentRequest, error) {
	args := m.Called(ctx, res)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*model.PaymentRequest), args.Error(1)
}

func (m *MockPaymentDomain) HandleCallback(ctx context.Context, body []byte) (*model.PaymentRequest, error) {
	args := m.Called(ctx, body)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*model.PaymentRequest), args.Error(1)
}

func (m *MockPaymentDomain) QueryStatus(ctx context.Context, correlationID string) (*model.PaymentRequest, error) {
	args := m.Called(ctx, correlationID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*model.PaymentRequest), args.Error(1)
}

func (m *MockPaymentDomain) GetStatus(ctx context.Context, correlationID string) (*model.PaymentRequest, error) {
	args := m.Called(ctx, correlationID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*model.PaymentRequest), args.Error(1)
}

func (m *MockPaymentDomain) ListByOrder(ctx context.Context, orderID uuid.UUID) ([]*model.PaymentRequest, error) {
	args := m.Called(ctx, orderID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*model.PaymentRequest), args.Error(1)
}

func (m *MockPaymentDomain) SweepPending(ctx context.Context, olderThan time.Duration, limit int) (int, error) {
	args := m.Called(ctx, olderThan, limit)
	return args.Int(0), args.Error(1)
}

func newTestRouter(domain *MockPaymentDomain) *gin.Engine {
	router := gin.New()
	api := router.Group("/api/v1")
	RegisterPaymentRoutes(api, NewPaymentAdapter(domain, zap.NewNop()), nil)
	return router
}

func ledgerEntry(correlationID string, status model.PaymentStatus) *model.PaymentRequest {
	orderID := uuid.New()
	return &model.PaymentRequest{
		ID:            uuid.New(),
		CorrelationID: correlationID,
		OrderRef:      &orderID,
		Amount:        1500,
		PayerPhone:    "254712345678",
		Status:        status,
	}
}

func doJSON(router *gin.Engine, method, path string, body interface{}) *httptest.ResponseRecorder {
	var buf bytes.Buffer
	if body != nil {
		_ = json.NewEncoder(&buf).Encode(body)
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	return w
}

func TestPaymentAdapter_Initiate(t *testing.T) {
	orderID := uuid.New()

	t.Run("success", func(t *testing.T) {
		domain := &MockPaymentDomain{}
		router := newTestRouter(domain)
		domain.On("Initiate", mock.Anything, orderID, "0712345678").
			Return(ledgerEntry("ws_CO_1", model.PaymentStatusPending), nil)

		w := doJSON(router, http.MethodPost, "/api/v1/payments/initiate", map[string]string{
			"phone":   "0712345678",
			"orderId": orderID.String(),
		})

		assert.Equal(t, http.StatusOK, w.Code)
		var resp model.InitiatePaymentResponse
		require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
		assert.Equal(t, "ws_CO_1", resp.CorrelationID)
		assert.Equal(t, "STK push sent. Check your phone.", resp.Message)
	})

	t.Run("missing fields", func(t *testing.T) {
		domain := &MockPaymentDomain{}
		router := newTestRouter(domain)

		w := doJSON(router, http.MethodPost, "/api/v1/payments/initiate", map[string]string{"phone": "0712345678"})

		assert.Equal(t, http.StatusBadRequest, w.Code)
		domain.AssertNotCalled(t, "Initiate", mock.Anything, mock.Anything, mock.Anything)
	})

	cases := []struct {
		name   string
		err    error
		status int
		code   string
	}{
		{"invalid phone", payment.ErrInvalidPhone, http.StatusBadRequest, "validation_error"},
		{"invalid amount", payment.ErrInvalidAmount, http.StatusBadRequest, "validation_error"},
		{"order not found", payment.ErrOrderNotFound, http.StatusNotFound, "order_not_found"},
		{"already paid", payment.ErrOrderAlreadyPaid, http.StatusConflict, "order_already_paid"},
		{"in progress", payment.ErrPaymentInProgress, http.StatusConflict, "payment_in_progress"},
		{"provider rejected", fmt.Errorf("initiate payment: %w", payment.ErrProviderRequest), http.StatusBadGateway, "provider_rejected"},
		{"provider auth", fmt.Errorf("initiate payment: %w", payment.ErrProviderAuth), http.StatusBadGateway, "provider_auth_failed"},
		{"provider unavailable", fmt.Errorf("initiate payment: %w", payment.ErrProviderUnavailable), http.StatusServiceUnavailable, "provider_unavailable"},
		{"unexpected", fmt.Errorf("create payment request: connection reset"), http.StatusInternalServerError, "internal_error"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			domain := &MockPaymentDomain{}
			router := newTestRouter(domain)
			domain.On("Initiate", mock.Anything, orderID, "0712345678").Return(nil, tc.err)

			w := doJSON(router, http.MethodPost, "/api/v1/payments/initiate", map[string]string{
				"phone":   "0712345678",
				"orderId": orderID.String(),
			})

			assert.Equal(t, tc.status, w.Code)
			var resp model.ErrorResponse
			require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
			assert.Equal(t, tc.code, resp.Code)
		})
	}

	t.Run("validation message drops the prefix", func(t *testing.T) {
		domain := &MockPaymentDomain{}
		router := newTestRouter(domain)
		domain.On("Initiate", mock.Anything, orderID, "123").Return(nil, payment.ErrInvalidPhone)

		w := doJSON(router, http.MethodPost, "/api/v1/payments/initiate", map[string]string{
			"phone":   "123",
			"orderId": orderID.String(),
		})

		var resp model.ErrorResponse
		require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
		assert.Equal(t, "enter a valid Kenyan phone number (e.g. 0712345678)", resp.Message)
	})
}

func TestPaymentAdapter_Callback(t *testing.T) {
	body := []byte(`{"Body":{"stkCallback":{"CheckoutRequestID":"ws_CO_1","ResultCode":0}}}`)

	cases := []struct {
		name string
		req  *model.PaymentRequest
		err  error
	}{
		{"applied", ledgerEntry("ws_CO_1", model.PaymentStatusSuccess), nil},
		{"unknown transaction", nil, payment.ErrUnknownTransaction},
		{"malformed", nil, payment.ErrMalformedCallback},
		{"database down", nil, fmt.Errorf("lock payment request: connection refused")},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			domain := &MockPaymentDomain{}
			router := newTestRouter(domain)
			domain.On("HandleCallback", mock.Anything, body).Return(tc.req, tc.err)

			req := httptest.NewRequest(http.MethodPost, "/api/v1/payments/callback", bytes.NewReader(body))
			w := httptest.NewRecorder()
			router.ServeHTTP(w, req)

			assert.Equal(t, http.StatusOK, w.Code)
			assert.JSONEq(t, `{"ResultCode":0,"ResultDesc":"Success"}`, w.Body.String())
			domain.AssertExpectations(t)
		})
	}

	t.Run("panic still acknowledges", func(t *testing.T) {
		domain := &MockPaymentDomain{}
		router := newTestRouter(domain)
		domain.On("HandleCallback", mock.Anything, mock.Anything).Run(func(mock.Arguments) {
			panic("nil map")
		})

		req := httptest.NewRequest(http.MethodPost, "/api/v1/payments/callback", bytes.NewReader([]byte(`{}`)))
		w := httptest.NewRecorder()
		router.ServeHTTP(w, req)

		assert.Equal(t, http.StatusOK, w.Code)
		assert.JSONEq(t, `{"ResultCode":0,"ResultDesc":"Success"}`, w.Body.String())
	})
}

func TestPaymentAdapter_Status(t *testing.T) {
	t.Run("get status", func(t *testing.T) {
		domain := &MockPaymentDomain{}
		router := newTestRouter(domain)
		domain.On("GetStatus", mock.Anything, "ws_CO_1").Return(ledgerEntry("ws_CO_1", model.PaymentStatusPending), nil)

		w := doJSON(router, http.MethodGet, "/api/v1/payments/status/ws_CO_1", nil)

		assert.Equal(t, http.StatusOK, w.Code)
		var resp model.PaymentRequestResponse
		require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
		assert.Equal(t, model.PaymentStatusPending, resp.Status)
		assert.Equal(t, int64(1500), resp.Amount)
		domain.AssertNotCalled(t, "QueryStatus", mock.Anything, mock.Anything)
	})

	t.Run("unknown id", func(t *testing.T) {
		domain := &MockPaymentDomain{}
		router := newTestRouter(domain)
		domain.On("GetStatus", mock.Anything, "ws_CO_X").Return(nil, payment.ErrUnknownTransaction)

		w := doJSON(router, http.MethodGet, "/api/v1/payments/status/ws_CO_X", nil)
		assert.Equal(t, http.StatusNotFound, w.Code)
	})

	t.Run("query status", func(t *testing.T) {
		domain := &MockPaymentDomain{}
		router := newTestRouter(domain)
		receipt := "ABC123"
		resolved := ledgerEntry("ws_CO_1", model.PaymentStatusSuccess)
		resolved.ProviderReceiptID = &receipt
		domain.On("QueryStatus", mock.Anything, "ws_CO_1").Return(resolved, nil)

		w := doJSON(router, http.MethodGet, "/api/v1/payments/query/ws_CO_1", nil)

		assert.Equal(t, http.StatusOK, w.Code)
		var resp model.PaymentRequestResponse
		require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
		assert.Equal(t, model.PaymentStatusSuccess, resp.Status)
		require.NotNil(t, resp.ReceiptID)
		assert.Equal(t, "ABC123", *resp.ReceiptID)
	})

	t.Run("query unknown id", func(t *testing.T) {
		domain := &MockPaymentDomain{}
		router := newTestRouter(domain)
		domain.On("QueryStatus", mock.Anything, "ws_CO_X").Return(nil, payment.ErrUnknownTransaction)

		w := doJSON(router, http.MethodGet, "/api/v1/payments/query/ws_CO_X", nil)
		assert.Equal(t, http.StatusNotFound, w.Code)
	})
}

func TestPaymentAdapter_ListByOrder(t *testing.T) {
	t.Run("lists attempts", func(t *testing.T) {
		domain := &MockPaymentDomain{}
		router := newTestRouter(domain)
		orderID := uuid.New()
		domain.On("ListByOrder", mock.Anything, orderID).Return([]*model.PaymentRequest{
			ledgerEntry("ws_CO_2", model.PaymentStatusPending),
			ledgerEntry("ws_CO_1", model.PaymentStatusFailed),
		}, nil)

		w := doJSON(router, http.MethodGet, "/api/v1/payments/orders/"+orderID.String(), nil)

		assert.Equal(t, http.StatusOK, w.Code)
		var resp []model.PaymentRequestResponse
		require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
		require.Len(t, resp, 2)
		assert.Equal(t, "ws_CO_2", resp[0].CorrelationID)
	})

	t.Run("empty list", func(t *testing.T) {
		domain := &MockPaymentDomain{}
		router := newTestRouter(domain)
		orderID := uuid.New()
		domain.On("ListByOrder", mock.Anything, orderID).Return([]*model.PaymentRequest{}, nil)

		w := doJSON(router, http.MethodGet, "/api/v1/payments/orders/"+orderID.String(), nil)

		assert.Equal(t, http.StatusOK, w.Code)
		assert.JSONEq(t, `[]`, w.Body.String())
	})

	t.Run("invalid order id", func(t *testing.T) {
		domain := &MockPaymentDomain{}
		router := newTestRouter(domain)

		w := doJSON(router, http.MethodGet, "/api/v1/payments/orders/not-a-uuid", nil)
		assert.Equal(t, http.StatusBadRequest, w.Code)
	})
}
