package mpesa

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/sokoni/server/internal/infra/config"
	"github.com/sokoni/server/internal/model"
	"github.com/sokoni/server/internal/port/outbound"
	"github.com/sokoni/server/internal/utils/metrics"
	"github.com/sony/gobreaker/v2"
	"go.uber.org/zap"
)

const (
	providerName = "mpesa"

	stkPushPath  = "/mpesa/stkpush/v1/processrequest"
	stkQueryPath = "/mpesa/stkpushquery/v1/query"

	opAuth  = "auth"
	opPush  = "stk_push"
	opQuery = "stk_query"

	maxResponseBytes = 1 << 20

	// errCodeProcessing is returned by the query endpoint while the payer
	// has not answered the prompt yet.
	errCodeProcessing = "500.001.1001"
)

// Client is the M-Pesa Express (STK Push) provider.
type Client struct {
	cfg        config.MpesaConfig
	baseURL    string
	httpClient *http.Client
	tokens     tokenCache
	breaker    *gobreaker.CircuitBreaker[[]byte]
	loc        *time.Location
	now        func() time.Time
	metrics    *metrics.Metrics
	logger     *zap.Logger
}

var _ outbound.PaymentProviderPort = (*Client)(nil)

// NewClient creates an M-Pesa client. m may be nil.
func NewClient(cfg config.MpesaConfig, httpClient *http.Client, m *metrics.Metrics, logger *zap.Logger) *Client {
	baseURL := cfg.APIBaseURL()

	failures := cfg.BreakerFailures
	if failures == 0 {
		failures = 5
	}
	breakerTimeout := cfg.BreakerTimeout
	if breakerTimeout <= 0 {
		breakerTimeout = 30 * time.Second
	}

	settings := gobreaker.Settings{
		Name:        providerName,
		MaxRequests: 1,
		Interval:    60 * time.Second,
		Timeout:     breakerTimeout,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= failures
		},
		// Rejections are answers, only outages count against the provider
		IsSuccessful: func(err error) bool {
			return err == nil || !errors.Is(err, outbound.ErrProviderUnavailable)
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			logger.Warn("provider circuit breaker state changed",
				zap.String("provider", name),
				zap.String("from", from.String()),
				zap.String("to", to.String()),
			)
		},
	}

	return &Client{
		cfg:        cfg,
		baseURL:    baseURL,
		httpClient: httpClient,
		breaker:    gobreaker.NewCircuitBreaker[[]byte](settings),
		loc:        loadLocation(cfg.Timezone),
		now:        time.Now,
		metrics:    m,
		logger:     logger.Named("mpesa"),
	}
}

// Name returns the provider name.
func (c *Client) Name() string {
	return providerName
}

// InitiatePayment sends an STK push prompt to the payer.
func (c *Client) InitiatePayment(ctx context.Context, in *model.ProviderInitiation) (*model.ProviderInitiationResult, error) {
	ts := Timestamp(c.now(), c.loc)
	payload := stkPushRequest{
		BusinessShortCode: c.cfg.ShortCode,
		Password:          Password(c.cfg.ShortCode, c.cfg.Passkey, ts),
		Timestamp:         ts,
		TransactionType:   c.cfg.TransactionType,
		Amount:            in.Amount,
		PartyA:            in.Phone,
		PartyB:            c.cfg.ShortCode,
		PhoneNumber:       in.Phone,
		CallBackURL:       c.cfg.CallbackURL,
		AccountReference:  in.AccountRef,
		TransactionDesc:   in.Description,
	}

	var resp stkPushResponse
	if err := c.post(ctx, opPush, stkPushPath, payload, &resp); err != nil {
		return nil, err
	}

	code := model.InitiationResponseCode(resp.ResponseCode)
	if !code.IsAccepted() {
		return nil, &outbound.ProviderError{
			Kind:    outbound.ErrProviderRequest,
			Op:      opPush,
			Message: fmt.Sprintf("response code %s: %s", resp.ResponseCode, resp.ResponseDescription),
		}
	}
	if resp.CheckoutRequestID == "" {
		return nil, &outbound.ProviderError{Kind: outbound.ErrProviderRequest, Op: opPush, Message: "missing CheckoutRequestID"}
	}

	c.logger.Info("stk push accepted",
		zap.String("checkout_request_id", resp.CheckoutRequestID),
		zap.String("merchant_request_id", resp.MerchantRequestID),
	)

	return &model.ProviderInitiationResult{
		CorrelationID:          resp.CheckoutRequestID,
		SecondaryCorrelationID: resp.MerchantRequestID,
		ResponseCode:           code,
		ResponseDescription:    resp.ResponseDescription,
		CustomerMessage:        resp.CustomerMessage,
	}, nil
}

// QueryStatus asks for the outcome of an STK push.
func (c *Client) QueryStatus(ctx context.Context, correlationID string) (*model.ProviderQueryResult, error) {
	ts := Timestamp(c.now(), c.loc)
	payload := stkQueryRequest{
		BusinessShortCode: c.cfg.ShortCode,
		Password:          Password(c.cfg.ShortCode, c.cfg.Passkey, ts),
		Timestamp:         ts,
		CheckoutRequestID: correlationID,
	}

	var resp stkQueryResponse
	if err := c.post(ctx, opQuery, stkQueryPath, payload, &resp); err != nil {
		return nil, err
	}

	code, ok := parseCode(resp.ResultCode)
	if !ok {
		return nil, &outbound.ProviderError{
			Kind:    outbound.ErrProviderRequest,
			Op:      opQuery,
			Message: fmt.Sprintf("no result code: %s", resp.ResponseDescription),
		}
	}

	return &model.ProviderQueryResult{
		CorrelationID: correlationID,
		ResultCode:    code,
		ResultMessage: resp.ResultDesc,
	}, nil
}

// ParseCallback decodes an STK callback body.
func (c *Client) ParseCallback(body []byte) (*model.ProviderCallback, error) {
	var env callbackEnvelope
	if err := json.Unmarshal(body, &env); err != nil {
		return nil, fmt.Errorf("decode callback: %w", err)
	}

	cb := env.Body.StkCallback
	if cb == nil {
		return nil, errors.New("missing Body.stkCallback")
	}
	if cb.CheckoutRequestID == "" {
		return nil, errors.New("missing CheckoutRequestID")
	}
	code, ok := parseCode(cb.ResultCode)
	if !ok {
		return nil, errors.New("missing or invalid ResultCode")
	}

	metadata := make(map[string]string)
	if cb.CallbackMetadata != nil {
		for _, item := range cb.CallbackMetadata.Item {
			if item.Name == "" {
				continue
			}
			if v, ok := itemValue(item.Value); ok {
				metadata[item.Name] = v
			}
		}
	}

	return &model.ProviderCallback{
		CorrelationID:          cb.CheckoutRequestID,
		SecondaryCorrelationID: cb.MerchantRequestID,
		ResultCode:             code,
		ResultMessage:          cb.ResultDesc,
		Metadata:               metadata,
	}, nil
}

// post sends an authenticated JSON request through the circuit breaker.
func (c *Client) post(ctx context.Context, op, path string, payload, out any) error {
	start := time.Now()
	err := c.doPost(ctx, op, path, payload, out)
	c.observe(op, start, err)
	return err
}

func (c *Client) doPost(ctx context.Context, op, path string, payload, out any) error {
	token, err := c.Authenticate(ctx)
	if err != nil {
		return err
	}

	reqBody, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("marshal %s request: %w", op, err)
	}

	body, err := c.breaker.Execute(func() ([]byte, error) {
		return c.send(ctx, op, path, token, reqBody)
	})
	if err != nil {
		if isBreakerRejection(err) {
			return &outbound.ProviderError{Kind: outbound.ErrProviderUnavailable, Op: op, Err: err}
		}
		return err
	}

	if err := json.Unmarshal(body, out); err != nil {
		return &outbound.ProviderError{Kind: outbound.ErrProviderRequest, Op: op, Err: fmt.Errorf("decode response: %w", err)}
	}
	return nil
}

func (c *Client) send(ctx context.Context, op, path, token string, reqBody []byte) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, bytes.NewReader(reqBody))
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+token)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, &outbound.ProviderError{Kind: outbound.ErrProviderUnavailable, Op: op, Err: err}
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
	if err != nil {
		return nil, &outbound.ProviderError{Kind: outbound.ErrProviderUnavailable, Op: op, Err: err}
	}

	if resp.StatusCode < http.StatusBadRequest {
		return body, nil
	}

	kind := classifyStatus(resp.StatusCode, body)
	c.logger.Warn("provider request failed",
		zap.String("operation", op),
		zap.Int("status", resp.StatusCode),
		zap.String("body", truncate(string(body), 512)),
	)
	return nil, &outbound.ProviderError{
		Kind:       kind,
		Op:         op,
		StatusCode: resp.StatusCode,
		Message:    errorMessage(body),
	}
}

// isBreakerRejection reports whether the breaker refused the call without sending it.
func isBreakerRejection(err error) bool {
	return errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests)
}

func (c *Client) observe(op string, start time.Time, err error) {
	if c.metrics == nil {
		return
	}
	c.metrics.RecordProviderRequest(op, outcome(err), time.Since(start))
}

func classifyStatus(status int, body []byte) error {
	switch {
	case status == http.StatusUnauthorized || status == http.StatusForbidden:
		return outbound.ErrProviderAuth
	case status >= http.StatusInternalServerError:
		var er errorResponse
		if json.Unmarshal(body, &er) == nil && er.ErrorCode == errCodeProcessing {
			return outbound.ErrProviderRequest
		}
		return outbound.ErrProviderUnavailable
	default:
		return outbound.ErrProviderRequest
	}
}

func outcome(err error) string {
	switch {
	case err == nil:
		return "ok"
	case errors.Is(err, outbound.ErrProviderAuth):
		return "auth_error"
	case errors.Is(err, outbound.ErrProviderUnavailable):
		return "unavailable"
	default:
		return "rejected"
	}
}

func errorMessage(body []byte) string {
	var er errorResponse
	if err := json.Unmarshal(body, &er); err == nil && er.ErrorMessage != "" {
		if er.ErrorCode != "" {
			return er.ErrorCode + ": " + er.ErrorMessage
		}
		return er.ErrorMessage
	}
	return truncate(string(body), 256)
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}
