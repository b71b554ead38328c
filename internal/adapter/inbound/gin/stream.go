package gin

import (
	"context"
	"net/http"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"github.com/sokoni/server/internal/domain/payment"
	"github.com/sokoni/server/internal/infra/events"
	"github.com/sokoni/server/internal/model"
	"github.com/sokoni/server/internal/port/inbound"
	"github.com/sokoni/server/internal/utils/metrics"
	"go.uber.org/zap"
)

const (
	streamWriteWait  = 10 * time.Second
	streamPongWait   = 60 * time.Second
	streamPingPeriod = (streamPongWait * 9) / 10

	// defaultStreamLifetime matches how long a customer has to answer the prompt, with slack.
	defaultStreamLifetime = 3 * time.Minute
)

// StreamHub tracks websocket subscribers per correlation id and wakes them
// when the payment resolves. It is registered on the event bus.
type StreamHub struct {
	mu      sync.Mutex
	subs    map[string]map[chan struct{}]struct{}
	metrics *metrics.Metrics
}

// NewStreamHub creates a hub. m may be nil.
func NewStreamHub(m *metrics.Metrics) *StreamHub {
	return &StreamHub{
		subs:    make(map[string]map[chan struct{}]struct{}),
		metrics: m,
	}
}

// Subscribe returns a channel signalled once when correlationID resolves.
func (h *StreamHub) Subscribe(correlationID string) chan struct{} {
	ch := make(chan struct{}, 1)

	h.mu.Lock()
	defer h.mu.Unlock()
	if h.subs[correlationID] == nil {
		h.subs[correlationID] = make(map[chan struct{}]struct{})
	}
	h.subs[correlationID][ch] = struct{}{}
	if h.metrics != nil {
		h.metrics.StreamSubscribers.Inc()
	}
	return ch
}

// Unsubscribe removes a subscriber.
func (h *StreamHub) Unsubscribe(correlationID string, ch chan struct{}) {
	h.mu.Lock()
	defer h.mu.Unlock()
	set, ok := h.subs[correlationID]
	if !ok {
		return
	}
	if _, ok := set[ch]; !ok {
		return
	}
	delete(set, ch)
	if len(set) == 0 {
		delete(h.subs, correlationID)
	}
	if h.metrics != nil {
		h.metrics.StreamSubscribers.Dec()
	}
}

// Subscribers returns the number of subscribers for correlationID.
func (h *StreamHub) Subscribers(correlationID string) int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.subs[correlationID])
}

func (h *StreamHub) Handles() []string {
	return []string{events.PaymentResolvedType}
}

func (h *StreamHub) Handle(_ context.Context, event events.Event) error {
	evt, ok := event.(*events.PaymentResolvedEvent)
	if !ok {
		return nil
	}

	h.mu.Lock()
	defer h.mu.Unlock()
	for ch := range h.subs[evt.CorrelationID] {
		select {
		case ch <- struct{}{}:
		default:
		}
	}
	return nil
}

// streamAdapter implements inbound.PaymentStreamPort.
type streamAdapter struct {
	domain   payment.PaymentDomain
	hub      *StreamHub
	upgrader websocket.Upgrader
	lifetime time.Duration
	logger   *zap.Logger
}

// NewStreamAdapter creates the websocket status stream handler.
func NewStreamAdapter(domain payment.PaymentDomain, hub *StreamHub, allowedOrigins []string, logger *zap.Logger) inbound.PaymentStreamPort {
	return &streamAdapter{
		domain: domain,
		hub:    hub,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin:     originChecker(allowedOrigins),
		},
		lifetime: defaultStreamLifetime,
		logger:   logger.Named("payment_stream"),
	}
}

// originChecker allows same-origin requests and the configured origins.
// An empty list or "*" allows everything.
func originChecker(allowed []string) func(*http.Request) bool {
	set := make(map[string]bool, len(allowed))
	for _, o := range allowed {
		if o == "*" {
			return func(*http.Request) bool { return true }
		}
		set[o] = true
	}
	return func(r *http.Request) bool {
		origin := r.Header.Get("Origin")
		return len(set) == 0 || origin == "" || set[origin]
	}
}

// Stream godoc
// @Summary      Stream payment status
// @Description  Websocket that sends the payment record on connect and again when it resolves, then closes
// @Tags         payments
// @Param        correlationId  path  string  true  "Provider correlation id"
// @Success      101
// @Failure      404  {object}  model.ErrorResponse
// @Router       /payments/stream/{correlationId} [get]
func (a *streamAdapter) Stream(c *gin.Context) {
	correlationID := c.Param("correlationId")

	// Subscribe before the first read so a resolution in between is not lost
	wake := a.hub.Subscribe(correlationID)
	defer a.hub.Unsubscribe(correlationID, wake)

	req, err := a.domain.GetStatus(c.Request.Context(), correlationID)
	if err != nil {
		handlePaymentError(c, err)
		return
	}

	conn, err := a.upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		a.logger.Debug("websocket upgrade failed", zap.Error(err))
		return
	}
	defer conn.Close()

	if err := a.write(conn, req); err != nil || req.Status.IsTerminal() {
		a.close(conn)
		return
	}

	closed := make(chan struct{})
	conn.SetReadDeadline(time.Now().Add(streamPongWait))
	conn.SetPongHandler(func(string) error {
		conn.SetReadDeadline(time.Now().Add(streamPongWait))
		return nil
	})
	go func() {
		defer close(closed)
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}()

	ticker := time.NewTicker(streamPingPeriod)
	defer ticker.Stop()
	deadline := time.NewTimer(a.lifetime)
	defer deadline.Stop()

	for {
		select {
		case <-wake:
			// Detached from the request; the upgraded connection outlives its context
			latest, err := a.domain.GetStatus(context.WithoutCancel(c.Request.Context()), correlationID)
			if err != nil {
				a.logger.Warn("failed to load resolved payment",
					zap.String("correlation_id", correlationID),
					zap.Error(err),
				)
				a.close(conn)
				return
			}
			if latest.Status.IsTerminal() {
				_ = a.write(conn, latest)
				a.close(conn)
				return
			}
		case <-ticker.C:
			conn.SetWriteDeadline(time.Now().Add(streamWriteWait))
			if err := conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		case <-deadline.C:
			a.close(conn)
			return
		case <-closed:
			return
		}
	}
}

func (a *streamAdapter) write(conn *websocket.Conn, req *model.PaymentRequest) error {
	conn.SetWriteDeadline(time.Now().Add(streamWriteWait))
	return conn.WriteJSON(req.ToResponse())
}

func (a *streamAdapter) close(conn *websocket.Conn) {
	conn.SetWriteDeadline(time.Now().Add(streamWriteWait))
	_ = conn.WriteMessage(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
}

// Compile-time checks
var (
	_ inbound.PaymentStreamPort = (*streamAdapter)(nil)
	_ events.Handler            = (*StreamHub)(nil)
)
