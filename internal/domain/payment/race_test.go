package payment

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/sokoni/server/internal/model"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

// memLedger is an in-memory ledger. Copies are handed out so that callers
// only observe state that was written back through Update.
type memLedger struct {
	mu   sync.Mutex
	rows map[string]model.PaymentRequest
}

func newMemLedger(reqs ...*model.PaymentRequest) *memLedger {
	l := &memLedger{rows: make(map[string]model.PaymentRequest)}
	for _, r := range reqs {
		l.rows[r.CorrelationID] = *r
	}
	return l
}

func (l *memLedger) get(id string) *model.PaymentRequest {
	l.mu.Lock()
	defer l.mu.Unlock()
	row, ok := l.rows[id]
	if !ok {
		return nil
	}
	return &row
}

func (l *memLedger) Create(_ context.Context, req *model.PaymentRequest) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.rows[req.CorrelationID] = *req
	return nil
}

func (l *memLedger) FindByCorrelationID(_ context.Context, id string) (*model.PaymentRequest, error) {
	return l.get(id), nil
}

func (l *memLedger) FindByCorrelationIDForUpdate(_ context.Context, id string) (*model.PaymentRequest, error) {
	return l.get(id), nil
}

func (l *memLedger) FindPendingByOrder(context.Context, uuid.UUID) (*model.PaymentRequest, error) {
	return nil, nil
}

func (l *memLedger) FindByOrder(context.Context, uuid.UUID) ([]*model.PaymentRequest, error) {
	return nil, nil
}

func (l *memLedger) FindPendingBefore(context.Context, time.Time, int) ([]*model.PaymentRequest, error) {
	return nil, nil
}

func (l *memLedger) Update(_ context.Context, req *model.PaymentRequest) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.rows[req.CorrelationID] = *req
	return nil
}

// serialTx serializes transactions the way a row lock serializes writers.
type serialTx struct {
	mu sync.Mutex
}

func (tx *serialTx) Transaction(ctx context.Context, fn func(ctx context.Context) error) error {
	tx.mu.Lock()
	defer tx.mu.Unlock()
	return fn(ctx)
}

type countingBridge struct {
	paid atomic.Int32
}

func (b *countingBridge) GetOrder(context.Context, uuid.UUID) (*model.Order, error) {
	return nil, ErrOrderNotFound
}

func (b *countingBridge) LockOrder(context.Context, uuid.UUID) (*model.Order, error) {
	return nil, ErrOrderNotFound
}

func (b *countingBridge) MarkPaid(context.Context, uuid.UUID) error {
	b.paid.Add(1)
	return nil
}

type nopCallbackDB struct{}

func (nopCallbackDB) Create(context.Context, *model.CallbackEvent) error    { return nil }
func (nopCallbackDB) MarkProcessed(context.Context, uuid.UUID, error) error { return nil }

// slowProvider answers every query with success after a short delay.
type slowProvider struct {
	callback *model.ProviderCallback
}

func (p *slowProvider) Name() string                                 { return "mpesa" }
func (p *slowProvider) Authenticate(context.Context) (string, error) { return "token", nil }

func (p *slowProvider) InitiatePayment(context.Context, *model.ProviderInitiation) (*model.ProviderInitiationResult, error) {
	return nil, ErrProviderUnavailable
}

func (p *slowProvider) QueryStatus(_ context.Context, id string) (*model.ProviderQueryResult, error) {
	time.Sleep(time.Millisecond)
	return &model.ProviderQueryResult{CorrelationID: id, ResultCode: 0, ResultMessage: "The service request is processed successfully."}, nil
}

func (p *slowProvider) ParseCallback([]byte) (*model.ProviderCallback, error) {
	return p.callback, nil
}

func TestPaymentDomain_ConcurrentResolutionCascadesOnce(t *testing.T) {
	orderID := uuid.New()
	req := pendingRequest("ws_CO_RACE", orderID)

	ledger := newMemLedger(req)
	bridge := &countingBridge{}
	provider := &slowProvider{callback: &model.ProviderCallback{
		CorrelationID: "ws_CO_RACE",
		ResultCode:    0,
		ResultMessage: "The service request is processed successfully.",
		Metadata:      map[string]string{model.MetadataReceiptNumber: "ABC123"},
	}}

	d := NewPaymentDomain(ledger, nopCallbackDB{}, provider, bridge, &serialTx{}, nil, Options{}, zap.NewNop())

	const workers = 16
	var wg sync.WaitGroup
	start := make(chan struct{})

	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			<-start
			if i%2 == 0 {
				_, _ = d.HandleCallback(context.Background(), []byte(`{}`))
			} else {
				_, _ = d.QueryStatus(context.Background(), "ws_CO_RACE")
			}
		}(i)
	}

	close(start)
	wg.Wait()

	final := ledger.get("ws_CO_RACE")
	require.NotNil(t, final)
	assert.Equal(t, model.PaymentStatusSuccess, final.Status)
	assert.Equal(t, int32(1), bridge.paid.Load())
}
