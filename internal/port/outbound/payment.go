package outbound

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/sokoni/server/internal/model"
)

// PaymentRequestDatabasePort defines ledger persistence operations.
// Implementations join the transaction carried by ctx when there is one.
type PaymentRequestDatabasePort interface {
	// Create creates a new ledger entry.
	Create(ctx context.Context, req *model.PaymentRequest) error

	// FindByCorrelationID finds a ledger entry by provider correlation id.
	// Returns nil, nil when no entry exists.
	FindByCorrelationID(ctx context.Context, correlationID string) (*model.PaymentRequest, error)

	// FindByCorrelationIDForUpdate finds a ledger entry and holds its row lock
	// until the surrounding transaction ends.
	FindByCorrelationIDForUpdate(ctx context.Context, correlationID string) (*model.PaymentRequest, error)

	// FindPendingByOrder returns the pending entry for an order, if any.
	FindPendingByOrder(ctx context.Context, orderID uuid.UUID) (*model.PaymentRequest, error)

	// FindByOrder lists all entries for an order, newest first.
	FindByOrder(ctx context.Context, orderID uuid.UUID) ([]*model.PaymentRequest, error)

	// FindPendingBefore lists pending entries created before cutoff, oldest first.
	FindPendingBefore(ctx context.Context, cutoff time.Time, limit int) ([]*model.PaymentRequest, error)

	// Update saves a ledger entry.
	Update(ctx context.Context, req *model.PaymentRequest) error
}

// CallbackEventDatabasePort defines callback audit persistence operations.
type CallbackEventDatabasePort interface {
	// Create stores a raw callback.
	Create(ctx context.Context, event *model.CallbackEvent) error

	// MarkProcessed marks a callback as processed, recording the error if any.
	MarkProcessed(ctx context.Context, id uuid.UUID, processErr error) error
}

// CallbackArchivePort stores raw callback payloads in long-term storage.
type CallbackArchivePort interface {
	// Archive writes the payload under a key derived from the event.
	Archive(ctx context.Context, event *model.CallbackEvent) error
}

// PaymentProviderPort defines the push payment provider.
type PaymentProviderPort interface {
	// Name returns the provider name.
	Name() string

	// Authenticate returns a bearer token for provider calls.
	Authenticate(ctx context.Context) (string, error)

	// InitiatePayment sends a payment prompt to the payer's phone.
	InitiatePayment(ctx context.Context, req *model.ProviderInitiation) (*model.ProviderInitiationResult, error)

	// QueryStatus asks the provider for the outcome of a request.
	QueryStatus(ctx context.Context, correlationID string) (*model.ProviderQueryResult, error)

	// ParseCallback decodes a provider push body.
	ParseCallback(body []byte) (*model.ProviderCallback, error)
}

// ProbeLockPort deduplicates concurrent provider probes for one correlation id.
type ProbeLockPort interface {
	// Acquire takes the probe lock and returns the token identifying this holder.
	// It returns false when another probe holds it.
	Acquire(ctx context.Context, correlationID string, ttl time.Duration) (token string, acquired bool, err error)

	// Release drops the probe lock if token still holds it.
	Release(ctx context.Context, correlationID, token string) error
}

// --- Provider errors ---

var (
	// ErrProviderAuth is returned when the provider rejects the service credentials.
	ErrProviderAuth = errors.New("provider authentication failed")

	// ErrProviderRequest is returned when the provider refuses a request.
	ErrProviderRequest = errors.New("provider rejected request")

	// ErrProviderUnavailable is returned on timeouts, transport errors and open breakers.
	ErrProviderUnavailable = errors.New("provider unavailable")
)

// ProviderError describes a failed provider call.
type ProviderError struct {
	Kind       error
	Op         string
	StatusCode int
	Message    string
	Err        error
}

func (e *ProviderError) Error() string {
	msg := fmt.Sprintf("%s: %v", e.Op, e.Kind)
	if e.StatusCode != 0 {
		msg += fmt.Sprintf(" (status %d)", e.StatusCode)
	}
	if e.Message != "" {
		msg += ": " + e.Message
	}
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

// Unwrap exposes both the kind sentinel and the cause to errors.Is.
func (e *ProviderError) Unwrap() []error {
	if e.Err == nil {
		return []error{e.Kind}
	}
	return []error{e.Kind, e.Err}
}
