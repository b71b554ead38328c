package payment

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/sokoni/server/internal/infra/events"
	"github.com/sokoni/server/internal/model"
	"github.com/sokoni/server/internal/port/outbound"
	"go.uber.org/zap"
)

const (
	defaultProbeLockTTL = 15 * time.Second
	archiveTimeout      = 5 * time.Second
)

// CustomerMessage is shown to the payer after a successful initiation.
const CustomerMessage = "STK push sent. Check your phone."

// PaymentDomain defines the reconciliation engine.
type PaymentDomain interface {
	// Initiate sends a payment prompt for an order and records a pending ledger entry.
	Initiate(ctx context.Context, orderID uuid.UUID, phone string) (*model.PaymentRequest, error)

	// ApplyResolution moves a pending entry into its terminal state and, on
	// success, marks the linked order paid in the same transaction.
	// Terminal entries are returned unchanged.
	ApplyResolution(ctx context.Context, res *model.Resolution) (*model.PaymentRequest, error)

	// HandleCallback stores, parses and applies a provider push.
	HandleCallback(ctx context.Context, body []byte) (*model.PaymentRequest, error)

	// QueryStatus returns the entry, probing the provider while it is pending.
	// Provider failures fall back to the stored state.
	QueryStatus(ctx context.Context, correlationID string) (*model.PaymentRequest, error)

	// GetStatus returns the stored entry without contacting the provider.
	GetStatus(ctx context.Context, correlationID string) (*model.PaymentRequest, error)

	// ListByOrder lists every entry for an order, newest first.
	ListByOrder(ctx context.Context, orderID uuid.UUID) ([]*model.PaymentRequest, error)

	// SweepPending probes entries pending for longer than olderThan.
	// It returns how many reached a terminal state.
	SweepPending(ctx context.Context, olderThan time.Duration, limit int) (int, error)
}

// Recorder receives reconciliation measurements.
type Recorder interface {
	RecordInitiation(result string)
	RecordResolution(status, source string)
	RecordCascade()
}

// Options holds the optional collaborators of the engine.
type Options struct {
	ProbeLock    outbound.ProbeLockPort
	Archive      outbound.CallbackArchivePort
	Recorder     Recorder
	ProbeLockTTL time.Duration
}

// paymentDomain implements PaymentDomain.
type paymentDomain struct {
	ledger         outbound.PaymentRequestDatabasePort
	callbackDB     outbound.CallbackEventDatabasePort
	provider       outbound.PaymentProviderPort
	orders         outbound.OrderBridgePort
	tx             outbound.TransactionPort
	eventPublisher outbound.EventPublisherPort
	probeLock      outbound.ProbeLockPort
	archive        outbound.CallbackArchivePort
	recorder       Recorder
	probeLockTTL   time.Duration
	logger         *zap.Logger
}

// NewPaymentDomain creates a new reconciliation engine.
func NewPaymentDomain(
	ledger outbound.PaymentRequestDatabasePort,
	callbackDB outbound.CallbackEventDatabasePort,
	provider outbound.PaymentProviderPort,
	orders outbound.OrderBridgePort,
	tx outbound.TransactionPort,
	eventPublisher outbound.EventPublisherPort,
	opts Options,
	logger *zap.Logger,
) PaymentDomain {
	d := &paymentDomain{
		ledger:         ledger,
		callbackDB:     callbackDB,
		provider:       provider,
		orders:         orders,
		tx:             tx,
		eventPublisher: eventPublisher,
		probeLock:      opts.ProbeLock,
		archive:        opts.Archive,
		recorder:       opts.Recorder,
		probeLockTTL:   opts.ProbeLockTTL,
		logger:         logger.Named("payment"),
	}
	if d.recorder == nil {
		d.recorder = nopRecorder{}
	}
	if d.probeLockTTL <= 0 {
		d.probeLockTTL = defaultProbeLockTTL
	}
	return d
}

func (d *paymentDomain) Initiate(ctx context.Context, orderID uuid.UUID, phone string) (*model.PaymentRequest, error) {
	normalized, err := NormalizePhone(phone)
	if err != nil {
		d.recorder.RecordInitiation("invalid")
		return nil, err
	}

	ord, err := d.orders.GetOrder(ctx, orderID)
	if err != nil {
		return nil, err
	}
	if ord.IsPaid() {
		return nil, ErrOrderAlreadyPaid
	}
	if ord.Total <= 0 {
		d.recorder.RecordInitiation("invalid")
		return nil, ErrInvalidAmount
	}

	// Resolve a stale pending request before taking the order lock
	existing, err := d.ledger.FindPendingByOrder(ctx, orderID)
	if err != nil {
		return nil, fmt.Errorf("find pending request: %w", err)
	}
	if existing != nil {
		current, err := d.QueryStatus(ctx, existing.CorrelationID)
		if err != nil {
			return nil, err
		}
		switch current.Status {
		case model.PaymentStatusPending:
			d.recorder.RecordInitiation("in_progress")
			return nil, ErrPaymentInProgress
		case model.PaymentStatusSuccess:
			return nil, ErrOrderAlreadyPaid
		}
	}

	var req *model.PaymentRequest
	err = d.tx.Transaction(ctx, func(ctx context.Context) error {
		// The order row lock serializes initiations for one order, so no
		// accepted push can lose its ledger row to a concurrent request.
		locked, err := d.orders.LockOrder(ctx, orderID)
		if err != nil {
			return err
		}
		if locked.IsPaid() {
			return ErrOrderAlreadyPaid
		}
		pending, err := d.ledger.FindPendingByOrder(ctx, orderID)
		if err != nil {
			return fmt.Errorf("find pending request: %w", err)
		}
		if pending != nil {
			return ErrPaymentInProgress
		}

		result, err := d.provider.InitiatePayment(ctx, &model.ProviderInitiation{
			Phone:       normalized,
			Amount:      locked.Total,
			AccountRef:  locked.OrderNumber,
			Description: fmt.Sprintf("Payment for order %s", locked.OrderNumber),
		})
		if err != nil {
			d.recorder.RecordInitiation("provider_error")
			d.logger.Warn("payment initiation failed",
				zap.String("order_id", orderID.String()),
				zap.Error(err),
			)
			return fmt.Errorf("initiate payment: %w", err)
		}

		now := time.Now()
		orderRef := locked.ID
		req = &model.PaymentRequest{
			ID:                     uuid.New(),
			CorrelationID:          result.CorrelationID,
			SecondaryCorrelationID: result.SecondaryCorrelationID,
			OrderRef:               &orderRef,
			Amount:                 locked.Total,
			PayerPhone:             normalized,
			Status:                 model.PaymentStatusPending,
			CreatedAt:              now,
			UpdatedAt:              now,
		}
		if err := d.ledger.Create(ctx, req); err != nil {
			// The payer already has the prompt; keep enough to reconcile by hand
			d.logger.Error("failed to record accepted payment request",
				zap.String("order_id", orderID.String()),
				zap.String("correlation_id", result.CorrelationID),
				zap.Error(err),
			)
			return fmt.Errorf("create payment request: %w", err)
		}
		return nil
	})
	if err != nil {
		if errors.Is(err, ErrPaymentInProgress) {
			d.recorder.RecordInitiation("in_progress")
		}
		return nil, err
	}

	d.recorder.RecordInitiation("accepted")
	d.logger.Info("payment initiated",
		zap.String("correlation_id", req.CorrelationID),
		zap.String("order_id", orderID.String()),
		zap.Int64("amount", req.Amount),
	)

	return req, nil
}

func (d *paymentDomain) ApplyResolution(ctx context.Context, res *model.Resolution) (*model.PaymentRequest, error) {
	if res == nil || res.CorrelationID == "" {
		return nil, ErrInvalidResolution
	}

	var (
		resolved     *model.PaymentRequest
		transitioned bool
		cascaded     bool
		cascadeErr   error
	)

	err := d.tx.Transaction(ctx, func(ctx context.Context) error {
		req, err := d.ledger.FindByCorrelationIDForUpdate(ctx, res.CorrelationID)
		if err != nil {
			return fmt.Errorf("lock payment request: %w", err)
		}
		if req == nil {
			return ErrUnknownTransaction
		}

		// First resolution wins
		if req.Status.IsTerminal() {
			resolved = req
			return nil
		}

		applyOutcome(req, res, time.Now())
		if err := d.ledger.Update(ctx, req); err != nil {
			return fmt.Errorf("update payment request: %w", err)
		}

		if req.Status == model.PaymentStatusSuccess && req.OrderRef != nil {
			err := d.orders.MarkPaid(ctx, *req.OrderRef)
			switch {
			case err == nil:
				cascaded = true
			case isPermanentCascadeError(err):
				// The money was taken; the ledger records it even though the order cannot follow
				cascadeErr = err
			default:
				return fmt.Errorf("mark order paid: %w", err)
			}
		}

		resolved = req
		transitioned = true
		return nil
	})
	if err != nil {
		if errors.Is(err, ErrUnknownTransaction) {
			d.logger.Warn("resolution for unknown transaction",
				zap.String("correlation_id", res.CorrelationID),
				zap.String("source", res.Source),
			)
			return nil, ErrUnknownTransaction
		}
		d.logger.Error("failed to apply resolution",
			zap.String("correlation_id", res.CorrelationID),
			zap.String("source", res.Source),
			zap.Error(err),
		)
		return nil, err
	}

	if cascadeErr != nil {
		d.logger.Error("payment received for order that cannot be marked paid, needs manual follow-up",
			zap.String("correlation_id", resolved.CorrelationID),
			zap.String("order_id", resolved.OrderRef.String()),
			zap.Error(cascadeErr),
		)
	}

	if transitioned {
		d.afterResolution(ctx, resolved, res.Source, cascaded)
	} else {
		d.logger.Debug("resolution ignored, already terminal",
			zap.String("correlation_id", res.CorrelationID),
			zap.String("status", string(resolved.Status)),
			zap.String("source", res.Source),
		)
	}

	return resolved, nil
}

// isPermanentCascadeError reports whether retrying the order update can never succeed.
func isPermanentCascadeError(err error) bool {
	return errors.Is(err, ErrOrderNotPayable) || errors.Is(err, ErrOrderNotFound)
}

// afterResolution runs the post-commit side effects of a transition.
func (d *paymentDomain) afterResolution(ctx context.Context, req *model.PaymentRequest, source string, cascaded bool) {
	d.recorder.RecordResolution(string(req.Status), source)
	if cascaded {
		d.recorder.RecordCascade()
	}

	fields := []zap.Field{
		zap.String("correlation_id", req.CorrelationID),
		zap.String("status", string(req.Status)),
		zap.String("source", source),
	}
	if req.ProviderResultCode != nil {
		fields = append(fields, zap.Int("result_code", *req.ProviderResultCode))
	}
	if req.ProviderReceiptID != nil {
		fields = append(fields, zap.String("receipt_id", *req.ProviderReceiptID))
	}
	d.logger.Info("payment resolved", fields...)

	if d.eventPublisher == nil {
		return
	}
	if err := d.eventPublisher.Publish(ctx, events.NewPaymentResolvedEvent(req, source)); err != nil {
		d.logger.Error("failed to publish payment resolved event",
			zap.String("correlation_id", req.CorrelationID),
			zap.Error(err),
		)
	}
}

func (d *paymentDomain) HandleCallback(ctx context.Context, body []byte) (*model.PaymentRequest, error) {
	parsed, parseErr := d.provider.ParseCallback(body)

	// Store callback for audit
	event := &model.CallbackEvent{
		ID:        uuid.New(),
		Provider:  d.provider.Name(),
		Data:      string(body),
		CreatedAt: time.Now(),
	}
	if parsed != nil {
		event.CorrelationID = parsed.CorrelationID
	}

	stored := true
	if err := d.callbackDB.Create(ctx, event); err != nil {
		stored = false
		d.logger.Error("failed to store callback", zap.Error(err))
	}
	d.archiveCallback(ctx, event)

	if parseErr != nil {
		d.logger.Warn("malformed callback", zap.Error(parseErr))
		err := fmt.Errorf("%w: %v", ErrMalformedCallback, parseErr)
		if stored {
			d.markProcessed(ctx, event.ID, err)
		}
		return nil, err
	}

	code := parsed.ResultCode
	req, err := d.ApplyResolution(ctx, &model.Resolution{
		CorrelationID: parsed.CorrelationID,
		ResultCode:    &code,
		ResultMessage: parsed.ResultMessage,
		Metadata:      parsed.Metadata,
		Source:        model.ResolutionSourceCallback,
	})
	if stored {
		d.markProcessed(ctx, event.ID, err)
	}

	return req, err
}

func (d *paymentDomain) archiveCallback(ctx context.Context, event *model.CallbackEvent) {
	if d.archive == nil {
		return
	}
	ctx, cancel := context.WithTimeout(ctx, archiveTimeout)
	defer cancel()

	if err := d.archive.Archive(ctx, event); err != nil {
		d.logger.Warn("failed to archive callback",
			zap.String("callback_id", event.ID.String()),
			zap.Error(err),
		)
	}
}

func (d *paymentDomain) markProcessed(ctx context.Context, id uuid.UUID, processErr error) {
	if err := d.callbackDB.MarkProcessed(ctx, id, processErr); err != nil {
		d.logger.Error("failed to mark callback processed",
			zap.String("callback_id", id.String()),
			zap.Error(err),
		)
	}
}

func (d *paymentDomain) QueryStatus(ctx context.Context, correlationID string) (*model.PaymentRequest, error) {
	req, err := d.GetStatus(ctx, correlationID)
	if err != nil {
		return nil, err
	}
	if req.Status.IsTerminal() {
		return req, nil
	}

	if d.probeLock != nil {
		token, acquired, err := d.probeLock.Acquire(ctx, correlationID, d.probeLockTTL)
		switch {
		case err != nil:
			d.logger.Warn("probe lock unavailable, probing anyway",
				zap.String("correlation_id", correlationID),
				zap.Error(err),
			)
		case !acquired:
			// Another probe is in flight
			return req, nil
		default:
			defer func() {
				if err := d.probeLock.Release(context.WithoutCancel(ctx), correlationID, token); err != nil {
					d.logger.Warn("failed to release probe lock",
						zap.String("correlation_id", correlationID),
						zap.Error(err),
					)
				}
			}()
		}
	}

	result, err := d.provider.QueryStatus(ctx, correlationID)
	if err != nil {
		d.logger.Warn("provider query failed, returning stored state",
			zap.String("correlation_id", correlationID),
			zap.Error(err),
		)
		return req, nil
	}

	code := result.ResultCode
	resolved, err := d.ApplyResolution(ctx, &model.Resolution{
		CorrelationID: correlationID,
		ResultCode:    &code,
		ResultMessage: result.ResultMessage,
		Source:        model.ResolutionSourceQuery,
	})
	if err != nil {
		return req, nil
	}

	return resolved, nil
}

func (d *paymentDomain) GetStatus(ctx context.Context, correlationID string) (*model.PaymentRequest, error) {
	req, err := d.ledger.FindByCorrelationID(ctx, correlationID)
	if err != nil {
		return nil, fmt.Errorf("get payment request: %w", err)
	}
	if req == nil {
		return nil, ErrUnknownTransaction
	}
	return req, nil
}

func (d *paymentDomain) ListByOrder(ctx context.Context, orderID uuid.UUID) ([]*model.PaymentRequest, error) {
	reqs, err := d.ledger.FindByOrder(ctx, orderID)
	if err != nil {
		return nil, fmt.Errorf("list payment requests: %w", err)
	}
	return reqs, nil
}

func (d *paymentDomain) SweepPending(ctx context.Context, olderThan time.Duration, limit int) (int, error) {
	cutoff := time.Now().Add(-olderThan)
	pending, err := d.ledger.FindPendingBefore(ctx, cutoff, limit)
	if err != nil {
		return 0, fmt.Errorf("find stale requests: %w", err)
	}

	resolved := 0
	for _, req := range pending {
		if ctx.Err() != nil {
			break
		}
		current, err := d.QueryStatus(ctx, req.CorrelationID)
		if err != nil {
			d.logger.Warn("sweep probe failed",
				zap.String("correlation_id", req.CorrelationID),
				zap.Error(err),
			)
			continue
		}
		if current.Status.IsTerminal() {
			resolved++
		}
	}

	if len(pending) > 0 {
		d.logger.Info("swept pending requests",
			zap.Int("checked", len(pending)),
			zap.Int("resolved", resolved),
		)
	}
	return resolved, nil
}

type nopRecorder struct{}

func (nopRecorder) RecordInitiation(string)         {}
func (nopRecorder) RecordResolution(string, string) {}
func (nopRecorder) RecordCascade()                  {}
