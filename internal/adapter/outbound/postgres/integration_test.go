//go:build integration

package postgres

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/sokoni/server/internal/model"
	"github.com/sokoni/server/internal/port/outbound"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/wait"
	"go.uber.org/zap"
	gormpg "gorm.io/driver/postgres"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"
)

func startPostgres(ctx context.Context, t *testing.T) string {
	t.Helper()

	req := testcontainers.ContainerRequest{
		Image:        "postgres:16",
		Env:          map[string]string{"POSTGRES_PASSWORD": "postgres", "POSTGRES_USER": "postgres", "POSTGRES_DB": "sokoni"},
		ExposedPorts: []string{"5432/tcp"},
		WaitingFor: wait.ForLog("database system is ready to accept connections").
			WithOccurrence(2).
			WithStartupTimeout(60 * time.Second),
	}

	container, err := testcontainers.GenericContainer(ctx, testcontainers.GenericContainerRequest{
		ContainerRequest: req,
		Started:          true,
	})
	require.NoError(t, err)
	t.Cleanup(func() {
		terminateCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		require.NoError(t, container.Terminate(terminateCtx))
	})

	host, err := container.Host(ctx)
	require.NoError(t, err)
	mappedPort, err := container.MappedPort(ctx, "5432/tcp")
	require.NoError(t, err)

	return fmt.Sprintf("postgres://postgres:postgres@%s:%s/sokoni?sslmode=disable", host, mappedPort.Port())
}

func openTestDB(ctx context.Context, t *testing.T) *gorm.DB {
	t.Helper()

	dsn := startPostgres(ctx, t)
	require.NoError(t, RunMigrations(dsn, zap.NewNop()))
	// Second run is a no-op
	require.NoError(t, RunMigrations(dsn, zap.NewNop()))

	db, err := gorm.Open(gormpg.Open(dsn), &gorm.Config{
		Logger:         gormlogger.Default.LogMode(gormlogger.Silent),
		TranslateError: true,
	})
	require.NoError(t, err)
	return db
}

func seedOrder(ctx context.Context, t *testing.T, orders outbound.OrderDatabasePort, total int64) *model.Order {
	t.Helper()
	order := &model.Order{
		ID:            uuid.New(),
		OrderNumber:   "ORD-" + uuid.NewString()[:8],
		Status:        model.OrderStatusPending,
		PaymentStatus: model.OrderPaymentPending,
		Total:         total,
	}
	require.NoError(t, orders.Create(ctx, order))
	return order
}

func newRequest(correlationID string, orderID uuid.UUID, createdAt time.Time) *model.PaymentRequest {
	return &model.PaymentRequest{
		ID:                     uuid.New(),
		CorrelationID:          correlationID,
		SecondaryCorrelationID: "merchant-" + correlationID,
		OrderRef:               &orderID,
		Amount:                 1500,
		PayerPhone:             "254712345678",
		Status:                 model.PaymentStatusPending,
		CreatedAt:              createdAt,
		UpdatedAt:              createdAt,
	}
}

func TestPostgresAdapters(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Minute)
	defer cancel()

	db := openTestDB(ctx, t)
	ledger := NewPaymentRequestAdapter(db)
	orders := NewOrderAdapter(db)
	callbacks := NewCallbackEventAdapter(db)
	tx := NewTransactionAdapter(db)

	t.Run("one pending request per order", func(t *testing.T) {
		order := seedOrder(ctx, t, orders, 1500)

		require.NoError(t, ledger.Create(ctx, newRequest("ws_CO_A1", order.ID, time.Now())))
		err := ledger.Create(ctx, newRequest("ws_CO_A2", order.ID, time.Now()))
		assert.True(t, errors.Is(err, outbound.ErrDuplicate))

		first, err := ledger.FindByCorrelationID(ctx, "ws_CO_A1")
		require.NoError(t, err)
		first.Status = model.PaymentStatusFailed
		require.NoError(t, ledger.Update(ctx, first))

		// A retry is allowed once the earlier attempt is terminal
		require.NoError(t, ledger.Create(ctx, newRequest("ws_CO_A3", order.ID, time.Now())))

		pending, err := ledger.FindPendingByOrder(ctx, order.ID)
		require.NoError(t, err)
		require.NotNil(t, pending)
		assert.Equal(t, "ws_CO_A3", pending.CorrelationID)

		all, err := ledger.FindByOrder(ctx, order.ID)
		require.NoError(t, err)
		assert.Len(t, all, 2)
	})

	t.Run("duplicate correlation id", func(t *testing.T) {
		order := seedOrder(ctx, t, orders, 100)
		other := seedOrder(ctx, t, orders, 100)
		require.NoError(t, ledger.Create(ctx, newRequest("ws_CO_DUP", order.ID, time.Now())))
		err := ledger.Create(ctx, newRequest("ws_CO_DUP", other.ID, time.Now()))
		assert.True(t, errors.Is(err, outbound.ErrDuplicate))
	})

	t.Run("missing rows", func(t *testing.T) {
		req, err := ledger.FindByCorrelationID(ctx, "ws_CO_NOPE")
		require.NoError(t, err)
		assert.Nil(t, req)

		order, err := orders.GetByID(ctx, uuid.New())
		require.NoError(t, err)
		assert.Nil(t, order)
	})

	t.Run("stale pending requests oldest first", func(t *testing.T) {
		old := time.Now().Add(-time.Hour)
		for i, id := range []string{"ws_CO_S2", "ws_CO_S1"} {
			order := seedOrder(ctx, t, orders, 100)
			require.NoError(t, ledger.Create(ctx, newRequest(id, order.ID, old.Add(time.Duration(-i)*time.Minute))))
		}

		stale, err := ledger.FindPendingBefore(ctx, time.Now().Add(-30*time.Minute), 10)
		require.NoError(t, err)
		require.Len(t, stale, 2)
		assert.Equal(t, "ws_CO_S1", stale[0].CorrelationID)

		limited, err := ledger.FindPendingBefore(ctx, time.Now().Add(-30*time.Minute), 1)
		require.NoError(t, err)
		assert.Len(t, limited, 1)
	})

	t.Run("rollback discards writes", func(t *testing.T) {
		order := seedOrder(ctx, t, orders, 100)
		require.NoError(t, ledger.Create(ctx, newRequest("ws_CO_RB", order.ID, time.Now())))

		boom := errors.New("boom")
		err := tx.Transaction(ctx, func(ctx context.Context) error {
			req, err := ledger.FindByCorrelationIDForUpdate(ctx, "ws_CO_RB")
			if err != nil {
				return err
			}
			req.Status = model.PaymentStatusSuccess
			if err := ledger.Update(ctx, req); err != nil {
				return err
			}
			return boom
		})
		assert.ErrorIs(t, err, boom)

		req, err := ledger.FindByCorrelationID(ctx, "ws_CO_RB")
		require.NoError(t, err)
		assert.Equal(t, model.PaymentStatusPending, req.Status)
	})

	t.Run("row lock serializes resolvers", func(t *testing.T) {
		order := seedOrder(ctx, t, orders, 100)
		require.NoError(t, ledger.Create(ctx, newRequest("ws_CO_LOCK", order.ID, time.Now())))

		var (
			wg          sync.WaitGroup
			mu          sync.Mutex
			transitions int
		)
		for i := 0; i < 8; i++ {
			wg.Add(1)
			go func() {
				defer wg.Done()
				err := tx.Transaction(ctx, func(ctx context.Context) error {
					req, err := ledger.FindByCorrelationIDForUpdate(ctx, "ws_CO_LOCK")
					if err != nil {
						return err
					}
					if req.Status.IsTerminal() {
						return nil
					}
					req.Status = model.PaymentStatusSuccess
					if err := ledger.Update(ctx, req); err != nil {
						return err
					}
					mu.Lock()
					transitions++
					mu.Unlock()
					return nil
				})
				assert.NoError(t, err)
			}()
		}
		wg.Wait()
		assert.Equal(t, 1, transitions)
	})

	t.Run("callback events", func(t *testing.T) {
		event := &model.CallbackEvent{
			ID:            uuid.New(),
			Provider:      "mpesa",
			CorrelationID: "ws_CO_CB",
			Data:          `{"Body":`,
		}
		require.NoError(t, callbacks.Create(ctx, event))
		require.NoError(t, callbacks.MarkProcessed(ctx, event.ID, errors.New("malformed")))

		var stored model.CallbackEvent
		require.NoError(t, db.First(&stored, "id = ?", event.ID).Error)
		assert.True(t, stored.Processed)
		require.NotNil(t, stored.Error)
		assert.Equal(t, "malformed", *stored.Error)
	})
}
