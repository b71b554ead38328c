package postgres

import (
	"context"

	"github.com/sokoni/server/internal/port/outbound"
	"github.com/sokoni/server/internal/shared/database"
	"gorm.io/gorm"
)

// transactionAdapter implements outbound.TransactionPort.
type transactionAdapter struct {
	db *gorm.DB
}

// NewTransactionAdapter creates a new transaction adapter.
func NewTransactionAdapter(db *gorm.DB) outbound.TransactionPort {
	return &transactionAdapter{db: db}
}

// Transaction runs fn in a transaction. Nested calls join the outer transaction.
func (a *transactionAdapter) Transaction(ctx context.Context, fn func(ctx context.Context) error) error {
	return database.Conn(ctx, a.db).Transaction(func(tx *gorm.DB) error {
		return fn(database.WithTx(ctx, tx))
	})
}

// Compile-time check
var _ outbound.TransactionPort = (*transactionAdapter)(nil)
