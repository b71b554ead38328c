package outbound

import (
	"context"
	"errors"
)

// ErrDuplicate is returned when an insert violates a unique constraint.
var ErrDuplicate = errors.New("duplicate record")

// TransactionPort runs work inside a single database transaction.
type TransactionPort interface {
	// Transaction executes fn with a ctx that carries the transaction.
	// The transaction commits when fn returns nil and rolls back otherwise.
	Transaction(ctx context.Context, fn func(ctx context.Context) error) error
}
