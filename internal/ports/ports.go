// Package ports declares the interfaces the service layer depends on and the
// storage backends implement.
package ports

import (
	"context"
	"errors"

	"expenses/internal/core"
)

// ErrStorageUnavailable wraps every failure of the underlying storage engine.
var ErrStorageUnavailable = errors.New("storage unavailable")

// ExpenseStore owns the persisted expense collection.
type ExpenseStore interface {
	// CreateIdempotent inserts in when no record carries its idempotency key and
	// otherwise returns the stored record unchanged with isNew=false.
	CreateIdempotent(ctx context.Context, in core.NewExpense) (e core.Expense, isNew bool, err error)
	// Query returns the filtered, ordered view. The result is never nil.
	Query(ctx context.Context, q core.Query) ([]core.Expense, error)
}

// Pinger is implemented by stores that can report their health.
type Pinger interface {
	Ping(ctx context.Context) error
}

// EventPublisher announces newly created expenses.
type EventPublisher interface {
	PublishExpenseCreated(ctx context.Context, e core.Expense) error
}
