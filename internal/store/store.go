// Package store defines the persistence port used by the expense service.
// Implementations live in sub-packages; none of them outlive the process.
package store

import (
	"context"

	"spendlog/internal/core"
)

// Store holds the expense collection.
type Store interface {
	// List returns every expense in insertion order.
	List(ctx context.Context) ([]core.Expense, error)
	// Get returns the expense with the given id or core.ErrNotFound.
	Get(ctx context.Context, id int64) (core.Expense, error)
	// Create assigns the next id to e, appends it and returns the stored copy.
	Create(ctx context.Context, e core.Expense) (core.Expense, error)
	// Update replaces the editable fields of the expense with e.ID.
	Update(ctx context.Context, e core.Expense) error
	// Delete removes the expense with the given id.
	Delete(ctx context.Context, id int64) error

	Ping(ctx context.Context) error
	Close() error
}
