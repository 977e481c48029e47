// Package storetest holds the behavioural tests every store.Store backend
// must pass. Backends call Run from their own _test.go files.
package storetest

import (
	"context"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"spendlog/internal/core"
	"spendlog/internal/store"
)

// Factory returns a fresh, empty store.
type Factory func(t *testing.T) store.Store

func expense(desc, amount, cat, date string) core.Expense {
	return core.Expense{
		Description: desc,
		Amount:      decimal.RequireFromString(amount),
		Category:    cat,
		Date:        date,
	}
}

// Run executes the contract suite against stores built by newStore.
func Run(t *testing.T, newStore Factory) {
	t.Run("StartsEmpty", func(t *testing.T) {
		s := newStore(t)
		items, err := s.List(context.Background())
		require.NoError(t, err)
		assert.Empty(t, items)
		require.NoError(t, s.Ping(context.Background()))
	})

	t.Run("CreateAssignsSequentialIDs", func(t *testing.T) {
		ctx := context.Background()
		s := newStore(t)

		first, err := s.Create(ctx, expense("Lunch", "15.00", "Food", "2023-10-26"))
		require.NoError(t, err)
		second, err := s.Create(ctx, expense("Movie Ticket", "12.50", "Entertainment", "2023-10-25"))
		require.NoError(t, err)

		assert.Equal(t, int64(1), first.ID)
		assert.Equal(t, int64(2), second.ID)

		items, err := s.List(ctx)
		require.NoError(t, err)
		require.Len(t, items, 2)
		assert.Equal(t, "Lunch", items[0].Description)
		assert.Equal(t, "Movie Ticket", items[1].Description)
		assert.True(t, items[1].Amount.Equal(decimal.RequireFromString("12.5")))
		assert.Equal(t, "Entertainment", items[1].Category)
		assert.Equal(t, "2023-10-25", items[1].Date)
	})

	t.Run("CreateRejectsNonPositiveAmount", func(t *testing.T) {
		ctx := context.Background()
		s := newStore(t)

		_, err := s.Create(ctx, expense("Invalid", "-5.00", "Error", "2023-10-27"))
		assert.ErrorIs(t, err, core.ErrInvalidAmount)

		items, err := s.List(ctx)
		require.NoError(t, err)
		assert.Empty(t, items)
	})

	t.Run("GetMissing", func(t *testing.T) {
		s := newStore(t)
		_, err := s.Get(context.Background(), 999)
		assert.ErrorIs(t, err, core.ErrNotFound)
	})

	t.Run("UpdateInPlace", func(t *testing.T) {
		ctx := context.Background()
		s := newStore(t)

		created, err := s.Create(ctx, expense("Original Book", "20.00", "Education", "2023-10-01"))
		require.NoError(t, err)
		_, err = s.Create(ctx, expense("Other", "1", "Misc", "2023-10-02"))
		require.NoError(t, err)

		updated := expense("Updated SciFi Book", "22.50", "Books", "2023-10-02")
		updated.ID = created.ID
		require.NoError(t, s.Update(ctx, updated))

		got, err := s.Get(ctx, created.ID)
		require.NoError(t, err)
		assert.Equal(t, created.ID, got.ID)
		assert.Equal(t, "Updated SciFi Book", got.Description)
		assert.True(t, got.Amount.Equal(decimal.RequireFromString("22.50")))
		assert.Equal(t, "Books", got.Category)
		assert.Equal(t, "2023-10-02", got.Date)

		// Insertion order is preserved by an edit.
		items, err := s.List(ctx)
		require.NoError(t, err)
		require.Len(t, items, 2)
		assert.Equal(t, created.ID, items[0].ID)
	})

	t.Run("UpdateMissing", func(t *testing.T) {
		s := newStore(t)
		missing := expense("Ghost", "10", "None", "2023-01-01")
		missing.ID = 999
		assert.ErrorIs(t, s.Update(context.Background(), missing), core.ErrNotFound)
	})

	t.Run("DeleteRemovesExactlyOne", func(t *testing.T) {
		ctx := context.Background()
		s := newStore(t)

		for _, desc := range []string{"a", "b", "c"} {
			_, err := s.Create(ctx, expense(desc, "1", "x", ""))
			require.NoError(t, err)
		}
		require.NoError(t, s.Delete(ctx, 2))

		items, err := s.List(ctx)
		require.NoError(t, err)
		require.Len(t, items, 2)
		assert.Equal(t, int64(1), items[0].ID)
		assert.Equal(t, int64(3), items[1].ID)

		assert.ErrorIs(t, s.Delete(ctx, 2), core.ErrNotFound)
		assert.ErrorIs(t, s.Delete(ctx, 999), core.ErrNotFound)
	})

	t.Run("IDsNeverReused", func(t *testing.T) {
		ctx := context.Background()
		s := newStore(t)

		first, err := s.Create(ctx, expense("To Delete", "5.00", "Misc", "2023-10-03"))
		require.NoError(t, err)
		require.NoError(t, s.Delete(ctx, first.ID))

		next, err := s.Create(ctx, expense("After", "1.00", "Misc", "2023-10-04"))
		require.NoError(t, err)
		assert.Equal(t, first.ID+1, next.ID)
	})

	t.Run("ListReturnsCopy", func(t *testing.T) {
		ctx := context.Background()
		s := newStore(t)

		_, err := s.Create(ctx, expense("Lunch", "15", "Food", ""))
		require.NoError(t, err)

		items, err := s.List(ctx)
		require.NoError(t, err)
		items[0].Description = "mutated"

		got, err := s.Get(ctx, 1)
		require.NoError(t, err)
		assert.Equal(t, "Lunch", got.Description)
	})
}
