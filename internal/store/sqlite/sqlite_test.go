package sqlite

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"spendlog/internal/store"
	"spendlog/internal/store/storetest"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()
	s, err := New(DefaultDSN, nil)
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close() })
	return s
}

func TestSQLiteStoreContract(t *testing.T) {
	storetest.Run(t, func(t *testing.T) store.Store { return newTestStore(t) })
}

func TestMigrationsAreIdempotent(t *testing.T) {
	s := newTestStore(t)
	require.NoError(t, RunMigrations(s.db))

	var n int
	err := s.db.QueryRowContext(context.Background(),
		`SELECT COUNT(*) FROM sqlite_master WHERE type = 'table' AND name = 'expenses'`).Scan(&n)
	require.NoError(t, err)
	assert.Equal(t, 1, n)
}

func TestEachStoreIsAFreshDatabase(t *testing.T) {
	a := newTestStore(t)
	b := newTestStore(t)

	_, err := a.db.ExecContext(context.Background(),
		`INSERT INTO expenses (description, amount) VALUES ('x', '1')`)
	require.NoError(t, err)

	items, err := b.List(context.Background())
	require.NoError(t, err)
	assert.Empty(t, items)
}
