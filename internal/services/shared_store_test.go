package services

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"expenses/internal/config"
	"expenses/internal/core"
	applog "expenses/internal/log"
	"expenses/internal/storage"
)

// Two API processes over one database file, each with its own repository.
func TestDefaultServicesSeeWritesFromOtherProcesses(t *testing.T) {
	path := filepath.Join(t.TempDir(), "expenses.db")
	ctx := context.Background()

	open := func() *ExpenseService {
		repo, err := storage.NewSQLiteRepository(path)
		require.NoError(t, err)
		t.Cleanup(func() { repo.Close() })
		cfg := config.Load()
		return NewExpenseService(repo, nil, Options{
			CacheSize: cfg.QueryCacheSize,
			CacheTTL:  cfg.QueryCacheTTL,
			Logger:    applog.Discard(),
		})
	}
	t.Setenv("QUERY_CACHE_TTL", "")
	a, b := open(), open()

	before, err := b.List(ctx, core.Query{})
	require.NoError(t, err)
	assert.Empty(t, before)

	_, isNew, err := a.Create(ctx, food("shared-1", 1250, "2026-03-01"))
	require.NoError(t, err)
	require.True(t, isNew)

	after, err := b.List(ctx, core.Query{})
	require.NoError(t, err)
	require.Len(t, after, 1)
	assert.Equal(t, "shared-1", after[0].IdempotencyKey)

	sum, err := b.Summary(ctx, "Food")
	require.NoError(t, err)
	assert.Equal(t, int64(1250), sum.TotalMinor)
}
