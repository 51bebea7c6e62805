package backend

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"expenses/internal/config"
	"expenses/internal/core"
	applog "expenses/internal/log"
)

func TestCreateBackendForEachType(t *testing.T) {
	dir := t.TempDir()
	configs := []Config{
		{Type: SQLiteBackend, SQLiteDBPath: filepath.Join(dir, "a.db")},
		{Type: BoltBackend, BoltDBPath: filepath.Join(dir, "a.bolt")},
		{Type: MemoryBackend},
	}

	f := NewFactory(applog.Discard())
	for _, cfg := range configs {
		t.Run(cfg.Type.String(), func(t *testing.T) {
			res, err := f.CreateBackend(context.Background(), cfg)
			require.NoError(t, err)
			defer func() { assert.NoError(t, res.Cleanup()) }()

			assert.Nil(t, res.Publisher)
			_, isNew, err := res.Store.CreateIdempotent(context.Background(), core.NewExpense{
				IdempotencyKey: "k1", AmountMinorUnits: 100, Category: "Food", Date: "2026-02-01",
			})
			require.NoError(t, err)
			assert.True(t, isNew)
		})
	}
}

func TestCreateBackendRejectsInvalidConfig(t *testing.T) {
	f := NewFactory(nil)

	_, err := f.CreateBackend(context.Background(), Config{Type: "sheets"})
	assert.Error(t, err)

	_, err = f.CreateBackend(context.Background(), Config{Type: BoltBackend})
	assert.ErrorContains(t, err, "Bolt database path")
}

func TestFromAppConfig(t *testing.T) {
	_, err := FromAppConfig(nil)
	assert.Error(t, err)

	cfg, err := FromAppConfig(&config.Config{DataBackend: "bolt", BoltDBPath: "x.bolt", AMQPQueue: "q"})
	require.NoError(t, err)
	assert.Equal(t, BoltBackend, cfg.Type)
	assert.Equal(t, "x.bolt", cfg.BoltDBPath)
	assert.Equal(t, "q", cfg.AMQPQueue)
}
