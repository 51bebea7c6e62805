package worker

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"expenses/internal/amqp"
	"expenses/internal/core"
	applog "expenses/internal/log"
	"expenses/internal/sheets/memory"
)

func message(id string) *amqp.ExpenseCreatedMessage {
	return amqp.NewExpenseCreatedMessage(core.Expense{
		ID:               id,
		IdempotencyKey:   "k-" + id,
		AmountMinorUnits: 500,
		Category:         "Food",
		Date:             "2026-02-01",
	})
}

func TestHandleExpenseCreatedSkipsDuplicates(t *testing.T) {
	mirror := memory.New()
	w := NewMirrorWorker(mirror, applog.Discard())
	ctx := context.Background()

	require.NoError(t, w.HandleExpenseCreated(ctx, message("id-1"), false))
	require.NoError(t, w.HandleExpenseCreated(ctx, message("id-1"), true))
	require.NoError(t, w.HandleExpenseCreated(ctx, message("id-2"), false))

	rows := mirror.Rows()
	require.Len(t, rows, 2)
	assert.Equal(t, "id-1", rows[0][0])
	assert.Equal(t, "5.00", rows[0][4])
	assert.Equal(t, "id-2", rows[1][0])
}

func TestStartupSeedPreventsRewrites(t *testing.T) {
	mirror := memory.New("id-1")
	w := NewMirrorWorker(mirror, applog.Discard())
	ctx := context.Background()

	require.NoError(t, w.StartupSeed(ctx, mirror))
	require.NoError(t, w.HandleExpenseCreated(ctx, message("id-1"), true))

	assert.Empty(t, mirror.Rows())
}

type failingMirror struct{ calls int }

func (f *failingMirror) AppendExpense(context.Context, core.Expense) (string, error) {
	f.calls++
	return "", errors.New("quota exceeded")
}

func TestHandleExpenseCreatedRetriesAfterFailure(t *testing.T) {
	mirror := &failingMirror{}
	w := NewMirrorWorker(mirror, applog.Discard())
	ctx := context.Background()

	assert.Error(t, w.HandleExpenseCreated(ctx, message("id-1"), false))
	assert.Error(t, w.HandleExpenseCreated(ctx, message("id-1"), true))
	assert.Equal(t, 2, mirror.calls, "a failed append must not be remembered as written")
}
