package worker

import (
	"context"
	"fmt"
	"time"

	"expenses/internal/amqp"
	"expenses/internal/cache"
	applog "expenses/internal/log"
	"expenses/internal/sheets"
)

const (
	defaultSeenSize = 10_000
	defaultSeenTTL  = 7 * 24 * time.Hour
)

// MirrorWorker appends each newly created expense to the spreadsheet mirror.
// Delivery is at-least-once, so ids already written are remembered and skipped.
type MirrorWorker struct {
	mirror sheets.ExpenseMirror
	seen   *cache.LRUCache[struct{}]
	logger *applog.Logger
}

func NewMirrorWorker(mirror sheets.ExpenseMirror, logger *applog.Logger) *MirrorWorker {
	if logger == nil {
		logger = applog.New(applog.DefaultConfig())
	}
	return &MirrorWorker{
		mirror: mirror,
		seen:   cache.NewLRUCache[struct{}](defaultSeenSize, defaultSeenTTL),
		logger: logger.WithComponent(applog.ComponentWorker),
	}
}

// SeenCache exposes the dedupe cache for periodic cleanup.
func (w *MirrorWorker) SeenCache() cache.Cleaner {
	return w.seen
}

// StartupSeed marks the ids already present in the mirror as written.
func (w *MirrorWorker) StartupSeed(ctx context.Context, lister sheets.MirroredIDLister) error {
	ids, err := lister.ListMirroredIDs(ctx)
	if err != nil {
		return fmt.Errorf("list mirrored ids: %w", err)
	}
	for _, id := range ids {
		w.seen.Set(id, struct{}{})
	}
	w.logger.InfoContext(ctx, "Seeded mirrored expense ids", "count", len(ids))
	return nil
}

// HandleExpenseCreated implements amqp.Handler.
func (w *MirrorWorker) HandleExpenseCreated(ctx context.Context, msg *amqp.ExpenseCreatedMessage, redelivered bool) error {
	e := msg.ToExpense()

	if _, ok := w.seen.Get(e.ID); ok {
		w.logger.InfoContext(ctx, "Expense already mirrored, skipping",
			applog.FieldExpenseID, e.ID,
			"redelivered", redelivered)
		return nil
	}

	ref, err := w.mirror.AppendExpense(ctx, e)
	if err != nil {
		return fmt.Errorf("append expense %s to mirror: %w", e.ID, err)
	}
	w.seen.Set(e.ID, struct{}{})

	w.logger.InfoContext(ctx, "Mirrored expense",
		applog.FieldExpenseID, e.ID,
		applog.FieldAmountPaise, e.AmountMinorUnits,
		applog.FieldCategory, e.Category,
		applog.FieldSheetsRef, ref)
	return nil
}
