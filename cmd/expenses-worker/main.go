package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"time"

	"golang.org/x/sync/errgroup"

	"expenses/internal/amqp"
	"expenses/internal/cache"
	"expenses/internal/cli"
	"expenses/internal/config"
	applog "expenses/internal/log"
	"expenses/internal/sheets"
	gsheet "expenses/internal/sheets/google"
	memsheet "expenses/internal/sheets/memory"
	"expenses/internal/worker"
)

func main() {
	cfg, logger := cli.Bootstrap(applog.ComponentWorker)
	logger.Info("Starting expenses-worker")

	if err := run(cfg, logger); err != nil && !errors.Is(err, context.Canceled) {
		logger.Error("Worker stopped with error", "error", err)
		os.Exit(1)
	}
	logger.Info("Worker shutdown complete")
}

func run(cfg *config.Config, logger *applog.Logger) error {
	if cfg.AMQPURL == "" {
		return errors.New("AMQP_URL is required by the worker")
	}

	ctx, stop := cli.SignalContext(context.Background())
	defer stop()

	mirror, err := newMirror(ctx, cfg, logger)
	if err != nil {
		return err
	}

	client, err := amqp.NewClient(cfg.AMQPURL, cfg.AMQPExchange, cfg.AMQPQueue)
	if err != nil {
		return fmt.Errorf("initialize AMQP client: %w", err)
	}
	client.SetLogger(logger)
	defer client.Close()

	w := worker.NewMirrorWorker(mirror, logger)

	// A failed seed only means redeliveries of old events may be appended twice.
	seedCtx, cancel := context.WithTimeout(ctx, 30*time.Second)
	if err := w.StartupSeed(seedCtx, mirror); err != nil {
		logger.Warn("Could not seed mirrored ids", "error", err)
	}
	cancel()

	caches := cache.NewManager(nil)
	caches.Register(w.SeenCache())
	caches.StartCleanup(time.Hour)
	defer caches.Stop()

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		return client.ConsumeExpenseCreated(gctx, w.HandleExpenseCreated)
	})
	return g.Wait()
}

// newMirror picks Google Sheets when a spreadsheet is configured and an
// in-process mirror otherwise.
func newMirror(ctx context.Context, cfg *config.Config, logger *applog.Logger) (sheets.Mirror, error) {
	if cfg.GoogleSpreadsheetID == "" {
		logger.Warn("GOOGLE_SPREADSHEET_ID not set, mirroring to memory")
		return memsheet.New(), nil
	}

	client, err := gsheet.New(ctx, gsheet.Config{
		SpreadsheetID: cfg.GoogleSpreadsheetID,
		SheetName:     cfg.GoogleSheetName,
	})
	if err != nil {
		return nil, fmt.Errorf("initialize Google Sheets client: %w", err)
	}
	logger.Info("Google Sheets mirror initialized",
		"spreadsheet_id", cfg.GoogleSpreadsheetID,
		"sheet", cfg.GoogleSheetName)
	return client, nil
}
