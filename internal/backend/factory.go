package backend

import (
	"context"
	"errors"
	"fmt"

	"expenses/internal/amqp"
	applog "expenses/internal/log"
	"expenses/internal/ports"
	"expenses/internal/storage"
	"expenses/internal/storage/boltstore"
	"expenses/internal/storage/memory"
)

type DefaultFactory struct {
	logger *applog.Logger
}

func NewFactory(logger *applog.Logger) Factory {
	if logger == nil {
		logger = applog.New(applog.DefaultConfig())
	}
	return &DefaultFactory{
		logger: logger.WithComponent(applog.ComponentBackend),
	}
}

// CreateBackend opens the configured store and, when AMQP is configured, the
// event publisher. A publisher that cannot connect is logged and left nil so the
// API keeps serving.
func (f *DefaultFactory) CreateBackend(ctx context.Context, config Config) (*BackendResult, error) {
	if err := config.Validate(); err != nil {
		return nil, err
	}

	store, closeStore, err := f.createStore(config)
	if err != nil {
		return nil, err
	}

	result := &BackendResult{Store: store}
	closers := []CleanupFunc{closeStore}

	if config.AMQPURL != "" {
		client, err := amqp.NewClient(config.AMQPURL, config.AMQPExchange, config.AMQPQueue)
		if err != nil {
			f.logger.WarnContext(ctx, "Failed to initialize AMQP client, continuing without events", "error", err)
		} else {
			client.SetLogger(f.logger)
			f.logger.InfoContext(ctx, "Initialized AMQP client",
				"exchange", config.AMQPExchange,
				"queue", config.AMQPQueue)
			result.Publisher = client
			closers = append(closers, client.Close)
		}
	}

	result.Cleanup = func() error {
		var errs []error
		for i := len(closers) - 1; i >= 0; i-- {
			if err := closers[i](); err != nil {
				errs = append(errs, err)
			}
		}
		return errors.Join(errs...)
	}

	f.logger.InfoContext(ctx, "Initialized backend",
		"type", config.Type.String(),
		"events_enabled", result.Publisher != nil)

	return result, nil
}

func (f *DefaultFactory) createStore(config Config) (ports.ExpenseStore, CleanupFunc, error) {
	switch config.Type {
	case SQLiteBackend:
		repo, err := storage.NewSQLiteRepository(config.SQLiteDBPath)
		if err != nil {
			return nil, nil, fmt.Errorf("failed to initialize SQLite repository: %w", err)
		}
		return repo, repo.Close, nil
	case BoltBackend:
		s, err := boltstore.New(config.BoltDBPath)
		if err != nil {
			return nil, nil, fmt.Errorf("failed to initialize Bolt store: %w", err)
		}
		return s, s.Close, nil
	case MemoryBackend:
		f.logger.Warn("Using in-memory store, records are lost on restart")
		return memory.New(), func() error { return nil }, nil
	default:
		return nil, nil, fmt.Errorf("unsupported backend type: %s", config.Type)
	}
}
