package services

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"strconv"
	"sync"
	"sync/atomic"
	"time"

	"golang.org/x/sync/singleflight"

	"expenses/internal/cache"
	"expenses/internal/core"
	applog "expenses/internal/log"
	"expenses/internal/ports"
)

// Options tunes the query cache and logging of an ExpenseService.
type Options struct {
	CacheSize int
	CacheTTL  time.Duration // zero disables caching
	Logger    *applog.Logger
}

// Stats are monotonically increasing counters exposed on /metrics.
type Stats struct {
	Created         int64
	Replayed        int64
	PayloadMismatch int64
	PublishFailures int64
	CacheHits       int64
	CacheMisses     int64
}

// ExpenseService fronts the expense store: it publishes events for new records
// and caches query results until the next insert.
type ExpenseService struct {
	store     ports.ExpenseStore
	publisher ports.EventPublisher
	cache     cache.Cache[[]core.Expense]
	group     singleflight.Group
	logger    *applog.Logger
	sl        *applog.StructuredLogger

	// generation is bumped on every insert so fills started before it are not cached
	mu         sync.Mutex
	generation uint64

	created, replayed, mismatched, publishFailures, hits, misses atomic.Int64
}

// NewExpenseService wires the service. publisher may be nil.
func NewExpenseService(store ports.ExpenseStore, publisher ports.EventPublisher, opts Options) *ExpenseService {
	logger := opts.Logger
	if logger == nil {
		logger = applog.New(applog.DefaultConfig())
	}
	logger = logger.WithComponent(applog.ComponentExpense)

	s := &ExpenseService{
		store:     store,
		publisher: publisher,
		logger:    logger,
		sl:        applog.NewStructuredLogger(logger),
	}
	if opts.CacheTTL > 0 {
		size := opts.CacheSize
		if size < 1 {
			size = 128
		}
		s.cache = cache.NewLRUCache[[]core.Expense](size, opts.CacheTTL)
	}
	return s
}

// Cache returns the query cache so it can be registered for periodic cleanup.
// It is nil when caching is disabled.
func (s *ExpenseService) Cache() cache.Cleaner {
	if c, ok := s.cache.(cache.Cleaner); ok {
		return c
	}
	return nil
}

// Create records the expense once per idempotency key. A replay returns the
// stored record with isNew=false; events are only published for new records and
// a publish failure never fails the call.
func (s *ExpenseService) Create(ctx context.Context, in core.NewExpense) (core.Expense, bool, error) {
	e, isNew, err := s.store.CreateIdempotent(ctx, in)
	if errors.Is(err, core.ErrInvalidInput) {
		return core.Expense{}, false, err
	}
	if err != nil {
		s.sl.LogError(ctx, "Failed to store expense", err, applog.ComponentStorage, applog.OpCreate,
			applog.NewFields().WithExpense("", in.IdempotencyKey, in.AmountMinorUnits, in.Category, in.Date))
		return core.Expense{}, false, fmt.Errorf("create expense: %w", err)
	}

	s.sl.LogExpenseStored(ctx, e.ID, e.IdempotencyKey, e.AmountMinorUnits, e.Category, e.Date, !isNew)

	if !isNew {
		s.replayed.Add(1)
		if !in.SamePayload(e) {
			s.mismatched.Add(1)
			s.logger.WarnContext(ctx, "Idempotency key reused with a different payload, returning original record",
				applog.FieldIdempotencyKey, e.IdempotencyKey,
				applog.FieldExpenseID, e.ID)
		}
		return e, false, nil
	}

	s.created.Add(1)
	s.invalidate()
	// the insert is committed, so the event must go out even if the caller has gone
	s.publish(context.WithoutCancel(ctx), e)
	return e, true, nil
}

func (s *ExpenseService) publish(ctx context.Context, e core.Expense) {
	if s.publisher == nil {
		return
	}
	if err := s.publisher.PublishExpenseCreated(ctx, e); err != nil {
		s.publishFailures.Add(1)
		s.logger.ErrorContext(ctx, "Failed to publish expense created event",
			applog.FieldExpenseID, e.ID,
			applog.FieldOperation, applog.OpPublish,
			"error", err)
	}
}

func (s *ExpenseService) invalidate() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.generation++
	if s.cache != nil {
		s.cache.Purge()
	}
}

func (s *ExpenseService) currentGeneration() uint64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.generation
}

// storeIfCurrent caches items unless an insert happened since gen was read.
func (s *ExpenseService) storeIfCurrent(gen uint64, key string, items []core.Expense) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.generation == gen {
		s.cache.Set(key, items)
	}
}

// List returns the filtered, ordered view. Callers own the returned slice.
func (s *ExpenseService) List(ctx context.Context, q core.Query) ([]core.Expense, error) {
	items, err := s.query(ctx, q)
	if err != nil {
		return nil, err
	}
	return slices.Clone(items), nil
}

// query serves from cache or the store. Concurrent misses for the same query
// share one store call. The result must not be modified.
func (s *ExpenseService) query(ctx context.Context, q core.Query) ([]core.Expense, error) {
	if s.cache == nil {
		return s.fetch(ctx, q)
	}

	key := q.Key()
	if items, ok := s.cache.Get(key); ok {
		s.hits.Add(1)
		return items, nil
	}
	s.misses.Add(1)

	// Keyed by generation so a caller arriving after an insert never joins an
	// older fill.
	gen := s.currentGeneration()
	v, err, _ := s.group.Do(key+"#"+strconv.FormatUint(gen, 10), func() (any, error) {
		items, err := s.fetch(ctx, q)
		if err != nil {
			return nil, err
		}
		s.storeIfCurrent(gen, key, items)
		return items, nil
	})
	if err != nil {
		return nil, err
	}
	return v.([]core.Expense), nil
}

func (s *ExpenseService) fetch(ctx context.Context, q core.Query) ([]core.Expense, error) {
	items, err := s.store.Query(ctx, q)
	if err != nil {
		s.sl.LogError(ctx, "Failed to query expenses", err, applog.ComponentStorage, applog.OpQuery,
			applog.LogFields{applog.FieldCategory: q.Category, "sort": string(q.Sort)})
		return nil, fmt.Errorf("query expenses: %w", err)
	}
	return items, nil
}

// Categories returns the sorted distinct categories in use.
func (s *ExpenseService) Categories(ctx context.Context) ([]string, error) {
	items, err := s.query(ctx, core.Query{})
	if err != nil {
		return nil, err
	}
	return core.Categories(items), nil
}

// Summary totals the view selected by category.
func (s *ExpenseService) Summary(ctx context.Context, category string) (core.Summary, error) {
	items, err := s.query(ctx, core.Query{Category: category})
	if err != nil {
		return core.Summary{}, err
	}
	return core.Summarize(items), nil
}

// Ping reports store health when the store supports it.
func (s *ExpenseService) Ping(ctx context.Context) error {
	if p, ok := s.store.(ports.Pinger); ok {
		return p.Ping(ctx)
	}
	return nil
}

func (s *ExpenseService) Stats() Stats {
	return Stats{
		Created:         s.created.Load(),
		Replayed:        s.replayed.Load(),
		PayloadMismatch: s.mismatched.Load(),
		PublishFailures: s.publishFailures.Load(),
		CacheHits:       s.hits.Load(),
		CacheMisses:     s.misses.Load(),
	}
}
