// Package memory is an in-process ports.ExpenseStore for tests and local runs.
package memory

import (
	"context"
	"sync"
	"time"

	"expenses/internal/core"
	"expenses/internal/ports"
)

type Store struct {
	mu    sync.Mutex
	items []core.Expense // insertion order
	byKey map[string]int // idempotency key -> index into items
	now   func() time.Time
}

var (
	_ ports.ExpenseStore = (*Store)(nil)
	_ ports.Pinger       = (*Store)(nil)
)

func New() *Store {
	return &Store{byKey: make(map[string]int), now: time.Now}
}

func (s *Store) CreateIdempotent(_ context.Context, in core.NewExpense) (core.Expense, bool, error) {
	if err := in.Validate(); err != nil {
		return core.Expense{}, false, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if i, ok := s.byKey[in.IdempotencyKey]; ok {
		return s.items[i], false, nil
	}
	e := in.Build(s.now())
	s.byKey[e.IdempotencyKey] = len(s.items)
	s.items = append(s.items, e)
	return e, true, nil
}

func (s *Store) Query(_ context.Context, q core.Query) ([]core.Expense, error) {
	s.mu.Lock()
	out := make([]core.Expense, 0, len(s.items))
	for _, e := range s.items {
		if q.Matches(e) {
			out = append(out, e)
		}
	}
	s.mu.Unlock()
	core.SortExpenses(out, q.Sort)
	return out, nil
}

func (s *Store) Ping(context.Context) error { return nil }

// Len returns the number of stored records.
func (s *Store) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.items)
}
