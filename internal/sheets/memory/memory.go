// Package memory is an in-process spreadsheet mirror used when no spreadsheet
// is configured and in tests.
package memory

import (
	"context"
	"fmt"
	"sync"

	"expenses/internal/core"
	"expenses/internal/sheets"
)

type Store struct {
	mu   sync.Mutex
	rows [][]any
	ids  []string
}

var _ sheets.Mirror = (*Store)(nil)

// New returns a mirror pre-populated with the given ids, as if rows for them
// had already been written.
func New(existingIDs ...string) *Store {
	return &Store{ids: append([]string(nil), existingIDs...)}
}

// AppendExpense stores the row and returns a synthetic row reference.
func (s *Store) AppendExpense(_ context.Context, e core.Expense) (string, error) {
	if e.ID == "" {
		return "", fmt.Errorf("expense without id")
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.rows = append(s.rows, sheets.Row(e))
	s.ids = append(s.ids, e.ID)
	return fmt.Sprintf("mem:%d", len(s.ids)+1), nil
}

func (s *Store) ListMirroredIDs(context.Context) ([]string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]string(nil), s.ids...), nil
}

// Rows returns a copy of the appended rows.
func (s *Store) Rows() [][]any {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([][]any, len(s.rows))
	for i, r := range s.rows {
		out[i] = append([]any(nil), r...)
	}
	return out
}
