// Package storagetest holds the behavioural suite every ports.ExpenseStore
// implementation must pass.
package storagetest

import (
	"context"
	"fmt"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"github.com/stretchr/testify/suite"
	"golang.org/x/sync/errgroup"

	"expenses/internal/core"
	"expenses/internal/ports"
)

// Suite runs against a fresh store per test. NewStore must register any cleanup
// on the given T.
type Suite struct {
	suite.Suite

	NewStore func(t *testing.T) ports.ExpenseStore

	store ports.ExpenseStore
	ctx   context.Context
}

func (s *Suite) SetupTest() {
	s.ctx = context.Background()
	s.store = s.NewStore(s.T())
}

func (s *Suite) create(in core.NewExpense) (core.Expense, bool) {
	e, isNew, err := s.store.CreateIdempotent(s.ctx, in)
	s.Require().NoError(err)
	return e, isNew
}

func (s *Suite) all() []core.Expense {
	items, err := s.store.Query(s.ctx, core.Query{})
	s.Require().NoError(err)
	return items
}

func newExpense(key string, amount int64, category, date string) core.NewExpense {
	return core.NewExpense{
		IdempotencyKey:   key,
		AmountMinorUnits: amount,
		Category:         category,
		Description:      "desc " + key,
		Date:             date,
	}
}

func (s *Suite) TestEmptyStoreReturnsEmptySlice() {
	items := s.all()
	s.NotNil(items)
	s.Empty(items)
}

func (s *Suite) TestCreateReturnsStoredRecord() {
	in := newExpense("k1", 1234, "Food", "2026-02-01")
	e, isNew := s.create(in)

	s.True(isNew)
	s.NotEmpty(e.ID)
	s.Equal("k1", e.IdempotencyKey)
	s.Equal(int64(1234), e.AmountMinorUnits)
	s.Equal("Food", e.Category)
	s.Equal("desc k1", e.Description)
	s.Equal("2026-02-01", e.Date)
	_, err := time.Parse(core.TimestampLayout, e.CreatedAt)
	s.NoError(err, "created_at %q", e.CreatedAt)

	items := s.all()
	s.Require().Len(items, 1)
	s.Equal(e, items[0])
}

func (s *Suite) TestEmptyDescriptionRoundTrips() {
	in := newExpense("k1", 100, "Food", "2026-02-01")
	in.Description = ""
	e, _ := s.create(in)
	s.Equal("", e.Description)

	items := s.all()
	s.Require().Len(items, 1)
	s.Equal("", items[0].Description)
}

func (s *Suite) TestAmountFidelity() {
	amounts := []int64{0, 1, 1234, 99_999_999_999}
	for i, amount := range amounts {
		e, _ := s.create(newExpense(fmt.Sprintf("amt-%d", i), amount, "Food", "2026-02-01"))
		s.Equal(amount, e.AmountMinorUnits)
	}
	items := s.all()
	s.Require().Len(items, len(amounts))
	for i, e := range items {
		s.Equal(amounts[i], e.AmountMinorUnits)
	}
}

func (s *Suite) TestReplayReturnsOriginal() {
	in := newExpense("k1", 1000, "Food", "2026-02-01")
	first, isNew := s.create(in)
	s.True(isNew)

	for range 3 {
		again, isNew := s.create(in)
		s.False(isNew)
		s.Equal(first, again)
	}
	s.Len(s.all(), 1)
}

func (s *Suite) TestReplayWithDifferentPayloadKeepsOriginal() {
	first, _ := s.create(newExpense("k1", 1000, "Food", "2026-02-01"))

	other, isNew := s.create(newExpense("k1", 5000, "Travel", "2026-03-01"))
	s.False(isNew)
	s.Equal(first, other)

	items := s.all()
	s.Require().Len(items, 1)
	s.Equal(int64(1000), items[0].AmountMinorUnits)
}

func (s *Suite) TestConcurrentSameKey() {
	const n = 16
	in := newExpense("same", 4200, "Food", "2026-02-01")

	var created atomic.Int32
	ids := make([]string, n)
	g, ctx := errgroup.WithContext(s.ctx)
	for i := range n {
		g.Go(func() error {
			e, isNew, err := s.store.CreateIdempotent(ctx, in)
			if err != nil {
				return err
			}
			if isNew {
				created.Add(1)
			}
			ids[i] = e.ID
			return nil
		})
	}
	s.Require().NoError(g.Wait())

	s.Equal(int32(1), created.Load())
	for _, id := range ids {
		s.Equal(ids[0], id)
	}
	items := s.all()
	s.Require().Len(items, 1)
	s.Equal(ids[0], items[0].ID)
}

func (s *Suite) TestConcurrentDistinctKeys() {
	const n = 20
	g, ctx := errgroup.WithContext(s.ctx)
	for i := range n {
		g.Go(func() error {
			_, isNew, err := s.store.CreateIdempotent(ctx, newExpense(fmt.Sprintf("k%d", i), int64(i), "Food", "2026-02-01"))
			if err == nil && !isNew {
				err = fmt.Errorf("key k%d reported as replay", i)
			}
			return err
		})
	}
	s.Require().NoError(g.Wait())
	s.Len(s.all(), n)
}

func (s *Suite) TestFilterByCategory() {
	a, _ := s.create(newExpense("k1", 100, "Food", "2026-02-01"))
	b, _ := s.create(newExpense("k2", 200, "Food", "2026-02-02"))
	s.create(newExpense("k3", 300, "Travel", "2026-02-03"))
	s.create(newExpense("k4", 400, "food", "2026-02-04"))

	items, err := s.store.Query(s.ctx, core.Query{Category: "Food"})
	s.Require().NoError(err)
	s.Equal([]core.Expense{a, b}, items)

	none, err := s.store.Query(s.ctx, core.Query{Category: "Rent"})
	s.Require().NoError(err)
	s.NotNil(none)
	s.Empty(none)
}

func (s *Suite) TestSortDateDesc() {
	s.create(newExpense("k1", 100, "Food", "2026-02-01"))
	s.create(newExpense("k2", 100, "Food", "2026-02-03"))
	s.create(newExpense("k3", 100, "Food", "2026-02-02"))

	items, err := s.store.Query(s.ctx, core.Query{Category: "Food", Sort: core.SortDateDesc})
	s.Require().NoError(err)
	s.Equal([]string{"2026-02-03", "2026-02-02", "2026-02-01"}, dates(items))
}

func (s *Suite) TestSortDateAsc() {
	s.create(newExpense("k1", 100, "Food", "2026-02-03"))
	s.create(newExpense("k2", 100, "Travel", "2026-02-01"))
	s.create(newExpense("k3", 100, "Food", "2026-02-02"))

	items, err := s.store.Query(s.ctx, core.Query{Sort: core.SortDateAsc})
	s.Require().NoError(err)
	s.Equal([]string{"2026-02-01", "2026-02-02", "2026-02-03"}, dates(items))
}

func (s *Suite) TestEqualDatesKeepInsertionOrder() {
	s.create(newExpense("a", 100, "Food", "2026-02-02"))
	s.create(newExpense("b", 100, "Food", "2026-02-05"))
	s.create(newExpense("c", 100, "Food", "2026-02-02"))
	s.create(newExpense("d", 100, "Food", "2026-02-05"))

	desc, err := s.store.Query(s.ctx, core.Query{Sort: core.SortDateDesc})
	s.Require().NoError(err)
	s.Equal([]string{"b", "d", "a", "c"}, keys(desc))

	asc, err := s.store.Query(s.ctx, core.Query{Sort: core.SortDateAsc})
	s.Require().NoError(err)
	s.Equal([]string{"a", "c", "b", "d"}, keys(asc))
}

func (s *Suite) TestUnknownSortKeepsInsertionOrder() {
	s.create(newExpense("a", 100, "Food", "2026-02-03"))
	s.create(newExpense("b", 100, "Food", "2026-02-01"))
	s.create(newExpense("c", 100, "Food", "2026-02-02"))

	items, err := s.store.Query(s.ctx, core.Query{Sort: core.ParseSortOrder("amount_desc")})
	s.Require().NoError(err)
	s.Equal([]string{"a", "b", "c"}, keys(items))
}

func (s *Suite) TestRejectedInputWritesNothing() {
	s.create(newExpense("seed", 100, "Food", "2026-02-01"))

	bad := []core.NewExpense{
		newExpense("", 100, "Food", "2026-02-01"),
		newExpense("k-neg", -1, "Food", "2026-02-01"),
		newExpense("k-cat", 100, "", "2026-02-01"),
		newExpense("k-date", 100, "Food", "01/02/2026"),
	}
	for _, in := range bad {
		_, isNew, err := s.store.CreateIdempotent(s.ctx, in)
		s.ErrorIs(err, core.ErrInvalidInput, "input %+v", in)
		s.False(isNew)
	}
	s.Len(s.all(), 1)
}

func (s *Suite) TestEndToEndScenario() {
	amount, err := core.ToMinorUnits("10.00")
	s.Require().NoError(err)

	a, isNew := s.create(newExpense("k1", amount, "Food", "2026-02-01"))
	s.True(isNew)
	s.Len(s.all(), 1)

	b, isNew := s.create(newExpense("k1", amount, "Food", "2026-02-01"))
	s.False(isNew)
	s.Equal(a.ID, b.ID)
	s.Len(s.all(), 1)

	_, isNew = s.create(newExpense("k2", amount, "Travel", "2026-02-01"))
	s.True(isNew)
	s.Len(s.all(), 2)

	food, err := s.store.Query(s.ctx, core.Query{Category: "Food"})
	s.Require().NoError(err)
	s.Require().Len(food, 1)
	s.Equal(a.ID, food[0].ID)
}

func dates(items []core.Expense) []string {
	out := make([]string, len(items))
	for i, e := range items {
		out[i] = e.Date
	}
	return out
}

func keys(items []core.Expense) []string {
	out := make([]string, len(items))
	for i, e := range items {
		out[i] = e.IdempotencyKey
	}
	return out
}

// Run executes the suite against stores built by newStore.
func Run(t *testing.T, newStore func(t *testing.T) ports.ExpenseStore) {
	require.NotNil(t, newStore)
	suite.Run(t, &Suite{NewStore: newStore})
}
