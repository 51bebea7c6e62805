package memory

import (
	"context"
	"testing"

	"expenses/internal/core"
	"expenses/internal/ports"
	"expenses/internal/storage/storagetest"
)

func TestStoreConformance(t *testing.T) {
	storagetest.Run(t, func(*testing.T) ports.ExpenseStore { return New() })
}

func TestQueryReturnsCopy(t *testing.T) {
	s := New()
	ctx := context.Background()
	if _, _, err := s.CreateIdempotent(ctx, core.NewExpense{IdempotencyKey: "k", AmountMinorUnits: 1, Category: "Food", Date: "2026-02-01"}); err != nil {
		t.Fatal(err)
	}
	items, _ := s.Query(ctx, core.Query{})
	items[0].Category = "mutated"
	again, _ := s.Query(ctx, core.Query{})
	if again[0].Category != "Food" {
		t.Fatalf("store state leaked through Query result")
	}
	if s.Len() != 1 {
		t.Fatalf("expected 1 record, got %d", s.Len())
	}
}
