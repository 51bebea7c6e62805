package core

import (
	"errors"
	"fmt"
	"slices"
	"strings"
	"time"

	"github.com/google/uuid"
)

const (
	// DateLayout is the calendar date format; lexicographic order equals chronological order.
	DateLayout = "2006-01-02"
	// TimestampLayout is the UTC creation timestamp format.
	TimestampLayout = "2006-01-02T15:04:05.000Z07:00"

	// MaxIdempotencyKeyLen bounds client supplied keys.
	MaxIdempotencyKeyLen = 255
)

const (
	SortNone     SortOrder = ""
	SortDateDesc SortOrder = "date_desc"
	SortDateAsc  SortOrder = "date_asc"
)

type (
	SortOrder string

	// Expense is an immutable persisted record.
	Expense struct {
		ID               string
		IdempotencyKey   string
		AmountMinorUnits int64
		Category         string
		Description      string // empty when absent
		Date             string // YYYY-MM-DD
		CreatedAt        string // UTC, TimestampLayout
	}

	// NewExpense is the validated input for an idempotent create.
	NewExpense struct {
		IdempotencyKey   string
		AmountMinorUnits int64
		Category         string
		Description      string
		Date             string
	}

	// Query selects a view over the collection. An empty Category means no filter.
	Query struct {
		Category string
		Sort     SortOrder
	}

	// Summary aggregates a filtered view.
	Summary struct {
		Count      int
		TotalMinor int64
	}
)

var (
	// ErrInvalidInput marks caller errors; nothing is written when it is returned.
	ErrInvalidInput = errors.New("invalid input")

	ErrInvalidAmount         = fmt.Errorf("%w: invalid amount", ErrInvalidInput)
	ErrEmptyIdempotencyKey   = fmt.Errorf("%w: empty idempotency key", ErrInvalidInput)
	ErrIdempotencyKeyTooLong = fmt.Errorf("%w: idempotency key too long (max %d bytes)", ErrInvalidInput, MaxIdempotencyKeyLen)
	ErrEmptyCategory         = fmt.Errorf("%w: empty category", ErrInvalidInput)
	ErrInvalidDate           = fmt.Errorf("%w: invalid date (want YYYY-MM-DD)", ErrInvalidInput)
)

func (n NewExpense) Validate() error {
	key := strings.TrimSpace(n.IdempotencyKey)
	if key == "" {
		return ErrEmptyIdempotencyKey
	}
	if len(n.IdempotencyKey) > MaxIdempotencyKeyLen {
		return ErrIdempotencyKeyTooLong
	}
	if n.AmountMinorUnits < 0 {
		return ErrInvalidAmount
	}
	if strings.TrimSpace(n.Category) == "" {
		return ErrEmptyCategory
	}
	if err := ValidateDate(n.Date); err != nil {
		return err
	}
	return nil
}

// ValidateDate accepts only a real calendar date in YYYY-MM-DD form.
func ValidateDate(s string) error {
	if len(s) != len(DateLayout) {
		return ErrInvalidDate
	}
	if _, err := time.Parse(DateLayout, s); err != nil {
		return ErrInvalidDate
	}
	return nil
}

// Build stamps a new record with a fresh id and creation time.
func (n NewExpense) Build(now time.Time) Expense {
	return Expense{
		ID:               NewID(),
		IdempotencyKey:   n.IdempotencyKey,
		AmountMinorUnits: n.AmountMinorUnits,
		Category:         n.Category,
		Description:      n.Description,
		Date:             n.Date,
		CreatedAt:        FormatTimestamp(now),
	}
}

// SamePayload reports whether e was created from an equivalent request.
func (n NewExpense) SamePayload(e Expense) bool {
	return n.AmountMinorUnits == e.AmountMinorUnits &&
		n.Category == e.Category &&
		n.Description == e.Description &&
		n.Date == e.Date
}

// NewID returns a random UUID string.
func NewID() string {
	return uuid.NewString()
}

func FormatTimestamp(t time.Time) string {
	return t.UTC().Format(TimestampLayout)
}

// ParseSortOrder maps the query value to a SortOrder. Unrecognised values fall back to SortNone.
func ParseSortOrder(s string) SortOrder {
	switch SortOrder(strings.TrimSpace(s)) {
	case SortDateDesc:
		return SortDateDesc
	case SortDateAsc:
		return SortDateAsc
	default:
		return SortNone
	}
}

// Matches reports whether e belongs to the filtered view.
func (q Query) Matches(e Expense) bool {
	return q.Category == "" || e.Category == q.Category
}

// Key identifies the query for caching.
func (q Query) Key() string {
	return string(q.Sort) + "|" + q.Category
}

// SortExpenses orders items in place. Input must be in insertion order; the sort is
// stable so equal dates keep it.
func SortExpenses(items []Expense, order SortOrder) {
	switch order {
	case SortDateDesc:
		slices.SortStableFunc(items, func(a, b Expense) int {
			return strings.Compare(b.Date, a.Date)
		})
	case SortDateAsc:
		slices.SortStableFunc(items, func(a, b Expense) int {
			return strings.Compare(a.Date, b.Date)
		})
	}
}

// Summarize totals the given view.
func Summarize(items []Expense) Summary {
	s := Summary{Count: len(items)}
	for _, e := range items {
		s.TotalMinor += e.AmountMinorUnits
	}
	return s
}

// Categories returns the sorted distinct categories of items.
func Categories(items []Expense) []string {
	seen := make(map[string]struct{}, len(items))
	out := make([]string, 0)
	for _, e := range items {
		if _, ok := seen[e.Category]; ok {
			continue
		}
		seen[e.Category] = struct{}{}
		out = append(out, e.Category)
	}
	slices.Sort(out)
	return out
}
