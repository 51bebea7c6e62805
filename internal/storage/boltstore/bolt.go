// Package boltstore is the embedded BoltDB implementation of ports.ExpenseStore.
//
// Records live in the expenses bucket under an 8-byte big-endian sequence number,
// so a cursor walk yields insertion order. The idempotency_keys bucket maps each
// key to that sequence and acts as the uniqueness constraint. BoltDB admits one
// read-write transaction at a time, which makes lookup and insert a single atomic
// step.
package boltstore

import (
	"context"
	"encoding/binary"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	bolt "go.etcd.io/bbolt"

	"expenses/internal/core"
	"expenses/internal/ports"
)

var (
	expensesBucket = []byte("expenses")
	keysBucket     = []byte("idempotency_keys")
)

type Store struct {
	db  *bolt.DB
	now func() time.Time
}

var (
	_ ports.ExpenseStore = (*Store)(nil)
	_ ports.Pinger       = (*Store)(nil)
)

// record is the on-disk JSON shape of an expense.
type record struct {
	ID             string `json:"id"`
	IdempotencyKey string `json:"idempotency_key"`
	AmountPaise    int64  `json:"amount_paise"`
	Category       string `json:"category"`
	Description    string `json:"description,omitempty"`
	Date           string `json:"date"`
	CreatedAt      string `json:"created_at"`
}

func toRecord(e core.Expense) record {
	return record{
		ID:             e.ID,
		IdempotencyKey: e.IdempotencyKey,
		AmountPaise:    e.AmountMinorUnits,
		Category:       e.Category,
		Description:    e.Description,
		Date:           e.Date,
		CreatedAt:      e.CreatedAt,
	}
}

func (r record) expense() core.Expense {
	return core.Expense{
		ID:               r.ID,
		IdempotencyKey:   r.IdempotencyKey,
		AmountMinorUnits: r.AmountPaise,
		Category:         r.Category,
		Description:      r.Description,
		Date:             r.Date,
		CreatedAt:        r.CreatedAt,
	}
}

// New opens (or creates) the database file and ensures both buckets exist.
func New(path string) (*Store, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return nil, fmt.Errorf("create db directory: %w", err)
	}

	db, err := bolt.Open(path, 0600, &bolt.Options{Timeout: 1 * time.Second})
	if err != nil {
		return nil, fmt.Errorf("open bolt database: %w", err)
	}

	err = db.Update(func(tx *bolt.Tx) error {
		for _, name := range [][]byte{expensesBucket, keysBucket} {
			if _, err := tx.CreateBucketIfNotExists(name); err != nil {
				return fmt.Errorf("create bucket %s: %w", name, err)
			}
		}
		return nil
	})
	if err != nil {
		db.Close()
		return nil, err
	}

	slog.Info("Bolt expense store ready", "path", path)
	return &Store{db: db, now: time.Now}, nil
}

func (s *Store) Close() error {
	return s.db.Close()
}

func (s *Store) Ping(ctx context.Context) error {
	if err := s.db.View(func(*bolt.Tx) error { return nil }); err != nil {
		return fmt.Errorf("%w: %w", ports.ErrStorageUnavailable, err)
	}
	return nil
}

func (s *Store) CreateIdempotent(ctx context.Context, in core.NewExpense) (core.Expense, bool, error) {
	if err := in.Validate(); err != nil {
		return core.Expense{}, false, err
	}
	if err := ctx.Err(); err != nil {
		return core.Expense{}, false, fmt.Errorf("%w: %w", ports.ErrStorageUnavailable, err)
	}

	var (
		result  core.Expense
		created bool
	)
	err := s.db.Update(func(tx *bolt.Tx) error {
		keys := tx.Bucket(keysBucket)
		expenses := tx.Bucket(expensesBucket)

		if seq := keys.Get([]byte(in.IdempotencyKey)); seq != nil {
			var r record
			if err := json.Unmarshal(expenses.Get(seq), &r); err != nil {
				return fmt.Errorf("decode expense: %w", err)
			}
			result = r.expense()
			return nil
		}

		n, err := expenses.NextSequence()
		if err != nil {
			return err
		}
		seq := itob(n)

		e := in.Build(s.now())
		data, err := json.Marshal(toRecord(e))
		if err != nil {
			return err
		}
		if err := expenses.Put(seq, data); err != nil {
			return err
		}
		if err := keys.Put([]byte(e.IdempotencyKey), seq); err != nil {
			return err
		}
		result, created = e, true
		return nil
	})
	if err != nil {
		return core.Expense{}, false, fmt.Errorf("create expense: %w: %w", ports.ErrStorageUnavailable, err)
	}
	return result, created, nil
}

func (s *Store) Query(ctx context.Context, q core.Query) ([]core.Expense, error) {
	if err := ctx.Err(); err != nil {
		return nil, fmt.Errorf("%w: %w", ports.ErrStorageUnavailable, err)
	}

	items := make([]core.Expense, 0)
	err := s.db.View(func(tx *bolt.Tx) error {
		return tx.Bucket(expensesBucket).ForEach(func(_, v []byte) error {
			var r record
			if err := json.Unmarshal(v, &r); err != nil {
				return fmt.Errorf("decode expense: %w", err)
			}
			if e := r.expense(); q.Matches(e) {
				items = append(items, e)
			}
			return nil
		})
	})
	if err != nil {
		return nil, fmt.Errorf("query expenses: %w: %w", ports.ErrStorageUnavailable, err)
	}

	core.SortExpenses(items, q.Sort)
	return items, nil
}

func itob(v uint64) []byte {
	b := make([]byte, 8)
	binary.BigEndian.PutUint64(b, v)
	return b
}
