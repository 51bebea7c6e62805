package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"expenses/internal/core"
	"expenses/internal/ports"

	_ "modernc.org/sqlite"
)

const (
	insertExpenseSQL = `INSERT INTO expenses
    (id, idempotency_key, amount_paise, category, description, date, created_at)
VALUES (?, ?, ?, ?, ?, ?, ?)
ON CONFLICT(idempotency_key) DO NOTHING`

	selectColumns = `SELECT id, idempotency_key, amount_paise, category, description, date, created_at FROM expenses`

	selectByKeySQL = selectColumns + ` WHERE idempotency_key = ?`
)

// SQLiteRepository is the SQLite implementation of ports.ExpenseStore.
type SQLiteRepository struct {
	db  *sql.DB
	now func() time.Time
}

var (
	_ ports.ExpenseStore = (*SQLiteRepository)(nil)
	_ ports.Pinger       = (*SQLiteRepository)(nil)
)

func NewSQLiteRepository(dbPath string) (*SQLiteRepository, error) {
	if err := os.MkdirAll(filepath.Dir(dbPath), 0755); err != nil {
		return nil, fmt.Errorf("create db directory: %w", err)
	}

	db, err := sql.Open("sqlite", dsn(dbPath))
	if err != nil {
		return nil, fmt.Errorf("open sqlite database: %w", err)
	}

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}

	if err := RunMigrations(dbPath); err != nil {
		db.Close()
		return nil, fmt.Errorf("run migrations: %w", err)
	}

	slog.Info("SQLite expense store ready", "path", dbPath)

	return &SQLiteRepository{db: db, now: time.Now}, nil
}

func (r *SQLiteRepository) Close() error {
	if r.db != nil {
		return r.db.Close()
	}
	return nil
}

func (r *SQLiteRepository) Ping(ctx context.Context) error {
	if err := r.db.PingContext(ctx); err != nil {
		return fmt.Errorf("%w: %w", ports.ErrStorageUnavailable, err)
	}
	return nil
}

// CreateIdempotent inserts the expense unless its idempotency key is already taken.
// The UNIQUE constraint decides; a no-op insert means the key exists and the stored
// row is returned instead.
func (r *SQLiteRepository) CreateIdempotent(ctx context.Context, in core.NewExpense) (core.Expense, bool, error) {
	if err := in.Validate(); err != nil {
		return core.Expense{}, false, err
	}

	e := in.Build(r.now())
	res, err := r.db.ExecContext(ctx, insertExpenseSQL,
		e.ID, e.IdempotencyKey, e.AmountMinorUnits, e.Category,
		nullString(e.Description), e.Date, e.CreatedAt)
	if err != nil {
		return core.Expense{}, false, fmt.Errorf("insert expense: %w: %w", ports.ErrStorageUnavailable, err)
	}

	n, err := res.RowsAffected()
	if err != nil {
		return core.Expense{}, false, fmt.Errorf("rows affected: %w: %w", ports.ErrStorageUnavailable, err)
	}
	if n == 1 {
		slog.DebugContext(ctx, "Expense inserted",
			"id", e.ID,
			"idempotency_key", e.IdempotencyKey,
			"amount_paise", e.AmountMinorUnits)
		return e, true, nil
	}

	existing, err := scanExpense(r.db.QueryRowContext(ctx, selectByKeySQL, in.IdempotencyKey))
	if err != nil {
		return core.Expense{}, false, fmt.Errorf("read existing expense: %w: %w", ports.ErrStorageUnavailable, err)
	}
	return existing, false, nil
}

// Query returns the filtered view ordered by date with rowid as the tie-break.
func (r *SQLiteRepository) Query(ctx context.Context, q core.Query) ([]core.Expense, error) {
	stmt := selectColumns
	var args []any
	if q.Category != "" {
		stmt += ` WHERE category = ?`
		args = append(args, q.Category)
	}
	stmt += orderBy(q.Sort)

	rows, err := r.db.QueryContext(ctx, stmt, args...)
	if err != nil {
		return nil, fmt.Errorf("query expenses: %w: %w", ports.ErrStorageUnavailable, err)
	}
	defer rows.Close()

	out := make([]core.Expense, 0)
	for rows.Next() {
		e, err := scanExpense(rows)
		if err != nil {
			return nil, fmt.Errorf("scan expense: %w: %w", ports.ErrStorageUnavailable, err)
		}
		out = append(out, e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate expenses: %w: %w", ports.ErrStorageUnavailable, err)
	}
	return out, nil
}

func orderBy(s core.SortOrder) string {
	switch s {
	case core.SortDateDesc:
		return ` ORDER BY date DESC, rowid ASC`
	case core.SortDateAsc:
		return ` ORDER BY date ASC, rowid ASC`
	default:
		return ` ORDER BY rowid ASC`
	}
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanExpense(s rowScanner) (core.Expense, error) {
	var (
		e    core.Expense
		desc sql.NullString
	)
	err := s.Scan(&e.ID, &e.IdempotencyKey, &e.AmountMinorUnits, &e.Category, &desc, &e.Date, &e.CreatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return core.Expense{}, fmt.Errorf("expense vanished after conflict: %w", err)
	}
	if err != nil {
		return core.Expense{}, err
	}
	e.Description = desc.String
	return e, nil
}

func nullString(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}
