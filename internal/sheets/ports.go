package sheets

import (
	"context"
	"strings"

	"expenses/internal/core"
)

// Ports for the spreadsheet mirror.
type (
	// ExpenseMirror appends one row per expense.
	ExpenseMirror interface {
		AppendExpense(ctx context.Context, e core.Expense) (rowRef string, err error)
	}

	// MirroredIDLister returns the ids already present in the mirror so a
	// restarted worker does not append duplicates.
	MirroredIDLister interface {
		ListMirroredIDs(ctx context.Context) ([]string, error)
	}

	Mirror interface {
		ExpenseMirror
		MirroredIDLister
	}
)

// Header is the first row of the mirror sheet.
var Header = []string{"ID", "Date", "Category", "Description", "Amount", "Created At", "Idempotency Key"}

// Row renders e in Header column order. The amount is a decimal string so the
// sheet parses it as a number without float conversion on our side. Client
// supplied text is passed through Text so it is never evaluated as a formula.
func Row(e core.Expense) []any {
	return []any{
		e.ID,
		e.Date,
		Text(e.Category),
		Text(e.Description),
		core.ToDisplayString(e.AmountMinorUnits),
		e.CreatedAt,
		Text(e.IdempotencyKey),
	}
}

// Text quotes s with a leading apostrophe when a spreadsheet would otherwise
// parse it as a formula. The apostrophe is not part of the displayed value.
func Text(s string) string {
	if s != "" && strings.ContainsRune("=+-@'", rune(s[0])) {
		return "'" + s
	}
	return s
}
