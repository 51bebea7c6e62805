package sheets

import (
	"testing"

	"expenses/internal/core"
)

func TestRowMatchesHeader(t *testing.T) {
	e := core.Expense{
		ID:               "id-1",
		IdempotencyKey:   "k1",
		AmountMinorUnits: 1205,
		Category:         "Food",
		Description:      "lunch",
		Date:             "2026-02-01",
		CreatedAt:        "2026-02-01T10:00:00.000Z",
	}
	row := Row(e)
	if len(row) != len(Header) {
		t.Fatalf("row has %d cells, header has %d", len(row), len(Header))
	}
	if row[0] != "id-1" || row[4] != "12.05" || row[6] != "k1" {
		t.Fatalf("unexpected row %v", row)
	}
}

func TestRowQuotesFormulaText(t *testing.T) {
	e := core.Expense{
		ID:               "id-1",
		IdempotencyKey:   "@key",
		AmountMinorUnits: 100,
		Category:         "=1+1",
		Description:      `=HYPERLINK("http://example.com")`,
		Date:             "2026-02-01",
	}
	row := Row(e)
	if row[2] != "'=1+1" {
		t.Errorf("category not quoted: %v", row[2])
	}
	if row[3] != `'=HYPERLINK("http://example.com")` {
		t.Errorf("description not quoted: %v", row[3])
	}
	if row[6] != "'@key" {
		t.Errorf("idempotency key not quoted: %v", row[6])
	}
	if row[4] != "1.00" {
		t.Errorf("amount must stay numeric text, got %v", row[4])
	}
}

func TestText(t *testing.T) {
	tests := []struct {
		in, want string
	}{
		{"", ""},
		{"Food", "Food"},
		{"=SUM(A1)", "'=SUM(A1)"},
		{"+1", "'+1"},
		{"-5", "'-5"},
		{"@import", "'@import"},
		{"'quoted", "''quoted"},
		{"a=b", "a=b"},
	}
	for _, tt := range tests {
		if got := Text(tt.in); got != tt.want {
			t.Errorf("Text(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}
