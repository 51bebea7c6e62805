package http

import (
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"expenses/internal/core"
)

func jsonRequest(body string) *http.Request {
	r := httptest.NewRequest(http.MethodPost, "/expenses", strings.NewReader(body))
	r.Header.Set("Content-Type", "application/json")
	return r
}

func TestParseCreateExpenseAmountForms(t *testing.T) {
	tests := []struct {
		name   string
		amount string
		want   int64
		err    error
	}{
		{"number", `12.34`, 1234, nil},
		{"string", `"12.34"`, 1234, nil},
		{"comma string", `"12,34"`, 1234, nil},
		{"no float drift", `0.1`, 10, nil},
		{"integer", `100`, 10000, nil},
		{"half rounds up", `"0.005"`, 1, nil},
		{"zero", `0`, 0, nil},
		{"negative", `-5`, 0, core.ErrInvalidAmount},
		{"exponent", `1e2`, 0, core.ErrInvalidAmount},
		{"null", `null`, 0, core.ErrInvalidAmount},
		{"bool", `true`, 0, core.ErrInvalidAmount},
		{"word", `"abc"`, 0, core.ErrInvalidAmount},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			body := `{"idempotencyKey":"k","amount":` + tt.amount + `,"category":"Food","date":"2026-01-02"}`
			got, err := parseCreateExpense(httptest.NewRecorder(), jsonRequest(body))
			if tt.err != nil {
				require.ErrorIs(t, err, tt.err)
				assert.ErrorIs(t, err, core.ErrInvalidInput)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got.AmountMinorUnits)
		})
	}
}

func TestParseCreateExpenseMissingAmount(t *testing.T) {
	_, err := parseCreateExpense(httptest.NewRecorder(), jsonRequest(`{"idempotencyKey":"k","category":"Food","date":"2026-01-02"}`))
	require.ErrorIs(t, err, core.ErrInvalidAmount)
}

func TestParseCreateExpenseFields(t *testing.T) {
	got, err := parseCreateExpense(httptest.NewRecorder(), jsonRequest(
		`{"idempotencyKey":"abc","amount":"5","category":"Travel","description":"Taxi","date":"2026-03-04"}`))
	require.NoError(t, err)
	assert.Equal(t, core.NewExpense{
		IdempotencyKey:   "abc",
		AmountMinorUnits: 500,
		Category:         "Travel",
		Description:      "Taxi",
		Date:             "2026-03-04",
	}, got)
}

func TestParseCreateExpenseHeaderKey(t *testing.T) {
	r := jsonRequest(`{"amount":1,"category":"Food","date":"2026-01-02"}`)
	r.Header.Set(IdempotencyKeyHeader, "from-header")
	got, err := parseCreateExpense(httptest.NewRecorder(), r)
	require.NoError(t, err)
	assert.Equal(t, "from-header", got.IdempotencyKey)

	r = jsonRequest(`{"idempotencyKey":"from-body","amount":1,"category":"Food","date":"2026-01-02"}`)
	r.Header.Set(IdempotencyKeyHeader, "from-header")
	got, err = parseCreateExpense(httptest.NewRecorder(), r)
	require.NoError(t, err)
	assert.Equal(t, "from-body", got.IdempotencyKey)
}

func TestParseCreateExpenseForm(t *testing.T) {
	form := url.Values{
		"idempotencyKey": {"f1"},
		"amount":         {"7,5"},
		"category":       {"Food"},
		"description":    {"Lunch"},
		"date":           {"2026-01-02"},
	}
	r := httptest.NewRequest(http.MethodPost, "/expenses", strings.NewReader(form.Encode()))
	r.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	got, err := parseCreateExpense(httptest.NewRecorder(), r)
	require.NoError(t, err)
	assert.Equal(t, int64(750), got.AmountMinorUnits)
	assert.Equal(t, "Lunch", got.Description)
	assert.Equal(t, "f1", got.IdempotencyKey)
}

func TestParseCreateExpenseMalformed(t *testing.T) {
	for _, body := range []string{`{`, `{"amount":1}{"amount":2}`, `[1,2]`, strings.Repeat(" ", maxBodyBytes+1) + `{}`} {
		_, err := parseCreateExpense(httptest.NewRecorder(), jsonRequest(body))
		assert.ErrorIs(t, err, core.ErrInvalidInput)
	}
}
