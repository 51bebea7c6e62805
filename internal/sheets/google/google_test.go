package google

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/oauth2"
	goption "google.golang.org/api/option"
	gsheet "google.golang.org/api/sheets/v4"

	"expenses/internal/core"
)

type fakeSheets struct {
	mu       sync.Mutex
	appended [][]any
	paths    []string
	queries  []string
	ids      [][]any
}

func (f *fakeSheets) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.paths = append(f.paths, r.URL.Path)
	f.queries = append(f.queries, r.URL.RawQuery)

	w.Header().Set("Content-Type", "application/json")
	switch {
	case r.Method == http.MethodPost && strings.HasSuffix(r.URL.Path, ":append"):
		var vr gsheet.ValueRange
		if err := json.NewDecoder(r.Body).Decode(&vr); err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
		f.appended = append(f.appended, vr.Values...)
		_ = json.NewEncoder(w).Encode(gsheet.AppendValuesResponse{
			Updates: &gsheet.UpdateValuesResponse{UpdatedRange: "Expenses!A2:G2"},
		})
	case r.Method == http.MethodGet:
		_ = json.NewEncoder(w).Encode(gsheet.ValueRange{Values: f.ids})
	default:
		http.NotFound(w, r)
	}
}

func newTestClient(t *testing.T, fake *fakeSheets) *Client {
	t.Helper()
	srv := httptest.NewServer(fake)
	t.Cleanup(srv.Close)

	c, err := New(context.Background(), Config{SpreadsheetID: "sheet-123", SheetName: "Expenses"},
		goption.WithEndpoint(srv.URL+"/"),
		goption.WithoutAuthentication(),
		goption.WithHTTPClient(srv.Client()),
	)
	require.NoError(t, err)
	return c
}

func TestNewRequiresSpreadsheetID(t *testing.T) {
	_, err := New(context.Background(), Config{})
	assert.EqualError(t, err, "missing GOOGLE_SPREADSHEET_ID")
}

func clearCredentialEnv(t *testing.T) {
	t.Helper()
	for _, k := range []string{
		"GOOGLE_SERVICE_ACCOUNT_JSON", "GOOGLE_SERVICE_ACCOUNT_FILE", "GOOGLE_APPLICATION_CREDENTIALS",
		"GOOGLE_OAUTH_CLIENT_JSON", "GOOGLE_OAUTH_CLIENT_FILE", "GOOGLE_OAUTH_TOKEN_JSON", "GOOGLE_OAUTH_TOKEN_FILE",
	} {
		t.Setenv(k, "")
	}
}

const testOAuthClient = `{"installed":{"client_id":"test","client_secret":"test","redirect_uris":["http://localhost"],"auth_uri":"https://accounts.google.com/o/oauth2/auth","token_uri":"https://oauth2.googleapis.com/token"}}`

func TestNewRequiresCredentials(t *testing.T) {
	clearCredentialEnv(t)

	_, err := New(context.Background(), Config{SpreadsheetID: "x"})
	assert.ErrorIs(t, err, ErrMissingCredentials)
}

func TestNewOAuthRequiresToken(t *testing.T) {
	clearCredentialEnv(t)
	t.Setenv("GOOGLE_OAUTH_CLIENT_JSON", testOAuthClient)

	_, err := New(context.Background(), Config{SpreadsheetID: "x"})
	assert.ErrorIs(t, err, ErrMissingOAuthToken)
}

func TestNewWithOAuthTokenFile(t *testing.T) {
	clearCredentialEnv(t)
	t.Setenv("GOOGLE_OAUTH_CLIENT_JSON", testOAuthClient)

	path := filepath.Join(t.TempDir(), "token.json")
	require.NoError(t, SaveToken(path, &oauth2.Token{AccessToken: "a", RefreshToken: "r", TokenType: "Bearer"}))
	t.Setenv("GOOGLE_OAUTH_TOKEN_FILE", path)

	c, err := New(context.Background(), Config{SpreadsheetID: "x"})
	require.NoError(t, err)
	assert.Equal(t, "Expenses", c.sheetName)

	tok, err := oauthTokenFromEnv()
	require.NoError(t, err)
	assert.Equal(t, "r", tok.RefreshToken)
}

func TestServiceAccountFileMissing(t *testing.T) {
	clearCredentialEnv(t)
	t.Setenv("GOOGLE_SERVICE_ACCOUNT_FILE", filepath.Join(t.TempDir(), "absent.json"))

	_, err := New(context.Background(), Config{SpreadsheetID: "x"})
	assert.ErrorContains(t, err, "read service account file")
}

func TestAppendExpense(t *testing.T) {
	fake := &fakeSheets{}
	c := newTestClient(t, fake)

	ref, err := c.AppendExpense(context.Background(), core.Expense{
		ID:               "id-1",
		IdempotencyKey:   "k1",
		AmountMinorUnits: 1000,
		Category:         "Food",
		Date:             "2026-02-01",
		CreatedAt:        "2026-02-01T10:00:00.000Z",
	})
	require.NoError(t, err)
	assert.Equal(t, "Expenses!A2:G2", ref)

	require.Len(t, fake.appended, 1)
	row := fake.appended[0]
	assert.Equal(t, "id-1", row[0])
	assert.Equal(t, "10.00", row[4])
	assert.Contains(t, fake.paths[0], "/v4/spreadsheets/sheet-123/values/")
	assert.Contains(t, fake.queries[0], "valueInputOption=USER_ENTERED")
	assert.Contains(t, fake.queries[0], "insertDataOption=INSERT_ROWS")
}

func TestAppendExpenseRequiresID(t *testing.T) {
	c := newTestClient(t, &fakeSheets{})
	_, err := c.AppendExpense(context.Background(), core.Expense{})
	assert.Error(t, err)
}

func TestListMirroredIDs(t *testing.T) {
	tests := []struct {
		name string
		rows [][]any
		want []string
	}{
		{
			name: "with header row",
			rows: [][]any{{"ID"}, {"id-1"}, {}, {" id-2 "}, {""}},
			want: []string{"id-1", "id-2"},
		},
		{
			name: "first expense in row one",
			rows: [][]any{{"id-1"}, {"id-2"}},
			want: []string{"id-1", "id-2"},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			fake := &fakeSheets{ids: tt.rows}
			c := newTestClient(t, fake)

			ids, err := c.ListMirroredIDs(context.Background())
			require.NoError(t, err)
			assert.Equal(t, tt.want, ids)
			assert.Contains(t, fake.paths[0], "A:A")
		})
	}
}

func TestAppendExpenseQuotesFormulaText(t *testing.T) {
	fake := &fakeSheets{}
	c := newTestClient(t, fake)

	_, err := c.AppendExpense(context.Background(), core.Expense{
		ID:               "id-1",
		IdempotencyKey:   "k1",
		AmountMinorUnits: 100,
		Category:         "=1+1",
		Date:             "2026-02-01",
	})
	require.NoError(t, err)

	require.Len(t, fake.appended, 1)
	assert.Equal(t, "'=1+1", fake.appended[0][2])
}
