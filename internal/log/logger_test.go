package log

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseLevel(t *testing.T) {
	cases := map[string]slog.Level{
		"debug": slog.LevelDebug,
		"INFO":  slog.LevelInfo,
		"":      slog.LevelInfo,
		"warn":  slog.LevelWarn,
		"error": slog.LevelError,
	}
	for in, want := range cases {
		got, err := ParseLevel(in)
		require.NoError(t, err, in)
		assert.Equal(t, want, got, in)
	}
	_, err := ParseLevel("loud")
	assert.Error(t, err)
}

func TestJSONLoggerTagsComponent(t *testing.T) {
	var buf bytes.Buffer
	l := New(Config{Level: slog.LevelDebug, Format: "json", Component: ComponentStorage, Output: &buf})

	l.With("k", "v").Info("hello", "n", 1)

	var rec map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &rec))
	assert.Equal(t, "hello", rec["msg"])
	assert.Equal(t, ComponentStorage, rec[FieldComponent])
	assert.Equal(t, "v", rec["k"])
}

func TestLevelFiltersDebug(t *testing.T) {
	var buf bytes.Buffer
	l := New(Config{Level: slog.LevelInfo, Output: &buf})
	l.Debug("hidden")
	assert.Zero(t, buf.Len())
}

func TestStructuredLoggerLevels(t *testing.T) {
	var buf bytes.Buffer
	sl := NewStructuredLogger(New(Config{Format: "json", Output: &buf}))
	r := httptest.NewRequest("GET", "/expenses?sort=date_desc", nil)

	sl.LogHTTPEnd(context.Background(), r, 500, 3, "10.0.0.1")

	var rec map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &rec))
	assert.Equal(t, "ERROR", rec["level"])
	assert.Equal(t, "/expenses", rec[FieldPath])
	assert.Equal(t, false, rec[FieldSuccess])
}

func TestFromContextFallsBack(t *testing.T) {
	l := FromContext(context.Background())
	assert.Equal(t, "unknown", l.Component())

	own := Discard()
	assert.Same(t, own, FromContext(NewContext(context.Background(), own)))
}

func TestFieldsToSliceIsSorted(t *testing.T) {
	got := NewFields().WithOperation(OpCreate).WithError(errors.New("boom")).WithComponent("x").ToSlice()
	assert.Equal(t, []any{FieldComponent, "x", FieldError, "boom", FieldOperation, OpCreate}, got)
}
