package http

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime"
	"net/http"
	"strings"

	"expenses/internal/core"
)

const (
	// IdempotencyKeyHeader supplies the key when the body does not carry one.
	IdempotencyKeyHeader = "Idempotency-Key"

	maxBodyBytes = 64 << 10
)

var errMalformedBody = fmt.Errorf("%w: malformed request body", core.ErrInvalidInput)

// createExpenseRequest is the POST /expenses body. Amount keeps its literal
// text so that 0.1 is never routed through a float.
type createExpenseRequest struct {
	IdempotencyKey string          `json:"idempotencyKey"`
	Amount         json.RawMessage `json:"amount"`
	Category       string          `json:"category"`
	Description    *string         `json:"description"`
	Date           string          `json:"date"`
}

// amountText returns the literal amount: the number token as written or the string contents.
func (req createExpenseRequest) amountText() (string, error) {
	raw := bytes.TrimSpace(req.Amount)
	if len(raw) == 0 || bytes.Equal(raw, []byte("null")) {
		return "", core.ErrInvalidAmount
	}
	if raw[0] == '"' {
		var s string
		if err := json.Unmarshal(raw, &s); err != nil {
			return "", core.ErrInvalidAmount
		}
		return s, nil
	}
	if raw[0] == '-' || (raw[0] >= '0' && raw[0] <= '9') {
		return string(raw), nil
	}
	return "", core.ErrInvalidAmount
}

// toNewExpense converts the amount to minor units. Remaining field checks
// happen in the store so every backend applies the same rules.
func (req createExpenseRequest) toNewExpense() (core.NewExpense, error) {
	text, err := req.amountText()
	if err != nil {
		return core.NewExpense{}, err
	}
	minor, err := core.ToMinorUnits(text)
	if err != nil {
		return core.NewExpense{}, err
	}
	n := core.NewExpense{
		IdempotencyKey:   req.IdempotencyKey,
		AmountMinorUnits: minor,
		Category:         req.Category,
		Date:             req.Date,
	}
	if req.Description != nil {
		n.Description = *req.Description
	}
	return n, nil
}

// parseCreateExpense reads a JSON or form encoded body. The Idempotency-Key
// header fills in a key the body omits.
func parseCreateExpense(w http.ResponseWriter, r *http.Request) (core.NewExpense, error) {
	r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)

	var req createExpenseRequest
	var err error
	if isFormContent(r.Header.Get("Content-Type")) {
		req, err = decodeForm(r)
	} else {
		req, err = decodeJSON(r.Body)
	}
	if err != nil {
		return core.NewExpense{}, err
	}

	if strings.TrimSpace(req.IdempotencyKey) == "" {
		req.IdempotencyKey = r.Header.Get(IdempotencyKeyHeader)
	}
	return req.toNewExpense()
}

func isFormContent(contentType string) bool {
	mt, _, err := mime.ParseMediaType(contentType)
	if err != nil {
		return false
	}
	return mt == "application/x-www-form-urlencoded" || mt == "multipart/form-data"
}

func decodeJSON(body io.Reader) (createExpenseRequest, error) {
	var req createExpenseRequest
	dec := json.NewDecoder(body)
	if err := dec.Decode(&req); err != nil {
		var maxErr *http.MaxBytesError
		if errors.As(err, &maxErr) {
			return req, fmt.Errorf("%w: body exceeds %d bytes", core.ErrInvalidInput, maxErr.Limit)
		}
		return req, errMalformedBody
	}
	if dec.More() {
		return req, errMalformedBody
	}
	return req, nil
}

func decodeForm(r *http.Request) (createExpenseRequest, error) {
	if err := r.ParseMultipartForm(maxBodyBytes); err != nil && !errors.Is(err, http.ErrNotMultipart) {
		return createExpenseRequest{}, errMalformedBody
	}
	req := createExpenseRequest{
		IdempotencyKey: r.PostFormValue("idempotencyKey"),
		Category:       r.PostFormValue("category"),
		Date:           r.PostFormValue("date"),
	}
	if amount := r.PostFormValue("amount"); amount != "" {
		quoted, _ := json.Marshal(amount)
		req.Amount = quoted
	}
	if r.PostForm.Has("description") {
		d := r.PostFormValue("description")
		req.Description = &d
	}
	return req, nil
}
