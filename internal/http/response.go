package http

import (
	"encoding/json"
	"net/http"

	"expenses/internal/core"
)

// ReplayedHeader is set to "true" when POST /expenses returned an existing record.
const ReplayedHeader = "Idempotent-Replayed"

type expenseResponse struct {
	ID             string  `json:"id"`
	IdempotencyKey string  `json:"idempotency_key"`
	AmountPaise    int64   `json:"amount_paise"`
	Amount         string  `json:"amount"`
	Category       string  `json:"category"`
	Description    *string `json:"description"`
	Date           string  `json:"date"`
	CreatedAt      string  `json:"created_at"`
}

type summaryResponse struct {
	Count      int    `json:"count"`
	TotalPaise int64  `json:"total_paise"`
	Total      string `json:"total"`
}

type errorResponse struct {
	Error string `json:"error"`
}

func toExpenseResponse(e core.Expense) expenseResponse {
	resp := expenseResponse{
		ID:             e.ID,
		IdempotencyKey: e.IdempotencyKey,
		AmountPaise:    e.AmountMinorUnits,
		Amount:         e.Display(),
		Category:       e.Category,
		Date:           e.Date,
		CreatedAt:      e.CreatedAt,
	}
	if e.Description != "" {
		d := e.Description
		resp.Description = &d
	}
	return resp
}

func toExpenseResponses(items []core.Expense) []expenseResponse {
	out := make([]expenseResponse, 0, len(items))
	for _, e := range items {
		out = append(out, toExpenseResponse(e))
	}
	return out
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, errorResponse{Error: msg})
}
