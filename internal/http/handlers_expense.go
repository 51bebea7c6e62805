package http

import (
	"errors"
	"net/http"

	"expenses/internal/core"
	applog "expenses/internal/log"
)

func (s *Server) handleCreateExpense(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	in, err := parseCreateExpense(w, r)
	if err != nil {
		s.badRequest(w, r, err)
		return
	}

	e, isNew, err := s.svc.Create(ctx, in)
	switch {
	case errors.Is(err, core.ErrInvalidInput):
		s.badRequest(w, r, err)
		return
	case err != nil:
		s.internalError(w, r, "Create expense failed", err, applog.OpCreate)
		return
	}

	if !isNew {
		w.Header().Set(ReplayedHeader, "true")
		writeJSON(w, http.StatusOK, toExpenseResponse(e))
		return
	}
	writeJSON(w, http.StatusCreated, toExpenseResponse(e))
}

func (s *Server) handleListExpenses(w http.ResponseWriter, r *http.Request) {
	q := core.Query{
		Category: r.URL.Query().Get("category"),
		Sort:     core.ParseSortOrder(r.URL.Query().Get("sort")),
	}
	items, err := s.svc.List(r.Context(), q)
	if err != nil {
		s.internalError(w, r, "List expenses failed", err, applog.OpQuery)
		return
	}
	writeJSON(w, http.StatusOK, toExpenseResponses(items))
}

func (s *Server) handleCategories(w http.ResponseWriter, r *http.Request) {
	cats, err := s.svc.Categories(r.Context())
	if err != nil {
		s.internalError(w, r, "List categories failed", err, applog.OpQuery)
		return
	}
	writeJSON(w, http.StatusOK, cats)
}

func (s *Server) handleSummary(w http.ResponseWriter, r *http.Request) {
	sum, err := s.svc.Summary(r.Context(), r.URL.Query().Get("category"))
	if err != nil {
		s.internalError(w, r, "Summarize expenses failed", err, applog.OpQuery)
		return
	}
	writeJSON(w, http.StatusOK, summaryResponse{
		Count:      sum.Count,
		TotalPaise: sum.TotalMinor,
		Total:      core.ToDisplayString(sum.TotalMinor),
	})
}

func (s *Server) badRequest(w http.ResponseWriter, r *http.Request, err error) {
	applog.FromContext(r.Context()).WithComponent(applog.ComponentHTTP).WarnContext(r.Context(), "Rejected request",
		applog.FieldOperation, applog.OpValidate,
		applog.FieldPath, r.URL.Path,
		applog.FieldError, err.Error())
	writeError(w, http.StatusBadRequest, err.Error())
}

// internalError logs err and answers with a generic message; storage details stay in the logs.
func (s *Server) internalError(w http.ResponseWriter, r *http.Request, msg string, err error, op string) {
	applog.NewStructuredLogger(applog.FromContext(r.Context())).
		LogError(r.Context(), msg, err, applog.ComponentHTTP, op, applog.LogFields{applog.FieldPath: r.URL.Path})
	writeError(w, http.StatusInternalServerError, "internal error")
}
