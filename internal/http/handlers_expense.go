package http

import (
	"errors"
	"net/http"
	"strconv"

	"spendlog/internal/core"
)

func (s *Server) handleIndex(w http.ResponseWriter, r *http.Request) {
	expenses, err := s.expenses.List(r.Context())
	if err != nil {
		s.serverError(w, r, "List expenses failed", err)
		return
	}
	s.render(w, r, pageIndex, http.StatusOK, indexPage{Expenses: expenses})
}

func (s *Server) handleAddForm(w http.ResponseWriter, r *http.Request) {
	s.render(w, r, pageAdd, http.StatusOK, addForm(core.ExpenseInput{}, ""))
}

func (s *Server) handleAddExpense(w http.ResponseWriter, r *http.Request) {
	in, resp := parseExpenseForm(w, r)
	if resp != nil {
		resp.Write(w)
		return
	}

	_, err := s.expenses.CreateExpense(r.Context(), in)
	switch {
	case errors.Is(err, core.ErrInvalidAmount):
		s.render(w, r, pageAdd, http.StatusOK, addForm(in, invalidAmountMessage))
	case err != nil:
		s.serverError(w, r, "Failed to save expense", err)
	default:
		Redirect("/").Write(w)
	}
}

func (s *Server) handleEditForm(w http.ResponseWriter, r *http.Request) {
	id, ok := parseID(r)
	if !ok {
		notFound(w)
		return
	}

	e, err := s.expenses.Get(r.Context(), id)
	switch {
	case errors.Is(err, core.ErrNotFound):
		notFound(w)
	case err != nil:
		s.serverError(w, r, "Failed to load expense", err)
	default:
		s.render(w, r, pageEdit, http.StatusOK, editForm(id, e.Input(), ""))
	}
}

// handleEditExpense reports an unknown id before looking at the body, so
// a missing expense is a 404 whatever was submitted.
func (s *Server) handleEditExpense(w http.ResponseWriter, r *http.Request) {
	id, ok := parseID(r)
	if !ok {
		notFound(w)
		return
	}

	if _, err := s.expenses.Get(r.Context(), id); err != nil {
		if errors.Is(err, core.ErrNotFound) {
			notFound(w)
		} else {
			s.serverError(w, r, "Failed to load expense", err)
		}
		return
	}

	in, resp := parseExpenseForm(w, r)
	if resp != nil {
		resp.Write(w)
		return
	}

	_, err := s.expenses.UpdateExpense(r.Context(), id, in)
	switch {
	case errors.Is(err, core.ErrNotFound):
		notFound(w)
	case errors.Is(err, core.ErrInvalidAmount):
		s.render(w, r, pageEdit, http.StatusOK, editForm(id, in, invalidAmountMessage))
	case err != nil:
		s.serverError(w, r, "Failed to update expense", err)
	default:
		Redirect("/").Write(w)
	}
}

func (s *Server) handleDeleteExpense(w http.ResponseWriter, r *http.Request) {
	id, ok := parseID(r)
	if !ok {
		notFound(w)
		return
	}

	err := s.expenses.DeleteExpense(r.Context(), id)
	switch {
	case errors.Is(err, core.ErrNotFound):
		notFound(w)
	case err != nil:
		s.serverError(w, r, "Failed to delete expense", err)
	default:
		Redirect("/").Write(w)
	}
}

func (s *Server) handleSummary(w http.ResponseWriter, r *http.Request) {
	sum, err := s.expenses.Summary(r.Context())
	if err != nil {
		s.serverError(w, r, "Failed to compute summary", err)
		return
	}
	s.render(w, r, pageSummary, http.StatusOK, summaryPage{Summary: sum})
}

func addForm(in core.ExpenseInput, errMsg string) formPage {
	return formPage{Action: "/add", Submit: "Add Expense", Error: errMsg, Form: in}
}

func editForm(id int64, in core.ExpenseInput, errMsg string) formPage {
	return formPage{
		Action: "/edit/" + strconv.FormatInt(id, 10),
		Submit: "Save Changes",
		Error:  errMsg,
		Form:   in,
	}
}
