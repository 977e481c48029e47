// Package http provides HTTP server and handler implementations.
//
// This file implements utilities for parsing request data: the expense
// form fields and the numeric id path segment.

package http

import (
	"net/http"
	"strconv"
	"strings"

	"spendlog/internal/core"
)

// maxFormBytes bounds the size of a submitted expense form.
const maxFormBytes = 64 << 10

// Form field names shared by the add and edit forms.
const (
	fieldDescription = "description"
	fieldAmount      = "amount"
	fieldCategory    = "category"
	fieldDate        = "date"
)

// ParseFormOrFail parses the request form and returns an error response on failure.
// Returns nil on success.
func ParseFormOrFail(w http.ResponseWriter, r *http.Request) *ResponseBuilder {
	r.Body = http.MaxBytesReader(w, r.Body, maxFormBytes)
	if err := r.ParseForm(); err != nil {
		return BadRequestError("Invalid form submission")
	}
	return nil
}

// parseExpenseForm reads the four expense fields from the POST body.
// Missing fields read as empty strings; only the amount is validated later.
func parseExpenseForm(w http.ResponseWriter, r *http.Request) (core.ExpenseInput, *ResponseBuilder) {
	if resp := ParseFormOrFail(w, r); resp != nil {
		return core.ExpenseInput{}, resp
	}
	return core.ExpenseInput{
		Description: r.PostForm.Get(fieldDescription),
		Amount:      strings.TrimSpace(r.PostForm.Get(fieldAmount)),
		Category:    r.PostForm.Get(fieldCategory),
		Date:        r.PostForm.Get(fieldDate),
	}, nil
}

// parseID extracts the {id} path value. Anything that is not a positive
// integer cannot name an expense.
func parseID(r *http.Request) (int64, bool) {
	id, err := strconv.ParseInt(r.PathValue("id"), 10, 64)
	if err != nil || id <= 0 {
		return 0, false
	}
	return id, true
}
