package http

import (
	"bytes"
	"fmt"
	"html/template"
	"io/fs"
	"net/http"

	"spendlog/internal/core"
	applog "spendlog/internal/log"
)

// Page templates. Each is parsed together with the shared layout and form.
const (
	pageIndex   = "index.html"
	pageAdd     = "add_expense.html"
	pageEdit    = "edit_expense.html"
	pageSummary = "summary.html"
	pageError   = "error.html"
)

var sharedTemplates = []string{"templates/layout.html", "templates/expense_form.html"}

var templateFuncs = template.FuncMap{
	"money": core.FormatAmount,
}

type (
	indexPage struct {
		Expenses []core.Expense
	}

	formPage struct {
		Action string
		Submit string
		Error  string
		Form   core.ExpenseInput
	}

	summaryPage struct {
		Summary core.Summary
	}

	errorPage struct {
		Message string
	}
)

const invalidAmountMessage = "Amount must be a positive number."

// loadTemplates parses every page into its own set so each can define
// "title" and "content" independently.
func loadTemplates(fsys fs.FS) (map[string]*template.Template, error) {
	pages := []string{pageIndex, pageAdd, pageEdit, pageSummary, pageError}
	out := make(map[string]*template.Template, len(pages))
	for _, page := range pages {
		patterns := append(append([]string{}, sharedTemplates...), "templates/"+page)
		t, err := template.New(page).Funcs(templateFuncs).ParseFS(fsys, patterns...)
		if err != nil {
			return nil, fmt.Errorf("parse template %s: %w", page, err)
		}
		out[page] = t
	}
	return out, nil
}

// render executes page into a buffer first so a template failure never
// leaves a half-written 200 response.
func (s *Server) render(w http.ResponseWriter, r *http.Request, page string, status int, data any) {
	t, ok := s.templates[page]
	if !ok {
		applog.FromContext(r.Context()).ErrorContext(r.Context(), "Templates not loaded",
			applog.FieldPath, r.URL.Path, "template", page)
		InternalServerError("Internal server error").Write(w)
		return
	}

	var buf bytes.Buffer
	if err := t.ExecuteTemplate(&buf, "layout", data); err != nil {
		applog.FromContext(r.Context()).ErrorContext(r.Context(), "Template execution failed",
			applog.FieldError, err,
			applog.FieldOperation, applog.OpRender,
			"template", page)
		InternalServerError("Internal server error").Write(w)
		return
	}

	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.WriteHeader(status)
	_, _ = buf.WriteTo(w)
}

// serverError logs err and renders the generic error page with status 500.
func (s *Server) serverError(w http.ResponseWriter, r *http.Request, msg string, err error) {
	applog.FromContext(r.Context()).ErrorContext(r.Context(), msg, applog.FieldError, err)
	s.render(w, r, pageError, http.StatusInternalServerError, errorPage{Message: "Something went wrong. Please try again."})
}

func notFound(w http.ResponseWriter) {
	NotFoundError("Expense not found").Write(w)
}
