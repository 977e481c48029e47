// Package recovery turns handler panics into 500 responses.
package recovery

import (
	"net/http"
	"runtime/debug"

	applog "spendlog/internal/log"
)

// Middleware recovers from panics, logs them with the request-scoped logger
// and answers with a generic error page.
func Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		defer func() {
			rec := recover()
			if rec == nil {
				return
			}
			if rec == http.ErrAbortHandler {
				panic(rec)
			}

			applog.FromContext(r.Context()).ErrorContext(r.Context(), "Panic recovered",
				applog.FieldError, rec,
				applog.FieldMethod, r.Method,
				applog.FieldPath, r.URL.Path,
				"stack", string(debug.Stack()))

			w.Header().Set("Content-Type", "text/html; charset=utf-8")
			w.WriteHeader(http.StatusInternalServerError)
			_, _ = w.Write([]byte(`<div class="error">Internal server error</div>`))
		}()

		next.ServeHTTP(w, r)
	})
}
