package http

import (
	"context"
	"html/template"
	"io/fs"
	"net/http"
	"time"

	applog "spendlog/internal/log"
	"spendlog/internal/metrics"
	"spendlog/internal/middleware/recovery"
	"spendlog/internal/middleware/security"
	"spendlog/internal/middleware/trace"
	"spendlog/internal/services"
	appweb "spendlog/web"
)

const (
	readyTimeout   = 2 * time.Second
	staticMaxAge   = 3600
	defaultTimeout = 10 * time.Second
)

// Options tunes the server. Zero values fall back to sensible defaults.
type Options struct {
	ReadTimeout    time.Duration
	WriteTimeout   time.Duration
	IdleTimeout    time.Duration
	MaxHeaderBytes int

	Logger  *applog.Logger
	Metrics *metrics.Metrics

	// TemplatesFS and StaticFS override the embedded web assets.
	TemplatesFS fs.FS
	StaticFS    fs.FS
}

type Server struct {
	http.Server
	templates map[string]*template.Template
	expenses  *services.ExpenseService
	metrics   *metrics.Metrics
	logger    *applog.Logger
}

// NewServer configures routes and templates, returning a ready-to-run http.Server.
func NewServer(addr string, expenses *services.ExpenseService, opts Options) *Server {
	logger := opts.Logger
	if logger == nil {
		logger = applog.Discard()
	}
	logger = logger.WithComponent(applog.ComponentHTTP)

	mux := http.NewServeMux()
	s := &Server{
		Server: http.Server{
			Addr:              addr,
			ReadTimeout:       orDefault(opts.ReadTimeout, defaultTimeout),
			ReadHeaderTimeout: orDefault(opts.ReadTimeout, defaultTimeout),
			WriteTimeout:      orDefault(opts.WriteTimeout, defaultTimeout),
			IdleTimeout:       orDefault(opts.IdleTimeout, 6*defaultTimeout),
			MaxHeaderBytes:    opts.MaxHeaderBytes,
		},
		expenses: expenses,
		metrics:  opts.Metrics,
		logger:   logger,
	}

	// Parse embedded templates at startup.
	templatesFS := opts.TemplatesFS
	if templatesFS == nil {
		templatesFS = appweb.TemplatesFS
	}
	t, err := loadTemplates(templatesFS)
	if err != nil {
		logger.Error("Failed parsing templates", applog.FieldError, err)
	}
	s.templates = t

	// Static assets (served from embedded FS)
	staticFS := opts.StaticFS
	if staticFS == nil {
		if sub, err := fs.Sub(appweb.StaticFS, "static"); err == nil {
			staticFS = sub
		} else {
			logger.Warn("Failed to mount embedded static FS", applog.FieldError, err)
		}
	}
	if staticFS != nil {
		static := http.StripPrefix("/static/", http.FileServer(http.FS(staticFS)))
		mux.Handle("GET /static/", security.StaticAssetMiddleware(staticMaxAge)(static))
	}

	mux.Handle("GET /{$}", s.page("index", s.handleIndex))
	mux.Handle("GET /add", s.page("add", s.handleAddForm))
	mux.Handle("POST /add", s.page("add", s.handleAddExpense))
	mux.Handle("GET /edit/{id}", s.page("edit", s.handleEditForm))
	mux.Handle("POST /edit/{id}", s.page("edit", s.handleEditExpense))
	mux.Handle("POST /delete/{id}", s.page("delete", s.handleDeleteExpense))
	mux.Handle("GET /summary", s.page("summary", s.handleSummary))

	mux.HandleFunc("GET /healthz", handleHealth)
	mux.HandleFunc("GET /readyz", s.handleReady)
	if s.metrics != nil {
		mux.Handle("GET /metrics", s.metrics.Handler())
	}

	headers := security.NewHeadersMiddleware(security.DefaultHeadersConfig())
	tracer := trace.NewMiddleware(logger, security.ClientIP)
	s.Handler = tracer.Middleware(recovery.Middleware(headers.Middleware(mux)))

	return s
}

// page wraps a dynamic page handler with metrics and no-store caching.
func (s *Server) page(name string, h http.HandlerFunc) http.Handler {
	return s.metrics.Middleware(name, security.NoStore(h))
}

// Shutdown gracefully drains in-flight requests.
func (s *Server) Shutdown(ctx context.Context) error {
	s.logger.InfoContext(ctx, "HTTP server shutting down", applog.FieldOperation, applog.OpShutdown)
	return s.Server.Shutdown(ctx)
}

func handleHealth(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("ok"))
}

func (s *Server) handleReady(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), readyTimeout)
	defer cancel()

	if err := s.expenses.Ping(ctx); err != nil {
		applog.FromContext(r.Context()).WarnContext(r.Context(), "Readiness check failed", applog.FieldError, err)
		ServiceUnavailable("not ready").Write(w)
		return
	}
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("ready"))
}

func orDefault(d, def time.Duration) time.Duration {
	if d <= 0 {
		return def
	}
	return d
}
