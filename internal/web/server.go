// Package web serves the user console: the listing page, the htmx partials
// behind its filter and pager controls, CSV export and operational
// endpoints.
package web

import (
	"context"
	"embed"
	"fmt"
	"html/template"
	"net/http"
	"time"

	"github.com/Sternrassler/user-console/pkg/client"
	"github.com/Sternrassler/user-console/pkg/listing"
	"github.com/Sternrassler/user-console/pkg/metrics"
	"github.com/Sternrassler/user-console/pkg/pagination"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/rs/zerolog"
)

//go:embed templates/*.html
var templateFS embed.FS

// UserAPI is what the console needs from the user API client.
type UserAPI interface {
	listing.Fetcher
	Ping(ctx context.Context) error
	ListingPages(q client.Query) pagination.PageFetcher
}

// Config holds the server settings.
type Config struct {
	// RequestTimeout bounds each handler, including its API calls.
	RequestTimeout time.Duration

	// ExportPageSize is the per_page used when exporting all pages.
	ExportPageSize int

	// Export tunes the worker pool used by CSV export.
	Export pagination.Config
}

// DefaultConfig returns the default server settings.
func DefaultConfig() Config {
	return Config{
		RequestTimeout: 30 * time.Second,
		ExportPageSize: 50,
		Export:         pagination.DefaultConfig(),
	}
}

// Server is the console HTTP front end.
type Server struct {
	api       UserAPI
	sessions  *Sessions
	templates *template.Template
	config    Config
	logger    zerolog.Logger
}

// NewServer creates a console server on top of api. logger is the base
// logger; the server and each session's controller tag it with their
// component.
func NewServer(api UserAPI, cfg Config, logger zerolog.Logger) (*Server, error) {
	if api == nil {
		return nil, fmt.Errorf("user API client is required")
	}
	if cfg.RequestTimeout <= 0 {
		return nil, fmt.Errorf("request timeout must be > 0 (got %s)", cfg.RequestTimeout)
	}
	if cfg.ExportPageSize <= 0 {
		return nil, fmt.Errorf("export page size must be > 0 (got %d)", cfg.ExportPageSize)
	}

	tmpl, err := template.New("console").
		Funcs(template.FuncMap{"noData": func() string { return listing.NoDataText }}).
		ParseFS(templateFS, "templates/*.html")
	if err != nil {
		return nil, fmt.Errorf("parse templates: %w", err)
	}

	s := &Server{
		api:       api,
		templates: tmpl,
		config:    cfg,
		logger:    logger.With().Str("component", "web").Logger(),
	}
	s.sessions = NewSessions(func(id string) *listing.Controller {
		return listing.New(api, logger.With().Str("component", "listing").Str("session", id).Logger())
	})

	return s, nil
}

// Sessions exposes the session registry.
func (s *Server) Sessions() *Sessions {
	return s.sessions
}

// Router builds the HTTP handler.
func (s *Server) Router() http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(s.requestLogger)
	r.Use(middleware.Recoverer)
	r.Use(middleware.Timeout(s.config.RequestTimeout))

	r.Get("/health", s.handleHealth)
	r.Get("/ready", s.handleReady)
	r.Handle("/metrics", metrics.Handler())

	r.Get("/", s.handleIndex)
	r.Get("/users/table", s.handleTable)
	r.Get("/users/export.csv", s.handleExport)

	r.Post("/filters", s.handleSetFilter)
	r.Post("/filters/clear", s.handleClearFilters)
	r.Post("/page/{n}", s.handleGoToPage)
	r.Post("/retry", s.handleRetry)

	return r
}

// requestLogger logs each request with zerolog and records request metrics
// under the matched route pattern.
func (s *Server) requestLogger(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)

		next.ServeHTTP(ww, r)

		route := "unmatched"
		if rctx := chi.RouteContext(r.Context()); rctx != nil && rctx.RoutePattern() != "" {
			route = rctx.RoutePattern()
		}
		status := ww.Status()
		if status == 0 {
			status = http.StatusOK
		}

		elapsed := time.Since(start)
		httpRequestsTotal.WithLabelValues(route, fmt.Sprint(status)).Inc()
		httpRequestDuration.WithLabelValues(route).Observe(elapsed.Seconds())

		event := s.logger.Debug()
		if status >= http.StatusInternalServerError {
			event = s.logger.Warn()
		}
		event.
			Str("request_id", middleware.GetReqID(r.Context())).
			Str("method", r.Method).
			Str("path", r.URL.Path).
			Str("route", route).
			Int("status", status).
			Int("bytes", ww.BytesWritten()).
			Dur("duration", elapsed).
			Msg("HTTP request")
	})
}
