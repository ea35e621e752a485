package http

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"treemap/internal/core"
	"treemap/internal/log"
	"treemap/internal/services"
	"treemap/internal/source"
)

// handleHealth performs basic liveness check
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	NewJSONResponse().JSON(map[string]any{
		"status":    "ok",
		"timestamp": time.Now().Format(time.RFC3339),
		"uptime":    time.Since(s.started).String(),
	}).Write(w)
}

// handleReady performs readiness check with dependency verification
func (s *Server) handleReady(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 10*time.Second)
	defer cancel()

	status := "ready"
	httpStatus := http.StatusOK
	checks := make(map[string]any)

	if s.templates == nil {
		checks["templates"] = "failed: templates not loaded"
		status = "not_ready"
		httpStatus = http.StatusServiceUnavailable
	} else {
		checks["templates"] = "ok"
	}

	// Listing tables is the cheapest backend round trip; backends that
	// cannot list are considered ready.
	switch _, err := s.panels.Tables(ctx); {
	case err == nil:
		checks["data_backend"] = "ok"
	case errors.Is(err, services.ErrNotSupported):
		checks["data_backend"] = "ok (listing not supported)"
	default:
		checks["data_backend"] = fmt.Sprintf("failed: %v", err)
		status = "not_ready"
		httpStatus = http.StatusServiceUnavailable
	}

	if s.records != nil && s.records.Writable() {
		checks["writes"] = "enabled"
	} else {
		checks["writes"] = "read_only"
	}

	NewJSONResponse().Status(httpStatus).JSON(map[string]any{
		"status":    status,
		"timestamp": time.Now().Format(time.RFC3339),
		"checks":    checks,
	}).Write(w)
}

// handleMetrics provides request, cache and rate limit counters in plain text format
func (s *Server) handleMetrics(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.WriteHeader(http.StatusOK)

	traceMetrics := s.trace.GetMetrics()
	fmt.Fprintf(w, "# HELP http_requests_total Total number of HTTP requests\n")
	fmt.Fprintf(w, "# TYPE http_requests_total counter\n")
	fmt.Fprintf(w, "http_requests_total %d\n\n", traceMetrics.TotalRequests)

	if s.cacheStats != nil {
		cs := s.cacheStats()
		fmt.Fprintf(w, "# HELP record_cache_hits_total Record cache hits\n")
		fmt.Fprintf(w, "# TYPE record_cache_hits_total counter\n")
		fmt.Fprintf(w, "record_cache_hits_total %d\n\n", cs.Hits)
		fmt.Fprintf(w, "# HELP record_cache_misses_total Record cache misses\n")
		fmt.Fprintf(w, "# TYPE record_cache_misses_total counter\n")
		fmt.Fprintf(w, "record_cache_misses_total %d\n\n", cs.Misses)
		fmt.Fprintf(w, "# HELP record_cache_entries Current record cache entries\n")
		fmt.Fprintf(w, "# TYPE record_cache_entries gauge\n")
		fmt.Fprintf(w, "record_cache_entries %d\n\n", cs.Size)
	}

	if s.limiter != nil {
		rl := s.limiter.GetMetrics()
		fmt.Fprintf(w, "# HELP rate_limit_hits_total Total rate limit hits\n")
		fmt.Fprintf(w, "# TYPE rate_limit_hits_total counter\n")
		fmt.Fprintf(w, "rate_limit_hits_total %d\n\n", rl.Rejected)
		fmt.Fprintf(w, "# HELP active_rate_limit_clients Currently tracked rate limit clients\n")
		fmt.Fprintf(w, "# TYPE active_rate_limit_clients gauge\n")
		fmt.Fprintf(w, "active_rate_limit_clients %d\n\n", rl.ClientCount)
	}

	fmt.Fprintf(w, "# HELP uptime_seconds Application uptime in seconds\n")
	fmt.Fprintf(w, "# TYPE uptime_seconds gauge\n")
	fmt.Fprintf(w, "uptime_seconds %.0f\n", time.Since(s.started).Seconds())
}

// handleIndex renders the panel page. Every panel state renders with 200;
// the error state is part of the page, not an HTTP failure.
func (s *Server) handleIndex(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	if s.templates == nil {
		log.LogError(ctx, "Templates not loaded", errors.New("no templates"), log.ComponentHTTP, log.OpRender, log.NewFields().With(log.FieldPath, r.URL.Path))
		http.Error(w, "templates not loaded", http.StatusInternalServerError)
		return
	}

	params := ParsePanelParams(r.URL.Query(), s.defaultMode)
	view := s.panels.Panel(ctx, params.Overrides, params.Mode)
	log.LogPanel(ctx, view.Table, string(view.State), leafCount(view.Stats))

	data := pageData{PanelView: view, Params: params}

	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	if err := s.templates.ExecuteTemplate(w, "index.html", data); err != nil {
		log.LogError(ctx, "Template execution failed", err, log.ComponentHTTP, log.OpRender, log.NewFields())
	}
}

func (s *Server) handleTreemap(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	params := ParsePanelParams(r.URL.Query(), s.defaultMode)
	view := s.panels.Panel(ctx, params.Overrides, params.Mode)
	log.LogPanel(ctx, view.Table, string(view.State), leafCount(view.Stats))
	NewJSONResponse().JSON(view).Write(w)
}

func (s *Server) handleTables(w http.ResponseWriter, r *http.Request) {
	tables, err := s.panels.Tables(r.Context())
	if err != nil {
		s.writeBackendError(w, r, "list tables", err)
		return
	}
	if tables == nil {
		tables = []string{}
	}
	NewJSONResponse().JSON(map[string]any{"tables": tables}).Write(w)
}

func (s *Server) handleFields(w http.ResponseWriter, r *http.Request) {
	table := r.PathValue("table")
	fields, err := s.panels.Fields(r.Context(), table)
	if err != nil {
		s.writeBackendError(w, r, "list fields", err)
		return
	}
	if fields == nil {
		fields = []core.Field{}
	}
	NewJSONResponse().JSON(map[string]any{"table": table, "fields": fields}).Write(w)
}

func (s *Server) handleAppendRecord(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	table := r.PathValue("table")

	if s.records == nil || !s.records.Writable() {
		JSONError(http.StatusNotImplemented, "the data backend is read-only").Write(w)
		return
	}

	parser := NewRequestBodyParser(w, r)
	cells, err := parser.Cells()
	if err != nil {
		BadRequestError(err.Error()).Write(w)
		return
	}
	if len(cells) == 0 {
		BadRequestError("request body has no cells").Write(w)
		return
	}

	id, err := s.records.Append(ctx, table, cells)
	if err != nil {
		s.writeBackendError(w, r, "append record", err)
		return
	}

	log.FromContext(ctx).InfoContext(ctx, "Record appended",
		log.NewFields().WithTable(table).With(log.FieldRecordID, id).WithOperation(log.OpAppend)...)
	NewJSONResponse().Status(http.StatusCreated).JSON(map[string]string{"id": id}).Write(w)
}

// writeBackendError maps backend errors to HTTP statuses.
func (s *Server) writeBackendError(w http.ResponseWriter, r *http.Request, op string, err error) {
	var unknown *source.UnknownFieldError
	switch {
	case errors.Is(err, source.ErrTableNotFound):
		NotFoundError(err.Error()).Write(w)
	case errors.As(err, &unknown):
		BadRequestError(unknown.Error()).Write(w)
	case errors.Is(err, services.ErrNotSupported):
		JSONError(http.StatusNotImplemented, err.Error()).Write(w)
	default:
		log.LogError(r.Context(), "Backend request failed", err, log.ComponentHTTP, op, log.NewFields().With(log.FieldPath, r.URL.Path))
		InternalServerError("internal error").Write(w)
	}
}

func leafCount(stats *core.Stats) int {
	if stats == nil {
		return 0
	}
	return stats.Leaves
}

// pageData feeds index.html. The view is marshalled into a JSON script tag
// by html/template for the renderer.
type pageData struct {
	services.PanelView
	Params PanelParams
}
