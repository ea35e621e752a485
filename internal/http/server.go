package http

import (
	"context"
	"errors"
	"html/template"
	"io/fs"
	"net/http"
	"sync"
	"time"

	"treemap/internal/cache"
	"treemap/internal/core"
	"treemap/internal/log"
	"treemap/internal/middleware/ratelimit"
	"treemap/internal/middleware/security"
	"treemap/internal/middleware/trace"
	"treemap/internal/properties"
	"treemap/internal/services"
	"treemap/internal/theme"
	appweb "treemap/web"
)

// PanelService computes panels and lists the schema behind them.
type PanelService interface {
	Panel(ctx context.Context, overrides properties.Properties, mode theme.Mode) services.PanelView
	Tables(ctx context.Context) ([]string, error)
	Fields(ctx context.Context, table string) ([]core.Field, error)
}

// RecordAppender adds records to a table.
type RecordAppender interface {
	Writable() bool
	Append(ctx context.Context, table string, cells map[string]any) (string, error)
}

// Options configures a Server. Panels is required.
type Options struct {
	Addr    string
	Panels  PanelService
	Records RecordAppender
	Logger  *log.Logger
	// Limiter throttles writes; nil disables rate limiting.
	Limiter     *ratelimit.Limiter
	ClientIP    *security.ClientIPResolver
	DefaultMode theme.Mode
	// CacheStats reports the record cache for /metrics.
	CacheStats func() cache.Stats
}

type Server struct {
	http.Server
	templates   *template.Template
	panels      PanelService
	records     RecordAppender
	logger      *log.Logger
	limiter     *ratelimit.Limiter
	trace       *trace.Middleware
	defaultMode theme.Mode
	cacheStats  func() cache.Stats
	started     time.Time

	shutdownOnce sync.Once
}

// NewServer configures routes and templates, returning a ready-to-run http.Server.
func NewServer(opts Options) *Server {
	logger := opts.Logger
	if logger == nil {
		logger = log.New(log.DefaultConfig())
	}
	clientIP := opts.ClientIP
	if clientIP == nil {
		clientIP = security.NewClientIPResolver()
	}
	mode := opts.DefaultMode
	if mode == "" {
		mode = theme.Light
	}

	mux := http.NewServeMux()
	s := &Server{
		Server: http.Server{
			Addr:              opts.Addr,
			ReadHeaderTimeout: 10 * time.Second,
			ReadTimeout:       15 * time.Second,
			WriteTimeout:      30 * time.Second,
			IdleTimeout:       60 * time.Second,
		},
		panels:      opts.Panels,
		records:     opts.Records,
		logger:      logger.WithComponent(log.ComponentHTTP),
		limiter:     opts.Limiter,
		trace:       trace.NewMiddleware(logger, clientIP.ClientIP),
		defaultMode: mode,
		cacheStats:  opts.CacheStats,
		started:     time.Now(),
	}

	// Parse embedded templates at startup.
	t, err := template.New("").Funcs(templateFuncs).ParseFS(appweb.TemplatesFS, "templates/*.html")
	if err != nil {
		s.logger.Warn("Failed parsing templates", log.FieldError, err)
	} else {
		s.templates = t
	}

	// Static assets (served from embedded FS)
	if sub, err := fs.Sub(appweb.StaticFS, "static"); err == nil {
		static := http.StripPrefix("/static/", http.FileServer(http.FS(sub)))
		mux.Handle("GET /static/", security.StaticAssetMiddleware(3600)(static))
	} else {
		s.logger.Warn("Failed to mount embedded static FS", log.FieldError, err)
	}

	mux.HandleFunc("GET /{$}", s.handleIndex)
	mux.HandleFunc("GET /healthz", s.handleHealth)
	mux.HandleFunc("GET /readyz", s.handleReady)
	mux.HandleFunc("GET /metrics", s.handleMetrics)

	mux.HandleFunc("GET /api/treemap", s.handleTreemap)
	mux.HandleFunc("GET /api/tables", s.handleTables)
	mux.HandleFunc("GET /api/tables/{table}/fields", s.handleFields)
	mux.HandleFunc("POST /api/tables/{table}/records", s.handleAppendRecord)

	var handler http.Handler = mux
	if s.limiter != nil {
		handler = s.limiter.Middleware(clientIP.ClientIP, ratelimit.WritesOnly, func(w http.ResponseWriter, r *http.Request) {
			log.FromContext(r.Context()).WithComponent(log.ComponentRateLimit).WarnContext(r.Context(), "Rate limit exceeded",
				log.FieldMethod, r.Method, log.FieldPath, r.URL.Path)
			JSONError(http.StatusTooManyRequests, "rate limit exceeded, please try again later").Write(w)
		})(handler)
	}
	handler = security.Headers(security.DefaultHeadersConfig())(handler)
	handler = s.trace.Middleware(handler)
	s.Handler = handler

	return s
}

// Shutdown stops accepting requests and waits for in-flight ones.
func (s *Server) Shutdown(ctx context.Context) error {
	var shutdownErr error
	s.shutdownOnce.Do(func() {
		shutdownErr = s.Server.Shutdown(ctx)
	})
	return shutdownErr
}

// Run serves until ctx is cancelled, then shuts down within timeout.
func (s *Server) Run(ctx context.Context, timeout time.Duration) error {
	errCh := make(chan error, 1)
	go func() {
		s.logger.Info("HTTP server listening", "addr", s.Addr)
		if err := s.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()
	s.logger.Info("Shutting down HTTP server", log.FieldOperation, log.OpShutdown)
	if err := s.Shutdown(shutdownCtx); err != nil {
		return err
	}
	return <-errCh
}
