package http

import (
	"context"
	"errors"
	"net/http"
	"time"

	"expenses/internal/core"
	applog "expenses/internal/log"
	"expenses/internal/middleware/ratelimit"
	"expenses/internal/middleware/security"
	"expenses/internal/middleware/trace"
	"expenses/internal/services"
)

// ExpenseService is what the handlers need from the service layer.
type ExpenseService interface {
	Create(ctx context.Context, in core.NewExpense) (core.Expense, bool, error)
	List(ctx context.Context, q core.Query) ([]core.Expense, error)
	Categories(ctx context.Context) ([]string, error)
	Summary(ctx context.Context, category string) (core.Summary, error)
	Ping(ctx context.Context) error
	Stats() services.Stats
}

// Options configures NewServer. Zero values fall back to defaults.
type Options struct {
	CORSAllowedOrigins []string
	RateLimitPerMinute int
	TrustedProxies     []string
	Logger             *applog.Logger
}

// Server wraps http.Server with the expense API routes and middleware.
type Server struct {
	http.Server

	svc      ExpenseService
	logger   *applog.Logger
	started  time.Time
	detector *security.Detector
	limiter  *ratelimit.Limiter
	tracer   *trace.Middleware
}

// NewServer configures routes and middleware, returning a ready-to-run server.
func NewServer(addr string, svc ExpenseService, opts Options) (*Server, error) {
	logger := opts.Logger
	if logger == nil {
		logger = applog.New(applog.DefaultConfig())
	}
	logger = logger.WithComponent(applog.ComponentHTTP)

	detector := security.NewDetector()
	for _, cidr := range opts.TrustedProxies {
		if err := detector.AddTrustedProxy(cidr); err != nil {
			return nil, err
		}
	}

	s := &Server{
		svc:      svc,
		logger:   logger,
		started:  time.Now(),
		detector: detector,
		limiter:  ratelimit.NewLimiter(ratelimit.Config{RequestsPerMinute: opts.RateLimitPerMinute}),
		tracer:   trace.NewMiddleware(detector.ExtractClientIP, logger),
	}

	mux := http.NewServeMux()
	mux.HandleFunc("POST /expenses", s.handleCreateExpense)
	mux.HandleFunc("GET /expenses", s.handleListExpenses)
	mux.HandleFunc("GET /expenses/categories", s.handleCategories)
	mux.HandleFunc("GET /expenses/summary", s.handleSummary)
	mux.HandleFunc("GET /healthz", s.handleHealth)
	mux.HandleFunc("GET /readyz", s.handleReady)
	mux.HandleFunc("GET /metrics", s.handleMetrics)

	var h http.Handler = mux
	h = s.limiter.Middleware(detector.ExtractClientIP, s.rateLimited, http.MethodPost)(h)
	h = security.NewCORS(opts.CORSAllowedOrigins).Middleware(h)
	h = security.NewHeadersMiddleware(security.DefaultHeadersConfig()).Middleware(h)
	h = detector.Middleware(h)
	h = s.tracer.Middleware(h)

	s.Server = http.Server{
		Addr:              addr,
		Handler:           h,
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       10 * time.Second,
		WriteTimeout:      15 * time.Second,
		IdleTimeout:       60 * time.Second,
	}
	return s, nil
}

// ListenAndServe serves until Shutdown; http.ErrServerClosed is not reported as an error.
func (s *Server) ListenAndServe() error {
	s.logger.Info("HTTP server listening", "addr", s.Addr)
	if err := s.Server.ListenAndServe(); !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

// Shutdown drains in-flight requests and stops background goroutines.
func (s *Server) Shutdown(ctx context.Context) error {
	s.logger.Info("Shutting down HTTP server", applog.FieldOperation, applog.OpShutdown)
	s.limiter.Stop()
	return s.Server.Shutdown(ctx)
}

func (s *Server) rateLimited(w http.ResponseWriter, r *http.Request) {
	applog.FromContext(r.Context()).WithComponent(applog.ComponentRateLimit).WarnContext(r.Context(), "Rate limit exceeded",
		applog.FieldClientIP, s.detector.ExtractClientIP(r),
		applog.FieldPath, r.URL.Path)
	writeError(w, http.StatusTooManyRequests, "rate limit exceeded, try again later")
}
