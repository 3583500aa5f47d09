// Package http exposes the ledger service as a JSON API together with
// health, readiness and Prometheus endpoints.
package http

import (
	"context"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"mess/internal/cache"
	"mess/internal/core"
	"mess/internal/log"
	"mess/internal/services"
)

// RoleHeader carries the caller's role for meal edits.
const RoleHeader = "X-Mess-Role"

const (
	defaultCacheSize = 64
	defaultCacheTTL  = 5 * time.Minute
	defaultRateLimit = 120
)

type Server struct {
	http.Server
	svc    *services.LedgerService
	logger *log.Logger

	reports      *cache.LRUCache[core.Report]
	cacheManager *cache.Manager
	rateLimiter  *rateLimiter
	metrics      *metrics
	registry     *prometheus.Registry
	ready        func(context.Context) error

	shutdownOnce sync.Once
}

type settings struct {
	cacheSize int
	cacheTTL  time.Duration
	rateLimit int
	logger    *log.Logger
	ready     func(context.Context) error
}

// Option configures a Server.
type Option func(*settings)

// WithReportCache sizes the per-revision report cache.
func WithReportCache(size int, ttl time.Duration) Option {
	return func(s *settings) {
		s.cacheSize = size
		s.cacheTTL = ttl
	}
}

// WithRateLimit caps mutating requests per client per minute. Zero or
// less disables the limiter.
func WithRateLimit(perMinute int) Option {
	return func(s *settings) { s.rateLimit = perMinute }
}

// WithLogger sets the logger stored in each request context.
func WithLogger(l *log.Logger) Option {
	return func(s *settings) { s.logger = l }
}

// WithReadiness adds a check behind /readyz, typically a storage ping.
func WithReadiness(check func(context.Context) error) Option {
	return func(s *settings) { s.ready = check }
}

// NewServer configures routes and middleware, returning a ready-to-run http.Server.
func NewServer(addr string, svc *services.LedgerService, opts ...Option) *Server {
	cfg := settings{
		cacheSize: defaultCacheSize,
		cacheTTL:  defaultCacheTTL,
		rateLimit: defaultRateLimit,
	}
	for _, opt := range opts {
		opt(&cfg)
	}
	if cfg.logger == nil {
		cfg.logger = log.New(log.DefaultConfig()).WithComponent(log.ComponentHTTP)
	}

	reg := prometheus.NewRegistry()
	s := &Server{
		svc:          svc,
		logger:       cfg.logger,
		reports:      cache.NewLRUCache[core.Report](cfg.cacheSize, cfg.cacheTTL),
		cacheManager: cache.NewManager(),
		metrics:      newMetrics(reg, svc.Revision),
		registry:     reg,
		ready:        cfg.ready,
	}
	if cfg.rateLimit > 0 {
		s.rateLimiter = newRateLimiter(cfg.rateLimit)
	}
	s.cacheManager.Register(s.reports)
	s.cacheManager.StartCleanup(context.Background(), cfg.cacheTTL)

	mux := http.NewServeMux()
	s.routes(mux)

	// The instrumenting middleware must wrap the mux directly: it reads
	// the matched pattern from the same *http.Request the mux saw.
	var h http.Handler = s.metrics.instrument(mux)
	h = s.withSecurityHeaders(h)
	h = log.AccessLog(h)
	h = log.RequestIDMiddleware(requestID)(h)
	h = log.Middleware(cfg.logger)(h)

	s.Server = http.Server{
		Addr:              addr,
		Handler:           h,
		ReadHeaderTimeout: 10 * time.Second,
	}
	return s
}

func (s *Server) routes(mux *http.ServeMux) {
	mux.HandleFunc("GET /healthz", handleHealth)
	mux.HandleFunc("GET /readyz", s.handleReady)
	mux.Handle("GET /metrics", promhttp.HandlerFor(s.registry, promhttp.HandlerOpts{}))

	mux.HandleFunc("GET /api/members", s.handleListMembers)
	mux.HandleFunc("POST /api/members", s.handleAddMember)
	mux.HandleFunc("DELETE /api/members/{id}", s.handleRemoveMember)
	mux.HandleFunc("POST /api/members/{id}/toggle", s.handleToggleMember)

	mux.HandleFunc("GET /api/meals", s.handleMealsForDate)
	mux.HandleFunc("PUT /api/meals", s.handleUpdateMeal)
	mux.HandleFunc("PUT /api/meals/counts", s.handleUpdateMealCount)

	s.collection(mux, "expenses",
		listOf(s.svc, func(snap core.Snapshot) []core.Expense { return snap.Expenses }),
		addOf(s.svc.AddExpense), s.svc.RemoveExpense)
	s.collection(mux, "extra-expenses",
		listOf(s.svc, func(snap core.Snapshot) []core.ExtraExpense { return snap.ExtraExpenses }),
		addOf(s.svc.AddExtraExpense), s.svc.RemoveExtraExpense)
	s.collection(mux, "deposits",
		listOf(s.svc, func(snap core.Snapshot) []core.Deposit { return snap.Deposits }),
		addOf(s.svc.AddDeposit), s.svc.RemoveDeposit)
	s.collection(mux, "maid-payments",
		listOf(s.svc, func(snap core.Snapshot) []core.MaidPayment { return snap.MaidPayments }),
		addOf(s.svc.AddMaidPayment), s.svc.RemoveMaidPayment)
	s.collection(mux, "shop-transactions",
		listOf(s.svc, func(snap core.Snapshot) []core.ShopTransaction { return snap.ShopTransactions }),
		addOf(s.svc.AddShopTransaction), s.svc.RemoveShopTransaction)

	mux.HandleFunc("GET /api/report", s.handleReport)
	mux.HandleFunc("GET /api/today", s.handleToday)
	mux.HandleFunc("GET /api/shop", s.handleShop)
	mux.HandleFunc("GET /api/deadline", s.handleDeadline)

	mux.HandleFunc("GET /api/export", s.handleExport)
	mux.HandleFunc("POST /api/import", s.handleImport)
	mux.HandleFunc("POST /api/clear", s.handleClear)
}

// Shutdown gracefully shuts down the server and cleanup routines
func (s *Server) Shutdown(ctx context.Context) error {
	var shutdownErr error
	s.shutdownOnce.Do(func() {
		s.cacheManager.Stop()
		if s.rateLimiter != nil {
			s.rateLimiter.stop()
		}
		shutdownErr = s.Server.Shutdown(ctx)
	})
	return shutdownErr
}

func handleHealth(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("ok"))
}

func (s *Server) handleReady(w http.ResponseWriter, r *http.Request) {
	if s.ready != nil {
		ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
		defer cancel()
		if err := s.ready(ctx); err != nil {
			slog.WarnContext(r.Context(), "Readiness check failed", "error", err)
			http.Error(w, "not ready", http.StatusServiceUnavailable)
			return
		}
	}
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("ready"))
}
