package api

import (
	"context"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/marmos91/dray/internal/logger"
	"github.com/marmos91/dray/pkg/metrics"
)

// HealthChecker is implemented by object stores.
type HealthChecker interface {
	HealthCheck(ctx context.Context) error
}

// ConnectionCounter is implemented by protocol adapters.
type ConnectionCounter interface {
	Protocol() string
	GetActiveConnections() int32
}

// Deps are the components reported by the health endpoints. Any may be nil.
type Deps struct {
	Store    HealthChecker
	Adapters []ConnectionCounter
}

// NewRouter builds the chi router. /metrics is mounted only when
// withMetrics is set.
func NewRouter(deps Deps, withMetrics bool) http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(requestLogger)
	r.Use(middleware.Recoverer)
	r.Use(middleware.Timeout(30 * time.Second))

	h := &healthHandler{deps: deps, timeout: 5 * time.Second}
	r.Route("/health", func(r chi.Router) {
		r.Get("/", h.Liveness)
		r.Get("/ready", h.Readiness)
	})
	// Short alias used by load balancers.
	r.Get("/healthz", h.Liveness)

	if withMetrics {
		r.Handle("/metrics", metrics.Handler())
	}

	return r
}

func requestLogger(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)

		next.ServeHTTP(ww, r)

		logArgs := []any{
			"request_id", middleware.GetReqID(r.Context()),
			"method", r.Method,
			"path", r.URL.Path,
			"status", ww.Status(),
			"bytes", ww.BytesWritten(),
			logger.KeyDurationMs, logger.Duration(start),
		}
		// Probes and scrapes arrive every few seconds
		if isQuietPath(r.URL.Path) {
			logger.Debug("HTTP request completed", logArgs...)
		} else {
			logger.Info("HTTP request completed", logArgs...)
		}
	})
}

func isQuietPath(p string) bool {
	return strings.HasPrefix(p, "/health") || p == "/metrics"
}
