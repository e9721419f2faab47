package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	HTTPRequestsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "zaplink",
		Name:      "http_requests_total",
		Help:      "Total number of HTTP requests by method, path, and status code.",
	}, []string{"method", "path", "status"})

	HTTPRequestDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: "zaplink",
		Name:      "http_request_duration_seconds",
		Help:      "HTTP request latency in seconds.",
		Buckets:   prometheus.DefBuckets,
	}, []string{"method", "path"})

	ProvisionRunsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "zaplink",
		Name:      "provision_runs_total",
		Help:      "Total provisioning saga runs by outcome.",
	}, []string{"outcome"})

	ProvisionStepsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "zaplink",
		Name:      "provision_steps_total",
		Help:      "Total provisioning step executions by step and outcome.",
	}, []string{"step", "outcome"})

	ProvisionStepRetriesTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "zaplink",
		Name:      "provision_step_retries_total",
		Help:      "Total provisioning step retry attempts by step.",
	}, []string{"step"})

	ProvisionStepDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: "zaplink",
		Name:      "provision_step_duration_seconds",
		Help:      "Provisioning step latency in seconds, including retries.",
		Buckets:   []float64{0.1, 0.5, 1, 2, 5, 10, 30, 60, 120, 300},
	}, []string{"step"})

	MigrationsAppliedTotal = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "zaplink",
		Name:      "migrations_applied_total",
		Help:      "Total schema migration files applied.",
	})

	ActiveSetupStreams = promauto.NewGauge(prometheus.GaugeOpts{
		Namespace: "zaplink",
		Name:      "active_setup_streams",
		Help:      "Number of in-flight provisioning SSE streams.",
	})
)

// Handler returns an http.Handler that serves the /metrics endpoint.
func Handler() http.Handler {
	return promhttp.Handler()
}

// Middleware wraps an http.Handler to record request metrics.
func Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		rw := &responseWriter{ResponseWriter: w, statusCode: http.StatusOK}
		next.ServeHTTP(rw, r)
		duration := time.Since(start).Seconds()

		path := normalizePath(r.URL.Path)
		HTTPRequestsTotal.WithLabelValues(r.Method, path, strconv.Itoa(rw.statusCode)).Inc()
		HTTPRequestDuration.WithLabelValues(r.Method, path).Observe(duration)
	})
}

type responseWriter struct {
	http.ResponseWriter
	statusCode int
}

func (rw *responseWriter) WriteHeader(code int) {
	rw.statusCode = code
	rw.ResponseWriter.WriteHeader(code)
}

// Flush lets wrapped handlers keep streaming SSE responses.
func (rw *responseWriter) Flush() {
	if f, ok := rw.ResponseWriter.(http.Flusher); ok {
		f.Flush()
	}
}

// normalizePath buckets URL paths to avoid high cardinality.
// It keeps the first two path segments and replaces the rest with a placeholder.
func normalizePath(p string) string {
	if p == "" || p == "/" {
		return "/"
	}
	switch {
	case p == "/healthz" || p == "/readyz" || p == "/metrics":
		return p
	}
	// For API paths like /v1/setup/provision, keep /v1/setup
	segments := 0
	for i := 1; i < len(p); i++ {
		if p[i] == '/' {
			segments++
			if segments >= 2 {
				return p[:i]
			}
		}
	}
	return p
}
