package middleware

import (
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	httpRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "xproxy_http_requests_total",
			Help: "Total number of HTTP requests",
		},
		[]string{"method", "endpoint", "status"},
	)

	httpRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "xproxy_http_request_duration_seconds",
			Help:    "HTTP request latency in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method", "endpoint", "status"},
	)

	admissionResults = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "xproxy_admission_results_total",
			Help: "Admission outcomes by mode and result",
		},
		[]string{"mode", "result"},
	)

	usageQueueDepth = promauto.NewGaugeFunc(
		prometheus.GaugeOpts{
			Name: "xproxy_usage_queue_depth",
			Help: "Events buffered in the usage flusher channel",
		},
		func() float64 { return queueDepthFn() },
	)

	queueDepthFn = func() float64 { return 0 }
)

// RegisterQueueDepth wires the usage-queue gauge to the flusher.
func RegisterQueueDepth(fn func() int) {
	queueDepthFn = func() float64 { return float64(fn()) }
}

// RecordAdmission counts one admission decision.
func RecordAdmission(mode, result string) {
	admissionResults.WithLabelValues(mode, result).Inc()
}

// Metrics records request counts and latencies per route pattern.
func Metrics(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/metrics" {
			next.ServeHTTP(w, r)
			return
		}

		start := time.Now()
		ww := NewStreamingResponseWriter(w)
		next.ServeHTTP(ww, r)

		endpoint := r.URL.Path
		if routeCtx := chi.RouteContext(r.Context()); routeCtx != nil {
			if pattern := routeCtx.RoutePattern(); pattern != "" {
				endpoint = pattern
			}
		}
		status := strconv.Itoa(ww.StatusCode())

		httpRequestsTotal.WithLabelValues(r.Method, endpoint, status).Inc()
		httpRequestDuration.WithLabelValues(r.Method, endpoint, status).Observe(time.Since(start).Seconds())
	})
}
