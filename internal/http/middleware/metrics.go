// Package middleware contains shared Gin middleware used by the HTTP layer.
//
// This file wires Prometheus instrumentation for API traffic. Labels are kept
// to the bounded trio of method, route, and status: the route label uses the
// registered Gin pattern (e.g. /api/v1/sessions/:id/messages), never the raw
// URL with its attempt UUIDs, so cardinality stays flat no matter how many
// candidates hit the session endpoints.
package middleware

import (
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
)

const metricsNamespace = "interview_api"

var (
	// reqTotal counts finished requests by method, route, and status.
	reqTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: metricsNamespace,
			Name:      "http_requests_total",
			Help:      "Requests handled by the interview API, by method, route, and status.",
		},
		[]string{"method", "route", "status"},
	)

	// reqDuration records wall time per request. The upper buckets are wide
	// because session message turns block on model generation and routinely
	// run tens of seconds; the default buckets top out far too early for that.
	reqDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: metricsNamespace,
			Name:      "http_request_duration_seconds",
			Help:      "Request latency in seconds. Session turns include model generation time.",
			Buckets:   []float64{0.005, 0.025, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30, 60, 120},
		},
		[]string{"method", "route"},
	)

	// reqInflight gauges requests currently inside a handler.
	reqInflight = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Namespace: metricsNamespace,
			Name:      "http_requests_inflight",
			Help:      "Requests currently being handled.",
		},
	)

	// respBytes captures response sizes. Most responses are small JSON
	// envelopes; the tail covers paginated candidate listings and full
	// session transcripts.
	respBytes = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: metricsNamespace,
			Name:      "http_response_size_bytes",
			Help:      "Response body size in bytes.",
			Buckets:   []float64{256, 1 << 10, 4 << 10, 16 << 10, 64 << 10, 256 << 10, 1 << 20},
		},
		[]string{"method", "route"},
	)
)

func init() {
	prometheus.MustRegister(reqTotal, reqDuration, reqInflight, respBytes)
}

// Metrics returns a Gin middleware that records the collectors above for
// every request. Install it once on the engine, before route registration,
// and expose promhttp.Handler() on /metrics.
//
// Requests that matched no route (404s) fall back to the raw URL path for the
// route label; those are client typos and stay low-volume in practice.
func Metrics() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		reqInflight.Inc()
		defer reqInflight.Dec()

		c.Next()

		route := c.FullPath()
		if route == "" {
			route = c.Request.URL.Path
		}
		method := c.Request.Method
		status := strconv.Itoa(c.Writer.Status())

		reqTotal.WithLabelValues(method, route, status).Inc()
		reqDuration.WithLabelValues(method, route).Observe(time.Since(start).Seconds())
		// Size is -1 when nothing was written (204s, hijacked connections).
		if size := c.Writer.Size(); size >= 0 {
			respBytes.WithLabelValues(method, route).Observe(float64(size))
		}
	}
}
