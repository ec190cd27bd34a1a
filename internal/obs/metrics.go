// Package obs holds the gateway's Prometheus metrics and the HTTP
// instrumentation middleware.
package obs

import (
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	httpRequestsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "http_requests_total",
			Help: "Total number of HTTP requests.",
		},
		[]string{"method", "path", "status"},
	)

	httpRequestDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "http_request_duration_seconds",
			Help:    "HTTP request latencies in seconds.",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method", "path", "status"},
	)

	restoreOutcomes = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "session_restore_total",
			Help: "Boot restore outcomes per role.",
		},
		[]string{"role", "outcome"},
	)

	loginAttempts = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "session_login_attempts_total",
			Help: "Login and signup attempts per role and outcome.",
		},
		[]string{"role", "op", "outcome"},
	)

	sessionPhase = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "session_authenticated",
			Help: "1 when the role's session is authenticated, 0 otherwise.",
		},
		[]string{"role"},
	)
)

var registerOnce sync.Once

// Init registers the gateway's metrics in the default registry. Safe to call
// more than once.
func Init() {
	registerOnce.Do(func() {
		prometheus.MustRegister(
			httpRequestsTotal,
			httpRequestDuration,
			restoreOutcomes,
			loginAttempts,
			sessionPhase,
		)
	})
}

// Handler exposes the default registry.
func Handler() http.Handler {
	return promhttp.Handler()
}

// RecordRestore counts one boot restore outcome.
func RecordRestore(role, outcome string) {
	restoreOutcomes.WithLabelValues(role, outcome).Inc()
}

// RecordLoginAttempt counts one login or signup attempt.
func RecordLoginAttempt(role, op, outcome string) {
	loginAttempts.WithLabelValues(role, op, outcome).Inc()
}

// SetAuthenticated tracks whether a role's session currently holds.
func SetAuthenticated(role string, authenticated bool) {
	v := 0.0
	if authenticated {
		v = 1.0
	}
	sessionPhase.WithLabelValues(role).Set(v)
}

// statusWriter captures the response code for instrumentation.
type statusWriter struct {
	http.ResponseWriter
	code int
}

func (w *statusWriter) WriteHeader(code int) {
	w.code = code
	w.ResponseWriter.WriteHeader(code)
}

// Instrument measures request counts and latency. Shaped to slot into the
// server's middleware chain.
func Instrument(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		sw := &statusWriter{ResponseWriter: w, code: http.StatusOK}

		next(sw, r)

		status := strconv.Itoa(sw.code)
		httpRequestDuration.WithLabelValues(r.Method, r.URL.Path, status).Observe(time.Since(start).Seconds())
		httpRequestsTotal.WithLabelValues(r.Method, r.URL.Path, status).Inc()
	}
}
