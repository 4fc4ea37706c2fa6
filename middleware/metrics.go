package middleware

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics owns the request instrumentation on its own registry.
type Metrics struct {
	registry *prometheus.Registry

	requestsTotal *prometheus.CounterVec
	inFlight      prometheus.Gauge
	duration      *prometheus.HistogramVec

	// RateLimitRejections counts requests rejected by the rate limiter.
	// Wire it into RateLimitConfig.Rejections.
	RateLimitRejections prometheus.Counter
}

// NewMetrics creates and registers the request metrics.
func NewMetrics() *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),
		requestsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "statiker_http_requests_total",
			Help: "Requests served, by method and status code.",
		}, []string{"method", "code"}),
		inFlight: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "statiker_http_requests_in_flight",
			Help: "Requests currently being served.",
		}),
		duration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "statiker_http_request_duration_seconds",
			Help:    "Request duration, by method.",
			Buckets: prometheus.DefBuckets,
		}, []string{"method"}),
		RateLimitRejections: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "statiker_rate_limit_rejections_total",
			Help: "Requests rejected by the rate limiter.",
		}),
	}

	m.registry.MustRegister(m.requestsTotal, m.inFlight, m.duration, m.RateLimitRejections)

	return m
}

// Handler exposes the registry in Prometheus text format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

// Middleware returns a middleware that records count, duration, and
// in-flight gauge for every request.
func (m *Metrics) Middleware() Middleware {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			m.inFlight.Inc()
			defer m.inFlight.Dec()

			start := time.Now()
			rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}

			next.ServeHTTP(rec, r)

			m.duration.WithLabelValues(r.Method).Observe(time.Since(start).Seconds())
			m.requestsTotal.WithLabelValues(r.Method, strconv.Itoa(rec.status)).Inc()
		})
	}
}

// statusRecorder captures the response status code for instrumentation.
type statusRecorder struct {
	http.ResponseWriter
	status      int
	wroteHeader bool
}

func (sr *statusRecorder) WriteHeader(statusCode int) {
	if !sr.wroteHeader {
		sr.status = statusCode
		sr.wroteHeader = true
	}

	sr.ResponseWriter.WriteHeader(statusCode)
}

func (sr *statusRecorder) Write(b []byte) (int, error) {
	if !sr.wroteHeader {
		sr.WriteHeader(http.StatusOK)
	}

	return sr.ResponseWriter.Write(b)
}

// Unwrap returns the underlying ResponseWriter for middleware chaining.
func (sr *statusRecorder) Unwrap() http.ResponseWriter {
	return sr.ResponseWriter
}
