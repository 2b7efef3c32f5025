// Package metrics provides Prometheus metrics for the campus API and its
// response sanitizer.
package metrics

import (
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"sync/atomic"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const (
	namespace          = "campus"
	apiSubsystem       = "api"
	sanitizerSubsystem = "sanitizer"
)

// Field actions recorded by RecordSanitizedFields.
const (
	ActionRemoved = "removed"
	ActionMasked  = "masked"
)

// Bound kinds recorded by RecordBoundExceeded.
const (
	BoundDepth    = "depth"
	BoundKeys     = "keys"
	BoundElements = "elements"
	BoundNodes    = "nodes"
)

var (
	// Set once by Init; record functions are no-ops until then.
	requestsTotal     atomic.Pointer[prometheus.CounterVec]
	requestDuration   atomic.Pointer[prometheus.HistogramVec]
	authFailuresTotal atomic.Pointer[prometheus.CounterVec]

	sanitizedFieldsTotal atomic.Pointer[prometheus.CounterVec]
	boundsExceededTotal  atomic.Pointer[prometheus.CounterVec]
	cyclesTotal          atomic.Pointer[prometheus.Counter]
	failuresTotal        atomic.Pointer[prometheus.Counter]
	sanitizeDuration     atomic.Pointer[prometheus.Histogram]
)

// Init registers all metrics with reg. Call it once at startup.
func Init(reg prometheus.Registerer) error {
	requestsTotalVec := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: apiSubsystem,
			Name:      "requests_total",
			Help:      "Total number of HTTP requests handled",
		},
		[]string{"method", "path", "status"},
	)
	requestDurationVec := prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: apiSubsystem,
			Name:      "request_duration_seconds",
			Help:      "HTTP request latency in seconds",
			Buckets:   prometheus.DefBuckets,
		},
		[]string{"method", "path", "status"},
	)
	authFailuresTotalVec := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: apiSubsystem,
			Name:      "auth_failures_total",
			Help:      "Total number of authentication failures",
		},
		[]string{"reason"},
	)
	infoGaugeVec := prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: apiSubsystem,
			Name:      "info",
			Help:      "Build information",
		},
		[]string{"version"},
	)

	sanitizedFieldsVec := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: sanitizerSubsystem,
			Name:      "fields_total",
			Help:      "Response fields removed or masked by the sanitizer",
		},
		[]string{"action"},
	)
	boundsExceededVec := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: sanitizerSubsystem,
			Name:      "bounds_exceeded_total",
			Help:      "Subtrees cut short or truncated by a sanitizer resource bound",
		},
		[]string{"kind"},
	)
	cycles := prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: sanitizerSubsystem,
		Name:      "cycles_total",
		Help:      "Reference cycles replaced by the circular-reference sentinel",
	})
	failures := prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: sanitizerSubsystem,
		Name:      "failures_total",
		Help:      "Sanitizer failures answered with an empty fallback payload",
	})
	duration := prometheus.NewHistogram(prometheus.HistogramOpts{
		Namespace: namespace,
		Subsystem: sanitizerSubsystem,
		Name:      "duration_seconds",
		Help:      "Time spent sanitizing one response payload",
		Buckets:   []float64{.0001, .0005, .001, .005, .01, .05, .1, .5, 1},
	})

	collectors := []struct {
		name string
		c    prometheus.Collector
	}{
		{"requestsTotal", requestsTotalVec},
		{"requestDuration", requestDurationVec},
		{"authFailuresTotal", authFailuresTotalVec},
		{"infoGauge", infoGaugeVec},
		{"sanitizedFieldsTotal", sanitizedFieldsVec},
		{"boundsExceededTotal", boundsExceededVec},
		{"cyclesTotal", cycles},
		{"failuresTotal", failures},
		{"sanitizeDuration", duration},
	}
	for _, c := range collectors {
		if err := reg.Register(c.c); err != nil {
			return fmt.Errorf("failed to register %s: %w", c.name, err)
		}
	}
	infoGaugeVec.WithLabelValues(Version).Set(1)

	requestsTotal.Store(requestsTotalVec)
	requestDuration.Store(requestDurationVec)
	authFailuresTotal.Store(authFailuresTotalVec)
	sanitizedFieldsTotal.Store(sanitizedFieldsVec)
	boundsExceededTotal.Store(boundsExceededVec)
	cyclesTotal.Store(&cycles)
	failuresTotal.Store(&failures)
	sanitizeDuration.Store(&duration)

	return nil
}

// Version is reported by the info gauge.
var Version = "0.1.0"

// RecordRequest increments the requests counter. path should be a route
// pattern such as "/api/v1/collections/{collection}/{id}".
func RecordRequest(method, path, statusCode string) {
	if counter := requestsTotal.Load(); counter != nil {
		counter.WithLabelValues(method, path, statusCode).Inc()
	}
}

// RecordRequestDuration records the latency of a request in seconds.
func RecordRequestDuration(method, path, statusCode string, durationSeconds float64) {
	if histogram := requestDuration.Load(); histogram != nil {
		histogram.WithLabelValues(method, path, statusCode).Observe(durationSeconds)
	}
}

// RecordAuthFailure increments the auth failures counter.
// Reasons: "missing_token", "invalid_token", "forbidden".
func RecordAuthFailure(reason string) {
	if counter := authFailuresTotal.Load(); counter != nil {
		counter.WithLabelValues(reason).Inc()
	}
}

// RecordSanitizedFields adds n to the removed or masked field counter.
func RecordSanitizedFields(action string, n int) {
	if n <= 0 {
		return
	}
	if counter := sanitizedFieldsTotal.Load(); counter != nil {
		counter.WithLabelValues(action).Add(float64(n))
	}
}

// RecordBoundExceeded adds n to the counter for a resource bound.
func RecordBoundExceeded(kind string, n int) {
	if n <= 0 {
		return
	}
	if counter := boundsExceededTotal.Load(); counter != nil {
		counter.WithLabelValues(kind).Add(float64(n))
	}
}

// RecordCycles adds n detected reference cycles.
func RecordCycles(n int) {
	if n <= 0 {
		return
	}
	if counter := cyclesTotal.Load(); counter != nil {
		(*counter).Add(float64(n))
	}
}

// RecordSanitizeFailure counts one contained sanitizer failure.
func RecordSanitizeFailure() {
	if counter := failuresTotal.Load(); counter != nil {
		(*counter).Inc()
	}
}

// RecordSanitizeDuration records the time one sanitize call took, in seconds.
func RecordSanitizeDuration(durationSeconds float64) {
	if histogram := sanitizeDuration.Load(); histogram != nil {
		(*histogram).Observe(durationSeconds)
	}
}

// Handler returns the Prometheus handler for the default registry.
func Handler() http.Handler {
	return promhttp.Handler()
}

// HandlerFor returns a Prometheus handler for reg.
func HandlerFor(reg prometheus.Gatherer) http.Handler {
	return promhttp.HandlerFor(reg, promhttp.HandlerOpts{})
}

// GetMetricsText returns the Prometheus text-format output from a registry.
func GetMetricsText(reg prometheus.Gatherer) (string, error) {
	req := httptest.NewRequest(http.MethodGet, "/metrics", nil)
	w := httptest.NewRecorder()
	HandlerFor(reg).ServeHTTP(w, req)

	body, err := io.ReadAll(w.Body)
	if err != nil {
		return "", fmt.Errorf("failed to read metrics output: %w", err)
	}
	return string(body), nil
}
