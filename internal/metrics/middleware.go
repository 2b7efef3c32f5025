package metrics

import (
	"net/http"
	"regexp"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
)

// idSegment matches numeric and UUID path segments.
var idSegment = regexp.MustCompile(`/([0-9]+|[0-9a-fA-F]{8}-[0-9a-fA-F]{4}-[0-9a-fA-F]{4}-[0-9a-fA-F]{4}-[0-9a-fA-F]{12})(/|$)`)

// statusRecorder wraps http.ResponseWriter to capture the status code
type statusRecorder struct {
	http.ResponseWriter
	statusCode int
	written    bool
}

func (r *statusRecorder) WriteHeader(code int) {
	if !r.written {
		r.statusCode = code
		r.written = true
		r.ResponseWriter.WriteHeader(code)
	}
}

func (r *statusRecorder) Write(b []byte) (int, error) {
	if !r.written {
		r.statusCode = http.StatusOK
		r.written = true
	}
	return r.ResponseWriter.Write(b)
}

// Middleware records request count and latency per route pattern. A panic
// is recorded as a 500 and then re-raised for the recoverer.
func Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		recorder := &statusRecorder{
			ResponseWriter: w,
			statusCode:     http.StatusOK,
		}
		startTime := time.Now()

		defer func() {
			rec := recover()

			statusCode := recorder.statusCode
			if rec != nil {
				statusCode = http.StatusInternalServerError
			}

			path := routePattern(r)
			status := strconv.Itoa(statusCode)
			RecordRequest(r.Method, path, status)
			RecordRequestDuration(r.Method, path, status, time.Since(startTime).Seconds())

			if rec != nil {
				panic(rec)
			}
		}()

		next.ServeHTTP(recorder, r)
	})
}

// routePattern returns the chi route pattern that served r, falling back to
// the path with identifiers collapsed when no route matched.
func routePattern(r *http.Request) string {
	if rctx := chi.RouteContext(r.Context()); rctx != nil {
		if pattern := rctx.RoutePattern(); pattern != "" {
			return pattern
		}
	}
	return normalizePath(r.URL.Path)
}

// normalizePath collapses identifiers so labels stay low-cardinality.
//
//	/api/v1/collections/users/42 -> /api/v1/collections/users/:id
func normalizePath(path string) string {
	// Applied twice since adjacent ids share the separating slash.
	path = idSegment.ReplaceAllString(path, "/:id$2")
	return idSegment.ReplaceAllString(path, "/:id$2")
}
