package middleware

import (
	"fmt"
	"log/slog"
	"net/http"
	"time"

	chimw "github.com/go-chi/chi/v5/middleware"

	"github.com/placementcell/campus-api/internal/apierror"
)

// Recoverer wraps chi's Recoverer: the panic and its stack are logged through
// logger instead of stderr, and the 500 carries the usual JSON error body.
// http.ErrAbortHandler is re-raised by chi so the server aborts the connection.
func Recoverer(logger *slog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		recoverer := chimw.Recoverer(next)
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			pw := &panicWriter{ResponseWriter: w}
			entry := &panicLogEntry{logger: logger, request: r, writer: pw}
			recoverer.ServeHTTP(pw, chimw.WithLogEntry(r, entry))
		})
	}
}

// panicLogEntry receives the panic from chi's Recoverer.
type panicLogEntry struct {
	logger  *slog.Logger
	request *http.Request
	writer  *panicWriter
}

func (e *panicLogEntry) Write(int, int, http.Header, time.Duration, interface{}) {}

func (e *panicLogEntry) Panic(v interface{}, stack []byte) {
	e.writer.panicked = true
	e.logger.Error("panic in handler",
		"request_id", GetRequestID(e.request.Context()),
		"method", e.request.Method,
		"path", e.request.URL.Path,
		"panic", fmt.Sprint(v),
		"stack", string(stack),
	)
}

// panicWriter turns the bare 500 chi writes after a panic into a JSON error,
// unless the handler had already started the response.
type panicWriter struct {
	http.ResponseWriter
	panicked bool
	started  bool
}

func (p *panicWriter) WriteHeader(code int) {
	if p.panicked && !p.started {
		p.started = true
		apierror.Write(p.ResponseWriter, code, apierror.CodeInternalError, "internal error")
		return
	}
	p.started = true
	p.ResponseWriter.WriteHeader(code)
}

func (p *panicWriter) Write(b []byte) (int, error) {
	p.started = true
	return p.ResponseWriter.Write(b)
}
