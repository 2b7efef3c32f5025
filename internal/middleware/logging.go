package middleware

import (
	"bytes"
	"io"
	"log/slog"
	"net/http"
	"time"
	"unicode/utf8"

	"github.com/placementcell/campus-api/internal/logging"
	"github.com/placementcell/campus-api/internal/sanitize"
)

// maxLoggedBody caps how much of a redacted body is written to the log.
const maxLoggedBody = 8 << 10

// HTTPLogging logs each request and response at DEBUG. It does nothing when
// the logger is above DEBUG.
//
// Headers are masked with logging.MaskHeader. JSON bodies are redacted by
// engine: secrets are dropped and national and financial identifiers are masked.
func HTTPLogging(logger *slog.Logger, engine *sanitize.Engine) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if !logger.Enabled(r.Context(), slog.LevelDebug) {
				next.ServeHTTP(w, r)
				return
			}

			logRequest(logger, r, engine)

			rec := &responseRecorder{
				ResponseWriter: w,
				statusCode:     http.StatusOK,
				body:           new(bytes.Buffer),
			}

			start := time.Now()
			next.ServeHTTP(rec, r)

			logResponse(logger, r, rec, time.Since(start), engine)
		})
	}
}

func logRequest(logger *slog.Logger, r *http.Request, engine *sanitize.Engine) {
	var reqBody []byte
	if r.Body != nil {
		var err error
		reqBody, err = io.ReadAll(r.Body)
		if err != nil {
			logger.Debug("Failed to read request body",
				"request_id", GetRequestID(r.Context()),
				"error", err,
			)
		}
		// The handler still gets what was read, and sees the same error if any.
		r.Body = io.NopCloser(io.MultiReader(bytes.NewReader(reqBody), errReader{err}))
	}

	logger.Debug("HTTP Request",
		"request_id", GetRequestID(r.Context()),
		"method", r.Method,
		"url", r.URL.Path,
		"query_params", r.URL.RawQuery,
		"headers", maskHeaders(r.Header),
		"body", redactBody(reqBody, engine),
	)
}

func logResponse(logger *slog.Logger, r *http.Request, rec *responseRecorder, duration time.Duration, engine *sanitize.Engine) {
	logger.Debug("HTTP Response",
		"request_id", GetRequestID(r.Context()),
		"method", r.Method,
		"url", r.URL.Path,
		"status_code", rec.statusCode,
		"headers", maskHeaders(rec.Header()),
		"body", redactBody(rec.body.Bytes(), engine),
		"duration_ms", duration.Milliseconds(),
	)
}

func maskHeaders(headers http.Header) map[string]string {
	result := make(map[string]string, len(headers))
	for k, v := range headers {
		if len(v) > 0 {
			result[k] = logging.MaskHeader(k, v[0])
		}
	}
	return result
}

func redactBody(body []byte, engine *sanitize.Engine) string {
	if len(body) == 0 {
		return ""
	}
	if !utf8.Valid(body) {
		return logging.FormatBinaryData(body)
	}

	redacted := logging.RedactJSONBody(body, engine)
	if len(redacted) > maxLoggedBody {
		return string(redacted[:maxLoggedBody]) + "...[TRUNCATED]"
	}
	return string(redacted)
}

// errReader replays a read error after the buffered body.
type errReader struct{ err error }

func (e errReader) Read([]byte) (int, error) {
	if e.err != nil {
		return 0, e.err
	}
	return 0, io.EOF
}

// responseRecorder captures the status and body for logging.
type responseRecorder struct {
	http.ResponseWriter
	statusCode int
	body       *bytes.Buffer
}

func (r *responseRecorder) WriteHeader(code int) {
	r.statusCode = code
	r.ResponseWriter.WriteHeader(code)
}

func (r *responseRecorder) Write(b []byte) (int, error) {
	r.body.Write(b)
	return r.ResponseWriter.Write(b)
}
