package pipeline

import (
	"bytes"
	"context"
	"net/http"
	"strings"

	"github.com/placementcell/campus-api/internal/middleware"
	"github.com/placementcell/campus-api/internal/sanitize"
)

type ctxKey int

const responseStateKey ctxKey = iota

// responseState is shared between Middleware and Respond for one request.
type responseState struct {
	sanitized bool
}

// markSanitized records that the response for ctx was already written by
// Respond, so Middleware does not sanitize it a second time.
func markSanitized(ctx context.Context) {
	if st, ok := ctx.Value(responseStateKey).(*responseState); ok {
		st.sanitized = true
	}
}

// Middleware sanitizes JSON bodies written directly by handlers. Successful
// (2xx) application/json responses are buffered, decoded, sanitized and
// re-encoded; all other responses pass through unchanged. A 2xx JSON body
// that does not parse is replaced with {}. Responses written by Respond are
// already sanitized and pass through as written.
func (a *Adapter) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		st := &responseState{}
		r = r.WithContext(context.WithValue(r.Context(), responseStateKey, st))

		bw := &bufferingWriter{ResponseWriter: w}
		next.ServeHTTP(bw, r)

		if !bw.wroteHeader {
			bw.status = http.StatusOK
		}
		body := bw.body.Bytes()

		if !st.sanitized && sanitizable(bw.status, w.Header()) && len(body) > 0 {
			body = a.sanitizeBody(r, body)
			w.Header().Del("Content-Length")
		}

		w.WriteHeader(bw.status)
		if _, err := w.Write(body); err != nil {
			a.logger.Debug("failed to write response",
				"request_id", middleware.GetRequestID(r.Context()),
				"error", err,
			)
		}
	})
}

func (a *Adapter) sanitizeBody(r *http.Request, body []byte) []byte {
	ctx := r.Context()
	v, err := sanitize.Decode(body, a.engine.Limits().MaxDepth)
	if err != nil {
		a.logger.Warn("response body is not valid JSON, returning empty payload",
			"request_id", middleware.GetRequestID(ctx),
			"path", r.URL.Path,
			"error", err,
		)
		return []byte("{}")
	}
	if !v.IsComposite() {
		return body
	}

	data, err := a.SanitizeValue(ctx, v).MarshalJSON()
	if err != nil {
		a.logger.Error("failed to encode sanitized body",
			"request_id", middleware.GetRequestID(ctx),
			"error", err,
		)
		data, _ = emptyLike(v).MarshalJSON()
	}
	return data
}

func sanitizable(status int, h http.Header) bool {
	if status < 200 || status > 299 {
		return false
	}
	ct := strings.ToLower(strings.TrimSpace(h.Get("Content-Type")))
	return strings.HasPrefix(ct, "application/json")
}

// bufferingWriter holds the status and body until the handler returns.
// Headers go straight to the underlying writer's map and are sent with the
// buffered status.
type bufferingWriter struct {
	http.ResponseWriter
	status      int
	wroteHeader bool
	body        bytes.Buffer
}

func (b *bufferingWriter) WriteHeader(code int) {
	if !b.wroteHeader {
		b.status = code
		b.wroteHeader = true
	}
}

func (b *bufferingWriter) Write(p []byte) (int, error) {
	if !b.wroteHeader {
		b.WriteHeader(http.StatusOK)
	}
	return b.body.Write(p)
}
