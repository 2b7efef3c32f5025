package middleware

import (
	"net/http"

	"github.com/placementcell/campus-api/internal/apierror"
)

// MaxBodySize limits request bodies to maxBytes. A declared Content-Length
// over the limit is rejected with 413 before the handler runs; otherwise the
// handler's read fails once it passes the limit.
func MaxBodySize(maxBytes int64) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if r.ContentLength > maxBytes {
				apierror.Write(w, http.StatusRequestEntityTooLarge, apierror.CodeTooLarge, "request body too large")
				return
			}
			r.Body = http.MaxBytesReader(w, r.Body, maxBytes)
			next.ServeHTTP(w, r)
		})
	}
}
