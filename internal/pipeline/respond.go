package pipeline

import (
	"net/http"

	jsoniter "github.com/json-iterator/go"

	"github.com/placementcell/campus-api/internal/apierror"
	"github.com/placementcell/campus-api/internal/middleware"
)

var json = jsoniter.ConfigCompatibleWithStandardLibrary //nolint:gochecknoglobals

// Respond writes a handler's outcome. A non-nil err is written through
// apierror untouched and result is ignored; otherwise result is sanitized
// and written as JSON with status.
func (a *Adapter) Respond(w http.ResponseWriter, r *http.Request, status int, result any, err error) {
	if err != nil {
		apierror.WriteErr(w, err)
		return
	}

	out := a.Apply(r.Context(), result)
	data, err := json.Marshal(out)
	if err != nil {
		a.logger.Error("failed to encode response",
			"request_id", middleware.GetRequestID(r.Context()),
			"error", err,
		)
		data, _ = fallbackFor(result).MarshalJSON()
	}

	markSanitized(r.Context())
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if _, err := w.Write(append(data, '\n')); err != nil {
		a.logger.Debug("failed to write response",
			"request_id", middleware.GetRequestID(r.Context()),
			"error", err,
		)
	}
}
