package admin

import (
	"net/http"

	jsoniter "github.com/json-iterator/go"

	"github.com/placementcell/campus-api/internal/apierror"
	"github.com/placementcell/campus-api/internal/auth"
	"github.com/placementcell/campus-api/internal/logging"
	"github.com/placementcell/campus-api/internal/policy"
)

var json = jsoniter.ConfigCompatibleWithStandardLibrary //nolint:gochecknoglobals

// SetLogLevelRequest is the request body for POST /loglevel
type SetLogLevelRequest struct {
	Level string `json:"level"`
}

// HandleSetLogLevel changes runtime log level
// POST /loglevel
// Body: {"level": "debug|info|warn|error"}
func (h *Handler) HandleSetLogLevel(w http.ResponseWriter, r *http.Request) {
	var req SetLogLevelRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.adapter.Respond(w, r, 0, nil, apierror.BadRequest("invalid JSON"))
		return
	}

	level, err := logging.ParseLevel(req.Level)
	if err != nil || req.Level == "" {
		h.adapter.Respond(w, r, 0, nil, apierror.BadRequest("level must be one of: debug, info, warn, error"))
		return
	}

	h.logLevel.Set(level)
	h.logger.Info("log level changed", "new_level", req.Level)

	h.adapter.Respond(w, r, http.StatusOK, map[string]string{"level": req.Level}, nil)
}

// WhoamiResponse describes the authenticated caller.
type WhoamiResponse struct {
	TokenID   int64       `json:"token_id,omitempty"`
	Name      string      `json:"name,omitempty"`
	Role      policy.Role `json:"role"`
	Admin     bool        `json:"admin"`
	Bootstrap bool        `json:"bootstrap,omitempty"`
}

// HandleWhoami returns the caller's identity
// GET /whoami
func (h *Handler) HandleWhoami(w http.ResponseWriter, r *http.Request) {
	role, _ := auth.RoleFromContext(r.Context())
	resp := WhoamiResponse{
		Role:      role,
		Admin:     h.registry.IsAdminBypass(role),
		Bootstrap: auth.IsBootstrapFromContext(r.Context()),
	}
	if token := auth.TokenFromContext(r.Context()); token != nil {
		resp.TokenID = token.ID
		resp.Name = token.Name
	}
	h.adapter.Respond(w, r, http.StatusOK, resp, nil)
}
