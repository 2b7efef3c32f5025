package admin

import (
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/samber/lo"

	"github.com/placementcell/campus-api/internal/apierror"
	"github.com/placementcell/campus-api/internal/auth"
	"github.com/placementcell/campus-api/internal/middleware"
	"github.com/placementcell/campus-api/internal/policy"
	"github.com/placementcell/campus-api/internal/storage"
)

// TokenResponse represents a token in API responses. The secret is never
// included.
type TokenResponse struct {
	ID        int64       `json:"id"`
	Name      string      `json:"name"`
	Role      policy.Role `json:"role"`
	CreatedAt time.Time   `json:"created_at"`
}

func toResponse(t *storage.Token) TokenResponse {
	return TokenResponse{ID: t.ID, Name: t.Name, Role: t.Role, CreatedAt: t.CreatedAt}
}

// CreateTokenRequest is the request body for POST /tokens
type CreateTokenRequest struct {
	Name string `json:"name"`
	Role string `json:"role"`
}

// CreateTokenResponse includes the token (shown only once)
type CreateTokenResponse struct {
	TokenResponse
	Token string `json:"token"`
}

// HandleListTokens returns all tokens
// GET /tokens
func (h *Handler) HandleListTokens(w http.ResponseWriter, r *http.Request) {
	tokens, err := h.tokens.ListTokens(r.Context())
	if err != nil {
		h.internalError(w, r, "failed to list tokens", err)
		return
	}
	h.adapter.Respond(w, r, http.StatusOK, lo.Map(tokens, func(t *storage.Token, _ int) TokenResponse {
		return toResponse(t)
	}), nil)
}

// HandleCreateToken issues a new token
// POST /tokens
// Body: {"name": "...", "role": "TEACHER"}
func (h *Handler) HandleCreateToken(w http.ResponseWriter, r *http.Request) {
	var req CreateTokenRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.adapter.Respond(w, r, 0, nil, apierror.BadRequest("invalid JSON"))
		return
	}

	req.Name = strings.TrimSpace(req.Name)
	if req.Name == "" || req.Role == "" {
		h.adapter.Respond(w, r, 0, nil, apierror.BadRequest("name and role are required"))
		return
	}

	role := policy.Role(req.Role)
	if !h.registry.IsKnownRole(role) {
		h.adapter.Respond(w, r, 0, nil, errUnknownRole(req.Role))
		return
	}

	// While unconfigured only the bootstrap key gets here, and it must be
	// used to create an admin first.
	if auth.IsBootstrapFromContext(r.Context()) && !h.registry.IsAdminBypass(role) {
		h.adapter.Respond(w, r, 0, nil, errFirstTokenNotAdmin)
		return
	}

	token, raw, err := auth.IssueToken(r.Context(), h.tokens, req.Name, role)
	if err != nil {
		h.internalError(w, r, "failed to create token", err)
		return
	}

	h.logger.Info("token created",
		"request_id", middleware.GetRequestID(r.Context()),
		"id", token.ID,
		"name", token.Name,
		"role", token.Role,
	)

	h.adapter.Respond(w, r, http.StatusCreated, CreateTokenResponse{
		TokenResponse: toResponse(token),
		Token:         raw,
	}, nil)
}

// HandleGetToken returns one token
// GET /tokens/{id}
func (h *Handler) HandleGetToken(w http.ResponseWriter, r *http.Request) {
	id, err := tokenID(r)
	if err != nil {
		h.adapter.Respond(w, r, 0, nil, err)
		return
	}

	token, err := h.tokens.GetTokenByID(r.Context(), id)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			h.adapter.Respond(w, r, 0, nil, apierror.NotFound("token not found"))
			return
		}
		h.internalError(w, r, "failed to get token", err)
		return
	}

	h.adapter.Respond(w, r, http.StatusOK, toResponse(token), nil)
}

// HandleDeleteToken deletes a token. The last admin token cannot be deleted.
// DELETE /tokens/{id}
func (h *Handler) HandleDeleteToken(w http.ResponseWriter, r *http.Request) {
	id, err := tokenID(r)
	if err != nil {
		h.adapter.Respond(w, r, 0, nil, err)
		return
	}

	token, err := h.tokens.GetTokenByID(r.Context(), id)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			h.adapter.Respond(w, r, 0, nil, apierror.NotFound("token not found"))
			return
		}
		h.internalError(w, r, "failed to get token", err)
		return
	}

	if h.registry.IsAdminBypass(token.Role) {
		tokens, err := h.tokens.ListTokens(r.Context())
		if err != nil {
			h.internalError(w, r, "failed to list tokens", err)
			return
		}
		admins := lo.CountBy(tokens, func(t *storage.Token) bool {
			return h.registry.IsAdminBypass(t.Role)
		})
		if admins <= 1 {
			h.adapter.Respond(w, r, 0, nil, errLastAdmin)
			return
		}
	}

	if err := h.tokens.DeleteToken(r.Context(), id); err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			h.adapter.Respond(w, r, 0, nil, apierror.NotFound("token not found"))
			return
		}
		h.internalError(w, r, "failed to delete token", err)
		return
	}

	h.logger.Info("token deleted",
		"request_id", middleware.GetRequestID(r.Context()),
		"id", id,
	)
	w.WriteHeader(http.StatusNoContent)
}

func tokenID(r *http.Request) (int64, error) {
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil || id <= 0 {
		return 0, apierror.BadRequest("invalid token ID")
	}
	return id, nil
}

func (h *Handler) internalError(w http.ResponseWriter, r *http.Request, msg string, err error) {
	h.logger.Error(msg,
		"request_id", middleware.GetRequestID(r.Context()),
		"error", err,
	)
	h.adapter.Respond(w, r, 0, nil, fmt.Errorf("%s: %w", msg, err))
}
