// Package records serves the document collections. Every successful
// response is written through the pipeline adapter, so callers only ever see
// payloads sanitized for their role.
package records

import (
	"bytes"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"regexp"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/placementcell/campus-api/internal/apierror"
	"github.com/placementcell/campus-api/internal/export"
	"github.com/placementcell/campus-api/internal/middleware"
	"github.com/placementcell/campus-api/internal/pipeline"
	"github.com/placementcell/campus-api/internal/sanitize"
	"github.com/placementcell/campus-api/internal/storage"
)

const (
	defaultLimit = 50
	maxLimit     = 500

	// maxExportRows caps one CSV export.
	maxExportRows = 10_000
)

// namePattern restricts collection names and document IDs.
var namePattern = regexp.MustCompile(`^[A-Za-z0-9_-]{1,64}$`)

// Handler serves document endpoints.
type Handler struct {
	docs     storage.DocumentStore
	adapter  *pipeline.Adapter
	exporter *export.Exporter
	limits   sanitize.Limits
	logger   *slog.Logger
}

// NewHandler creates a new records handler. limits bound how much of each
// document the CSV export reads; pass the engine's Limits().
// If logger is nil, slog.Default() will be used.
func NewHandler(docs storage.DocumentStore, adapter *pipeline.Adapter, exporter *export.Exporter, limits sanitize.Limits, logger *slog.Logger) *Handler {
	if logger == nil {
		logger = slog.Default()
	}
	return &Handler{
		docs:     docs,
		adapter:  adapter,
		exporter: exporter,
		limits:   limits,
		logger:   logger,
	}
}

// DocumentResponse is a document as returned to clients.
type DocumentResponse struct {
	Collection string          `json:"collection"`
	ID         string          `json:"id"`
	Data       json.RawMessage `json:"data"`
	CreatedAt  time.Time       `json:"createdAt"`
	UpdatedAt  time.Time       `json:"updatedAt"`
}

// ListResponse is one page of a collection.
type ListResponse struct {
	Items  []DocumentResponse `json:"items"`
	Limit  int                `json:"limit"`
	Offset int                `json:"offset"`
}

func toResponse(d *storage.Document) DocumentResponse {
	return DocumentResponse{
		Collection: d.Collection,
		ID:         d.ID,
		Data:       d.Body,
		CreatedAt:  d.CreatedAt,
		UpdatedAt:  d.UpdatedAt,
	}
}

// pathParams validates the {collection} and, when withID is set, {id} URL
// parameters.
func pathParams(r *http.Request, withID bool) (collection, id string, err error) {
	collection = chi.URLParam(r, "collection")
	if !namePattern.MatchString(collection) {
		return "", "", apierror.BadRequest("invalid collection name")
	}
	if withID {
		id = chi.URLParam(r, "id")
		if !namePattern.MatchString(id) {
			return "", "", apierror.BadRequest("invalid document id")
		}
	}
	return collection, id, nil
}

// queryInt parses an optional non-negative integer query parameter.
func queryInt(r *http.Request, name string, def int) (int, error) {
	raw := r.URL.Query().Get(name)
	if raw == "" {
		return def, nil
	}
	n, err := strconv.Atoi(raw)
	if err != nil || n < 0 {
		return 0, apierror.BadRequest("invalid " + name)
	}
	return n, nil
}

// HandleList lists a page of documents.
// GET /{collection}?limit=&offset=
func (h *Handler) HandleList(w http.ResponseWriter, r *http.Request) {
	collection, _, err := pathParams(r, false)
	if err != nil {
		h.adapter.Respond(w, r, 0, nil, err)
		return
	}

	limit, err := queryInt(r, "limit", defaultLimit)
	if err != nil {
		h.adapter.Respond(w, r, 0, nil, err)
		return
	}
	if limit == 0 || limit > maxLimit {
		limit = maxLimit
	}
	offset, err := queryInt(r, "offset", 0)
	if err != nil {
		h.adapter.Respond(w, r, 0, nil, err)
		return
	}

	docs, err := h.docs.ListDocuments(r.Context(), collection, limit, offset)
	if err != nil {
		h.internalError(w, r, "failed to list documents", err)
		return
	}

	items := make([]DocumentResponse, len(docs))
	for i, d := range docs {
		items[i] = toResponse(d)
	}
	h.adapter.Respond(w, r, http.StatusOK, ListResponse{Items: items, Limit: limit, Offset: offset}, nil)
}

// HandleGet returns one document.
// GET /{collection}/{id}
func (h *Handler) HandleGet(w http.ResponseWriter, r *http.Request) {
	collection, id, err := pathParams(r, true)
	if err != nil {
		h.adapter.Respond(w, r, 0, nil, err)
		return
	}

	doc, err := h.docs.GetDocument(r.Context(), collection, id)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			h.adapter.Respond(w, r, 0, nil, apierror.NotFound("document not found"))
			return
		}
		h.internalError(w, r, "failed to get document", err)
		return
	}

	h.adapter.Respond(w, r, http.StatusOK, toResponse(doc), nil)
}

// HandlePut creates or replaces a document. The body must be a JSON object.
// PUT /{collection}/{id}
func (h *Handler) HandlePut(w http.ResponseWriter, r *http.Request) {
	collection, id, err := pathParams(r, true)
	if err != nil {
		h.adapter.Respond(w, r, 0, nil, err)
		return
	}

	body, err := io.ReadAll(r.Body)
	if err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			h.adapter.Respond(w, r, 0, nil,
				apierror.New(http.StatusRequestEntityTooLarge, apierror.CodeTooLarge, "request body too large"))
			return
		}
		h.adapter.Respond(w, r, 0, nil, apierror.BadRequest("failed to read request body"))
		return
	}
	body = bytes.TrimSpace(body)
	if len(body) == 0 || body[0] != '{' {
		h.adapter.Respond(w, r, 0, nil, apierror.BadRequest("document must be a JSON object"))
		return
	}

	created, err := h.docs.PutDocument(r.Context(), collection, id, body)
	if err != nil {
		if errors.Is(err, storage.ErrInvalidDocument) {
			h.adapter.Respond(w, r, 0, nil, apierror.BadRequest("document is not valid JSON"))
			return
		}
		h.internalError(w, r, "failed to store document", err)
		return
	}

	doc, err := h.docs.GetDocument(r.Context(), collection, id)
	if err != nil {
		h.internalError(w, r, "failed to reload document", err)
		return
	}

	status := http.StatusOK
	if created {
		status = http.StatusCreated
	}
	h.logger.Info("document stored",
		"request_id", middleware.GetRequestID(r.Context()),
		"collection", collection,
		"id", id,
		"created", created,
	)
	h.adapter.Respond(w, r, status, toResponse(doc), nil)
}

// HandleDelete removes a document.
// DELETE /{collection}/{id}
func (h *Handler) HandleDelete(w http.ResponseWriter, r *http.Request) {
	collection, id, err := pathParams(r, true)
	if err != nil {
		h.adapter.Respond(w, r, 0, nil, err)
		return
	}

	if err := h.docs.DeleteDocument(r.Context(), collection, id); err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			h.adapter.Respond(w, r, 0, nil, apierror.NotFound("document not found"))
			return
		}
		h.internalError(w, r, "failed to delete document", err)
		return
	}

	h.logger.Info("document deleted",
		"request_id", middleware.GetRequestID(r.Context()),
		"collection", collection,
		"id", id,
	)
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) internalError(w http.ResponseWriter, r *http.Request, msg string, err error) {
	h.logger.Error(msg,
		"request_id", middleware.GetRequestID(r.Context()),
		"error", err,
	)
	apierror.WriteErr(w, err)
}
