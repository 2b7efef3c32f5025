package records

import (
	"bytes"
	"context"
	"net/http"
	"strconv"

	"github.com/samber/lo"

	"github.com/placementcell/campus-api/internal/middleware"
	"github.com/placementcell/campus-api/internal/sanitize"
	"github.com/placementcell/campus-api/internal/storage"
)

// idColumn holds the document ID in exports. The underscore keeps it apart
// from an "id" field inside the documents.
const idColumn = "_id"

// HandleExport writes a collection as CSV, one row per document and one
// column per top-level field.
// GET /{collection}/export.csv
func (h *Handler) HandleExport(w http.ResponseWriter, r *http.Request) {
	collection, _, err := pathParams(r, false)
	if err != nil {
		h.adapter.Respond(w, r, 0, nil, err)
		return
	}

	docs, err := h.collect(r.Context(), collection)
	if err != nil {
		h.internalError(w, r, "failed to list documents", err)
		return
	}

	header, rows := h.tabulate(r.Context(), docs)

	var buf bytes.Buffer
	if err := h.exporter.Write(&buf, h.adapter.Role(r.Context()), header, rows); err != nil {
		h.internalError(w, r, "failed to write export", err)
		return
	}

	w.Header().Set("Content-Type", "text/csv; charset=utf-8")
	w.Header().Set("Content-Disposition", `attachment; filename="`+collection+`.csv"`)
	w.WriteHeader(http.StatusOK)
	if _, err := w.Write(buf.Bytes()); err != nil {
		h.logger.Debug("failed to write export", "error", err)
	}
}

// collect pages through a collection, stopping at maxExportRows.
func (h *Handler) collect(ctx context.Context, collection string) ([]*storage.Document, error) {
	var all []*storage.Document
	for offset := 0; len(all) < maxExportRows; offset += maxLimit {
		page, err := h.docs.ListDocuments(ctx, collection, min(maxLimit, maxExportRows-len(all)), offset)
		if err != nil {
			return nil, err
		}
		all = append(all, page...)
		if len(page) < maxLimit {
			break
		}
	}
	return all, nil
}

// tabulate flattens documents into CSV rows. Columns are the union of
// top-level keys in first-seen order. Only the first MaxKeys keys of a
// document are read, and the header stops growing at MaxKeys columns.
func (h *Handler) tabulate(ctx context.Context, docs []*storage.Document) ([]string, [][]string) {
	maxKeys := h.limits.MaxKeys
	if maxKeys <= 0 {
		maxKeys = sanitize.DefaultLimits().MaxKeys
	}

	objects := make([]*sanitize.Keyed, 0, len(docs))
	ids := make([]string, 0, len(docs))
	columns := make([]string, 0, min(maxKeys, 64))
	seen := make(map[string]struct{})
	dropped := 0
	for _, d := range docs {
		v, err := sanitize.Decode(d.Body, h.limits.MaxDepth)
		if err != nil || v.Kind() != sanitize.KindKeyed {
			h.logger.Warn("skipping document in export",
				"collection", d.Collection,
				"id", d.ID,
			)
			continue
		}
		objects = append(objects, v.Keyed())
		ids = append(ids, d.ID)

		keys := v.Keyed().Keys()
		if len(keys) > maxKeys {
			dropped += len(keys) - maxKeys
			keys = keys[:maxKeys]
		}
		for _, key := range lo.Without(keys, idColumn) {
			if _, ok := seen[key]; ok {
				continue
			}
			if len(columns) == maxKeys {
				dropped++
				continue
			}
			seen[key] = struct{}{}
			columns = append(columns, key)
		}
	}
	if dropped > 0 {
		h.logger.Debug("export key bound hit",
			"request_id", middleware.GetRequestID(ctx),
			"keys_dropped", dropped,
		)
	}

	header := append([]string{idColumn}, columns...)
	rows := make([][]string, len(objects))
	for i, obj := range objects {
		row := make([]string, len(header))
		row[0] = ids[i]
		for j, key := range header[1:] {
			if v, ok := obj.Get(key); ok {
				row[j+1] = h.cell(ctx, v)
			}
		}
		rows[i] = row
	}
	return header, rows
}

// cell renders one field. Nested objects and arrays are sanitized for the
// caller and written as JSON.
func (h *Handler) cell(ctx context.Context, v sanitize.Value) string {
	switch v.Kind() {
	case sanitize.KindString:
		s, _ := v.StringValue()
		return s
	case sanitize.KindNumber:
		n, _ := v.NumberValue()
		return n.String()
	case sanitize.KindBool:
		b, _ := v.BoolValue()
		return strconv.FormatBool(b)
	case sanitize.KindSequence, sanitize.KindKeyed:
		data, err := h.adapter.SanitizeValue(ctx, v).MarshalJSON()
		if err != nil {
			return ""
		}
		return string(data)
	default:
		return ""
	}
}
