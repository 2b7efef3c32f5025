package records

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/placementcell/campus-api/internal/auth"
	"github.com/placementcell/campus-api/internal/export"
	"github.com/placementcell/campus-api/internal/pipeline"
	"github.com/placementcell/campus-api/internal/policy"
	"github.com/placementcell/campus-api/internal/sanitize"
	"github.com/placementcell/campus-api/internal/storage"
	"github.com/placementcell/campus-api/internal/testutil/mockstore"
)

const studentDoc = `{"name":"Asha","email":"john.doe@example.com","phoneNo":"9876543210",` +
	`"password":"hunter2","aadhaarNumber":"123456789012","guardian":{"phone":"9123456789","apiKey":"k"}}`

func newTestHandler(t *testing.T, docs storage.DocumentStore) http.Handler {
	t.Helper()
	registry := policy.Default()
	logger := slog.New(slog.DiscardHandler)
	engine := sanitize.NewEngine(registry, nil, sanitize.DefaultLimits())
	adapter := pipeline.New(engine, auth.RoleFromContext, logger)
	h := NewHandler(docs, adapter, export.New(registry, nil), engine.Limits(), logger)
	return h.Routes(auth.RequireAdmin(registry))
}

func newStore(t *testing.T) *storage.SQLiteStorage {
	t.Helper()
	s, err := storage.New(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close() })
	return s
}

func serve(t *testing.T, h http.Handler, role policy.Role, method, path, body string) *httptest.ResponseRecorder {
	t.Helper()
	var reader io.Reader
	if body != "" {
		reader = strings.NewReader(body)
	}
	req := httptest.NewRequest(method, path, reader)
	if role != "" {
		req = req.WithContext(auth.WithRole(req.Context(), role))
	}
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func seed(t *testing.T, s *storage.SQLiteStorage, collection, id, body string) {
	t.Helper()
	_, err := s.PutDocument(context.Background(), collection, id, []byte(body))
	require.NoError(t, err)
}

func TestHandleGet_SanitizesByRole(t *testing.T) {
	t.Parallel()

	store := newStore(t)
	seed(t, store, "students", "s1", studentDoc)
	h := newTestHandler(t, store)

	tests := []struct {
		role     policy.Role
		contains []string
		absent   []string
	}{
		{
			role:     policy.RoleStudent,
			contains: []string{`"email":"j******e@example.com"`, `"phoneNo":"******3210"`, `"aadhaarNumber":"XXXX-XXXX-9012"`, `"phone":"******6789"`},
			absent:   []string{"hunter2", "apiKey", "9876543210"},
		},
		{
			role:     policy.RoleTeacher,
			contains: []string{`"email":"john.doe@example.com"`, `"phoneNo":"******3210"`, `"aadhaarNumber":"XXXX-XXXX-9012"`},
			absent:   []string{"hunter2", "apiKey"},
		},
		{
			role:     policy.RoleAdmin,
			contains: []string{`"phoneNo":"9876543210"`, `"aadhaarNumber":"123456789012"`},
			absent:   []string{"hunter2", "apiKey"},
		},
	}

	for _, tt := range tests {
		t.Run(string(tt.role), func(t *testing.T) {
			rec := serve(t, h, tt.role, http.MethodGet, "/students/s1", "")
			require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
			assert.Equal(t, "application/json", rec.Header().Get("Content-Type"))

			body := rec.Body.String()
			assert.Contains(t, body, `"collection":"students"`)
			for _, s := range tt.contains {
				assert.Contains(t, body, s)
			}
			for _, s := range tt.absent {
				assert.NotContains(t, body, s)
			}
		})
	}
}

func TestHandleGet_Errors(t *testing.T) {
	t.Parallel()

	store := &mockstore.MockStorage{
		GetDocumentFunc: func(_ context.Context, _, id string) (*storage.Document, error) {
			if id == "broken" {
				return nil, errors.New("disk error")
			}
			return nil, storage.ErrNotFound
		},
	}
	h := newTestHandler(t, store)

	tests := []struct {
		path       string
		wantStatus int
	}{
		{"/students/missing", http.StatusNotFound},
		{"/students/broken", http.StatusInternalServerError},
		{"/students/bad.id", http.StatusBadRequest},
		{"/bad$name/x", http.StatusBadRequest},
	}
	for _, tt := range tests {
		rec := serve(t, h, policy.RoleStudent, http.MethodGet, tt.path, "")
		assert.Equal(t, tt.wantStatus, rec.Code, tt.path)
		assert.NotContains(t, rec.Body.String(), "disk error")
	}
}

func TestHandleList(t *testing.T) {
	t.Parallel()

	store := newStore(t)
	seed(t, store, "students", "a", `{"email":"asha@example.com"}`)
	seed(t, store, "students", "b", `{"email":"ravi@example.com"}`)
	seed(t, store, "students", "c", `{"email":"meera@example.com"}`)
	h := newTestHandler(t, store)

	rec := serve(t, h, policy.RoleStudent, http.MethodGet, "/students?limit=2&offset=1", "")
	require.Equal(t, http.StatusOK, rec.Code)

	body := rec.Body.String()
	assert.Contains(t, body, `"limit":2`)
	assert.Contains(t, body, `"offset":1`)
	assert.Contains(t, body, `"id":"b"`)
	assert.Contains(t, body, `"id":"c"`)
	assert.NotContains(t, body, `"id":"a"`)
	assert.NotContains(t, body, "ravi@example.com")
	assert.Contains(t, body, `"email":"r**i@example.com"`)
}

func TestHandleList_EmptyCollection(t *testing.T) {
	t.Parallel()

	h := newTestHandler(t, newStore(t))
	rec := serve(t, h, policy.RoleTeacher, http.MethodGet, "/nothing", "")

	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"items":[],"limit":50,"offset":0}`, rec.Body.String())
}

func TestHandleList_BadQuery(t *testing.T) {
	t.Parallel()

	h := newTestHandler(t, newStore(t))
	for _, q := range []string{"limit=-1", "limit=x", "offset=-5", "offset=1.5"} {
		rec := serve(t, h, policy.RoleTeacher, http.MethodGet, "/students?"+q, "")
		assert.Equal(t, http.StatusBadRequest, rec.Code, q)
	}
}

func TestHandlePut(t *testing.T) {
	t.Parallel()

	store := newStore(t)
	h := newTestHandler(t, store)

	rec := serve(t, h, policy.RoleAdmin, http.MethodPut, "/students/s1", studentDoc)
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	assert.NotContains(t, rec.Body.String(), "hunter2")

	rec = serve(t, h, policy.RoleAdmin, http.MethodPut, "/students/s1", `{"name":"Asha K"}`)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"name":"Asha K"`)

	doc, err := store.GetDocument(context.Background(), "students", "s1")
	require.NoError(t, err)
	assert.JSONEq(t, `{"name":"Asha K"}`, string(doc.Body))
}

func TestHandlePut_Rejects(t *testing.T) {
	t.Parallel()

	h := newTestHandler(t, newStore(t))

	tests := []struct {
		name       string
		role       policy.Role
		body       string
		wantStatus int
	}{
		{"student cannot write", policy.RoleStudent, `{"a":1}`, http.StatusForbidden},
		{"teacher cannot write", policy.RoleTeacher, `{"a":1}`, http.StatusForbidden},
		{"array body", policy.RoleAdmin, `[1,2]`, http.StatusBadRequest},
		{"scalar body", policy.RoleAdmin, `"x"`, http.StatusBadRequest},
		{"empty body", policy.RoleAdmin, ``, http.StatusBadRequest},
		{"invalid json", policy.RoleAdmin, `{"a":`, http.StatusBadRequest},
		{"trailing data", policy.RoleAdmin, `{"a":1} {"b":2}`, http.StatusBadRequest},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := serve(t, h, tt.role, http.MethodPut, "/students/s1", tt.body)
			assert.Equal(t, tt.wantStatus, rec.Code, rec.Body.String())
		})
	}
}

func TestHandlePut_BodyTooLarge(t *testing.T) {
	t.Parallel()

	h := newTestHandler(t, newStore(t))
	req := httptest.NewRequest(http.MethodPut, "/students/s1", strings.NewReader(`{"a":"`+strings.Repeat("x", 64)+`"}`))
	req = req.WithContext(auth.WithRole(req.Context(), policy.RoleAdmin))
	rec := httptest.NewRecorder()
	req.Body = http.MaxBytesReader(rec, req.Body, 16)

	h.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusRequestEntityTooLarge, rec.Code)
}

func TestHandleDelete(t *testing.T) {
	t.Parallel()

	store := newStore(t)
	seed(t, store, "students", "s1", `{"a":1}`)
	h := newTestHandler(t, store)

	rec := serve(t, h, policy.RoleTeacher, http.MethodDelete, "/students/s1", "")
	assert.Equal(t, http.StatusForbidden, rec.Code)

	rec = serve(t, h, policy.RoleSuperAdmin, http.MethodDelete, "/students/s1", "")
	assert.Equal(t, http.StatusNoContent, rec.Code)

	rec = serve(t, h, policy.RoleSuperAdmin, http.MethodDelete, "/students/s1", "")
	assert.Equal(t, http.StatusNotFound, rec.Code)
}
