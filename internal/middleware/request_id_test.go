package middleware

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/google/uuid"
)

func TestRequestID_GeneratesUUID(t *testing.T) {
	t.Parallel()

	var seen string
	handler := RequestID(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		seen = GetRequestID(r.Context())
	}))

	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/test", nil))

	if _, err := uuid.Parse(seen); err != nil {
		t.Errorf("generated ID is not a valid UUID: %q", seen)
	}
	if got := rec.Header().Get(RequestIDHeader); got != seen {
		t.Errorf("response header %q does not match context ID %q", got, seen)
	}
}

func TestRequestID_UniquePerRequest(t *testing.T) {
	t.Parallel()

	handler := RequestID(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	ids := make(map[string]bool)
	for i := 0; i < 50; i++ {
		rec := httptest.NewRecorder()
		handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))
		id := rec.Header().Get(RequestIDHeader)
		if ids[id] {
			t.Fatalf("duplicate request ID %q", id)
		}
		ids[id] = true
	}
}

func TestRequestID_IncomingHeader(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name     string
		incoming string
		reused   bool
	}{
		{"simple", "test-request-id-12345", true},
		{"dots and underscores", "svc.gateway_01-abc", true},
		{"uuid", "6f1c2a9e-1d2b-4c3d-8e4f-5a6b7c8d9e0f", true},
		{"exactly 128", strings.Repeat("a", 128), true},
		{"empty", "", false},
		{"oversized", strings.Repeat("a", 129), false},
		{"newline injection", "abc\nSet-Cookie: x", false},
		{"space", "abc def", false},
		{"control character", "abc\x00", false},
		{"unicode", "idé", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			var seen string
			handler := RequestID(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				seen = GetRequestID(r.Context())
			}))

			req := httptest.NewRequest(http.MethodGet, "/", nil)
			req.Header[RequestIDHeader] = []string{tt.incoming}
			handler.ServeHTTP(httptest.NewRecorder(), req)

			if tt.reused && seen != tt.incoming {
				t.Errorf("expected incoming ID to be reused, got %q", seen)
			}
			if !tt.reused {
				if seen == tt.incoming {
					t.Errorf("expected invalid ID %q to be replaced", tt.incoming)
				}
				if _, err := uuid.Parse(seen); err != nil {
					t.Errorf("replacement ID is not a UUID: %q", seen)
				}
			}
		})
	}
}

func TestGetRequestID(t *testing.T) {
	t.Parallel()

	if id := GetRequestID(context.Background()); id != "" {
		t.Errorf("expected empty ID, got %q", id)
	}
	if id := GetRequestID(WithRequestID(context.Background(), "abc")); id != "abc" {
		t.Errorf("expected abc, got %q", id)
	}
}
