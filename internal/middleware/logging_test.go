package middleware

import (
	"bytes"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/placementcell/campus-api/internal/sanitize"
)

func debugLogger(buf *bytes.Buffer) *slog.Logger {
	return slog.New(slog.NewJSONHandler(buf, &slog.HandlerOptions{Level: slog.LevelDebug}))
}

// TestHTTPLogging_DebugMode verifies logging happens when level is DEBUG.
func TestHTTPLogging_DebugMode(t *testing.T) {
	t.Parallel()

	var buf bytes.Buffer
	handler := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte(`{"result":"ok"}`))
	})

	middleware := HTTPLogging(debugLogger(&buf), nil)(handler)

	req := httptest.NewRequest("GET", "/api/v1/collections/students?limit=5", nil)
	req.Header.Set("User-Agent", "test-client")
	rec := httptest.NewRecorder()

	middleware.ServeHTTP(rec, req)

	logOutput := buf.String()
	if logOutput == "" {
		t.Fatal("Expected logs in DEBUG mode, got none")
	}
	if !strings.Contains(logOutput, "GET") {
		t.Error("Log should contain method")
	}
	if !strings.Contains(logOutput, "/api/v1/collections/students") {
		t.Error("Log should contain URL")
	}
	if !strings.Contains(logOutput, "limit=5") {
		t.Error("Log should contain query params")
	}
	if !strings.Contains(logOutput, "HTTP Request") || !strings.Contains(logOutput, "HTTP Response") {
		t.Error("Log should contain both request and response entries")
	}
}

// TestHTTPLogging_InfoMode_NoLogs verifies no logging at INFO level.
func TestHTTPLogging_InfoMode_NoLogs(t *testing.T) {
	t.Parallel()

	var buf bytes.Buffer
	logger := slog.New(slog.NewJSONHandler(&buf, &slog.HandlerOptions{Level: slog.LevelInfo}))

	handler := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	})

	middleware := HTTPLogging(logger, sanitize.NewEngine(nil, nil, sanitize.Limits{}))(handler)

	req := httptest.NewRequest("GET", "/test", nil)
	rec := httptest.NewRecorder()

	middleware.ServeHTTP(rec, req)

	if buf.String() != "" {
		t.Errorf("Expected no logs in INFO mode, got: %s", buf.String())
	}
}

// TestHTTPLogging_MasksHeaders verifies sensitive headers are masked.
func TestHTTPLogging_MasksHeaders(t *testing.T) {
	t.Parallel()

	var buf bytes.Buffer
	handler := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	})

	middleware := HTTPLogging(debugLogger(&buf), nil)(handler)

	req := httptest.NewRequest("GET", "/test", nil)
	req.Header.Set("Authorization", "Bearer secret-token-12345")
	req.Header.Set("User-Agent", "test-client")
	rec := httptest.NewRecorder()

	middleware.ServeHTTP(rec, req)

	logOutput := buf.String()
	if strings.Contains(logOutput, "secret-token-12345") {
		t.Error("Full authorization token should be masked")
	}
	if !strings.Contains(logOutput, "****2345") {
		t.Error("Should show last 4 chars of token")
	}
	if !strings.Contains(logOutput, "test-client") {
		t.Error("User-Agent should not be masked")
	}
}

// TestHTTPLogging_RedactsJSONBodies verifies secrets are dropped and
// identifiers masked in both logged bodies.
func TestHTTPLogging_RedactsJSONBodies(t *testing.T) {
	t.Parallel()

	var buf bytes.Buffer
	engine := sanitize.NewEngine(nil, nil, sanitize.Limits{})

	handler := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		w.Write([]byte(`{"id":123,"refreshToken":"tok-abc","aadhaarNumber":"123456789012"}`))
	})

	middleware := HTTPLogging(debugLogger(&buf), engine)(handler)

	req := httptest.NewRequest("POST", "/test", strings.NewReader(`{"name":"Asha","password":"hunter2"}`))
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()

	middleware.ServeHTTP(rec, req)

	logOutput := buf.String()
	if strings.Contains(logOutput, "hunter2") {
		t.Error("Password should be removed from logged request body")
	}
	if strings.Contains(logOutput, "tok-abc") {
		t.Error("Refresh token should be removed from logged response body")
	}
	if strings.Contains(logOutput, "123456789012") {
		t.Error("Aadhaar number should be masked in logged response body")
	}
	if !strings.Contains(logOutput, `XXXX-XXXX-9012`) {
		t.Errorf("Masked aadhaar should be logged, got: %s", logOutput)
	}
	if !strings.Contains(logOutput, `\"id\":123`) {
		t.Errorf("Unclassified field should be kept, got: %s", logOutput)
	}

	// The client still receives the handler's own response.
	if !strings.Contains(rec.Body.String(), "tok-abc") {
		t.Error("Logging must not change the response body")
	}
}

// TestHTTPLogging_HandlerStillReadsBody verifies the body is restored after logging.
func TestHTTPLogging_HandlerStillReadsBody(t *testing.T) {
	t.Parallel()

	var buf bytes.Buffer
	var got string
	handler := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		b, _ := io.ReadAll(r.Body)
		got = string(b)
		w.WriteHeader(http.StatusNoContent)
	})

	middleware := HTTPLogging(debugLogger(&buf), nil)(handler)

	req := httptest.NewRequest("PUT", "/test", strings.NewReader(`{"name":"Asha"}`))
	middleware.ServeHTTP(httptest.NewRecorder(), req)

	if got != `{"name":"Asha"}` {
		t.Errorf("Handler read %q, want original body", got)
	}
}

// TestHTTPLogging_IncludesRequestID verifies request ID is included in logs.
func TestHTTPLogging_IncludesRequestID(t *testing.T) {
	t.Parallel()

	var buf bytes.Buffer
	handler := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	})

	// RequestID runs first so the logger sees the id in the context.
	chain := RequestID(HTTPLogging(debugLogger(&buf), nil)(handler))

	req := httptest.NewRequest("GET", "/test", nil)
	req.Header.Set(RequestIDHeader, "test-request-id-12345")
	rec := httptest.NewRecorder()

	chain.ServeHTTP(rec, req)

	if !strings.Contains(buf.String(), "test-request-id-12345") {
		t.Errorf("Log should contain request ID, got: %s", buf.String())
	}
}

// TestHTTPLogging_RecordsDuration verifies response duration is logged.
func TestHTTPLogging_RecordsDuration(t *testing.T) {
	t.Parallel()

	var buf bytes.Buffer
	handler := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		time.Sleep(10 * time.Millisecond)
		w.WriteHeader(http.StatusOK)
	})

	middleware := HTTPLogging(debugLogger(&buf), nil)(handler)
	middleware.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest("GET", "/test", nil))

	if !strings.Contains(buf.String(), "duration_ms") {
		t.Error("Log should contain duration_ms")
	}
}

// TestHTTPLogging_CapturesStatusCode verifies response status code is captured.
func TestHTTPLogging_CapturesStatusCode(t *testing.T) {
	t.Parallel()

	var buf bytes.Buffer
	handler := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusCreated)
		w.Write([]byte("created"))
	})

	middleware := HTTPLogging(debugLogger(&buf), nil)(handler)
	rec := httptest.NewRecorder()
	middleware.ServeHTTP(rec, httptest.NewRequest("POST", "/test", nil))

	if !strings.Contains(buf.String(), `"status_code":201`) {
		t.Error("Log should contain status code 201")
	}
	if rec.Code != http.StatusCreated {
		t.Errorf("Client status = %d, want 201", rec.Code)
	}
}

// TestHTTPLogging_BinaryBody verifies binary bodies are summarised.
func TestHTTPLogging_BinaryBody(t *testing.T) {
	t.Parallel()

	var buf bytes.Buffer
	handler := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte{0xFF, 0xFE, 0xFD})
	})

	middleware := HTTPLogging(debugLogger(&buf), nil)(handler)
	middleware.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest("GET", "/test", nil))

	if !strings.Contains(buf.String(), "[BINARY: 3 bytes]") {
		t.Error("Should format binary data in logs")
	}
}

// TestHTTPLogging_TruncatesLargeBody verifies logged bodies are capped.
func TestHTTPLogging_TruncatesLargeBody(t *testing.T) {
	t.Parallel()

	var buf bytes.Buffer
	large := strings.Repeat("a", 3*maxLoggedBody)

	handler := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte(large))
	})

	middleware := HTTPLogging(debugLogger(&buf), nil)(handler)
	rec := httptest.NewRecorder()
	middleware.ServeHTTP(rec, httptest.NewRequest("GET", "/test", nil))

	if !strings.Contains(buf.String(), "...[TRUNCATED]") {
		t.Error("Large body should be truncated in logs")
	}
	if strings.Contains(buf.String(), large) {
		t.Error("Full large body should not be logged")
	}
	if rec.Body.Len() != len(large) {
		t.Errorf("Client received %d bytes, want %d", rec.Body.Len(), len(large))
	}
}
