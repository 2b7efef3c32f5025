//go:build e2e

package e2e

import (
	"encoding/json"
	"fmt"
	"net/http"
	"os"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var (
	baseURL      string
	bootstrapKey string
)

const studentRecord = `{"name":"Asha","email":"john.doe@example.com","phoneNo":"9876543210",` +
	`"password":"hunter2","aadhaarNumber":"123456789012","guardian":{"phone":"9123456789","apiKey":"k"}}`

func TestMain(m *testing.M) {
	baseURL = getEnv("CAMPUS_API_URL", "http://localhost:8080")
	bootstrapKey = getEnv("BOOTSTRAP_KEY", "e2e-bootstrap-key")

	if err := waitForService(baseURL+"/health", 30*time.Second); err != nil {
		fmt.Fprintf(os.Stderr, "Server not ready: %v\n", err)
		os.Exit(1)
	}

	os.Exit(m.Run())
}

func TestE2E_HealthAndReady(t *testing.T) {
	for _, path := range []string{"/health", "/ready"} {
		resp := apiRequest(t, http.MethodGet, path, "", nil)
		body := readBody(t, resp)
		require.Equal(t, http.StatusOK, resp.StatusCode, body)
		assert.Contains(t, body, `"status":"ok"`)
		assert.Equal(t, "nosniff", resp.Header.Get("X-Content-Type-Options"))
	}
}

func TestE2E_RequiresToken(t *testing.T) {
	resp := apiRequest(t, http.MethodGet, "/api/v1/collections/students", "", nil)
	body := readBody(t, resp)
	require.Equal(t, http.StatusUnauthorized, resp.StatusCode)
	assert.Contains(t, body, `"error":"invalid_credentials"`)

	resp = apiRequest(t, http.MethodGet, "/api/v1/collections/students", "1.not-a-real-secret", nil)
	readBody(t, resp)
	require.Equal(t, http.StatusUnauthorized, resp.StatusCode)
}

func TestE2E_BootstrapKeyLockedAfterAdminExists(t *testing.T) {
	getAdminToken(t)

	resp := apiRequest(t, http.MethodGet, "/api/v1/whoami", bootstrapKey, nil)
	readBody(t, resp)
	require.Equal(t, http.StatusUnauthorized, resp.StatusCode)
}

func TestE2E_ReadSanitizedByRole(t *testing.T) {
	putDocument(t, "e2e_students", "s1", studentRecord)

	tests := []struct {
		role     string
		contains []string
		absent   []string
	}{
		{
			role:     "STUDENT",
			contains: []string{`"email":"j******e@example.com"`, `"phoneNo":"******3210"`, `"aadhaarNumber":"XXXX-XXXX-9012"`},
			absent:   []string{"hunter2", "apiKey", "9876543210"},
		},
		{
			role:     "TEACHER",
			contains: []string{`"email":"john.doe@example.com"`, `"phoneNo":"******3210"`},
			absent:   []string{"hunter2", "apiKey"},
		},
		{
			role:     "ADMIN",
			contains: []string{`"phoneNo":"9876543210"`, `"aadhaarNumber":"123456789012"`},
			absent:   []string{"hunter2", "apiKey"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.role, func(t *testing.T) {
			token := tokenForRole(t, tt.role)

			resp := apiRequest(t, http.MethodGet, "/api/v1/collections/e2e_students/s1", token, nil)
			body := readBody(t, resp)
			require.Equal(t, http.StatusOK, resp.StatusCode, body)

			for _, s := range tt.contains {
				assert.Contains(t, body, s)
			}
			for _, s := range tt.absent {
				assert.NotContains(t, body, s)
			}
		})
	}
}

func TestE2E_ListAndExport(t *testing.T) {
	putDocument(t, "e2e_roster", "a", `{"name":"Ravi","email":"ravi@example.com","password":"p1"}`)
	putDocument(t, "e2e_roster", "b", `{"name":"Meera","email":"meera@example.com","password":"p2"}`)
	student := tokenForRole(t, "STUDENT")

	resp := apiRequest(t, http.MethodGet, "/api/v1/collections/e2e_roster?limit=10", student, nil)
	body := readBody(t, resp)
	require.Equal(t, http.StatusOK, resp.StatusCode, body)

	var list struct {
		Items []struct {
			ID string `json:"id"`
		} `json:"items"`
	}
	require.NoError(t, json.Unmarshal([]byte(body), &list))
	require.Len(t, list.Items, 2)
	assert.Equal(t, "a", list.Items[0].ID)
	assert.NotContains(t, body, `"password"`)

	resp = apiRequest(t, http.MethodGet, "/api/v1/collections/e2e_roster/export.csv", student, nil)
	csv := readBody(t, resp)
	require.Equal(t, http.StatusOK, resp.StatusCode, csv)
	assert.True(t, strings.HasPrefix(resp.Header.Get("Content-Type"), "text/csv"))

	lines := strings.Split(strings.TrimSpace(csv), "\n")
	require.Len(t, lines, 3)
	assert.Equal(t, "_id,name,email", lines[0])
	assert.NotContains(t, csv, "password")
	assert.NotContains(t, csv, "ravi@example.com")
}

func TestE2E_StudentCannotWriteOrManageTokens(t *testing.T) {
	student := tokenForRole(t, "STUDENT")

	resp := apiRequest(t, http.MethodPut, "/api/v1/collections/e2e_students/x", student, []byte(`{"a":1}`))
	readBody(t, resp)
	assert.Equal(t, http.StatusForbidden, resp.StatusCode)

	resp = apiRequest(t, http.MethodGet, "/api/v1/tokens", student, nil)
	readBody(t, resp)
	assert.Equal(t, http.StatusForbidden, resp.StatusCode)

	resp = apiRequest(t, http.MethodGet, "/api/v1/whoami", student, nil)
	body := readBody(t, resp)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Contains(t, body, `"role":"STUDENT"`)
	assert.Contains(t, body, `"admin":false`)
}
