//go:build e2e

package e2e

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"os"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

// adminToken is bootstrapped once per suite; the bootstrap key is locked
// out as soon as the first admin token exists.
var (
	adminToken   string
	adminTokenMu sync.Mutex
)

// getEnv returns an environment variable or a fallback value.
func getEnv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

// waitForService polls a URL until it's healthy or timeout is reached.
func waitForService(url string, timeout time.Duration) error {
	client := &http.Client{Timeout: 2 * time.Second}
	deadline := time.Now().Add(timeout)

	for time.Now().Before(deadline) {
		resp, err := client.Get(url)
		if err == nil && resp.StatusCode == http.StatusOK {
			resp.Body.Close()
			return nil
		}
		if resp != nil {
			resp.Body.Close()
		}
		time.Sleep(500 * time.Millisecond)
	}
	return fmt.Errorf("service not ready after %v", timeout)
}

// apiRequest sends a request to the server with an optional bearer token.
func apiRequest(t *testing.T, method, path, token string, body []byte) *http.Response {
	t.Helper()

	req, err := http.NewRequest(method, baseURL+path, bytes.NewReader(body))
	require.NoError(t, err)
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	return resp
}

// readBody drains and closes resp.Body.
func readBody(t *testing.T, resp *http.Response) string {
	t.Helper()
	defer resp.Body.Close()
	data, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	return string(data)
}

// createToken issues a token through the admin API and returns its raw
// value and id.
func createToken(t *testing.T, bearer, name, role string) (string, int64) {
	t.Helper()

	body, _ := json.Marshal(map[string]string{"name": name, "role": role})
	resp := apiRequest(t, http.MethodPost, "/api/v1/tokens", bearer, body)
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusCreated {
		content, _ := io.ReadAll(resp.Body)
		t.Fatalf("failed to create %s token, got status %d: %s", role, resp.StatusCode, content)
	}

	var created struct {
		ID    int64  `json:"id"`
		Token string `json:"token"`
	}
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&created))
	require.NotEmpty(t, created.Token)

	return created.Token, created.ID
}

// getAdminToken returns the suite's admin token, bootstrapping it with the
// bootstrap key on first use.
func getAdminToken(t *testing.T) string {
	t.Helper()

	adminTokenMu.Lock()
	defer adminTokenMu.Unlock()

	if adminToken != "" {
		return adminToken
	}
	if token := os.Getenv("ADMIN_TOKEN"); token != "" {
		adminToken = token
		return adminToken
	}

	adminToken, _ = createToken(t, bootstrapKey, "e2e-admin", "ADMIN")
	return adminToken
}

// tokenForRole creates a token for role that is deleted when the test ends.
func tokenForRole(t *testing.T, role string) string {
	t.Helper()

	admin := getAdminToken(t)
	token, id := createToken(t, admin, "e2e-"+role, role)
	t.Cleanup(func() {
		resp := apiRequest(t, http.MethodDelete, fmt.Sprintf("/api/v1/tokens/%d", id), admin, nil)
		resp.Body.Close()
	})
	return token
}

// putDocument stores body under collection/id with the admin token and
// deletes it when the test ends.
func putDocument(t *testing.T, collection, id, body string) {
	t.Helper()

	path := "/api/v1/collections/" + collection + "/" + id
	resp := apiRequest(t, http.MethodPut, path, getAdminToken(t), []byte(body))
	content := readBody(t, resp)
	require.Contains(t, []int{http.StatusOK, http.StatusCreated}, resp.StatusCode, content)

	t.Cleanup(func() {
		resp := apiRequest(t, http.MethodDelete, path, getAdminToken(t), nil)
		resp.Body.Close()
	})
}
