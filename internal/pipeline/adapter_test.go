package pipeline

import (
	"bytes"
	"context"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/placementcell/campus-api/internal/middleware"
	"github.com/placementcell/campus-api/internal/policy"
	"github.com/placementcell/campus-api/internal/sanitize"
)

type roleKey struct{}

// resolveFromContext reads a role stored by withRole.
func resolveFromContext(ctx context.Context) (policy.Role, bool) {
	role, ok := ctx.Value(roleKey{}).(policy.Role)
	return role, ok
}

func withRole(ctx context.Context, role policy.Role) context.Context {
	return context.WithValue(ctx, roleKey{}, role)
}

func newTestAdapter(t *testing.T) (*Adapter, *bytes.Buffer) {
	t.Helper()
	var buf bytes.Buffer
	logger := slog.New(slog.NewJSONHandler(&buf, &slog.HandlerOptions{Level: slog.LevelDebug}))
	engine := sanitize.NewEngine(nil, nil, sanitize.Limits{})
	return New(engine, resolveFromContext, logger), &buf
}

func encode(t *testing.T, v any) string {
	t.Helper()
	data, err := json.Marshal(v)
	require.NoError(t, err)
	return string(data)
}

type profile struct {
	Name     string `json:"name"`
	Email    string `json:"email"`
	PhoneNo  string `json:"phoneNo"`
	Password string `json:"password"`
	Aadhaar  string `json:"aadhaarNumber"`
}

var asha = profile{
	Name:     "Asha",
	Email:    "john.doe@example.com",
	PhoneNo:  "9876543210",
	Password: "hunter2",
	Aadhaar:  "123456789012",
}

func TestApply_ByRole(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name     string
		ctx      context.Context
		expected string
	}{
		{
			name:     "student",
			ctx:      withRole(context.Background(), policy.RoleStudent),
			expected: `{"name":"Asha","email":"j******e@example.com","phoneNo":"******3210","aadhaarNumber":"XXXX-XXXX-9012"}`,
		},
		{
			name:     "teacher",
			ctx:      withRole(context.Background(), policy.RoleTeacher),
			expected: `{"name":"Asha","email":"john.doe@example.com","phoneNo":"******3210","aadhaarNumber":"XXXX-XXXX-9012"}`,
		},
		{
			name:     "admin bypass",
			ctx:      withRole(context.Background(), policy.RoleAdmin),
			expected: `{"name":"Asha","email":"john.doe@example.com","phoneNo":"9876543210","aadhaarNumber":"123456789012"}`,
		},
		{
			name:     "unknown role",
			ctx:      withRole(context.Background(), policy.Role("ALUMNI")),
			expected: `{"name":"Asha","email":"john.doe@example.com","phoneNo":"9876543210","aadhaarNumber":"XXXX-XXXX-9012"}`,
		},
		{
			name:     "anonymous",
			ctx:      context.Background(),
			expected: `{"name":"Asha","email":"john.doe@example.com","phoneNo":"9876543210","aadhaarNumber":"XXXX-XXXX-9012"}`,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			a, _ := newTestAdapter(t)
			assert.Equal(t, tt.expected, encode(t, a.Apply(tt.ctx, asha)))
		})
	}
}

func TestApply_SkipsNilAndScalars(t *testing.T) {
	t.Parallel()

	a, _ := newTestAdapter(t)
	ctx := withRole(context.Background(), policy.RoleStudent)

	assert.Nil(t, a.Apply(ctx, nil))
	assert.Equal(t, "password", a.Apply(ctx, "password"))
	assert.Equal(t, 42, a.Apply(ctx, 42))
	assert.Equal(t, true, a.Apply(ctx, true))

	var missing *profile
	assert.Equal(t, missing, a.Apply(ctx, missing))
}

func TestApply_DoesNotModifyInput(t *testing.T) {
	t.Parallel()

	a, _ := newTestAdapter(t)
	input := map[string]any{"password": "x", "email": "john.doe@example.com"}

	out := a.Apply(withRole(context.Background(), policy.RoleStudent), input)

	assert.Equal(t, `{"email":"j******e@example.com"}`, encode(t, out))
	assert.Equal(t, "x", input["password"])
	assert.Equal(t, "john.doe@example.com", input["email"])
}

func TestApply_AcceptsValues(t *testing.T) {
	t.Parallel()

	a, _ := newTestAdapter(t)
	k := sanitize.NewKeyed(2)
	k.Set("apiKey", sanitize.String("k"))
	k.Set("ok", sanitize.Bool(true))

	out := a.Apply(context.Background(), sanitize.Object(k))
	assert.Equal(t, `{"ok":true}`, encode(t, out))
}

func TestApply_Cycle(t *testing.T) {
	t.Parallel()

	a, buf := newTestAdapter(t)
	m := map[string]any{"name": "root"}
	m["self"] = m

	out := a.Apply(context.Background(), m)
	assert.Equal(t, `{"name":"root","self":"[CIRCULAR_REFERENCE]"}`, encode(t, out))
	assert.Contains(t, buf.String(), "sanitizer bound hit")
}

type exploding struct{}

func (exploding) MarshalJSON() ([]byte, error) {
	panic("unexpected shape")
}

func TestApply_ContainsFailures(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name     string
		result   any
		expected string
	}{
		{"sequence", []any{"ok", exploding{}}, `[]`},
		{"array pointer", &[1]any{exploding{}}, `[]`},
		{"map", map[string]any{"ok": 1, "bad": exploding{}}, `{}`},
		{"struct", struct {
			Bad exploding `json:"bad"`
		}{}, `{}`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			a, buf := newTestAdapter(t)
			ctx := middleware.WithRequestID(withRole(context.Background(), policy.RoleStudent), "req-42")

			out := a.Apply(ctx, tt.result)

			assert.Equal(t, tt.expected, encode(t, out))
			assert.Contains(t, buf.String(), "sanitizer failed")
			assert.Contains(t, buf.String(), `"request_id":"req-42"`)
			assert.Contains(t, buf.String(), `"role":"STUDENT"`)
			assert.Contains(t, buf.String(), "unexpected shape")
		})
	}
}

func TestNew_NilResolverIsAnonymous(t *testing.T) {
	t.Parallel()

	a := New(sanitize.NewEngine(nil, nil, sanitize.Limits{}), nil, nil)
	out := a.Apply(context.Background(), map[string]string{"pan": "ABCDE1234F", "phone": "9876543210"})
	assert.Equal(t, `{"pan":"XXXXXX234F","phone":"9876543210"}`, encode(t, out))
}

func TestRole(t *testing.T) {
	t.Parallel()

	a, _ := newTestAdapter(t)

	assert.Nil(t, a.Role(withRole(context.Background(), policy.RoleSuperAdmin)))

	role := a.Role(withRole(context.Background(), policy.RoleTeacher))
	require.NotNil(t, role)
	assert.Equal(t, policy.RoleTeacher, *role)

	anonymous := a.Role(context.Background())
	require.NotNil(t, anonymous)
	assert.Equal(t, policy.Role(""), *anonymous)
}

func TestSanitizeValue(t *testing.T) {
	t.Parallel()

	a, _ := newTestAdapter(t)
	v, err := sanitize.Decode([]byte(`{"guardian":{"phoneNo":"9876543210","apiKey":"k"}}`), 50)
	require.NoError(t, err)

	out := a.SanitizeValue(withRole(context.Background(), policy.RoleTeacher), v)
	assert.Equal(t, `{"guardian":{"phoneNo":"******3210"}}`, encode(t, out))

	scalar := sanitize.String("plain")
	assert.Equal(t, scalar, a.SanitizeValue(context.Background(), scalar))
}
