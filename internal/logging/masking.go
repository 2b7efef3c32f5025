// Package logging builds the process logger and redacts secrets from what
// gets logged.
package logging

import (
	"fmt"
	"strings"

	"github.com/placementcell/campus-api/internal/policy"
	"github.com/placementcell/campus-api/internal/sanitize"
)

// MaskHeader redacts sensitive header values based on header name.
//
// Rules:
// - Password/secret headers: "[REDACTED]" (no partial reveal)
// - Authorization, cookies and API key headers: "****" + last 4 chars
// - Other headers: returned unchanged
func MaskHeader(name, value string) string {
	lowerName := strings.ToLower(name)

	if strings.Contains(lowerName, "password") ||
		strings.Contains(lowerName, "secret") ||
		strings.Contains(lowerName, "private-key") {
		return "[REDACTED]"
	}

	switch lowerName {
	case "authorization", "proxy-authorization", "cookie", "set-cookie", "x-api-key", "x-auth-token":
		if len(value) < 4 {
			return "****"
		}
		return "****" + value[len(value)-4:]
	}

	return value
}

// RedactJSONBody runs a JSON body through engine before it is logged:
// AlwaysRemove fields are dropped and AlwaysMask fields are masked.
// Bodies that are not JSON are returned unchanged; bodies that cannot be
// re-encoded become "[UNPARSEABLE]".
func RedactJSONBody(body []byte, engine *sanitize.Engine) []byte {
	if len(body) == 0 || engine == nil {
		return body
	}

	v, err := sanitize.Decode(body, engine.Limits().MaxDepth)
	if err != nil {
		return body
	}

	// The empty role has no role-conditional table.
	var role policy.Role
	out, _ := engine.Sanitize(v, &role)
	data, err := out.MarshalJSON()
	if err != nil {
		return []byte("[UNPARSEABLE]")
	}
	return data
}

// FormatBinaryData formats binary data for logging.
func FormatBinaryData(data []byte) string {
	return fmt.Sprintf("[BINARY: %d bytes]", len(data))
}
