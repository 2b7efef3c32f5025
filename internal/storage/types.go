package storage

import (
	"encoding/json"
	"time"

	"github.com/placementcell/campus-api/internal/policy"
)

// Token is an API token. The raw secret is never stored.
type Token struct {
	ID        int64
	KeyHash   string
	Name      string
	Role      policy.Role
	CreatedAt time.Time
}

// Document is a stored JSON record.
type Document struct {
	Collection string
	ID         string
	Body       json.RawMessage
	CreatedAt  time.Time
	UpdatedAt  time.Time
}
