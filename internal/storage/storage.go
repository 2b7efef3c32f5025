// Package storage persists API tokens and JSON documents in SQLite.
package storage

import (
	"context"
	"encoding/json"

	"github.com/placementcell/campus-api/internal/policy"
)

// TokenStore holds API tokens. Secrets are stored as bcrypt hashes only.
type TokenStore interface {
	CreateToken(ctx context.Context, name string, role policy.Role, keyHash string) (*Token, error)
	GetTokenByID(ctx context.Context, id int64) (*Token, error)
	ListTokens(ctx context.Context) ([]*Token, error)
	DeleteToken(ctx context.Context, id int64) error
	HasTokenWithRole(ctx context.Context, roles ...policy.Role) (bool, error)
}

// DocumentStore holds JSON documents grouped into collections.
type DocumentStore interface {
	PutDocument(ctx context.Context, collection, id string, body json.RawMessage) (created bool, err error)
	GetDocument(ctx context.Context, collection, id string) (*Document, error)
	ListDocuments(ctx context.Context, collection string, limit, offset int) ([]*Document, error)
	DeleteDocument(ctx context.Context, collection, id string) error
}

// Storage is everything the server needs from the database.
type Storage interface {
	TokenStore
	DocumentStore
	Ping(ctx context.Context) error
	Close() error
}
