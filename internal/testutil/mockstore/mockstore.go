// Package mockstore provides a configurable mock implementation of storage interfaces for testing.
//
// The MockStorage type uses function fields for each method, allowing tests to customize behavior
// as needed while providing sensible defaults for methods that aren't customized.
package mockstore

import (
	"context"
	"encoding/json"

	"github.com/placementcell/campus-api/internal/policy"
	"github.com/placementcell/campus-api/internal/storage"
)

// MockStorage is a configurable mock implementation of storage.Storage.
// Each method can be customized by setting the corresponding function field.
// If a function field is nil, the method returns a sensible default value.
type MockStorage struct {
	// Token operations (storage.TokenStore)
	CreateTokenFunc      func(ctx context.Context, name string, role policy.Role, keyHash string) (*storage.Token, error)
	GetTokenByIDFunc     func(ctx context.Context, id int64) (*storage.Token, error)
	ListTokensFunc       func(ctx context.Context) ([]*storage.Token, error)
	DeleteTokenFunc      func(ctx context.Context, id int64) error
	HasTokenWithRoleFunc func(ctx context.Context, roles ...policy.Role) (bool, error)

	// Document operations (storage.DocumentStore)
	PutDocumentFunc    func(ctx context.Context, collection, id string, body json.RawMessage) (bool, error)
	GetDocumentFunc    func(ctx context.Context, collection, id string) (*storage.Document, error)
	ListDocumentsFunc  func(ctx context.Context, collection string, limit, offset int) ([]*storage.Document, error)
	DeleteDocumentFunc func(ctx context.Context, collection, id string) error

	// Lifecycle
	PingFunc  func(ctx context.Context) error
	CloseFunc func() error
}

var _ storage.Storage = (*MockStorage)(nil)

// CreateToken creates a new token.
func (m *MockStorage) CreateToken(ctx context.Context, name string, role policy.Role, keyHash string) (*storage.Token, error) {
	if m.CreateTokenFunc != nil {
		return m.CreateTokenFunc(ctx, name, role, keyHash)
	}
	return &storage.Token{ID: 1, Name: name, Role: role, KeyHash: keyHash}, nil
}

// GetTokenByID retrieves a token by ID.
func (m *MockStorage) GetTokenByID(ctx context.Context, id int64) (*storage.Token, error) {
	if m.GetTokenByIDFunc != nil {
		return m.GetTokenByIDFunc(ctx, id)
	}
	return nil, storage.ErrNotFound
}

// ListTokens retrieves all tokens.
func (m *MockStorage) ListTokens(ctx context.Context) ([]*storage.Token, error) {
	if m.ListTokensFunc != nil {
		return m.ListTokensFunc(ctx)
	}
	return []*storage.Token{}, nil
}

// DeleteToken deletes a token by ID.
func (m *MockStorage) DeleteToken(ctx context.Context, id int64) error {
	if m.DeleteTokenFunc != nil {
		return m.DeleteTokenFunc(ctx, id)
	}
	return nil
}

// HasTokenWithRole reports whether a token with one of roles exists.
func (m *MockStorage) HasTokenWithRole(ctx context.Context, roles ...policy.Role) (bool, error) {
	if m.HasTokenWithRoleFunc != nil {
		return m.HasTokenWithRoleFunc(ctx, roles...)
	}
	return false, nil
}

// PutDocument creates or replaces a document.
func (m *MockStorage) PutDocument(ctx context.Context, collection, id string, body json.RawMessage) (bool, error) {
	if m.PutDocumentFunc != nil {
		return m.PutDocumentFunc(ctx, collection, id, body)
	}
	return true, nil
}

// GetDocument retrieves a document.
func (m *MockStorage) GetDocument(ctx context.Context, collection, id string) (*storage.Document, error) {
	if m.GetDocumentFunc != nil {
		return m.GetDocumentFunc(ctx, collection, id)
	}
	return nil, storage.ErrNotFound
}

// ListDocuments retrieves a page of documents.
func (m *MockStorage) ListDocuments(ctx context.Context, collection string, limit, offset int) ([]*storage.Document, error) {
	if m.ListDocumentsFunc != nil {
		return m.ListDocumentsFunc(ctx, collection, limit, offset)
	}
	return []*storage.Document{}, nil
}

// DeleteDocument deletes a document.
func (m *MockStorage) DeleteDocument(ctx context.Context, collection, id string) error {
	if m.DeleteDocumentFunc != nil {
		return m.DeleteDocumentFunc(ctx, collection, id)
	}
	return nil
}

// Ping checks database connectivity.
func (m *MockStorage) Ping(ctx context.Context) error {
	if m.PingFunc != nil {
		return m.PingFunc(ctx)
	}
	return nil
}

// Close closes the storage connection.
func (m *MockStorage) Close() error {
	if m.CloseFunc != nil {
		return m.CloseFunc()
	}
	return nil
}
