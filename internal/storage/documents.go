package storage

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"

	jsoniter "github.com/json-iterator/go"
)

// PutDocument creates or replaces a document. created reports whether the
// document did not exist before.
// Returns ErrInvalidDocument if body is not valid JSON.
func (s *SQLiteStorage) PutDocument(ctx context.Context, collection, id string, body json.RawMessage) (bool, error) {
	if !jsoniter.Valid(body) {
		return false, ErrInvalidDocument
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return false, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck

	var exists int
	err = tx.QueryRowContext(ctx,
		"SELECT COUNT(*) FROM documents WHERE collection = ? AND doc_id = ?",
		collection, id).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("failed to check document: %w", err)
	}

	if exists == 0 {
		_, err = tx.ExecContext(ctx,
			"INSERT INTO documents (collection, doc_id, body) VALUES (?, ?, ?)",
			collection, id, string(body))
	} else {
		_, err = tx.ExecContext(ctx,
			"UPDATE documents SET body = ?, updated_at = CURRENT_TIMESTAMP WHERE collection = ? AND doc_id = ?",
			string(body), collection, id)
	}
	if err != nil {
		// json_valid also rejects trailing data that the quick check lets through.
		if isConstraintError(err) {
			return false, ErrInvalidDocument
		}
		return false, fmt.Errorf("failed to write document: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return false, fmt.Errorf("failed to commit document: %w", err)
	}
	return exists == 0, nil
}

// GetDocument retrieves one document.
// Returns ErrNotFound if it doesn't exist.
func (s *SQLiteStorage) GetDocument(ctx context.Context, collection, id string) (*Document, error) {
	var d Document
	var body string

	err := s.db.QueryRowContext(ctx,
		"SELECT collection, doc_id, body, created_at, updated_at FROM documents WHERE collection = ? AND doc_id = ?",
		collection, id).
		Scan(&d.Collection, &d.ID, &body, &d.CreatedAt, &d.UpdatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("failed to get document: %w", err)
	}

	d.Body = json.RawMessage(body)
	return &d, nil
}

// ListDocuments returns a page of a collection ordered by id.
// Returns empty slice if the collection is empty.
func (s *SQLiteStorage) ListDocuments(ctx context.Context, collection string, limit, offset int) ([]*Document, error) {
	rows, err := s.db.QueryContext(ctx,
		"SELECT collection, doc_id, body, created_at, updated_at FROM documents WHERE collection = ? ORDER BY doc_id LIMIT ? OFFSET ?",
		collection, limit, offset)
	if err != nil {
		return nil, fmt.Errorf("failed to query documents: %w", err)
	}
	defer rows.Close() //nolint:errcheck

	docs := make([]*Document, 0)
	for rows.Next() {
		var d Document
		var body string
		if err := rows.Scan(&d.Collection, &d.ID, &body, &d.CreatedAt, &d.UpdatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan document row: %w", err)
		}
		d.Body = json.RawMessage(body)
		docs = append(docs, &d)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating documents: %w", err)
	}

	return docs, nil
}

// DeleteDocument deletes one document.
// Returns ErrNotFound if it doesn't exist.
func (s *SQLiteStorage) DeleteDocument(ctx context.Context, collection, id string) error {
	result, err := s.db.ExecContext(ctx,
		"DELETE FROM documents WHERE collection = ? AND doc_id = ?",
		collection, id)
	if err != nil {
		return fmt.Errorf("failed to delete document: %w", err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}

	if rowsAffected == 0 {
		return ErrNotFound
	}

	return nil
}
