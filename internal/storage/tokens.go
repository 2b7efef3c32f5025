package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"github.com/samber/lo"

	"github.com/placementcell/campus-api/internal/policy"
)

// CreateToken stores a token with an already hashed secret.
// Returns ErrDuplicate if a token with this hash already exists.
func (s *SQLiteStorage) CreateToken(ctx context.Context, name string, role policy.Role, keyHash string) (*Token, error) {
	result, err := s.db.ExecContext(ctx,
		"INSERT INTO tokens (key_hash, name, role) VALUES (?, ?, ?)",
		keyHash, name, string(role))
	if err != nil {
		if isConstraintError(err) {
			return nil, ErrDuplicate
		}
		return nil, fmt.Errorf("failed to create token: %w", err)
	}

	id, err := result.LastInsertId()
	if err != nil {
		return nil, fmt.Errorf("failed to get insert ID: %w", err)
	}

	return s.GetTokenByID(ctx, id)
}

// GetTokenByID retrieves a token by ID. Authentication uses it to find the
// hash to verify a presented secret against.
// Returns ErrNotFound if the token doesn't exist.
func (s *SQLiteStorage) GetTokenByID(ctx context.Context, id int64) (*Token, error) {
	var t Token
	var role string

	err := s.db.QueryRowContext(ctx,
		"SELECT id, key_hash, name, role, created_at FROM tokens WHERE id = ?",
		id).
		Scan(&t.ID, &t.KeyHash, &t.Name, &role, &t.CreatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("failed to get token by ID: %w", err)
	}

	t.Role = policy.Role(role)
	return &t, nil
}

// ListTokens returns all tokens, newest first.
// Returns empty slice if no tokens exist.
func (s *SQLiteStorage) ListTokens(ctx context.Context) ([]*Token, error) {
	rows, err := s.db.QueryContext(ctx,
		"SELECT id, key_hash, name, role, created_at FROM tokens ORDER BY id DESC")
	if err != nil {
		return nil, fmt.Errorf("failed to query tokens: %w", err)
	}
	defer rows.Close() //nolint:errcheck

	tokens := make([]*Token, 0)
	for rows.Next() {
		var t Token
		var role string
		if err := rows.Scan(&t.ID, &t.KeyHash, &t.Name, &role, &t.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan token row: %w", err)
		}
		t.Role = policy.Role(role)
		tokens = append(tokens, &t)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating tokens: %w", err)
	}

	return tokens, nil
}

// DeleteToken deletes a token by ID.
// Returns ErrNotFound if the token doesn't exist.
func (s *SQLiteStorage) DeleteToken(ctx context.Context, id int64) error {
	result, err := s.db.ExecContext(ctx, "DELETE FROM tokens WHERE id = ?", id)
	if err != nil {
		return fmt.Errorf("failed to delete token: %w", err)
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

// HasTokenWithRole reports whether any token holds one of roles.
func (s *SQLiteStorage) HasTokenWithRole(ctx context.Context, roles ...policy.Role) (bool, error) {
	if len(roles) == 0 {
		return false, nil
	}

	placeholders := strings.TrimSuffix(strings.Repeat("?,", len(roles)), ",")
	args := lo.Map(roles, func(r policy.Role, _ int) any { return string(r) })

	var count int64
	err := s.db.QueryRowContext(ctx,
		"SELECT COUNT(*) FROM tokens WHERE role IN ("+placeholders+")", //nolint:gosec
		args...).
		Scan(&count)
	if err != nil {
		return false, fmt.Errorf("failed to count tokens by role: %w", err)
	}

	return count > 0, nil
}
