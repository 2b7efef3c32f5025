// Package auth authenticates bearer tokens and puts the caller's role in the
// request context.
package auth

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/placementcell/campus-api/internal/policy"
	"github.com/placementcell/campus-api/internal/storage"
)

// Errors for authentication and authorization failures.
var (
	// ErrMissingToken indicates no bearer token was provided.
	ErrMissingToken = errors.New("auth: missing token")
	// ErrInvalidToken indicates the token is malformed, unknown or wrong.
	ErrInvalidToken = errors.New("auth: invalid token")
	// ErrForbidden indicates the caller's role may not perform the request.
	ErrForbidden = errors.New("auth: permission denied")
)

// FormatToken renders the token handed to a client: "<id>.<secret>".
func FormatToken(id int64, secret string) string {
	return strconv.FormatInt(id, 10) + "." + secret
}

// ParseToken splits a client token into its id and secret.
func ParseToken(raw string) (int64, string, error) {
	idPart, secret, ok := strings.Cut(raw, ".")
	if !ok || secret == "" {
		return 0, "", ErrInvalidToken
	}
	id, err := strconv.ParseInt(idPart, 10, 64)
	if err != nil || id <= 0 {
		return 0, "", ErrInvalidToken
	}
	return id, secret, nil
}

// Validator checks presented tokens against the token store.
type Validator struct {
	tokens storage.TokenStore
}

// NewValidator creates a new Validator.
func NewValidator(tokens storage.TokenStore) *Validator {
	return &Validator{tokens: tokens}
}

// ValidateToken returns the stored token matching raw.
// Returns ErrMissingToken, ErrInvalidToken, or a wrapped storage error.
func (v *Validator) ValidateToken(ctx context.Context, raw string) (*storage.Token, error) {
	if raw == "" {
		return nil, ErrMissingToken
	}

	id, secret, err := ParseToken(raw)
	if err != nil {
		return nil, err
	}

	token, err := v.tokens.GetTokenByID(ctx, id)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return nil, ErrInvalidToken
		}
		return nil, fmt.Errorf("failed to look up token: %w", err)
	}

	if storage.VerifyKey(secret, token.KeyHash) != nil {
		return nil, ErrInvalidToken
	}
	return token, nil
}

// IssueToken creates a token for role and returns it with the client form of
// the token. The secret is only ever returned here.
func IssueToken(ctx context.Context, tokens storage.TokenStore, name string, role policy.Role) (*storage.Token, string, error) {
	secret, err := storage.GenerateSecret()
	if err != nil {
		return nil, "", fmt.Errorf("failed to generate secret: %w", err)
	}
	hash, err := storage.HashKey(secret)
	if err != nil {
		return nil, "", fmt.Errorf("failed to hash secret: %w", err)
	}

	token, err := tokens.CreateToken(ctx, name, role, hash)
	if err != nil {
		return nil, "", err
	}
	return token, FormatToken(token.ID, secret), nil
}
