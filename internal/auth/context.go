package auth

import (
	"context"

	"github.com/placementcell/campus-api/internal/policy"
	"github.com/placementcell/campus-api/internal/storage"
)

// ctxKey is a private type for context keys to prevent collisions.
type ctxKey int

const (
	tokenKey     ctxKey = iota // stores *storage.Token
	roleKey                    // stores policy.Role
	bootstrapKey               // stores bool (bootstrap key auth)
)

// TokenFromContext retrieves the authenticated token from context.
// Returns nil if no token is set (e.g., bootstrap key authentication).
func TokenFromContext(ctx context.Context) *storage.Token {
	if token, ok := ctx.Value(tokenKey).(*storage.Token); ok {
		return token
	}
	return nil
}

// RoleFromContext returns the caller's role. ok is false for anonymous
// requests. Its signature matches pipeline.RoleResolver.
func RoleFromContext(ctx context.Context) (policy.Role, bool) {
	role, ok := ctx.Value(roleKey).(policy.Role)
	return role, ok
}

// IsBootstrapFromContext returns true if the request was authenticated with
// the bootstrap key.
func IsBootstrapFromContext(ctx context.Context) bool {
	isBootstrap, _ := ctx.Value(bootstrapKey).(bool)
	return isBootstrap
}

// WithToken adds a token and its role to the context.
func WithToken(ctx context.Context, token *storage.Token) context.Context {
	ctx = context.WithValue(ctx, tokenKey, token)
	return WithRole(ctx, token.Role)
}

// WithRole sets the caller's role.
func WithRole(ctx context.Context, role policy.Role) context.Context {
	return context.WithValue(ctx, roleKey, role)
}

// WithBootstrap marks the context as authenticated with the bootstrap key.
func WithBootstrap(ctx context.Context, isBootstrap bool) context.Context {
	return context.WithValue(ctx, bootstrapKey, isBootstrap)
}
