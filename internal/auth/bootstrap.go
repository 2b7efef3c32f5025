package auth

import (
	"context"
	"crypto/sha256"
	"crypto/subtle"
	"encoding/hex"

	"github.com/placementcell/campus-api/internal/policy"
	"github.com/placementcell/campus-api/internal/storage"
)

// BootstrapState represents the system configuration state
type BootstrapState int

const (
	// StateUnconfigured means no admin tokens exist yet.
	// Bootstrap key authentication is allowed in this state.
	StateUnconfigured BootstrapState = iota

	// StateConfigured means at least one admin token exists.
	// Bootstrap key authentication is locked out in this state.
	StateConfigured
)

// String returns the string representation of the bootstrap state
func (s BootstrapState) String() string {
	switch s {
	case StateUnconfigured:
		return "UNCONFIGURED"
	case StateConfigured:
		return "CONFIGURED"
	default:
		return "UNKNOWN"
	}
}

// BootstrapService lets a deployment-time key act as an admin until the first
// admin token has been issued.
type BootstrapService struct {
	tokens     storage.TokenStore
	adminRoles []policy.Role
	keyHash    string // SHA-256 of the bootstrap key; empty disables bootstrap
}

// NewBootstrapService creates a bootstrap service. An empty key disables
// bootstrap authentication entirely.
func NewBootstrapService(tokens storage.TokenStore, registry *policy.Registry, key string) *BootstrapService {
	b := &BootstrapService{
		tokens:     tokens,
		adminRoles: registry.AdminRoles(),
	}
	if key != "" {
		b.keyHash = hashKey(key)
	}
	return b
}

func hashKey(key string) string {
	hash := sha256.Sum256([]byte(key))
	return hex.EncodeToString(hash[:])
}

// Role is the role granted to bootstrap key callers: the first admin role.
func (b *BootstrapService) Role() policy.Role {
	if len(b.adminRoles) == 0 {
		return ""
	}
	return b.adminRoles[0]
}

// GetState returns StateConfigured once any token holds an admin role.
func (b *BootstrapService) GetState(ctx context.Context) (BootstrapState, error) {
	hasAdmin, err := b.tokens.HasTokenWithRole(ctx, b.adminRoles...)
	if err != nil {
		return StateUnconfigured, err
	}
	if hasAdmin {
		return StateConfigured, nil
	}
	return StateUnconfigured, nil
}

// IsBootstrapKey checks key against the configured bootstrap key.
//
// SECURITY: the final comparison must stay constant-time.
func (b *BootstrapService) IsBootstrapKey(key string) bool {
	if b.keyHash == "" {
		return false
	}
	return subtle.ConstantTimeCompare([]byte(hashKey(key)), []byte(b.keyHash)) == 1
}

// ValidateBootstrapKey returns true only if key matches AND the system is
// still unconfigured.
func (b *BootstrapService) ValidateBootstrapKey(ctx context.Context, key string) (bool, error) {
	if !b.IsBootstrapKey(key) {
		return false, nil
	}
	state, err := b.GetState(ctx)
	if err != nil {
		return false, err
	}
	return state == StateUnconfigured, nil
}
