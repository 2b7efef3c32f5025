// Package policy classifies response field names into removal and masking tiers.
//
// A Registry is built once at startup (from the built-in tables, optionally
// extended by a YAML overlay) and is read-only afterwards, so it may be shared
// by any number of concurrent sanitize calls without locking.
package policy

import (
	"sort"
	"strings"

	"github.com/samber/lo"
)

// Role identifies the class of an authenticated caller.
type Role string

// Built-in roles.
const (
	RoleStudent    Role = "STUDENT"
	RoleTeacher    Role = "TEACHER"
	RoleAdmin      Role = "ADMIN"
	RoleSuperAdmin Role = "SUPER_ADMIN"
)

// Classification is the tier a field name falls into.
type Classification int

const (
	// Unclassified fields pass through untouched.
	Unclassified Classification = iota
	// AlwaysRemove fields are dropped from every response, for every caller.
	AlwaysRemove
	// AlwaysMask fields are masked for every caller outside the admin bypass set.
	AlwaysMask
	// RoleConditionalMask fields are masked only for the roles that list them.
	RoleConditionalMask
)

func (c Classification) String() string {
	switch c {
	case AlwaysRemove:
		return "always_remove"
	case AlwaysMask:
		return "always_mask"
	case RoleConditionalMask:
		return "role_conditional_mask"
	default:
		return "unclassified"
	}
}

var defaultAlwaysRemove = []string{
	"password",
	"passwordHash",
	"hashedPassword",
	"refreshToken",
	"resetToken",
	"resetPasswordToken",
	"passwordResetToken",
	"verificationToken",
	"emailVerificationToken",
	"sessionToken",
	"csrfToken",
	"apiKey",
	"apiSecret",
	"secretKey",
	"clientSecret",
	"privateKey",
	"encryptionKey",
	"salt",
	"iv",
	"otp",
	"otpSecret",
	"twoFactorSecret",
	"cardNumber",
	"cvv",
	"pin",
}

var defaultAlwaysMask = []string{
	"aadhaarNumber",
	"aadhaar",
	"panNumber",
	"pan",
	"bankAccountNumber",
	"accountNumber",
	"ifscCode",
	"ifsc",
}

var defaultRoleMasks = map[Role][]string{
	RoleStudent: {
		"phoneNo",
		"phone",
		"mobile",
		"mobileNumber",
		"parentPhone",
		"email",
		"personalEmail",
		"dateOfBirth",
		"dob",
	},
	RoleTeacher: {
		"phoneNo",
		"phone",
		"mobile",
		"mobileNumber",
		"parentPhone",
	},
}

var defaultAdminRoles = []Role{RoleAdmin, RoleSuperAdmin}

// Registry holds the immutable field classification tables.
type Registry struct {
	alwaysRemove map[string]struct{}
	alwaysMask   map[string]struct{}
	roleMasks    map[Role]map[string]struct{}
	adminRoles   map[Role]struct{}
}

// Default returns a registry with the built-in tables.
func Default() *Registry {
	return newRegistry(defaultAlwaysRemove, defaultAlwaysMask, defaultRoleMasks, defaultAdminRoles)
}

func newRegistry(remove, mask []string, roleMasks map[Role][]string, admins []Role) *Registry {
	r := &Registry{
		alwaysRemove: lo.Keyify(remove),
		alwaysMask:   lo.Keyify(mask),
		roleMasks:    make(map[Role]map[string]struct{}, len(roleMasks)),
		adminRoles:   lo.Keyify(admins),
	}
	for role, fields := range roleMasks {
		r.roleMasks[role] = lo.Keyify(fields)
	}
	return r
}

// ShouldRemove reports whether field must be dropped. Matching is exact and case-sensitive.
func (r *Registry) ShouldRemove(field string) bool {
	_, ok := r.alwaysRemove[field]
	return ok
}

// ShouldMask reports whether the value under field must be masked for role.
// Callers in the admin bypass set never reach this check.
func (r *Registry) ShouldMask(field string, role Role) bool {
	if r.isAlwaysMask(field) {
		return true
	}
	_, ok := r.roleMasks[role][field]
	return ok
}

// isAlwaysMask matches the AlwaysMask table exactly, then falls back to
// case-insensitive national-ID and tax-ID name variants.
func (r *Registry) isAlwaysMask(field string) bool {
	if _, ok := r.alwaysMask[field]; ok {
		return true
	}
	lower := strings.ToLower(field)
	return strings.Contains(lower, "aadhaar") ||
		strings.Contains(lower, "aadhar") ||
		lower == "pan"
}

// IsAdminBypass reports whether role is exempt from PII masking.
func (r *Registry) IsAdminBypass(role Role) bool {
	_, ok := r.adminRoles[role]
	return ok
}

// AdminRoles returns the admin bypass set, sorted.
func (r *Registry) AdminRoles() []Role {
	roles := lo.Keys(r.adminRoles)
	sort.Slice(roles, func(i, j int) bool { return roles[i] < roles[j] })
	return roles
}

// Classify returns the tier of field for role. AlwaysRemove wins over every
// other tier and AlwaysMask wins over role-conditional masking.
func (r *Registry) Classify(field string, role Role) Classification {
	switch {
	case r.ShouldRemove(field):
		return AlwaysRemove
	case r.isAlwaysMask(field):
		return AlwaysMask
	}
	if _, ok := r.roleMasks[role][field]; ok {
		return RoleConditionalMask
	}
	return Unclassified
}

// Roles returns every role that has a role-conditional table or is in the
// admin bypass set, sorted.
func (r *Registry) Roles() []Role {
	roles := lo.Uniq(append(lo.Keys(r.roleMasks), lo.Keys(r.adminRoles)...))
	sort.Slice(roles, func(i, j int) bool { return roles[i] < roles[j] })
	return roles
}

// IsKnownRole reports whether role appears in any table.
func (r *Registry) IsKnownRole(role Role) bool {
	if _, ok := r.roleMasks[role]; ok {
		return true
	}
	return r.IsAdminBypass(role)
}
