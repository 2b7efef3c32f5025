package policy

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"gopkg.in/yaml.v3"
)

// ErrInvalidFile is returned when a policy overlay cannot be applied.
var ErrInvalidFile = errors.New("policy: invalid policy file")

// File is the YAML overlay format. Lists extend the built-in tables; a role
// listed under roleMasks replaces the built-in table for that role; a non-empty
// adminRoles replaces the built-in admin bypass set.
//
//	alwaysRemove: [guardianPassword]
//	alwaysMask: [passportNumber]
//	roleMasks:
//	  RECRUITER: [phoneNo, email, dateOfBirth]
//	adminRoles: [ADMIN, SUPER_ADMIN]
//	maskRules:
//	  guardianMobile: phone
type File struct {
	AlwaysRemove []string            `yaml:"alwaysRemove"`
	AlwaysMask   []string            `yaml:"alwaysMask"`
	RoleMasks    map[string][]string `yaml:"roleMasks"`
	AdminRoles   []string            `yaml:"adminRoles"`
	MaskRules    map[string]string   `yaml:"maskRules"`
}

// ReadFile parses a YAML overlay from path.
func ReadFile(path string) (*File, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read policy file: %w", err)
	}
	return ParseFile(data)
}

// ParseFile parses a YAML overlay document. Unknown keys are rejected.
func ParseFile(data []byte) (*File, error) {
	var f File
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(&f); err != nil {
		// An empty document is a valid, empty overlay.
		if errors.Is(err, io.EOF) {
			return &f, nil
		}
		return nil, fmt.Errorf("%w: %v", ErrInvalidFile, err)
	}
	if err := f.validate(); err != nil {
		return nil, err
	}
	return &f, nil
}

func (f *File) validate() error {
	for _, name := range append(append([]string{}, f.AlwaysRemove...), f.AlwaysMask...) {
		if strings.TrimSpace(name) == "" {
			return fmt.Errorf("%w: empty field name", ErrInvalidFile)
		}
	}
	for role := range f.RoleMasks {
		if strings.TrimSpace(role) == "" {
			return fmt.Errorf("%w: empty role name", ErrInvalidFile)
		}
	}
	for _, role := range f.AdminRoles {
		if strings.TrimSpace(role) == "" {
			return fmt.Errorf("%w: empty admin role", ErrInvalidFile)
		}
	}
	return nil
}

// Registry builds a registry from the built-in tables extended by f.
// A nil File yields Default().
func (f *File) Registry() *Registry {
	if f == nil {
		return Default()
	}

	remove := append(append([]string{}, defaultAlwaysRemove...), f.AlwaysRemove...)
	mask := append(append([]string{}, defaultAlwaysMask...), f.AlwaysMask...)

	roleMasks := make(map[Role][]string, len(defaultRoleMasks)+len(f.RoleMasks))
	for role, fields := range defaultRoleMasks {
		roleMasks[role] = fields
	}
	for role, fields := range f.RoleMasks {
		roleMasks[Role(role)] = fields
	}

	admins := defaultAdminRoles
	if len(f.AdminRoles) > 0 {
		admins = make([]Role, 0, len(f.AdminRoles))
		for _, role := range f.AdminRoles {
			admins = append(admins, Role(role))
		}
	}

	return newRegistry(remove, mask, roleMasks, admins)
}

// Load returns the default registry when path is empty, otherwise the
// default tables extended by the overlay at path.
func Load(path string) (*Registry, *File, error) {
	if path == "" {
		return Default(), nil, nil
	}
	f, err := ReadFile(path)
	if err != nil {
		return nil, nil, err
	}
	return f.Registry(), f, nil
}
