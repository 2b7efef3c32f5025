// Package masking produces redacted renditions of PII values keyed by field name.
package masking

import (
	"errors"
	"fmt"
	"strings"
)

// ErrUnknownRule is returned when an alias points at a rule that does not exist.
var ErrUnknownRule = errors.New("masking: unknown rule")

var defaultFieldRules = map[string]RuleName{
	"aadhaarNumber":     RuleNationalID,
	"aadhaar":           RuleNationalID,
	"panNumber":         RuleTaxID,
	"pan":               RuleTaxID,
	"phoneNo":           RulePhone,
	"phone":             RulePhone,
	"mobile":            RulePhone,
	"mobileNumber":      RulePhone,
	"parentPhone":       RulePhone,
	"bankAccountNumber": RuleBankAccount,
	"accountNumber":     RuleBankAccount,
	"ifscCode":          RuleRouting,
	"ifsc":              RuleRouting,
	"email":             RuleEmail,
	"personalEmail":     RuleEmail,
	"dateOfBirth":       RuleDateOfBirth,
	"dob":               RuleDateOfBirth,
}

// family maps a lower-case name fragment to the rule used for any field containing it.
type family struct {
	fragment string
	rule     Rule
}

// Checked in order; the first matching fragment wins.
var families = []family{
	{"phone", Phone},
	{"mobile", Phone},
	{"email", Email},
	{"aadhaar", NationalID},
	{"aadhar", NationalID},
	{"pan", TaxID},
}

// RuleSet resolves the masking rule for a field name. It is immutable once built.
type RuleSet struct {
	exact map[string]Rule
}

// NewRuleSet returns the built-in field rules extended by aliases
// (field name -> rule name). Aliases override built-in entries.
func NewRuleSet(aliases map[string]string) (*RuleSet, error) {
	exact := make(map[string]Rule, len(defaultFieldRules)+len(aliases))
	for field, name := range defaultFieldRules {
		exact[field] = rules[name]
	}
	for field, name := range aliases {
		rule, ok := Lookup(RuleName(name))
		if !ok {
			return nil, fmt.Errorf("%w: %q for field %q", ErrUnknownRule, name, field)
		}
		exact[field] = rule
	}
	return &RuleSet{exact: exact}, nil
}

// Mask returns the masked form of value. Resolution order: exact field
// rule, case-insensitive family fragment, generic fallback.
func (s *RuleSet) Mask(field, value string) string {
	if rule, ok := s.exact[field]; ok {
		return rule(value)
	}
	lower := strings.ToLower(field)
	for _, f := range families {
		if strings.Contains(lower, f.fragment) {
			return f.rule(value)
		}
	}
	return Generic(value)
}

var defaultSet, _ = NewRuleSet(nil)

// Default returns the built-in rule set.
func Default() *RuleSet {
	return defaultSet
}

// MaskField masks a single value with the built-in rules. Report exporters
// and background jobs use it to get the same output as API responses.
func MaskField(field, value string) string {
	return defaultSet.Mask(field, value)
}
