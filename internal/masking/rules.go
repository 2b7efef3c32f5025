package masking

import (
	"regexp"
	"strings"
	"unicode"
)

// RuleName names a masking rule so overlays can alias new fields to it.
type RuleName string

// Known rules.
const (
	RuleNationalID  RuleName = "national_id"
	RuleTaxID       RuleName = "tax_id"
	RulePhone       RuleName = "phone"
	RuleBankAccount RuleName = "bank_account"
	RuleRouting     RuleName = "routing"
	RuleEmail       RuleName = "email"
	RuleDateOfBirth RuleName = "date_of_birth"
	RuleGeneric     RuleName = "generic"
)

// Rule turns a raw string into its masked form. Rules are pure and total.
type Rule func(value string) string

var rules = map[RuleName]Rule{
	RuleNationalID:  NationalID,
	RuleTaxID:       TaxID,
	RulePhone:       Phone,
	RuleBankAccount: BankAccount,
	RuleRouting:     Routing,
	RuleEmail:       Email,
	RuleDateOfBirth: DateOfBirth,
	RuleGeneric:     Generic,
}

// Lookup returns the rule registered under name.
func Lookup(name RuleName) (Rule, bool) {
	r, ok := rules[name]
	return r, ok
}

const undersized = "****"

// NationalID keeps the last four digits: 123456789012 -> XXXX-XXXX-9012.
func NationalID(value string) string {
	digits := extractDigits(value)
	if len(digits) < 4 {
		return undersized
	}
	return "XXXX-XXXX-" + digits[len(digits)-4:]
}

// TaxID keeps the last four characters: ABCDE1234F -> XXXXXX234F.
func TaxID(value string) string {
	r := []rune(value)
	if len(r) < 4 {
		return undersized
	}
	return "XXXXXX" + string(r[len(r)-4:])
}

// Phone keeps the last four digits: +91 98765 43210 -> ******3210.
func Phone(value string) string {
	digits := extractDigits(value)
	if len(digits) < 4 {
		return undersized
	}
	return "******" + digits[len(digits)-4:]
}

// BankAccount keeps the last four characters: 001234567890 -> XXXXXXXX7890.
func BankAccount(value string) string {
	r := []rune(value)
	if len(r) < 4 {
		return undersized
	}
	return "XXXXXXXX" + string(r[len(r)-4:])
}

// Routing keeps the first four characters of an IFSC-style code: SBIN0001234 -> SBINXXXXXXX.
func Routing(value string) string {
	r := []rune(value)
	if len(r) < 4 {
		return undersized
	}
	return string(r[:4]) + "XXXXXXX"
}

// Email keeps the first and last character of the local part and the whole
// domain: john.doe@example.com -> j******e@example.com. A value without "@"
// falls back to Generic.
func Email(value string) string {
	local, domain, ok := strings.Cut(value, "@")
	if !ok {
		return Generic(value)
	}
	r := []rune(local)
	if len(r) <= 2 {
		return "**@" + domain
	}
	stars := min(len(r)-2, 10)
	return string(r[0]) + strings.Repeat("*", stars) + string(r[len(r)-1]) + "@" + domain
}

var yearPattern = regexp.MustCompile(`\d{4}`)

// DateOfBirth hides the whole date once a year is recognisable.
func DateOfBirth(value string) string {
	if yearPattern.MatchString(value) {
		return "**/**/XXXX"
	}
	return undersized
}

// Generic is the length-aware fallback for fields without a dedicated rule.
//
//	len <= 4  -> ****
//	len <= 8  -> first + stars + last
//	otherwise -> first two + up to 10 stars + last two
func Generic(value string) string {
	r := []rune(value)
	n := len(r)
	switch {
	case n <= 4:
		return undersized
	case n <= 8:
		return string(r[0]) + strings.Repeat("*", n-2) + string(r[n-1])
	default:
		return string(r[:2]) + strings.Repeat("*", min(n-4, 10)) + string(r[n-2:])
	}
}

func extractDigits(s string) string {
	var b strings.Builder
	for _, r := range s {
		if r <= unicode.MaxASCII && unicode.IsDigit(r) {
			b.WriteRune(r)
		}
	}
	return b.String()
}
