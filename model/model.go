package model

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/google/uuid"
)

// GenerateUUIDWithSuffix generates a UUID with a given module name as a prefix,
// e.g. "fax_2b7c...".
func GenerateUUIDWithSuffix(module string) string {
	id := uuid.New()
	return fmt.Sprintf("%s_%s", module, id.String())
}

var nonDigits = regexp.MustCompile(`\D`)

// NormalizeE164 converts a loosely formatted phone number into E.164.
// North American numbers are assumed when ten digits are supplied.
func NormalizeE164(phone string) string {
	phone = strings.TrimSpace(phone)
	cleaned := nonDigits.ReplaceAllString(phone, "")

	if strings.HasPrefix(cleaned, "1") && len(cleaned) == 11 {
		return "+" + cleaned
	}
	if len(cleaned) == 10 {
		return "+1" + cleaned
	}
	// already international, or unknown shape: keep the digits as given
	return "+" + cleaned
}

var e164 = regexp.MustCompile(`^\+[1-9]\d{7,14}$`)

// IsE164 reports whether number is a well formed E.164 string.
func IsE164(number string) bool {
	return e164.MatchString(number)
}
