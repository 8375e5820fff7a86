// utils/validator.go - Input validation
package utils

import (
	"regexp"
	"strings"
)

// IntelNumberPattern matches the human-readable report number format,
// e.g. IR-2026-0007.
var IntelNumberPattern = regexp.MustCompile(`^IR-\d{4}-\d{4}$`)

// ValidateIntelNumber checks the report number format
func ValidateIntelNumber(number string) bool {
	return IntelNumberPattern.MatchString(number)
}

// SanitizeInput removes potentially harmful characters
func SanitizeInput(input string) string {
	// Remove leading/trailing spaces
	input = strings.TrimSpace(input)

	// Remove null bytes
	input = strings.ReplaceAll(input, "\x00", "")

	return input
}
