package ir

import (
	"strings"

	"golang.org/x/text/unicode/norm"
)

// NormalizeName trims and NFC-normalizes a module or function name so that
// visually identical names key the same cache entries.
func NormalizeName(s string) string {
	return norm.NFC.String(strings.TrimSpace(s))
}

// QualifiedName joins a module and function name as "module.func".
func QualifiedName(module, fn string) string {
	return module + "." + fn
}
