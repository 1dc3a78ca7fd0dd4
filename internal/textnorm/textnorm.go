// Package textnorm canonicalizes answer text before it is compared.
package textnorm

import (
	"strings"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"
)

// Normalize lowercases s, collapses every run of whitespace (newlines and
// tabs included) into a single space and trims both ends.
func Normalize(s string) string {
	if s == "" {
		return ""
	}
	// A Caser keeps state, so each call gets its own.
	s = cases.Lower(language.Und).String(s)
	return strings.Join(strings.Fields(s), " ")
}
