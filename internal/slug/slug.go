// Package slug turns free-form titles into file- and link-safe identifiers.
package slug

import "strings"

// Untitled is returned when nothing usable survives normalisation.
const Untitled = "untitled"

// Slugify lower-cases ASCII letters and digits, collapses runs of space,
// hyphen, underscore and period into a single dash, and drops everything
// else. Leading separators are dropped and a trailing dash is stripped.
func Slugify(input string) string {
	var b strings.Builder
	pendingDash := false

	for _, r := range strings.TrimSpace(input) {
		switch {
		case isASCIIAlnum(r):
			if r >= 'A' && r <= 'Z' {
				r += 'a' - 'A'
			}
			b.WriteRune(r)
			pendingDash = false
		case isSeparator(r) && b.Len() > 0 && !pendingDash:
			b.WriteByte('-')
			pendingDash = true
		}
	}

	out := strings.TrimSuffix(b.String(), "-")
	if out == "" {
		return Untitled
	}
	return out
}

// IsSlug reports whether s is already in normalised form.
func IsSlug(s string) bool {
	return s != "" && Slugify(s) == s
}

func isASCIIAlnum(r rune) bool {
	return (r >= 'a' && r <= 'z') || (r >= 'A' && r <= 'Z') || (r >= '0' && r <= '9')
}

func isSeparator(r rune) bool {
	return r == ' ' || r == '-' || r == '_' || r == '.'
}
