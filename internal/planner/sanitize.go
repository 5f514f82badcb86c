package planner

import (
	"regexp"
	"strings"
	"unicode"

	"golang.org/x/text/unicode/norm"
)

// hashSegment matches cache-busting tokens such as ".9f3a1b2c." in "app.9f3a1b2c.js".
var hashSegment = regexp.MustCompile(`\.[a-f0-9]{8,}\.`)

// Sanitize cleans a single filename component.
//
// It strips hash-like dotted segments, keeps only letters, digits, spaces,
// '-', '_' and '.', and trims trailing whitespace. The passes repeat until the
// name stops changing, so Sanitize(Sanitize(x)) == Sanitize(x).
func Sanitize(name string) string {
	current := name
	for {
		next := sanitizeOnce(current)
		if next == current {
			return next
		}
		current = next
	}
}

func sanitizeOnce(name string) string {
	s := norm.NFC.String(name)
	for {
		stripped := hashSegment.ReplaceAllString(s, ".")
		if stripped == s {
			break
		}
		s = stripped
	}

	var b strings.Builder
	b.Grow(len(s))
	for _, r := range s {
		if unicode.IsLetter(r) || unicode.IsDigit(r) || r == ' ' || r == '-' || r == '_' || r == '.' {
			b.WriteRune(r)
		}
	}
	return strings.TrimRightFunc(b.String(), unicode.IsSpace)
}

// SanitizeOrigin turns a URL host (with optional port) into a directory name.
// The port separator becomes '_' so "ex.test:8080" maps to "ex.test_8080".
func SanitizeOrigin(host string) string {
	return Sanitize(strings.ReplaceAll(strings.ToLower(host), ":", "_"))
}

// sanitizeSegment cleans a directory segment, dropping ones that would
// escape or alias the current directory.
func sanitizeSegment(segment string) string {
	s := Sanitize(segment)
	if strings.Trim(s, ".") == "" {
		return ""
	}
	return s
}
