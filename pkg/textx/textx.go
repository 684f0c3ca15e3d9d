// Package textx provides small text utilities used across the project.
package textx

import (
	"strings"
	"unicode"
)

// SanitizeText removes control characters except tab/newline/CR and trims spaces.
func SanitizeText(s string) string {
	// strip control chars outside tab/newline/carriage return
	var b strings.Builder
	for _, r := range s {
		if r == '\n' || r == '\r' || r == '\t' || (r >= 32 && r != 127) {
			b.WriteRune(r)
		}
	}
	return strings.TrimSpace(b.String())
}

// Normalize lower-cases, trims and de-duplicates tokens, dropping empties.
// First-seen order is preserved for display; comparison is order-insensitive.
func Normalize(tokens []string) []string {
	out := make([]string, 0, len(tokens))
	seen := make(map[string]struct{}, len(tokens))
	for _, t := range tokens {
		t = strings.ToLower(strings.TrimSpace(t))
		if t == "" {
			continue
		}
		if _, ok := seen[t]; ok {
			continue
		}
		seen[t] = struct{}{}
		out = append(out, t)
	}
	return out
}

// NormalizeOne lower-cases and trims a single value.
func NormalizeOne(s string) string {
	return strings.ToLower(strings.TrimSpace(s))
}

// tokenRune keeps letters (including accented Latin), digits, and the
// characters that appear inside skill names such as "c++", "c#" and "node.js".
func tokenRune(r rune) bool {
	return unicode.IsLetter(r) || unicode.IsDigit(r) || r == '+' || r == '#' || r == '.'
}

// Tokenize splits free text on any rune that cannot be part of a skill token,
// lower-casing the result and discarding empties. Duplicates are kept: callers
// that need a set pass the result through Normalize.
func Tokenize(s string) []string {
	return strings.FieldsFunc(strings.ToLower(s), func(r rune) bool { return !tokenRune(r) })
}

// SplitCSV normalizes a comma-separated list into tokens.
func SplitCSV(s string) []string {
	if strings.TrimSpace(s) == "" {
		return nil
	}
	return Normalize(strings.Split(s, ","))
}
