package payments

import (
	"strings"
	"unicode"
	"unicode/utf8"
)

var scriptSchemes = []string{"javascript:", "vbscript:", "data:text/html"}

// SanitizeString trims the input and removes control characters, markup
// delimiters and script URL schemes. Clean input is returned unchanged and
// SanitizeString(SanitizeString(s)) == SanitizeString(s).
func SanitizeString(s string) string {
	var b strings.Builder
	b.Grow(len(s))
	for _, r := range s {
		switch {
		case r == unicode.ReplacementChar:
			continue
		case unicode.IsControl(r):
			// tabs and newlines collapse to a space, everything else is dropped
			if r == '\t' || r == '\n' || r == '\r' {
				b.WriteRune(' ')
			}
			continue
		case r == '<' || r == '>' || r == '`':
			continue
		}
		b.WriteRune(r)
	}

	out := b.String()
	for {
		stripped := stripSchemes(out)
		if stripped == out {
			break
		}
		out = stripped
	}
	return strings.TrimSpace(out)
}

// stripSchemes removes case-insensitive scheme matches rune by rune so that
// case mappings which change byte length cannot shift the cut points.
func stripSchemes(s string) string {
	runes := []rune(s)
	out := make([]rune, 0, len(runes))
	for i := 0; i < len(runes); {
		if n := schemeAt(runes[i:]); n > 0 {
			i += n
			continue
		}
		out = append(out, runes[i])
		i++
	}
	return string(out)
}

// schemeAt returns the rune length of the script scheme prefixing rs, or 0
func schemeAt(rs []rune) int {
	for _, scheme := range scriptSchemes {
		n := utf8.RuneCountInString(scheme)
		if len(rs) >= n && strings.EqualFold(string(rs[:n]), scheme) {
			return n
		}
	}
	return 0
}

// SanitizeEmail sanitizes and lower-cases an email address
func SanitizeEmail(s string) string {
	return strings.ToLower(SanitizeString(s))
}
