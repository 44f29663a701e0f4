package payments

import (
	"testing"
	"unicode/utf8"

	"github.com/stretchr/testify/assert"
)

func TestSanitizeString(t *testing.T) {
	tests := []struct {
		name     string
		input    string
		expected string
	}{
		{name: "clean input unchanged", input: "Ada Obi", expected: "Ada Obi"},
		{name: "trims whitespace", input: "  PSK_123 \n", expected: "PSK_123"},
		{name: "strips markup delimiters", input: "<script>alert(1)</script>", expected: "scriptalert(1)/script"},
		{name: "drops control characters", input: "Ada\x00\x07 Obi", expected: "Ada Obi"},
		{name: "newlines become spaces", input: "Ada\nObi", expected: "Ada Obi"},
		{name: "removes script scheme", input: "javascript:alert(1)", expected: "alert(1)"},
		{name: "removes nested script scheme", input: "javajavascript:script:x", expected: "x"},
		{name: "keeps apostrophes in names", input: "O'Brien", expected: "O'Brien"},
		{name: "keeps unicode", input: "Ọlá Adéyẹmí", expected: "Ọlá Adéyẹmí"},
		{name: "keeps letters that grow when lower-cased", input: "\u023ajavascript:", expected: "\u023a"},
		{name: "keeps kelvin sign", input: "\u212a\u212ajavascript:abc", expected: "\u212a\u212aabc"},
		{name: "keeps dotted capital I", input: "\u0130JAVASCRIPT:x \u0130", expected: "\u0130x \u0130"},
		{name: "removes folded scheme", input: "java\u017fcript:x", expected: "x"},
		{name: "drops invalid utf-8", input: "Ada\xff\xfe Obi", expected: "Ada Obi"},
		{name: "empty", input: "", expected: ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := SanitizeString(tt.input)
			assert.Equal(t, tt.expected, got)
			assert.Equal(t, got, SanitizeString(got), "sanitizing twice must be stable")
		})
	}
}

func FuzzSanitizeString(f *testing.F) {
	for _, seed := range []string{
		"Ada Obi",
		"javascript:alert(1)",
		"\u023ajavascript:",
		"\u212a\u212ajavascript:abc",
		"\u0130DATA:TEXT/HTML,x",
		"javajavascript:script:x",
		" \t<vbscript:>\n",
		"\xff\xfejava\xc0script:",
		"\u1e9e\u00df\ufb01 Ọlá",
	} {
		f.Add(seed)
	}

	f.Fuzz(func(t *testing.T, input string) {
		var out string
		assert.NotPanics(t, func() { out = SanitizeString(input) })
		assert.True(t, utf8.ValidString(out), "output must be valid utf-8: %q", out)
		assert.Equal(t, out, SanitizeString(out), "sanitizing twice must be stable")
	})
}

func TestSanitizeEmail(t *testing.T) {
	assert.Equal(t, "parent@school.ng", SanitizeEmail("  Parent@School.NG "))
}
