package filter

import (
	"html"
	"strings"
	"unicode"

	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

var stripMarks = runes.Remove(runes.In(unicode.Mn))

// Normalize turns free text into a slug: lowercase, accents stripped, every
// run of characters outside [a-z0-9] collapsed to a single '-', no leading or
// trailing '-'.
func Normalize(text string) string {
	if text == "" {
		return ""
	}
	decomposed, _, err := transform.String(transform.Chain(norm.NFD, stripMarks), strings.ToLower(text))
	if err != nil {
		decomposed = strings.ToLower(text)
	}

	var b strings.Builder
	b.Grow(len(decomposed))
	pendingSep := false
	for i := 0; i < len(decomposed); i++ {
		c := decomposed[i]
		if (c >= 'a' && c <= 'z') || (c >= '0' && c <= '9') {
			if pendingSep && b.Len() > 0 {
				b.WriteByte('-')
			}
			pendingSep = false
			b.WriteByte(c)
			continue
		}
		pendingSep = true
	}
	return b.String()
}

// Deref safely dereferences a string pointer, returning "" for nil.
func Deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}

// CleanText unescapes HTML entities and normalizes whitespace.
func CleanText(s string) string {
	s = html.UnescapeString(s)
	s = strings.ReplaceAll(s, "\r\n", " ")
	s = strings.ReplaceAll(s, "\r", " ")
	s = strings.ReplaceAll(s, "\n", " ")
	return strings.TrimSpace(s)
}
