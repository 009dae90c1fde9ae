// Package sanitize normalises user-supplied template strings into keys and
// single-line plain text.
package sanitize

import (
	"regexp"
	"strings"

	"github.com/microcosm-cc/bluemonday"
	"golang.org/x/net/html"
)

var (
	strict = bluemonday.StrictPolicy()

	spaceRe   = regexp.MustCompile(`[\r\n\t ]+`)
	octetRe   = regexp.MustCompile(`%[a-fA-F0-9]{2}`)
	nonDataRe = regexp.MustCompile(`[^A-Za-z0-9._:-]`)
	entityRe  = regexp.MustCompile(`&(?:#[0-9]+|#[xX][0-9a-fA-F]+|[A-Za-z][A-Za-z0-9]*);`)
)

// Entities decodes named and numeric character references once. Only
// references closed by ';' are decoded; legacy forms such as "&not" or
// "&amp" without the semicolon are left as written.
func Entities(s string) string {
	if !strings.Contains(s, "&") {
		return s
	}
	return entityRe.ReplaceAllStringFunc(s, func(ref string) string {
		out := html.UnescapeString(ref)
		// A legacy prefix match ("&notx;" -> "¬x;") keeps the tail.
		if out != ";" && strings.HasSuffix(out, ";") {
			return ref
		}
		return out
	})
}

// Key lower-cases s and keeps only ASCII letters, digits, underscores and
// hyphens. Everything else, including multi-byte letters, is dropped.
func Key(s string) string {
	var b strings.Builder
	b.Grow(len(s))
	for i := 0; i < len(s); i++ {
		c := s[i]
		if c >= 'A' && c <= 'Z' {
			c += 'a' - 'A'
		}
		if (c >= 'a' && c <= 'z') || (c >= '0' && c <= '9') || c == '_' || c == '-' {
			b.WriteByte(c)
		}
	}
	return b.String()
}

// Text strips markup, collapses whitespace runs into single spaces, drops
// percent-encoded octets and trims the result.
func Text(s string) string {
	if s == "" {
		return ""
	}
	out := html.UnescapeString(strict.Sanitize(s))
	out = spaceRe.ReplaceAllString(out, " ")
	out = octetRe.ReplaceAllString(out, "")
	return strings.TrimSpace(out)
}

// Placeholder keeps only the characters a merge placeholder may contain.
func Placeholder(s string) string {
	return nonDataRe.ReplaceAllString(s, "")
}
