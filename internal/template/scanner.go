package template

import "strings"

// scanState is the position of the scanner relative to placeholder syntax.
type scanState int

const (
	stateOutside  scanState = iota // between placeholders
	stateUnquoted                  // inside [ ... ], not in a quoted value
	stateQuoted                    // inside a quoted parameter value
)

func isQuote(c byte) bool { return c == '\'' || c == '"' }

// ScanChunks returns every bracket-delimited placeholder in text, brackets
// included, in order of appearance. A ']' inside a quoted value does not
// close the placeholder, and a quote preceded by a backslash does not open
// or close one. Placeholders still open at end of text are dropped.
func ScanChunks(text string) []string {
	var (
		chunks []string
		state  = stateOutside
		quote  byte
		prev   byte
		start  int
	)
	for i := 0; i < len(text); i++ {
		c := text[i]
		switch state {
		case stateOutside:
			if c == '[' {
				state = stateUnquoted
				start = i
			}
		case stateUnquoted:
			switch {
			case isQuote(c) && prev != '\\':
				state = stateQuoted
				quote = c
			case c == ']':
				chunks = append(chunks, text[start:i+1])
				state = stateOutside
			}
		case stateQuoted:
			if c == quote && prev != '\\' {
				state = stateUnquoted
			}
		}
		prev = c
	}
	return chunks
}

// splitSegments splits a placeholder body on ';' outside quoted values.
// Segments are trimmed; empty ones are kept so the first segment is always
// the placeholder name.
func splitSegments(s string) []string {
	var (
		out   []string
		state = stateUnquoted
		quote byte
		prev  byte
		start int
	)
	for i := 0; i < len(s); i++ {
		c := s[i]
		switch state {
		case stateUnquoted:
			switch {
			case isQuote(c) && prev != '\\':
				state = stateQuoted
				quote = c
			case c == ';':
				out = append(out, strings.TrimSpace(s[start:i]))
				start = i + 1
			}
		case stateQuoted:
			if c == quote && prev != '\\' {
				state = stateUnquoted
			}
		}
		prev = c
	}
	return append(out, strings.TrimSpace(s[start:]))
}
