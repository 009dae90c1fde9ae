package template

import (
	"regexp"
	"strings"

	"golang.org/x/net/html"

	"github.com/starford/resolate/internal/models"
	"github.com/starford/resolate/internal/sanitize"
)

var (
	// Word splits a placeholder across runs whenever formatting, spell
	// checking or revision marks touch part of it.
	docxCollapse = []*regexp.Regexp{
		regexp.MustCompile(`(?i)</w:t>\s*<w:r[^>]*>\s*<w:t[^>]*>`),
		regexp.MustCompile(`(?i)</w:t>\s*<w:t[^>]*>`),
	}
	odtCollapse = []*regexp.Regexp{
		regexp.MustCompile(`(?i)</text:span>\s*<text:span[^>]*>`),
		regexp.MustCompile(`(?i)</text:p>\s*<text:p[^>]*>`),
	}

	controlRe = regexp.MustCompile(`[\x00-\x1F\x7F]`)
)

// Normalize turns one archive part into plain searchable text. Run
// boundaries are collapsed first so split placeholders become contiguous,
// then markup is dropped and entities decoded. It never fails: malformed
// markup degrades to whatever text could be recovered.
func Normalize(xml []byte, templateType string) string {
	if len(xml) == 0 {
		return ""
	}
	s := string(xml)

	if templateType == models.TemplateDocx {
		for _, re := range docxCollapse {
			s = re.ReplaceAllString(s, "")
		}
	} else {
		for _, re := range odtCollapse {
			s = re.ReplaceAllString(s, " ")
		}
	}

	s = controlRe.ReplaceAllString(s, "")
	s = stripTags(s)
	s = strings.ReplaceAll(s, "\r\n", "\n")
	s = strings.ReplaceAll(s, "\r", "\n")
	return strings.TrimSpace(s)
}

// stripTags keeps only character data and decodes its entities once.
// The HTML tokenizer switches to raw text inside bare title, style, script
// and textarea elements; that is safe only because every OOXML and ODF
// element carries a namespace prefix (w:t, text:p).
func stripTags(s string) string {
	z := html.NewTokenizer(strings.NewReader(s))
	var b strings.Builder
	b.Grow(len(s) / 2)
	for {
		switch z.Next() {
		case html.ErrorToken:
			return b.String()
		case html.TextToken:
			b.WriteString(sanitize.Entities(string(z.Raw())))
		}
	}
}
