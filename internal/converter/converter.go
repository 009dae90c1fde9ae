// Package converter flattens a versioned schema into the legacy entry list
// consumed by form rendering.
package converter

import (
	"regexp"
	"slices"
	"strings"

	orderedmap "github.com/wk8/go-ordered-map/v2"
	"golang.org/x/text/cases"
	"golang.org/x/text/language"

	"github.com/starford/resolate/internal/models"
	"github.com/starford/resolate/internal/sanitize"
)

var (
	machineTypes = []string{
		models.FieldNumber,
		models.FieldDate,
		models.FieldBoolean,
		models.FieldEmail,
		models.FieldURL,
		models.FieldText,
	}

	scalarSingleRe = regexp.MustCompile(`\b(title|titulo|título|heading|subject|asunto|name|nombre)\b`)
	scalarRichRe   = regexp.MustCompile(`(content|contenido|texto|text|body|descripcion|descripción|detalle|summary|resumen)`)

	itemIndexRe  = regexp.MustCompile(`^(number|numero|número|index|indice)$`)
	itemSingleRe = regexp.MustCompile(`\b(title|titulo|título|heading|name|nombre)\b`)
	itemRichRe   = regexp.MustCompile(`(content|contenido|texto|text|body|descripcion|descripción)$`)

	spacesRe  = regexp.MustCompile(`\s+`)
	separator = strings.NewReplacer("-", " ", "_", " ", ".", " ")
)

// ToLegacy converts schema into one entry per top-level field followed by
// one array entry per repeater. Nodes whose slug sanitizes to empty are
// dropped. A nil schema yields an empty list.
func ToLegacy(schema *models.Schema) []models.LegacyEntry {
	out := []models.LegacyEntry{}
	if schema == nil {
		return out
	}

	for _, f := range schema.Fields {
		if entry, ok := mapField(f); ok {
			out = append(out, entry)
		}
	}
	for _, r := range schema.Repeaters {
		if entry, ok := mapRepeater(r); ok {
			out = append(out, entry)
		}
	}
	return out
}

func mapField(f models.Field) (models.LegacyEntry, bool) {
	slug := slugOf(f.Slug, f.Name)
	if slug == "" {
		return models.LegacyEntry{}, false
	}

	label := resolveLabel(slug, f.Title, f.Label, f.Name)
	placeholder := placeholderOf(f.Placeholder, slug)
	fieldType := typeOf(f.Type)

	return models.LegacyEntry{
		Slug:        slug,
		Label:       label,
		Type:        scalarControl(fieldType, slug, label, placeholder),
		Placeholder: placeholder,
		DataType:    DataType(fieldType),
	}, true
}

func mapRepeater(r models.Repeater) (models.LegacyEntry, bool) {
	slug := slugOf(r.Slug, r.Name)
	if slug == "" {
		return models.LegacyEntry{}, false
	}

	items := orderedmap.New[string, models.LegacyItem]()
	for _, f := range r.Fields {
		itemSlug := slugOf(f.Slug, f.Name)
		if itemSlug == "" {
			continue
		}
		label := resolveLabel(itemSlug, f.Title, f.Label, f.Name)
		fieldType := typeOf(f.Type)
		items.Set(itemSlug, models.LegacyItem{
			Label:    label,
			Type:     itemControl(fieldType, itemSlug, label),
			DataType: DataType(fieldType),
		})
	}

	return models.LegacyEntry{
		Slug:        slug,
		Label:       resolveLabel(slug, r.Title, r.Label, r.Name),
		Type:        models.ControlArray,
		Placeholder: slug,
		DataType:    models.ControlArray,
		ItemSchema:  items,
	}, true
}

// DataType maps a schema field type to the legacy data type.
func DataType(fieldType string) string {
	switch strings.ToLower(fieldType) {
	case models.FieldNumber:
		return "number"
	case models.FieldDate:
		return "date"
	case models.FieldBoolean:
		return "boolean"
	default:
		return "text"
	}
}

func scalarControl(fieldType, slug, label, placeholder string) string {
	fieldType = strings.ToLower(fieldType)
	if slices.Contains(machineTypes, fieldType) {
		return models.ControlSingle
	}
	if fieldType == models.FieldHTML {
		return models.ControlRich
	}

	haystack := strings.TrimSpace(strings.ToLower(slug + " " + label + " " + placeholder))
	switch {
	case scalarSingleRe.MatchString(haystack):
		return models.ControlSingle
	case scalarRichRe.MatchString(haystack):
		return models.ControlRich
	default:
		return models.ControlTextarea
	}
}

// itemControl lets name heuristics win over an html type.
func itemControl(fieldType, slug, label string) string {
	fieldType = strings.ToLower(fieldType)
	slug = strings.ToLower(slug)
	label = strings.ToLower(label)

	if slices.Contains(machineTypes, fieldType) {
		return models.ControlSingle
	}
	if itemIndexRe.MatchString(slug) {
		return models.ControlSingle
	}

	combined := slug + " " + label
	switch {
	case itemSingleRe.MatchString(combined):
		return models.ControlSingle
	case itemRichRe.MatchString(combined):
		return models.ControlRich
	case fieldType == models.FieldHTML:
		return models.ControlRich
	default:
		return models.ControlTextarea
	}
}

// resolveLabel returns the first non-empty candidate, humanized when it
// still looks like an identifier, or the humanized fallback.
func resolveLabel(fallback string, candidates ...string) string {
	for _, c := range candidates {
		c = sanitize.Text(c)
		if c == "" {
			continue
		}
		if strings.ContainsAny(c, "_-") {
			return Humanize(c)
		}
		return c
	}
	return Humanize(fallback)
}

// Humanize turns a slug into a title-cased label.
func Humanize(slug string) string {
	s := separator.Replace(slug)
	s = strings.TrimSpace(spacesRe.ReplaceAllString(s, " "))
	if s == "" {
		return ""
	}
	// A Caser is stateful; one per call keeps Humanize safe for concurrent use.
	return cases.Title(language.Und).String(s)
}

func slugOf(candidates ...string) string {
	for _, c := range candidates {
		if slug := sanitize.Key(c); slug != "" {
			return slug
		}
	}
	return ""
}

func placeholderOf(placeholder, fallback string) string {
	if placeholder == "" {
		return fallback
	}
	if p := sanitize.Placeholder(placeholder); p != "" {
		return p
	}
	return fallback
}

func typeOf(t string) string {
	if k := sanitize.Key(t); k != "" {
		return k
	}
	return models.FieldTextarea
}
