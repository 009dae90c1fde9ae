package template

import (
	"maps"
	"regexp"
	"strings"

	"github.com/starford/resolate/internal/models"
	"github.com/starford/resolate/internal/sanitize"
)

const (
	blockParam = "block"
	blockBegin = "begin"
	blockEnd   = "end"
)

var (
	validNameRe = regexp.MustCompile(`^[\p{L}\p{N}_\- ]+$`)
	richNameRe  = regexp.MustCompile(`html|rich|contenido|body|cuerpo`)

	typeAliases = map[string]string{
		"rich":      models.FieldHTML,
		"tinymce":   models.FieldHTML,
		"editor":    models.FieldHTML,
		"text-area": models.FieldTextarea,
		"text_area": models.FieldTextarea,
		"numeric":   models.FieldNumber,
		"int":       models.FieldNumber,
		"integer":   models.FieldNumber,
		"float":     models.FieldNumber,
		"decimal":   models.FieldNumber,
		"bool":      models.FieldBoolean,
		"checkbox":  models.FieldBoolean,
	}

	validTypes = map[string]struct{}{
		models.FieldText:     {},
		models.FieldNumber:   {},
		models.FieldDate:     {},
		models.FieldEmail:    {},
		models.FieldURL:      {},
		models.FieldTextarea: {},
		models.FieldHTML:     {},
		models.FieldBoolean:  {},
	}
)

// Build assembles a versioned schema from tokens in document order.
// Repeaters are tracked by index on an explicit stack: an unmatched end is
// ignored and an unclosed begin keeps absorbing fields until the last token.
func Build(tokens []models.Token) *models.Schema {
	schema := &models.Schema{
		Version:   models.SchemaVersion,
		Fields:    []models.Field{},
		Repeaters: []models.Repeater{},
	}
	var open []int

	for _, tok := range tokens {
		mode, _ := tok.Parameters.String(blockParam)
		switch strings.ToLower(mode) {
		case blockBegin:
			schema.Repeaters = append(schema.Repeaters, newRepeater(tok))
			open = append(open, len(schema.Repeaters)-1)
			continue
		case blockEnd:
			if len(open) > 0 {
				open = open[:len(open)-1]
			}
			continue
		}

		field, ok := newField(tok)
		if !ok {
			continue
		}
		if len(open) == 0 {
			schema.Fields = append(schema.Fields, field)
			continue
		}
		top := open[len(open)-1]
		schema.Repeaters[top].Fields = append(schema.Repeaters[top].Fields, field)
	}
	return schema
}

func newRepeater(tok models.Token) models.Repeater {
	params := maps.Clone(tok.Parameters)
	if params == nil {
		params = models.Parameters{}
	}
	delete(params, blockParam)

	return models.Repeater{
		Name:        tok.Name,
		Slug:        sanitize.Key(tok.Name),
		Title:       textParam(tok.Parameters, "title"),
		Description: textParam(tok.Parameters, "description"),
		Parameters:  params,
		Fields:      []models.Field{},
	}
}

func newField(tok models.Token) (models.Field, bool) {
	if tok.Name == "" || !validNameRe.MatchString(tok.Name) {
		return models.Field{}, false
	}
	params := maps.Clone(tok.Parameters)
	if params == nil {
		params = models.Parameters{}
	}

	return models.Field{
		Name:        tok.Name,
		Slug:        sanitize.Key(tok.Name),
		Type:        resolveFieldType(tok.Name, params),
		Title:       textParam(params, "title"),
		Placeholder: textParam(params, "placeholder"),
		Description: textParam(params, "description"),
		Pattern:     rawParam(params, "pattern"),
		PatternMsg:  textParam(params, "patternmsg"),
		MinValue:    rawParam(params, "minvalue"),
		MaxValue:    rawParam(params, "maxvalue"),
		Length:      rawParam(params, "length"),
		Parameters:  params,
		Raw:         tok.Raw,
		Source:      tok.Source,
	}, true
}

// resolveFieldType prefers an explicit type or data-type parameter, then a
// name heuristic for rich content, then textarea.
func resolveFieldType(name string, params models.Parameters) string {
	declared, ok := params.String("type")
	if !ok {
		declared, ok = params.String("data-type")
	}
	if ok {
		if t := NormalizeFieldType(declared); t != "" {
			return t
		}
	}
	if richNameRe.MatchString(strings.ToLower(name)) {
		return models.FieldHTML
	}
	return models.FieldTextarea
}

// NormalizeFieldType maps a declared type through the alias table and
// returns "" when the result is not a known field type.
func NormalizeFieldType(declared string) string {
	t := strings.ToLower(strings.TrimSpace(declared))
	if alias, ok := typeAliases[t]; ok {
		t = alias
	}
	if _, ok := validTypes[t]; ok {
		return t
	}
	return ""
}

func textParam(p models.Parameters, key string) string {
	v, _ := p.String(key)
	return sanitize.Text(v)
}

func rawParam(p models.Parameters, key string) string {
	v, _ := p.String(key)
	return v
}
