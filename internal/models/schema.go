// Package models defines the domain types for Resolate.
package models

// SchemaVersion is the version stamped on every extracted schema.
const SchemaVersion = 2

// TimeLayout formats parsed_at and the stored update time.
const TimeLayout = "2006-01-02 15:04:05"

// Template formats.
const (
	TemplateDocx = "docx"
	TemplateODT  = "odt"
)

// Field types accepted in a schema.
const (
	FieldText     = "text"
	FieldNumber   = "number"
	FieldDate     = "date"
	FieldEmail    = "email"
	FieldURL      = "url"
	FieldTextarea = "textarea"
	FieldHTML     = "html"
	FieldBoolean  = "boolean"
)

// Parameters maps a lower-cased placeholder parameter name to its value.
// Values are either a string or the boolean true for bare flags.
type Parameters map[string]any

// String returns the parameter as a string. Bare flags stringify to "1";
// absent keys yield ok=false.
func (p Parameters) String(key string) (string, bool) {
	v, ok := p[key]
	if !ok {
		return "", false
	}
	switch t := v.(type) {
	case string:
		return t, true
	case bool:
		if t {
			return "1", true
		}
		return "", true
	default:
		return "", false
	}
}

// Token is one placeholder occurrence found while scanning a template.
type Token struct {
	Name       string     `json:"name"`
	Parameters Parameters `json:"parameters"`
	Raw        string     `json:"raw"`
	Source     string     `json:"source"`
	Order      int        `json:"order"`
}

// Field is a leaf schema node.
type Field struct {
	Name        string     `json:"name"`
	Slug        string     `json:"slug"`
	Type        string     `json:"type"`
	Title       string     `json:"title"`
	Label       string     `json:"label,omitempty"`
	Placeholder string     `json:"placeholder"`
	Description string     `json:"description"`
	Pattern     string     `json:"pattern"`
	PatternMsg  string     `json:"patternmsg"`
	MinValue    string     `json:"minvalue"`
	MaxValue    string     `json:"maxvalue"`
	Length      string     `json:"length"`
	Parameters  Parameters `json:"parameters"`
	Raw         string     `json:"raw"`
	Source      string     `json:"source"`
}

// Repeater is a named, repeatable group of fields.
type Repeater struct {
	Name        string     `json:"name"`
	Slug        string     `json:"slug"`
	Title       string     `json:"title"`
	Label       string     `json:"label,omitempty"`
	Description string     `json:"description"`
	Parameters  Parameters `json:"parameters"`
	Fields      []Field    `json:"fields"`
}

// Meta describes where a schema came from.
type Meta struct {
	TemplateType string `json:"template_type"`
	TemplateName string `json:"template_name"`
	TemplateID   int64  `json:"template_id,omitempty"`
	Hash         string `json:"hash"`
	ParsedAt     string `json:"parsed_at"`
}

// Schema is the versioned root extracted from a template.
type Schema struct {
	Version   int        `json:"version"`
	Fields    []Field    `json:"fields"`
	Repeaters []Repeater `json:"repeaters"`
	Meta      Meta       `json:"meta"`
}

// IsEmpty reports whether s carries no version and no nodes.
func (s *Schema) IsEmpty() bool {
	return s == nil || (s.Version == 0 && len(s.Fields) == 0 && len(s.Repeaters) == 0)
}

// Summary is the derived lightweight view of a Schema.
type Summary struct {
	Version       int      `json:"version"`
	FieldCount    int      `json:"field_count"`
	RepeaterCount int      `json:"repeater_count"`
	RepeaterNames []string `json:"repeaters"`
	TemplateName  string   `json:"template_name"`
	TemplateType  string   `json:"template_type"`
	TemplateID    int64    `json:"template_id"`
	ParsedAt      string   `json:"parsed_at"`
}

// DocType is a registered document type: a term id bound to a template file.
type DocType struct {
	TermID       int64    `json:"term_id"`
	TemplatePath string   `json:"template_path"`
	TemplateType string   `json:"template_type"`
	Hash         string   `json:"hash,omitempty"`
	UpdatedAt    string   `json:"updated_at,omitempty"`
	Summary      *Summary `json:"summary,omitempty"`
}
