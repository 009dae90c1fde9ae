package models

import orderedmap "github.com/wk8/go-ordered-map/v2"

// Legacy control types.
const (
	ControlSingle   = "single"
	ControlRich     = "rich"
	ControlTextarea = "textarea"
	ControlArray    = "array"
)

// LegacyItem describes one child field of an array entry.
type LegacyItem struct {
	Label    string `json:"label"`
	Type     string `json:"type"`
	DataType string `json:"data_type"`
}

// LegacyEntry is the flat UI-facing node derived from a Schema.
type LegacyEntry struct {
	Slug        string `json:"slug"`
	Label       string `json:"label"`
	Type        string `json:"type"`
	Placeholder string `json:"placeholder"`
	DataType    string `json:"data_type"`

	// ItemSchema is set only for array entries, keyed by child slug in
	// template order.
	ItemSchema *orderedmap.OrderedMap[string, LegacyItem] `json:"item_schema,omitempty"`
}
