package main

import (
	"bytes"
	"strings"
	"testing"

	orderedmap "github.com/wk8/go-ordered-map/v2"

	"github.com/starford/resolate/internal/models"
)

func TestWriteJSON(t *testing.T) {
	var buf bytes.Buffer
	if err := write(&buf, formatJSON, models.Summary{FieldCount: 2, RepeaterNames: []string{}}); err != nil {
		t.Fatal(err)
	}
	out := buf.String()
	if !strings.Contains(out, `"field_count": 2`) {
		t.Errorf("json = %s", out)
	}
	if !strings.HasSuffix(out, "}\n") {
		t.Errorf("json should end with a newline: %q", out)
	}
}

func TestWriteYAML_KeepsOrderAndBlockStyle(t *testing.T) {
	items := orderedmap.New[string, models.LegacyItem]()
	items.Set("zeta", models.LegacyItem{Label: "Zeta", Type: "single", DataType: "text"})
	items.Set("alfa", models.LegacyItem{Label: "Alfa", Type: "rich", DataType: "html"})
	entries := []models.LegacyEntry{{
		Slug:       "lineas",
		Label:      "Lineas",
		Type:       models.ControlArray,
		DataType:   models.ControlArray,
		ItemSchema: items,
	}}

	var buf bytes.Buffer
	if err := write(&buf, formatYAML, entries); err != nil {
		t.Fatal(err)
	}
	out := buf.String()

	if strings.Contains(out, "{") || strings.Contains(out, "[") {
		t.Errorf("yaml should be block style:\n%s", out)
	}
	if !strings.Contains(out, "item_schema:") {
		t.Errorf("yaml should use json field names:\n%s", out)
	}
	if strings.Index(out, "zeta") > strings.Index(out, "alfa") {
		t.Errorf("item order not preserved:\n%s", out)
	}
}

func TestWriteUnknownFormat(t *testing.T) {
	var buf bytes.Buffer
	if err := write(&buf, "xml", 1); err == nil {
		t.Fatal("unknown format should fail")
	}
}
