package api

import (
	"path/filepath"
	"strings"

	validation "github.com/go-ozzo/ozzo-validation/v4"

	"github.com/starford/resolate/internal/doctype"
	"github.com/starford/resolate/internal/models"
)

// SetTemplateRequest is the request body for binding a template.
type SetTemplateRequest struct {
	// Path is relative to the templates directory.
	Path string `json:"path" example:"resoluciones/modelo.docx" validate:"required"`
}

// Validate validates the request.
func (r SetTemplateRequest) Validate() error {
	return validation.ValidateStruct(&r,
		validation.Field(&r.Path, validation.Required, validation.By(relativePath)),
	)
}

func relativePath(v any) error {
	p, _ := v.(string)
	if filepath.IsAbs(p) || strings.HasPrefix(p, "/") {
		return validation.NewError("validation_path_absolute", "must be relative to the templates directory")
	}
	for _, part := range strings.FieldsFunc(p, func(r rune) bool { return r == '/' || r == '\\' }) {
		if part == ".." {
			return validation.NewError("validation_path_traversal", "must not contain '..'")
		}
	}
	return nil
}

// DocTypeListResponse wraps the document type listing.
type DocTypeListResponse struct {
	DocTypes []models.DocType `json:"doc_types" validate:"required"`
}

// LegacyFieldsResponse wraps the legacy field list of a document type.
type LegacyFieldsResponse struct {
	TermID int64                `json:"term_id" example:"12" validate:"required"`
	Fields []models.LegacyEntry `json:"fields" validate:"required"`
}

// RefreshResponse is returned by template binding and refresh.
type RefreshResponse = doctype.RefreshResult

// PreviewResponse is returned by the template preview upload.
type PreviewResponse = doctype.Preview
