// Package apperr holds sentinel errors shared across layers.
package apperr

import "errors"

var (
	ErrNotFound     = errors.New("not found")
	ErrInvalidInput = errors.New("invalid input")

	// Template extraction failures. Callers branch on these with errors.Is.
	ErrTemplateMissing         = errors.New("the selected template file is not accessible")
	ErrUnsupportedTemplateType = errors.New("the template must be a DOCX or ODT file")
	ErrTemplateOpen            = errors.New("the template file could not be opened")
)
