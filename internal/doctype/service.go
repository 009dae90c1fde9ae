// Package doctype binds document types (term ids) to template files and
// keeps their stored schema in step with the template on disk.
package doctype

import (
	"context"
	"fmt"
	"log/slog"
	"path/filepath"
	"slices"
	"strings"

	"github.com/starford/resolate/internal/apperr"
	"github.com/starford/resolate/internal/checksum"
	"github.com/starford/resolate/internal/converter"
	"github.com/starford/resolate/internal/models"
	"github.com/starford/resolate/internal/schemastore"
	"github.com/starford/resolate/internal/storage"
	"github.com/starford/resolate/internal/template"
)

// Term meta keys holding the template binding.
const (
	KeyTemplate     = "resolate_type_template"
	KeyTemplateType = "resolate_type_template_type"
)

// Outcome reports what a refresh did.
type Outcome string

const (
	Updated   Outcome = "updated"
	Unchanged Outcome = "unchanged"
)

// RefreshResult is returned by SetTemplate, Refresh and Sync.
type RefreshResult struct {
	TermID  int64          `json:"term_id"`
	Outcome Outcome        `json:"outcome"`
	Summary models.Summary `json:"summary"`
}

// Preview is an unsaved extraction with its legacy rendering.
type Preview struct {
	Schema *models.Schema       `json:"schema"`
	Fields []models.LegacyEntry `json:"fields"`
}

// Service coordinates the extractor, schema storage and term meta.
type Service struct {
	meta      storage.Provider
	schemas   *schemastore.Storage
	extractor *template.Extractor
	root      string
	logger    *slog.Logger
}

// Option configures a Service.
type Option func(*Service)

// WithTemplatesDir resolves relative template paths against dir.
func WithTemplatesDir(dir string) Option {
	return func(s *Service) { s.root = dir }
}

// WithLogger sets the service logger.
func WithLogger(l *slog.Logger) Option {
	return func(s *Service) { s.logger = l }
}

// NewService creates a document type service.
func NewService(meta storage.Provider, schemas *schemastore.Storage, extractor *template.Extractor, opts ...Option) *Service {
	s := &Service{meta: meta, schemas: schemas, extractor: extractor, logger: slog.Default()}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// SetTemplate binds path to termID, extracts it and saves the schema.
// Template errors are returned unchanged and leave the binding untouched.
func (s *Service) SetTemplate(ctx context.Context, termID int64, path string) (*RefreshResult, error) {
	if termID <= 0 {
		return nil, fmt.Errorf("doctype: term id %d: %w", termID, apperr.ErrInvalidInput)
	}
	abs, err := s.resolve(path)
	if err != nil {
		return nil, err
	}

	schema, err := s.extract(ctx, termID, abs)
	if err != nil {
		return nil, err
	}
	if err := s.meta.Set(termID, KeyTemplate, []byte(abs)); err != nil {
		return nil, fmt.Errorf("doctype: bind template: %w", err)
	}
	if err := s.meta.Set(termID, KeyTemplateType, []byte(schema.Meta.TemplateType)); err != nil {
		return nil, fmt.Errorf("doctype: bind template type: %w", err)
	}
	if err := s.schemas.SaveSchema(termID, schema); err != nil {
		return nil, err
	}

	s.logger.Info("doctype: template bound",
		slog.Int64("term_id", termID),
		slog.String("template", abs),
		slog.Int("fields", len(schema.Fields)),
		slog.Int("repeaters", len(schema.Repeaters)))
	return &RefreshResult{TermID: termID, Outcome: Updated, Summary: schemastore.Summarize(schema)}, nil
}

// Refresh re-extracts the bound template when its content hash differs
// from the stored one, or unconditionally when force is set.
func (s *Service) Refresh(ctx context.Context, termID int64, force bool) (*RefreshResult, error) {
	path, err := s.templatePath(termID)
	if err != nil {
		return nil, err
	}

	if !force {
		sum, err := checksum.File(path)
		if err != nil {
			return nil, fmt.Errorf("doctype: %s: %w", path, apperr.ErrTemplateMissing)
		}
		stored, err := s.schemas.GetHash(termID)
		if err != nil {
			return nil, err
		}
		if stored != "" && stored == sum {
			summary, err := s.schemas.GetSummary(termID)
			if err != nil {
				return nil, err
			}
			res := &RefreshResult{TermID: termID, Outcome: Unchanged}
			if summary != nil {
				res.Summary = *summary
			}
			return res, nil
		}
	}

	schema, err := s.extract(ctx, termID, path)
	if err != nil {
		return nil, err
	}
	if err := s.meta.Set(termID, KeyTemplateType, []byte(schema.Meta.TemplateType)); err != nil {
		return nil, fmt.Errorf("doctype: bind template type: %w", err)
	}
	if err := s.schemas.SaveSchema(termID, schema); err != nil {
		return nil, err
	}
	s.logger.Info("doctype: schema refreshed", slog.Int64("term_id", termID), slog.Bool("forced", force))
	return &RefreshResult{TermID: termID, Outcome: Updated, Summary: schemastore.Summarize(schema)}, nil
}

// Sync refreshes every bound document type. A failing term is logged and
// skipped; only a failure to enumerate the bindings is returned.
func (s *Service) Sync(ctx context.Context) ([]RefreshResult, error) {
	bindings, err := s.bindings()
	if err != nil {
		return nil, err
	}

	var out []RefreshResult
	for _, id := range sortedIDs(bindings) {
		if err := ctx.Err(); err != nil {
			return out, err
		}
		res, err := s.Refresh(ctx, id, false)
		if err != nil {
			s.logger.Warn("doctype: sync failed",
				slog.Int64("term_id", id),
				slog.String("error", err.Error()))
			continue
		}
		out = append(out, *res)
	}

	s.logger.Info("doctype: sync complete", slog.Int("bound", len(bindings)), slog.Int("refreshed", len(out)))
	return out, nil
}

// List returns every bound document type ordered by term id.
func (s *Service) List(_ context.Context) ([]models.DocType, error) {
	bindings, err := s.bindings()
	if err != nil {
		return nil, err
	}
	out := make([]models.DocType, 0, len(bindings))
	for _, id := range sortedIDs(bindings) {
		dt, err := s.describe(id, bindings[id])
		if err != nil {
			return nil, err
		}
		out = append(out, *dt)
	}
	return out, nil
}

// Get returns one bound document type.
func (s *Service) Get(_ context.Context, termID int64) (*models.DocType, error) {
	path, err := s.templatePath(termID)
	if err != nil {
		return nil, err
	}
	return s.describe(termID, path)
}

// Schema returns the stored schema of termID.
func (s *Service) Schema(_ context.Context, termID int64) (*models.Schema, error) {
	schema, err := s.schemas.GetSchema(termID)
	if err != nil {
		return nil, err
	}
	if schema.IsEmpty() {
		return nil, fmt.Errorf("doctype: schema %d: %w", termID, apperr.ErrNotFound)
	}
	return schema, nil
}

// Summary returns the stored summary of termID.
func (s *Service) Summary(_ context.Context, termID int64) (*models.Summary, error) {
	summary, err := s.schemas.GetSummary(termID)
	if err != nil {
		return nil, err
	}
	if summary == nil {
		return nil, fmt.Errorf("doctype: summary %d: %w", termID, apperr.ErrNotFound)
	}
	return summary, nil
}

// LegacyFields returns the stored schema of termID in legacy form.
func (s *Service) LegacyFields(ctx context.Context, termID int64) ([]models.LegacyEntry, error) {
	schema, err := s.Schema(ctx, termID)
	if err != nil {
		return nil, err
	}
	return converter.ToLegacy(schema), nil
}

// Remove deletes the stored schema and the template binding of termID.
func (s *Service) Remove(_ context.Context, termID int64) error {
	if err := s.schemas.DeleteSchema(termID); err != nil {
		return err
	}
	for _, key := range []string{KeyTemplate, KeyTemplateType} {
		if err := s.meta.Delete(termID, key); err != nil {
			return fmt.Errorf("doctype: unbind %d: %w", termID, err)
		}
	}
	s.logger.Info("doctype: removed", slog.Int64("term_id", termID))
	return nil
}

// Preview extracts path without storing anything. Relative paths resolve
// against the templates directory and must stay inside it.
func (s *Service) Preview(ctx context.Context, path string) (*Preview, error) {
	abs, err := s.resolve(path)
	if err != nil {
		return nil, err
	}
	return s.PreviewFile(ctx, abs)
}

// PreviewFile extracts a file the caller owns, such as an upload spooled to
// a temporary directory. The path is not confined to the templates
// directory and must never come from a client.
func (s *Service) PreviewFile(ctx context.Context, path string) (*Preview, error) {
	schema, err := s.extractor.Extract(ctx, path)
	if err != nil {
		return nil, err
	}
	return &Preview{Schema: schema, Fields: converter.ToLegacy(schema)}, nil
}

// TermsFor returns the terms whose template is path, in id order.
func (s *Service) TermsFor(path string) ([]int64, error) {
	bindings, err := s.bindings()
	if err != nil {
		return nil, err
	}
	target := filepath.Clean(path)
	var out []int64
	for _, id := range sortedIDs(bindings) {
		if filepath.Clean(bindings[id]) == target {
			out = append(out, id)
		}
	}
	return out, nil
}

func (s *Service) extract(ctx context.Context, termID int64, path string) (*models.Schema, error) {
	schema, err := s.extractor.Extract(ctx, path)
	if err != nil {
		return nil, err
	}
	schema.Meta.TemplateID = termID
	return schema, nil
}

func (s *Service) describe(termID int64, path string) (*models.DocType, error) {
	typ, err := s.meta.Get(termID, KeyTemplateType)
	if err != nil {
		return nil, fmt.Errorf("doctype: template type %d: %w", termID, err)
	}
	hash, err := s.schemas.GetHash(termID)
	if err != nil {
		return nil, err
	}
	updated, err := s.schemas.GetUpdated(termID)
	if err != nil {
		return nil, err
	}
	summary, err := s.schemas.GetSummary(termID)
	if err != nil {
		return nil, err
	}
	return &models.DocType{
		TermID:       termID,
		TemplatePath: path,
		TemplateType: string(typ),
		Hash:         hash,
		UpdatedAt:    updated,
		Summary:      summary,
	}, nil
}

func (s *Service) templatePath(termID int64) (string, error) {
	data, err := s.meta.Get(termID, KeyTemplate)
	if err != nil {
		return "", fmt.Errorf("doctype: template %d: %w", termID, err)
	}
	if len(data) == 0 {
		return "", fmt.Errorf("doctype: term %d has no template: %w", termID, apperr.ErrNotFound)
	}
	return string(data), nil
}

func (s *Service) bindings() (map[int64]string, error) {
	raw, err := s.meta.Find(KeyTemplate)
	if err != nil {
		return nil, fmt.Errorf("doctype: list bindings: %w", err)
	}
	out := make(map[int64]string, len(raw))
	for id, v := range raw {
		if len(v) > 0 {
			out[id] = string(v)
		}
	}
	return out, nil
}

// resolve makes path absolute, relative to the templates directory when
// one is configured. With a templates directory, the result must lie
// inside it.
func (s *Service) resolve(path string) (string, error) {
	if path == "" {
		return "", fmt.Errorf("doctype: empty template path: %w", apperr.ErrTemplateMissing)
	}
	if !filepath.IsAbs(path) && s.root != "" {
		path = filepath.Join(s.root, path)
	}
	abs, err := filepath.Abs(path)
	if err != nil {
		return "", fmt.Errorf("doctype: resolve %s: %v: %w", path, err, apperr.ErrTemplateMissing)
	}
	if s.root == "" {
		return abs, nil
	}
	root, err := filepath.Abs(s.root)
	if err != nil {
		return "", fmt.Errorf("doctype: resolve templates dir: %w", err)
	}
	if !within(root, abs) {
		return "", fmt.Errorf("doctype: %s is outside the templates directory: %w", path, apperr.ErrInvalidInput)
	}
	return abs, nil
}

// within reports whether path is root or lies below it. Both are absolute
// and clean.
func within(root, path string) bool {
	rel, err := filepath.Rel(root, path)
	if err != nil {
		return false
	}
	return rel != ".." && !strings.HasPrefix(rel, ".."+string(filepath.Separator))
}

func sortedIDs(m map[int64]string) []int64 {
	ids := make([]int64, 0, len(m))
	for id := range m {
		ids = append(ids, id)
	}
	slices.Sort(ids)
	return ids
}
