// Package template extracts a field schema from the placeholder tokens of a
// DOCX or ODT template.
//
// Placeholders are bracketed directives with semicolon-separated parameters:
//
//	[nombre;type='text';title='Nombre completo';placeholder='Tu nombre']
//	[items;block=begin] ... [titulo] ... [items;block=end]
//
// The pipeline is Normalize → ScanChunks → ParseToken → Build.
package template

import (
	"archive/zip"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"regexp"
	"strings"
	"time"

	"github.com/starford/resolate/internal/apperr"
	"github.com/starford/resolate/internal/checksum"
	"github.com/starford/resolate/internal/models"
)

var (
	docxPreferred = []string{
		"word/document.xml",
		"word/header1.xml",
		"word/header2.xml",
		"word/footer1.xml",
		"word/footer2.xml",
		"word/footnotes.xml",
		"word/endnotes.xml",
	}
	docxExtraRe = regexp.MustCompile(`(?i)^word/(header|footer|footnotes|endnotes)[^/]*\.xml$`)

	odtParts = []string{"content.xml", "styles.xml"}
)

// Config configures an Extractor.
type Config struct {
	// MaxFileSize is the largest template accepted (default: 50 MB).
	MaxFileSize int64 `yaml:"max_file_size"`

	Logger *slog.Logger     `yaml:"-"`
	Now    func() time.Time `yaml:"-"`
}

func (c *Config) defaults() {
	if c.MaxFileSize <= 0 {
		c.MaxFileSize = 50 << 20
	}
	if c.Logger == nil {
		c.Logger = slog.Default()
	}
	if c.Now == nil {
		c.Now = time.Now
	}
}

// Extractor reads templates and builds their schema. It holds no state
// between calls and is safe for concurrent use.
type Extractor struct {
	cfg    Config
	logger *slog.Logger
}

// New creates an Extractor with the given configuration.
func New(cfg Config) *Extractor {
	cfg.defaults()
	return &Extractor{cfg: cfg, logger: cfg.Logger}
}

// Detect returns the template type for path based on its extension.
func Detect(path string) (string, error) {
	switch strings.ToLower(strings.TrimPrefix(filepath.Ext(path), ".")) {
	case models.TemplateDocx:
		return models.TemplateDocx, nil
	case models.TemplateODT:
		return models.TemplateODT, nil
	default:
		return "", fmt.Errorf("template: %q: %w", filepath.Base(path), apperr.ErrUnsupportedTemplateType)
	}
}

// Extract parses the template at path and returns its schema. Errors wrap
// apperr.ErrTemplateMissing, apperr.ErrUnsupportedTemplateType or
// apperr.ErrTemplateOpen; any other anomaly skips the offending part or
// token and extraction continues.
func (e *Extractor) Extract(ctx context.Context, path string) (*models.Schema, error) {
	if err := checkReadable(path); err != nil {
		return nil, err
	}
	templateType, err := Detect(path)
	if err != nil {
		return nil, err
	}

	tokens, err := e.Tokens(ctx, path, templateType)
	if err != nil {
		return nil, err
	}

	schema := Build(tokens)
	schema.Meta = models.Meta{
		TemplateType: templateType,
		TemplateName: filepath.Base(path),
		Hash:         e.hash(path, tokens),
		ParsedAt:     e.cfg.Now().Format(models.TimeLayout),
	}

	e.logger.Debug("template extracted",
		slog.String("template", schema.Meta.TemplateName),
		slog.Int("tokens", len(tokens)),
		slog.Int("fields", len(schema.Fields)),
		slog.Int("repeaters", len(schema.Repeaters)))
	return schema, nil
}

// Tokens opens the archive and returns every usable placeholder token in
// part order. The archive is closed before returning on every path.
func (e *Extractor) Tokens(ctx context.Context, path, templateType string) ([]models.Token, error) {
	info, err := os.Stat(path)
	if err != nil {
		return nil, fmt.Errorf("template: stat %s: %w", path, apperr.ErrTemplateMissing)
	}
	if info.Size() > e.cfg.MaxFileSize {
		return nil, fmt.Errorf("template: %s is %d bytes (max %d): %w",
			filepath.Base(path), info.Size(), e.cfg.MaxFileSize, apperr.ErrTemplateOpen)
	}

	r, err := zip.OpenReader(path)
	if err != nil {
		return nil, fmt.Errorf("template: open %s: %v: %w", filepath.Base(path), err, apperr.ErrTemplateOpen)
	}
	defer r.Close()

	var targets []*zip.File
	if templateType == models.TemplateDocx {
		targets = docxTargets(&r.Reader)
	} else {
		targets = odtTargets(&r.Reader)
	}

	tokens := []models.Token{}
	for _, f := range targets {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		data, err := readPart(f)
		if err != nil {
			e.logger.Debug("template: part skipped", slog.String("part", f.Name), slog.String("error", err.Error()))
			continue
		}
		text := Normalize(data, templateType)
		if text == "" {
			continue
		}

		for _, chunk := range ScanChunks(text) {
			name, params := ParseToken(chunk[1 : len(chunk)-1])
			if name == "" {
				continue
			}
			tokens = append(tokens, models.Token{
				Name:       name,
				Parameters: params,
				Raw:        chunk,
				Source:     f.Name,
				Order:      len(tokens),
			})
		}
	}
	return tokens, nil
}

func (e *Extractor) hash(path string, tokens []models.Token) string {
	sum, err := checksum.File(path)
	if err == nil {
		return sum
	}
	e.logger.Warn("template: file digest failed, hashing tokens", slog.String("error", err.Error()))
	data, _ := json.Marshal(tokens)
	return checksum.Sum(data)
}

func checkReadable(path string) error {
	if path == "" {
		return fmt.Errorf("template: empty path: %w", apperr.ErrTemplateMissing)
	}
	f, err := os.Open(path)
	if err != nil {
		return fmt.Errorf("template: %s: %w", path, apperr.ErrTemplateMissing)
	}
	return f.Close()
}

// docxTargets lists the main document, the numbered headers and footers and
// the notes parts, without duplicates and in first-seen order.
func docxTargets(r *zip.Reader) []*zip.File {
	byName := make(map[string]*zip.File, len(r.File))
	for _, f := range r.File {
		if _, dup := byName[f.Name]; !dup {
			byName[f.Name] = f
		}
	}

	seen := make(map[string]struct{})
	var out []*zip.File
	for _, name := range docxPreferred {
		if f, ok := byName[name]; ok {
			seen[name] = struct{}{}
			out = append(out, f)
		}
	}
	for _, f := range r.File {
		if _, ok := seen[f.Name]; ok || !docxExtraRe.MatchString(f.Name) {
			continue
		}
		seen[f.Name] = struct{}{}
		out = append(out, f)
	}
	return out
}

func odtTargets(r *zip.Reader) []*zip.File {
	var out []*zip.File
	for _, name := range odtParts {
		for _, f := range r.File {
			if f.Name == name {
				out = append(out, f)
				break
			}
		}
	}
	return out
}

func readPart(f *zip.File) ([]byte, error) {
	rc, err := f.Open()
	if err != nil {
		return nil, err
	}
	defer rc.Close()
	return io.ReadAll(rc)
}
