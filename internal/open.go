package internal

import (
	"fmt"
	"io"
	"log/slog"
	"os"

	"github.com/starford/resolate/internal/doctype"
	"github.com/starford/resolate/internal/schemastore"
	"github.com/starford/resolate/internal/storage"
	"github.com/starford/resolate/internal/template"
	"github.com/starford/resolate/internal/termmeta"
)

// Components holds the stores and services built from a Config.
type Components struct {
	Meta      storage.Provider
	Schemas   *schemastore.Storage
	Extractor *template.Extractor
	DocTypes  *doctype.Service

	closer io.Closer
}

// NewLogger returns the structured JSON logger used across the application.
func NewLogger(w io.Writer, level slog.Level) *slog.Logger {
	return slog.New(slog.NewJSONHandler(w, &slog.HandlerOptions{
		Level: level,
	}))
}

// Open wires the term meta backend selected by cfg.Storage.Driver into the
// schema storage and the document type service.
func Open(cfg *Config, logger *slog.Logger) (*Components, error) {
	c := &Components{}

	switch cfg.Storage.Driver {
	case StorageFS:
		if err := os.MkdirAll(cfg.FS.Path, 0o755); err != nil {
			return nil, fmt.Errorf("create fs store dir: %w", err)
		}
		fs, err := storage.NewFS(cfg.FS.Path)
		if err != nil {
			return nil, fmt.Errorf("init fs store: %w", err)
		}
		c.Meta = fs
	case StorageSQLite, "":
		db, err := termmeta.Open(cfg.SQLite.Path)
		if err != nil {
			return nil, fmt.Errorf("init term meta db: %w", err)
		}
		c.Meta = db
		c.closer = db
	default:
		return nil, fmt.Errorf("unknown storage driver %q", cfg.Storage.Driver)
	}

	c.Schemas = schemastore.New(c.Meta, schemastore.WithLogger(logger))
	c.Extractor = template.New(template.Config{
		MaxFileSize: cfg.Templates.MaxFileSize,
		Logger:      logger,
	})

	opts := []doctype.Option{doctype.WithLogger(logger)}
	if cfg.Templates.Path != "" {
		opts = append(opts, doctype.WithTemplatesDir(cfg.Templates.Path))
	}
	c.DocTypes = doctype.NewService(c.Meta, c.Schemas, c.Extractor, opts...)

	return c, nil
}

// Close releases the term meta backend.
func (c *Components) Close() error {
	if c.closer == nil {
		return nil
	}
	return c.closer.Close()
}
