// Package schemastore persists extracted schemas as term meta. Every save
// writes four keys: the schema, its summary, its hash and the update time.
package schemastore

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/starford/resolate/internal/models"
	"github.com/starford/resolate/internal/storage"
)

// Meta keys written by SaveSchema.
const (
	KeySchema  = "_resolate_schema_v2"
	KeySummary = "_resolate_schema_v2_summary"
	KeyHash    = "_resolate_schema_v2_hash"
	KeyUpdated = "_resolate_schema_v2_updated"
)

var allKeys = []string{KeySchema, KeySummary, KeyHash, KeyUpdated}

// Storage reads and writes schemas through a storage.Provider. Writes are
// not transactional: each key is written independently.
type Storage struct {
	meta   storage.Provider
	now    func() time.Time
	logger *slog.Logger
}

// Option configures a Storage.
type Option func(*Storage)

// WithClock overrides the clock used for the update timestamp.
func WithClock(now func() time.Time) Option {
	return func(s *Storage) { s.now = now }
}

// WithLogger sets the logger used to report malformed stored values.
func WithLogger(l *slog.Logger) Option {
	return func(s *Storage) { s.logger = l }
}

// New creates a Storage over meta.
func New(meta storage.Provider, opts ...Option) *Storage {
	s := &Storage{meta: meta, now: time.Now, logger: slog.Default()}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// GetSchema returns the stored schema. An absent or malformed value yields
// an empty schema (IsEmpty reports true) and no error.
func (s *Storage) GetSchema(termID int64) (*models.Schema, error) {
	data, err := s.meta.Get(termID, KeySchema)
	if err != nil {
		return nil, fmt.Errorf("schemastore: get schema %d: %w", termID, err)
	}
	schema := &models.Schema{}
	if len(data) > 0 {
		if err := json.Unmarshal(data, schema); err != nil {
			s.logger.Warn("schemastore: malformed schema ignored",
				slog.Int64("term_id", termID), slog.String("error", err.Error()))
			schema = &models.Schema{}
		}
	}
	if schema.Fields == nil {
		schema.Fields = []models.Field{}
	}
	if schema.Repeaters == nil {
		schema.Repeaters = []models.Repeater{}
	}
	return schema, nil
}

// SaveSchema persists schema with its summary, hash and update time. A nil
// schema is ignored.
func (s *Storage) SaveSchema(termID int64, schema *models.Schema) error {
	if schema == nil {
		return nil
	}

	data, err := json.Marshal(schema)
	if err != nil {
		return fmt.Errorf("schemastore: encode schema: %w", err)
	}
	if err := s.meta.Set(termID, KeySchema, data); err != nil {
		return fmt.Errorf("schemastore: save schema %d: %w", termID, err)
	}

	summary, err := json.Marshal(Summarize(schema))
	if err != nil {
		return fmt.Errorf("schemastore: encode summary: %w", err)
	}
	if err := s.meta.Set(termID, KeySummary, summary); err != nil {
		return fmt.Errorf("schemastore: save summary %d: %w", termID, err)
	}

	if err := s.meta.Set(termID, KeyHash, []byte(schema.Meta.Hash)); err != nil {
		return fmt.Errorf("schemastore: save hash %d: %w", termID, err)
	}
	if err := s.meta.Set(termID, KeyUpdated, []byte(s.now().Format(models.TimeLayout))); err != nil {
		return fmt.Errorf("schemastore: save updated %d: %w", termID, err)
	}
	return nil
}

// DeleteSchema removes all four keys.
func (s *Storage) DeleteSchema(termID int64) error {
	for _, key := range allKeys {
		if err := s.meta.Delete(termID, key); err != nil {
			return fmt.Errorf("schemastore: delete %d: %w", termID, err)
		}
	}
	return nil
}

// GetSummary returns the stored summary, or nil when absent or malformed.
func (s *Storage) GetSummary(termID int64) (*models.Summary, error) {
	data, err := s.meta.Get(termID, KeySummary)
	if err != nil {
		return nil, fmt.Errorf("schemastore: get summary %d: %w", termID, err)
	}
	if len(data) == 0 {
		return nil, nil
	}
	var summary models.Summary
	if err := json.Unmarshal(data, &summary); err != nil {
		s.logger.Warn("schemastore: malformed summary ignored",
			slog.Int64("term_id", termID), slog.String("error", err.Error()))
		return nil, nil
	}
	if summary.RepeaterNames == nil {
		summary.RepeaterNames = []string{}
	}
	return &summary, nil
}

// GetHash returns the stored hash or "".
func (s *Storage) GetHash(termID int64) (string, error) {
	data, err := s.meta.Get(termID, KeyHash)
	if err != nil {
		return "", fmt.Errorf("schemastore: get hash %d: %w", termID, err)
	}
	return string(data), nil
}

// GetUpdated returns the time of the last save, formatted with models.TimeLayout,
// or "".
func (s *Storage) GetUpdated(termID int64) (string, error) {
	data, err := s.meta.Get(termID, KeyUpdated)
	if err != nil {
		return "", fmt.Errorf("schemastore: get updated %d: %w", termID, err)
	}
	return string(data), nil
}

// SummarizeSchema returns the summary of schema without persisting it.
func (s *Storage) SummarizeSchema(schema *models.Schema) models.Summary {
	return Summarize(schema)
}

// Summarize derives the lightweight summary of schema. Repeaters with an
// empty name are counted but not listed.
func Summarize(schema *models.Schema) models.Summary {
	out := models.Summary{RepeaterNames: []string{}}
	if schema == nil {
		return out
	}
	out.Version = schema.Version
	out.FieldCount = len(schema.Fields)
	out.RepeaterCount = len(schema.Repeaters)
	out.TemplateName = schema.Meta.TemplateName
	out.TemplateType = schema.Meta.TemplateType
	out.TemplateID = schema.Meta.TemplateID
	out.ParsedAt = schema.Meta.ParsedAt
	for _, r := range schema.Repeaters {
		if r.Name != "" {
			out.RepeaterNames = append(out.RepeaterNames, r.Name)
		}
	}
	return out
}
