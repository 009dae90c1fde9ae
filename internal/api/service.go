package api

import (
	"context"

	"github.com/starford/resolate/internal/doctype"
	"github.com/starford/resolate/internal/models"
)

// Service is the document type API surface used by the handlers.
type Service interface {
	List(ctx context.Context) ([]models.DocType, error)
	Get(ctx context.Context, termID int64) (*models.DocType, error)
	SetTemplate(ctx context.Context, termID int64, path string) (*doctype.RefreshResult, error)
	Refresh(ctx context.Context, termID int64, force bool) (*doctype.RefreshResult, error)
	Schema(ctx context.Context, termID int64) (*models.Schema, error)
	Summary(ctx context.Context, termID int64) (*models.Summary, error)
	LegacyFields(ctx context.Context, termID int64) ([]models.LegacyEntry, error)
	Remove(ctx context.Context, termID int64) error
	PreviewFile(ctx context.Context, path string) (*doctype.Preview, error)
}

// Verify *doctype.Service satisfies Service at compile time.
var _ Service = (*doctype.Service)(nil)

// Notifier receives schema change notifications; the SSE broker is one.
type Notifier interface {
	PublishSchemaEvent(kind string, termID int64)
}

type nopNotifier struct{}

func (nopNotifier) PublishSchemaEvent(string, int64) {}
