package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"
)

// NewRouter creates a chi router with all API routes mounted.
// authEnabled controls whether Bearer token auth is enforced.
// sseHandler, if non-nil, is mounted at GET /events inside the auth group.
// notify, if non-nil, is told about schema changes made through the API.
func NewRouter(svc Service, notify Notifier, authEnabled bool, token string, sseHandler http.Handler) chi.Router {
	h := NewHandler(svc, notify)

	r := chi.NewRouter()
	r.Use(AuthMiddleware(authEnabled, token))

	// Document types.
	r.Get("/doc-types", h.ListDocTypes)
	r.Route("/doc-types/{id}", func(r chi.Router) {
		r.Get("/", h.GetDocType)
		r.Delete("/", h.DeleteDocType)
		r.Put("/template", h.SetTemplate)
		r.Post("/refresh", h.RefreshDocType)
		r.Get("/schema", h.GetSchema)
		r.Get("/summary", h.GetSummary)
		r.Get("/fields", h.GetLegacyFields)
	})

	// Unsaved extraction of an uploaded template.
	r.Post("/templates/preview", h.PreviewTemplate)

	// SSE endpoint (protected by same auth middleware).
	if sseHandler != nil {
		r.Get("/events", sseHandler.ServeHTTP)
	}

	return r
}
