package api

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/starford/resolate/internal/doctype"
	"github.com/starford/resolate/internal/sse"
)

// Handler holds API route handlers.
type Handler struct {
	svc    Service
	notify Notifier
}

// NewHandler creates a new Handler. A nil notifier discards events.
func NewHandler(svc Service, notify Notifier) *Handler {
	if notify == nil {
		notify = nopNotifier{}
	}
	return &Handler{svc: svc, notify: notify}
}

// termID parses the {id} URL parameter; it must be a positive integer.
func termID(r *http.Request) (int64, bool) {
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil || id <= 0 {
		return 0, false
	}
	return id, true
}

// ListDocTypes handles GET /api/doc-types.
//
//	@Summary		List document types bound to a template
//	@Tags			doc-types
//	@Produce		json
//	@Success		200	{object}	DocTypeListResponse
//	@Security		BearerAuth
//	@Router			/doc-types [get]
func (h *Handler) ListDocTypes(w http.ResponseWriter, r *http.Request) {
	items, err := h.svc.List(r.Context())
	if err != nil {
		writeError(w, "list doc types", err)
		return
	}
	writeJSON(w, http.StatusOK, DocTypeListResponse{DocTypes: items})
}

// GetDocType handles GET /api/doc-types/{id}.
//
//	@Summary		Get a document type
//	@Tags			doc-types
//	@Produce		json
//	@Param			id	path		int	true	"Term id"
//	@Success		200	{object}	models.DocType
//	@Failure		404	{object}	errResponse
//	@Security		BearerAuth
//	@Router			/doc-types/{id} [get]
func (h *Handler) GetDocType(w http.ResponseWriter, r *http.Request) {
	id, ok := termID(r)
	if !ok {
		writeJSON(w, http.StatusBadRequest, errorBody("invalid term id"))
		return
	}
	dt, err := h.svc.Get(r.Context(), id)
	if err != nil {
		writeError(w, "get doc type", err, slog.Int64("term_id", id))
		return
	}
	writeJSON(w, http.StatusOK, dt)
}

// SetTemplate handles PUT /api/doc-types/{id}/template.
//
//	@Summary		Bind a template to a document type and extract its schema
//	@Tags			doc-types
//	@Accept			json
//	@Produce		json
//	@Param			id		path		int					true	"Term id"
//	@Param			body	body		SetTemplateRequest	true	"Template path"
//	@Success		200		{object}	RefreshResponse
//	@Failure		400		{object}	errResponse
//	@Failure		404		{object}	errResponse
//	@Failure		415		{object}	errResponse
//	@Failure		422		{object}	errResponse
//	@Security		BearerAuth
//	@Router			/doc-types/{id}/template [put]
func (h *Handler) SetTemplate(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, 1<<20)
	id, ok := termID(r)
	if !ok {
		writeJSON(w, http.StatusBadRequest, errorBody("invalid term id"))
		return
	}
	var req SetTemplateRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, errorBody("invalid JSON body"))
		return
	}
	if err := req.Validate(); err != nil {
		writeJSON(w, http.StatusBadRequest, errorBody(err.Error()))
		return
	}

	res, err := h.svc.SetTemplate(r.Context(), id, req.Path)
	if err != nil {
		writeError(w, "set template", err, slog.Int64("term_id", id))
		return
	}
	h.notify.PublishSchemaEvent(sse.KindUpdated, id)
	writeJSON(w, http.StatusOK, res)
}

// RefreshDocType handles POST /api/doc-types/{id}/refresh.
//
//	@Summary		Re-extract the schema when the template changed
//	@Tags			doc-types
//	@Produce		json
//	@Param			id		path		int		true	"Term id"
//	@Param			force	query		bool	false	"Skip the hash check"
//	@Success		200		{object}	RefreshResponse
//	@Failure		404		{object}	errResponse
//	@Security		BearerAuth
//	@Router			/doc-types/{id}/refresh [post]
func (h *Handler) RefreshDocType(w http.ResponseWriter, r *http.Request) {
	id, ok := termID(r)
	if !ok {
		writeJSON(w, http.StatusBadRequest, errorBody("invalid term id"))
		return
	}
	force, _ := strconv.ParseBool(r.URL.Query().Get("force"))

	res, err := h.svc.Refresh(r.Context(), id, force)
	if err != nil {
		writeError(w, "refresh doc type", err, slog.Int64("term_id", id))
		return
	}
	if res.Outcome == doctype.Updated {
		h.notify.PublishSchemaEvent(sse.KindUpdated, id)
	}
	writeJSON(w, http.StatusOK, res)
}

// GetSchema handles GET /api/doc-types/{id}/schema.
//
//	@Summary		Get the stored versioned schema
//	@Tags			schema
//	@Produce		json
//	@Param			id	path		int	true	"Term id"
//	@Success		200	{object}	models.Schema
//	@Failure		404	{object}	errResponse
//	@Security		BearerAuth
//	@Router			/doc-types/{id}/schema [get]
func (h *Handler) GetSchema(w http.ResponseWriter, r *http.Request) {
	id, ok := termID(r)
	if !ok {
		writeJSON(w, http.StatusBadRequest, errorBody("invalid term id"))
		return
	}
	schema, err := h.svc.Schema(r.Context(), id)
	if err != nil {
		writeError(w, "get schema", err, slog.Int64("term_id", id))
		return
	}
	writeJSON(w, http.StatusOK, schema)
}

// GetSummary handles GET /api/doc-types/{id}/summary.
//
//	@Summary		Get the stored schema summary
//	@Tags			schema
//	@Produce		json
//	@Param			id	path		int	true	"Term id"
//	@Success		200	{object}	models.Summary
//	@Failure		404	{object}	errResponse
//	@Security		BearerAuth
//	@Router			/doc-types/{id}/summary [get]
func (h *Handler) GetSummary(w http.ResponseWriter, r *http.Request) {
	id, ok := termID(r)
	if !ok {
		writeJSON(w, http.StatusBadRequest, errorBody("invalid term id"))
		return
	}
	summary, err := h.svc.Summary(r.Context(), id)
	if err != nil {
		writeError(w, "get summary", err, slog.Int64("term_id", id))
		return
	}
	writeJSON(w, http.StatusOK, summary)
}

// GetLegacyFields handles GET /api/doc-types/{id}/fields.
//
//	@Summary		Get the schema flattened for form rendering
//	@Tags			schema
//	@Produce		json
//	@Param			id	path		int	true	"Term id"
//	@Success		200	{object}	LegacyFieldsResponse
//	@Failure		404	{object}	errResponse
//	@Security		BearerAuth
//	@Router			/doc-types/{id}/fields [get]
func (h *Handler) GetLegacyFields(w http.ResponseWriter, r *http.Request) {
	id, ok := termID(r)
	if !ok {
		writeJSON(w, http.StatusBadRequest, errorBody("invalid term id"))
		return
	}
	fields, err := h.svc.LegacyFields(r.Context(), id)
	if err != nil {
		writeError(w, "get legacy fields", err, slog.Int64("term_id", id))
		return
	}
	writeJSON(w, http.StatusOK, LegacyFieldsResponse{TermID: id, Fields: fields})
}

// DeleteDocType handles DELETE /api/doc-types/{id}.
//
//	@Summary		Delete the stored schema and template binding
//	@Tags			doc-types
//	@Param			id	path	int	true	"Term id"
//	@Success		204	"Document type removed"
//	@Security		BearerAuth
//	@Router			/doc-types/{id} [delete]
func (h *Handler) DeleteDocType(w http.ResponseWriter, r *http.Request) {
	id, ok := termID(r)
	if !ok {
		writeJSON(w, http.StatusBadRequest, errorBody("invalid term id"))
		return
	}
	if err := h.svc.Remove(r.Context(), id); err != nil {
		writeError(w, "delete doc type", err, slog.Int64("term_id", id))
		return
	}
	h.notify.PublishSchemaEvent(sse.KindDeleted, id)
	w.WriteHeader(http.StatusNoContent)
}
