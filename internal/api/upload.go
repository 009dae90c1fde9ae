package api

import (
	"io"
	"log/slog"
	"net/http"
	"os"
	"path/filepath"
	"strings"

	"github.com/google/uuid"
)

const maxUploadBytes = 50 << 20 // 50 MB

// PreviewTemplate handles POST /api/templates/preview (multipart/form-data,
// field "file"). The upload is extracted from a temporary copy that is
// removed before responding; nothing is stored.
//
//	@Summary		Extract an uploaded template without saving it
//	@Tags			templates
//	@Accept			multipart/form-data
//	@Produce		json
//	@Param			file	formData	file	true	"DOCX or ODT template"
//	@Success		200		{object}	PreviewResponse
//	@Failure		400		{object}	errResponse
//	@Failure		415		{object}	errResponse
//	@Failure		422		{object}	errResponse
//	@Security		BearerAuth
//	@Router			/templates/preview [post]
func (h *Handler) PreviewTemplate(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, maxUploadBytes)

	if err := r.ParseMultipartForm(maxUploadBytes); err != nil {
		writeJSON(w, http.StatusBadRequest, errorBody("file too large or invalid multipart"))
		return
	}
	defer r.MultipartForm.RemoveAll()

	file, header, err := r.FormFile("file")
	if err != nil {
		writeJSON(w, http.StatusBadRequest, errorBody("missing 'file' field in multipart form"))
		return
	}
	defer file.Close()

	// The extractor detects the format from the extension, so the temp
	// copy keeps it. Only the extension of the client name is used.
	ext := strings.ToLower(filepath.Ext(filepath.Base(header.Filename)))
	tmpPath := filepath.Join(os.TempDir(), "resolate-preview-"+uuid.NewString()+ext)

	dst, err := os.OpenFile(tmpPath, os.O_CREATE|os.O_EXCL|os.O_WRONLY, 0o600)
	if err != nil {
		slog.Error("preview: create temp failed", slog.String("error", err.Error()))
		writeJSON(w, http.StatusInternalServerError, errorBody("failed to create file"))
		return
	}
	defer os.Remove(tmpPath)

	if _, err := io.Copy(dst, file); err != nil {
		dst.Close()
		writeJSON(w, http.StatusInternalServerError, errorBody("failed to write file"))
		return
	}
	if err := dst.Close(); err != nil {
		writeJSON(w, http.StatusInternalServerError, errorBody("failed to write file"))
		return
	}

	preview, err := h.svc.PreviewFile(r.Context(), tmpPath)
	if err != nil {
		writeError(w, "preview template", err, slog.String("filename", header.Filename))
		return
	}
	preview.Schema.Meta.TemplateName = filepath.Base(header.Filename)
	writeJSON(w, http.StatusOK, preview)
}
