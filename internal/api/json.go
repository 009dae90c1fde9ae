package api

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"github.com/starford/resolate/internal/apperr"
)

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		slog.Error("json encode failed", slog.String("error", err.Error()))
	}
}

type errResponse struct {
	Error string `json:"error" validate:"required"`
	Code  string `json:"code,omitempty"`
}

func errorBody(msg string) errResponse {
	return errResponse{Error: msg}
}

// templateErrors maps extraction failures to a status, a stable code and
// the message shown to users.
var templateErrors = []struct {
	err    error
	status int
	code   string
	msg    string
}{
	{apperr.ErrTemplateMissing, http.StatusNotFound, "resolate_schema_template_missing", "The selected template file is not accessible."},
	{apperr.ErrUnsupportedTemplateType, http.StatusUnsupportedMediaType, "resolate_schema_template_type", "The template must be a DOCX or ODT file."},
	{apperr.ErrTemplateOpen, http.StatusUnprocessableEntity, "resolate_schema_template_open", "The template file could not be opened."},
}

// writeError maps a service error to a JSON error response. Unknown errors
// are logged and reported as 500.
func writeError(w http.ResponseWriter, op string, err error, attrs ...slog.Attr) {
	for _, te := range templateErrors {
		if errors.Is(err, te.err) {
			writeJSON(w, te.status, errResponse{Error: te.msg, Code: te.code})
			return
		}
	}
	switch {
	case errors.Is(err, apperr.ErrNotFound):
		writeJSON(w, http.StatusNotFound, errorBody("not found"))
	case errors.Is(err, apperr.ErrInvalidInput):
		writeJSON(w, http.StatusBadRequest, errorBody(err.Error()))
	default:
		args := []any{slog.String("error", err.Error())}
		for _, a := range attrs {
			args = append(args, a)
		}
		slog.Error(op+" failed", args...)
		writeJSON(w, http.StatusInternalServerError, errorBody("internal error"))
	}
}
