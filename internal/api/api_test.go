package api

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/starford/resolate/internal/doctype"
	"github.com/starford/resolate/internal/models"
	"github.com/starford/resolate/internal/schemastore"
	"github.com/starford/resolate/internal/template"
	"github.com/starford/resolate/internal/testutil"
)

type recordingNotifier struct {
	mu     sync.Mutex
	events []string
}

func (n *recordingNotifier) PublishSchemaEvent(kind string, _ int64) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.events = append(n.events, kind)
}

func (n *recordingNotifier) list() []string {
	n.mu.Lock()
	defer n.mu.Unlock()
	return append([]string(nil), n.events...)
}

// testEnv sets up a temp templates dir, SQLite term meta, service, and router.
// A non-empty authToken enables token mode.
func testEnv(t *testing.T, authToken string) (http.Handler, string, *recordingNotifier) {
	t.Helper()
	return testEnvWithSSE(t, authToken != "", authToken, nil)
}

func testEnvWithSSE(t *testing.T, authEnabled bool, token string, sseHandler http.Handler) (http.Handler, string, *recordingNotifier) {
	t.Helper()

	templatesDir := t.TempDir()
	meta := testutil.TestDB(t)
	logger := slog.New(slog.NewJSONHandler(io.Discard, nil))
	svc := doctype.NewService(meta,
		schemastore.New(meta, schemastore.WithLogger(logger)),
		template.New(template.Config{Logger: logger}),
		doctype.WithTemplatesDir(templatesDir),
		doctype.WithLogger(logger))

	notify := &recordingNotifier{}
	router := NewRouter(svc, notify, authEnabled, token, sseHandler)
	return router, templatesDir, notify
}

func do(t *testing.T, router http.Handler, method, target string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var r io.Reader
	if body != nil {
		data, _ := json.Marshal(body)
		r = bytes.NewReader(data)
	}
	req := httptest.NewRequest(method, target, r)
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	return w
}

func bindTemplate(t *testing.T, router http.Handler, id, path string) {
	t.Helper()
	w := do(t, router, http.MethodPut, "/doc-types/"+id+"/template", map[string]string{"path": path})
	if w.Code != http.StatusOK {
		t.Fatalf("bind status = %d, body = %s", w.Code, w.Body.String())
	}
}

func TestSetTemplateAndGetSchema(t *testing.T) {
	router, dir, notify := testEnv(t, "")
	testutil.WriteDocx(t, dir, "resolucion.docx",
		testutil.DocxRun("[asunto;title='Asunto'] [importe;type=number]"),
		testutil.DocxRun("[items;block=begin][number][content;type=html][items;block=end]"))

	w := do(t, router, http.MethodPut, "/doc-types/12/template", map[string]string{"path": "resolucion.docx"})
	if w.Code != http.StatusOK {
		t.Fatalf("bind status = %d, body = %s", w.Code, w.Body.String())
	}
	var res RefreshResponse
	_ = json.Unmarshal(w.Body.Bytes(), &res)
	if res.Outcome != doctype.Updated || res.Summary.FieldCount != 2 || res.Summary.RepeaterCount != 1 {
		t.Errorf("unexpected result %+v", res)
	}
	if got := notify.list(); len(got) != 1 || got[0] != "updated" {
		t.Errorf("events = %v", got)
	}

	w = do(t, router, http.MethodGet, "/doc-types/12/schema", nil)
	if w.Code != http.StatusOK {
		t.Fatalf("schema status = %d", w.Code)
	}
	var schema models.Schema
	_ = json.Unmarshal(w.Body.Bytes(), &schema)
	if schema.Version != models.SchemaVersion || len(schema.Fields) != 2 {
		t.Errorf("unexpected schema %+v", schema)
	}
	if schema.Meta.TemplateName != "resolucion.docx" || schema.Meta.TemplateID != 12 {
		t.Errorf("meta = %+v", schema.Meta)
	}

	w = do(t, router, http.MethodGet, "/doc-types/12/summary", nil)
	if w.Code != http.StatusOK {
		t.Fatalf("summary status = %d", w.Code)
	}
	var summary models.Summary
	_ = json.Unmarshal(w.Body.Bytes(), &summary)
	if len(summary.RepeaterNames) != 1 || summary.RepeaterNames[0] != "items" {
		t.Errorf("summary = %+v", summary)
	}
}

func TestGetLegacyFields(t *testing.T) {
	router, dir, _ := testEnv(t, "")
	testutil.WriteDocx(t, dir, "a.docx",
		testutil.DocxRun("[importe;type=number][items;block=begin][number][content;type=html][items;block=end]"))
	bindTemplate(t, router, "3", "a.docx")

	w := do(t, router, http.MethodGet, "/doc-types/3/fields", nil)
	if w.Code != http.StatusOK {
		t.Fatalf("fields status = %d", w.Code)
	}
	var resp struct {
		TermID int64 `json:"term_id"`
		Fields []struct {
			Slug       string                       `json:"slug"`
			Type       string                       `json:"type"`
			DataType   string                       `json:"data_type"`
			ItemSchema map[string]models.LegacyItem `json:"item_schema"`
		} `json:"fields"`
	}
	_ = json.Unmarshal(w.Body.Bytes(), &resp)
	if resp.TermID != 3 || len(resp.Fields) != 2 {
		t.Fatalf("unexpected response %s", w.Body.String())
	}
	if resp.Fields[0].DataType != "number" {
		t.Errorf("data_type = %q, want number", resp.Fields[0].DataType)
	}
	items := resp.Fields[1].ItemSchema
	if items["content"].Type != models.ControlRich || items["number"].Type != models.ControlSingle {
		t.Errorf("item_schema = %+v", items)
	}
}

func TestListAndGetDocTypes(t *testing.T) {
	router, dir, _ := testEnv(t, "")
	testutil.WriteDocx(t, dir, "a.docx", testutil.DocxRun("[a]"))
	testutil.WriteODT(t, dir, "b.odt", "[b]")
	bindTemplate(t, router, "2", "b.odt")
	bindTemplate(t, router, "1", "a.docx")

	w := do(t, router, http.MethodGet, "/doc-types", nil)
	if w.Code != http.StatusOK {
		t.Fatalf("list status = %d", w.Code)
	}
	var list DocTypeListResponse
	_ = json.Unmarshal(w.Body.Bytes(), &list)
	if len(list.DocTypes) != 2 || list.DocTypes[0].TermID != 1 || list.DocTypes[1].TemplateType != models.TemplateODT {
		t.Errorf("list = %+v", list.DocTypes)
	}

	w = do(t, router, http.MethodGet, "/doc-types/2", nil)
	if w.Code != http.StatusOK {
		t.Fatalf("get status = %d", w.Code)
	}
	var dt models.DocType
	_ = json.Unmarshal(w.Body.Bytes(), &dt)
	if dt.TemplatePath != filepath.Join(dir, "b.odt") || dt.Summary == nil {
		t.Errorf("doc type = %+v", dt)
	}
}

func TestRefreshDocType(t *testing.T) {
	router, dir, notify := testEnv(t, "")
	testutil.WriteDocx(t, dir, "a.docx", testutil.DocxRun("[a]"))
	bindTemplate(t, router, "5", "a.docx")

	w := do(t, router, http.MethodPost, "/doc-types/5/refresh", nil)
	var res RefreshResponse
	_ = json.Unmarshal(w.Body.Bytes(), &res)
	if w.Code != http.StatusOK || res.Outcome != doctype.Unchanged {
		t.Fatalf("refresh = %d %+v", w.Code, res)
	}

	w = do(t, router, http.MethodPost, "/doc-types/5/refresh?force=true", nil)
	_ = json.Unmarshal(w.Body.Bytes(), &res)
	if w.Code != http.StatusOK || res.Outcome != doctype.Updated {
		t.Fatalf("forced refresh = %d %+v", w.Code, res)
	}
	// bind + forced refresh; the unchanged refresh publishes nothing.
	if got := notify.list(); len(got) != 2 {
		t.Errorf("events = %v, want 2", got)
	}

	w = do(t, router, http.MethodPost, "/doc-types/6/refresh", nil)
	if w.Code != http.StatusNotFound {
		t.Errorf("unbound refresh = %d, want 404", w.Code)
	}
}

func TestDeleteDocType(t *testing.T) {
	router, dir, notify := testEnv(t, "")
	testutil.WriteDocx(t, dir, "a.docx", testutil.DocxRun("[a]"))
	bindTemplate(t, router, "4", "a.docx")

	w := do(t, router, http.MethodDelete, "/doc-types/4", nil)
	if w.Code != http.StatusNoContent {
		t.Fatalf("delete = %d", w.Code)
	}
	for _, path := range []string{"/doc-types/4", "/doc-types/4/schema", "/doc-types/4/summary", "/doc-types/4/fields"} {
		if w := do(t, router, http.MethodGet, path, nil); w.Code != http.StatusNotFound {
			t.Errorf("GET %s after delete = %d, want 404", path, w.Code)
		}
	}
	if got := notify.list(); got[len(got)-1] != "deleted" {
		t.Errorf("events = %v", got)
	}
}

func TestSetTemplate_TemplateErrors(t *testing.T) {
	router, dir, notify := testEnv(t, "")
	_ = os.WriteFile(filepath.Join(dir, "notes.txt"), []byte("x"), 0o644)
	_ = os.WriteFile(filepath.Join(dir, "broken.docx"), []byte("not a zip"), 0o644)

	tests := []struct {
		path   string
		status int
		code   string
	}{
		{"missing.docx", http.StatusNotFound, "resolate_schema_template_missing"},
		{"notes.txt", http.StatusUnsupportedMediaType, "resolate_schema_template_type"},
		{"broken.docx", http.StatusUnprocessableEntity, "resolate_schema_template_open"},
	}
	for _, tt := range tests {
		w := do(t, router, http.MethodPut, "/doc-types/1/template", map[string]string{"path": tt.path})
		if w.Code != tt.status {
			t.Errorf("%s: status = %d, want %d", tt.path, w.Code, tt.status)
			continue
		}
		var body errResponse
		_ = json.Unmarshal(w.Body.Bytes(), &body)
		if body.Code != tt.code || body.Error == "" {
			t.Errorf("%s: body = %+v", tt.path, body)
		}
	}
	if got := notify.list(); len(got) != 0 {
		t.Errorf("failed binds published events: %v", got)
	}
}

func TestSetTemplate_BadRequests(t *testing.T) {
	router, _, _ := testEnv(t, "")

	tests := []struct {
		name   string
		target string
		body   string
	}{
		{"invalid id", "/doc-types/abc/template", `{"path":"a.docx"}`},
		{"zero id", "/doc-types/0/template", `{"path":"a.docx"}`},
		{"bad json", "/doc-types/1/template", `{`},
		{"empty path", "/doc-types/1/template", `{"path":""}`},
		{"absolute path", "/doc-types/1/template", `{"path":"/etc/passwd.docx"}`},
		{"traversal", "/doc-types/1/template", `{"path":"../x.docx"}`},
	}
	for _, tt := range tests {
		req := httptest.NewRequest(http.MethodPut, tt.target, strings.NewReader(tt.body))
		w := httptest.NewRecorder()
		router.ServeHTTP(w, req)
		if w.Code != http.StatusBadRequest {
			t.Errorf("%s: status = %d, want 400", tt.name, w.Code)
		}
	}
}

func TestSetTemplate_OutsideTemplatesDir(t *testing.T) {
	router, dir, notify := testEnv(t, "")
	secret := testutil.WriteDocx(t, t.TempDir(), "privado.docx", testutil.DocxRun("[clave]"))
	rel, err := filepath.Rel(dir, secret)
	if err != nil {
		t.Fatal(err)
	}

	for _, path := range []string{secret, rel} {
		w := do(t, router, http.MethodPut, "/doc-types/1/template", map[string]string{"path": path})
		if w.Code != http.StatusBadRequest {
			t.Errorf("%s: status = %d, want 400", path, w.Code)
		}
	}

	w := do(t, router, http.MethodGet, "/doc-types/1/schema", nil)
	if w.Code != http.StatusNotFound {
		t.Errorf("schema status = %d, want 404", w.Code)
	}
	if got := notify.list(); len(got) != 0 {
		t.Errorf("rejected binds published events: %v", got)
	}
}

func TestGetSchema_NotFound(t *testing.T) {
	router, _, _ := testEnv(t, "")
	if w := do(t, router, http.MethodGet, "/doc-types/99/schema", nil); w.Code != http.StatusNotFound {
		t.Errorf("missing schema = %d, want 404", w.Code)
	}
}

// Preview upload tests.

func uploadTemplate(t *testing.T, router http.Handler, filename string, content []byte) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	part, err := mw.CreateFormFile("file", filename)
	if err != nil {
		t.Fatal(err)
	}
	_, _ = io.Copy(part, bytes.NewReader(content))
	mw.Close()

	req := httptest.NewRequest(http.MethodPost, "/templates/preview", &buf)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	return w
}

func TestPreviewTemplate(t *testing.T) {
	router, _, notify := testEnv(t, "")
	src := testutil.WriteDocx(t, t.TempDir(), "x.docx", testutil.DocxRun("[nombre;title='Nombre'] [cuerpo]"))
	data, err := os.ReadFile(src)
	if err != nil {
		t.Fatal(err)
	}

	w := uploadTemplate(t, router, "../../Modelo oficio.docx", data)
	if w.Code != http.StatusOK {
		t.Fatalf("preview status = %d, body = %s", w.Code, w.Body.String())
	}
	var preview struct {
		Schema models.Schema        `json:"schema"`
		Fields []models.LegacyEntry `json:"fields"`
	}
	_ = json.Unmarshal(w.Body.Bytes(), &preview)
	if len(preview.Fields) != 2 || preview.Fields[1].Type != models.ControlRich {
		t.Errorf("fields = %+v", preview.Fields)
	}
	if preview.Schema.Meta.TemplateName != "Modelo oficio.docx" {
		t.Errorf("template name = %q", preview.Schema.Meta.TemplateName)
	}
	if len(notify.list()) != 0 {
		t.Error("preview must not publish events")
	}

	if w := do(t, router, http.MethodGet, "/doc-types", nil); !strings.Contains(w.Body.String(), `"doc_types":[]`) {
		t.Errorf("preview persisted something: %s", w.Body.String())
	}
}

func TestPreviewTemplate_Errors(t *testing.T) {
	router, _, _ := testEnv(t, "")

	if w := uploadTemplate(t, router, "notes.txt", []byte("[a]")); w.Code != http.StatusUnsupportedMediaType {
		t.Errorf("txt upload = %d, want 415", w.Code)
	}
	if w := uploadTemplate(t, router, "broken.odt", []byte("garbage")); w.Code != http.StatusUnprocessableEntity {
		t.Errorf("corrupt upload = %d, want 422", w.Code)
	}

	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	_ = mw.WriteField("other", "value")
	mw.Close()
	req := httptest.NewRequest(http.MethodPost, "/templates/preview", &buf)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	if w.Code != http.StatusBadRequest {
		t.Errorf("missing file field = %d, want 400", w.Code)
	}
}

// Auth middleware tests.

func TestAuthMiddleware_ValidToken(t *testing.T) {
	router, _, _ := testEnv(t, "secret123")

	req := httptest.NewRequest(http.MethodGet, "/doc-types", nil)
	req.Header.Set("Authorization", "Bearer secret123")
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	if w.Code != http.StatusOK {
		t.Errorf("authed list = %d, want 200", w.Code)
	}
}

func TestAuthMiddleware_MissingToken(t *testing.T) {
	router, _, _ := testEnv(t, "secret123")

	req := httptest.NewRequest(http.MethodGet, "/doc-types", nil)
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	if w.Code != http.StatusUnauthorized {
		t.Errorf("unauthed = %d, want 401", w.Code)
	}
}

func TestAuthMiddleware_WrongToken(t *testing.T) {
	router, _, _ := testEnv(t, "secret123")

	req := httptest.NewRequest(http.MethodGet, "/doc-types", nil)
	req.Header.Set("Authorization", "Bearer wrong")
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	if w.Code != http.StatusUnauthorized {
		t.Errorf("wrong token = %d, want 401", w.Code)
	}
}

func TestAuthMiddleware_Disabled(t *testing.T) {
	router, _, _ := testEnv(t, "")

	req := httptest.NewRequest(http.MethodGet, "/doc-types", nil)
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	if w.Code != http.StatusOK {
		t.Errorf("no auth = %d, want 200", w.Code)
	}
}

func TestPreviewTemplate_AuthProtected(t *testing.T) {
	router, _, _ := testEnv(t, "secret")
	if w := uploadTemplate(t, router, "a.docx", []byte("x")); w.Code != http.StatusUnauthorized {
		t.Errorf("unauthed upload = %d, want 401", w.Code)
	}
}

// SSE endpoint auth tests.

// blockingSSE writes headers and blocks until the request context is done.
var blockingSSE = http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "text/event-stream")
	w.WriteHeader(http.StatusOK)
	if f, ok := w.(http.Flusher); ok {
		f.Flush()
	}
	<-r.Context().Done()
})

func TestSSEEvents_AuthProtected(t *testing.T) {
	router, _, _ := testEnvWithSSE(t, true, "secret", blockingSSE)

	// No token → 401.
	req := httptest.NewRequest(http.MethodGet, "/events", nil)
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	if w.Code != http.StatusUnauthorized {
		t.Errorf("SSE no auth = %d, want 401", w.Code)
	}
}

func TestSSEEvents_AuthDisabled(t *testing.T) {
	router, _, _ := testEnvWithSSE(t, false, "", blockingSSE)

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()
	req := httptest.NewRequest(http.MethodGet, "/events", nil).WithContext(ctx)
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	if w.Code == http.StatusUnauthorized {
		t.Error("SSE should not require auth when disabled")
	}
}

func TestSSEEvents_ValidToken(t *testing.T) {
	router, _, _ := testEnvWithSSE(t, true, "tok", blockingSSE)

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()
	req := httptest.NewRequest(http.MethodGet, "/events", nil).WithContext(ctx)
	req.Header.Set("Authorization", "Bearer tok")
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	if w.Code == http.StatusUnauthorized {
		t.Error("SSE with valid token should not 401")
	}
}
