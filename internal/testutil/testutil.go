// Package testutil provides shared test helpers for building templates and
// opening temporary stores.
package testutil

import (
	"archive/zip"
	"io"
	"os"
	"path/filepath"
	"testing"

	"github.com/starford/resolate/internal/storage"
	"github.com/starford/resolate/internal/termmeta"
)

// Part is one named entry of a template archive. With a Header, Body is
// written verbatim through CreateRaw; sizes are filled in from Body and the
// CRC32 and Method are taken as given.
type Part struct {
	Name   string
	Body   string
	Header *zip.FileHeader
}

// WriteArchive writes a ZIP archive with the given parts into dir and
// returns its path.
func WriteArchive(t *testing.T, dir, name string, parts ...Part) string {
	t.Helper()
	path := filepath.Join(dir, name)
	f, err := os.Create(path)
	if err != nil {
		t.Fatal(err)
	}
	zw := zip.NewWriter(f)
	for _, p := range parts {
		var (
			w   io.Writer
			err error
		)
		if p.Header != nil {
			fh := *p.Header
			fh.Name = p.Name
			fh.CompressedSize64 = uint64(len(p.Body))
			fh.UncompressedSize64 = uint64(len(p.Body))
			w, err = zw.CreateRaw(&fh)
		} else {
			w, err = zw.Create(p.Name)
		}
		if err != nil {
			t.Fatal(err)
		}
		if _, err := w.Write([]byte(p.Body)); err != nil {
			t.Fatal(err)
		}
	}
	if err := zw.Close(); err != nil {
		t.Fatal(err)
	}
	if err := f.Close(); err != nil {
		t.Fatal(err)
	}
	return path
}

// DocxBody wraps paragraphs of raw run markup in a minimal word/document.xml.
func DocxBody(paragraphs ...string) string {
	out := `<?xml version="1.0" encoding="UTF-8" standalone="yes"?>` +
		`<w:document xmlns:w="http://schemas.openxmlformats.org/wordprocessingml/2006/main"><w:body>`
	for _, p := range paragraphs {
		out += "<w:p>" + p + "</w:p>"
	}
	return out + "</w:body></w:document>"
}

// DocxRun is a single run holding text.
func DocxRun(text string) string {
	return `<w:r><w:rPr><w:b/></w:rPr><w:t xml:space="preserve">` + text + `</w:t></w:r>`
}

// ODTBody wraps paragraphs in a minimal content.xml.
func ODTBody(paragraphs ...string) string {
	out := `<?xml version="1.0" encoding="UTF-8"?>` +
		`<office:document-content xmlns:office="urn:oasis:names:tc:opendocument:xmlns:office:1.0" ` +
		`xmlns:text="urn:oasis:names:tc:opendocument:xmlns:text:1.0"><office:body><office:text>`
	for _, p := range paragraphs {
		out += `<text:p text:style-name="P1">` + p + "</text:p>"
	}
	return out + "</office:text></office:body></office:document-content>"
}

// WriteDocx writes a DOCX holding the given paragraphs as word/document.xml.
func WriteDocx(t *testing.T, dir, name string, paragraphs ...string) string {
	t.Helper()
	return WriteArchive(t, dir, name, Part{Name: "word/document.xml", Body: DocxBody(paragraphs...)})
}

// WriteODT writes an ODT holding the given paragraphs as content.xml.
func WriteODT(t *testing.T, dir, name string, paragraphs ...string) string {
	t.Helper()
	return WriteArchive(t, dir, name,
		Part{Name: "mimetype", Body: "application/vnd.oasis.opendocument.text"},
		Part{Name: "content.xml", Body: ODTBody(paragraphs...)},
	)
}

// TestDB creates a temporary SQLite term meta store that is automatically cleaned up.
func TestDB(t *testing.T) *termmeta.DB {
	t.Helper()
	dbFile, err := os.CreateTemp("", "resolate-test-*.db")
	if err != nil {
		t.Fatal(err)
	}
	dbFile.Close()
	t.Cleanup(func() { os.Remove(dbFile.Name()) })

	db, err := termmeta.Open(dbFile.Name())
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { db.Close() })
	return db
}

// TestStore creates a temporary file-system term meta store.
func TestStore(t *testing.T) (string, storage.Provider) {
	t.Helper()
	dir := t.TempDir()
	store, err := storage.NewFS(dir)
	if err != nil {
		t.Fatal(err)
	}
	return dir, store
}
