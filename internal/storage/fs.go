package storage

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strconv"
	"strings"
)

// FS implements Provider on the local file system. Each term is a
// directory named by its id holding one file per meta key.
type FS struct {
	root string // absolute path to the meta directory
}

// NewFS creates a new FS provider rooted at the given directory.
// The directory must already exist.
func NewFS(root string) (*FS, error) {
	abs, err := filepath.Abs(root)
	if err != nil {
		return nil, fmt.Errorf("storage: resolve root: %w", err)
	}
	info, err := os.Stat(abs)
	if err != nil {
		return nil, fmt.Errorf("storage: stat root: %w", err)
	}
	if !info.IsDir() {
		return nil, fmt.Errorf("storage: root is not a directory: %s", abs)
	}
	return &FS{root: abs}, nil
}

// keyPath maps (termID, key) to a file under root. Keys are restricted to
// a single path element so nothing can escape the root.
func (f *FS) keyPath(termID int64, key string) (string, error) {
	if termID <= 0 {
		return "", fmt.Errorf("storage: invalid term id %d", termID)
	}
	if key == "" || key == "." || key == ".." || strings.ContainsAny(key, `/\`) || strings.HasPrefix(key, ".") {
		return "", fmt.Errorf("storage: invalid meta key %q", key)
	}
	return filepath.Join(f.root, strconv.FormatInt(termID, 10), key), nil
}

// Get returns the stored value, or nil when the key is absent.
func (f *FS) Get(termID int64, key string) ([]byte, error) {
	p, err := f.keyPath(termID, key)
	if err != nil {
		return nil, err
	}
	data, err := os.ReadFile(p)
	if errors.Is(err, fs.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("storage: read %d/%s: %w", termID, key, err)
	}
	return data, nil
}

// Set atomically writes value: tmp file → fsync → rename.
func (f *FS) Set(termID int64, key string, value []byte) error {
	p, err := f.keyPath(termID, key)
	if err != nil {
		return err
	}
	dir := filepath.Dir(p)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("storage: mkdir: %w", err)
	}

	tmp, err := os.CreateTemp(dir, ".resolate-tmp-*")
	if err != nil {
		return fmt.Errorf("storage: create temp: %w", err)
	}
	tmpName := tmp.Name()

	// Clean up on any failure path.
	success := false
	defer func() {
		if !success {
			_ = tmp.Close()
			_ = os.Remove(tmpName)
		}
	}()

	if _, err := tmp.Write(value); err != nil {
		return fmt.Errorf("storage: write temp: %w", err)
	}
	if err := tmp.Sync(); err != nil {
		return fmt.Errorf("storage: fsync: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("storage: close temp: %w", err)
	}
	if err := os.Rename(tmpName, p); err != nil {
		return fmt.Errorf("storage: rename: %w", err)
	}
	success = true
	return nil
}

// Delete removes the key file; the term directory goes once it is empty.
func (f *FS) Delete(termID int64, key string) error {
	p, err := f.keyPath(termID, key)
	if err != nil {
		return err
	}
	if err := os.Remove(p); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("storage: delete %d/%s: %w", termID, key, err)
	}
	_ = os.Remove(filepath.Dir(p)) // fails while other keys remain
	return nil
}

// Find scans every term directory for key.
func (f *FS) Find(key string) (map[int64][]byte, error) {
	entries, err := os.ReadDir(f.root)
	if err != nil {
		return nil, fmt.Errorf("storage: list terms: %w", err)
	}
	out := make(map[int64][]byte)
	for _, e := range entries {
		if !e.IsDir() {
			continue
		}
		id, err := strconv.ParseInt(e.Name(), 10, 64)
		if err != nil || id <= 0 {
			continue
		}
		data, err := f.Get(id, key)
		if err != nil {
			return nil, err
		}
		if data != nil {
			out[id] = data
		}
	}
	return out, nil
}
