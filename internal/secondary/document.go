package secondary

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sync"

	"go.uber.org/zap"
)

// Document is a JSON object on disk mapping keys to records of type V.
// Every access loads the file, works on the in-memory map and, for updates,
// writes the result back through a temporary file and a rename, all under one mutex.
type Document[V any] struct {
	mu     sync.Mutex
	path   string
	logger *zap.Logger
}

// NewDocument creates a document stored at path
func NewDocument[V any](path string, logger *zap.Logger) *Document[V] {
	return &Document[V]{
		path:   path,
		logger: logger,
	}
}

// View calls fn with the current contents. fn must not retain the map.
func (d *Document[V]) View(fn func(records map[string]V)) {
	d.mu.Lock()
	defer d.mu.Unlock()

	fn(d.load())
}

// Update calls fn with the current contents and persists them if fn reports a change
func (d *Document[V]) Update(fn func(records map[string]V) bool) error {
	d.mu.Lock()
	defer d.mu.Unlock()

	records := d.load()
	if !fn(records) {
		return nil
	}

	return d.persist(records)
}

// load never fails: a missing, empty or corrupt file reads as an empty document
func (d *Document[V]) load() map[string]V {
	data, err := os.ReadFile(d.path)
	if err != nil {
		if !errors.Is(err, fs.ErrNotExist) {
			d.logger.Warn("Failed to read document, treating as empty",
				zap.String("path", d.path),
				zap.Error(err),
			)
		}
		return make(map[string]V)
	}

	if len(bytes.TrimSpace(data)) == 0 {
		return make(map[string]V)
	}

	var records map[string]V
	if err := json.Unmarshal(data, &records); err != nil {
		d.logger.Warn("Corrupt document, treating as empty",
			zap.String("path", d.path),
			zap.Error(err),
		)
		return make(map[string]V)
	}

	if records == nil {
		records = make(map[string]V)
	}

	return records
}

func (d *Document[V]) persist(records map[string]V) error {
	data, err := json.MarshalIndent(records, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to encode %s: %w", d.path, err)
	}

	return WriteFileAtomic(d.path, data)
}

// WriteFileAtomic replaces path with data through a temporary file in the same directory,
// so readers see either the old or the new contents
func WriteFileAtomic(path string, data []byte) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o700); err != nil {
		return fmt.Errorf("failed to create directory %s: %w", dir, err)
	}

	tmp, err := os.CreateTemp(dir, filepath.Base(path)+".*.tmp")
	if err != nil {
		return fmt.Errorf("failed to create temp file for %s: %w", path, err)
	}
	tmpName := tmp.Name()

	if _, err := tmp.Write(data); err != nil {
		_ = tmp.Close()
		_ = os.Remove(tmpName)
		return fmt.Errorf("failed to write %s: %w", path, err)
	}

	if err := tmp.Sync(); err != nil {
		_ = tmp.Close()
		_ = os.Remove(tmpName)
		return fmt.Errorf("failed to sync %s: %w", path, err)
	}

	if err := tmp.Close(); err != nil {
		_ = os.Remove(tmpName)
		return fmt.Errorf("failed to close %s: %w", path, err)
	}

	if err := os.Rename(tmpName, path); err != nil {
		_ = os.Remove(tmpName)
		return fmt.Errorf("failed to replace %s: %w", path, err)
	}

	return nil
}
