package history

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/qlhub/qlhub/internal/log"
)

// FileStore keeps the document as indented json in a single file.
type FileStore struct {
	path string
	now  func() time.Time
}

func NewFileStore(path string) *FileStore {
	return &FileStore{path: path, now: time.Now}
}

func (s *FileStore) Load(ctx context.Context) *Document {
	logger := log.LoggerFromContext(ctx).With(slog.String("store", s.path))
	data, err := os.ReadFile(s.path)
	if err != nil {
		if !errors.Is(err, os.ErrNotExist) {
			logger.Error(fmt.Sprintf("error while reading history: %v", err))
		}
		return NewDocument()
	}
	doc := NewDocument()
	if err := json.Unmarshal(data, doc); err != nil {
		logger.Error(fmt.Sprintf("history is corrupt, starting from scratch: %v", err))
		return NewDocument()
	}
	if doc.Items == nil {
		doc.Items = map[string]*ItemHistory{}
	}
	logger.Debug(fmt.Sprintf("loaded history of %d items", len(doc.Items)))
	return doc
}

// Save writes to a temporary file first and renames it over the previous
// document.
func (s *FileStore) Save(ctx context.Context, doc *Document) error {
	doc.LastUpdate = At(s.now())

	buffer := &bytes.Buffer{}
	encoder := json.NewEncoder(buffer)
	encoder.SetEscapeHTML(false)
	encoder.SetIndent("", "  ")
	if err := encoder.Encode(doc); err != nil {
		return fmt.Errorf("error while encoding history: %w", err)
	}

	dir := filepath.Dir(s.path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("failed to create directory %s: %w", dir, err)
	}
	tmp, err := os.CreateTemp(dir, filepath.Base(s.path)+".*.tmp")
	if err != nil {
		return fmt.Errorf("error while creating temporary file: %w", err)
	}
	defer os.Remove(tmp.Name())
	if _, err := tmp.Write(buffer.Bytes()); err != nil {
		tmp.Close()
		return fmt.Errorf("error while writing history: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return err
	}
	if err := os.Rename(tmp.Name(), s.path); err != nil {
		return fmt.Errorf("error while replacing history: %w", err)
	}
	log.LoggerFromContext(ctx).Debug(fmt.Sprintf("saved history of %d items to %s", len(doc.Items), s.path))
	return nil
}

func (s *FileStore) Close() error { return nil }
