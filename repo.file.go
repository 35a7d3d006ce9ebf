package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"go.uber.org/zap"
)

type fileBookStorage struct {
	logger *zap.Logger
	path   string
}

// NewFileBookStorage provides an instance of file-based book storage. It makes
// sure the folder of the books document exists. The document itself is created
// on first save.
func NewFileBookStorage(logger *zap.Logger, config *StorageConfig) (BookStorage, error) {
	if err := os.MkdirAll(filepath.Dir(config.FilePath), 0o755); err != nil {
		return nil, fmt.Errorf("failed to create folder for %s: %w", config.FilePath, err)
	}
	return &fileBookStorage{
		logger: logger,
		path:   config.FilePath,
	}, nil
}

// Load reads and parses the full books document. Any read or parse failure
// is logged and an empty collection is returned instead.
func (fs *fileBookStorage) Load(_ context.Context) []Book {
	data, err := os.ReadFile(fs.path)
	if errors.Is(err, os.ErrNotExist) {
		fs.logger.Debug("storage: books file does not exist yet", zap.String("storage.file", fs.path))
		return []Book{}
	}
	if err != nil {
		fs.logger.Error("storage: failed to read books file", zap.String("storage.file", fs.path), zap.Error(err))
		return []Book{}
	}

	var books []Book
	if err = json.Unmarshal(data, &books); err != nil {
		fs.logger.Error("storage: failed to parse books file", zap.String("storage.file", fs.path), zap.Error(err))
		return []Book{}
	}
	if books == nil {
		books = []Book{}
	}
	return books
}

// Save replaces the books document with the indented json of the given collection.
// Content goes into a temporary file in the same folder which is then renamed
// over the document, so readers see either the previous or the new content.
func (fs *fileBookStorage) Save(_ context.Context, books []Book) error {
	if books == nil {
		books = []Book{}
	}
	data, err := json.MarshalIndent(books, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal books: %w", err)
	}

	tmp, err := os.CreateTemp(filepath.Dir(fs.path), "."+filepath.Base(fs.path)+".*.tmp")
	if err != nil {
		return fmt.Errorf("failed to create temp file: %w", err)
	}
	tmpPath := tmp.Name()

	if _, err = tmp.Write(data); err != nil {
		return errors.Join(fmt.Errorf("failed to write books: %w", err), tmp.Close(), os.Remove(tmpPath))
	}
	if err = tmp.Sync(); err != nil {
		return errors.Join(fmt.Errorf("failed to sync books: %w", err), tmp.Close(), os.Remove(tmpPath))
	}
	if err = tmp.Close(); err != nil {
		return errors.Join(fmt.Errorf("failed to close temp file: %w", err), os.Remove(tmpPath))
	}
	if err = os.Chmod(tmpPath, 0o644); err != nil {
		return errors.Join(fmt.Errorf("failed to set books file mode: %w", err), os.Remove(tmpPath))
	}
	if err = os.Rename(tmpPath, fs.path); err != nil {
		return errors.Join(fmt.Errorf("failed to replace books file: %w", err), os.Remove(tmpPath))
	}
	return nil
}
