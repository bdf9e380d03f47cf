package receipt

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

// Storage holds uploads while a request is processed
type Storage interface {
	// Save writes the upload and returns the name to read it back with
	Save(filename string, data []byte) (string, error)

	// Get reads an upload back
	Get(path string) ([]byte, error)

	// Delete removes an upload
	Delete(path string) error
}

// LocalStorage keeps uploads in a directory on the local filesystem
type LocalStorage struct {
	basePath string
}

// NewLocalStorage creates the upload directory if needed. An empty basePath
// uses a directory under the system temp dir.
func NewLocalStorage(basePath string) (*LocalStorage, error) {
	if basePath == "" {
		basePath = filepath.Join(os.TempDir(), "receipt-categorizer")
	}
	if err := os.MkdirAll(basePath, 0700); err != nil {
		return nil, fmt.Errorf("creating storage directory: %w", err)
	}

	return &LocalStorage{
		basePath: basePath,
	}, nil
}

// path resolves a stored name inside basePath
func (l *LocalStorage) path(name string) (string, error) {
	if name == "" || name != filepath.Base(name) || strings.HasPrefix(name, ".") {
		return "", fmt.Errorf("invalid upload name %q", name)
	}
	return filepath.Join(l.basePath, name), nil
}

// Save writes an upload to the storage directory
func (l *LocalStorage) Save(filename string, data []byte) (string, error) {
	path, err := l.path(filename)
	if err != nil {
		return "", err
	}
	if err := os.WriteFile(path, data, 0600); err != nil {
		return "", fmt.Errorf("writing file: %w", err)
	}
	return filename, nil
}

// Get reads an upload from the storage directory
func (l *LocalStorage) Get(name string) ([]byte, error) {
	path, err := l.path(name)
	if err != nil {
		return nil, err
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading file: %w", err)
	}
	return data, nil
}

// Delete removes an upload from the storage directory
func (l *LocalStorage) Delete(name string) error {
	path, err := l.path(name)
	if err != nil {
		return err
	}
	if err := os.Remove(path); err != nil {
		return fmt.Errorf("deleting file: %w", err)
	}
	return nil
}
