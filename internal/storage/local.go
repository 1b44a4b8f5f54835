package storage

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/google/uuid"
)

// LocalStorage keeps artifacts on the local filesystem. Objects are served
// back through the API's files route, which is why keys stay flat (no
// directory separators).
type LocalStorage struct {
	dir       string
	urlPrefix string
}

// NewLocalStorage creates a local-directory store. urlPrefix is prepended to
// keys when synthesizing access URLs (e.g. "/api/v1/files").
func NewLocalStorage(dir, urlPrefix string) (*LocalStorage, error) {
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create storage directory: %w", err)
	}
	return &LocalStorage{
		dir:       dir,
		urlPrefix: strings.TrimSuffix(urlPrefix, "/"),
	}, nil
}

// StoreBytes writes content to a fresh file and returns its key and URL.
func (l *LocalStorage) StoreBytes(_ context.Context, content []byte, suffix, _ string) (*StoredObject, error) {
	key := uuid.New().String() + suffix
	if err := os.WriteFile(filepath.Join(l.dir, key), content, 0644); err != nil {
		return nil, fmt.Errorf("failed to write object: %w", err)
	}
	return &StoredObject{Key: key, URL: l.urlPrefix + "/" + key}, nil
}

// Open returns a reader over a stored object. Keys containing path
// separators are rejected so a crafted key cannot escape the directory.
func (l *LocalStorage) Open(_ context.Context, key string) (io.ReadCloser, error) {
	if !validKey(key) {
		return nil, fmt.Errorf("invalid object key %q", key)
	}
	f, err := os.Open(filepath.Join(l.dir, key))
	if err != nil {
		return nil, fmt.Errorf("failed to open object: %w", err)
	}
	return f, nil
}

// Delete removes a stored object.
func (l *LocalStorage) Delete(_ context.Context, key string) error {
	if !validKey(key) {
		return fmt.Errorf("invalid object key %q", key)
	}
	if err := os.Remove(filepath.Join(l.dir, key)); err != nil {
		return fmt.Errorf("failed to delete object: %w", err)
	}
	return nil
}

func validKey(key string) bool {
	return key != "" && key != "." && key != ".." && key == filepath.Base(key)
}
