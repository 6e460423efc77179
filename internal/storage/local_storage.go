package storage

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/rs/zerolog"
)

const localScheme = "local://"

// LocalStorage keeps artifacts on the local filesystem.
type LocalStorage struct {
	basePath string
	log      zerolog.Logger
}

// NewLocalStorage creates a new local filesystem storage backend.
func NewLocalStorage(basePath string, log zerolog.Logger) (*LocalStorage, error) {
	logger := log.With().Str("component", "local-storage").Logger()

	basePath = strings.TrimSpace(basePath)
	if basePath == "" {
		return nil, errors.New("local storage path is empty")
	}

	abs, err := filepath.Abs(basePath)
	if err != nil {
		return nil, fmt.Errorf("resolve local storage path: %w", err)
	}
	if err := os.MkdirAll(abs, 0755); err != nil {
		return nil, fmt.Errorf("failed to create local storage directory: %w", err)
	}

	logger.Info().Str("path", abs).Msg("local storage initialized")

	return &LocalStorage{basePath: abs, log: logger}, nil
}

// resolve maps a location to an absolute path inside basePath.
func (l *LocalStorage) resolve(location string) (string, error) {
	key, ok := strings.CutPrefix(location, localScheme)
	if !ok {
		return "", fmt.Errorf("not a local storage location: %q", location)
	}
	full := filepath.Join(l.basePath, filepath.FromSlash(key))
	rel, err := filepath.Rel(l.basePath, full)
	if err != nil || rel == "." || strings.HasPrefix(rel, "..") {
		return "", fmt.Errorf("location escapes storage root: %q", location)
	}
	return full, nil
}

// Put stores a file to the local filesystem.
func (l *LocalStorage) Put(ctx context.Context, key string, body io.Reader, size int64, contentType string) (loc string, err error) {
	start := time.Now()
	defer func() { observe("local", "put", start, err) }()

	location := localScheme + strings.TrimPrefix(filepath.ToSlash(key), "/")
	fullPath, err := l.resolve(location)
	if err != nil {
		return "", err
	}

	if err := os.MkdirAll(filepath.Dir(fullPath), 0755); err != nil {
		return "", fmt.Errorf("failed to create directory: %w", err)
	}

	// Write to a temp file first so readers never see a partial artifact
	tmp, err := os.CreateTemp(filepath.Dir(fullPath), ".upload-*")
	if err != nil {
		return "", fmt.Errorf("failed to create file: %w", err)
	}
	written, err := io.Copy(tmp, body)
	if closeErr := tmp.Close(); err == nil {
		err = closeErr
	}
	if err != nil {
		os.Remove(tmp.Name())
		return "", fmt.Errorf("failed to write file: %w", err)
	}
	if err := os.Rename(tmp.Name(), fullPath); err != nil {
		os.Remove(tmp.Name())
		return "", fmt.Errorf("failed to move file into place: %w", err)
	}

	l.log.Debug().
		Str("key", key).
		Int64("bytes", written).
		Msg("file written to local storage")

	return location, nil
}

// Open reads a file from the local filesystem.
func (l *LocalStorage) Open(ctx context.Context, location string) (rc io.ReadCloser, err error) {
	start := time.Now()
	defer func() { observe("local", "open", start, err) }()

	fullPath, err := l.resolve(location)
	if err != nil {
		return nil, err
	}

	file, err := os.Open(fullPath)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, fmt.Errorf("%w: %s", ErrNotFound, location)
		}
		return nil, fmt.Errorf("failed to open file: %w", err)
	}
	return file, nil
}

// Delete removes a file and prunes its now-empty parent directory.
func (l *LocalStorage) Delete(ctx context.Context, location string) (err error) {
	start := time.Now()
	defer func() { observe("local", "delete", start, err) }()

	fullPath, err := l.resolve(location)
	if err != nil {
		return err
	}

	if err := os.Remove(fullPath); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("failed to delete file: %w", err)
	}

	// Only succeeds when empty
	_ = os.Remove(filepath.Dir(fullPath))
	return nil
}

// Health checks if the storage directory is writable.
func (l *LocalStorage) Health(ctx context.Context) error {
	testFile := filepath.Join(l.basePath, ".health_check")
	if err := os.WriteFile(testFile, []byte("ok"), 0644); err != nil {
		return fmt.Errorf("storage directory not writable: %w", err)
	}
	_ = os.Remove(testFile)
	return nil
}
