// Package storage keeps artifact bytes behind a uniform "write bytes, get a
// location back / read bytes from a location" interface.
package storage

import (
	"context"
	"errors"
	"fmt"
	"io"
	"path"
	"time"

	"github.com/rs/zerolog"

	"github.com/crexpressinc/formsgate/internal/config"
	"github.com/crexpressinc/formsgate/internal/metrics"
)

// ErrNotFound is returned when no bytes exist at a location.
var ErrNotFound = errors.New("blob not found")

// Blob is the storage backend for generated artifacts.
type Blob interface {
	// Put stores body under key and returns an opaque location.
	Put(ctx context.Context, key string, body io.Reader, size int64, contentType string) (string, error)
	// Open streams the bytes stored at location. The caller closes the reader.
	Open(ctx context.Context, location string) (io.ReadCloser, error)
	// Delete removes the bytes at location. Missing bytes are not an error.
	Delete(ctx context.Context, location string) error
	// Health checks the backend is reachable.
	Health(ctx context.Context) error
}

// SubmissionKey is the storage key of an artifact of a submission.
func SubmissionKey(submissionID, kind string) string {
	return path.Join("submissions", submissionID, kind+".pdf")
}

// New builds the backend selected by STORAGE_BACKEND.
func New(ctx context.Context, cfg config.StorageConfig, log zerolog.Logger) (Blob, error) {
	switch cfg.Backend {
	case "s3":
		return NewS3Storage(ctx, cfg, log)
	case "local", "":
		return NewLocalStorage(cfg.LocalPath, log)
	default:
		return nil, fmt.Errorf("unknown storage backend %q", cfg.Backend)
	}
}

func observe(backend, op string, start time.Time, err error) {
	status := "success"
	if err != nil {
		status = "error"
	}
	metrics.RecordStorageOperation(backend, op, status, time.Since(start).Seconds())
}
