package testutil

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"strings"
	"sync"

	"github.com/crexpressinc/formsgate/internal/storage"
)

// MemoryBlob is an in-memory storage.Blob with failure injection.
type MemoryBlob struct {
	mu      sync.Mutex
	objects map[string][]byte
	types   map[string]string

	// FailDelete makes Delete fail for locations containing the substring.
	FailDelete string
	// FailPut makes every Put fail.
	FailPut bool
}

// NewMemoryBlob creates an empty MemoryBlob.
func NewMemoryBlob() *MemoryBlob {
	return &MemoryBlob{objects: map[string][]byte{}, types: map[string]string{}}
}

func (m *MemoryBlob) Put(ctx context.Context, key string, body io.Reader, size int64, contentType string) (string, error) {
	if m.FailPut {
		return "", fmt.Errorf("put %s: injected failure", key)
	}
	b, err := io.ReadAll(body)
	if err != nil {
		return "", err
	}
	loc := "mem://" + key

	m.mu.Lock()
	defer m.mu.Unlock()
	m.objects[loc] = b
	m.types[loc] = contentType
	return loc, nil
}

func (m *MemoryBlob) Open(ctx context.Context, location string) (io.ReadCloser, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	b, ok := m.objects[location]
	if !ok {
		return nil, fmt.Errorf("%w: %s", storage.ErrNotFound, location)
	}
	return io.NopCloser(bytes.NewReader(b)), nil
}

func (m *MemoryBlob) Delete(ctx context.Context, location string) error {
	if m.FailDelete != "" && strings.Contains(location, m.FailDelete) {
		return fmt.Errorf("delete %s: injected failure", location)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.objects, location)
	delete(m.types, location)
	return nil
}

func (m *MemoryBlob) Health(ctx context.Context) error {
	return nil
}

// Has reports whether bytes exist at location.
func (m *MemoryBlob) Has(location string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	_, ok := m.objects[location]
	return ok
}

// Len returns the number of stored objects.
func (m *MemoryBlob) Len() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.objects)
}
