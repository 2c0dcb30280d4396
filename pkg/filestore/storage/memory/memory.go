package memory

import (
	"context"
	"fmt"
	"strings"
	"sync"

	"github.com/tendant/simple-files/pkg/filestore"
)

const (
	backendName = "memory"
	scheme      = "mem://"
)

// Backend is an in-memory implementation of the filestore.BlobBackend interface
type Backend struct {
	mu      sync.RWMutex
	objects map[string][]byte
}

// New creates a new in-memory storage backend
func New() *Backend {
	return &Backend{
		objects: make(map[string][]byte),
	}
}

func (b *Backend) Name() string { return backendName }

// Put stores a copy of data under key
func (b *Backend) Put(ctx context.Context, key string, data []byte, contentType string) (string, error) {
	if key == "" {
		return "", filestore.NewWriteError(backendName, key, "put", fmt.Errorf("%w: empty key", filestore.ErrInvalidLocator))
	}
	if err := ctx.Err(); err != nil {
		return "", filestore.NewWriteError(backendName, key, "put", err)
	}

	buf := make([]byte, len(data))
	copy(buf, data)

	b.mu.Lock()
	defer b.mu.Unlock()
	b.objects[key] = buf

	return scheme + key, nil
}

// Get returns a copy of the content stored at locator
func (b *Backend) Get(ctx context.Context, locator string) ([]byte, error) {
	key, err := parseLocator(locator)
	if err != nil {
		return nil, filestore.NewReadError(backendName, locator, "get", err)
	}
	if err := ctx.Err(); err != nil {
		return nil, filestore.NewReadError(backendName, locator, "get", err)
	}

	b.mu.RLock()
	defer b.mu.RUnlock()

	data, exists := b.objects[key]
	if !exists {
		return nil, filestore.NewBlobNotFoundError(backendName, locator)
	}

	buf := make([]byte, len(data))
	copy(buf, data)
	return buf, nil
}

// Delete removes content; absent content is not an error
func (b *Backend) Delete(ctx context.Context, locator string) error {
	key, err := parseLocator(locator)
	if err != nil {
		return filestore.NewWriteError(backendName, locator, "delete", err)
	}

	b.mu.Lock()
	defer b.mu.Unlock()
	delete(b.objects, key)
	return nil
}

// Len returns the number of stored objects
func (b *Backend) Len() int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.objects)
}

func parseLocator(locator string) (string, error) {
	key, ok := strings.CutPrefix(locator, scheme)
	if !ok || key == "" {
		return "", fmt.Errorf("%w: %q", filestore.ErrInvalidLocator, locator)
	}
	return key, nil
}
