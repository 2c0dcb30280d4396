package fs

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"github.com/tendant/simple-files/pkg/filestore"
)

const backendName = "local"

// Backend is a filesystem implementation of the filestore.BlobBackend interface.
// Locators are slash-separated paths relative to the root directory.
type Backend struct {
	mu   sync.Mutex
	root string
}

// Config options for the filesystem backend
type Config struct {
	RootDir string // Directory all files are written under
}

// New creates a new filesystem storage backend
func New(config Config) (*Backend, error) {
	// Validate and create root directory if it doesn't exist
	if config.RootDir == "" {
		return nil, errors.New("root directory is required")
	}

	if err := os.MkdirAll(config.RootDir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create root directory: %w", err)
	}

	return &Backend{
		root: filepath.Clean(config.RootDir),
	}, nil
}

func (b *Backend) Name() string { return backendName }

// Root returns the directory files are written under
func (b *Backend) Root() string { return b.root }

// Put writes data to root/key, creating parent directories as needed.
// An existing file at the same key is overwritten.
func (b *Backend) Put(ctx context.Context, key string, data []byte, contentType string) (string, error) {
	filePath, err := b.resolve(key)
	if err != nil {
		return "", filestore.NewWriteError(backendName, key, "put", err)
	}
	if err := ctx.Err(); err != nil {
		return "", filestore.NewWriteError(backendName, key, "put", err)
	}

	b.mu.Lock()
	defer b.mu.Unlock()

	// Create directory structure if it doesn't exist
	if err := os.MkdirAll(filepath.Dir(filePath), 0755); err != nil {
		return "", filestore.NewWriteError(backendName, key, "put", fmt.Errorf("failed to create directory: %w", err))
	}

	file, err := os.Create(filePath)
	if err != nil {
		return "", filestore.NewWriteError(backendName, key, "put", fmt.Errorf("failed to create file: %w", err))
	}

	if _, err := file.Write(data); err != nil {
		file.Close()
		os.Remove(filePath)
		return "", filestore.NewWriteError(backendName, key, "put", fmt.Errorf("failed to write file: %w", err))
	}
	if err := file.Close(); err != nil {
		os.Remove(filePath)
		return "", filestore.NewWriteError(backendName, key, "put", fmt.Errorf("failed to close file: %w", err))
	}

	return filepath.ToSlash(filepath.Clean(filepath.FromSlash(key))), nil
}

// Get reads the whole file addressed by locator
func (b *Backend) Get(ctx context.Context, locator string) ([]byte, error) {
	filePath, err := b.resolve(locator)
	if err != nil {
		return nil, filestore.NewReadError(backendName, locator, "get", err)
	}
	if err := ctx.Err(); err != nil {
		return nil, filestore.NewReadError(backendName, locator, "get", err)
	}

	data, err := os.ReadFile(filePath)
	if errors.Is(err, os.ErrNotExist) {
		return nil, filestore.NewBlobNotFoundError(backendName, locator)
	} else if err != nil {
		return nil, filestore.NewReadError(backendName, locator, "get", err)
	}

	return data, nil
}

// Delete removes the file and any directories left empty by it
func (b *Backend) Delete(ctx context.Context, locator string) error {
	filePath, err := b.resolve(locator)
	if err != nil {
		return filestore.NewWriteError(backendName, locator, "delete", err)
	}

	b.mu.Lock()
	defer b.mu.Unlock()

	if err := os.Remove(filePath); err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil
		}
		return filestore.NewWriteError(backendName, locator, "delete", fmt.Errorf("failed to delete file: %w", err))
	}

	// Clean up empty directories
	b.cleanupEmptyDirectories(filepath.Dir(filePath))

	return nil
}

// resolve maps a key or locator to a path under root. Absolute paths and
// paths escaping root are rejected.
func (b *Backend) resolve(key string) (string, error) {
	if key == "" {
		return "", fmt.Errorf("%w: empty path", filestore.ErrInvalidLocator)
	}
	rel := filepath.FromSlash(key)
	if !filepath.IsLocal(rel) {
		return "", fmt.Errorf("%w: %q is not a relative path under the root", filestore.ErrInvalidLocator, key)
	}
	return filepath.Join(b.root, rel), nil
}

// cleanupEmptyDirectories recursively removes empty directories up to root
func (b *Backend) cleanupEmptyDirectories(dir string) {
	if dir == b.root || len(dir) <= len(b.root) {
		return
	}

	if entries, err := os.ReadDir(dir); err == nil && len(entries) == 0 {
		if os.Remove(dir) == nil {
			b.cleanupEmptyDirectories(filepath.Dir(dir))
		}
	}
}
