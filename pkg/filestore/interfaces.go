package filestore

import (
	"context"
)

// BlobBackend defines the interface for storage backends holding file bytes.
type BlobBackend interface {
	// Name identifies the backend in logs and errors
	Name() string

	// Put writes data under key and returns the locator to record in metadata.
	// Intermediate structure (directories, buckets) is created as needed.
	Put(ctx context.Context, key string, data []byte, contentType string) (string, error)

	// Get returns the full content addressed by locator.
	// Returns an error wrapping ErrBlobNotFound when nothing is stored there.
	Get(ctx context.Context, locator string) ([]byte, error)

	// Delete removes the content addressed by locator. Deleting content that
	// is already absent succeeds.
	Delete(ctx context.Context, locator string) error
}

// MetadataStore defines the interface for FileRecord persistence
type MetadataStore interface {
	// Insert stores record and returns the identifier assigned by the store.
	// The ID field of record is ignored.
	Insert(ctx context.Context, record *FileRecord) (string, error)

	// FindByID returns ErrFileNotFound when no record has the given id,
	// including when id is not well formed for the store.
	FindByID(ctx context.Context, id string) (*FileRecord, error)

	// List returns records ordered by UploadDate, newest first.
	List(ctx context.Context, params ListParams) ([]*FileRecord, error)

	// Count returns the number of records.
	Count(ctx context.Context) (int64, error)
}

// KeyGenerator derives the storage key for an upload.
type KeyGenerator interface {
	GenerateKey(filename string) string

	// Unique reports whether two calls never return the same key.
	Unique() bool
}
