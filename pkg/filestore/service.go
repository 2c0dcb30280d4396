package filestore

import (
	"context"
)

// Service defines the operations the HTTP layer consumes
type Service interface {
	// SaveFile validates and buffers the upload, writes its bytes to the blob
	// backend and then records its metadata.
	SaveFile(ctx context.Context, req SaveFileRequest) (*FileRecord, error)

	// ListFiles returns a page of records, newest first, and the total count.
	// Callers are responsible for bounding limit.
	ListFiles(ctx context.Context, skip, limit int) (*FileList, error)

	// GetFileMetadata returns the record for id without touching the blob backend.
	GetFileMetadata(ctx context.Context, id string) (*FileRecord, error)

	// GetFileContent returns the stored bytes and the record for id.
	GetFileContent(ctx context.Context, id string) ([]byte, *FileRecord, error)
}
