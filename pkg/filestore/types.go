package filestore

import (
	"io"
	"time"
)

// FileRecord is the metadata entry for one uploaded file.
//
// Records are created once by the service and never updated. StorageLocator
// is only meaningful to the BlobBackend that produced it.
type FileRecord struct {
	ID             string    `json:"id"`
	Filename       string    `json:"filename"`
	ContentType    string    `json:"content_type"`
	StorageLocator string    `json:"file_path"`
	Size           int64     `json:"size"`
	UploadDate     time.Time `json:"upload_date"`
}

// FileList is one page of records plus the total number of records.
type FileList struct {
	Total int64         `json:"total"`
	Files []*FileRecord `json:"files"`
}

// ListParams is the offset pagination window for MetadataStore.List.
type ListParams struct {
	Skip  int
	Limit int
}

// SaveFileRequest contains the parameters for saving an uploaded file
type SaveFileRequest struct {
	Filename    string
	ContentType string
	Body        io.Reader
}

// DefaultAllowedContentTypes is the allow-list used when none is configured.
var DefaultAllowedContentTypes = []string{
	"text/plain",
	"application/json",
	"image/jpeg",
	"image/png",
	"image/gif",
}
