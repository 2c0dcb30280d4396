package filestore

import (
	"errors"
	"fmt"
	"strings"
)

// Error types
var (
	// ErrUnsupportedContentType indicates the upload's MIME type is not in the allow-list
	ErrUnsupportedContentType = errors.New("unsupported content type")

	// ErrInvalidFilename indicates the upload has no usable file name
	ErrInvalidFilename = errors.New("invalid file name")

	// ErrFileTooLarge indicates the upload exceeds the configured maximum size
	ErrFileTooLarge = errors.New("file too large")

	// ErrFileNotFound indicates no metadata record exists for an id
	ErrFileNotFound = errors.New("file not found")

	// ErrBlobNotFound indicates a backend holds nothing at a locator
	ErrBlobNotFound = errors.New("blob not found")

	// ErrContentMissing indicates a metadata record exists but its bytes do not
	ErrContentMissing = errors.New("file content missing")

	// ErrBackendWrite indicates a blob backend write or delete failed
	ErrBackendWrite = errors.New("backend write failed")

	// ErrBackendRead indicates a blob backend read failed
	ErrBackendRead = errors.New("backend read failed")

	// ErrInvalidLocator indicates a locator the backend cannot have produced
	ErrInvalidLocator = errors.New("invalid storage locator")

	// ErrMetadataStore indicates a metadata store operation failed
	ErrMetadataStore = errors.New("metadata store failed")
)

// ContentTypeError is returned when an upload's content type is rejected
type ContentTypeError struct {
	ContentType string
	Allowed     []string
}

func (e *ContentTypeError) Error() string {
	return fmt.Sprintf("content type %q not allowed, allowed types: %s", e.ContentType, strings.Join(e.Allowed, ", "))
}

func (e *ContentTypeError) Unwrap() error {
	return ErrUnsupportedContentType
}

// StorageError represents an error related to blob backend operations.
// Kind is one of ErrBackendWrite, ErrBackendRead or ErrBlobNotFound.
type StorageError struct {
	Backend string
	Locator string
	Op      string
	Kind    error
	Err     error
}

func (e *StorageError) Error() string {
	if e.Err == nil {
		return fmt.Sprintf("storage operation %s failed for %s on backend %s: %v", e.Op, e.Locator, e.Backend, e.Kind)
	}
	return fmt.Sprintf("storage operation %s failed for %s on backend %s: %v: %v", e.Op, e.Locator, e.Backend, e.Kind, e.Err)
}

func (e *StorageError) Unwrap() []error {
	errs := make([]error, 0, 2)
	if e.Kind != nil {
		errs = append(errs, e.Kind)
	}
	if e.Err != nil {
		errs = append(errs, e.Err)
	}
	return errs
}

// NewWriteError wraps a failed put or delete.
func NewWriteError(backend, locator, op string, err error) error {
	return &StorageError{Backend: backend, Locator: locator, Op: op, Kind: ErrBackendWrite, Err: err}
}

// NewReadError wraps a failed get.
func NewReadError(backend, locator, op string, err error) error {
	return &StorageError{Backend: backend, Locator: locator, Op: op, Kind: ErrBackendRead, Err: err}
}

// NewBlobNotFoundError reports that nothing is stored at locator.
func NewBlobNotFoundError(backend, locator string) error {
	return &StorageError{Backend: backend, Locator: locator, Op: "get", Kind: ErrBlobNotFound}
}

// MetadataError represents an error related to metadata store operations
type MetadataError struct {
	ID  string
	Op  string
	Err error
}

func (e *MetadataError) Error() string {
	if e.ID == "" {
		return fmt.Sprintf("metadata operation %s failed: %v", e.Op, e.Err)
	}
	return fmt.Sprintf("metadata operation %s failed for file %s: %v", e.Op, e.ID, e.Err)
}

func (e *MetadataError) Unwrap() []error {
	if e.Err == nil {
		return []error{ErrMetadataStore}
	}
	return []error{ErrMetadataStore, e.Err}
}

// NewMetadataError wraps a metadata store failure.
func NewMetadataError(op, id string, err error) error {
	return &MetadataError{ID: id, Op: op, Err: err}
}

// IsValidation reports whether err rejects client input.
func IsValidation(err error) bool {
	return errors.Is(err, ErrUnsupportedContentType) ||
		errors.Is(err, ErrInvalidFilename) ||
		errors.Is(err, ErrFileTooLarge)
}

// IsNotFound reports whether err means no record exists for the requested id.
// Bytes missing behind an existing record is not a not-found condition.
func IsNotFound(err error) bool {
	return errors.Is(err, ErrFileNotFound)
}
