// Package filestore stores uploaded files as opaque bytes in a pluggable blob
// backend and records their metadata in a pluggable metadata store.
//
// The Service interface is what the HTTP layer consumes. Every upload is
// validated before any I/O happens, its bytes are written first and its
// record second, so a record never points at bytes that were not written.
// Backends (memory, local filesystem, S3, MinIO) live under storage/ and
// metadata stores (memory, MongoDB, Postgres, plus a Redis read cache) live
// under store/.
//
// Storage Locators
//
// Put returns a locator string that is recorded on the FileRecord and handed
// back to the same backend on Get. Locators are opaque outside the backend
// that produced them: the local backend uses a path relative to its root,
// the object store backends use s3://bucket/key and the memory backend uses
// mem://key.
package filestore
