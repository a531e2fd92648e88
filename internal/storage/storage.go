// Package storage defines the Storage interface and common types for the
// object storage backends holding tenant documents.
//
// New backends are added by implementing the Storage interface and registering
// with the factory via an init() function in the backend's own package:
//
//	func init() {
//	    storage.Register("mybackend", func(cfg *config.Config) (Storage, error) {
//	        return NewMyBackend(cfg)
//	    })
//	}
//
// The router imports each backend with a blank import to trigger init(), so
// adding a backend requires no changes to the factory.
//
// This layer is tenant-unaware by design: it stores and retrieves objects at
// whatever path it is given. Tenant scoping is the responsibility of the
// artifacts package, which derives every path from a verified tenant id and
// never passes a client-supplied key down here.
package storage

import (
	"context"
	"io"
	"time"
)

// Storage defines the interface for object storage backends.
type Storage interface {
	// Upload stores an object with its content type and metadata, returning
	// the storage result with path and checksum. The reader is consumed in a
	// streaming fashion; implementations must not require the whole object
	// in memory.
	Upload(ctx context.Context, path string, reader io.Reader, size int64, opts UploadOptions) (*UploadResult, error)

	// Download retrieves an object as a reader. The caller owns the reader
	// and must close it; bytes pass through unmodified.
	Download(ctx context.Context, path string) (io.ReadCloser, error)

	// Delete removes an object. Deleting a missing object is not an error.
	Delete(ctx context.Context, path string) error

	// Exists checks whether an object exists at the given path.
	Exists(ctx context.Context, path string) (bool, error)

	// GetMetadata retrieves object metadata without downloading the content.
	GetMetadata(ctx context.Context, path string) (*FileMetadata, error)

	// List returns all objects under the given prefix, with their metadata.
	List(ctx context.Context, prefix string) ([]ObjectInfo, error)
}

// UploadOptions carries the content type and custom metadata stored with an
// object.
type UploadOptions struct {
	ContentType string
	Metadata    map[string]string
}

// UploadResult contains information about an uploaded object
type UploadResult struct {
	// Path is the storage path where the object was stored
	Path string

	// Size is the object size in bytes
	Size int64

	// Checksum is the SHA256 hash of the object contents
	Checksum string
}

// ObjectInfo describes one listed object.
type ObjectInfo struct {
	Path         string
	Size         int64
	ContentType  string
	Metadata     map[string]string
	LastModified time.Time
}

// FileMetadata contains metadata about a stored object
type FileMetadata struct {
	Path         string
	Size         int64
	Checksum     string
	ContentType  string
	Metadata     map[string]string
	LastModified time.Time
}
