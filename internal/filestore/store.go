// Package filestore defines the object storage interface askdb archives
// session transcripts to.
//
// Callers depend only on this package, never on a specific provider
// package.
//
// Usage:
//
//	cfg := filestore.DefaultConfig("localhost:9000", "minioadmin", "minioadmin")
//	store, err := minio.New(ctx, cfg)
//	if err != nil { ... }
//	defer store.Close()
//
//	info, err := store.PutObject(ctx, "s-1/transcript.json", r, size, "application/json")
package filestore

import (
	"context"
	"io"
)

// Store is the interface all file storage providers implement. Keys are
// relative to the configured bucket and prefix.
type Store interface {
	// Ping verifies the storage backend is reachable.
	Ping(ctx context.Context) error

	// Close releases any held resources.
	Close() error

	// PutObject uploads size bytes from r under key.
	PutObject(ctx context.Context, key string, r io.Reader, size int64, contentType string) (*ObjectInfo, error)

	// GetObject opens a streaming handle to the object at key.
	// The caller MUST call Object.Close() after reading.
	GetObject(ctx context.Context, key string) (Object, error)

	// ListObjects returns objects whose keys match opts, oldest first.
	ListObjects(ctx context.Context, opts ListOptions) ([]ObjectInfo, error)
}
