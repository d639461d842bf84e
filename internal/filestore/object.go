package filestore

import (
	"io"
	"time"
)

// ObjectInfo describes a single object stored in the bucket.
type ObjectInfo struct {
	// Key is the object path relative to the configured prefix
	// (e.g. "2f1c.../20240301T120000.000000000Z.json").
	Key string `json:"key"`

	// Size is the byte size of the object. -1 if unknown.
	Size int64 `json:"size"`

	ContentType  string    `json:"content_type,omitempty"`
	ETag         string    `json:"etag,omitempty"`
	LastModified time.Time `json:"last_modified"`
}

// Object is a streaming handle to an object's content.
// The caller MUST call Close() after reading to avoid resource leaks.
type Object interface {
	io.ReadCloser

	// Info returns the metadata for this object.
	Info() *ObjectInfo
}

// ListOptions controls how ListObjects filters results.
type ListOptions struct {
	// Prefix restricts results to keys starting with this string, after
	// the store's configured prefix.
	Prefix string

	// Limit caps the number of results returned. 0 means no cap.
	Limit int
}
