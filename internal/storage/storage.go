// Package storage defines the interface for object storage operations.
// Swap implementations by changing the concrete type injected at startup —
// the MinIO implementation works with any S3-compatible provider (MinIO, R2, AWS S3).
package storage

import (
	"context"
	"errors"
	"io"
	"time"
)

// ErrNotFound is returned by Get when no object exists under the key.
var ErrNotFound = errors.New("object not found")

// Object describes a stored object as reported by a listing.
type Object struct {
	Key      string
	Size     int64
	Uploaded time.Time
	Metadata map[string]string
}

// ObjectBody is a stored object opened for reading.
// The caller is responsible for closing Body.
type ObjectBody struct {
	Body        io.ReadCloser
	ContentType string
	ETag        string
}

// PutOptions carries the attributes attached to an object at write time.
// Metadata is immutable once written.
type PutOptions struct {
	ContentType  string
	CacheControl string
	Metadata     map[string]string
}

// Storage is the interface for writing, reading and listing objects.
type Storage interface {
	// Put writes data to the store under the given key.
	Put(ctx context.Context, key string, data []byte, opts PutOptions) error
	// Get opens the object identified by key, or returns ErrNotFound.
	Get(ctx context.Context, key string) (*ObjectBody, error)
	// List returns up to limit objects whose key starts with prefix,
	// in the store's native order.
	List(ctx context.Context, prefix string, limit int) ([]Object, error)
	// SignedURL returns a time-limited URL granting read access to key.
	SignedURL(ctx context.Context, key string, expiry time.Duration) (string, error)
}
