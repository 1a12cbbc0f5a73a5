// Package storage archives payment receipts and report exports in object
// storage, behind a backend-agnostic interface.
package storage

import (
	"context"
	"io"
)

// ObjectStorage defines common object operations across backends.
type ObjectStorage interface {
	EnsureBucket(ctx context.Context) error
	Put(ctx context.Context, key string, r io.Reader, size int64, contentType string) error
	Get(ctx context.Context, key string) (io.ReadCloser, error)
	Delete(ctx context.Context, key string) error
	Bucket() string
}

// Archive wraps an ObjectStorage backend with a stable API.
type Archive struct {
	backend ObjectStorage
}

// NewArchive constructs an Archive over the provided backend.
func NewArchive(backend ObjectStorage) *Archive {
	return &Archive{backend: backend}
}

// EnsureBucket ensures the configured bucket exists.
func (a *Archive) EnsureBucket(ctx context.Context) error {
	return a.backend.EnsureBucket(ctx)
}

// Put uploads an object to the configured bucket.
func (a *Archive) Put(ctx context.Context, key string, r io.Reader, size int64, contentType string) error {
	return a.backend.Put(ctx, key, r, size, contentType)
}

// Get opens a reader for an object in the configured bucket.
func (a *Archive) Get(ctx context.Context, key string) (io.ReadCloser, error) {
	return a.backend.Get(ctx, key)
}

// Delete removes an object from the configured bucket.
func (a *Archive) Delete(ctx context.Context, key string) error {
	return a.backend.Delete(ctx, key)
}

// Bucket returns the configured bucket name.
func (a *Archive) Bucket() string {
	return a.backend.Bucket()
}
