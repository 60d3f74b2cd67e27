// Package blobstore abstracts where persisted trees and indexes live:
// the local filesystem, process memory (tests), or S3-compatible object
// storage via the minio subpackage.
package blobstore

import (
	"context"
	"io"
	"os"
)

// ErrNotFound is returned when a blob does not exist.
//
// Implementations should return an error that satisfies
// `errors.Is(err, ErrNotFound)`. The default maps to `os.ErrNotExist`.
var ErrNotFound = os.ErrNotExist

// Store is an abstraction for reading and writing named immutable blobs.
type Store interface {
	// Put writes a blob under name, replacing any previous content.
	// Writes are atomic: readers never observe a partial blob.
	Put(ctx context.Context, name string, data []byte) error

	// Get opens a blob for reading.
	Get(ctx context.Context, name string) (io.ReadCloser, error)

	// Delete removes a blob. Deleting a missing blob is not an error.
	Delete(ctx context.Context, name string) error
}
