package blobstore

import (
	"context"
	"os"
)

// ErrNotFound is returned when a blob does not exist.
//
// Implementations should return an error that satisfies
// `errors.Is(err, ErrNotFound)`. The default maps to `os.ErrNotExist`.
var ErrNotFound = os.ErrNotExist

// Store is an abstraction for publishing and reading artifact blobs.
//
// Put must be atomic per blob: a concurrent reader observes either the
// previous content or the new content, never a partial write. Artifact-set
// atomicity on top of that comes from the CURRENT manifest pointer written
// last (see the artifact package).
type Store interface {
	// Put writes a blob, replacing any existing content under name.
	Put(ctx context.Context, name string, data []byte) error

	// Get reads a whole blob.
	Get(ctx context.Context, name string) ([]byte, error)

	// Delete removes a blob. Deleting a missing blob is not an error.
	Delete(ctx context.Context, name string) error

	// List returns all blob names with the given prefix, sorted.
	List(ctx context.Context, prefix string) ([]string, error)
}
