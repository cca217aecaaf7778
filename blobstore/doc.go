// Package blobstore abstracts where artifact sets are published: local
// disk, in-memory (tests), MinIO, or S3 (optionally with a DynamoDB commit
// store for an atomic CURRENT pointer).
//
// Stores guarantee per-blob atomicity; set-level atomicity is layered on
// top by the artifact package, which publishes every file of a run before
// committing the CURRENT manifest.
package blobstore
