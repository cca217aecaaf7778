// Package minio publishes artifact blobs to MinIO or any S3-compatible
// object store via the minio-go client.
package minio
