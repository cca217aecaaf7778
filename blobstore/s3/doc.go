// Package s3 publishes artifact blobs to Amazon S3, with an optional
// DynamoDB-backed commit store that makes the CURRENT pointer switch a
// conditional write instead of a plain object overwrite.
package s3
