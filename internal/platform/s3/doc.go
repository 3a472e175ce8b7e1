// Package s3 publishes deployment outputs to S3 or an S3-compatible store.
//
// A custom endpoint switches the client to path-style addressing so the
// same code serves AWS and self-hosted stores such as MinIO.
package s3
