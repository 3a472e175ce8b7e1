// Package outputs publishes the addresses of a provisioned Ray cluster.
//
// After compute completes, the outputs phase collects the coordinator and
// worker addresses into a Document, writes it to the configured outputs file
// and, when an S3 bucket is configured, uploads the same document so other
// tooling can discover the cluster without local state.
package outputs
