// Package retry provides exponential backoff retry logic for transient failures.
//
// [WithExponentialBackoff] retries an operation with configurable max attempts,
// initial delay, and maximum delay on top of github.com/sethvargo/go-retry.
// It is used for EC2 calls that hit eventual consistency or throttling, and
// for waiting on instance addresses.
package retry
