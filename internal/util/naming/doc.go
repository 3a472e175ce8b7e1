// Package naming provides consistent naming functions for AWS resources and
// published output keys.
//
// Resource names follow the pattern {deployment}-{kind}; workers are
// {deployment}-worker-{n} with n starting at 1.
package naming
