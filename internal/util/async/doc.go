// Package async provides utilities for concurrent provisioning.
//
// [RunParallel] executes independent operations concurrently and joins
// every failure. [Future] carries a value that is only known after a
// resource exists, such as an instance's private address, and [Then]
// derives dependent values from it without ever exposing the unresolved
// state.
package async
