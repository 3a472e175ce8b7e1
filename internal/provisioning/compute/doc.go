// Package compute provisions the key pair, the coordinator and the workers.
//
// The coordinator is launched first. Its private address is a future that
// is mapped once into the worker bootstrap script; every worker waits on
// that script and then launches in parallel with the others.
package compute
