// Package bootstrap renders the first-boot scripts of cluster nodes.
//
// The coordinator script is static for a given set of [Options]. A worker
// script is a pure function of the coordinator's private address, so it can
// only be produced once that address is known.
package bootstrap
