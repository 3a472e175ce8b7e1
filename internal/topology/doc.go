// Package topology declares the desired state of a deployment.
//
// [Build] is a pure function of the configuration: it performs no I/O and
// returns one network, gateway, subnet, route table, association and rule
// set, one coordinator and the configured number of workers. Provisioning
// phases read the names, CIDRs and tags they need from the result.
package topology
