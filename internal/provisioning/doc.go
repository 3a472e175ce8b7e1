// Package provisioning provides shared types, interfaces, and orchestration for deployment provisioning.
//
// # Subpackages
//
//   - network/: VPC, internet gateway, subnet, route table and security group
//   - compute/: key pair, image, coordinator and workers
//   - outputs/: published addresses
//   - plan/: read-only diff of desired against actual state
//   - destroy/: teardown in reverse dependency order
//
// # Core Types
//
// Context carries configuration, topology, state, infrastructure client, and observer.
// Phase defines a provisioning step with Name() and Provision() methods.
// State accumulates results from each phase (resource ids, node addresses).
package provisioning
