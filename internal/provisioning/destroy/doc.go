// Package destroy handles deployment teardown and resource cleanup.
//
// Resources are removed by name in reverse dependency order: instances,
// route table, internet gateway, subnet, security group, VPC and the
// generated key pair. A final sweep by deployment tag catches anything the
// current configuration no longer names, such as workers left over from a
// larger worker count. Published outputs are removed last.
package destroy
