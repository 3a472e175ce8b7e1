// Package network provisions the VPC, internet gateway, subnet, route table,
// subnet association and security group of a deployment.
package network
