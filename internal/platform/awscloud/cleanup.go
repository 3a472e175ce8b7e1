package awscloud

import (
	"context"
	"errors"
	"fmt"

	"github.com/aws/aws-sdk-go-v2/service/ec2"
)

// CleanupError represents accumulated errors from cleanup operations.
type CleanupError struct {
	Errors []error
}

func (e *CleanupError) Error() string {
	if len(e.Errors) == 1 {
		return e.Errors[0].Error()
	}
	return fmt.Sprintf("cleanup encountered %d errors: %v", len(e.Errors), e.Errors)
}

func (e *CleanupError) Unwrap() error {
	if len(e.Errors) == 1 {
		return e.Errors[0]
	}
	return errors.Join(e.Errors...)
}

// Add records err if it is non-nil.
func (e *CleanupError) Add(err error) {
	if err != nil {
		e.Errors = append(e.Errors, err)
	}
}

// HasErrors reports whether any error was recorded.
func (e *CleanupError) HasErrors() bool {
	return len(e.Errors) > 0
}

// named is anything with a Name tag the cleanup can log and delete by.
type named interface {
	*Instance | *RouteTable | *InternetGateway | *Subnet | *SecurityGroup | *VPC | *KeyPair
}

func nameOf[T named](r T) string {
	switch v := any(r).(type) {
	case *Instance:
		return v.Name
	case *RouteTable:
		return v.Name
	case *InternetGateway:
		return v.Name
	case *Subnet:
		return v.Name
	case *SecurityGroup:
		return v.Name
	case *VPC:
		return v.Name
	case *KeyPair:
		return v.Name
	default:
		return ""
	}
}

// deleteEach lists resources and deletes them one by one.
// Returns an error if listing fails, or a combined error of all deletion failures.
func deleteEach[T named](
	ctx context.Context,
	c *RealClient,
	resourceType string,
	listFn func(context.Context) ([]T, error),
	deleteFn func(context.Context, string) error,
) error {
	resources, err := listFn(ctx)
	if err != nil {
		return fmt.Errorf("failed to list %s: %w", resourceType, err)
	}

	var deleteErrs []error
	for _, r := range resources {
		name := nameOf(r)
		c.logger.Info("deleting", "type", resourceType, "name", name)
		if err := deleteFn(ctx, name); err != nil {
			c.logger.Warn("delete failed", "type", resourceType, "name", name, "error", err)
			deleteErrs = append(deleteErrs, fmt.Errorf("%s %q: %w", resourceType, name, err))
		}
	}
	return errors.Join(deleteErrs...)
}

// CleanupByTag deletes every resource carrying all tags, in reverse
// dependency order: instances, route tables, gateways, subnets, security
// groups, VPCs and finally key pairs. All types are attempted even when
// earlier ones fail; the returned *CleanupError collects every failure.
func (c *RealClient) CleanupByTag(ctx context.Context, tags map[string]string) error {
	c.logger.Info("starting cleanup", "tags", tags)
	cleanupErrs := &CleanupError{}

	if err := c.deleteInstancesByTag(ctx, tags); err != nil {
		cleanupErrs.Add(fmt.Errorf("instances: %w", err))
	}

	steps := []struct {
		name string
		run  func() error
	}{
		{"route tables", func() error {
			return deleteEach(ctx, c, "route table", c.listRouteTables(tags), c.DeleteRouteTable)
		}},
		{"internet gateways", func() error {
			return deleteEach(ctx, c, "internet gateway", c.listGateways(tags), c.DeleteInternetGateway)
		}},
		{"subnets", func() error {
			return deleteEach(ctx, c, "subnet", c.listSubnets(tags), c.DeleteSubnet)
		}},
		{"security groups", func() error {
			return deleteEach(ctx, c, "security group", c.listSecurityGroups(tags), c.DeleteSecurityGroup)
		}},
		{"vpcs", func() error {
			return deleteEach(ctx, c, "vpc", c.listVPCs(tags), c.DeleteVPC)
		}},
		{"key pairs", func() error {
			return deleteEach(ctx, c, "key pair", c.listKeyPairs(tags), c.DeleteKeyPair)
		}},
	}
	for _, step := range steps {
		if err := step.run(); err != nil {
			c.logger.Warn("cleanup step failed", "step", step.name, "error", err)
			cleanupErrs.Add(fmt.Errorf("%s: %w", step.name, err))
		}
	}

	if cleanupErrs.HasErrors() {
		c.logger.Error("cleanup completed with errors", "count", len(cleanupErrs.Errors))
		return cleanupErrs
	}
	c.logger.Info("cleanup complete")
	return nil
}

// deleteInstancesByTag terminates all matching instances in one call and
// waits for them, so the network teardown that follows is not blocked.
func (c *RealClient) deleteInstancesByTag(ctx context.Context, tags map[string]string) error {
	instances, err := c.ListInstances(ctx, tags)
	if err != nil {
		return err
	}
	ids := make([]string, 0, len(instances))
	for _, inst := range instances {
		c.logger.Info("deleting", "type", "instance", "name", inst.Name, "id", inst.ID)
		ids = append(ids, inst.ID)
	}
	return c.terminateInstances(ctx, ids)
}

func (c *RealClient) listRouteTables(tags map[string]string) func(context.Context) ([]*RouteTable, error) {
	return func(ctx context.Context) ([]*RouteTable, error) {
		out, err := c.ec2.DescribeRouteTables(ctx, &ec2.DescribeRouteTablesInput{Filters: tagFilters(tags)})
		if err != nil {
			return nil, err
		}
		var found []*RouteTable
		for _, rt := range out.RouteTables {
			found = append(found, routeTableFromEC2(rt))
		}
		return found, nil
	}
}

func (c *RealClient) listGateways(tags map[string]string) func(context.Context) ([]*InternetGateway, error) {
	return func(ctx context.Context) ([]*InternetGateway, error) {
		out, err := c.ec2.DescribeInternetGateways(ctx, &ec2.DescribeInternetGatewaysInput{Filters: tagFilters(tags)})
		if err != nil {
			return nil, err
		}
		var found []*InternetGateway
		for _, g := range out.InternetGateways {
			found = append(found, gatewayFromEC2(g))
		}
		return found, nil
	}
}

func (c *RealClient) listSubnets(tags map[string]string) func(context.Context) ([]*Subnet, error) {
	return func(ctx context.Context) ([]*Subnet, error) {
		out, err := c.ec2.DescribeSubnets(ctx, &ec2.DescribeSubnetsInput{Filters: tagFilters(tags)})
		if err != nil {
			return nil, err
		}
		var found []*Subnet
		for _, s := range out.Subnets {
			found = append(found, subnetFromEC2(s))
		}
		return found, nil
	}
}

func (c *RealClient) listSecurityGroups(tags map[string]string) func(context.Context) ([]*SecurityGroup, error) {
	return func(ctx context.Context) ([]*SecurityGroup, error) {
		out, err := c.ec2.DescribeSecurityGroups(ctx, &ec2.DescribeSecurityGroupsInput{Filters: tagFilters(tags)})
		if err != nil {
			return nil, err
		}
		var found []*SecurityGroup
		for _, sg := range out.SecurityGroups {
			found = append(found, securityGroupFromEC2(sg))
		}
		return found, nil
	}
}

func (c *RealClient) listVPCs(tags map[string]string) func(context.Context) ([]*VPC, error) {
	return func(ctx context.Context) ([]*VPC, error) {
		out, err := c.ec2.DescribeVpcs(ctx, &ec2.DescribeVpcsInput{Filters: tagFilters(tags)})
		if err != nil {
			return nil, err
		}
		var found []*VPC
		for _, v := range out.Vpcs {
			found = append(found, vpcFromEC2(v))
		}
		return found, nil
	}
}

func (c *RealClient) listKeyPairs(tags map[string]string) func(context.Context) ([]*KeyPair, error) {
	return func(ctx context.Context) ([]*KeyPair, error) {
		out, err := c.ec2.DescribeKeyPairs(ctx, &ec2.DescribeKeyPairsInput{Filters: tagFilters(tags)})
		if err != nil {
			return nil, err
		}
		var found []*KeyPair
		for _, kp := range out.KeyPairs {
			found = append(found, keyPairFromEC2(kp))
		}
		return found, nil
	}
}
