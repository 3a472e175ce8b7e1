package awscloud

import (
	"context"
	"fmt"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/ec2"
	"github.com/aws/aws-sdk-go-v2/service/ec2/types"

	"github.com/imamik/rayform/internal/util/labels"
)

// EnsureRouteTable ensures a route table exists in opts.VPCID carrying every
// route in opts.Routes. A route whose destination exists with another target
// is replaced.
func (c *RealClient) EnsureRouteTable(ctx context.Context, opts RouteTableOpts) (*RouteTable, error) {
	return (&EnsureOperation[*RouteTable]{
		Name:         opts.Name,
		ResourceType: "route table",
		Get:          c.GetRouteTable,
		Validate: func(rt *RouteTable) error {
			if rt.VPCID != opts.VPCID {
				return fmt.Errorf("route table %s belongs to vpc %s, want %s", opts.Name, rt.VPCID, opts.VPCID)
			}
			return nil
		},
		Create: func(ctx context.Context) (*RouteTable, error) {
			out, err := c.ec2.CreateRouteTable(ctx, &ec2.CreateRouteTableInput{
				VpcId:             aws.String(opts.VPCID),
				TagSpecifications: labels.Specification(types.ResourceTypeRouteTable, withName(opts.Tags, opts.Name)),
			})
			if err != nil {
				return nil, err
			}
			rt := routeTableFromEC2(*out.RouteTable)
			return rt, c.reconcileRoutes(ctx, rt, opts.Routes)
		},
		Update: func(ctx context.Context, rt *RouteTable) (*RouteTable, error) {
			return rt, c.reconcileRoutes(ctx, rt, opts.Routes)
		},
	}).Execute(ctx, c)
}

// reconcileRoutes creates missing routes and retargets mismatched ones.
// rt.Routes is updated to reflect the calls made.
func (c *RealClient) reconcileRoutes(ctx context.Context, rt *RouteTable, want []Route) error {
	for _, r := range want {
		idx := -1
		for i, have := range rt.Routes {
			if have.DestinationCIDR == r.DestinationCIDR {
				idx = i
				break
			}
		}

		switch {
		case idx >= 0 && rt.Routes[idx].GatewayID == r.GatewayID:
			continue
		case idx >= 0:
			_, err := c.ec2.ReplaceRoute(ctx, &ec2.ReplaceRouteInput{
				RouteTableId:         aws.String(rt.ID),
				DestinationCidrBlock: aws.String(r.DestinationCIDR),
				GatewayId:            aws.String(r.GatewayID),
			})
			if err != nil {
				return fmt.Errorf("failed to replace route %s: %w", r.DestinationCIDR, err)
			}
			rt.Routes[idx].GatewayID = r.GatewayID
		default:
			_, err := c.ec2.CreateRoute(ctx, &ec2.CreateRouteInput{
				RouteTableId:         aws.String(rt.ID),
				DestinationCidrBlock: aws.String(r.DestinationCIDR),
				GatewayId:            aws.String(r.GatewayID),
			})
			if err != nil {
				return fmt.Errorf("failed to create route %s: %w", r.DestinationCIDR, err)
			}
			rt.Routes = append(rt.Routes, r)
		}
	}
	return nil
}

// GetRouteTable returns the route table with the given name, or nil.
func (c *RealClient) GetRouteTable(ctx context.Context, name string) (*RouteTable, error) {
	out, err := c.ec2.DescribeRouteTables(ctx, &ec2.DescribeRouteTablesInput{Filters: nameFilters(name)})
	if err != nil {
		return nil, err
	}
	if len(out.RouteTables) == 0 {
		return nil, nil
	}
	return routeTableFromEC2(out.RouteTables[0]), nil
}

// EnsureRouteTableAssociation binds subnetID to routeTableID. A subnet
// associated with any other table is moved.
func (c *RealClient) EnsureRouteTableAssociation(ctx context.Context, routeTableID, subnetID string) (string, error) {
	out, err := c.ec2.DescribeRouteTables(ctx, &ec2.DescribeRouteTablesInput{
		Filters: []types.Filter{{Name: aws.String("association.subnet-id"), Values: []string{subnetID}}},
	})
	if err != nil {
		return "", fmt.Errorf("failed to look up subnet association: %w", err)
	}

	for _, rt := range out.RouteTables {
		for _, a := range rt.Associations {
			if aws.ToString(a.SubnetId) != subnetID {
				continue
			}
			if aws.ToString(rt.RouteTableId) == routeTableID {
				return aws.ToString(a.RouteTableAssociationId), nil
			}
			if _, err := c.ec2.DisassociateRouteTable(ctx, &ec2.DisassociateRouteTableInput{
				AssociationId: a.RouteTableAssociationId,
			}); err != nil && !IsNotFound(err) {
				return "", fmt.Errorf("failed to move subnet off route table %s: %w", aws.ToString(rt.RouteTableId), err)
			}
		}
	}

	assoc, err := c.ec2.AssociateRouteTable(ctx, &ec2.AssociateRouteTableInput{
		RouteTableId: aws.String(routeTableID),
		SubnetId:     aws.String(subnetID),
	})
	if err != nil {
		return "", fmt.Errorf("failed to associate route table: %w", err)
	}
	return aws.ToString(assoc.AssociationId), nil
}

// DeleteRouteTable removes the table's subnet associations and deletes it.
func (c *RealClient) DeleteRouteTable(ctx context.Context, name string) error {
	return (&DeleteOperation[*RouteTable]{
		Name:         name,
		ResourceType: "route table",
		Get:          c.GetRouteTable,
		Delete: func(ctx context.Context, rt *RouteTable) error {
			for _, a := range rt.Associations {
				_, err := c.ec2.DisassociateRouteTable(ctx, &ec2.DisassociateRouteTableInput{
					AssociationId: aws.String(a.ID),
				})
				if err != nil && !IsNotFound(err) {
					return err
				}
			}
			_, err := c.ec2.DeleteRouteTable(ctx, &ec2.DeleteRouteTableInput{RouteTableId: aws.String(rt.ID)})
			return err
		},
	}).Execute(ctx, c)
}

// routeTableFromEC2 converts a route table. Main associations are dropped
// since they cannot be removed.
func routeTableFromEC2(rt types.RouteTable) *RouteTable {
	tags := labels.FromEC2(rt.Tags)
	out := &RouteTable{
		ID:    aws.ToString(rt.RouteTableId),
		Name:  tags[labels.KeyName],
		VPCID: aws.ToString(rt.VpcId),
		Tags:  tags,
	}
	for _, r := range rt.Routes {
		out.Routes = append(out.Routes, Route{
			DestinationCIDR: aws.ToString(r.DestinationCidrBlock),
			GatewayID:       aws.ToString(r.GatewayId),
		})
	}
	for _, a := range rt.Associations {
		if aws.ToBool(a.Main) {
			continue
		}
		out.Associations = append(out.Associations, RouteTableAssociation{
			ID:       aws.ToString(a.RouteTableAssociationId),
			SubnetID: aws.ToString(a.SubnetId),
		})
	}
	return out
}
