package awscloud

import (
	"context"
	"fmt"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/ec2"
	"github.com/aws/aws-sdk-go-v2/service/ec2/types"

	"github.com/imamik/rayform/internal/util/labels"
)

// EnsureSubnet ensures a subnet exists in opts.VPCID with the given CIDR.
// Public address mapping is reconciled; CIDR and VPC mismatches are errors.
func (c *RealClient) EnsureSubnet(ctx context.Context, opts SubnetOpts) (*Subnet, error) {
	return (&EnsureOperation[*Subnet]{
		Name:         opts.Name,
		ResourceType: "subnet",
		Get:          c.GetSubnet,
		Validate: func(s *Subnet) error {
			if s.VPCID != opts.VPCID {
				return fmt.Errorf("subnet %s belongs to vpc %s, want %s", opts.Name, s.VPCID, opts.VPCID)
			}
			if s.CIDR != opts.CIDR {
				return fmt.Errorf("subnet %s exists with CIDR %s, want %s", opts.Name, s.CIDR, opts.CIDR)
			}
			return nil
		},
		Create: func(ctx context.Context) (*Subnet, error) {
			in := &ec2.CreateSubnetInput{
				VpcId:             aws.String(opts.VPCID),
				CidrBlock:         aws.String(opts.CIDR),
				TagSpecifications: labels.Specification(types.ResourceTypeSubnet, withName(opts.Tags, opts.Name)),
			}
			if opts.AvailabilityZone != "" {
				in.AvailabilityZone = aws.String(opts.AvailabilityZone)
			}
			out, err := c.ec2.CreateSubnet(ctx, in)
			if err != nil {
				return nil, err
			}
			s := subnetFromEC2(*out.Subnet)
			return s, c.setMapPublicIP(ctx, s, opts.MapPublicIPOnLaunch)
		},
		Update: func(ctx context.Context, s *Subnet) (*Subnet, error) {
			return s, c.setMapPublicIP(ctx, s, opts.MapPublicIPOnLaunch)
		},
	}).Execute(ctx, c)
}

func (c *RealClient) setMapPublicIP(ctx context.Context, s *Subnet, want bool) error {
	if s.MapPublicIPOnLaunch == want {
		return nil
	}
	_, err := c.ec2.ModifySubnetAttribute(ctx, &ec2.ModifySubnetAttributeInput{
		SubnetId:            aws.String(s.ID),
		MapPublicIpOnLaunch: &types.AttributeBooleanValue{Value: aws.Bool(want)},
	})
	if err != nil {
		return fmt.Errorf("failed to set public IP mapping: %w", err)
	}
	s.MapPublicIPOnLaunch = want
	return nil
}

// GetSubnet returns the subnet with the given name, or nil.
func (c *RealClient) GetSubnet(ctx context.Context, name string) (*Subnet, error) {
	out, err := c.ec2.DescribeSubnets(ctx, &ec2.DescribeSubnetsInput{Filters: nameFilters(name)})
	if err != nil {
		return nil, err
	}
	if len(out.Subnets) == 0 {
		return nil, nil
	}
	return subnetFromEC2(out.Subnets[0]), nil
}

// DeleteSubnet deletes the subnet with the given name.
func (c *RealClient) DeleteSubnet(ctx context.Context, name string) error {
	return (&DeleteOperation[*Subnet]{
		Name:         name,
		ResourceType: "subnet",
		Get:          c.GetSubnet,
		Delete: func(ctx context.Context, s *Subnet) error {
			_, err := c.ec2.DeleteSubnet(ctx, &ec2.DeleteSubnetInput{SubnetId: aws.String(s.ID)})
			return err
		},
	}).Execute(ctx, c)
}

func subnetFromEC2(s types.Subnet) *Subnet {
	tags := labels.FromEC2(s.Tags)
	return &Subnet{
		ID:                  aws.ToString(s.SubnetId),
		Name:                tags[labels.KeyName],
		VPCID:               aws.ToString(s.VpcId),
		CIDR:                aws.ToString(s.CidrBlock),
		AvailabilityZone:    aws.ToString(s.AvailabilityZone),
		MapPublicIPOnLaunch: aws.ToBool(s.MapPublicIpOnLaunch),
		Tags:                tags,
	}
}
