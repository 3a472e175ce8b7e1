package awscloud

import (
	"context"
	"fmt"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/ec2"
	"github.com/aws/aws-sdk-go-v2/service/ec2/types"

	"github.com/imamik/rayform/internal/util/labels"
)

// EnsureVPC ensures that a VPC exists with the given CIDR and DNS settings.
// DNS attributes are only modified when they differ from opts.
func (c *RealClient) EnsureVPC(ctx context.Context, opts VPCOpts) (*VPC, error) {
	return (&EnsureOperation[*VPC]{
		Name:         opts.Name,
		ResourceType: "vpc",
		Get:          c.GetVPC,
		Validate: func(v *VPC) error {
			if v.CIDR != opts.CIDR {
				return fmt.Errorf("vpc %s exists with CIDR %s, want %s", opts.Name, v.CIDR, opts.CIDR)
			}
			return nil
		},
		Create: func(ctx context.Context) (*VPC, error) {
			out, err := c.ec2.CreateVpc(ctx, &ec2.CreateVpcInput{
				CidrBlock:         aws.String(opts.CIDR),
				TagSpecifications: labels.Specification(types.ResourceTypeVpc, withName(opts.Tags, opts.Name)),
			})
			if err != nil {
				return nil, err
			}
			vpc := vpcFromEC2(*out.Vpc)
			// Fresh VPCs come up with provider defaults; apply ours explicitly.
			if err := c.setVPCDNS(ctx, vpc.ID, opts.EnableDNSSupport, opts.EnableDNSHostnames, nil); err != nil {
				return nil, err
			}
			vpc.EnableDNSSupport = opts.EnableDNSSupport
			vpc.EnableDNSHostnames = opts.EnableDNSHostnames
			return vpc, nil
		},
		Update: func(ctx context.Context, v *VPC) (*VPC, error) {
			if err := c.setVPCDNS(ctx, v.ID, opts.EnableDNSSupport, opts.EnableDNSHostnames, v); err != nil {
				return nil, err
			}
			v.EnableDNSSupport = opts.EnableDNSSupport
			v.EnableDNSHostnames = opts.EnableDNSHostnames
			return v, nil
		},
	}).Execute(ctx, c)
}

// setVPCDNS writes the DNS attributes. When current is non-nil only the
// attributes that differ are written. EC2 accepts one attribute per call.
func (c *RealClient) setVPCDNS(ctx context.Context, vpcID string, support, hostnames bool, current *VPC) error {
	if current == nil || current.EnableDNSSupport != support {
		if _, err := c.ec2.ModifyVpcAttribute(ctx, &ec2.ModifyVpcAttributeInput{
			VpcId:            aws.String(vpcID),
			EnableDnsSupport: &types.AttributeBooleanValue{Value: aws.Bool(support)},
		}); err != nil {
			return fmt.Errorf("failed to set DNS support: %w", err)
		}
	}
	if current == nil || current.EnableDNSHostnames != hostnames {
		if _, err := c.ec2.ModifyVpcAttribute(ctx, &ec2.ModifyVpcAttributeInput{
			VpcId:              aws.String(vpcID),
			EnableDnsHostnames: &types.AttributeBooleanValue{Value: aws.Bool(hostnames)},
		}); err != nil {
			return fmt.Errorf("failed to set DNS hostnames: %w", err)
		}
	}
	return nil
}

// GetVPC returns the VPC with the given name, or nil if none exists.
func (c *RealClient) GetVPC(ctx context.Context, name string) (*VPC, error) {
	out, err := c.ec2.DescribeVpcs(ctx, &ec2.DescribeVpcsInput{Filters: nameFilters(name)})
	if err != nil {
		return nil, err
	}
	if len(out.Vpcs) == 0 {
		return nil, nil
	}
	vpc := vpcFromEC2(out.Vpcs[0])

	support, err := c.ec2.DescribeVpcAttribute(ctx, &ec2.DescribeVpcAttributeInput{
		VpcId:     aws.String(vpc.ID),
		Attribute: types.VpcAttributeNameEnableDnsSupport,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to read DNS support: %w", err)
	}
	if support.EnableDnsSupport != nil {
		vpc.EnableDNSSupport = aws.ToBool(support.EnableDnsSupport.Value)
	}

	hostnames, err := c.ec2.DescribeVpcAttribute(ctx, &ec2.DescribeVpcAttributeInput{
		VpcId:     aws.String(vpc.ID),
		Attribute: types.VpcAttributeNameEnableDnsHostnames,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to read DNS hostnames: %w", err)
	}
	if hostnames.EnableDnsHostnames != nil {
		vpc.EnableDNSHostnames = aws.ToBool(hostnames.EnableDnsHostnames.Value)
	}
	return vpc, nil
}

// DeleteVPC deletes the VPC with the given name.
// It retries while subnets, gateways or groups are still being released.
func (c *RealClient) DeleteVPC(ctx context.Context, name string) error {
	return (&DeleteOperation[*VPC]{
		Name:         name,
		ResourceType: "vpc",
		Get: func(ctx context.Context, name string) (*VPC, error) {
			out, err := c.ec2.DescribeVpcs(ctx, &ec2.DescribeVpcsInput{Filters: nameFilters(name)})
			if err != nil || len(out.Vpcs) == 0 {
				return nil, err
			}
			return vpcFromEC2(out.Vpcs[0]), nil
		},
		Delete: func(ctx context.Context, v *VPC) error {
			_, err := c.ec2.DeleteVpc(ctx, &ec2.DeleteVpcInput{VpcId: aws.String(v.ID)})
			return err
		},
	}).Execute(ctx, c)
}

func vpcFromEC2(v types.Vpc) *VPC {
	tags := labels.FromEC2(v.Tags)
	return &VPC{
		ID:   aws.ToString(v.VpcId),
		Name: tags[labels.KeyName],
		CIDR: aws.ToString(v.CidrBlock),
		Tags: tags,
	}
}
