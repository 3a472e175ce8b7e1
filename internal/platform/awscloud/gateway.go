package awscloud

import (
	"context"
	"fmt"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/ec2"
	"github.com/aws/aws-sdk-go-v2/service/ec2/types"

	"github.com/imamik/rayform/internal/util/labels"
)

// EnsureInternetGateway ensures a gateway named name exists and is attached
// to vpcID. A gateway attached to a different VPC is an error.
func (c *RealClient) EnsureInternetGateway(ctx context.Context, name, vpcID string, tags map[string]string) (*InternetGateway, error) {
	return (&EnsureOperation[*InternetGateway]{
		Name:         name,
		ResourceType: "internet gateway",
		Get:          c.GetInternetGateway,
		Validate: func(g *InternetGateway) error {
			if g.AttachedVPC != "" && g.AttachedVPC != vpcID {
				return fmt.Errorf("internet gateway %s is attached to %s, want %s", name, g.AttachedVPC, vpcID)
			}
			return nil
		},
		Create: func(ctx context.Context) (*InternetGateway, error) {
			out, err := c.ec2.CreateInternetGateway(ctx, &ec2.CreateInternetGatewayInput{
				TagSpecifications: labels.Specification(types.ResourceTypeInternetGateway, withName(tags, name)),
			})
			if err != nil {
				return nil, err
			}
			g := gatewayFromEC2(*out.InternetGateway)
			return g, c.attachGateway(ctx, g, vpcID)
		},
		Update: func(ctx context.Context, g *InternetGateway) (*InternetGateway, error) {
			if g.AttachedVPC == vpcID {
				return g, nil
			}
			return g, c.attachGateway(ctx, g, vpcID)
		},
	}).Execute(ctx, c)
}

func (c *RealClient) attachGateway(ctx context.Context, g *InternetGateway, vpcID string) error {
	_, err := c.ec2.AttachInternetGateway(ctx, &ec2.AttachInternetGatewayInput{
		InternetGatewayId: aws.String(g.ID),
		VpcId:             aws.String(vpcID),
	})
	if err != nil {
		return fmt.Errorf("failed to attach internet gateway: %w", err)
	}
	g.AttachedVPC = vpcID
	return nil
}

// GetInternetGateway returns the gateway with the given name, or nil.
func (c *RealClient) GetInternetGateway(ctx context.Context, name string) (*InternetGateway, error) {
	out, err := c.ec2.DescribeInternetGateways(ctx, &ec2.DescribeInternetGatewaysInput{Filters: nameFilters(name)})
	if err != nil {
		return nil, err
	}
	if len(out.InternetGateways) == 0 {
		return nil, nil
	}
	return gatewayFromEC2(out.InternetGateways[0]), nil
}

// DeleteInternetGateway detaches and deletes the gateway. Detaching fails
// while instances in the VPC still hold public addresses, so it is retried.
func (c *RealClient) DeleteInternetGateway(ctx context.Context, name string) error {
	return (&DeleteOperation[*InternetGateway]{
		Name:         name,
		ResourceType: "internet gateway",
		Get:          c.GetInternetGateway,
		Delete: func(ctx context.Context, g *InternetGateway) error {
			if g.AttachedVPC != "" {
				_, err := c.ec2.DetachInternetGateway(ctx, &ec2.DetachInternetGatewayInput{
					InternetGatewayId: aws.String(g.ID),
					VpcId:             aws.String(g.AttachedVPC),
				})
				if err != nil && !IsNotFound(err) {
					return err
				}
			}
			_, err := c.ec2.DeleteInternetGateway(ctx, &ec2.DeleteInternetGatewayInput{
				InternetGatewayId: aws.String(g.ID),
			})
			return err
		},
	}).Execute(ctx, c)
}

func gatewayFromEC2(g types.InternetGateway) *InternetGateway {
	tags := labels.FromEC2(g.Tags)
	out := &InternetGateway{
		ID:   aws.ToString(g.InternetGatewayId),
		Name: tags[labels.KeyName],
		Tags: tags,
	}
	for _, a := range g.Attachments {
		if a.VpcId != nil {
			out.AttachedVPC = *a.VpcId
			break
		}
	}
	return out
}
