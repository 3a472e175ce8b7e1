package awscloud

import (
	"context"
	"fmt"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/ec2"
	"github.com/aws/aws-sdk-go-v2/service/ec2/types"
)

// ResolveImage returns the id of the newest available image owned by owner
// whose name matches pattern. Pattern accepts EC2 wildcards.
func (c *RealClient) ResolveImage(ctx context.Context, pattern, owner string) (string, error) {
	in := &ec2.DescribeImagesInput{
		Filters: []types.Filter{
			{Name: aws.String("name"), Values: []string{pattern}},
			{Name: aws.String("state"), Values: []string{string(types.ImageStateAvailable)}},
		},
	}
	if owner != "" {
		in.Owners = []string{owner}
	}
	out, err := c.ec2.DescribeImages(ctx, in)
	if err != nil {
		return "", fmt.Errorf("failed to describe images: %w", err)
	}

	var newest *types.Image
	for i := range out.Images {
		img := &out.Images[i]
		// CreationDate is RFC 3339, so string order is time order.
		if newest == nil || aws.ToString(img.CreationDate) > aws.ToString(newest.CreationDate) {
			newest = img
		}
	}
	if newest == nil {
		return "", fmt.Errorf("no image matches %q (owner %q)", pattern, owner)
	}
	return aws.ToString(newest.ImageId), nil
}
