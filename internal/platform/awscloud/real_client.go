package awscloud

import (
	"context"
	"fmt"

	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/ec2"
	"github.com/hashicorp/go-hclog"

	"github.com/imamik/rayform/internal/config"
	"github.com/imamik/rayform/pkg/cloud"
)

var _ InfrastructureManager = (*RealClient)(nil)

// RealClient implements InfrastructureManager on top of the EC2 API.
type RealClient struct {
	ec2      cloud.EC2API
	region   string
	timeouts *config.Timeouts
	logger   hclog.Logger
}

// ClientOption configures a RealClient.
type ClientOption func(*RealClient)

// WithTimeouts sets custom timeouts for the client.
func WithTimeouts(t *config.Timeouts) ClientOption {
	return func(c *RealClient) {
		c.timeouts = t
	}
}

// WithLogger sets the logger used for cleanup progress.
func WithLogger(l hclog.Logger) ClientOption {
	return func(c *RealClient) {
		c.logger = l
	}
}

// WithEC2API sets a custom EC2 API implementation (useful for testing).
func WithEC2API(api cloud.EC2API) ClientOption {
	return func(c *RealClient) {
		c.ec2 = api
	}
}

// NewRealClient creates a RealClient for region. Credentials come from the
// default AWS chain (environment, shared config, instance role) unless an
// API is injected with WithEC2API.
func NewRealClient(ctx context.Context, region string, opts ...ClientOption) (*RealClient, error) {
	c := &RealClient{
		region:   region,
		timeouts: config.LoadTimeouts(),
		logger:   hclog.NewNullLogger(),
	}
	for _, opt := range opts {
		opt(c)
	}
	if c.ec2 != nil {
		return c, nil
	}

	cfg, err := awsconfig.LoadDefaultConfig(ctx, awsconfig.WithRegion(region))
	if err != nil {
		return nil, fmt.Errorf("failed to load AWS config: %w", err)
	}
	c.ec2 = ec2.NewFromConfig(cfg)
	return c, nil
}

// Region returns the region the client was created for.
func (c *RealClient) Region() string {
	return c.region
}

// EC2 returns the underlying API for calls not exposed through
// InfrastructureManager.
func (c *RealClient) EC2() cloud.EC2API {
	return c.ec2
}
