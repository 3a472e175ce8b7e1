package testing

import (
	"context"
	"fmt"
	"sync"

	"github.com/imamik/rayform/internal/platform/awscloud"
	"github.com/imamik/rayform/internal/util/labels"
)

// InfraFixture provides pre-configured mock infrastructure for common test scenarios.
type InfraFixture struct {
	mock *awscloud.MockClient

	mu       sync.Mutex
	calls    []string
	launched map[string]awscloud.InstanceCreateOpts
}

// NewInfraFixture creates a new infrastructure fixture.
func NewInfraFixture() *InfraFixture {
	return &InfraFixture{
		mock:     &awscloud.MockClient{},
		launched: make(map[string]awscloud.InstanceCreateOpts),
	}
}

// Mock returns the underlying MockClient for custom configuration.
func (f *InfraFixture) Mock() *awscloud.MockClient {
	return f.mock
}

// Calls returns "Method:name" for every recorded call, in order.
func (f *InfraFixture) Calls() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.calls...)
}

// Launched returns the options EnsureInstance received for name.
func (f *InfraFixture) Launched(name string) (awscloud.InstanceCreateOpts, bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	opts, ok := f.launched[name]
	return opts, ok
}

func (f *InfraFixture) record(method, name string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, method+":"+name)
}

// SuccessfulProvisioning configures the mock so that every resource is
// created on first use. The coordinator gets headIP, workers 10.0.1.6 and up.
// Returns the same mock for chaining.
func (f *InfraFixture) SuccessfulProvisioning() *awscloud.MockClient {
	return f.SuccessfulProvisioningWithHeadIP("10.0.1.5")
}

// SuccessfulProvisioningWithHeadIP is SuccessfulProvisioning with an explicit
// coordinator address.
func (f *InfraFixture) SuccessfulProvisioningWithHeadIP(headIP string) *awscloud.MockClient {
	m := f.mock
	m.EnsureVPCFunc = func(_ context.Context, opts awscloud.VPCOpts) (*awscloud.VPC, error) {
		f.record("EnsureVPC", opts.Name)
		return &awscloud.VPC{ID: "vpc-1", Name: opts.Name, CIDR: opts.CIDR,
			EnableDNSSupport: opts.EnableDNSSupport, EnableDNSHostnames: opts.EnableDNSHostnames}, nil
	}
	m.EnsureInternetGatewayFunc = func(_ context.Context, name, vpcID string, _ map[string]string) (*awscloud.InternetGateway, error) {
		f.record("EnsureInternetGateway", name)
		return &awscloud.InternetGateway{ID: "igw-1", Name: name, AttachedVPC: vpcID}, nil
	}
	m.EnsureSubnetFunc = func(_ context.Context, opts awscloud.SubnetOpts) (*awscloud.Subnet, error) {
		f.record("EnsureSubnet", opts.Name)
		return &awscloud.Subnet{ID: "subnet-1", Name: opts.Name, VPCID: opts.VPCID, CIDR: opts.CIDR,
			MapPublicIPOnLaunch: opts.MapPublicIPOnLaunch}, nil
	}
	m.EnsureRouteTableFunc = func(_ context.Context, opts awscloud.RouteTableOpts) (*awscloud.RouteTable, error) {
		f.record("EnsureRouteTable", opts.Name)
		return &awscloud.RouteTable{ID: "rtb-1", Name: opts.Name, VPCID: opts.VPCID, Routes: opts.Routes}, nil
	}
	m.EnsureRouteTableAssociationFunc = func(_ context.Context, rtID, subnetID string) (string, error) {
		f.record("EnsureRouteTableAssociation", rtID+"/"+subnetID)
		return "rtbassoc-1", nil
	}
	m.EnsureSecurityGroupFunc = func(_ context.Context, opts awscloud.SecurityGroupOpts) (*awscloud.SecurityGroup, error) {
		f.record("EnsureSecurityGroup", opts.Name)
		return &awscloud.SecurityGroup{ID: "sg-1", Name: opts.Name, VPCID: opts.VPCID,
			Ingress: opts.Ingress, Egress: opts.Egress}, nil
	}
	m.EnsureKeyPairFunc = func(_ context.Context, name, _ string, _ map[string]string) (*awscloud.KeyPair, error) {
		f.record("EnsureKeyPair", name)
		return &awscloud.KeyPair{ID: "key-1", Name: name}, nil
	}
	m.ResolveImageFunc = func(_ context.Context, pattern, _ string) (string, error) {
		f.record("ResolveImage", pattern)
		return "ami-resolved", nil
	}

	var next int
	m.EnsureInstanceFunc = func(_ context.Context, opts awscloud.InstanceCreateOpts) (*awscloud.Instance, error) {
		f.record("EnsureInstance", opts.Name)
		f.mu.Lock()
		f.launched[opts.Name] = opts
		ip := headIP
		if opts.Tags[labels.KeyRole] != labels.RoleHead {
			next++
			ip = fmt.Sprintf("10.0.1.%d", 5+next)
		}
		f.mu.Unlock()
		return &awscloud.Instance{
			ID:           "i-" + opts.Name,
			Name:         opts.Name,
			State:        "running",
			InstanceType: opts.InstanceType,
			ImageID:      opts.ImageID,
			KeyName:      opts.KeyName,
			SubnetID:     opts.SubnetID,
			PrivateIP:    ip,
			PublicIP:     "203.0.113.10",
			Tags:         opts.Tags,
		}, nil
	}
	return m
}

// WithNetworkError configures the mock to fail on VPC creation.
func (f *InfraFixture) WithNetworkError(err error) *awscloud.MockClient {
	f.mock.EnsureVPCFunc = func(_ context.Context, opts awscloud.VPCOpts) (*awscloud.VPC, error) {
		f.record("EnsureVPC", opts.Name)
		return nil, err
	}
	return f.mock
}

// WithInstanceError configures the mock to fail when launching name.
func (f *InfraFixture) WithInstanceError(name string, err error) *awscloud.MockClient {
	f.SuccessfulProvisioning()
	ok := f.mock.EnsureInstanceFunc
	f.mock.EnsureInstanceFunc = func(ctx context.Context, opts awscloud.InstanceCreateOpts) (*awscloud.Instance, error) {
		if opts.Name == name {
			f.record("EnsureInstance", opts.Name)
			return nil, err
		}
		return ok(ctx, opts)
	}
	return f.mock
}
