package awscloud

import (
	"context"
)

var _ InfrastructureManager = (*MockClient)(nil)

// MockClient is a function-field implementation of InfrastructureManager.
// Unset functions return a plausible default so tests only stub what they
// care about.
type MockClient struct {
	EnsureVPCFunc             func(ctx context.Context, opts VPCOpts) (*VPC, error)
	GetVPCFunc                func(ctx context.Context, name string) (*VPC, error)
	DeleteVPCFunc             func(ctx context.Context, name string) error
	EnsureInternetGatewayFunc func(ctx context.Context, name, vpcID string, tags map[string]string) (*InternetGateway, error)
	GetInternetGatewayFunc    func(ctx context.Context, name string) (*InternetGateway, error)
	DeleteInternetGatewayFunc func(ctx context.Context, name string) error
	EnsureSubnetFunc          func(ctx context.Context, opts SubnetOpts) (*Subnet, error)
	GetSubnetFunc             func(ctx context.Context, name string) (*Subnet, error)
	DeleteSubnetFunc          func(ctx context.Context, name string) error

	EnsureRouteTableFunc            func(ctx context.Context, opts RouteTableOpts) (*RouteTable, error)
	GetRouteTableFunc               func(ctx context.Context, name string) (*RouteTable, error)
	EnsureRouteTableAssociationFunc func(ctx context.Context, routeTableID, subnetID string) (string, error)
	DeleteRouteTableFunc            func(ctx context.Context, name string) error

	EnsureSecurityGroupFunc func(ctx context.Context, opts SecurityGroupOpts) (*SecurityGroup, error)
	GetSecurityGroupFunc    func(ctx context.Context, name string) (*SecurityGroup, error)
	DeleteSecurityGroupFunc func(ctx context.Context, name string) error

	EnsureInstanceFunc func(ctx context.Context, opts InstanceCreateOpts) (*Instance, error)
	GetInstanceFunc    func(ctx context.Context, name string) (*Instance, error)
	ListInstancesFunc  func(ctx context.Context, tags map[string]string) ([]*Instance, error)
	DeleteInstanceFunc func(ctx context.Context, name string) error

	GetInstanceUserDataFunc func(ctx context.Context, name string) (string, error)

	EnsureKeyPairFunc func(ctx context.Context, name, publicKey string, tags map[string]string) (*KeyPair, error)
	GetKeyPairFunc    func(ctx context.Context, name string) (*KeyPair, error)
	DeleteKeyPairFunc func(ctx context.Context, name string) error

	ResolveImageFunc func(ctx context.Context, pattern, owner string) (string, error)
	CleanupByTagFunc func(ctx context.Context, tags map[string]string) error
}

func (m *MockClient) EnsureVPC(ctx context.Context, opts VPCOpts) (*VPC, error) {
	if m.EnsureVPCFunc != nil {
		return m.EnsureVPCFunc(ctx, opts)
	}
	return &VPC{ID: "vpc-mock", Name: opts.Name, CIDR: opts.CIDR,
		EnableDNSSupport: opts.EnableDNSSupport, EnableDNSHostnames: opts.EnableDNSHostnames, Tags: opts.Tags}, nil
}

func (m *MockClient) GetVPC(ctx context.Context, name string) (*VPC, error) {
	if m.GetVPCFunc != nil {
		return m.GetVPCFunc(ctx, name)
	}
	return nil, nil
}

func (m *MockClient) DeleteVPC(ctx context.Context, name string) error {
	if m.DeleteVPCFunc != nil {
		return m.DeleteVPCFunc(ctx, name)
	}
	return nil
}

func (m *MockClient) EnsureInternetGateway(ctx context.Context, name, vpcID string, tags map[string]string) (*InternetGateway, error) {
	if m.EnsureInternetGatewayFunc != nil {
		return m.EnsureInternetGatewayFunc(ctx, name, vpcID, tags)
	}
	return &InternetGateway{ID: "igw-mock", Name: name, AttachedVPC: vpcID, Tags: tags}, nil
}

func (m *MockClient) GetInternetGateway(ctx context.Context, name string) (*InternetGateway, error) {
	if m.GetInternetGatewayFunc != nil {
		return m.GetInternetGatewayFunc(ctx, name)
	}
	return nil, nil
}

func (m *MockClient) DeleteInternetGateway(ctx context.Context, name string) error {
	if m.DeleteInternetGatewayFunc != nil {
		return m.DeleteInternetGatewayFunc(ctx, name)
	}
	return nil
}

func (m *MockClient) EnsureSubnet(ctx context.Context, opts SubnetOpts) (*Subnet, error) {
	if m.EnsureSubnetFunc != nil {
		return m.EnsureSubnetFunc(ctx, opts)
	}
	return &Subnet{ID: "subnet-mock", Name: opts.Name, VPCID: opts.VPCID, CIDR: opts.CIDR,
		AvailabilityZone: opts.AvailabilityZone, MapPublicIPOnLaunch: opts.MapPublicIPOnLaunch, Tags: opts.Tags}, nil
}

func (m *MockClient) GetSubnet(ctx context.Context, name string) (*Subnet, error) {
	if m.GetSubnetFunc != nil {
		return m.GetSubnetFunc(ctx, name)
	}
	return nil, nil
}

func (m *MockClient) DeleteSubnet(ctx context.Context, name string) error {
	if m.DeleteSubnetFunc != nil {
		return m.DeleteSubnetFunc(ctx, name)
	}
	return nil
}

func (m *MockClient) EnsureRouteTable(ctx context.Context, opts RouteTableOpts) (*RouteTable, error) {
	if m.EnsureRouteTableFunc != nil {
		return m.EnsureRouteTableFunc(ctx, opts)
	}
	return &RouteTable{ID: "rtb-mock", Name: opts.Name, VPCID: opts.VPCID, Routes: opts.Routes, Tags: opts.Tags}, nil
}

func (m *MockClient) GetRouteTable(ctx context.Context, name string) (*RouteTable, error) {
	if m.GetRouteTableFunc != nil {
		return m.GetRouteTableFunc(ctx, name)
	}
	return nil, nil
}

func (m *MockClient) EnsureRouteTableAssociation(ctx context.Context, routeTableID, subnetID string) (string, error) {
	if m.EnsureRouteTableAssociationFunc != nil {
		return m.EnsureRouteTableAssociationFunc(ctx, routeTableID, subnetID)
	}
	return "rtbassoc-mock", nil
}

func (m *MockClient) DeleteRouteTable(ctx context.Context, name string) error {
	if m.DeleteRouteTableFunc != nil {
		return m.DeleteRouteTableFunc(ctx, name)
	}
	return nil
}

func (m *MockClient) EnsureSecurityGroup(ctx context.Context, opts SecurityGroupOpts) (*SecurityGroup, error) {
	if m.EnsureSecurityGroupFunc != nil {
		return m.EnsureSecurityGroupFunc(ctx, opts)
	}
	return &SecurityGroup{ID: "sg-mock", Name: opts.Name, VPCID: opts.VPCID,
		Ingress: opts.Ingress, Egress: opts.Egress, Tags: opts.Tags}, nil
}

func (m *MockClient) GetSecurityGroup(ctx context.Context, name string) (*SecurityGroup, error) {
	if m.GetSecurityGroupFunc != nil {
		return m.GetSecurityGroupFunc(ctx, name)
	}
	return nil, nil
}

func (m *MockClient) DeleteSecurityGroup(ctx context.Context, name string) error {
	if m.DeleteSecurityGroupFunc != nil {
		return m.DeleteSecurityGroupFunc(ctx, name)
	}
	return nil
}

func (m *MockClient) EnsureInstance(ctx context.Context, opts InstanceCreateOpts) (*Instance, error) {
	if m.EnsureInstanceFunc != nil {
		return m.EnsureInstanceFunc(ctx, opts)
	}
	return &Instance{ID: "i-mock", Name: opts.Name, State: "running", InstanceType: opts.InstanceType,
		ImageID: opts.ImageID, KeyName: opts.KeyName, SubnetID: opts.SubnetID,
		PrivateIP: "10.0.1.5", PublicIP: "203.0.113.5", Tags: opts.Tags}, nil
}

func (m *MockClient) GetInstance(ctx context.Context, name string) (*Instance, error) {
	if m.GetInstanceFunc != nil {
		return m.GetInstanceFunc(ctx, name)
	}
	return nil, nil
}

func (m *MockClient) GetInstanceUserData(ctx context.Context, name string) (string, error) {
	if m.GetInstanceUserDataFunc != nil {
		return m.GetInstanceUserDataFunc(ctx, name)
	}
	return "", nil
}

func (m *MockClient) ListInstances(ctx context.Context, tags map[string]string) ([]*Instance, error) {
	if m.ListInstancesFunc != nil {
		return m.ListInstancesFunc(ctx, tags)
	}
	return nil, nil
}

func (m *MockClient) DeleteInstance(ctx context.Context, name string) error {
	if m.DeleteInstanceFunc != nil {
		return m.DeleteInstanceFunc(ctx, name)
	}
	return nil
}

func (m *MockClient) EnsureKeyPair(ctx context.Context, name, publicKey string, tags map[string]string) (*KeyPair, error) {
	if m.EnsureKeyPairFunc != nil {
		return m.EnsureKeyPairFunc(ctx, name, publicKey, tags)
	}
	return &KeyPair{ID: "key-mock", Name: name, Tags: tags}, nil
}

func (m *MockClient) GetKeyPair(ctx context.Context, name string) (*KeyPair, error) {
	if m.GetKeyPairFunc != nil {
		return m.GetKeyPairFunc(ctx, name)
	}
	return nil, nil
}

func (m *MockClient) DeleteKeyPair(ctx context.Context, name string) error {
	if m.DeleteKeyPairFunc != nil {
		return m.DeleteKeyPairFunc(ctx, name)
	}
	return nil
}

func (m *MockClient) ResolveImage(ctx context.Context, pattern, owner string) (string, error) {
	if m.ResolveImageFunc != nil {
		return m.ResolveImageFunc(ctx, pattern, owner)
	}
	return "ami-mock", nil
}

func (m *MockClient) CleanupByTag(ctx context.Context, tags map[string]string) error {
	if m.CleanupByTagFunc != nil {
		return m.CleanupByTagFunc(ctx, tags)
	}
	return nil
}
