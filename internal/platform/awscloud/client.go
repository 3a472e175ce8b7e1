package awscloud

import (
	"context"
)

// VPC is the deployment's virtual network.
type VPC struct {
	ID                 string
	Name               string
	CIDR               string
	EnableDNSSupport   bool
	EnableDNSHostnames bool
	Tags               map[string]string
}

// VPCOpts is the desired state of a VPC.
type VPCOpts struct {
	Name               string
	CIDR               string
	EnableDNSSupport   bool
	EnableDNSHostnames bool
	Tags               map[string]string
}

// InternetGateway gives the VPC a path to the internet.
type InternetGateway struct {
	ID          string
	Name        string
	AttachedVPC string
	Tags        map[string]string
}

// Subnet is an address block inside the VPC.
type Subnet struct {
	ID                  string
	Name                string
	VPCID               string
	CIDR                string
	AvailabilityZone    string
	MapPublicIPOnLaunch bool
	Tags                map[string]string
}

// SubnetOpts is the desired state of a subnet.
type SubnetOpts struct {
	Name                string
	VPCID               string
	CIDR                string
	AvailabilityZone    string
	MapPublicIPOnLaunch bool
	Tags                map[string]string
}

// Route sends DestinationCIDR to GatewayID.
type Route struct {
	DestinationCIDR string
	GatewayID       string
}

// RouteTableAssociation binds a route table to a subnet.
type RouteTableAssociation struct {
	ID       string
	SubnetID string
}

// RouteTable holds the routes applied to associated subnets.
type RouteTable struct {
	ID           string
	Name         string
	VPCID        string
	Routes       []Route
	Associations []RouteTableAssociation
	Tags         map[string]string
}

// RouteTableOpts is the desired state of a route table. Routes are ensured
// present; routes the table already carries (such as the local route) are kept.
type RouteTableOpts struct {
	Name   string
	VPCID  string
	Routes []Route
	Tags   map[string]string
}

// Permission is a single firewall rule for one CIDR. Protocol "-1" means all
// traffic; ports are ignored for it.
type Permission struct {
	Protocol string
	FromPort int32
	ToPort   int32
	CIDR     string
}

// SecurityGroup is the firewall rule set shared by every instance.
type SecurityGroup struct {
	ID      string
	Name    string
	VPCID   string
	Ingress []Permission
	Egress  []Permission
	Tags    map[string]string
}

// SecurityGroupOpts is the desired state of a security group. Rules not in
// Ingress or Egress are revoked.
type SecurityGroupOpts struct {
	Name        string
	Description string
	VPCID       string
	Ingress     []Permission
	Egress      []Permission
	Tags        map[string]string
}

// Instance is a compute node.
type Instance struct {
	ID           string
	Name         string
	State        string
	InstanceType string
	ImageID      string
	KeyName      string
	SubnetID     string
	PrivateIP    string
	PublicIP     string
	Tags         map[string]string
}

// InstanceCreateOpts holds all parameters for launching an instance.
type InstanceCreateOpts struct {
	Name             string
	ImageID          string
	InstanceType     string
	KeyName          string
	SubnetID         string
	SecurityGroupIDs []string
	// UserData is the plain-text bootstrap script. It is base64-encoded on launch.
	UserData string
	Tags     map[string]string
}

// KeyPair is an imported SSH public key.
type KeyPair struct {
	ID          string
	Name        string
	Fingerprint string
	Tags        map[string]string
}

// NetworkManager manages the VPC, its gateway and its subnet.
type NetworkManager interface {
	EnsureVPC(ctx context.Context, opts VPCOpts) (*VPC, error)
	GetVPC(ctx context.Context, name string) (*VPC, error)
	DeleteVPC(ctx context.Context, name string) error

	// EnsureInternetGateway creates the gateway if needed and attaches it to vpcID.
	EnsureInternetGateway(ctx context.Context, name, vpcID string, tags map[string]string) (*InternetGateway, error)
	GetInternetGateway(ctx context.Context, name string) (*InternetGateway, error)
	// DeleteInternetGateway detaches the gateway before deleting it.
	DeleteInternetGateway(ctx context.Context, name string) error

	EnsureSubnet(ctx context.Context, opts SubnetOpts) (*Subnet, error)
	GetSubnet(ctx context.Context, name string) (*Subnet, error)
	DeleteSubnet(ctx context.Context, name string) error
}

// RoutingManager manages route tables and their associations.
type RoutingManager interface {
	EnsureRouteTable(ctx context.Context, opts RouteTableOpts) (*RouteTable, error)
	GetRouteTable(ctx context.Context, name string) (*RouteTable, error)
	// EnsureRouteTableAssociation binds subnetID to routeTableID, moving it off
	// any other table, and returns the association id.
	EnsureRouteTableAssociation(ctx context.Context, routeTableID, subnetID string) (string, error)
	// DeleteRouteTable removes all associations before deleting the table.
	DeleteRouteTable(ctx context.Context, name string) error
}

// FirewallManager manages security groups.
type FirewallManager interface {
	EnsureSecurityGroup(ctx context.Context, opts SecurityGroupOpts) (*SecurityGroup, error)
	GetSecurityGroup(ctx context.Context, name string) (*SecurityGroup, error)
	DeleteSecurityGroup(ctx context.Context, name string) error
}

// InstanceProvisioner manages compute instances.
type InstanceProvisioner interface {
	// EnsureInstance returns the live instance named opts.Name, launching it
	// and waiting for it to run if it does not exist.
	EnsureInstance(ctx context.Context, opts InstanceCreateOpts) (*Instance, error)
	// GetInstance returns the non-terminated instance with the given name, or nil.
	GetInstance(ctx context.Context, name string) (*Instance, error)
	// GetInstanceUserData returns the decoded user data of the named live
	// instance, or "" when the instance does not exist.
	GetInstanceUserData(ctx context.Context, name string) (string, error)
	// ListInstances returns non-terminated instances carrying all tags.
	ListInstances(ctx context.Context, tags map[string]string) ([]*Instance, error)
	// DeleteInstance terminates the instance and waits for termination.
	DeleteInstance(ctx context.Context, name string) error
}

// KeyPairManager manages imported key pairs.
type KeyPairManager interface {
	EnsureKeyPair(ctx context.Context, name, publicKey string, tags map[string]string) (*KeyPair, error)
	GetKeyPair(ctx context.Context, name string) (*KeyPair, error)
	DeleteKeyPair(ctx context.Context, name string) error
}

// ImageResolver finds machine images.
type ImageResolver interface {
	// ResolveImage returns the newest available AMI whose name matches pattern.
	ResolveImage(ctx context.Context, pattern, owner string) (string, error)
}

// InfrastructureManager combines all infrastructure interfaces.
type InfrastructureManager interface {
	NetworkManager
	RoutingManager
	FirewallManager
	InstanceProvisioner
	KeyPairManager
	ImageResolver

	// CleanupByTag deletes every resource carrying all tags, in reverse
	// dependency order.
	CleanupByTag(ctx context.Context, tags map[string]string) error
}
