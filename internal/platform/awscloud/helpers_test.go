package awscloud

import (
	"context"
	"strings"
	"testing"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/ec2"
	"github.com/aws/aws-sdk-go-v2/service/ec2/types"
	"github.com/stretchr/testify/require"

	"github.com/imamik/rayform/internal/config"
	"github.com/imamik/rayform/internal/util/labels"
	"github.com/imamik/rayform/pkg/cloud/fakes"
)

// newTestClient returns a RealClient backed by an in-memory EC2.
func newTestClient(t *testing.T) (*RealClient, *fakes.FakeEC2) {
	t.Helper()
	fake := fakes.NewFakeEC2()
	c, err := NewRealClient(context.Background(), "us-east-1",
		WithEC2API(fake),
		WithTimeouts(config.TestTimeouts()))
	require.NoError(t, err)
	return c, fake
}

func testTags() map[string]string {
	return labels.NewLabelBuilder("test").Build()
}

// mutatingCalls filters a call log down to calls that change state.
func mutatingCalls(calls []string) []string {
	var out []string
	for _, c := range calls {
		if !strings.HasPrefix(c, "Describe") {
			out = append(out, c)
		}
	}
	return out
}

// testStack holds everything provisionStack created.
type testStack struct {
	VPC      *VPC
	Gateway  *InternetGateway
	Subnet   *Subnet
	Routes   *RouteTable
	AssocID  string
	Firewall *SecurityGroup
	Key      *KeyPair
	Head     *Instance
}

func webIngress() []Permission {
	return []Permission{
		{Protocol: "tcp", FromPort: 22, ToPort: 22, CIDR: "0.0.0.0/0"},
		{Protocol: "tcp", FromPort: 80, ToPort: 80, CIDR: "0.0.0.0/0"},
		{Protocol: "tcp", FromPort: 443, ToPort: 443, CIDR: "0.0.0.0/0"},
	}
}

func allEgress() []Permission {
	return []Permission{{Protocol: ProtocolAll, CIDR: "0.0.0.0/0"}}
}

// provisionStack runs every ensure call for a one-node deployment.
func provisionStack(ctx context.Context, t *testing.T, c *RealClient) testStack {
	t.Helper()
	tags := testTags()
	var s testStack
	var err error

	s.VPC, err = c.EnsureVPC(ctx, VPCOpts{Name: "test-vpc", CIDR: "10.0.0.0/16", EnableDNSSupport: true, EnableDNSHostnames: true, Tags: tags})
	require.NoError(t, err)

	s.Gateway, err = c.EnsureInternetGateway(ctx, "test-igw", s.VPC.ID, tags)
	require.NoError(t, err)

	s.Subnet, err = c.EnsureSubnet(ctx, SubnetOpts{Name: "test-subnet", VPCID: s.VPC.ID, CIDR: "10.0.1.0/24", MapPublicIPOnLaunch: true, Tags: tags})
	require.NoError(t, err)

	s.Routes, err = c.EnsureRouteTable(ctx, RouteTableOpts{
		Name:   "test-rt",
		VPCID:  s.VPC.ID,
		Routes: []Route{{DestinationCIDR: "0.0.0.0/0", GatewayID: s.Gateway.ID}},
		Tags:   tags,
	})
	require.NoError(t, err)

	s.AssocID, err = c.EnsureRouteTableAssociation(ctx, s.Routes.ID, s.Subnet.ID)
	require.NoError(t, err)

	s.Firewall, err = c.EnsureSecurityGroup(ctx, SecurityGroupOpts{
		Name:    "test-sg",
		VPCID:   s.VPC.ID,
		Ingress: webIngress(),
		Egress:  allEgress(),
		Tags:    tags,
	})
	require.NoError(t, err)

	s.Key, err = c.EnsureKeyPair(ctx, "test-key", "ssh-ed25519 AAAA test", tags)
	require.NoError(t, err)

	s.Head, err = c.EnsureInstance(ctx, InstanceCreateOpts{
		Name:             "test-head",
		ImageID:          "ami-003c463c8207b4dfa",
		InstanceType:     "t2.micro",
		KeyName:          s.Key.Name,
		SubnetID:         s.Subnet.ID,
		SecurityGroupIDs: []string{s.Firewall.ID},
		UserData:         "#!/bin/bash\necho head\n",
		Tags:             tags,
	})
	require.NoError(t, err)
	return s
}

func modifyHostnames(vpcID string, v bool) *ec2.ModifyVpcAttributeInput {
	return &ec2.ModifyVpcAttributeInput{
		VpcId:              aws.String(vpcID),
		EnableDnsHostnames: &types.AttributeBooleanValue{Value: aws.Bool(v)},
	}
}
