package awscloud

import (
	"context"
	"encoding/base64"
	"testing"

	"github.com/aws/aws-sdk-go-v2/service/ec2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/imamik/rayform/pkg/cloud/fakes"
)

func TestProvisionStack_Topology(t *testing.T) {
	t.Parallel()
	c, fake := newTestClient(t)
	s := provisionStack(context.Background(), t, c)

	assert.Len(t, fake.VPCs, 1)
	assert.Len(t, fake.Gateways, 1)
	assert.Len(t, fake.Subnets, 1)

	assert.Equal(t, s.VPC.ID, s.Gateway.AttachedVPC)
	assert.True(t, fake.VPCAttribute(s.VPC.ID, "enableDnsSupport"))
	assert.True(t, fake.VPCAttribute(s.VPC.ID, "enableDnsHostnames"))
	assert.True(t, s.Subnet.MapPublicIPOnLaunch)

	rt, err := c.GetRouteTable(context.Background(), "test-rt")
	require.NoError(t, err)
	require.NotNil(t, rt)
	assert.Contains(t, rt.Routes, Route{DestinationCIDR: "0.0.0.0/0", GatewayID: s.Gateway.ID})
	for _, r := range rt.Routes {
		assert.NotEqual(t, s.Subnet.ID, r.GatewayID, "default route must not target the subnet")
	}
	require.Len(t, rt.Associations, 1)
	assert.Equal(t, s.Subnet.ID, rt.Associations[0].SubnetID)
	assert.Equal(t, s.AssocID, rt.Associations[0].ID)

	assert.Equal(t, "10.0.1.10", s.Head.PrivateIP)
	assert.NotEmpty(t, s.Head.PublicIP)
	assert.Equal(t, "running", s.Head.State)
}

func TestProvisionStack_SecondApplyIsNoop(t *testing.T) {
	t.Parallel()
	c, fake := newTestClient(t)
	ctx := context.Background()

	first := provisionStack(ctx, t, c)
	before := len(fake.CallsSnapshot())

	second := provisionStack(ctx, t, c)
	after := fake.CallsSnapshot()[before:]

	assert.Empty(t, mutatingCalls(after), "second apply must only read")
	assert.Equal(t, first.VPC.ID, second.VPC.ID)
	assert.Equal(t, first.Subnet.ID, second.Subnet.ID)
	assert.Equal(t, first.AssocID, second.AssocID)
	assert.Equal(t, first.Head.ID, second.Head.ID)
	assert.Equal(t, first.Head.PrivateIP, second.Head.PrivateIP)
}

func TestEnsureVPC_ReconcilesDNSDrift(t *testing.T) {
	t.Parallel()
	c, fake := newTestClient(t)
	ctx := context.Background()
	opts := VPCOpts{Name: "drift-vpc", CIDR: "10.0.0.0/16", EnableDNSSupport: true, EnableDNSHostnames: true}

	vpc, err := c.EnsureVPC(ctx, opts)
	require.NoError(t, err)
	_, err = fake.ModifyVpcAttribute(ctx, modifyHostnames(vpc.ID, false))
	require.NoError(t, err)
	modifies := fake.CallCount("ModifyVpcAttribute")

	got, err := c.EnsureVPC(ctx, opts)
	require.NoError(t, err)
	assert.True(t, got.EnableDNSHostnames)
	assert.Equal(t, modifies+1, fake.CallCount("ModifyVpcAttribute"))
	assert.True(t, fake.VPCAttribute(vpc.ID, "enableDnsHostnames"))
}

func TestEnsureVPC_CIDRMismatch(t *testing.T) {
	t.Parallel()
	c, _ := newTestClient(t)
	ctx := context.Background()

	_, err := c.EnsureVPC(ctx, VPCOpts{Name: "v", CIDR: "10.0.0.0/16"})
	require.NoError(t, err)

	_, err = c.EnsureVPC(ctx, VPCOpts{Name: "v", CIDR: "10.1.0.0/16"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "exists with CIDR 10.0.0.0/16")
}

func TestEnsureSubnet_WrongVPC(t *testing.T) {
	t.Parallel()
	c, _ := newTestClient(t)
	ctx := context.Background()

	a, err := c.EnsureVPC(ctx, VPCOpts{Name: "a", CIDR: "10.0.0.0/16"})
	require.NoError(t, err)
	b, err := c.EnsureVPC(ctx, VPCOpts{Name: "b", CIDR: "10.0.0.0/16"})
	require.NoError(t, err)

	_, err = c.EnsureSubnet(ctx, SubnetOpts{Name: "s", VPCID: a.ID, CIDR: "10.0.1.0/24"})
	require.NoError(t, err)
	_, err = c.EnsureSubnet(ctx, SubnetOpts{Name: "s", VPCID: b.ID, CIDR: "10.0.1.0/24"})
	require.Error(t, err)
}

func TestEnsureRouteTable_ReplacesMisdirectedDefaultRoute(t *testing.T) {
	t.Parallel()
	c, fake := newTestClient(t)
	ctx := context.Background()

	vpc, err := c.EnsureVPC(ctx, VPCOpts{Name: "v", CIDR: "10.0.0.0/16"})
	require.NoError(t, err)
	old, err := c.EnsureInternetGateway(ctx, "old-igw", vpc.ID, nil)
	require.NoError(t, err)

	_, err = c.EnsureRouteTable(ctx, RouteTableOpts{Name: "rt", VPCID: vpc.ID,
		Routes: []Route{{DestinationCIDR: "0.0.0.0/0", GatewayID: old.ID}}})
	require.NoError(t, err)

	// A second gateway, created outside EnsureInternetGateway so it stays detached.
	out, err := fake.CreateInternetGateway(ctx, &ec2.CreateInternetGatewayInput{})
	require.NoError(t, err)
	newID := *out.InternetGateway.InternetGatewayId

	rt, err := c.EnsureRouteTable(ctx, RouteTableOpts{Name: "rt", VPCID: vpc.ID,
		Routes: []Route{{DestinationCIDR: "0.0.0.0/0", GatewayID: newID}}})
	require.NoError(t, err)
	assert.Equal(t, 1, fake.CallCount("ReplaceRoute"))
	assert.Contains(t, rt.Routes, Route{DestinationCIDR: "0.0.0.0/0", GatewayID: newID})
}

func TestEnsureRouteTableAssociation_MovesSubnet(t *testing.T) {
	t.Parallel()
	c, fake := newTestClient(t)
	ctx := context.Background()

	vpc, err := c.EnsureVPC(ctx, VPCOpts{Name: "v", CIDR: "10.0.0.0/16"})
	require.NoError(t, err)
	subnet, err := c.EnsureSubnet(ctx, SubnetOpts{Name: "s", VPCID: vpc.ID, CIDR: "10.0.1.0/24"})
	require.NoError(t, err)
	a, err := c.EnsureRouteTable(ctx, RouteTableOpts{Name: "a", VPCID: vpc.ID})
	require.NoError(t, err)
	b, err := c.EnsureRouteTable(ctx, RouteTableOpts{Name: "b", VPCID: vpc.ID})
	require.NoError(t, err)

	_, err = c.EnsureRouteTableAssociation(ctx, a.ID, subnet.ID)
	require.NoError(t, err)
	_, err = c.EnsureRouteTableAssociation(ctx, b.ID, subnet.ID)
	require.NoError(t, err)

	assert.Equal(t, 1, fake.CallCount("DisassociateRouteTable"))
	gotA, err := c.GetRouteTable(ctx, "a")
	require.NoError(t, err)
	gotB, err := c.GetRouteTable(ctx, "b")
	require.NoError(t, err)
	assert.Empty(t, gotA.Associations)
	require.Len(t, gotB.Associations, 1)
	assert.Equal(t, subnet.ID, gotB.Associations[0].SubnetID)
}

func TestEnsureInstance_EncodesUserData(t *testing.T) {
	t.Parallel()
	c, fake := newTestClient(t)
	s := provisionStack(context.Background(), t, c)

	raw, err := base64.StdEncoding.DecodeString(fake.UserData[s.Head.ID])
	require.NoError(t, err)
	assert.Equal(t, "#!/bin/bash\necho head\n", string(raw))
}

func TestGetInstanceUserData(t *testing.T) {
	t.Parallel()
	c, _ := newTestClient(t)
	ctx := context.Background()
	provisionStack(ctx, t, c)

	got, err := c.GetInstanceUserData(ctx, "test-head")
	require.NoError(t, err)
	assert.Equal(t, "#!/bin/bash\necho head\n", got)

	got, err = c.GetInstanceUserData(ctx, "missing")
	require.NoError(t, err)
	assert.Empty(t, got)
}

func TestEnsureInstance_RunFailureIsFatal(t *testing.T) {
	t.Parallel()
	c, fake := newTestClient(t)
	s := provisionStack(context.Background(), t, c)
	fake.FailOn("RunInstances", fakes.APIError("InvalidParameterValue", "bad type"))
	before := fake.CallCount("RunInstances")

	_, err := c.EnsureInstance(context.Background(), InstanceCreateOpts{
		Name: "other", ImageID: "ami-1", InstanceType: "nope", SubnetID: s.Subnet.ID,
	})
	require.Error(t, err)
	assert.Equal(t, before+1, fake.CallCount("RunInstances"), "invalid parameters must not be retried")
}

func TestListInstances_FiltersByTagAndState(t *testing.T) {
	t.Parallel()
	c, _ := newTestClient(t)
	ctx := context.Background()
	provisionStack(ctx, t, c)

	found, err := c.ListInstances(ctx, testTags())
	require.NoError(t, err)
	require.Len(t, found, 1)
	assert.Equal(t, "test-head", found[0].Name)

	require.NoError(t, c.DeleteInstance(ctx, "test-head"))
	found, err = c.ListInstances(ctx, testTags())
	require.NoError(t, err)
	assert.Empty(t, found)

	got, err := c.GetInstance(ctx, "test-head")
	require.NoError(t, err)
	assert.Nil(t, got)
}

func TestDeleteVPC_RetriesThenFailsWhileSubnetsRemain(t *testing.T) {
	t.Parallel()
	c, fake := newTestClient(t)
	ctx := context.Background()

	vpc, err := c.EnsureVPC(ctx, VPCOpts{Name: "v", CIDR: "10.0.0.0/16"})
	require.NoError(t, err)
	_, err = c.EnsureSubnet(ctx, SubnetOpts{Name: "s", VPCID: vpc.ID, CIDR: "10.0.1.0/24"})
	require.NoError(t, err)

	err = c.DeleteVPC(ctx, "v")
	require.Error(t, err)
	assert.True(t, IsDependencyViolation(err))
	assert.Equal(t, 3, fake.CallCount("DeleteVpc"))
}

func TestDeleteKeyPair_Idempotent(t *testing.T) {
	t.Parallel()
	c, _ := newTestClient(t)
	ctx := context.Background()

	_, err := c.EnsureKeyPair(ctx, "k", "ssh-ed25519 AAAA", nil)
	require.NoError(t, err)
	require.NoError(t, c.DeleteKeyPair(ctx, "k"))
	require.NoError(t, c.DeleteKeyPair(ctx, "k"))

	kp, err := c.GetKeyPair(ctx, "k")
	require.NoError(t, err)
	assert.Nil(t, kp)
}

func TestEnsureKeyPair_RequiresPublicKey(t *testing.T) {
	t.Parallel()
	c, _ := newTestClient(t)
	_, err := c.EnsureKeyPair(context.Background(), "k", "", nil)
	require.Error(t, err)
}
