package network

import (
	"context"
	"errors"
	"testing"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/ec2/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/imamik/rayform/internal/platform/awscloud"
	"github.com/imamik/rayform/internal/provisioning"
	testutil "github.com/imamik/rayform/internal/testing"
	"github.com/imamik/rayform/internal/topology"
)

func TestProvision_Mock(t *testing.T) {
	fixture := testutil.NewInfraFixture()
	var gotRoutes []awscloud.Route
	var gotIngress []awscloud.SecurityGroupOpts
	mock := fixture.SuccessfulProvisioning()
	ensureRT := mock.EnsureRouteTableFunc
	mock.EnsureRouteTableFunc = func(ctx context.Context, opts awscloud.RouteTableOpts) (*awscloud.RouteTable, error) {
		gotRoutes = opts.Routes
		return ensureRT(ctx, opts)
	}
	ensureSG := mock.EnsureSecurityGroupFunc
	mock.EnsureSecurityGroupFunc = func(ctx context.Context, opts awscloud.SecurityGroupOpts) (*awscloud.SecurityGroup, error) {
		gotIngress = append(gotIngress, opts)
		return ensureSG(ctx, opts)
	}

	ctx, observer := testutil.NewProvisioningContext(t, testutil.NewConfigBuilder().WithName("demo").Build(), mock)

	require.NoError(t, NewProvisioner().Provision(ctx))

	assert.Equal(t, []string{
		"EnsureVPC:demo-vpc",
		"EnsureInternetGateway:demo-igw",
		"EnsureSubnet:demo-subnet",
		"EnsureRouteTable:demo-rt",
		"EnsureRouteTableAssociation:rtb-1/subnet-1",
		"EnsureSecurityGroup:demo-sg",
	}, fixture.Calls())

	assert.Equal(t, "vpc-1", ctx.State.VPCID)
	assert.Equal(t, "igw-1", ctx.State.GatewayID)
	assert.Equal(t, "subnet-1", ctx.State.SubnetID)
	assert.Equal(t, "rtb-1", ctx.State.RouteTableID)
	assert.Equal(t, "rtbassoc-1", ctx.State.AssociationID)
	assert.Equal(t, "sg-1", ctx.State.SecurityGroupID)

	assert.Equal(t, []awscloud.Route{{DestinationCIDR: "0.0.0.0/0", GatewayID: "igw-1"}}, gotRoutes)

	require.Len(t, gotIngress, 1)
	var ports []int32
	for _, p := range gotIngress[0].Ingress {
		ports = append(ports, p.FromPort)
	}
	assert.Equal(t, []int32{22, 80, 443, 6379}, ports)
	assert.Equal(t, []awscloud.Permission{{Protocol: "-1", CIDR: "0.0.0.0/0"}}, gotIngress[0].Egress)

	assert.Len(t, observer.Resources(provisioning.EventResourceCreated), 6)
}

func TestProvision_StopsOnError(t *testing.T) {
	fixture := testutil.NewInfraFixture()
	fixture.SuccessfulProvisioning()
	boom := errors.New("VpcLimitExceeded")
	mock := fixture.WithNetworkError(boom)

	ctx, observer := testutil.NewProvisioningContext(t, testutil.NewConfigBuilder().Build(), mock)

	err := NewProvisioner().Provision(ctx)
	require.ErrorIs(t, err, boom)
	assert.Equal(t, []string{"EnsureVPC:test-vpc"}, fixture.Calls())
	assert.Equal(t, []string{"vpc/test-vpc"}, observer.Resources(provisioning.EventResourceFailed))
}

func TestResolveRoutes_RejectsSubnetTarget(t *testing.T) {
	state := provisioning.NewState()
	state.GatewayID = "igw-1"

	_, err := resolveRoutes([]topology.Route{{
		Destination: "0.0.0.0/0",
		TargetKind:  topology.TargetSubnet,
		Target:      "demo-subnet",
	}}, state)
	assert.Error(t, err)

	_, err = resolveRoutes([]topology.Route{{
		Destination: "0.0.0.0/0",
		TargetKind:  topology.TargetGateway,
		Target:      "demo-igw",
	}}, provisioning.NewState())
	assert.ErrorContains(t, err, "has not been provisioned")
}

func TestProvision_FakeEC2(t *testing.T) {
	infra, fake := testutil.NewFakeInfra(t)
	cfg := testutil.NewConfigBuilder().WithName("demo").Build()

	ctx, _ := testutil.NewProvisioningContext(t, cfg, infra)
	require.NoError(t, NewProvisioner().Provision(ctx))

	t.Run("single network gateway and subnet", func(t *testing.T) {
		assert.Len(t, fake.VPCs, 1)
		assert.Len(t, fake.Gateways, 1)
		assert.Len(t, fake.Subnets, 1)
		assert.Len(t, fake.SecurityGroups, 2, "default group plus the deployment group")

		subnet := fake.Subnets[ctx.State.SubnetID]
		assert.Equal(t, "10.0.1.0/24", aws.ToString(subnet.CidrBlock))
		assert.True(t, aws.ToBool(subnet.MapPublicIpOnLaunch))
		assert.True(t, fake.VPCAttribute(ctx.State.VPCID, "enableDnsHostnames"))
	})

	t.Run("default route targets the gateway", func(t *testing.T) {
		rt := fake.RouteTables[ctx.State.RouteTableID]
		require.NotNil(t, rt)
		var found bool
		for _, r := range rt.Routes {
			if aws.ToString(r.DestinationCidrBlock) == "0.0.0.0/0" {
				found = true
				assert.Equal(t, ctx.State.GatewayID, aws.ToString(r.GatewayId))
			}
		}
		assert.True(t, found)

		var associated bool
		for _, a := range rt.Associations {
			if aws.ToString(a.SubnetId) == ctx.State.SubnetID {
				associated = true
			}
		}
		assert.True(t, associated)
	})

	t.Run("second apply is a no-op", func(t *testing.T) {
		before := len(testutil.MutatingCalls(fake.CallsSnapshot()))

		again, observer := testutil.NewProvisioningContext(t, cfg, infra)
		require.NoError(t, NewProvisioner().Provision(again))

		assert.Len(t, testutil.MutatingCalls(fake.CallsSnapshot()), before)
		assert.Empty(t, observer.Resources(provisioning.EventResourceCreated))
		assert.Len(t, observer.Resources(provisioning.EventResourceExists), 6)
		assert.Equal(t, ctx.State.VPCID, again.State.VPCID)
		assert.Equal(t, ctx.State.AssociationID, again.State.AssociationID)
	})

	t.Run("corrected drift is reported as updated", func(t *testing.T) {
		fake.Subnets[ctx.State.SubnetID].MapPublicIpOnLaunch = aws.Bool(false)
		sg := fake.SecurityGroups[ctx.State.SecurityGroupID]
		var kept []types.IpPermission
		for _, perm := range sg.IpPermissions {
			if aws.ToInt32(perm.FromPort) != 6379 {
				kept = append(kept, perm)
			}
		}
		sg.IpPermissions = kept

		again, observer := testutil.NewProvisioningContext(t, cfg, infra)
		require.NoError(t, NewProvisioner().Provision(again))

		assert.Equal(t, []string{"subnet/demo-subnet", "security_group/demo-sg"},
			observer.Resources(provisioning.EventResourceUpdated))
		assert.Len(t, observer.Resources(provisioning.EventResourceExists), 4)
		assert.True(t, aws.ToBool(fake.Subnets[ctx.State.SubnetID].MapPublicIpOnLaunch))
	})
}

func TestProvision_AssociationLookupError(t *testing.T) {
	fixture := testutil.NewInfraFixture()
	mock := fixture.SuccessfulProvisioning()
	boom := errors.New("RequestLimitExceeded")
	lookups := 0
	mock.GetRouteTableFunc = func(context.Context, string) (*awscloud.RouteTable, error) {
		lookups++
		if lookups > 1 {
			return nil, boom
		}
		return nil, nil
	}

	ctx, observer := testutil.NewProvisioningContext(t, testutil.NewConfigBuilder().WithName("demo").Build(), mock)

	err := NewProvisioner().Provision(ctx)
	require.ErrorIs(t, err, boom)
	assert.NotContains(t, fixture.Calls(), "EnsureRouteTableAssociation:rtb-1/subnet-1")
	assert.Empty(t, ctx.State.AssociationID)
	assert.Equal(t, []string{"route_table_association/demo-subnet/demo-rt"}, observer.Resources(provisioning.EventResourceFailed))
	assert.NotContains(t, observer.Resources(provisioning.EventResourceCreated), "route_table_association/demo-subnet/demo-rt")
}
