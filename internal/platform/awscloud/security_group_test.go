package awscloud

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDiffPermissions(t *testing.T) {
	t.Parallel()

	ssh := Permission{Protocol: "tcp", FromPort: 22, ToPort: 22, CIDR: "0.0.0.0/0"}
	redis := Permission{Protocol: "tcp", FromPort: 6379, ToPort: 6379, CIDR: "0.0.0.0/0"}
	allWithPorts := Permission{Protocol: ProtocolAll, FromPort: -1, ToPort: -1, CIDR: "0.0.0.0/0"}
	all := Permission{Protocol: ProtocolAll, CIDR: "0.0.0.0/0"}

	tests := []struct {
		name       string
		have, want []Permission
		add, del   []Permission
	}{
		{name: "equal", have: []Permission{ssh}, want: []Permission{ssh}},
		{name: "add", have: nil, want: []Permission{ssh}, add: []Permission{ssh}},
		{name: "remove", have: []Permission{ssh, redis}, want: []Permission{ssh}, del: []Permission{redis}},
		{name: "all-traffic ports ignored", have: []Permission{allWithPorts}, want: []Permission{all}},
		{name: "duplicates collapse", have: []Permission{ssh}, want: []Permission{ssh, ssh}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			add, del := DiffPermissions(tt.have, tt.want)
			assert.ElementsMatch(t, tt.add, add)
			assert.ElementsMatch(t, tt.del, del)
		})
	}
}

func TestToIPPermissions_AllTrafficOmitsPorts(t *testing.T) {
	t.Parallel()
	perms := toIPPermissions([]Permission{
		{Protocol: ProtocolAll, CIDR: "0.0.0.0/0"},
		{Protocol: "tcp", FromPort: 443, ToPort: 443, CIDR: "0.0.0.0/0"},
	})
	require.Len(t, perms, 2)
	assert.Nil(t, perms[0].FromPort)
	assert.Nil(t, perms[0].ToPort)
	assert.Equal(t, int32(443), *perms[1].FromPort)
}

func TestEnsureSecurityGroup_RevokesExtraRules(t *testing.T) {
	t.Parallel()
	c, fake := newTestClient(t)
	ctx := context.Background()

	vpc, err := c.EnsureVPC(ctx, VPCOpts{Name: "v", CIDR: "10.0.0.0/16"})
	require.NoError(t, err)

	withCluster := append(webIngress(), Permission{Protocol: "tcp", FromPort: 6379, ToPort: 6379, CIDR: "0.0.0.0/0"})
	_, err = c.EnsureSecurityGroup(ctx, SecurityGroupOpts{Name: "sg", VPCID: vpc.ID, Ingress: withCluster, Egress: allEgress()})
	require.NoError(t, err)

	sg, err := c.EnsureSecurityGroup(ctx, SecurityGroupOpts{Name: "sg", VPCID: vpc.ID, Ingress: webIngress(), Egress: allEgress()})
	require.NoError(t, err)
	assert.Equal(t, 1, fake.CallCount("RevokeSecurityGroupIngress"))
	assert.ElementsMatch(t, webIngress(), sg.Ingress)

	got, err := c.GetSecurityGroup(ctx, "sg")
	require.NoError(t, err)
	assert.ElementsMatch(t, webIngress(), got.Ingress)
	assert.Equal(t, allEgress(), got.Egress)
}

func TestEnsureSecurityGroup_KeepsDefaultEgress(t *testing.T) {
	t.Parallel()
	c, fake := newTestClient(t)
	ctx := context.Background()

	vpc, err := c.EnsureVPC(ctx, VPCOpts{Name: "v", CIDR: "10.0.0.0/16"})
	require.NoError(t, err)
	_, err = c.EnsureSecurityGroup(ctx, SecurityGroupOpts{Name: "sg", VPCID: vpc.ID, Ingress: webIngress(), Egress: allEgress()})
	require.NoError(t, err)

	assert.Zero(t, fake.CallCount("AuthorizeSecurityGroupEgress"))
	assert.Zero(t, fake.CallCount("RevokeSecurityGroupEgress"))
	assert.Equal(t, 1, fake.CallCount("AuthorizeSecurityGroupIngress"))
}
