package awscloud

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMockClient_Defaults(t *testing.T) {
	t.Parallel()
	m := &MockClient{}
	ctx := context.Background()

	vpc, err := m.EnsureVPC(ctx, VPCOpts{Name: "v", CIDR: "10.0.0.0/16"})
	require.NoError(t, err)
	assert.Equal(t, "10.0.0.0/16", vpc.CIDR)

	igw, err := m.EnsureInternetGateway(ctx, "g", vpc.ID, nil)
	require.NoError(t, err)
	assert.Equal(t, vpc.ID, igw.AttachedVPC)

	inst, err := m.EnsureInstance(ctx, InstanceCreateOpts{Name: "head"})
	require.NoError(t, err)
	assert.Equal(t, "head", inst.Name)
	assert.Equal(t, "10.0.1.5", inst.PrivateIP)

	got, err := m.GetInstance(ctx, "head")
	require.NoError(t, err)
	assert.Nil(t, got)

	assert.NoError(t, m.CleanupByTag(ctx, nil))
}

func TestMockClient_CustomFunc(t *testing.T) {
	t.Parallel()
	boom := errors.New("boom")
	m := &MockClient{
		DeleteSubnetFunc: func(_ context.Context, name string) error {
			assert.Equal(t, "s", name)
			return boom
		},
	}
	assert.ErrorIs(t, m.DeleteSubnet(context.Background(), "s"), boom)
}
