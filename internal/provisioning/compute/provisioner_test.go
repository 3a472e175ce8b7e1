package compute

import (
	"context"
	"encoding/base64"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/imamik/rayform/internal/config"
	"github.com/imamik/rayform/internal/platform/awscloud"
	"github.com/imamik/rayform/internal/provisioning"
	"github.com/imamik/rayform/internal/provisioning/network"
	testutil "github.com/imamik/rayform/internal/testing"
	"github.com/imamik/rayform/internal/util/labels"
)

const joinFor10015 = "ray start --address='10.0.1.5:6379' --heartbeat-timeout-milliseconds=60000"

// networkedContext returns a context whose state already carries network ids.
func networkedContext(t *testing.T, cfg *config.Config, infra awscloud.InfrastructureManager) (*provisioning.Context, *testutil.RecordingObserver) {
	t.Helper()
	ctx, observer := testutil.NewProvisioningContext(t, cfg, infra)
	ctx.State.VPCID = "vpc-1"
	ctx.State.SubnetID = "subnet-1"
	ctx.State.SecurityGroupID = "sg-1"
	return ctx, observer
}

func keyPath(t *testing.T) string {
	return filepath.Join(t.TempDir(), "keys", "demo.pem")
}

func TestProvision_WorkersJoinCoordinator(t *testing.T) {
	fixture := testutil.NewInfraFixture()
	mock := fixture.SuccessfulProvisioningWithHeadIP("10.0.1.5")
	cfg := testutil.NewConfigBuilder().WithName("demo").WithWorkers(2).WithPrivateKeyPath(keyPath(t)).Build()
	ctx, _ := networkedContext(t, cfg, mock)

	require.NoError(t, NewProvisioner().Provision(ctx))

	head, ok := fixture.Launched("demo-head")
	require.True(t, ok)
	assert.Contains(t, head.UserData, "ray start --head --port=6379")
	assert.Equal(t, labels.RoleHead, head.Tags[labels.KeyRole])

	for _, name := range []string{"demo-worker-1", "demo-worker-2"} {
		w, ok := fixture.Launched(name)
		require.True(t, ok, name)
		assert.Contains(t, w.UserData, joinFor10015)
		assert.NotContains(t, w.UserData, "{{")
		assert.Equal(t, labels.RoleWorker, w.Tags[labels.KeyRole])
		assert.Equal(t, []string{"sg-1"}, w.SecurityGroupIDs)
		assert.Equal(t, "subnet-1", w.SubnetID)
		assert.Equal(t, "demo-key", w.KeyName)
		assert.Equal(t, config.DefaultImage, w.ImageID)
	}

	require.NotNil(t, ctx.State.Head)
	assert.Equal(t, "10.0.1.5", ctx.State.Head.PrivateIP)
	workers, err := ctx.State.Workers(2)
	require.NoError(t, err)
	assert.NotEqual(t, workers[0].PrivateIP, workers[1].PrivateIP)

	calls := fixture.Calls()
	assert.Equal(t, "EnsureKeyPair:demo-key", calls[0])
	assert.Equal(t, "EnsureInstance:demo-head", calls[1])
}

func TestProvision_GeneratesPrivateKey(t *testing.T) {
	fixture := testutil.NewInfraFixture()
	path := keyPath(t)
	var imported string
	mock := fixture.SuccessfulProvisioning()
	mock.EnsureKeyPairFunc = func(_ context.Context, name, publicKey string, _ map[string]string) (*awscloud.KeyPair, error) {
		imported = publicKey
		return &awscloud.KeyPair{ID: "key-1", Name: name}, nil
	}
	cfg := testutil.NewConfigBuilder().WithName("demo").WithWorkers(0).WithPrivateKeyPath(path).Build()
	ctx, _ := networkedContext(t, cfg, mock)

	require.NoError(t, NewProvisioner().Provision(ctx))

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(data), "PRIVATE KEY")
	assert.True(t, strings.HasPrefix(imported, "ssh-ed25519 "))
	assert.False(t, strings.HasSuffix(imported, "\n"))
}

func TestProvision_ExistingKeyName(t *testing.T) {
	fixture := testutil.NewInfraFixture()
	mock := fixture.SuccessfulProvisioning()
	cfg := testutil.NewConfigBuilder().WithKeyName("team-key").Build()

	t.Run("missing", func(t *testing.T) {
		ctx, _ := networkedContext(t, cfg, mock)
		err := NewProvisioner().Provision(ctx)
		assert.ErrorContains(t, err, `key pair "team-key" does not exist`)
	})

	t.Run("present", func(t *testing.T) {
		mock.GetKeyPairFunc = func(_ context.Context, name string) (*awscloud.KeyPair, error) {
			return &awscloud.KeyPair{ID: "key-team", Name: name}, nil
		}
		ctx, _ := networkedContext(t, cfg, mock)
		require.NoError(t, NewProvisioner().Provision(ctx))
		assert.Equal(t, "team-key", ctx.State.KeyName)
		assert.NotContains(t, fixture.Calls(), "EnsureKeyPair:team-key")
	})
}

func TestProvision_CoordinatorFailureStopsWorkers(t *testing.T) {
	fixture := testutil.NewInfraFixture()
	boom := errors.New("InsufficientInstanceCapacity")
	mock := fixture.WithInstanceError("test-head", boom)
	cfg := testutil.NewConfigBuilder().WithWorkers(2).WithPrivateKeyPath(keyPath(t)).Build()
	ctx, _ := networkedContext(t, cfg, mock)

	err := NewProvisioner().Provision(ctx)

	require.ErrorIs(t, err, boom)
	assert.Contains(t, err.Error(), "coordinator")
	for _, c := range fixture.Calls() {
		assert.NotContains(t, c, "worker")
	}
	assert.Nil(t, ctx.State.Head)
}

func TestProvision_CoordinatorWithoutAddress(t *testing.T) {
	fixture := testutil.NewInfraFixture()
	mock := fixture.SuccessfulProvisioning()
	ensure := mock.EnsureInstanceFunc
	mock.EnsureInstanceFunc = func(ctx context.Context, opts awscloud.InstanceCreateOpts) (*awscloud.Instance, error) {
		inst, err := ensure(ctx, opts)
		if err == nil && opts.Tags[labels.KeyRole] == labels.RoleHead {
			inst.PrivateIP = ""
		}
		return inst, err
	}
	cfg := testutil.NewConfigBuilder().WithWorkers(1).WithPrivateKeyPath(keyPath(t)).Build()
	ctx, _ := networkedContext(t, cfg, mock)

	err := NewProvisioner().Provision(ctx)

	require.Error(t, err)
	assert.Contains(t, err.Error(), "no private address")
	_, launched := fixture.Launched("test-worker-1")
	assert.False(t, launched)
}

func TestProvision_WorkerFailureIsReported(t *testing.T) {
	fixture := testutil.NewInfraFixture()
	boom := errors.New("boom")
	mock := fixture.WithInstanceError("test-worker-2", boom)
	cfg := testutil.NewConfigBuilder().WithWorkers(3).WithPrivateKeyPath(keyPath(t)).Build()
	ctx, observer := networkedContext(t, cfg, mock)

	err := NewProvisioner().Provision(ctx)

	require.ErrorIs(t, err, boom)
	assert.Contains(t, err.Error(), "failed to provision test-worker-2")
	require.NotNil(t, ctx.State.Head)
	assert.NotNil(t, ctx.State.Worker(1))
	assert.NotNil(t, ctx.State.Worker(3))
	assert.Contains(t, observer.Resources(provisioning.EventResourceFailed), "instance/test-worker-2")
}

func TestProvision_NoWorkers(t *testing.T) {
	fixture := testutil.NewInfraFixture()
	cfg := testutil.NewConfigBuilder().WithWorkers(0).WithPrivateKeyPath(keyPath(t)).Build()
	ctx, _ := networkedContext(t, cfg, fixture.SuccessfulProvisioning())

	require.NoError(t, NewProvisioner().Provision(ctx))
	assert.Equal(t, []string{"EnsureKeyPair:test-key", "EnsureInstance:test-head"}, fixture.Calls())
}

func TestProvision_ImageFilter(t *testing.T) {
	fixture := testutil.NewInfraFixture()
	cfg := testutil.NewConfigBuilder().WithWorkers(0).WithPrivateKeyPath(keyPath(t)).Build()
	cfg.Nodes.Image = ""
	cfg.Nodes.ImageFilter = &config.ImageFilter{Name: config.DefaultImageFilterPrefix, Owner: config.DefaultImageFilterOwner}
	ctx, _ := networkedContext(t, cfg, fixture.SuccessfulProvisioning())

	require.NoError(t, NewProvisioner().Provision(ctx))

	assert.Equal(t, "ami-resolved", ctx.State.ImageID)
	head, _ := fixture.Launched("test-head")
	assert.Equal(t, "ami-resolved", head.ImageID)
}

func TestProvision_RequiresNetwork(t *testing.T) {
	ctx, _ := testutil.NewProvisioningContext(t, testutil.NewConfigBuilder().Build(), &awscloud.MockClient{})
	assert.ErrorContains(t, NewProvisioner().Provision(ctx), "network must be provisioned")
}

func TestProvision_FakeEC2EndToEnd(t *testing.T) {
	infra, fake := testutil.NewFakeInfra(t)
	cfg := testutil.NewConfigBuilder().WithName("demo").WithWorkers(2).WithPrivateKeyPath(keyPath(t)).Build()
	pipeline := provisioning.NewPipeline(network.NewProvisioner(), NewProvisioner())

	ctx, _ := testutil.NewProvisioningContext(t, cfg, infra)
	require.NoError(t, pipeline.Run(ctx))

	headIP := ctx.State.Head.PrivateIP
	require.NotEmpty(t, headIP)

	var coordinators, workers int
	for id, inst := range fake.Instances {
		script, err := base64.StdEncoding.DecodeString(fake.UserData[id])
		require.NoError(t, err)
		switch labels.FromEC2(inst.Tags)[labels.KeyRole] {
		case labels.RoleHead:
			coordinators++
			assert.Contains(t, string(script), "ray start --head --port=6379")
		case labels.RoleWorker:
			workers++
			assert.Contains(t, string(script), "ray start --address='"+headIP+":6379' --heartbeat-timeout-milliseconds=60000")
		}
	}
	assert.Equal(t, 1, coordinators)
	assert.Equal(t, 2, workers)

	before := len(testutil.MutatingCalls(fake.CallsSnapshot()))
	again, observer := testutil.NewProvisioningContext(t, cfg, infra)
	require.NoError(t, pipeline.Run(again))

	assert.Len(t, testutil.MutatingCalls(fake.CallsSnapshot()), before, "second apply must not change anything")
	assert.Empty(t, observer.Resources(provisioning.EventResourceCreated))
	assert.Equal(t, headIP, again.State.Head.PrivateIP)
	assert.Len(t, fake.Instances, 3)
}

func TestProvision_ScaleDownRemovesExtraWorkers(t *testing.T) {
	infra, fake := testutil.NewFakeInfra(t)
	key := keyPath(t)
	pipeline := provisioning.NewPipeline(network.NewProvisioner(), NewProvisioner())

	three := testutil.NewConfigBuilder().WithName("demo").WithWorkers(3).WithPrivateKeyPath(key).Build()
	ctx, _ := testutil.NewProvisioningContext(t, three, infra)
	require.NoError(t, pipeline.Run(ctx))

	two := testutil.NewConfigBuilder().WithName("demo").WithWorkers(2).WithPrivateKeyPath(key).Build()
	again, observer := testutil.NewProvisioningContext(t, two, infra)
	require.NoError(t, pipeline.Run(again))

	assert.Equal(t, []string{"instance/demo-worker-3"}, observer.Resources(provisioning.EventResourceDeleted))
	assert.Empty(t, observer.Resources(provisioning.EventResourceCreated))

	live, err := infra.ListInstances(context.Background(),
		labels.NewLabelBuilder("demo").WithRole(labels.RoleWorker).Build())
	require.NoError(t, err)
	var names []string
	for _, inst := range live {
		names = append(names, inst.Name)
	}
	assert.Equal(t, []string{"demo-worker-1", "demo-worker-2"}, names)
	assert.Equal(t, 1, fake.CallCount("TerminateInstances"))
}

func TestProvision_PruneFailureIsReported(t *testing.T) {
	fixture := testutil.NewInfraFixture()
	mock := fixture.SuccessfulProvisioning()
	var selector map[string]string
	mock.ListInstancesFunc = func(_ context.Context, tags map[string]string) ([]*awscloud.Instance, error) {
		selector = tags
		return []*awscloud.Instance{
			{ID: "i-1", Name: "test-worker-1"},
			{ID: "i-5", Name: "test-worker-5"},
		}, nil
	}
	var removed []string
	mock.DeleteInstanceFunc = func(_ context.Context, name string) error {
		removed = append(removed, name)
		return errors.New("UnauthorizedOperation")
	}
	cfg := testutil.NewConfigBuilder().WithWorkers(1).WithPrivateKeyPath(keyPath(t)).Build()
	ctx, observer := networkedContext(t, cfg, mock)

	err := NewProvisioner().Provision(ctx)

	require.ErrorContains(t, err, "failed to remove worker test-worker-5")
	assert.Equal(t, []string{"test-worker-5"}, removed, "configured workers are kept")
	assert.Equal(t, labels.RoleWorker, selector[labels.KeyRole])
	assert.Equal(t, "test", selector[labels.KeyDeployment])
	assert.Equal(t, []string{"instance/test-worker-5"}, observer.Resources(provisioning.EventResourceFailed))
}
