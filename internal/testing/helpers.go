package testing

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/imamik/rayform/internal/config"
	"github.com/imamik/rayform/internal/platform/awscloud"
	"github.com/imamik/rayform/internal/provisioning"
	"github.com/imamik/rayform/internal/topology"
	"github.com/imamik/rayform/pkg/cloud/fakes"
)

// TestContext returns a context with a reasonable timeout for tests.
func TestContext(t *testing.T) context.Context {
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	t.Cleanup(cancel)
	return ctx
}

// NewProvisioningContext builds a provisioning context over infra with test
// timeouts and a RecordingObserver.
func NewProvisioningContext(t *testing.T, cfg *config.Config, infra awscloud.InfrastructureManager) (*provisioning.Context, *RecordingObserver) {
	t.Helper()
	topo, err := topology.Build(cfg)
	if err != nil {
		t.Fatalf("failed to build topology: %v", err)
	}
	observer := NewRecordingObserver()
	ctx := provisioning.NewContext(TestContext(t), cfg, topo, infra, observer)
	ctx.Timeouts = config.TestTimeouts()
	return ctx, observer
}

// NewFakeInfra returns a real EC2-backed client over an in-memory fake, so
// tests exercise the ensure logic end to end.
func NewFakeInfra(t *testing.T) (*awscloud.RealClient, *fakes.FakeEC2) {
	t.Helper()
	fake := fakes.NewFakeEC2()
	c, err := awscloud.NewRealClient(context.Background(), "us-east-1",
		awscloud.WithEC2API(fake),
		awscloud.WithTimeouts(config.TestTimeouts()))
	if err != nil {
		t.Fatalf("failed to create client: %v", err)
	}
	return c, fake
}

// MutatingCalls filters a fake's call log down to calls that change state.
func MutatingCalls(calls []string) []string {
	var out []string
	for _, c := range calls {
		if !strings.HasPrefix(c, "Describe") {
			out = append(out, c)
		}
	}
	return out
}
