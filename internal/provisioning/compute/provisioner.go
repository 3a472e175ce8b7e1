package compute

import (
	"context"
	"fmt"

	"github.com/imamik/rayform/internal/bootstrap"
	"github.com/imamik/rayform/internal/platform/awscloud"
	"github.com/imamik/rayform/internal/provisioning"
	"github.com/imamik/rayform/internal/topology"
	"github.com/imamik/rayform/internal/util/async"
	"github.com/imamik/rayform/internal/util/labels"
)

const phase = "compute"

// Resource kinds reported to the observer.
const (
	KindKeyPair  = "key_pair"
	KindImage    = "image"
	KindInstance = "instance"
)

// Provisioner handles instance provisioning.
type Provisioner struct{}

// NewProvisioner creates a new compute provisioner.
func NewProvisioner() *Provisioner {
	return &Provisioner{}
}

// Name implements the provisioning.Phase interface.
func (p *Provisioner) Name() string {
	return phase
}

// Provision implements the provisioning.Phase interface.
func (p *Provisioner) Provision(ctx *provisioning.Context) error {
	if ctx.State.SubnetID == "" || ctx.State.SecurityGroupID == "" {
		return fmt.Errorf("network must be provisioned before compute")
	}

	renderer, err := bootstrap.NewRenderer(bootstrap.OptionsFromConfig(ctx.Config))
	if err != nil {
		return err
	}
	if err := p.ensureKeyPair(ctx); err != nil {
		return err
	}
	if err := p.resolveImage(ctx); err != nil {
		return err
	}

	head := async.Go(ctx, func(context.Context) (*awscloud.Instance, error) {
		return p.ensureNode(ctx, ctx.Topology.Coordinator, renderer.Head())
	})
	headAddress := async.Then(head, coordinatorAddress)
	workerScript := async.Then(headAddress, renderer.Worker)

	workersErr := async.RunParallel(ctx, p.workerTasks(ctx, workerScript))

	inst, err := head.Await(ctx)
	if err != nil {
		return fmt.Errorf("failed to provision coordinator: %w", err)
	}
	ctx.State.Head = nodeFromInstance(inst)

	if workersErr != nil {
		return workersErr
	}
	if err := p.pruneWorkers(ctx); err != nil {
		return err
	}
	ctx.Observer.Printf("[%s] coordinator %s at %s, %d workers joined",
		phase, inst.Name, inst.PrivateIP, len(ctx.Topology.Workers))
	return nil
}

// workerTasks builds one task per worker. Each task blocks until the join
// script is available.
func (p *Provisioner) workerTasks(ctx *provisioning.Context, script *async.Future[string]) []async.Task {
	tasks := make([]async.Task, 0, len(ctx.Topology.Workers))
	for _, spec := range ctx.Topology.Workers {
		tasks = append(tasks, async.Task{
			Name: spec.Name,
			Func: func(c context.Context) error {
				userData, err := script.Await(c)
				if err != nil {
					return fmt.Errorf("join script unavailable: %w", err)
				}
				inst, err := p.ensureNode(ctx, spec, userData)
				if err != nil {
					return err
				}
				ctx.State.SetWorker(spec.Index, nodeFromInstance(inst))
				return nil
			},
		})
	}
	return tasks
}

func (p *Provisioner) ensureNode(ctx *provisioning.Context, spec topology.InstanceSpec, userData string) (*awscloud.Instance, error) {
	return provisioning.Reconcile(ctx, phase, KindInstance, spec.Name, ctx.Infra.GetInstance,
		func(c context.Context) (*awscloud.Instance, error) {
			return ctx.Infra.EnsureInstance(c, awscloud.InstanceCreateOpts{
				Name:             spec.Name,
				ImageID:          ctx.State.ImageID,
				InstanceType:     spec.InstanceType,
				KeyName:          ctx.State.KeyName,
				SubnetID:         ctx.State.SubnetID,
				SecurityGroupIDs: []string{ctx.State.SecurityGroupID},
				UserData:         userData,
				Tags:             spec.Tags,
			})
		},
		func(i *awscloud.Instance) string { return i.ID }, nil)
}

// StrayWorkers returns the live workers of the deployment that the topology
// no longer names, e.g. after the worker count was lowered.
func StrayWorkers(ctx context.Context, infra awscloud.InfrastructureManager, topo *topology.Topology) ([]*awscloud.Instance, error) {
	selector := labels.NewLabelBuilder(topo.Deployment).WithRole(labels.RoleWorker).Build()
	live, err := infra.ListInstances(ctx, selector)
	if err != nil {
		return nil, err
	}
	wanted := make(map[string]bool, len(topo.Workers))
	for _, w := range topo.Workers {
		wanted[w.Name] = true
	}
	var stray []*awscloud.Instance
	for _, inst := range live {
		if !wanted[inst.Name] {
			stray = append(stray, inst)
		}
	}
	return stray, nil
}

// pruneWorkers terminates workers left over from a larger worker count.
func (p *Provisioner) pruneWorkers(ctx *provisioning.Context) error {
	stray, err := StrayWorkers(ctx, ctx.Infra, ctx.Topology)
	if err != nil {
		return fmt.Errorf("failed to list workers: %w", err)
	}
	tasks := make([]async.Task, 0, len(stray))
	for _, inst := range stray {
		tasks = append(tasks, async.Task{
			Name: inst.Name,
			Func: func(c context.Context) error {
				if err := ctx.Infra.DeleteInstance(c, inst.Name); err != nil {
					provisioning.LogResourceFailed(ctx.Observer, phase, KindInstance, inst.Name, err)
					return fmt.Errorf("failed to remove worker %s: %w", inst.Name, err)
				}
				provisioning.LogResource(ctx.Observer, provisioning.EventResourceDeleted, phase, KindInstance, inst.Name, inst.ID)
				return nil
			},
		})
	}
	return async.RunParallel(ctx, tasks)
}

// coordinatorAddress extracts the address workers join. An instance without
// a private address never yields a script.
func coordinatorAddress(inst *awscloud.Instance) (string, error) {
	if inst == nil || inst.PrivateIP == "" {
		return "", fmt.Errorf("coordinator has no private address")
	}
	return inst.PrivateIP, nil
}

func nodeFromInstance(inst *awscloud.Instance) *provisioning.Node {
	return &provisioning.Node{
		Name:       inst.Name,
		InstanceID: inst.ID,
		PrivateIP:  inst.PrivateIP,
		PublicIP:   inst.PublicIP,
	}
}
