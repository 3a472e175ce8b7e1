package destroy

import (
	"context"
	"errors"
	"fmt"

	"github.com/imamik/rayform/internal/provisioning"
	"github.com/imamik/rayform/internal/provisioning/compute"
	"github.com/imamik/rayform/internal/provisioning/network"
	"github.com/imamik/rayform/internal/provisioning/outputs"
	"github.com/imamik/rayform/internal/util/async"
	"github.com/imamik/rayform/internal/util/labels"
)

const phase = "destroy"

// KindSweep is reported for the tag-based cleanup pass.
const KindSweep = "tag_sweep"

// Provisioner handles deployment destruction.
type Provisioner struct {
	publisher outputs.Publisher
}

// Option configures a Provisioner.
type Option func(*Provisioner)

// WithPublisher removes the published outputs object as well.
func WithPublisher(pub outputs.Publisher) Option {
	return func(p *Provisioner) { p.publisher = pub }
}

// NewProvisioner creates a new destroy provisioner.
func NewProvisioner(opts ...Option) *Provisioner {
	p := &Provisioner{}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Name implements the provisioning.Phase interface.
func (p *Provisioner) Name() string {
	return phase
}

// Provision destroys the deployment and all associated resources.
func (p *Provisioner) Provision(ctx *provisioning.Context) error {
	topo := ctx.Topology
	ctx.Observer.Printf("[%s] starting destruction of %s", phase, topo.Deployment)

	// Network resources cannot be removed while instances hold interfaces
	// in the subnet.
	if err := p.deleteInstances(ctx); err != nil {
		return err
	}

	steps := []step{
		{network.KindRouteTable, topo.RouteTable.Name, exists(ctx.Infra.GetRouteTable), ctx.Infra.DeleteRouteTable},
		{network.KindGateway, topo.Gateway.Name, exists(ctx.Infra.GetInternetGateway), ctx.Infra.DeleteInternetGateway},
		{network.KindSubnet, topo.Subnet.Name, exists(ctx.Infra.GetSubnet), ctx.Infra.DeleteSubnet},
		{network.KindSecurityGroup, topo.Firewall.Name, exists(ctx.Infra.GetSecurityGroup), ctx.Infra.DeleteSecurityGroup},
		{network.KindVPC, topo.Network.Name, exists(ctx.Infra.GetVPC), ctx.Infra.DeleteVPC},
	}
	if ctx.Config.GeneratesKeyPair() {
		steps = append(steps, step{compute.KindKeyPair, topo.KeyPair, exists(ctx.Infra.GetKeyPair), ctx.Infra.DeleteKeyPair})
	}

	var errs []error
	for _, s := range steps {
		if err := s.run(ctx); err != nil {
			errs = append(errs, err)
		}
	}

	selector := labels.NewLabelBuilder(topo.Deployment).Build()
	if err := ctx.Infra.CleanupByTag(ctx, selector); err != nil {
		provisioning.LogResourceFailed(ctx.Observer, phase, KindSweep, topo.Deployment, err)
		errs = append(errs, fmt.Errorf("failed to cleanup deployment resources: %w", err))
	}

	if err := outputs.Remove(ctx, p.publisher, ctx.Config); err != nil {
		errs = append(errs, err)
	} else {
		provisioning.LogResource(ctx.Observer, provisioning.EventResourceDeleted, phase, outputs.KindFile, ctx.Config.Outputs.File, "")
	}

	if len(errs) > 0 {
		return errors.Join(errs...)
	}
	ctx.Observer.Printf("[%s] deployment %s destroyed", phase, topo.Deployment)
	return nil
}

// deleteInstances terminates every instance of the deployment concurrently
// and waits. Instances are found by topology name and by tag, so workers
// beyond the current worker count are removed too.
func (p *Provisioner) deleteInstances(ctx *provisioning.Context) error {
	var names []string
	seen := make(map[string]bool)
	for _, spec := range ctx.Topology.Instances() {
		names = append(names, spec.Name)
		seen[spec.Name] = true
	}
	tagged, err := ctx.Infra.ListInstances(ctx, labels.NewLabelBuilder(ctx.Topology.Deployment).Build())
	if err != nil {
		provisioning.LogResourceFailed(ctx.Observer, phase, compute.KindInstance, ctx.Topology.Deployment, err)
		return fmt.Errorf("failed to list instances: %w", err)
	}
	for _, inst := range tagged {
		if !seen[inst.Name] {
			names = append(names, inst.Name)
			seen[inst.Name] = true
		}
	}

	tasks := make([]async.Task, 0, len(names))
	for _, name := range names {
		tasks = append(tasks, async.Task{
			Name: name,
			Func: func(context.Context) error {
				return step{compute.KindInstance, name, exists(ctx.Infra.GetInstance), ctx.Infra.DeleteInstance}.run(ctx)
			},
		})
	}
	return async.RunParallel(ctx, tasks)
}

// exists adapts a typed lookup to a presence check.
func exists[T any](get func(context.Context, string) (*T, error)) func(context.Context, string) (bool, error) {
	return func(c context.Context, name string) (bool, error) {
		r, err := get(c, name)
		return r != nil, err
	}
}

// step deletes one named resource.
type step struct {
	kind, name string
	get        func(context.Context, string) (bool, error)
	del        func(context.Context, string) error
}

// run deletes the resource and reports it. Absent resources are skipped.
func (s step) run(ctx *provisioning.Context) error {
	kind, name := s.kind, s.name
	found, err := s.get(ctx, name)
	if err != nil {
		provisioning.LogResourceFailed(ctx.Observer, phase, kind, name, err)
		return fmt.Errorf("failed to look up %s %s: %w", kind, name, err)
	}
	if !found {
		return nil
	}
	if err := s.del(ctx, name); err != nil {
		provisioning.LogResourceFailed(ctx.Observer, phase, kind, name, err)
		return fmt.Errorf("failed to delete %s %s: %w", kind, name, err)
	}
	provisioning.LogResource(ctx.Observer, provisioning.EventResourceDeleted, phase, kind, name, "")
	return nil
}
