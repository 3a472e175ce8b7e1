package plan

import (
	"fmt"
	"sort"
	"strings"

	"github.com/imamik/rayform/internal/bootstrap"
	"github.com/imamik/rayform/internal/platform/awscloud"
	"github.com/imamik/rayform/internal/provisioning"
	"github.com/imamik/rayform/internal/provisioning/compute"
	"github.com/imamik/rayform/internal/provisioning/network"
	"github.com/imamik/rayform/internal/topology"
)

// Action is what apply would do to one resource.
type Action string

// Actions reported by Diff.
const (
	ActionCreate Action = "create"
	ActionUpdate Action = "update"
	ActionNoOp   Action = "no-op"
	// ActionDelete marks a worker beyond the configured worker count.
	ActionDelete Action = "delete"
	// ActionConflict marks drift apply refuses to correct, such as a
	// changed CIDR block.
	ActionConflict Action = "conflict"
)

// Change is the planned action for one resource.
type Change struct {
	Kind    string
	Name    string
	Action  Action
	Details []string
}

// Plan is the ordered list of changes.
type Plan struct {
	Changes []Change
}

// Summary counts changes per action.
func (p *Plan) Summary() map[Action]int {
	out := make(map[Action]int)
	for _, c := range p.Changes {
		out[c.Action]++
	}
	return out
}

// HasChanges reports whether apply would do anything.
func (p *Plan) HasChanges() bool {
	for _, c := range p.Changes {
		if c.Action != ActionNoOp {
			return true
		}
	}
	return false
}

// Conflicts returns changes apply cannot make.
func (p *Plan) Conflicts() []Change {
	var out []Change
	for _, c := range p.Changes {
		if c.Action == ActionConflict {
			out = append(out, c)
		}
	}
	return out
}

type differ struct {
	ctx  *provisioning.Context
	plan *Plan

	vpcID     string
	gatewayID string
	subnetID  string
}

// Diff compares the topology in ctx with the resources that exist.
func Diff(ctx *provisioning.Context) (*Plan, error) {
	if ctx.Topology == nil {
		return nil, fmt.Errorf("topology is required")
	}
	d := &differ{ctx: ctx, plan: &Plan{}}
	steps := []func() error{
		d.vpc,
		d.gateway,
		d.subnet,
		d.routeTable,
		d.securityGroup,
		d.keyPair,
		d.instances,
	}
	for _, step := range steps {
		if err := step(); err != nil {
			return nil, err
		}
	}
	return d.plan, nil
}

func (d *differ) add(kind, name string, action Action, details ...string) {
	d.plan.Changes = append(d.plan.Changes, Change{Kind: kind, Name: name, Action: action, Details: details})
}

func (d *differ) vpc() error {
	n := d.ctx.Topology.Network
	have, err := d.ctx.Infra.GetVPC(d.ctx, n.Name)
	if err != nil {
		return fmt.Errorf("failed to look up VPC %s: %w", n.Name, err)
	}
	if have == nil {
		d.add(network.KindVPC, n.Name, ActionCreate, "cidr "+n.CIDR)
		return nil
	}
	d.vpcID = have.ID
	if have.CIDR != n.CIDR {
		d.add(network.KindVPC, n.Name, ActionConflict, fmt.Sprintf("cidr %s, want %s", have.CIDR, n.CIDR))
		return nil
	}
	var details []string
	if have.EnableDNSSupport != n.EnableDNSSupport {
		details = append(details, fmt.Sprintf("enable_dns_support %t -> %t", have.EnableDNSSupport, n.EnableDNSSupport))
	}
	if have.EnableDNSHostnames != n.EnableDNSHostnames {
		details = append(details, fmt.Sprintf("enable_dns_hostnames %t -> %t", have.EnableDNSHostnames, n.EnableDNSHostnames))
	}
	d.add(network.KindVPC, n.Name, actionFor(details), details...)
	return nil
}

func (d *differ) gateway() error {
	g := d.ctx.Topology.Gateway
	have, err := d.ctx.Infra.GetInternetGateway(d.ctx, g.Name)
	if err != nil {
		return fmt.Errorf("failed to look up internet gateway %s: %w", g.Name, err)
	}
	switch {
	case have == nil:
		d.add(network.KindGateway, g.Name, ActionCreate, "attach to "+g.Network)
	case have.AttachedVPC == "":
		d.gatewayID = have.ID
		d.add(network.KindGateway, g.Name, ActionUpdate, "attach to "+g.Network)
	case d.vpcID != "" && have.AttachedVPC != d.vpcID:
		d.gatewayID = have.ID
		d.add(network.KindGateway, g.Name, ActionConflict, "attached to "+have.AttachedVPC)
	default:
		d.gatewayID = have.ID
		d.add(network.KindGateway, g.Name, ActionNoOp)
	}
	return nil
}

func (d *differ) subnet() error {
	s := d.ctx.Topology.Subnet
	have, err := d.ctx.Infra.GetSubnet(d.ctx, s.Name)
	if err != nil {
		return fmt.Errorf("failed to look up subnet %s: %w", s.Name, err)
	}
	if have == nil {
		d.add(network.KindSubnet, s.Name, ActionCreate, "cidr "+s.CIDR)
		return nil
	}
	d.subnetID = have.ID
	if have.CIDR != s.CIDR {
		d.add(network.KindSubnet, s.Name, ActionConflict, fmt.Sprintf("cidr %s, want %s", have.CIDR, s.CIDR))
		return nil
	}
	var details []string
	if have.MapPublicIPOnLaunch != s.MapPublicIPOnLaunch {
		details = append(details, fmt.Sprintf("map_public_ip_on_launch %t -> %t", have.MapPublicIPOnLaunch, s.MapPublicIPOnLaunch))
	}
	d.add(network.KindSubnet, s.Name, actionFor(details), details...)
	return nil
}

// routeTable also plans the association, which is only visible through the
// table it binds.
func (d *differ) routeTable() error {
	rt := d.ctx.Topology.RouteTable
	assocName := d.ctx.Topology.Association.Subnet + "/" + rt.Name

	have, err := d.ctx.Infra.GetRouteTable(d.ctx, rt.Name)
	if err != nil {
		return fmt.Errorf("failed to look up route table %s: %w", rt.Name, err)
	}
	if have == nil {
		d.add(network.KindRouteTable, rt.Name, ActionCreate, routeDetails(rt.Routes)...)
		d.add(network.KindAssociation, assocName, ActionCreate)
		return nil
	}

	var details []string
	for _, want := range rt.Routes {
		target := routeTarget(have.Routes, want.Destination)
		switch {
		case target == "":
			details = append(details, fmt.Sprintf("add route %s -> %s", want.Destination, want.Target))
		case d.gatewayID == "" || target != d.gatewayID:
			details = append(details, fmt.Sprintf("route %s -> %s, want %s", want.Destination, target, want.Target))
		}
	}
	d.add(network.KindRouteTable, rt.Name, actionFor(details), details...)

	associated := false
	for _, a := range have.Associations {
		if d.subnetID != "" && a.SubnetID == d.subnetID {
			associated = true
		}
	}
	if associated {
		d.add(network.KindAssociation, assocName, ActionNoOp)
	} else {
		d.add(network.KindAssociation, assocName, ActionCreate)
	}
	return nil
}

func (d *differ) securityGroup() error {
	fw := d.ctx.Topology.Firewall
	have, err := d.ctx.Infra.GetSecurityGroup(d.ctx, fw.Name)
	if err != nil {
		return fmt.Errorf("failed to look up security group %s: %w", fw.Name, err)
	}
	if have == nil {
		d.add(network.KindSecurityGroup, fw.Name, ActionCreate, fmt.Sprintf("ingress ports %v", d.ctx.Topology.IngressPorts()))
		return nil
	}

	var details []string
	addIn, delIn := awscloud.DiffPermissions(have.Ingress, network.Permissions(fw.Ingress))
	addOut, delOut := awscloud.DiffPermissions(have.Egress, network.Permissions(fw.Egress))
	details = append(details, permissionDetails("allow ingress", addIn)...)
	details = append(details, permissionDetails("revoke ingress", delIn)...)
	details = append(details, permissionDetails("allow egress", addOut)...)
	details = append(details, permissionDetails("revoke egress", delOut)...)
	d.add(network.KindSecurityGroup, fw.Name, actionFor(details), details...)
	return nil
}

func (d *differ) keyPair() error {
	name := d.ctx.Topology.KeyPair
	have, err := d.ctx.Infra.GetKeyPair(d.ctx, name)
	if err != nil {
		return fmt.Errorf("failed to look up key pair %s: %w", name, err)
	}
	switch {
	case have != nil:
		d.add(compute.KindKeyPair, name, ActionNoOp)
	case d.ctx.Config.GeneratesKeyPair():
		d.add(compute.KindKeyPair, name, ActionCreate, "generate "+d.ctx.Config.Nodes.PrivateKeyPath)
	default:
		d.add(compute.KindKeyPair, name, ActionConflict, "configured key pair does not exist")
	}
	return nil
}

// instances matches by name. A running instance is never replaced, so a
// worker whose user data joins another coordinator is a conflict.
func (d *differ) instances() error {
	renderer, err := bootstrap.NewRenderer(bootstrap.OptionsFromConfig(d.ctx.Config))
	if err != nil {
		return err
	}
	var headIP string
	for _, spec := range d.ctx.Topology.Instances() {
		have, err := d.ctx.Infra.GetInstance(d.ctx, spec.Name)
		if err != nil {
			return fmt.Errorf("failed to look up instance %s: %w", spec.Name, err)
		}
		if have == nil {
			d.add(compute.KindInstance, spec.Name, ActionCreate, fmt.Sprintf("%s %s", spec.Role, spec.InstanceType))
			continue
		}
		if spec.Role == topology.RoleCoordinator {
			headIP = have.PrivateIP
		}
		var details []string
		if have.InstanceType != spec.InstanceType {
			details = append(details, fmt.Sprintf("instance_type %s, want %s (not replaced)", have.InstanceType, spec.InstanceType))
		}
		if spec.Role == topology.RoleWorker && headIP != "" {
			userData, err := d.ctx.Infra.GetInstanceUserData(d.ctx, spec.Name)
			if err != nil {
				return fmt.Errorf("failed to read user data of %s: %w", spec.Name, err)
			}
			if !strings.Contains(userData, renderer.JoinCommand(headIP)) {
				d.add(compute.KindInstance, spec.Name, ActionConflict,
					append(details, "user data does not join coordinator at "+headIP)...)
				continue
			}
		}
		d.add(compute.KindInstance, spec.Name, ActionNoOp, details...)
	}

	stray, err := compute.StrayWorkers(d.ctx, d.ctx.Infra, d.ctx.Topology)
	if err != nil {
		return fmt.Errorf("failed to list workers: %w", err)
	}
	for _, inst := range stray {
		d.add(compute.KindInstance, inst.Name, ActionDelete, "not in worker count")
	}
	return nil
}

func actionFor(details []string) Action {
	if len(details) == 0 {
		return ActionNoOp
	}
	return ActionUpdate
}

func routeTarget(routes []awscloud.Route, destination string) string {
	for _, r := range routes {
		if r.DestinationCIDR == destination {
			return r.GatewayID
		}
	}
	return ""
}

func routeDetails(routes []topology.Route) []string {
	out := make([]string, 0, len(routes))
	for _, r := range routes {
		out = append(out, fmt.Sprintf("route %s -> %s", r.Destination, r.Target))
	}
	return out
}

func permissionDetails(verb string, perms []awscloud.Permission) []string {
	out := make([]string, 0, len(perms))
	for _, p := range perms {
		if p.Protocol == awscloud.ProtocolAll {
			out = append(out, fmt.Sprintf("%s all from %s", verb, p.CIDR))
			continue
		}
		out = append(out, fmt.Sprintf("%s %s/%d from %s", verb, strings.ToLower(p.Protocol), p.FromPort, p.CIDR))
	}
	sort.Strings(out)
	return out
}
