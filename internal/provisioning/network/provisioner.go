package network

import (
	"context"
	"fmt"

	"github.com/imamik/rayform/internal/platform/awscloud"
	"github.com/imamik/rayform/internal/provisioning"
	"github.com/imamik/rayform/internal/topology"
)

const phase = "network"

// Resource kinds reported to the observer.
const (
	KindVPC           = "vpc"
	KindGateway       = "internet_gateway"
	KindSubnet        = "subnet"
	KindRouteTable    = "route_table"
	KindAssociation   = "route_table_association"
	KindSecurityGroup = "security_group"
)

// Provisioner handles network provisioning.
type Provisioner struct{}

// NewProvisioner creates a new network provisioner.
func NewProvisioner() *Provisioner {
	return &Provisioner{}
}

// Name implements the provisioning.Phase interface.
func (p *Provisioner) Name() string {
	return phase
}

// Provision implements the provisioning.Phase interface. Each step depends
// on the ids recorded by the one before it.
func (p *Provisioner) Provision(ctx *provisioning.Context) error {
	steps := []func(*provisioning.Context) error{
		p.ensureVPC,
		p.ensureGateway,
		p.ensureSubnet,
		p.ensureRouteTable,
		p.ensureAssociation,
		p.ensureSecurityGroup,
	}
	for _, step := range steps {
		if err := step(ctx); err != nil {
			return err
		}
	}
	return nil
}

func (p *Provisioner) ensureVPC(ctx *provisioning.Context) error {
	n := ctx.Topology.Network
	vpc, err := provisioning.Reconcile(ctx, phase, KindVPC, n.Name, ctx.Infra.GetVPC,
		func(c context.Context) (*awscloud.VPC, error) {
			return ctx.Infra.EnsureVPC(c, awscloud.VPCOpts{
				Name:               n.Name,
				CIDR:               n.CIDR,
				EnableDNSSupport:   n.EnableDNSSupport,
				EnableDNSHostnames: n.EnableDNSHostnames,
				Tags:               n.Tags,
			})
		},
		func(v *awscloud.VPC) string { return v.ID },
		func(v *awscloud.VPC) bool {
			return v.EnableDNSSupport != n.EnableDNSSupport || v.EnableDNSHostnames != n.EnableDNSHostnames
		})
	if err != nil {
		return fmt.Errorf("failed to ensure VPC: %w", err)
	}
	ctx.State.VPCID = vpc.ID
	return nil
}

func (p *Provisioner) ensureGateway(ctx *provisioning.Context) error {
	g := ctx.Topology.Gateway
	igw, err := provisioning.Reconcile(ctx, phase, KindGateway, g.Name, ctx.Infra.GetInternetGateway,
		func(c context.Context) (*awscloud.InternetGateway, error) {
			return ctx.Infra.EnsureInternetGateway(c, g.Name, ctx.State.VPCID, g.Tags)
		},
		func(gw *awscloud.InternetGateway) string { return gw.ID },
		func(gw *awscloud.InternetGateway) bool { return gw.AttachedVPC != ctx.State.VPCID })
	if err != nil {
		return fmt.Errorf("failed to ensure internet gateway: %w", err)
	}
	ctx.State.GatewayID = igw.ID
	return nil
}

func (p *Provisioner) ensureSubnet(ctx *provisioning.Context) error {
	s := ctx.Topology.Subnet
	subnet, err := provisioning.Reconcile(ctx, phase, KindSubnet, s.Name, ctx.Infra.GetSubnet,
		func(c context.Context) (*awscloud.Subnet, error) {
			return ctx.Infra.EnsureSubnet(c, awscloud.SubnetOpts{
				Name:                s.Name,
				VPCID:               ctx.State.VPCID,
				CIDR:                s.CIDR,
				AvailabilityZone:    s.AvailabilityZone,
				MapPublicIPOnLaunch: s.MapPublicIPOnLaunch,
				Tags:                s.Tags,
			})
		},
		func(sn *awscloud.Subnet) string { return sn.ID },
		func(sn *awscloud.Subnet) bool { return sn.MapPublicIPOnLaunch != s.MapPublicIPOnLaunch })
	if err != nil {
		return fmt.Errorf("failed to ensure subnet: %w", err)
	}
	ctx.State.SubnetID = subnet.ID
	return nil
}

func (p *Provisioner) ensureRouteTable(ctx *provisioning.Context) error {
	rt := ctx.Topology.RouteTable
	routes, err := resolveRoutes(rt.Routes, ctx.State)
	if err != nil {
		return err
	}
	table, err := provisioning.Reconcile(ctx, phase, KindRouteTable, rt.Name, ctx.Infra.GetRouteTable,
		func(c context.Context) (*awscloud.RouteTable, error) {
			return ctx.Infra.EnsureRouteTable(c, awscloud.RouteTableOpts{
				Name:   rt.Name,
				VPCID:  ctx.State.VPCID,
				Routes: routes,
				Tags:   rt.Tags,
			})
		},
		func(t *awscloud.RouteTable) string { return t.ID },
		func(t *awscloud.RouteTable) bool { return routesDrifted(t.Routes, routes) })
	if err != nil {
		return fmt.Errorf("failed to ensure route table: %w", err)
	}
	ctx.State.RouteTableID = table.ID
	return nil
}

// resolveRoutes maps topology route targets to provisioned ids. Only gateway
// targets are routable; a route that names the subnet is rejected.
func resolveRoutes(routes []topology.Route, state *provisioning.State) ([]awscloud.Route, error) {
	out := make([]awscloud.Route, 0, len(routes))
	for _, r := range routes {
		if r.TargetKind != topology.TargetGateway {
			return nil, fmt.Errorf("route %s must target the internet gateway, not %s %s", r.Destination, r.TargetKind, r.Target)
		}
		if state.GatewayID == "" {
			return nil, fmt.Errorf("route %s targets gateway %s which has not been provisioned", r.Destination, r.Target)
		}
		out = append(out, awscloud.Route{DestinationCIDR: r.Destination, GatewayID: state.GatewayID})
	}
	return out, nil
}

// routesDrifted reports whether any wanted route is missing or targets
// something else.
func routesDrifted(have, want []awscloud.Route) bool {
	for _, w := range want {
		found := false
		for _, h := range have {
			if h.DestinationCIDR == w.DestinationCIDR && h.GatewayID == w.GatewayID {
				found = true
				break
			}
		}
		if !found {
			return true
		}
	}
	return false
}

func permissionsDrifted(have, want []awscloud.Permission) bool {
	add, remove := awscloud.DiffPermissions(have, want)
	return len(add) > 0 || len(remove) > 0
}

func (p *Provisioner) ensureAssociation(ctx *provisioning.Context) error {
	a := ctx.Topology.Association
	name := a.Subnet + "/" + a.RouteTable

	table, err := ctx.Infra.GetRouteTable(ctx, a.RouteTable)
	if err != nil {
		provisioning.LogResourceFailed(ctx.Observer, phase, KindAssociation, name, err)
		return fmt.Errorf("failed to look up route table %s: %w", a.RouteTable, err)
	}
	existed := false
	if table != nil {
		for _, assoc := range table.Associations {
			if assoc.SubnetID == ctx.State.SubnetID {
				existed = true
			}
		}
	}

	id, err := ctx.Infra.EnsureRouteTableAssociation(ctx, ctx.State.RouteTableID, ctx.State.SubnetID)
	if err != nil {
		provisioning.LogResourceFailed(ctx.Observer, phase, KindAssociation, name, err)
		return fmt.Errorf("failed to associate subnet with route table: %w", err)
	}
	ctx.State.AssociationID = id

	typ := provisioning.EventResourceCreated
	if existed {
		typ = provisioning.EventResourceExists
	}
	provisioning.LogResource(ctx.Observer, typ, phase, KindAssociation, name, id)
	return nil
}

func (p *Provisioner) ensureSecurityGroup(ctx *provisioning.Context) error {
	fw := ctx.Topology.Firewall
	sg, err := provisioning.Reconcile(ctx, phase, KindSecurityGroup, fw.Name, ctx.Infra.GetSecurityGroup,
		func(c context.Context) (*awscloud.SecurityGroup, error) {
			return ctx.Infra.EnsureSecurityGroup(c, awscloud.SecurityGroupOpts{
				Name:        fw.Name,
				Description: fmt.Sprintf("rayform %s cluster access", ctx.Topology.Deployment),
				VPCID:       ctx.State.VPCID,
				Ingress:     Permissions(fw.Ingress),
				Egress:      Permissions(fw.Egress),
				Tags:        fw.Tags,
			})
		},
		func(g *awscloud.SecurityGroup) string { return g.ID },
		func(g *awscloud.SecurityGroup) bool {
			return permissionsDrifted(g.Ingress, Permissions(fw.Ingress)) || permissionsDrifted(g.Egress, Permissions(fw.Egress))
		})
	if err != nil {
		return fmt.Errorf("failed to ensure security group: %w", err)
	}
	ctx.State.SecurityGroupID = sg.ID
	return nil
}

// Permissions converts topology rules to security group permissions.
func Permissions(rules []topology.Rule) []awscloud.Permission {
	out := make([]awscloud.Permission, 0, len(rules))
	for _, r := range rules {
		out = append(out, awscloud.Permission{
			Protocol: r.Protocol,
			FromPort: int32(r.FromPort), // #nosec G115 -- ports are validated to 0..65535
			ToPort:   int32(r.ToPort),   // #nosec G115
			CIDR:     r.CIDR,
		})
	}
	return out
}
