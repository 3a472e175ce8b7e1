package topology

import (
	"fmt"
	"strconv"

	"github.com/imamik/rayform/internal/config"
	"github.com/imamik/rayform/internal/util/labels"
	"github.com/imamik/rayform/internal/util/naming"
)

// DefaultRouteCIDR is the destination of the internet route.
const DefaultRouteCIDR = "0.0.0.0/0"

// Role distinguishes the coordinator from workers.
type Role string

// Node roles.
const (
	RoleCoordinator Role = labels.RoleHead
	RoleWorker      Role = labels.RoleWorker
)

// Network is the isolated address space.
type Network struct {
	Name               string
	CIDR               string
	EnableDNSSupport   bool
	EnableDNSHostnames bool
	Tags               map[string]string
}

// Gateway is the internet gateway attached to Network.
type Gateway struct {
	Name    string
	Network string
	Tags    map[string]string
}

// Subnet is the single address block instances live in.
type Subnet struct {
	Name                string
	Network             string
	CIDR                string
	AvailabilityZone    string
	MapPublicIPOnLaunch bool
	Tags                map[string]string
}

// TargetKind says what a route sends traffic to.
type TargetKind string

// Route targets.
const (
	TargetGateway TargetKind = "gateway"
	TargetSubnet  TargetKind = "subnet"
)

// Route forwards Destination to the named target.
type Route struct {
	Destination string
	TargetKind  TargetKind
	Target      string
}

// RouteTable holds the routes for Subnet.
type RouteTable struct {
	Name    string
	Network string
	Routes  []Route
	Tags    map[string]string
}

// Association binds a subnet to a route table.
type Association struct {
	Subnet     string
	RouteTable string
}

// Rule is one firewall entry. Protocol "-1" covers all traffic and ignores
// the port range.
type Rule struct {
	Protocol string
	FromPort int
	ToPort   int
	CIDR     string
}

// FirewallRuleSet is the security group shared by every instance.
type FirewallRuleSet struct {
	Name    string
	Network string
	Ingress []Rule
	Egress  []Rule
	Tags    map[string]string
}

// InstanceSpec describes one compute node.
type InstanceSpec struct {
	Name string
	Role Role
	// Index is 1-based for workers and 0 for the coordinator.
	Index        int
	InstanceType string
	Subnet       string
	RuleSet      string
	Tags         map[string]string
}

// Topology is the full desired state.
type Topology struct {
	Deployment  string
	Network     Network
	Gateway     Gateway
	Subnet      Subnet
	RouteTable  RouteTable
	Association Association
	Firewall    FirewallRuleSet
	Coordinator InstanceSpec
	Workers     []InstanceSpec
	KeyPair     string
	// Tags select every resource of this deployment.
	Tags map[string]string
}

// Build derives the topology from cfg. cfg must have defaults applied.
func Build(cfg *config.Config) (*Topology, error) {
	if cfg == nil {
		return nil, fmt.Errorf("config is nil")
	}
	if cfg.Name == "" {
		return nil, fmt.Errorf("deployment name is required")
	}
	workers := cfg.WorkerCount()
	if workers < 0 {
		return nil, fmt.Errorf("worker count must be non-negative, got %d", workers)
	}

	d := cfg.Name
	t := &Topology{
		Deployment: d,
		Tags:       labels.NewLabelBuilder(d).Build(),
		KeyPair:    cfg.Nodes.KeyName,
	}
	// User tags never override the deployment selector.
	base := func() *labels.LabelBuilder {
		return labels.NewLabelBuilder(d).Merge(cfg.Tags).Merge(t.Tags)
	}
	if t.KeyPair == "" {
		t.KeyPair = naming.KeyPair(d)
	}

	t.Network = Network{
		Name:               naming.VPC(d),
		CIDR:               cfg.Network.CIDR,
		EnableDNSSupport:   boolOr(cfg.Network.EnableDNSSupport, true),
		EnableDNSHostnames: boolOr(cfg.Network.EnableDNSHostnames, true),
		Tags:               base().Build(),
	}
	t.Gateway = Gateway{
		Name:    naming.InternetGateway(d),
		Network: t.Network.Name,
		Tags:    base().Build(),
	}
	t.Subnet = Subnet{
		Name:                naming.Subnet(d),
		Network:             t.Network.Name,
		CIDR:                cfg.Network.SubnetCIDR,
		AvailabilityZone:    cfg.Network.AvailabilityZone,
		MapPublicIPOnLaunch: boolOr(cfg.Network.MapPublicIPOnLaunch, true),
		Tags:                base().Build(),
	}
	t.RouteTable = RouteTable{
		Name:    naming.RouteTable(d),
		Network: t.Network.Name,
		Routes: []Route{{
			Destination: DefaultRouteCIDR,
			TargetKind:  TargetGateway,
			Target:      t.Gateway.Name,
		}},
		Tags: base().Build(),
	}
	t.Association = Association{Subnet: t.Subnet.Name, RouteTable: t.RouteTable.Name}
	t.Firewall = FirewallRuleSet{
		Name:    naming.SecurityGroup(d),
		Network: t.Network.Name,
		Ingress: ingressRules(cfg),
		Egress:  []Rule{{Protocol: "-1", CIDR: DefaultRouteCIDR}},
		Tags:    base().Build(),
	}

	t.Coordinator = InstanceSpec{
		Name:         naming.Head(d),
		Role:         RoleCoordinator,
		InstanceType: cfg.Nodes.InstanceType,
		Subnet:       t.Subnet.Name,
		RuleSet:      t.Firewall.Name,
		Tags:         base().WithRole(labels.RoleHead).Build(),
	}
	t.Workers = make([]InstanceSpec, 0, workers)
	for i := 1; i <= workers; i++ {
		t.Workers = append(t.Workers, InstanceSpec{
			Name:         naming.Worker(d, i),
			Role:         RoleWorker,
			Index:        i,
			InstanceType: cfg.Nodes.InstanceType,
			Subnet:       t.Subnet.Name,
			RuleSet:      t.Firewall.Name,
			Tags:         base().WithRole(labels.RoleWorker).WithIndex(strconv.Itoa(i)).Build(),
		})
	}

	if err := t.Validate(); err != nil {
		return nil, err
	}
	return t, nil
}

// ingressRules expands every port for every source CIDR, plus the cluster
// port when it is exposed.
func ingressRules(cfg *config.Config) []Rule {
	ports := append([]int(nil), cfg.Firewall.IngressPorts...)
	if cfg.ClusterPortExposed() && !containsInt(ports, cfg.Ray.Port) {
		ports = append(ports, cfg.Ray.Port)
	}
	sources := cfg.Firewall.SourceCIDRs
	if len(sources) == 0 {
		sources = []string{config.DefaultSourceCIDR}
	}

	rules := make([]Rule, 0, len(ports)*len(sources))
	for _, p := range ports {
		for _, src := range sources {
			rules = append(rules, Rule{Protocol: "tcp", FromPort: p, ToPort: p, CIDR: src})
		}
	}
	return rules
}

// Instances returns the coordinator followed by the workers in index order.
func (t *Topology) Instances() []InstanceSpec {
	out := make([]InstanceSpec, 0, 1+len(t.Workers))
	out = append(out, t.Coordinator)
	return append(out, t.Workers...)
}

// IngressPorts returns the distinct inbound ports in rule order.
func (t *Topology) IngressPorts() []int {
	var ports []int
	for _, r := range t.Firewall.Ingress {
		if !containsInt(ports, r.FromPort) {
			ports = append(ports, r.FromPort)
		}
	}
	return ports
}

func containsInt(xs []int, x int) bool {
	for _, v := range xs {
		if v == x {
			return true
		}
	}
	return false
}

func boolOr(p *bool, def bool) bool {
	if p == nil {
		return def
	}
	return *p
}
