package topology

import (
	"errors"
	"fmt"

	"github.com/imamik/rayform/internal/config"
)

// Validate checks the structural invariants of the topology and returns
// every violation joined into one error.
func (t *Topology) Validate() error {
	var errs []error

	if t.Gateway.Network != t.Network.Name {
		errs = append(errs, fmt.Errorf("gateway %s is not attached to network %s", t.Gateway.Name, t.Network.Name))
	}
	if t.Subnet.Network != t.Network.Name {
		errs = append(errs, fmt.Errorf("subnet %s is not in network %s", t.Subnet.Name, t.Network.Name))
	}
	inside, err := config.CIDRContains(t.Network.CIDR, t.Subnet.CIDR)
	switch {
	case err != nil:
		errs = append(errs, fmt.Errorf("subnet CIDR: %w", err))
	case !inside:
		errs = append(errs, fmt.Errorf("subnet CIDR %s is outside network CIDR %s", t.Subnet.CIDR, t.Network.CIDR))
	}

	errs = append(errs, t.validateRoutes()...)

	if t.Association.Subnet != t.Subnet.Name || t.Association.RouteTable != t.RouteTable.Name {
		errs = append(errs, fmt.Errorf("association must bind %s to %s", t.Subnet.Name, t.RouteTable.Name))
	}

	if t.Coordinator.Role != RoleCoordinator {
		errs = append(errs, fmt.Errorf("coordinator %s has role %q", t.Coordinator.Name, t.Coordinator.Role))
	}
	for _, inst := range t.Instances() {
		if inst.Subnet != t.Subnet.Name {
			errs = append(errs, fmt.Errorf("instance %s is not in subnet %s", inst.Name, t.Subnet.Name))
		}
		if inst.RuleSet != t.Firewall.Name {
			errs = append(errs, fmt.Errorf("instance %s does not use rule set %s", inst.Name, t.Firewall.Name))
		}
	}
	for i, w := range t.Workers {
		if w.Role != RoleWorker {
			errs = append(errs, fmt.Errorf("worker %s has role %q", w.Name, w.Role))
		}
		if w.Index != i+1 {
			errs = append(errs, fmt.Errorf("worker %s has index %d, want %d", w.Name, w.Index, i+1))
		}
	}

	return errors.Join(errs...)
}

// validateRoutes requires a default route and that it targets the gateway.
// A default route pointing at the subnet leaves instances unreachable.
func (t *Topology) validateRoutes() []error {
	var errs []error
	if t.RouteTable.Network != t.Network.Name {
		errs = append(errs, fmt.Errorf("route table %s is not in network %s", t.RouteTable.Name, t.Network.Name))
	}
	found := false
	for _, r := range t.RouteTable.Routes {
		if r.Destination != DefaultRouteCIDR {
			continue
		}
		found = true
		if r.TargetKind != TargetGateway || r.Target != t.Gateway.Name {
			errs = append(errs, fmt.Errorf("default route targets %s %s, want gateway %s", r.TargetKind, r.Target, t.Gateway.Name))
		}
	}
	if !found {
		errs = append(errs, fmt.Errorf("route table %s has no default route", t.RouteTable.Name))
	}
	return errs
}
