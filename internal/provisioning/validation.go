package provisioning

import (
	"errors"
	"fmt"
	"net/netip"
	"strings"

	"github.com/imamik/rayform/internal/config"
)

// ErrValidation marks errors produced by the validation phase.
var ErrValidation = errors.New("configuration validation failed")

// Severity levels for validation findings.
const (
	SeverityError   = "error"
	SeverityWarning = "warning"
)

// ValidationError represents a configuration validation error or warning.
type ValidationError struct {
	Field    string // Configuration field that failed validation
	Message  string // Human-readable error message
	Severity string // "error" or "warning"
}

// Error implements the error interface.
func (ve ValidationError) Error() string {
	return fmt.Sprintf("[%s] %s: %s", ve.Severity, ve.Field, ve.Message)
}

// IsError returns true if this is an error (not a warning).
func (ve ValidationError) IsError() bool {
	return ve.Severity == SeverityError
}

// ValidationPhase implements the Phase interface for pre-flight validation.
type ValidationPhase struct{}

// NewValidationPhase creates a new validation phase.
func NewValidationPhase() *ValidationPhase {
	return &ValidationPhase{}
}

// Name implements the Phase interface.
func (vp *ValidationPhase) Name() string {
	return "validation"
}

// Provision implements the Phase interface.
func (vp *ValidationPhase) Provision(ctx *Context) error {
	var errs []ValidationError
	for _, ve := range Validate(ctx) {
		if ve.IsError() {
			errs = append(errs, ve)
			continue
		}
		LogValidationWarning(ctx.Observer, ve.Field, ve.Message)
	}

	if len(errs) > 0 {
		msgs := make([]string, 0, len(errs))
		for _, e := range errs {
			msgs = append(msgs, e.Error())
		}
		return fmt.Errorf("%w:\n  %s", ErrValidation, strings.Join(msgs, "\n  "))
	}
	return nil
}

// Validate runs all checks against the context's config and topology and
// returns every error and warning.
func Validate(ctx *Context) []ValidationError {
	var out []ValidationError
	cfg := ctx.Config

	if cfg == nil {
		return []ValidationError{{Field: "config", Message: "configuration is missing", Severity: SeverityError}}
	}

	out = append(out, splitErrors("config", cfg.Validate())...)

	if ctx.Topology == nil {
		out = append(out, ValidationError{Field: "topology", Message: "topology has not been built", Severity: SeverityError})
	} else {
		out = append(out, splitErrors("topology", ctx.Topology.Validate())...)
	}

	if cfg.ClusterPortExposed() && exposesWorld(cfg.Firewall.SourceCIDRs) {
		out = append(out, ValidationError{
			Field:    "firewall.expose_cluster_port",
			Message:  fmt.Sprintf("cluster port %d is reachable from 0.0.0.0/0; restrict firewall.source_cidrs or disable expose_cluster_port", cfg.Ray.Port),
			Severity: SeverityWarning,
		})
	}

	if cfg.WorkerCount() == 0 {
		out = append(out, ValidationError{
			Field:    "nodes.workers",
			Message:  "no workers configured; the coordinator runs alone",
			Severity: SeverityWarning,
		})
	}

	if prefix := prefixLength(cfg.Network.CIDR); prefix > 24 {
		out = append(out, ValidationError{
			Field:    "network.cidr",
			Message:  fmt.Sprintf("CIDR prefix /%d leaves little room, /16 to /24 is recommended", prefix),
			Severity: SeverityWarning,
		})
	}

	return out
}

// splitErrors turns a joined error into one ValidationError per line.
func splitErrors(field string, err error) []ValidationError {
	if err == nil {
		return nil
	}
	var errs []error
	if joined, ok := err.(interface{ Unwrap() []error }); ok {
		errs = joined.Unwrap()
	} else {
		errs = []error{err}
	}
	out := make([]ValidationError, 0, len(errs))
	for _, e := range errs {
		out = append(out, ValidationError{Field: field, Message: e.Error(), Severity: SeverityError})
	}
	return out
}

func exposesWorld(cidrs []string) bool {
	if len(cidrs) == 0 {
		return true
	}
	for _, c := range cidrs {
		if c == config.DefaultSourceCIDR {
			return true
		}
	}
	return false
}

func prefixLength(cidr string) int {
	p, err := netip.ParsePrefix(cidr)
	if err != nil {
		return 0
	}
	return p.Bits()
}
