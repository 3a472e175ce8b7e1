package config

import (
	"errors"
	"fmt"
	"regexp"
	"strings"
)

var pythonVersionPattern = regexp.MustCompile(`^[0-9]+\.[0-9]+$`)

// packagePattern accepts a pip requirement: a project name, optional extras
// and optional comma-separated version clauses, e.g. ray[default]>=2.9,<3.
var packagePattern = regexp.MustCompile(`^[A-Za-z0-9][A-Za-z0-9._-]*` +
	`(\[[A-Za-z0-9._-]+(,[A-Za-z0-9._-]+)*\])?` +
	`((===|==|!=|~=|<=|>=|<|>)[A-Za-z0-9.*+!_-]+(,(===|==|!=|~=|<=|>=|<|>)[A-Za-z0-9.*+!_-]+)*)?$`)

var venvPattern = regexp.MustCompile(`^[A-Za-z0-9._-]+$`)

// Validate checks the configuration and returns every problem found, joined.
func (c *Config) Validate() error {
	var errs []error

	if err := ValidateName(c.Name); err != nil {
		errs = append(errs, fmt.Errorf("name: %w", err))
	}
	errs = append(errs, c.validateNetwork()...)
	errs = append(errs, c.validateFirewall()...)
	errs = append(errs, c.validateNodes()...)
	errs = append(errs, c.validateRay()...)

	if c.Outputs.S3Prefix != "" && c.Outputs.S3Bucket == "" {
		errs = append(errs, fmt.Errorf("outputs.s3_prefix requires outputs.s3_bucket"))
	}

	return errors.Join(errs...)
}

func (c *Config) validateNetwork() []error {
	var errs []error
	if _, err := parseIPv4Prefix(c.Network.CIDR); err != nil {
		errs = append(errs, fmt.Errorf("network.cidr: %w", err))
	}
	if _, err := parseIPv4Prefix(c.Network.SubnetCIDR); err != nil {
		errs = append(errs, fmt.Errorf("network.subnet_cidr: %w", err))
	}
	if len(errs) > 0 {
		return errs
	}

	ok, _ := CIDRContains(c.Network.CIDR, c.Network.SubnetCIDR)
	if !ok {
		errs = append(errs, fmt.Errorf("network.subnet_cidr %s is not inside network.cidr %s",
			c.Network.SubnetCIDR, c.Network.CIDR))
	}
	return errs
}

func (c *Config) validateFirewall() []error {
	var errs []error
	seen := make(map[int]bool, len(c.Firewall.IngressPorts))
	for _, p := range c.Firewall.IngressPorts {
		if p < 1 || p > 65535 {
			errs = append(errs, fmt.Errorf("firewall.ingress_ports: %d is not a valid port", p))
		}
		if seen[p] {
			errs = append(errs, fmt.Errorf("firewall.ingress_ports: %d listed twice", p))
		}
		seen[p] = true
	}
	for _, cidr := range c.Firewall.SourceCIDRs {
		if _, err := parseIPv4Prefix(cidr); err != nil {
			errs = append(errs, fmt.Errorf("firewall.source_cidrs: %w", err))
		}
	}
	return errs
}

func (c *Config) validateNodes() []error {
	var errs []error
	if c.Nodes.InstanceType == "" {
		errs = append(errs, fmt.Errorf("nodes.instance_type is required"))
	}
	if c.Nodes.Image == "" && c.Nodes.ImageFilter == nil {
		errs = append(errs, fmt.Errorf("nodes.image or nodes.image_filter is required"))
	}
	if c.Nodes.Image != "" && !strings.HasPrefix(c.Nodes.Image, "ami-") {
		errs = append(errs, fmt.Errorf("nodes.image %q is not an AMI id", c.Nodes.Image))
	}
	if c.Nodes.ImageFilter != nil && c.Nodes.ImageFilter.Name == "" {
		errs = append(errs, fmt.Errorf("nodes.image_filter.name is required"))
	}
	if c.WorkerCount() < 0 {
		errs = append(errs, fmt.Errorf("nodes.workers must not be negative, got %d", c.WorkerCount()))
	}
	switch c.Nodes.KeyAlgorithm {
	case "", "rsa", "ed25519":
	default:
		errs = append(errs, fmt.Errorf("nodes.key_algorithm must be rsa or ed25519, got %q", c.Nodes.KeyAlgorithm))
	}
	return errs
}

func (c *Config) validateRay() []error {
	var errs []error
	if c.Ray.Port < 1 || c.Ray.Port > 65535 {
		errs = append(errs, fmt.Errorf("ray.port: %d is not a valid port", c.Ray.Port))
	}
	if c.HeartbeatTimeout() < 0 {
		errs = append(errs, fmt.Errorf("ray.heartbeat_timeout_ms must not be negative"))
	}
	if !pythonVersionPattern.MatchString(c.Ray.PythonVersion) {
		errs = append(errs, fmt.Errorf("ray.python_version must look like 3.9, got %q", c.Ray.PythonVersion))
	}
	if !venvPattern.MatchString(c.Ray.Venv) {
		errs = append(errs, fmt.Errorf("ray.venv %q is not a valid directory name", c.Ray.Venv))
	}
	if !packagePattern.MatchString(c.Ray.Package) {
		errs = append(errs, fmt.Errorf("ray.package %q is not a valid package spec", c.Ray.Package))
	}
	return errs
}

// ValidateName checks a deployment name is DNS-safe.
func ValidateName(s string) error {
	if s == "" {
		return fmt.Errorf("deployment name is required")
	}
	if len(s) > 40 {
		return fmt.Errorf("deployment name must be 40 characters or less")
	}
	for _, c := range s {
		if (c < 'a' || c > 'z') && (c < '0' || c > '9') && c != '-' {
			return fmt.Errorf("deployment name can only contain lowercase letters, numbers, and hyphens")
		}
	}
	if s[0] == '-' || s[len(s)-1] == '-' {
		return fmt.Errorf("deployment name cannot start or end with a hyphen")
	}
	return nil
}
