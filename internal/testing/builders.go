package testing

import (
	"maps"
	"slices"

	"github.com/imamik/rayform/internal/config"
	"github.com/imamik/rayform/internal/util/ptr"
)

// ConfigBuilder provides a fluent interface for constructing test configs.
// Each method returns a new builder (immutable) for chaining.
type ConfigBuilder struct {
	cfg config.Config
}

// NewConfigBuilder creates a new ConfigBuilder with every default applied.
func NewConfigBuilder() *ConfigBuilder {
	return &ConfigBuilder{cfg: *config.Default("test")}
}

// WithName sets the deployment name and the derived key path.
func (b *ConfigBuilder) WithName(name string) *ConfigBuilder {
	nb := b.clone()
	nb.cfg.Name = name
	nb.cfg.Nodes.PrivateKeyPath = config.DefaultPrivateKeyDir + "/" + name + ".pem"
	return nb
}

// WithRegion sets the AWS region.
func (b *ConfigBuilder) WithRegion(region string) *ConfigBuilder {
	nb := b.clone()
	nb.cfg.Region = region
	return nb
}

// WithNetwork sets the VPC and subnet CIDRs.
func (b *ConfigBuilder) WithNetwork(cidr, subnetCIDR string) *ConfigBuilder {
	nb := b.clone()
	nb.cfg.Network.CIDR = cidr
	nb.cfg.Network.SubnetCIDR = subnetCIDR
	return nb
}

// WithWorkers sets the worker count.
func (b *ConfigBuilder) WithWorkers(n int) *ConfigBuilder {
	nb := b.clone()
	nb.cfg.Nodes.Workers = ptr.Int(n)
	return nb
}

// WithClusterPort toggles exposure of the cluster port.
func (b *ConfigBuilder) WithClusterPort(exposed bool) *ConfigBuilder {
	nb := b.clone()
	nb.cfg.Firewall.ExposeClusterPort = ptr.Bool(exposed)
	return nb
}

// WithSourceCIDRs replaces the inbound source ranges.
func (b *ConfigBuilder) WithSourceCIDRs(cidrs ...string) *ConfigBuilder {
	nb := b.clone()
	nb.cfg.Firewall.SourceCIDRs = cidrs
	return nb
}

// WithKeyName references an existing key pair instead of generating one.
func (b *ConfigBuilder) WithKeyName(name string) *ConfigBuilder {
	nb := b.clone()
	nb.cfg.Nodes.KeyName = name
	nb.cfg.Nodes.PrivateKeyPath = ""
	return nb
}

// WithPrivateKeyPath sets where a generated key is written.
func (b *ConfigBuilder) WithPrivateKeyPath(path string) *ConfigBuilder {
	nb := b.clone()
	nb.cfg.Nodes.PrivateKeyPath = path
	return nb
}

// WithOutputs sets the outputs file and optional S3 bucket.
func (b *ConfigBuilder) WithOutputs(file, bucket string) *ConfigBuilder {
	nb := b.clone()
	nb.cfg.Outputs.File = file
	nb.cfg.Outputs.S3Bucket = bucket
	return nb
}

// WithTags sets user tags.
func (b *ConfigBuilder) WithTags(tags map[string]string) *ConfigBuilder {
	nb := b.clone()
	nb.cfg.Tags = maps.Clone(tags)
	return nb
}

// Build returns a copy of the configuration.
func (b *ConfigBuilder) Build() *config.Config {
	out := b.clone().cfg
	return &out
}

func (b *ConfigBuilder) clone() *ConfigBuilder {
	c := b.cfg
	c.Tags = maps.Clone(b.cfg.Tags)
	c.Firewall.IngressPorts = slices.Clone(b.cfg.Firewall.IngressPorts)
	c.Firewall.SourceCIDRs = slices.Clone(b.cfg.Firewall.SourceCIDRs)
	c.Firewall.ExposeClusterPort = clonePtr(b.cfg.Firewall.ExposeClusterPort)
	c.Network.EnableDNSSupport = clonePtr(b.cfg.Network.EnableDNSSupport)
	c.Network.EnableDNSHostnames = clonePtr(b.cfg.Network.EnableDNSHostnames)
	c.Network.MapPublicIPOnLaunch = clonePtr(b.cfg.Network.MapPublicIPOnLaunch)
	c.Nodes.Workers = clonePtr(b.cfg.Nodes.Workers)
	c.Ray.HeartbeatTimeoutMS = clonePtr(b.cfg.Ray.HeartbeatTimeoutMS)
	if b.cfg.Nodes.ImageFilter != nil {
		f := *b.cfg.Nodes.ImageFilter
		c.Nodes.ImageFilter = &f
	}
	return &ConfigBuilder{cfg: c}
}

func clonePtr[T any](p *T) *T {
	if p == nil {
		return nil
	}
	v := *p
	return &v
}

// MinimalConfig returns a default config with no workers.
func MinimalConfig() *config.Config {
	return NewConfigBuilder().WithWorkers(0).Build()
}

// FullConfig returns a config exercising every optional section.
func FullConfig() *config.Config {
	return NewConfigBuilder().
		WithName("full").
		WithRegion("eu-central-1").
		WithWorkers(3).
		WithSourceCIDRs("203.0.113.0/24").
		WithOutputs("outputs.yaml", "rayform-outputs").
		WithTags(map[string]string{"team": "ml"}).
		Build()
}
