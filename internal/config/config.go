package config

import (
	"fmt"

	"github.com/imamik/rayform/internal/util/ptr"
)

// Defaults applied by ApplyDefaults.
const (
	DefaultNetworkCIDR       = "10.0.0.0/16"
	DefaultInstanceType      = "t2.micro"
	DefaultImage             = "ami-003c463c8207b4dfa"
	DefaultWorkers           = 2
	DefaultPythonVersion     = "3.9"
	DefaultRayPackage        = "ray"
	DefaultRayPort           = 6379
	DefaultHeartbeatTimeout  = 60000
	DefaultVenv              = "ray_env"
	DefaultOutputsFile       = "rayform-outputs.yaml"
	DefaultSourceCIDR        = "0.0.0.0/0"
	DefaultPrivateKeyDir     = ".rayform"
	DefaultImageFilterOwner  = "099720109477" // Canonical
	DefaultImageFilterPrefix = "ubuntu/images/hvm-ssd/ubuntu-jammy-22.04-amd64-server-*"
)

// DefaultIngressPorts are opened to SourceCIDRs on every instance.
var DefaultIngressPorts = []int{22, 80, 443}

// Config is the deployment description.
type Config struct {
	// Name identifies the deployment. It prefixes every resource name and
	// is the value of the deployment tag.
	Name string `yaml:"name"`

	// Region is the AWS region. Empty falls back to the SDK default chain.
	Region string `yaml:"region,omitempty"`

	Network  NetworkConfig  `yaml:"network"`
	Firewall FirewallConfig `yaml:"firewall"`
	Nodes    NodesConfig    `yaml:"nodes"`
	Ray      RayConfig      `yaml:"ray"`
	Outputs  OutputsConfig  `yaml:"outputs"`

	// MetricsFile, when set, receives Prometheus text-format metrics after
	// every command.
	MetricsFile string `yaml:"metrics_file,omitempty"`

	// Tags are merged into the tag set of every resource.
	Tags map[string]string `yaml:"tags,omitempty"`
}

// NetworkConfig describes the VPC and its single subnet.
type NetworkConfig struct {
	CIDR                string `yaml:"cidr"`
	SubnetCIDR          string `yaml:"subnet_cidr"`
	AvailabilityZone    string `yaml:"availability_zone,omitempty"`
	EnableDNSSupport    *bool  `yaml:"enable_dns_support,omitempty"`
	EnableDNSHostnames  *bool  `yaml:"enable_dns_hostnames,omitempty"`
	MapPublicIPOnLaunch *bool  `yaml:"map_public_ip_on_launch,omitempty"`
}

// FirewallConfig is the inbound allow-list. Egress is always unrestricted.
type FirewallConfig struct {
	IngressPorts []int `yaml:"ingress_ports"`

	// ExposeClusterPort adds the Ray port to the inbound allow-list.
	ExposeClusterPort *bool `yaml:"expose_cluster_port,omitempty"`

	SourceCIDRs []string `yaml:"source_cidrs"`
}

// NodesConfig describes the coordinator and worker instances.
type NodesConfig struct {
	InstanceType string `yaml:"instance_type"`

	// Image is an AMI id. When empty, ImageFilter resolves the newest match.
	Image       string       `yaml:"image,omitempty"`
	ImageFilter *ImageFilter `yaml:"image_filter,omitempty"`

	// KeyName references an existing EC2 key pair. When empty a key pair is
	// generated, imported and its private key written to PrivateKeyPath.
	KeyName        string `yaml:"key_name,omitempty"`
	KeyAlgorithm   string `yaml:"key_algorithm,omitempty"`
	PrivateKeyPath string `yaml:"private_key_path,omitempty"`

	Workers *int `yaml:"workers,omitempty"`
}

// ImageFilter selects an AMI by name pattern and owner account.
type ImageFilter struct {
	Name  string `yaml:"name"`
	Owner string `yaml:"owner"`
}

// RayConfig parameterizes the bootstrap scripts.
type RayConfig struct {
	PythonVersion string `yaml:"python_version"`
	Package       string `yaml:"package"`
	Port          int    `yaml:"port"`

	// HeartbeatTimeoutMS is passed to workers on join. Zero omits the flag.
	HeartbeatTimeoutMS *int   `yaml:"heartbeat_timeout_ms,omitempty"`
	Venv               string `yaml:"venv"`
}

// OutputsConfig controls where published outputs are written.
type OutputsConfig struct {
	File       string `yaml:"file"`
	S3Bucket   string `yaml:"s3_bucket,omitempty"`
	S3Prefix   string `yaml:"s3_prefix,omitempty"`
	S3Endpoint string `yaml:"s3_endpoint,omitempty"`
}

// Default returns a configuration with every default applied.
func Default(name string) *Config {
	cfg := &Config{Name: name}
	_ = cfg.ApplyDefaults()
	return cfg
}

// ApplyDefaults fills unset fields. The subnet defaults to the second /24
// of the network CIDR.
func (c *Config) ApplyDefaults() error {
	if c.Network.CIDR == "" {
		c.Network.CIDR = DefaultNetworkCIDR
	}
	if c.Network.SubnetCIDR == "" {
		subnet, err := CIDRSubnet(c.Network.CIDR, 8, 1)
		if err != nil {
			return fmt.Errorf("failed to derive subnet CIDR: %w", err)
		}
		c.Network.SubnetCIDR = subnet
	}
	if c.Network.EnableDNSSupport == nil {
		c.Network.EnableDNSSupport = ptr.Bool(true)
	}
	if c.Network.EnableDNSHostnames == nil {
		c.Network.EnableDNSHostnames = ptr.Bool(true)
	}
	if c.Network.MapPublicIPOnLaunch == nil {
		c.Network.MapPublicIPOnLaunch = ptr.Bool(true)
	}

	if c.Firewall.IngressPorts == nil {
		c.Firewall.IngressPorts = append([]int(nil), DefaultIngressPorts...)
	}
	if c.Firewall.ExposeClusterPort == nil {
		c.Firewall.ExposeClusterPort = ptr.Bool(true)
	}
	if len(c.Firewall.SourceCIDRs) == 0 {
		c.Firewall.SourceCIDRs = []string{DefaultSourceCIDR}
	}

	if c.Nodes.InstanceType == "" {
		c.Nodes.InstanceType = DefaultInstanceType
	}
	if c.Nodes.Image == "" && c.Nodes.ImageFilter == nil {
		c.Nodes.Image = DefaultImage
	}
	if c.Nodes.ImageFilter != nil && c.Nodes.ImageFilter.Owner == "" {
		c.Nodes.ImageFilter.Owner = DefaultImageFilterOwner
	}
	if c.Nodes.KeyName == "" && c.Nodes.PrivateKeyPath == "" {
		c.Nodes.PrivateKeyPath = DefaultPrivateKeyDir + "/" + c.Name + ".pem"
	}
	if c.Nodes.Workers == nil {
		c.Nodes.Workers = ptr.Int(DefaultWorkers)
	}

	if c.Ray.PythonVersion == "" {
		c.Ray.PythonVersion = DefaultPythonVersion
	}
	if c.Ray.Package == "" {
		c.Ray.Package = DefaultRayPackage
	}
	if c.Ray.Port == 0 {
		c.Ray.Port = DefaultRayPort
	}
	if c.Ray.HeartbeatTimeoutMS == nil {
		c.Ray.HeartbeatTimeoutMS = ptr.Int(DefaultHeartbeatTimeout)
	}
	if c.Ray.Venv == "" {
		c.Ray.Venv = DefaultVenv
	}

	if c.Outputs.File == "" {
		c.Outputs.File = DefaultOutputsFile
	}
	return nil
}

// WorkerCount returns the configured number of workers.
func (c *Config) WorkerCount() int {
	if c.Nodes.Workers == nil {
		return DefaultWorkers
	}
	return *c.Nodes.Workers
}

// HeartbeatTimeout returns the worker heartbeat timeout in milliseconds.
func (c *Config) HeartbeatTimeout() int {
	if c.Ray.HeartbeatTimeoutMS == nil {
		return DefaultHeartbeatTimeout
	}
	return *c.Ray.HeartbeatTimeoutMS
}

// ClusterPortExposed reports whether the Ray port is on the inbound allow-list.
func (c *Config) ClusterPortExposed() bool {
	return ptr.Deref(c.Firewall.ExposeClusterPort, true)
}

// GeneratesKeyPair reports whether apply creates its own key pair.
func (c *Config) GeneratesKeyPair() bool {
	return c.Nodes.KeyName == ""
}
