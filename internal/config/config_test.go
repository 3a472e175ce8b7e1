package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/imamik/rayform/internal/util/ptr"
)

func TestApplyDefaults(t *testing.T) {
	t.Parallel()
	cfg := &Config{Name: "ray-poc"}
	require.NoError(t, cfg.ApplyDefaults())

	assert.Equal(t, "10.0.0.0/16", cfg.Network.CIDR)
	assert.Equal(t, "10.0.1.0/24", cfg.Network.SubnetCIDR)
	assert.True(t, *cfg.Network.EnableDNSSupport)
	assert.True(t, *cfg.Network.EnableDNSHostnames)
	assert.True(t, *cfg.Network.MapPublicIPOnLaunch)
	assert.Equal(t, []int{22, 80, 443}, cfg.Firewall.IngressPorts)
	assert.True(t, cfg.ClusterPortExposed())
	assert.Equal(t, []string{"0.0.0.0/0"}, cfg.Firewall.SourceCIDRs)
	assert.Equal(t, "t2.micro", cfg.Nodes.InstanceType)
	assert.Equal(t, "ami-003c463c8207b4dfa", cfg.Nodes.Image)
	assert.Equal(t, 2, cfg.WorkerCount())
	assert.Equal(t, ".rayform/ray-poc.pem", cfg.Nodes.PrivateKeyPath)
	assert.True(t, cfg.GeneratesKeyPair())
	assert.Equal(t, "3.9", cfg.Ray.PythonVersion)
	assert.Equal(t, 6379, cfg.Ray.Port)
	assert.Equal(t, 60000, cfg.HeartbeatTimeout())
	assert.Equal(t, "ray_env", cfg.Ray.Venv)
	assert.Equal(t, "rayform-outputs.yaml", cfg.Outputs.File)
	require.NoError(t, cfg.Validate())
}

func TestApplyDefaults_KeepsExplicitValues(t *testing.T) {
	t.Parallel()
	cfg := &Config{
		Name:     "ray-poc",
		Network:  NetworkConfig{CIDR: "172.20.0.0/16", MapPublicIPOnLaunch: ptr.Bool(false)},
		Firewall: FirewallConfig{IngressPorts: []int{}, ExposeClusterPort: ptr.Bool(false)},
		Nodes:    NodesConfig{KeyName: "existing", Workers: ptr.Int(0)},
		Ray:      RayConfig{HeartbeatTimeoutMS: ptr.Int(0)},
	}
	require.NoError(t, cfg.ApplyDefaults())

	assert.Equal(t, "172.20.1.0/24", cfg.Network.SubnetCIDR)
	assert.False(t, *cfg.Network.MapPublicIPOnLaunch)
	assert.Empty(t, cfg.Firewall.IngressPorts)
	assert.False(t, cfg.ClusterPortExposed())
	assert.Equal(t, 0, cfg.WorkerCount())
	assert.Equal(t, 0, cfg.HeartbeatTimeout())
	assert.False(t, cfg.GeneratesKeyPair())
	assert.Empty(t, cfg.Nodes.PrivateKeyPath)
}

func TestApplyDefaults_ImageFilterSkipsDefaultImage(t *testing.T) {
	t.Parallel()
	cfg := &Config{Name: "ray-poc", Nodes: NodesConfig{ImageFilter: &ImageFilter{Name: DefaultImageFilterPrefix}}}
	require.NoError(t, cfg.ApplyDefaults())

	assert.Empty(t, cfg.Nodes.Image)
	assert.Equal(t, DefaultImageFilterOwner, cfg.Nodes.ImageFilter.Owner)
}

func TestValidate(t *testing.T) {
	t.Parallel()
	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr string
	}{
		{"valid defaults", func(*Config) {}, ""},
		{"missing name", func(c *Config) { c.Name = "" }, "deployment name is required"},
		{"uppercase name", func(c *Config) { c.Name = "Ray" }, "lowercase"},
		{"subnet outside network", func(c *Config) { c.Network.SubnetCIDR = "192.168.0.0/24" }, "not inside"},
		{"bad network cidr", func(c *Config) { c.Network.CIDR = "10.0.0.0/33" }, "network.cidr"},
		{"bad port", func(c *Config) { c.Firewall.IngressPorts = []int{0} }, "not a valid port"},
		{"duplicate port", func(c *Config) { c.Firewall.IngressPorts = []int{22, 22} }, "listed twice"},
		{"bad source cidr", func(c *Config) { c.Firewall.SourceCIDRs = []string{"everywhere"} }, "source_cidrs"},
		{"negative workers", func(c *Config) { c.Nodes.Workers = ptr.Int(-1) }, "must not be negative"},
		{"not an ami", func(c *Config) { c.Nodes.Image = "ubuntu" }, "not an AMI id"},
		{"bad key algorithm", func(c *Config) { c.Nodes.KeyAlgorithm = "dsa" }, "key_algorithm"},
		{"bad ray port", func(c *Config) { c.Ray.Port = 70000 }, "ray.port"},
		{"bad python", func(c *Config) { c.Ray.PythonVersion = "three" }, "python_version"},
		{"venv with slash", func(c *Config) { c.Ray.Venv = "a/b" }, "ray.venv"},
		{"package injection", func(c *Config) { c.Ray.Package = "ray; rm -rf /" }, "ray.package"},
		{"package substitution", func(c *Config) { c.Ray.Package = "ray$(id)" }, "ray.package"},
		{"package backtick", func(c *Config) { c.Ray.Package = "ray`id`" }, "ray.package"},
		{"package redirect only", func(c *Config) { c.Ray.Package = ">out" }, "ray.package"},
		{"package version pin", func(c *Config) { c.Ray.Package = "ray>=2.9" }, ""},
		{"package extras and range", func(c *Config) { c.Ray.Package = "ray[default,serve]>=2.9,<3" }, ""},
		{"venv with dollar", func(c *Config) { c.Ray.Venv = "$HOME" }, "ray.venv"},
		{"prefix without bucket", func(c *Config) { c.Outputs.S3Prefix = "runs/" }, "s3_bucket"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			cfg := Default("ray-poc")
			tt.mutate(cfg)
			err := cfg.Validate()
			if tt.wantErr == "" {
				assert.NoError(t, err)
				return
			}
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}

func TestValidate_ReportsAllErrors(t *testing.T) {
	t.Parallel()
	cfg := Default("ray-poc")
	cfg.Name = ""
	cfg.Ray.Port = 0
	cfg.Nodes.Workers = ptr.Int(-3)

	err := cfg.Validate()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "name")
	assert.Contains(t, err.Error(), "ray.port")
	assert.Contains(t, err.Error(), "nodes.workers")
}

func TestLoadFromBytes(t *testing.T) {
	t.Parallel()
	cfg, err := LoadFromBytes([]byte(`
name: ray-poc
region: us-east-1
firewall:
  expose_cluster_port: false
nodes:
  workers: 3
  key_name: key-pair-poridhi-poc
ray:
  heartbeat_timeout_ms: 30000
`))
	require.NoError(t, err)

	assert.Equal(t, "us-east-1", cfg.Region)
	assert.False(t, cfg.ClusterPortExposed())
	assert.Equal(t, 3, cfg.WorkerCount())
	assert.Equal(t, "key-pair-poridhi-poc", cfg.Nodes.KeyName)
	assert.Equal(t, 30000, cfg.HeartbeatTimeout())
	assert.Equal(t, "10.0.1.0/24", cfg.Network.SubnetCIDR)
}

func TestLoadFromBytes_Invalid(t *testing.T) {
	t.Parallel()
	_, err := LoadFromBytes([]byte("name: [unclosed"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to parse YAML")

	_, err = LoadFromBytes([]byte("name: ray-poc\nnodes:\n  workers: -1\n"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "configuration validation failed")
}

func TestSaveAndLoad(t *testing.T) {
	t.Parallel()
	path := filepath.Join(t.TempDir(), DefaultConfigFilename)
	cfg := Default("ray-poc")
	cfg.Nodes.Workers = ptr.Int(4)

	require.NoError(t, Save(cfg, path))
	loaded, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, cfg, loaded)
}

func TestLoad_MissingFile(t *testing.T) {
	t.Parallel()
	_, err := Load(filepath.Join(t.TempDir(), "missing.yaml"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to read config file")
}

func TestFindConfigFile_WalksUp(t *testing.T) {
	root := t.TempDir()
	nested := filepath.Join(root, "a", "b")
	require.NoError(t, os.MkdirAll(nested, 0o755))
	require.NoError(t, Save(Default("ray-poc"), filepath.Join(root, DefaultConfigFilename)))

	t.Chdir(nested)

	path, err := FindConfigFile()
	require.NoError(t, err)
	resolvedRoot, _ := filepath.EvalSymlinks(root)
	resolvedPath, _ := filepath.EvalSymlinks(path)
	assert.Equal(t, filepath.Join(resolvedRoot, DefaultConfigFilename), resolvedPath)
}

func TestWizardResult_ToConfig(t *testing.T) {
	t.Parallel()
	cfg := (&WizardResult{
		Name:              "ray-poc",
		Region:            "eu-central-1",
		InstanceType:      "t3.medium",
		Workers:           0,
		ExposeClusterPort: false,
	}).ToConfig()

	require.NoError(t, cfg.Validate())
	assert.Equal(t, "eu-central-1", cfg.Region)
	assert.Equal(t, "t3.medium", cfg.Nodes.InstanceType)
	assert.Equal(t, 0, cfg.WorkerCount())
	assert.False(t, cfg.ClusterPortExposed())
	assert.True(t, cfg.GeneratesKeyPair())
}
