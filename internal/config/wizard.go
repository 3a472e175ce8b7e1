package config

import (
	"context"
	"fmt"
	"strconv"

	"github.com/charmbracelet/huh"

	"github.com/imamik/rayform/internal/util/ptr"
)

// WizardResult holds the user's choices from the init wizard.
type WizardResult struct {
	Name              string
	Region            string
	InstanceType      string
	Workers           int
	ExposeClusterPort bool
	KeyName           string
}

// Regions offered by the wizard. Any region is accepted in the config file.
var wizardRegions = []string{"us-east-1", "us-east-2", "us-west-2", "eu-central-1", "eu-west-1", "ap-southeast-1"}

// RunWizard asks for the handful of values that differ between deployments.
func RunWizard(ctx context.Context) (*WizardResult, error) {
	result := &WizardResult{
		Region:            "us-east-1",
		InstanceType:      DefaultInstanceType,
		Workers:           DefaultWorkers,
		ExposeClusterPort: true,
	}

	regionOptions := make([]huh.Option[string], 0, len(wizardRegions))
	for _, r := range wizardRegions {
		regionOptions = append(regionOptions, huh.NewOption(r, r))
	}

	workerOptions := make([]huh.Option[int], 0, 9)
	for i := 0; i <= 8; i++ {
		workerOptions = append(workerOptions, huh.NewOption(strconv.Itoa(i)+" workers", i))
	}

	form := huh.NewForm(
		huh.NewGroup(
			huh.NewInput().
				Title("Deployment name").
				Description("Prefix for every AWS resource (DNS-safe, lowercase)").
				Placeholder("ray-poc").
				Value(&result.Name).
				Validate(ValidateName),
			huh.NewSelect[string]().
				Title("Region").
				Options(regionOptions...).
				Value(&result.Region),
		),
		huh.NewGroup(
			huh.NewSelect[string]().
				Title("Instance type").
				Description("Used for the head node and every worker").
				Options(
					huh.NewOption("t2.micro (1 vCPU, 1 GiB)", "t2.micro"),
					huh.NewOption("t3.medium (2 vCPU, 4 GiB)", "t3.medium"),
					huh.NewOption("m5.large (2 vCPU, 8 GiB)", "m5.large"),
					huh.NewOption("m5.xlarge (4 vCPU, 16 GiB)", "m5.xlarge"),
				).
				Value(&result.InstanceType),
			huh.NewSelect[int]().
				Title("Number of workers").
				Options(workerOptions...).
				Value(&result.Workers),
		),
		huh.NewGroup(
			huh.NewConfirm().
				Title("Expose the Ray port to the source CIDRs?").
				Description("Workers join over the private network either way").
				Value(&result.ExposeClusterPort),
			huh.NewInput().
				Title("Existing EC2 key pair (optional)").
				Description("Leave empty to generate one").
				Value(&result.KeyName),
		),
	)

	if err := form.RunWithContext(ctx); err != nil {
		return nil, fmt.Errorf("wizard canceled: %w", err)
	}

	return result, nil
}

// ToConfig converts the wizard result to a Config with defaults applied.
func (r *WizardResult) ToConfig() *Config {
	cfg := &Config{
		Name:   r.Name,
		Region: r.Region,
		Firewall: FirewallConfig{
			ExposeClusterPort: ptr.Bool(r.ExposeClusterPort),
		},
		Nodes: NodesConfig{
			InstanceType: r.InstanceType,
			KeyName:      r.KeyName,
			Workers:      ptr.Int(r.Workers),
		},
	}
	_ = cfg.ApplyDefaults()
	return cfg
}
