package handlers

import (
	"context"
	"fmt"
	"os"

	"github.com/mattn/go-isatty"

	"github.com/imamik/rayform/internal/config"
)

// Factory function variables for init - can be replaced in tests.
var (
	// fileExists checks if a file exists.
	fileExists = func(path string) bool {
		_, err := os.Stat(path)
		return err == nil
	}

	// isInteractive reports whether stdin is a terminal.
	isInteractive = func() bool {
		fd := os.Stdin.Fd()
		return isatty.IsTerminal(fd) || isatty.IsCygwinTerminal(fd)
	}

	// runWizard runs the interactive wizard.
	runWizard = config.RunWizard

	// saveConfig writes the config to a file.
	saveConfig = config.Save
)

// defaultDeploymentName names deployments created without the wizard.
const defaultDeploymentName = "rayform"

// Init runs the configuration wizard and writes the result to outputPath.
// Without a terminal it writes the default configuration instead.
func Init(ctx context.Context, outputPath string) error {
	if fileExists(outputPath) {
		fmt.Fprintf(stdout, "Warning: %s already exists and will be overwritten.\n\n", outputPath)
	}

	var cfg *config.Config
	if isInteractive() {
		result, err := runWizard(ctx)
		if err != nil {
			return err
		}
		cfg = result.ToConfig()
	} else {
		cfg = config.Default(defaultDeploymentName)
	}

	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("wizard produced an invalid configuration: %w", err)
	}
	if err := saveConfig(cfg, outputPath); err != nil {
		return fmt.Errorf("failed to write config: %w", err)
	}

	fmt.Fprint(stdout, renderInitSummary(outputPath, cfg))
	return nil
}
