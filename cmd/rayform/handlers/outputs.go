package handlers

import (
	"context"
	"fmt"

	"github.com/imamik/rayform/internal/provisioning/outputs"
)

// Outputs prints the published node addresses as a table, YAML or JSON.
func Outputs(ctx context.Context, configPath, format string) error {
	cfg, err := loadConfig(configPath)
	if err != nil {
		return err
	}
	pub, err := newPublisher(ctx, cfg)
	if err != nil {
		return err
	}

	doc, err := outputs.Read(ctx, pub, cfg)
	if err != nil {
		return fmt.Errorf("no outputs for %s (has apply run?): %w", cfg.Name, err)
	}

	if format == "" {
		fmt.Fprint(stdout, renderOutputs(doc))
		return nil
	}
	data, err := outputs.Encode(doc, format)
	if err != nil {
		return err
	}
	_, err = stdout.Write(data)
	return err
}
