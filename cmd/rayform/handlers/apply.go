package handlers

import (
	"context"
	"fmt"

	"github.com/imamik/rayform/internal/provisioning"
	"github.com/imamik/rayform/internal/provisioning/compute"
	"github.com/imamik/rayform/internal/provisioning/network"
	"github.com/imamik/rayform/internal/provisioning/outputs"
)

// Apply provisions the deployment.
//
//  1. Loads and validates the configuration
//  2. Runs pre-flight validation
//  3. Ensures the network: VPC, gateway, subnet, routing, security group
//  4. Ensures the head node, then the workers once its address is known
//  5. Publishes the node addresses
//
// Every step looks resources up by name first, so a repeated apply with an
// unchanged configuration is a no-op.
func Apply(ctx context.Context, configPath string) error {
	s, err := newSession(ctx, configPath)
	if err != nil {
		return err
	}
	pub, err := newPublisher(ctx, s.cfg)
	if err != nil {
		return err
	}

	s.logger.Info("applying deployment", "name", s.cfg.Name, "workers", s.cfg.WorkerCount())

	out := outputs.NewProvisioner(outputs.WithPublisher(pub), outputs.WithClock(now))
	pipeline := provisioning.NewPipeline(
		provisioning.NewValidationPhase(),
		network.NewProvisioner(),
		compute.NewProvisioner(),
		out,
	)

	runErr := pipeline.Run(s.pctx)
	s.recordNodes()
	s.writeMetrics()
	if runErr != nil {
		return fmt.Errorf("apply failed: %w", runErr)
	}

	doc, err := outputs.Build(s.cfg, s.pctx.State, now())
	if err != nil {
		return err
	}
	fmt.Fprint(stdout, renderOutputs(doc))
	return nil
}
