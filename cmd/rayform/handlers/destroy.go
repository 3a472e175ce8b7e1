package handlers

import (
	"context"
	"fmt"

	"github.com/imamik/rayform/internal/provisioning"
	"github.com/imamik/rayform/internal/provisioning/destroy"
	"github.com/imamik/rayform/internal/provisioning/outputs"
)

// newDestroyProvisioner creates the destroy phase (for testing injection).
var newDestroyProvisioner = func(pub outputs.Publisher) provisioning.Phase {
	return destroy.NewProvisioner(destroy.WithPublisher(pub))
}

// Destroy removes every resource of the deployment.
func Destroy(ctx context.Context, configPath string) error {
	s, err := newSession(ctx, configPath)
	if err != nil {
		return err
	}
	pub, err := newPublisher(ctx, s.cfg)
	if err != nil {
		return err
	}

	s.logger.Info("destroying deployment", "name", s.cfg.Name)

	runErr := provisioning.NewPipeline(newDestroyProvisioner(pub)).Run(s.pctx)
	s.recordNodes()
	s.writeMetrics()
	if runErr != nil {
		return fmt.Errorf("destroy failed: %w", runErr)
	}

	fmt.Fprintf(stdout, "Deployment %s destroyed.\n", s.cfg.Name)
	return nil
}
