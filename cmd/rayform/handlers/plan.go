package handlers

import (
	"context"
	"fmt"

	"github.com/imamik/rayform/internal/provisioning"
	"github.com/imamik/rayform/internal/provisioning/plan"
)

// diffPlan computes the plan (for testing injection).
var diffPlan = plan.Diff

// Plan prints what apply would change. Conflicts are reported as an error
// because apply would fail on them.
func Plan(ctx context.Context, configPath string) error {
	s, err := newSession(ctx, configPath)
	if err != nil {
		return err
	}

	if err := provisioning.NewValidationPhase().Provision(s.pctx); err != nil {
		return err
	}

	p, err := diffPlan(s.pctx)
	s.writeMetrics()
	if err != nil {
		return fmt.Errorf("plan failed: %w", err)
	}

	fmt.Fprint(stdout, renderPlan(s.cfg.Name, p))
	if c := p.Conflicts(); len(c) > 0 {
		return fmt.Errorf("plan has %d conflict(s) apply cannot resolve", len(c))
	}
	return nil
}
