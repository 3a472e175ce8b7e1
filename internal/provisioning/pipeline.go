package provisioning

import (
	"fmt"
	"time"
)

// Pipeline runs phases in order and stops at the first failure.
type Pipeline struct {
	Phases []Phase
}

// NewPipeline creates a pipeline from phases.
func NewPipeline(phases ...Phase) *Pipeline {
	return &Pipeline{Phases: phases}
}

// Run executes every phase sequentially.
func (p *Pipeline) Run(ctx *Context) error {
	start := time.Now()
	ctx.Observer.Printf("Starting provisioning with %d phases...", len(p.Phases))

	for i, phase := range p.Phases {
		if err := ctx.Err(); err != nil {
			return fmt.Errorf("%s phase not started: %w", phase.Name(), err)
		}

		phaseStart := time.Now()
		LogPhaseStart(ctx.Observer, phase.Name())
		ctx.Observer.Progress(phase.Name(), i+1, len(p.Phases))

		if err := phase.Provision(ctx); err != nil {
			LogPhaseFailed(ctx.Observer, phase.Name(), err)
			return fmt.Errorf("%s phase failed: %w", phase.Name(), err)
		}

		LogPhaseComplete(ctx.Observer, phase.Name(), time.Since(phaseStart))
	}

	ctx.Observer.Printf("Provisioning completed in %v", time.Since(start).Round(time.Millisecond))
	return nil
}

// phaseFunc adapts a function to the Phase interface.
type phaseFunc struct {
	name string
	fn   func(*Context) error
}

// PhaseFunc returns a Phase that calls fn.
func PhaseFunc(name string, fn func(*Context) error) Phase {
	return phaseFunc{name: name, fn: fn}
}

func (p phaseFunc) Name() string                 { return p.name }
func (p phaseFunc) Provision(ctx *Context) error { return p.fn(ctx) }
