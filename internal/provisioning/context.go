package provisioning

import (
	"context"

	"github.com/imamik/rayform/internal/config"
	"github.com/imamik/rayform/internal/platform/awscloud"
	"github.com/imamik/rayform/internal/topology"
)

// Context wraps all dependencies and state needed for a provisioning phase.
type Context struct {
	context.Context
	Config   *config.Config
	Topology *topology.Topology
	State    *State
	Infra    awscloud.InfrastructureManager
	Observer Observer
	Logger   Logger
	Timeouts *config.Timeouts
}

// NewContext creates a new provisioning context. A nil observer discards
// all events.
func NewContext(
	ctx context.Context,
	cfg *config.Config,
	topo *topology.Topology,
	infra awscloud.InfrastructureManager,
	observer Observer,
) *Context {
	if observer == nil {
		observer = NewHCLogObserver(nil, nil)
	}
	return &Context{
		Context:  ctx,
		Config:   cfg,
		Topology: topo,
		State:    NewState(),
		Infra:    infra,
		Observer: observer,
		Logger:   observer,
		Timeouts: config.LoadTimeouts(),
	}
}
