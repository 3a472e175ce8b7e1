package provisioning

import (
	"context"
)

// Reconcile ensures a named resource and reports whether it was created,
// corrected or already present. get is consulted first so the event reflects
// the state before ensure ran. drifted reports whether an existing resource
// differs from what ensure converges it to; nil means existing resources are
// never modified.
func Reconcile[T any](
	ctx *Context,
	phase, kind, name string,
	get func(context.Context, string) (*T, error),
	ensure func(context.Context) (*T, error),
	id func(*T) string,
	drifted func(*T) bool,
) (*T, error) {
	before, err := get(ctx, name)
	if err != nil {
		LogResourceFailed(ctx.Observer, phase, kind, name, err)
		return nil, err
	}

	res, err := ensure(ctx)
	if err != nil {
		LogResourceFailed(ctx.Observer, phase, kind, name, err)
		return nil, err
	}

	typ := EventResourceCreated
	switch {
	case before == nil:
	case drifted != nil && drifted(before):
		typ = EventResourceUpdated
	default:
		typ = EventResourceExists
	}
	LogResource(ctx.Observer, typ, phase, kind, name, id(res))
	return res, nil
}
