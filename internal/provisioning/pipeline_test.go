package provisioning

import (
	"context"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testContext(observer *MockObserver) *Context {
	return &Context{
		Context:  context.Background(),
		Observer: observer,
		Logger:   observer,
	}
}

func TestNewPipeline(t *testing.T) {
	t.Parallel()
	p1 := PhaseFunc("phase-1", func(*Context) error { return nil })
	p2 := PhaseFunc("phase-2", func(*Context) error { return nil })

	pipeline := NewPipeline(p1, p2)

	require.NotNil(t, pipeline)
	assert.Len(t, pipeline.Phases, 2)
	assert.Equal(t, "phase-1", pipeline.Phases[0].Name())
	assert.Equal(t, "phase-2", pipeline.Phases[1].Name())
}

func TestPipeline_Run_Success(t *testing.T) {
	t.Parallel()
	var executed []string
	record := func(name string) Phase {
		return PhaseFunc(name, func(*Context) error {
			executed = append(executed, name)
			return nil
		})
	}

	err := NewPipeline(record("network"), record("compute"), record("outputs")).Run(testContext(NewMockObserver()))

	require.NoError(t, err)
	assert.Equal(t, []string{"network", "compute", "outputs"}, executed)
}

func TestPipeline_Run_StopsOnError(t *testing.T) {
	t.Parallel()
	var executed []string

	pipeline := NewPipeline(
		PhaseFunc("network", func(*Context) error { executed = append(executed, "network"); return nil }),
		PhaseFunc("compute", func(*Context) error { return fmt.Errorf("insufficient capacity") }),
		PhaseFunc("outputs", func(*Context) error { executed = append(executed, "outputs"); return nil }),
	)

	err := pipeline.Run(testContext(NewMockObserver()))

	require.Error(t, err)
	assert.Contains(t, err.Error(), "compute phase failed")
	assert.Contains(t, err.Error(), "insufficient capacity")
	assert.Equal(t, []string{"network"}, executed)
}

func TestPipeline_Run_Empty(t *testing.T) {
	t.Parallel()
	require.NoError(t, NewPipeline().Run(testContext(NewMockObserver())))
}

func TestPipeline_Run_CancelledContext(t *testing.T) {
	t.Parallel()
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	called := false
	pctx := testContext(NewMockObserver())
	pctx.Context = ctx

	err := NewPipeline(PhaseFunc("network", func(*Context) error { called = true; return nil })).Run(pctx)

	require.ErrorIs(t, err, context.Canceled)
	assert.False(t, called)
}

func TestPipeline_Run_LogsPhaseEvents(t *testing.T) {
	t.Parallel()
	observer := NewMockObserver()

	require.NoError(t, NewPipeline(PhaseFunc("test", func(*Context) error { return nil })).Run(testContext(observer)))
	assert.Contains(t, observer.eventTypes(), EventPhaseStarted)
	assert.Contains(t, observer.eventTypes(), EventPhaseCompleted)

	failing := NewMockObserver()
	_ = NewPipeline(PhaseFunc("failing", func(*Context) error { return fmt.Errorf("boom") })).Run(testContext(failing))
	assert.Contains(t, failing.eventTypes(), EventPhaseFailed)
	assert.NotContains(t, failing.eventTypes(), EventPhaseCompleted)
}
