package async

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRunParallel_Success(t *testing.T) {
	t.Parallel()
	var count atomic.Int32

	tasks := make([]Task, 3)
	for i := range tasks {
		tasks[i] = Task{Name: "task", Func: func(_ context.Context) error {
			count.Add(1)
			return nil
		}}
	}

	require.NoError(t, RunParallel(context.Background(), tasks))
	assert.Equal(t, int32(3), count.Load())
}

func TestRunParallel_EmptyTasks(t *testing.T) {
	t.Parallel()
	assert.NoError(t, RunParallel(context.Background(), nil))
	assert.NoError(t, RunParallel(context.Background(), []Task{}))
}

func TestRunParallel_MultipleErrors(t *testing.T) {
	t.Parallel()
	err1 := errors.New("error 1")
	err2 := errors.New("error 2")

	err := RunParallel(context.Background(), []Task{
		{Name: "ok", Func: func(_ context.Context) error { return nil }},
		{Name: "worker-1", Func: func(_ context.Context) error { return err1 }},
		{Name: "worker-2", Func: func(_ context.Context) error { return err2 }},
	})

	require.Error(t, err)
	assert.ErrorIs(t, err, err1)
	assert.ErrorIs(t, err, err2)
	assert.Contains(t, err.Error(), "worker-1")
	assert.Contains(t, err.Error(), "worker-2")
	assert.NotContains(t, err.Error(), "ok")
}

func TestRunParallel_ContextCancellation(t *testing.T) {
	t.Parallel()
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	err := RunParallel(ctx, []Task{
		{Name: "task", Func: func(ctx context.Context) error {
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(time.Second):
				return nil
			}
		}},
	})

	assert.ErrorIs(t, err, context.Canceled)
}

func TestRunParallel_WaitsForAllTasks(t *testing.T) {
	t.Parallel()
	var completed atomic.Int32

	err := RunParallel(context.Background(), []Task{
		{Name: "fast-fail", Func: func(_ context.Context) error { return errors.New("fast fail") }},
		{Name: "slow-1", Func: func(_ context.Context) error {
			time.Sleep(30 * time.Millisecond)
			completed.Add(1)
			return nil
		}},
		{Name: "slow-2", Func: func(_ context.Context) error {
			time.Sleep(30 * time.Millisecond)
			completed.Add(1)
			return nil
		}},
	})

	require.Error(t, err)
	assert.Equal(t, int32(2), completed.Load())
}

func TestRunParallel_Concurrent(t *testing.T) {
	t.Parallel()
	var maxConcurrent, current atomic.Int32

	tasks := make([]Task, 5)
	for i := range tasks {
		tasks[i] = Task{Name: "task", Func: func(_ context.Context) error {
			c := current.Add(1)
			for {
				old := maxConcurrent.Load()
				if c <= old || maxConcurrent.CompareAndSwap(old, c) {
					break
				}
			}
			time.Sleep(50 * time.Millisecond)
			current.Add(-1)
			return nil
		}}
	}

	require.NoError(t, RunParallel(context.Background(), tasks))
	assert.Equal(t, int32(5), maxConcurrent.Load())
}
