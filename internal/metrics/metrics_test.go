package metrics

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRecordOperation(t *testing.T) {
	r := NewRecorder()

	r.RecordOperation("vpc", ResultCreated)
	r.RecordOperation("vpc", ResultCreated)
	r.RecordOperation("subnet", ResultExists)

	assert.Equal(t, float64(2), testutil.ToFloat64(r.resourceOperations.WithLabelValues("vpc", ResultCreated)))
	assert.Equal(t, float64(1), testutil.ToFloat64(r.resourceOperations.WithLabelValues("subnet", ResultExists)))
	assert.Equal(t, 2, testutil.CollectAndCount(r.resourceOperations))
}

func TestSetNodes(t *testing.T) {
	r := NewRecorder()

	r.SetNodes("head", 1)
	r.SetNodes("worker", 3)
	r.SetNodes("worker", 2)

	assert.Equal(t, float64(1), testutil.ToFloat64(r.nodes.WithLabelValues("head")))
	assert.Equal(t, float64(2), testutil.ToFloat64(r.nodes.WithLabelValues("worker")))
}

func TestObservePhase(t *testing.T) {
	r := NewRecorder()
	r.ObservePhase("network", 2*time.Second)
	assert.Equal(t, 1, testutil.CollectAndCount(r.phaseDuration))
}

func TestNilRecorder(t *testing.T) {
	var r *Recorder
	assert.NotPanics(t, func() {
		r.RecordOperation("vpc", ResultCreated)
		r.ObservePhase("network", time.Second)
		r.SetNodes("worker", 1)
	})
}

func TestWriteTextfile(t *testing.T) {
	r := NewRecorder()
	r.RecordOperation("instance", ResultCreated)
	r.SetNodes("worker", 2)

	path := filepath.Join(t.TempDir(), "rayform.prom")
	require.NoError(t, r.WriteTextfile(path, time.Unix(1700000000, 0)))

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	out := string(data)
	assert.Contains(t, out, `rayform_resource_operations_total{kind="instance",result="created"} 1`)
	assert.Contains(t, out, `rayform_nodes{role="worker"} 2`)
	assert.Contains(t, out, "rayform_last_run_timestamp_seconds ")
}

func TestWriteTextfile_BadPath(t *testing.T) {
	r := NewRecorder()
	err := r.WriteTextfile(filepath.Join(t.TempDir(), "missing", "x.prom"), time.Now())
	assert.Error(t, err)
}
