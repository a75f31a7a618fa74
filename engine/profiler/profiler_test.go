package profiler

import (
	"bytes"
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestProfiler_RecordBatchAccumulates(t *testing.T) {
	p := NewProfiler(WithUpdateInterval(time.Hour))

	p.RecordBatch(10, 40, 8, 2*time.Millisecond)
	p.RecordBatch(6, 12, 6, 4*time.Millisecond)

	s := p.Snapshot()
	assert.Equal(t, 2, s.Batches)
	assert.Equal(t, 16, s.Chains)
	assert.Equal(t, 52, s.Iterations)
	assert.Equal(t, 14, s.Converged)
	assert.Equal(t, 6*time.Millisecond, s.SolveTime)
	assert.Equal(t, 4*time.Millisecond, s.MaxBatch)
	assert.Equal(t, 3*time.Millisecond, s.AverageBatch())
}

func TestProfiler_TickHonorsInterval(t *testing.T) {
	var out bytes.Buffer
	logger := slog.New(slog.NewTextHandler(&out, nil))

	p := NewProfiler(WithUpdateInterval(time.Hour), WithLogger(logger))
	p.RecordBatch(1, 1, 1, time.Millisecond)
	assert.False(t, p.Tick())
	assert.Empty(t, out.String())

	p.lastTime = time.Now().Add(-2 * time.Hour)
	require.True(t, p.Tick())
	assert.Contains(t, out.String(), "ik profiler")
	assert.Contains(t, out.String(), "chains=1")

	assert.Zero(t, p.Snapshot().Batches)
}

func TestProfiler_NilRecordIsNoop(t *testing.T) {
	var p *Profiler
	assert.NotPanics(t, func() { p.RecordBatch(1, 1, 1, time.Millisecond) })
}

func TestSnapshot_ZeroValues(t *testing.T) {
	var s Snapshot
	assert.Zero(t, s.ChainsPerSecond())
	assert.Zero(t, s.AverageBatch())
}
