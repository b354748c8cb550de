package health

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/zsiec/facelens/internal/admission"
)

type fakeGate struct {
	stats admission.Stats
}

func (f *fakeGate) Stats() admission.Stats { return f.stats }

func newTestPipelineChecker(gate *fakeGate, threshold time.Duration) (*PipelineChecker, *time.Time) {
	now := time.Unix(1700000000, 0)
	p := NewPipelineChecker(gate, threshold)
	p.now = func() time.Time { return now }
	return p, &now
}

func TestPipelineChecker_Healthy(t *testing.T) {
	gate := &fakeGate{}
	p, now := newTestPipelineChecker(gate, 10*time.Second)
	assert.Equal(t, "pipeline", p.Name())

	for i := uint64(1); i <= 3; i++ {
		gate.stats.Admitted = i
		gate.stats.Completed = i
		*now = now.Add(5 * time.Second)
		assert.NoError(t, p.Check(context.Background()))
	}

	details := p.Details()
	assert.Equal(t, uint64(3), details["admitted"])
	assert.Equal(t, uint64(3), details["completed"])
}

func TestPipelineChecker_Stalled(t *testing.T) {
	gate := &fakeGate{stats: admission.Stats{
		State:    admission.StateBusy.String(),
		Admitted: 1,
		BusyFor:  30 * time.Second,
	}}
	p, _ := newTestPipelineChecker(gate, 10*time.Second)

	err := p.Check(context.Background())
	require.Error(t, err)
	assert.False(t, IsDegraded(err))
	assert.Contains(t, err.Error(), "stalled")
	assert.Equal(t, int64(30000), p.Details()["busy_for_ms"])
}

func TestPipelineChecker_Idle(t *testing.T) {
	gate := &fakeGate{stats: admission.Stats{Admitted: 4, Completed: 4}}
	p, now := newTestPipelineChecker(gate, 10*time.Second)

	require.NoError(t, p.Check(context.Background()))

	*now = now.Add(5 * time.Second)
	require.NoError(t, p.Check(context.Background()))

	*now = now.Add(10 * time.Second)
	err := p.Check(context.Background())
	require.Error(t, err)
	assert.True(t, IsDegraded(err))
	assert.Contains(t, err.Error(), "no frames received")

	// Dropped frames count as traffic.
	gate.stats.Dropped = 1
	assert.NoError(t, p.Check(context.Background()))
}
