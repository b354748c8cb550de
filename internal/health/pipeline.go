package health

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/zsiec/facelens/internal/admission"
)

// GateStats is satisfied by *admission.Controller.
type GateStats interface {
	Stats() admission.Stats
}

// PipelineChecker watches the admission gate. A frame held longer than the
// stall threshold takes the service down; no frames arriving at all for the
// same period only degrades it, since the camera may simply be idle.
type PipelineChecker struct {
	gate      GateStats
	threshold time.Duration
	now       func() time.Time

	mu       sync.Mutex
	lastSeen uint64
	lastMove time.Time
	last     admission.Stats
}

// NewPipelineChecker creates a checker for gate.
func NewPipelineChecker(gate GateStats, threshold time.Duration) *PipelineChecker {
	return &PipelineChecker{
		gate:      gate,
		threshold: threshold,
		now:       time.Now,
	}
}

func (p *PipelineChecker) Name() string {
	return "pipeline"
}

func (p *PipelineChecker) Check(ctx context.Context) error {
	stats := p.gate.Stats()
	now := p.now()

	p.mu.Lock()
	defer p.mu.Unlock()
	p.last = stats

	if stats.BusyFor > p.threshold {
		return fmt.Errorf("frame analysis stalled for %s", stats.BusyFor.Round(time.Millisecond))
	}

	seen := stats.Admitted + stats.Dropped
	if p.lastMove.IsZero() || seen != p.lastSeen {
		p.lastSeen = seen
		p.lastMove = now
		return nil
	}
	if idle := now.Sub(p.lastMove); idle > p.threshold {
		return Degraded(fmt.Errorf("no frames received for %s", idle.Round(time.Second)))
	}
	return nil
}

// Details reports the gate snapshot taken by the last Check.
func (p *PipelineChecker) Details() map[string]interface{} {
	p.mu.Lock()
	defer p.mu.Unlock()
	return map[string]interface{}{
		"state":       p.last.State,
		"admitted":    p.last.Admitted,
		"dropped":     p.last.Dropped,
		"completed":   p.last.Completed,
		"busy_for_ms": p.last.BusyFor.Milliseconds(),
	}
}
