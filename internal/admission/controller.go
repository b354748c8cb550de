// Package admission implements the single-flight gate in front of frame
// analysis. At most one frame is analyzed at a time; frames arriving while
// the gate is busy are dropped, never queued, so the capture callback is
// never delayed.
package admission

import (
	"sync"
	"sync/atomic"
	"time"

	"github.com/zsiec/facelens/internal/logger"
	"github.com/zsiec/facelens/internal/metrics"
)

// State is the gate state.
type State int32

const (
	StateIdle State = iota
	StateBusy
)

func (s State) String() string {
	if s == StateBusy {
		return "busy"
	}
	return "idle"
}

// Controller is the admission gate. The zero value is not usable; use New.
type Controller struct {
	state     atomic.Int32
	busySince atomic.Int64 // unix nanos, 0 while idle

	admitted  atomic.Uint64
	dropped   atomic.Uint64
	completed atomic.Uint64

	logger logger.Logger
}

// Stats is a snapshot of gate counters.
type Stats struct {
	State     string        `json:"state"`
	Admitted  uint64        `json:"admitted"`
	Dropped   uint64        `json:"dropped"`
	Completed uint64        `json:"completed"`
	BusyFor   time.Duration `json:"busy_for_ns"`
}

// New creates an idle controller.
func New(log logger.Logger) *Controller {
	if log == nil {
		log = logger.NewNullLogger()
	}
	return &Controller{
		logger: log.WithField("component", "admission"),
	}
}

// TryAdmit moves the gate from Idle to Busy. It returns false, with no
// other effect than counting the drop, when a frame is already in flight.
func (c *Controller) TryAdmit() bool {
	if !c.state.CompareAndSwap(int32(StateIdle), int32(StateBusy)) {
		c.dropped.Add(1)
		metrics.RecordDropped()
		return false
	}

	c.busySince.Store(time.Now().UnixNano())
	c.admitted.Add(1)
	metrics.RecordAdmitted()
	return true
}

// Complete returns the gate to Idle unconditionally. Callers must invoke it
// exactly once per successful TryAdmit; Ticket does that bookkeeping.
func (c *Controller) Complete() {
	c.busySince.Store(0)
	if c.state.Swap(int32(StateIdle)) == int32(StateIdle) {
		c.logger.Warn("Complete called while gate was idle")
		return
	}
	c.completed.Add(1)
	metrics.RecordReleased()
}

// State returns the current gate state.
func (c *Controller) State() State {
	return State(c.state.Load())
}

// BusyFor reports how long the current frame has held the gate.
func (c *Controller) BusyFor() time.Duration {
	since := c.busySince.Load()
	if since == 0 {
		return 0
	}
	return time.Since(time.Unix(0, since))
}

// Stats returns a snapshot of the gate counters.
func (c *Controller) Stats() Stats {
	return Stats{
		State:     c.State().String(),
		Admitted:  c.admitted.Load(),
		Dropped:   c.dropped.Load(),
		Completed: c.completed.Load(),
		BusyFor:   c.BusyFor(),
	}
}

// Ticket is the right to analyze one admitted frame.
type Ticket struct {
	once sync.Once
	c    *Controller
}

// Admit is TryAdmit returning a Ticket whose Release completes the gate.
func (c *Controller) Admit() (*Ticket, bool) {
	if !c.TryAdmit() {
		return nil, false
	}
	return &Ticket{c: c}, true
}

// Release completes the admission. Only the first call has an effect, so it
// is safe to defer Release and also call it early on a known exit path.
func (t *Ticket) Release() {
	t.once.Do(t.c.Complete)
}
