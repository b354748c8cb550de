package overlay

import (
	"context"
	"image"
	"sync"
	"sync/atomic"
)

// HeadlessSurface is a display with no screen. Repaint requests are
// coalesced and served by Run, which rasterizes the overlay into an
// in-memory image.
type HeadlessSurface struct {
	mu     sync.RWMutex
	width  int
	height int

	pending  chan struct{}
	requests atomic.Uint64
	paints   atomic.Uint64
	latest   atomic.Pointer[image.RGBA]
}

// NewHeadlessSurface creates a surface reporting the given display size.
func NewHeadlessSurface(width, height int) *HeadlessSurface {
	return &HeadlessSurface{
		width:   width,
		height:  height,
		pending: make(chan struct{}, 1),
	}
}

func (s *HeadlessSurface) Size() (int, int) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.width, s.height
}

// SetSize changes the reported display size. The caller is responsible for
// calling Renderer.Resize.
func (s *HeadlessSurface) SetSize(width, height int) {
	s.mu.Lock()
	s.width, s.height = width, height
	s.mu.Unlock()
}

// RequestRepaint never blocks; requests made while one is pending merge.
func (s *HeadlessSurface) RequestRepaint() {
	s.requests.Add(1)
	select {
	case s.pending <- struct{}{}:
	default:
	}
}

// Requests returns how many repaints were requested.
func (s *HeadlessSurface) Requests() uint64 {
	return s.requests.Load()
}

// Paints returns how many times the overlay was rasterized.
func (s *HeadlessSurface) Paints() uint64 {
	return s.paints.Load()
}

// Latest returns the most recent raster, or nil before the first paint.
func (s *HeadlessSurface) Latest() *image.RGBA {
	return s.latest.Load()
}

// Paint rasterizes r's current state immediately.
func (s *HeadlessSurface) Paint(r *Renderer) *image.RGBA {
	w, h := s.Size()
	c := NewImageCanvas(w, h)
	r.Draw(c)
	s.latest.Store(c.Image())
	s.paints.Add(1)
	return c.Image()
}

// Run services repaint requests for r until ctx is done.
func (s *HeadlessSurface) Run(ctx context.Context, r *Renderer) {
	for {
		select {
		case <-ctx.Done():
			return
		case <-s.pending:
			s.Paint(r)
		}
	}
}
