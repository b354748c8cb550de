// Package overlay draws the latest DetectionSet over the live preview.
//
// The renderer is purely reactive: it repaints when a set is published and
// never polls or paces frames itself.
package overlay

import (
	"fmt"
	"image/color"
	"sync/atomic"

	"github.com/zsiec/facelens/internal/detection"
	"github.com/zsiec/facelens/internal/geometry"
	"github.com/zsiec/facelens/internal/metrics"
)

// Surface is the display the overlay is shown on.
type Surface interface {
	Size() (width, height int)
	RequestRepaint()
}

// Style holds the overlay's colours and radii.
type Style struct {
	BoxColor     color.Color
	MarkerColor  color.Color
	TextColor    color.Color
	CornerRadius float64
	MarkerRadius float64
}

// DefaultStyle is a translucent light-blue box (#4D90CAF9) with white
// corner markers and label.
func DefaultStyle() Style {
	return Style{
		BoxColor:     color.NRGBA{R: 0x90, G: 0xCA, B: 0xF9, A: 0x4D},
		MarkerColor:  color.White,
		TextColor:    color.White,
		CornerRadius: 16,
		MarkerRadius: 10,
	}
}

// Renderer holds the most recently published DetectionSet and the
// analysis-to-display transform.
type Renderer struct {
	surface   Surface
	analysis  geometry.Size
	style     Style
	transform atomic.Pointer[geometry.Transform]
	set       atomic.Pointer[detection.DetectionSet]
	publishes atomic.Uint64
}

// NewRenderer builds the transform from the surface's current size.
func NewRenderer(surface Surface, analysis geometry.Size, style Style) (*Renderer, error) {
	if surface == nil {
		return nil, fmt.Errorf("surface is required")
	}
	r := &Renderer{
		surface:  surface,
		analysis: analysis,
		style:    style,
	}
	w, h := surface.Size()
	if err := r.Resize(w, h); err != nil {
		return nil, err
	}
	return r, nil
}

// Resize rebuilds the transform for new display metrics.
func (r *Renderer) Resize(width, height int) error {
	t, err := geometry.BuildFor(geometry.Size{Width: width, Height: height}, r.analysis)
	if err != nil {
		return fmt.Errorf("overlay transform: %w", err)
	}
	r.transform.Store(&t)
	return nil
}

// Transform returns the current analysis-to-display transform.
func (r *Renderer) Transform() geometry.Transform {
	return *r.transform.Load()
}

// Publish replaces the current set and asks the surface to repaint.
func (r *Renderer) Publish(set *detection.DetectionSet) {
	r.set.Store(set)
	r.publishes.Add(1)
	metrics.IncrementRepaints()
	r.surface.RequestRepaint()
}

// Current returns the set that the next Draw will paint, or nil.
func (r *Renderer) Current() *detection.DetectionSet {
	return r.set.Load()
}

// Publishes returns how many sets have been published.
func (r *Renderer) Publishes() uint64 {
	return r.publishes.Load()
}

// Placement is a prediction mapped into display space.
type Placement struct {
	Rect       geometry.DisplayRect `json:"rect"`
	Label      string               `json:"label"`
	Confidence float32              `json:"confidence"`
}

// Placements maps the current set into display space.
func (r *Renderer) Placements() []Placement {
	set := r.set.Load()
	if set == nil {
		return nil
	}
	t := r.transform.Load()
	out := make([]Placement, 0, len(set.Predictions))
	for _, p := range set.Predictions {
		out = append(out, Placement{
			Rect:       t.Apply(p.Box),
			Label:      p.Label,
			Confidence: p.Confidence,
		})
	}
	return out
}

// Draw paints every prediction of the current set. It is idempotent and
// draws nothing before the first publish.
func (r *Renderer) Draw(c Canvas) {
	for _, p := range r.Placements() {
		c.FillRoundRect(p.Rect, r.style.CornerRadius, r.style.BoxColor)
		c.FillCircle(p.Rect.Left, p.Rect.Top, r.style.MarkerRadius, r.style.MarkerColor)
		c.FillCircle(p.Rect.Right, p.Rect.Bottom, r.style.MarkerRadius, r.style.MarkerColor)
		c.DrawText(p.Label, p.Rect.CenterX(), p.Rect.CenterY(), r.style.TextColor)
	}
}
