package geometry

import "fmt"

// Transform scales analysis-space coordinates into display space.
// Both factors are strictly positive, so ordering and axis alignment of
// boxes are preserved.
type Transform struct {
	ScaleX   float64 `json:"scale_x"`
	ScaleY   float64 `json:"scale_y"`
	Display  Size    `json:"display"`
	Analysis Size    `json:"analysis"`
}

// Build derives the transform for a display against the default
// 480x640 analysis resolution.
func Build(displayWidth, displayHeight int) (Transform, error) {
	return BuildFor(Size{Width: displayWidth, Height: displayHeight}, AnalysisSize)
}

// BuildFor derives the transform between an explicit analysis resolution and
// a display. The analysis size must match what the detector is invoked with;
// a mismatch misaligns the overlay without producing an error.
func BuildFor(display, analysis Size) (Transform, error) {
	if err := display.Validate(); err != nil {
		return Transform{}, fmt.Errorf("display: %w", err)
	}
	if err := analysis.Validate(); err != nil {
		return Transform{}, fmt.Errorf("analysis: %w", err)
	}

	return Transform{
		ScaleX:   float64(display.Width) / float64(analysis.Width),
		ScaleY:   float64(display.Height) / float64(analysis.Height),
		Display:  display,
		Analysis: analysis,
	}, nil
}

// Apply maps b into display space.
func (t Transform) Apply(b BoundingBox) DisplayRect {
	return DisplayRect{
		Left:   float64(b.Left) * t.ScaleX,
		Top:    float64(b.Top) * t.ScaleY,
		Right:  float64(b.Right) * t.ScaleX,
		Bottom: float64(b.Bottom) * t.ScaleY,
	}
}
