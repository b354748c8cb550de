// Package geometry maps bounding boxes from the detector's fixed analysis
// resolution into display space.
package geometry

import (
	"errors"
	"fmt"
)

// Analysis space is the resolution the face detector is invoked with.
// Every BoundingBox produced by the pipeline is expressed in it.
const (
	AnalysisWidth  = 480
	AnalysisHeight = 640
)

var (
	// ErrInvalidDimensions is returned for non-positive widths or heights.
	ErrInvalidDimensions = errors.New("invalid dimensions")

	// ErrOutOfBounds is returned when a box does not fit inside an image.
	ErrOutOfBounds = errors.New("bounding box out of bounds")
)

// BoundingBox is an axis-aligned rectangle in analysis pixel space.
// Right and Bottom are exclusive edges.
type BoundingBox struct {
	Left   int `json:"left"`
	Top    int `json:"top"`
	Right  int `json:"right"`
	Bottom int `json:"bottom"`
}

// Width returns the horizontal extent of b.
func (b BoundingBox) Width() int { return b.Right - b.Left }

// Height returns the vertical extent of b.
func (b BoundingBox) Height() int { return b.Bottom - b.Top }

// Ordered reports whether left <= right and top <= bottom.
func (b BoundingBox) Ordered() bool {
	return b.Left <= b.Right && b.Top <= b.Bottom
}

// Within checks that b is a non-empty box lying entirely inside a
// width x height image.
func (b BoundingBox) Within(width, height int) error {
	if !b.Ordered() || b.Width() == 0 || b.Height() == 0 {
		return fmt.Errorf("%w: degenerate box %s", ErrOutOfBounds, b)
	}
	if b.Left < 0 || b.Top < 0 || b.Right > width || b.Bottom > height {
		return fmt.Errorf("%w: %s outside %dx%d", ErrOutOfBounds, b, width, height)
	}
	return nil
}

func (b BoundingBox) String() string {
	return fmt.Sprintf("[%d,%d][%d,%d]", b.Left, b.Top, b.Right, b.Bottom)
}

// DisplayRect is a rectangle in display space.
type DisplayRect struct {
	Left   float64 `json:"left"`
	Top    float64 `json:"top"`
	Right  float64 `json:"right"`
	Bottom float64 `json:"bottom"`
}

// CenterX returns the horizontal midpoint of r.
func (r DisplayRect) CenterX() float64 { return (r.Left + r.Right) / 2 }

// CenterY returns the vertical midpoint of r.
func (r DisplayRect) CenterY() float64 { return (r.Top + r.Bottom) / 2 }

// Width returns the horizontal extent of r.
func (r DisplayRect) Width() float64 { return r.Right - r.Left }

// Height returns the vertical extent of r.
func (r DisplayRect) Height() float64 { return r.Bottom - r.Top }

// Size is a width/height pair in pixels.
type Size struct {
	Width  int `json:"width"`
	Height int `json:"height"`
}

// Validate rejects non-positive sizes.
func (s Size) Validate() error {
	if s.Width <= 0 || s.Height <= 0 {
		return fmt.Errorf("%w: %dx%d", ErrInvalidDimensions, s.Width, s.Height)
	}
	return nil
}

// AnalysisSize is the default detector resolution.
var AnalysisSize = Size{Width: AnalysisWidth, Height: AnalysisHeight}
