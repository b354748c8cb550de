package overlay

import (
	"image/color"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/zsiec/facelens/internal/geometry"
)

// assertOpaque checks a fully covered pixel of grey level v, allowing for
// rasterizer rounding.
func assertOpaque(t *testing.T, got color.RGBA, v uint8) {
	t.Helper()
	assert.InDelta(t, 255, int(got.A), 1)
	assert.InDelta(t, int(v), int(got.R), 1)
	assert.InDelta(t, int(v), int(got.G), 1)
	assert.InDelta(t, int(v), int(got.B), 1)
}

func TestImageCanvas_FillRoundRect(t *testing.T) {
	c := NewImageCanvas(120, 120)
	c.FillRoundRect(geometry.DisplayRect{Left: 0, Top: 0, Right: 100, Bottom: 100}, 16, DefaultStyle().BoxColor)

	img := c.Image()
	center := img.RGBAAt(50, 50)
	assert.InDelta(t, 0x4D, int(center.A), 1)
	assert.Greater(t, center.B, center.R, "light blue tint")

	assert.InDelta(t, 0x4D, int(img.RGBAAt(50, 0).A), 1, "straight edge is fully covered")
	assert.Zero(t, img.RGBAAt(0, 0).A, "rounded corner leaves the corner pixel empty")
	assert.Zero(t, img.RGBAAt(110, 110).A, "outside the rect")
}

func TestImageCanvas_DegenerateShapes(t *testing.T) {
	c := NewImageCanvas(10, 10)
	c.FillRoundRect(geometry.DisplayRect{Left: 5, Top: 5, Right: 5, Bottom: 9}, 16, color.White)
	c.FillCircle(5, 5, 0, color.White)
	c.DrawText("", 5, 5, color.White)

	for _, v := range c.Image().Pix {
		assert.Zero(t, v)
	}
}

func TestImageCanvas_FillCircle(t *testing.T) {
	c := NewImageCanvas(40, 40)
	c.FillCircle(20, 20, 10, color.White)

	img := c.Image()
	assertOpaque(t, img.RGBAAt(20, 20), 255)
	assertOpaque(t, img.RGBAAt(25, 20), 255)
	assert.Zero(t, img.RGBAAt(20, 35).A)
	assert.Zero(t, img.RGBAAt(28, 28).A, "corner of the bounding square is outside the circle")
}

func TestImageCanvas_DrawTextCentered(t *testing.T) {
	c := NewImageCanvas(100, 40)
	c.DrawText("Unknown", 50, 20, color.White)

	img := c.Image()
	minX, maxX := img.Bounds().Dx(), -1
	for y := 0; y < img.Bounds().Dy(); y++ {
		for x := 0; x < img.Bounds().Dx(); x++ {
			if img.RGBAAt(x, y).A > 0 {
				if x < minX {
					minX = x
				}
				if x > maxX {
					maxX = x
				}
			}
		}
	}
	assert.GreaterOrEqual(t, maxX, minX, "text painted pixels")
	// 7 glyphs of 7px each span 49px centered on x=50.
	assert.InDelta(t, 50, float64(minX+maxX)/2, 4)
}

func TestImageCanvasOn_DrawsOverExisting(t *testing.T) {
	base := NewImageCanvas(20, 20).Image()
	for i := range base.Pix {
		base.Pix[i] = 0xff
	}
	c := NewImageCanvasOn(base)
	c.FillCircle(10, 10, 5, color.Black)
	assertOpaque(t, base.RGBAAt(10, 10), 0)
	assert.Equal(t, color.RGBA{R: 255, G: 255, B: 255, A: 255}, base.RGBAAt(0, 0))
}
