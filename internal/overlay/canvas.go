package overlay

import (
	"image"
	"image/color"
	"image/draw"

	"golang.org/x/image/font"
	"golang.org/x/image/font/basicfont"
	"golang.org/x/image/math/fixed"
	"golang.org/x/image/vector"

	"github.com/zsiec/facelens/internal/geometry"
)

// Canvas is the drawing surface the renderer paints onto. Coordinates are
// display-space pixels.
type Canvas interface {
	FillRoundRect(r geometry.DisplayRect, radius float64, c color.Color)
	FillCircle(cx, cy, radius float64, c color.Color)
	DrawText(text string, cx, cy float64, c color.Color)
}

// kappa places cubic control points so four segments approximate a circle.
const kappa = 0.5522847498

// ImageCanvas rasterizes onto an RGBA image with source-over compositing.
type ImageCanvas struct {
	img  *image.RGBA
	face font.Face
}

// NewImageCanvas returns a transparent canvas of the given size.
func NewImageCanvas(width, height int) *ImageCanvas {
	return &ImageCanvas{
		img:  image.NewRGBA(image.Rect(0, 0, width, height)),
		face: basicfont.Face7x13,
	}
}

// NewImageCanvasOn draws over an existing image, e.g. a decoded preview frame.
func NewImageCanvasOn(img *image.RGBA) *ImageCanvas {
	return &ImageCanvas{img: img, face: basicfont.Face7x13}
}

// Image returns the backing image.
func (c *ImageCanvas) Image() *image.RGBA {
	return c.img
}

func (c *ImageCanvas) rasterizer() *vector.Rasterizer {
	b := c.img.Bounds()
	z := vector.NewRasterizer(b.Dx(), b.Dy())
	z.DrawOp = draw.Over
	return z
}

func (c *ImageCanvas) fill(z *vector.Rasterizer, col color.Color) {
	b := c.img.Bounds()
	z.Draw(c.img, b, image.NewUniform(col), image.Point{})
}

func (c *ImageCanvas) FillRoundRect(r geometry.DisplayRect, radius float64, col color.Color) {
	w, h := r.Width(), r.Height()
	if w <= 0 || h <= 0 {
		return
	}
	rad := radius
	if rad > w/2 {
		rad = w / 2
	}
	if rad > h/2 {
		rad = h / 2
	}
	if rad < 0 {
		rad = 0
	}

	l, t, rt, bt := float32(r.Left), float32(r.Top), float32(r.Right), float32(r.Bottom)
	k := float32(rad * (1 - kappa))
	q := float32(rad)

	z := c.rasterizer()
	z.MoveTo(l+q, t)
	z.LineTo(rt-q, t)
	z.CubeTo(rt-k, t, rt, t+k, rt, t+q)
	z.LineTo(rt, bt-q)
	z.CubeTo(rt, bt-k, rt-k, bt, rt-q, bt)
	z.LineTo(l+q, bt)
	z.CubeTo(l+k, bt, l, bt-k, l, bt-q)
	z.LineTo(l, t+q)
	z.CubeTo(l, t+k, l+k, t, l+q, t)
	z.ClosePath()
	c.fill(z, col)
}

func (c *ImageCanvas) FillCircle(cx, cy, radius float64, col color.Color) {
	if radius <= 0 {
		return
	}
	x, y, r := float32(cx), float32(cy), float32(radius)
	k := float32(radius * kappa)

	z := c.rasterizer()
	z.MoveTo(x+r, y)
	z.CubeTo(x+r, y+k, x+k, y+r, x, y+r)
	z.CubeTo(x-k, y+r, x-r, y+k, x-r, y)
	z.CubeTo(x-r, y-k, x-k, y-r, x, y-r)
	z.CubeTo(x+k, y-r, x+r, y-k, x+r, y)
	z.ClosePath()
	c.fill(z, col)
}

// DrawText centers text on (cx, cy) using a fixed 7x13 bitmap face.
func (c *ImageCanvas) DrawText(text string, cx, cy float64, col color.Color) {
	if text == "" {
		return
	}
	d := &font.Drawer{
		Dst:  c.img,
		Src:  image.NewUniform(col),
		Face: c.face,
	}
	m := c.face.Metrics()
	width := d.MeasureString(text)
	baseline := fixed.Int26_6(cy*64) + (m.Ascent-m.Descent)/2
	d.Dot = fixed.Point26_6{
		X: fixed.Int26_6(cx*64) - width/2,
		Y: baseline,
	}
	d.DrawString(text)
}
