package pixfmt

import (
	"fmt"
	"image"

	"github.com/zsiec/facelens/internal/frame"
	"github.com/zsiec/facelens/internal/geometry"
)

// Rotate returns img rotated clockwise by r. Rotation0 returns img itself.
func Rotate(img *image.RGBA, r frame.Rotation) (*image.RGBA, error) {
	if err := r.Validate(); err != nil {
		return nil, err
	}
	if r == frame.Rotation0 {
		return img, nil
	}

	b := img.Bounds()
	w, h := b.Dx(), b.Dy()
	dw, dh := w, h
	if r.SwapsAxes() {
		dw, dh = h, w
	}
	dst := image.NewRGBA(image.Rect(0, 0, dw, dh))

	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			var dx, dy int
			switch r {
			case frame.Rotation90:
				dx, dy = h-1-y, x
			case frame.Rotation180:
				dx, dy = w-1-x, h-1-y
			case frame.Rotation270:
				dx, dy = y, w-1-x
			}
			so := img.PixOffset(b.Min.X+x, b.Min.Y+y)
			do := dst.PixOffset(dx, dy)
			copy(dst.Pix[do:do+4], img.Pix[so:so+4])
		}
	}
	return dst, nil
}

// Crop copies the region of img described by box. The box must be
// non-empty and lie inside the image.
func Crop(img *image.RGBA, box geometry.BoundingBox) (*image.RGBA, error) {
	b := img.Bounds()
	if err := box.Within(b.Dx(), b.Dy()); err != nil {
		return nil, err
	}

	dst := image.NewRGBA(image.Rect(0, 0, box.Width(), box.Height()))
	rowBytes := box.Width() * 4
	for y := 0; y < box.Height(); y++ {
		so := img.PixOffset(b.Min.X+box.Left, b.Min.Y+box.Top+y)
		copy(dst.Pix[y*dst.Stride:y*dst.Stride+rowBytes], img.Pix[so:so+rowBytes])
	}
	return dst, nil
}

// Solid returns a w x h image filled with one opaque colour.
func Solid(width, height int, r, g, b uint8) (*image.RGBA, error) {
	if err := checkSize(width, height); err != nil {
		return nil, fmt.Errorf("solid: %w", err)
	}
	img := image.NewRGBA(image.Rect(0, 0, width, height))
	for i := 0; i < len(img.Pix); i += 4 {
		img.Pix[i] = r
		img.Pix[i+1] = g
		img.Pix[i+2] = b
		img.Pix[i+3] = 0xff
	}
	return img, nil
}
