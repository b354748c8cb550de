// Package pixfmt converts between interleaved RGB(A) pixels and the NV21
// semi-planar YUV 4:2:0 layout used by camera buffers.
//
// NV21 layout for a w x h image:
//
//	[0, w*h)                     Y, row-major
//	[w*h, w*h + 2*cw*ch)         V,U pairs, cw = ceil(w/2), ch = ceil(h/2)
package pixfmt

import (
	"fmt"
	"image"

	"github.com/zsiec/facelens/internal/geometry"
)

// ErrInvalidDimensions is returned for non-positive sizes and for buffers
// or planes that are shorter than the geometry requires. It is the same
// sentinel geometry returns, so one errors.Is check covers both packages.
var ErrInvalidDimensions = geometry.ErrInvalidDimensions

// ChromaMode selects how the encoder subsamples chroma.
type ChromaMode int

const (
	// ChromaScan samples V,U at every pixel whose row is even and whose
	// linear scan index is even. Output is bit-compatible with the camera
	// app encoder this pipeline was built against.
	ChromaScan ChromaMode = iota
	// ChromaAverage averages each 2x2 block before converting.
	ChromaAverage
)

// ParseChromaMode maps a config value to a ChromaMode.
func ParseChromaMode(s string) (ChromaMode, error) {
	switch s {
	case "", "scan":
		return ChromaScan, nil
	case "average":
		return ChromaAverage, nil
	default:
		return 0, fmt.Errorf("unknown chroma mode %q", s)
	}
}

func (m ChromaMode) String() string {
	if m == ChromaAverage {
		return "average"
	}
	return "scan"
}

// NV21Size returns the byte length of an NV21 buffer for a w x h image.
func NV21Size(width, height int) int {
	cw, ch := (width+1)/2, (height+1)/2
	return width*height + 2*cw*ch
}

func checkSize(width, height int) error {
	if width <= 0 || height <= 0 {
		return fmt.Errorf("%w: %dx%d", ErrInvalidDimensions, width, height)
	}
	return nil
}

func clamp8(v int) byte {
	if v < 0 {
		return 0
	}
	if v > 255 {
		return 255
	}
	return byte(v)
}

func lumaOf(r, g, b int) byte {
	return clamp8(((66*r + 129*g + 25*b + 128) >> 8) + 16)
}

func chromaOf(r, g, b int) (u, v byte) {
	u = clamp8(((-38*r - 74*g + 112*b + 128) >> 8) + 128)
	v = clamp8(((112*r - 94*g - 18*b + 128) >> 8) + 128)
	return u, v
}

// rgbSource yields 8-bit RGB for the pixel at column x, row y.
type rgbSource func(x, y int) (r, g, b int)

// EncodeNV21 converts img into an NV21 buffer using ChromaScan.
func EncodeNV21(img *image.RGBA) ([]byte, error) {
	return EncodeNV21Mode(img, ChromaScan)
}

// EncodeNV21Mode converts img into an NV21 buffer with the given chroma mode.
func EncodeNV21Mode(img *image.RGBA, mode ChromaMode) ([]byte, error) {
	if img == nil {
		return nil, fmt.Errorf("%w: nil image", ErrInvalidDimensions)
	}
	b := img.Bounds()
	dst := make([]byte, NV21Size(b.Dx(), b.Dy()))
	if err := EncodeNV21Into(dst, img, mode); err != nil {
		return nil, err
	}
	return dst, nil
}

// EncodeNV21Into encodes img into dst, which must hold at least
// NV21Size bytes. Capture loops use it to reuse one buffer per stream.
func EncodeNV21Into(dst []byte, img *image.RGBA, mode ChromaMode) error {
	if img == nil {
		return fmt.Errorf("%w: nil image", ErrInvalidDimensions)
	}
	b := img.Bounds()
	w, h := b.Dx(), b.Dy()
	if err := checkSize(w, h); err != nil {
		return err
	}
	if need := NV21Size(w, h); len(dst) < need {
		return fmt.Errorf("%w: nv21 buffer has %d bytes, need %d", ErrInvalidDimensions, len(dst), need)
	}

	src := func(x, y int) (int, int, int) {
		off := img.PixOffset(b.Min.X+x, b.Min.Y+y)
		p := img.Pix[off : off+3 : off+3]
		return int(p[0]), int(p[1]), int(p[2])
	}

	encode(dst, w, h, src, mode)
	return nil
}

// EncodeARGB converts packed 0xAARRGGBB pixels into an NV21 buffer.
// Alpha is ignored.
func EncodeARGB(argb []uint32, width, height int, mode ChromaMode) ([]byte, error) {
	if err := checkSize(width, height); err != nil {
		return nil, err
	}
	if len(argb) < width*height {
		return nil, fmt.Errorf("%w: %d pixels for %dx%d", ErrInvalidDimensions, len(argb), width, height)
	}

	src := func(x, y int) (int, int, int) {
		p := argb[y*width+x]
		return int(p>>16) & 0xff, int(p>>8) & 0xff, int(p) & 0xff
	}

	dst := make([]byte, NV21Size(width, height))
	encode(dst, width, height, src, mode)
	return dst, nil
}

func encode(dst []byte, w, h int, src rgbSource, mode ChromaMode) {
	yIndex := 0
	uvIndex := w * h
	index := 0

	for j := 0; j < h; j++ {
		for i := 0; i < w; i++ {
			r, g, b := src(i, j)
			dst[yIndex] = lumaOf(r, g, b)
			yIndex++

			if j%2 == 0 && index%2 == 0 {
				var u, v byte
				if mode == ChromaAverage {
					u, v = blockChroma(src, i, j, w, h)
				} else {
					u, v = chromaOf(r, g, b)
				}
				dst[uvIndex] = v
				dst[uvIndex+1] = u
				uvIndex += 2
			}
			index++
		}
	}
}

// blockChroma averages RGB over the 2x2 block anchored at (x, y), clipped
// to the image, and converts the mean.
func blockChroma(src rgbSource, x, y, w, h int) (u, v byte) {
	var rs, gs, bs, n int
	for dy := 0; dy < 2 && y+dy < h; dy++ {
		for dx := 0; dx < 2 && x+dx < w; dx++ {
			r, g, b := src(x+dx, y+dy)
			rs += r
			gs += g
			bs += b
			n++
		}
	}
	return chromaOf((rs+n/2)/n, (gs+n/2)/n, (bs+n/2)/n)
}

// DecodeNV21 converts an NV21 buffer directly to RGBA using BT.601
// limited-range integer coefficients.
func DecodeNV21(buf []byte, width, height int) (*image.RGBA, error) {
	if err := checkSize(width, height); err != nil {
		return nil, err
	}
	if need := NV21Size(width, height); len(buf) < need {
		return nil, fmt.Errorf("%w: nv21 buffer has %d bytes, need %d", ErrInvalidDimensions, len(buf), need)
	}

	img := image.NewRGBA(image.Rect(0, 0, width, height))
	decodeInto(img, buf, width, height)
	return img, nil
}

func decodeInto(img *image.RGBA, buf []byte, width, height int) {
	frameSize := width * height
	chromaStride := 2 * ((width + 1) / 2)

	for j := 0; j < height; j++ {
		uvRow := frameSize + (j/2)*chromaStride
		out := img.Pix[j*img.Stride : j*img.Stride+width*4]

		for i := 0; i < width; i++ {
			ci := uvRow + (i/2)*2
			c := int(buf[j*width+i]) - 16
			if c < 0 {
				c = 0
			}
			e := int(buf[ci]) - 128
			d := int(buf[ci+1]) - 128

			o := i * 4
			out[o] = clamp8((298*c + 409*e + 128) >> 8)
			out[o+1] = clamp8((298*c - 100*d - 208*e + 128) >> 8)
			out[o+2] = clamp8((298*c + 516*d + 128) >> 8)
			out[o+3] = 0xff
		}
	}
}
