package pixfmt

import (
	"fmt"
	"image"
	"sync"

	"github.com/zsiec/facelens/internal/frame"
)

// scratchPool recycles NV21 staging buffers between frames.
var scratchPool = sync.Pool{
	New: func() interface{} {
		b := make([]byte, 0, NV21Size(640, 480))
		return &b
	},
}

func getScratch(n int) *[]byte {
	bp := scratchPool.Get().(*[]byte)
	if cap(*bp) < n {
		*bp = make([]byte, n)
	}
	*bp = (*bp)[:n]
	return bp
}

func putScratch(bp *[]byte) {
	scratchPool.Put(bp)
}

// planeSpan returns the number of bytes a plane must hold to provide
// rows x cols samples at the given strides.
func planeSpan(p frame.Plane, cols, rows int) int {
	return (rows-1)*p.RowStride + (cols-1)*p.PixelStride + 1
}

func checkPlane(name string, p frame.Plane, cols, rows int) error {
	if p.RowStride <= 0 || p.PixelStride <= 0 {
		return fmt.Errorf("%w: %s plane strides row=%d pixel=%d", ErrInvalidDimensions, name, p.RowStride, p.PixelStride)
	}
	if p.RowStride < (cols-1)*p.PixelStride+1 {
		return fmt.Errorf("%w: %s plane row stride %d too small for %d samples", ErrInvalidDimensions, name, p.RowStride, cols)
	}
	if need := planeSpan(p, cols, rows); len(p.Data) < need {
		return fmt.Errorf("%w: %s plane has %d bytes, need %d", ErrInvalidDimensions, name, len(p.Data), need)
	}
	return nil
}

// PackNV21 assembles the frame's Y, V and U planes into dst, which must be
// at least NV21Size(f.Width, f.Height) bytes. Row and pixel strides are
// honoured; padding bytes are never copied.
func PackNV21(dst []byte, f *frame.Frame) error {
	if f == nil {
		return fmt.Errorf("%w: nil frame", ErrInvalidDimensions)
	}
	if err := checkSize(f.Width, f.Height); err != nil {
		return err
	}
	if need := NV21Size(f.Width, f.Height); len(dst) < need {
		return fmt.Errorf("%w: destination has %d bytes, need %d", ErrInvalidDimensions, len(dst), need)
	}

	yp, up, vp := f.Planes[frame.PlaneY], f.Planes[frame.PlaneU], f.Planes[frame.PlaneV]
	cw, ch := f.ChromaSize()

	if err := checkPlane("Y", yp, f.Width, f.Height); err != nil {
		return err
	}
	if err := checkPlane("U", up, cw, ch); err != nil {
		return err
	}
	if err := checkPlane("V", vp, cw, ch); err != nil {
		return err
	}

	w := f.Width
	for row := 0; row < f.Height; row++ {
		src := yp.Data[row*yp.RowStride:]
		out := dst[row*w : row*w+w]
		if yp.PixelStride == 1 {
			copy(out, src[:w])
			continue
		}
		for col := range out {
			out[col] = src[col*yp.PixelStride]
		}
	}

	uv := dst[w*f.Height:]
	for row := 0; row < ch; row++ {
		vRow := vp.Data[row*vp.RowStride:]
		uRow := up.Data[row*up.RowStride:]
		out := uv[row*2*cw : (row+1)*2*cw]
		for col := 0; col < cw; col++ {
			out[2*col] = vRow[col*vp.PixelStride]
			out[2*col+1] = uRow[col*up.PixelStride]
		}
	}

	return nil
}

// DecodeNative converts a camera-native multi-plane frame into RGBA.
// The planes are packed into NV21 and converted directly; there is no
// lossy intermediate encoding.
func DecodeNative(f *frame.Frame) (*image.RGBA, error) {
	if f == nil {
		return nil, fmt.Errorf("%w: nil frame", ErrInvalidDimensions)
	}
	if err := checkSize(f.Width, f.Height); err != nil {
		return nil, err
	}

	bp := getScratch(NV21Size(f.Width, f.Height))
	defer putScratch(bp)

	if err := PackNV21(*bp, f); err != nil {
		return nil, err
	}

	img := image.NewRGBA(image.Rect(0, 0, f.Width, f.Height))
	decodeInto(img, *bp, f.Width, f.Height)
	return img, nil
}

// SplitNV21 builds frame planes that alias an NV21 buffer the way camera
// HALs expose semi-planar images: V and U planes share the interleaved
// chroma area with a pixel stride of 2.
func SplitNV21(buf []byte, width, height int) ([3]frame.Plane, error) {
	var planes [3]frame.Plane
	if err := checkSize(width, height); err != nil {
		return planes, err
	}
	need := NV21Size(width, height)
	if len(buf) < need {
		return planes, fmt.Errorf("%w: nv21 buffer has %d bytes, need %d", ErrInvalidDimensions, len(buf), need)
	}

	ySize := width * height
	cw := (width + 1) / 2
	planes[frame.PlaneY] = frame.Plane{Data: buf[:ySize], RowStride: width, PixelStride: 1}
	planes[frame.PlaneV] = frame.Plane{Data: buf[ySize : need-1], RowStride: 2 * cw, PixelStride: 2}
	planes[frame.PlaneU] = frame.Plane{Data: buf[ySize+1 : need], RowStride: 2 * cw, PixelStride: 2}
	return planes, nil
}
