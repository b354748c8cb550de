package pixfmt

import (
	"errors"
	"image"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/zsiec/facelens/internal/frame"
	"github.com/zsiec/facelens/internal/geometry"
)

func TestNV21Size(t *testing.T) {
	for w := 1; w <= 9; w++ {
		for h := 1; h <= 9; h++ {
			cw := (w + 1) / 2
			ch := (h + 1) / 2
			assert.Equal(t, w*h+2*cw*ch, NV21Size(w, h))

			img, err := Solid(w, h, 10, 20, 30)
			require.NoError(t, err)
			out, err := EncodeNV21(img)
			require.NoError(t, err)
			assert.Len(t, out, NV21Size(w, h), "%dx%d", w, h)

			avg, err := EncodeNV21Mode(img, ChromaAverage)
			require.NoError(t, err)
			assert.Len(t, avg, NV21Size(w, h), "%dx%d average", w, h)
		}
	}
}

func TestEncodeNV21_KnownVector(t *testing.T) {
	img, err := Solid(2, 2, 255, 0, 0)
	require.NoError(t, err)

	out, err := EncodeNV21(img)
	require.NoError(t, err)
	assert.Equal(t, []byte{82, 82, 82, 82, 240, 90}, out)
}

func TestEncodeNV21_ScanSamplingPicksEvenPixels(t *testing.T) {
	// 3x3 image: every pixel white except the four that carry chroma.
	img, err := Solid(3, 3, 255, 255, 255)
	require.NoError(t, err)
	img.Set(0, 0, rgba(255, 0, 0))
	img.Set(2, 0, rgba(0, 0, 255))
	img.Set(0, 2, rgba(0, 255, 0))
	img.Set(2, 2, rgba(255, 0, 0))

	out, err := EncodeNV21(img)
	require.NoError(t, err)
	require.Len(t, out, 9+8)

	chroma := out[9:]
	assert.Equal(t, []byte{
		240, 90, // red
		110, 240, // blue
		34, 54, // green
		240, 90, // red
	}, chroma)
}

func TestEncodeNV21_AverageMode(t *testing.T) {
	img, err := Solid(2, 2, 255, 0, 0)
	require.NoError(t, err)
	img.Set(1, 0, rgba(0, 0, 255))
	img.Set(0, 1, rgba(0, 0, 255))

	scan, err := EncodeNV21Mode(img, ChromaScan)
	require.NoError(t, err)
	avg, err := EncodeNV21Mode(img, ChromaAverage)
	require.NoError(t, err)

	assert.Equal(t, scan[:4], avg[:4], "luma is independent of chroma mode")
	assert.Equal(t, []byte{240, 90}, scan[4:])
	assert.Equal(t, []byte{175, 165}, avg[4:])
}

func TestEncodeARGB_MatchesRGBA(t *testing.T) {
	const w, h = 5, 3
	img := image.NewRGBA(image.Rect(0, 0, w, h))
	argb := make([]uint32, w*h)
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			r, g, b := uint8(x*50), uint8(y*80), uint8((x+y)*20)
			img.Set(x, y, rgba(r, g, b))
			argb[y*w+x] = 0xff<<24 | uint32(r)<<16 | uint32(g)<<8 | uint32(b)
		}
	}

	fromImg, err := EncodeNV21(img)
	require.NoError(t, err)
	fromARGB, err := EncodeARGB(argb, w, h, ChromaScan)
	require.NoError(t, err)
	assert.Equal(t, fromImg, fromARGB)
}

func TestEncode_InvalidDimensions(t *testing.T) {
	_, err := EncodeARGB(nil, 0, 4, ChromaScan)
	assert.True(t, errors.Is(err, ErrInvalidDimensions))

	_, err = EncodeARGB(make([]uint32, 3), 2, 2, ChromaScan)
	assert.True(t, errors.Is(err, ErrInvalidDimensions), "short pixel slice must not be truncated")

	_, err = EncodeNV21(image.NewRGBA(image.Rect(0, 0, 0, 0)))
	assert.True(t, errors.Is(err, ErrInvalidDimensions))

	_, err = EncodeNV21(nil)
	assert.True(t, errors.Is(err, ErrInvalidDimensions))
}

func TestEncodeNV21Into_ReusesBuffer(t *testing.T) {
	img, err := Solid(4, 4, 200, 40, 90)
	require.NoError(t, err)
	want, err := EncodeNV21(img)
	require.NoError(t, err)

	buf := make([]byte, NV21Size(4, 4))
	for i := range buf {
		buf[i] = 0xAA
	}
	require.NoError(t, EncodeNV21Into(buf, img, ChromaScan))
	assert.Equal(t, want, buf)

	err = EncodeNV21Into(make([]byte, 5), img, ChromaScan)
	assert.True(t, errors.Is(err, ErrInvalidDimensions))
}

func TestDecodeNV21_InvalidDimensions(t *testing.T) {
	_, err := DecodeNV21(make([]byte, 5), 2, 2)
	assert.True(t, errors.Is(err, ErrInvalidDimensions))

	_, err = DecodeNV21(make([]byte, 6), -2, 2)
	assert.True(t, errors.Is(err, ErrInvalidDimensions))
}

func TestInvalidDimensions_SharedWithGeometry(t *testing.T) {
	_, err := geometry.Build(0, 640)
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrInvalidDimensions))

	_, err = DecodeNV21(make([]byte, 4), 0, 2)
	require.Error(t, err)
	assert.True(t, errors.Is(err, geometry.ErrInvalidDimensions))
}

func TestRoundTrip_SolidColours(t *testing.T) {
	colours := [][3]uint8{
		{255, 0, 0}, {0, 255, 0}, {0, 0, 255},
		{128, 128, 128}, {200, 150, 100}, {30, 60, 90},
		{255, 255, 255}, {0, 0, 0}, {66, 135, 245},
	}
	sizes := [][2]int{{4, 4}, {7, 5}, {16, 9}}

	for _, c := range colours {
		for _, s := range sizes {
			w, h := s[0], s[1]
			src, err := Solid(w, h, c[0], c[1], c[2])
			require.NoError(t, err)
			nv21, err := EncodeNV21(src)
			require.NoError(t, err)

			planes, err := SplitNV21(nv21, w, h)
			require.NoError(t, err)
			decoded, err := DecodeNative(&frame.Frame{Width: w, Height: h, Planes: planes})
			require.NoError(t, err)

			again, err := EncodeNV21(decoded)
			require.NoError(t, err)
			for i := 0; i < w*h; i++ {
				assert.InDelta(t, int(nv21[i]), int(again[i]), 1, "colour %v size %dx%d pixel %d", c, w, h, i)
			}
		}
	}
}

func TestDecodeNV21_SolidColour(t *testing.T) {
	src, err := Solid(4, 2, 0, 0, 255)
	require.NoError(t, err)
	nv21, err := EncodeNV21(src)
	require.NoError(t, err)

	img, err := DecodeNV21(nv21, 4, 2)
	require.NoError(t, err)
	r, g, b, a := img.At(3, 1).RGBA()
	assert.Equal(t, uint32(0), r>>8)
	assert.Equal(t, uint32(0), g>>8)
	assert.Equal(t, uint32(255), b>>8)
	assert.Equal(t, uint32(255), a>>8)
}
