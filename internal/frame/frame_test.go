package frame

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseRotation(t *testing.T) {
	for _, deg := range []int{0, 90, 180, 270} {
		r, err := ParseRotation(deg)
		require.NoError(t, err)
		assert.Equal(t, Rotation(deg), r)
	}

	for _, deg := range []int{-90, 45, 360} {
		_, err := ParseRotation(deg)
		assert.True(t, errors.Is(err, ErrInvalidRotation), "degrees %d", deg)
	}
}

func TestRotationSwapsAxes(t *testing.T) {
	assert.False(t, Rotation0.SwapsAxes())
	assert.True(t, Rotation90.SwapsAxes())
	assert.False(t, Rotation180.SwapsAxes())
	assert.True(t, Rotation270.SwapsAxes())
}

func TestFrameClone(t *testing.T) {
	f := &Frame{
		Seq:    7,
		Width:  2,
		Height: 2,
		Planes: [3]Plane{
			{Data: []byte{1, 2, 3, 4}, RowStride: 2, PixelStride: 1},
			{Data: []byte{5}, RowStride: 1, PixelStride: 1},
			{Data: []byte{6}, RowStride: 1, PixelStride: 1},
		},
	}

	c := f.Clone()
	c.Planes[PlaneY].Data[0] = 99

	assert.Equal(t, byte(1), f.Planes[PlaneY].Data[0])
	assert.Equal(t, uint64(7), c.Seq)
	assert.Equal(t, 6, c.Bytes())
}

func TestChromaSize(t *testing.T) {
	f := &Frame{Width: 5, Height: 3}
	w, h := f.ChromaSize()
	assert.Equal(t, 3, w)
	assert.Equal(t, 2, h)
}
