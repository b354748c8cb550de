package frame

import (
	"errors"
	"fmt"
	"time"
)

// ErrInvalidRotation is returned when a rotation outside {0, 90, 180, 270} is used.
var ErrInvalidRotation = errors.New("rotation must be 0, 90, 180, or 270")

// Rotation is a clockwise rotation in degrees.
type Rotation int

const (
	Rotation0   Rotation = 0
	Rotation90  Rotation = 90
	Rotation180 Rotation = 180
	Rotation270 Rotation = 270
)

// ParseRotation validates a rotation expressed in degrees.
func ParseRotation(degrees int) (Rotation, error) {
	switch degrees {
	case 0, 90, 180, 270:
		return Rotation(degrees), nil
	default:
		return 0, fmt.Errorf("%w: got %d", ErrInvalidRotation, degrees)
	}
}

// Validate reports whether r is one of the supported rotations.
func (r Rotation) Validate() error {
	_, err := ParseRotation(int(r))
	return err
}

// SwapsAxes reports whether applying r exchanges width and height.
func (r Rotation) SwapsAxes() bool {
	return r == Rotation90 || r == Rotation270
}

// Plane is one plane of a camera-native image buffer.
type Plane struct {
	Data        []byte
	RowStride   int // bytes between the starts of consecutive rows
	PixelStride int // bytes between consecutive samples in a row
}

// Frame is a single camera acquisition in Y/U/V multi-plane layout.
//
// Planes[0] is luma at full resolution, Planes[1] is U and Planes[2] is V,
// both at half resolution in each dimension. The plane buffers are only
// valid for the duration of the capture callback unless the frame is cloned.
type Frame struct {
	Seq       uint64
	Width     int
	Height    int
	Rotation  Rotation
	Timestamp time.Time
	Planes    [3]Plane
}

// Plane indices.
const (
	PlaneY = 0
	PlaneU = 1
	PlaneV = 2
)

// Clone returns a deep copy of f whose buffers are owned by the caller.
func (f *Frame) Clone() *Frame {
	c := *f
	for i := range f.Planes {
		if f.Planes[i].Data != nil {
			c.Planes[i].Data = append([]byte(nil), f.Planes[i].Data...)
		}
	}
	return &c
}

// ChromaSize returns the dimensions of the U and V planes.
func (f *Frame) ChromaSize() (int, int) {
	return (f.Width + 1) / 2, (f.Height + 1) / 2
}

// Bytes returns the total number of plane bytes carried by f.
func (f *Frame) Bytes() int {
	n := 0
	for _, p := range f.Planes {
		n += len(p.Data)
	}
	return n
}
