package capture

import (
	"context"
	"fmt"
	"image"
	"math"
	"time"

	"golang.org/x/time/rate"

	"github.com/zsiec/facelens/internal/frame"
	"github.com/zsiec/facelens/internal/logger"
	"github.com/zsiec/facelens/internal/metrics"
	"github.com/zsiec/facelens/internal/pixfmt"
)

// Synthetic scene colours.
var (
	backgroundRGB = [3]uint8{88, 108, 128}
	skinRGB       = [3]uint8{224, 172, 125}
	featureRGB    = [3]uint8{36, 28, 24}
)

// SyntheticSource renders a face-like pattern drifting across an upright
// scene and delivers it the way a sensor mounted at Rotation would: the
// scene is rotated back into sensor orientation and encoded as NV21.
type SyntheticSource struct {
	width    int // sensor orientation
	height   int
	rotation frame.Rotation
	limiter  *rate.Limiter
	logger   logger.Logger

	// Limit stops the source after this many frames. Zero means no limit.
	Limit uint64
	// Chroma selects the NV21 chroma sampling of the encoded frames.
	Chroma pixfmt.ChromaMode

	now func() time.Time
}

// NewSynthetic creates a synthetic source. fps <= 0 delivers frames as
// fast as the consumer returns.
func NewSynthetic(width, height int, rotation frame.Rotation, fps float64, log logger.Logger) (*SyntheticSource, error) {
	if width <= 0 || height <= 0 {
		return nil, fmt.Errorf("%w: synthetic source %dx%d", pixfmt.ErrInvalidDimensions, width, height)
	}
	if err := rotation.Validate(); err != nil {
		return nil, err
	}
	if log == nil {
		log = logger.NewNullLogger()
	}

	limit := rate.Inf
	if fps > 0 {
		limit = rate.Limit(fps)
	}

	return &SyntheticSource{
		width:    width,
		height:   height,
		rotation: rotation,
		limiter:  rate.NewLimiter(limit, 1),
		logger:   log.WithField("source", "synthetic"),
		now:      time.Now,
	}, nil
}

// uprightSize is the scene size once the sensor rotation is undone.
func (s *SyntheticSource) uprightSize() (int, int) {
	if s.rotation.SwapsAxes() {
		return s.height, s.width
	}
	return s.width, s.height
}

// FaceBox returns where the face of frame seq lies in the upright scene.
func (s *SyntheticSource) FaceBox(seq uint64) image.Rectangle {
	w, h := s.uprightSize()
	r := min(w, h) / 5
	if r < 4 {
		r = 4
	}
	span := float64(w/2 - r)
	if span < 0 {
		span = 0
	}
	cx := w/2 + int(span*math.Sin(float64(seq)/30))
	cy := h / 2
	return image.Rect(cx-r, cy-r*5/4, cx+r, cy+r*5/4)
}

// Run renders and delivers frames until ctx is done or Limit is reached.
func (s *SyntheticSource) Run(ctx context.Context, fn func(*frame.Frame)) error {
	uw, uh := s.uprightSize()
	scene := image.NewRGBA(image.Rect(0, 0, uw, uh))
	buf := make([]byte, pixfmt.NV21Size(s.width, s.height))
	undo := frame.Rotation((360 - int(s.rotation)) % 360)

	s.logger.WithFields(map[string]interface{}{
		"width":    s.width,
		"height":   s.height,
		"rotation": int(s.rotation),
		"chroma":   s.Chroma.String(),
	}).Info("Synthetic capture started")

	var seq uint64
	for {
		if s.Limit > 0 && seq >= s.Limit {
			return nil
		}
		if err := s.limiter.Wait(ctx); err != nil {
			if ctx.Err() != nil {
				return nil
			}
			return fmt.Errorf("synthetic pacing: %w", err)
		}

		paintScene(scene, s.FaceBox(seq))
		sensor, err := pixfmt.Rotate(scene, undo)
		if err != nil {
			return fmt.Errorf("synthetic rotate: %w", err)
		}
		if err := pixfmt.EncodeNV21Into(buf, sensor, s.Chroma); err != nil {
			return fmt.Errorf("synthetic encode: %w", err)
		}
		planes, err := pixfmt.SplitNV21(buf, s.width, s.height)
		if err != nil {
			return fmt.Errorf("synthetic planes: %w", err)
		}

		fn(&frame.Frame{
			Seq:       seq,
			Width:     s.width,
			Height:    s.height,
			Rotation:  s.rotation,
			Timestamp: s.now(),
			Planes:    planes,
		})
		metrics.IncrementCaptureFrames("synthetic")
		seq++
	}
}

// paintScene draws an elliptical head with two eyes and a mouth inside face.
func paintScene(img *image.RGBA, face image.Rectangle) {
	fill(img, img.Bounds(), backgroundRGB)

	cx := float64(face.Min.X+face.Max.X) / 2
	cy := float64(face.Min.Y+face.Max.Y) / 2
	rx := float64(face.Dx()) / 2
	ry := float64(face.Dy()) / 2
	fillEllipse(img, cx, cy, rx, ry, skinRGB)

	eyeR := rx / 6
	fillEllipse(img, cx-rx*0.4, cy-ry*0.25, eyeR, eyeR*0.8, featureRGB)
	fillEllipse(img, cx+rx*0.4, cy-ry*0.25, eyeR, eyeR*0.8, featureRGB)
	fillEllipse(img, cx, cy+ry*0.45, rx*0.35, ry*0.08, featureRGB)
}

func fill(img *image.RGBA, r image.Rectangle, c [3]uint8) {
	r = r.Intersect(img.Bounds())
	for y := r.Min.Y; y < r.Max.Y; y++ {
		for x := r.Min.X; x < r.Max.X; x++ {
			setRGB(img, x, y, c)
		}
	}
}

func fillEllipse(img *image.RGBA, cx, cy, rx, ry float64, c [3]uint8) {
	if rx <= 0 || ry <= 0 {
		return
	}
	bounds := image.Rect(int(cx-rx), int(cy-ry), int(cx+rx)+1, int(cy+ry)+1).Intersect(img.Bounds())
	for y := bounds.Min.Y; y < bounds.Max.Y; y++ {
		dy := (float64(y) + 0.5 - cy) / ry
		for x := bounds.Min.X; x < bounds.Max.X; x++ {
			dx := (float64(x) + 0.5 - cx) / rx
			if dx*dx+dy*dy <= 1 {
				setRGB(img, x, y, c)
			}
		}
	}
}

func setRGB(img *image.RGBA, x, y int, c [3]uint8) {
	off := img.PixOffset(x, y)
	img.Pix[off] = c[0]
	img.Pix[off+1] = c[1]
	img.Pix[off+2] = c[2]
	img.Pix[off+3] = 0xff
}
