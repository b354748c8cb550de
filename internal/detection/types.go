// Package detection runs admitted camera frames through the face detector,
// resolves a label per face and publishes the resulting DetectionSet.
package detection

import (
	"context"
	"errors"
	"image"
	"time"

	"github.com/google/uuid"

	"github.com/zsiec/facelens/internal/frame"
	"github.com/zsiec/facelens/internal/geometry"
)

var (
	// ErrDetectorFailure wraps any error returned by a Detector for a whole frame.
	ErrDetectorFailure = errors.New("face detector failed")

	// ErrPerFaceFailure wraps errors that cause a single face to be skipped.
	ErrPerFaceFailure = errors.New("face processing failed")
)

// PixelFormat names the buffer layout the detector is told it receives.
type PixelFormat string

const PixelFormatNV21 PixelFormat = "NV21"

// Metadata is the fixed input contract with the detector.
type Metadata struct {
	Width    int
	Height   int
	Format   PixelFormat
	Rotation frame.Rotation
}

// DefaultMetadata describes a portrait 480x640 analysis image delivered by a
// sensor mounted at 90 degrees.
func DefaultMetadata() Metadata {
	return Metadata{
		Width:    geometry.AnalysisWidth,
		Height:   geometry.AnalysisHeight,
		Format:   PixelFormatNV21,
		Rotation: frame.Rotation90,
	}
}

// Size returns the analysis size described by m.
func (m Metadata) Size() geometry.Size {
	return geometry.Size{Width: m.Width, Height: m.Height}
}

// Face is one detector hit in analysis space.
type Face struct {
	Box        geometry.BoundingBox
	Confidence float32
}

// Result is the single completion value of a Detect call.
type Result struct {
	Faces []Face
	Err   error
}

// Detector finds faces in a decoded frame. Detect must deliver exactly one
// Result on the returned channel. The orchestrator never cancels an admitted
// frame, so implementations must eventually complete.
type Detector interface {
	Detect(ctx context.Context, img *image.RGBA, meta Metadata) <-chan Result
}

// DetectorFunc adapts a synchronous detection function to Detector by
// running it on its own goroutine.
type DetectorFunc func(ctx context.Context, img *image.RGBA, meta Metadata) ([]Face, error)

func (f DetectorFunc) Detect(ctx context.Context, img *image.RGBA, meta Metadata) <-chan Result {
	ch := make(chan Result, 1)
	go func() {
		faces, err := f(ctx, img, meta)
		ch <- Result{Faces: faces, Err: err}
	}()
	return ch
}

// Label is a classifier verdict for one face crop.
type Label struct {
	Name       string
	Confidence float32
}

// Classifier resolves a label for a cropped face. It is optional.
type Classifier interface {
	Classify(ctx context.Context, crop *image.RGBA) (Label, error)
}

// CropSaver persists face crops. Failures are logged and otherwise ignored.
type CropSaver interface {
	Save(crop image.Image) error
}

// Publisher receives every published DetectionSet. Publish must not block
// for long: it runs on the analysis worker while admission is held.
type Publisher interface {
	Publish(set *DetectionSet)
}

// PublisherFunc adapts a function to Publisher.
type PublisherFunc func(set *DetectionSet)

func (f PublisherFunc) Publish(set *DetectionSet) { f(set) }

// Prediction is one labelled face. It is never modified after creation.
type Prediction struct {
	Box             geometry.BoundingBox `json:"box"`
	Label           string               `json:"label"`
	Confidence      float32              `json:"confidence"`
	LabelConfidence float32              `json:"label_confidence,omitempty"`
}

// DetectionSet is the complete result for one analyzed frame. A published
// set replaces the previous one; it is never merged or mutated.
type DetectionSet struct {
	ID          uuid.UUID    `json:"id"`
	FrameSeq    uint64       `json:"frame_seq"`
	CapturedAt  time.Time    `json:"captured_at"`
	CompletedAt time.Time    `json:"completed_at"`
	Predictions []Prediction `json:"predictions"`
}

// Len returns the number of predictions, treating a nil set as empty.
func (s *DetectionSet) Len() int {
	if s == nil {
		return 0
	}
	return len(s.Predictions)
}

// Latency is the time from capture to publish.
func (s *DetectionSet) Latency() time.Duration {
	if s == nil || s.CapturedAt.IsZero() {
		return 0
	}
	return s.CompletedAt.Sub(s.CapturedAt)
}
