package detection

import (
	"context"
	"errors"
	"fmt"
	"image"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"

	"github.com/zsiec/facelens/internal/admission"
	apperrors "github.com/zsiec/facelens/internal/errors"
	"github.com/zsiec/facelens/internal/frame"
	"github.com/zsiec/facelens/internal/logger"
	"github.com/zsiec/facelens/internal/metrics"
	"github.com/zsiec/facelens/internal/pixfmt"
)

// CropRotationMode selects the rotation applied to the decoded frame before
// face boxes are cropped out of it.
type CropRotationMode string

const (
	// CropRotationFixed always applies Config.FixedRotation, matching a
	// sensor with a fixed mount.
	CropRotationFixed CropRotationMode = "fixed"
	// CropRotationDevice applies the rotation carried by each frame.
	CropRotationDevice CropRotationMode = "device"
)

// Config holds the orchestrator's per-deployment settings.
type Config struct {
	Metadata      Metadata
	CropRotation  CropRotationMode
	FixedRotation frame.Rotation
	DefaultLabel  string
}

// DefaultConfig returns the settings for the standard 90 degree sensor mount.
func DefaultConfig() Config {
	return Config{
		Metadata:      DefaultMetadata(),
		CropRotation:  CropRotationFixed,
		FixedRotation: frame.Rotation90,
		DefaultLabel:  "Unknown",
	}
}

func (c *Config) validate() error {
	if c.Metadata == (Metadata{}) {
		c.Metadata = DefaultMetadata()
	}
	if c.Metadata.Width <= 0 || c.Metadata.Height <= 0 {
		return apperrors.WrapInvalidDimensions(pixfmt.ErrInvalidDimensions, c.Metadata.Width, c.Metadata.Height)
	}
	if err := c.Metadata.Rotation.Validate(); err != nil {
		return apperrors.WrapRotationConfig(err)
	}
	if c.CropRotation == "" {
		c.CropRotation = CropRotationFixed
	}
	switch c.CropRotation {
	case CropRotationFixed:
		if err := c.FixedRotation.Validate(); err != nil {
			return apperrors.WrapRotationConfig(err)
		}
	case CropRotationDevice:
	default:
		return fmt.Errorf("unknown crop rotation mode %q", c.CropRotation)
	}
	if c.DefaultLabel == "" {
		c.DefaultLabel = "Unknown"
	}
	return nil
}

// Failure records the most recent frame-level or per-face failure.
type Failure struct {
	Type     apperrors.ErrorType `json:"type"`
	Message  string              `json:"message"`
	FrameSeq uint64              `json:"frame_seq"`
	At       time.Time           `json:"at"`
}

// Stats is a snapshot of orchestrator counters.
type Stats struct {
	Admission        admission.Stats `json:"admission"`
	Analyzed         uint64          `json:"analyzed"`
	Published        uint64          `json:"published"`
	DecodeFailures   uint64          `json:"decode_failures"`
	DetectorFailures uint64          `json:"detector_failures"`
	FaceFailures     uint64          `json:"face_failures"`
	LastFailure      *Failure        `json:"last_failure,omitempty"`
	LastSetAt        time.Time       `json:"last_set_at,omitempty"`
	LastSetFaces     int             `json:"last_set_faces"`
}

// Option configures an Orchestrator.
type Option func(*Orchestrator)

// WithClassifier resolves labels with c instead of the default label.
func WithClassifier(c Classifier) Option {
	return func(o *Orchestrator) { o.classifier = c }
}

// WithCropSaver stores every successfully cropped face.
func WithCropSaver(s CropSaver) Option {
	return func(o *Orchestrator) { o.crops = s }
}

// WithPublishers appends publishers in call order. The renderer should be
// registered first so the overlay updates before slower sinks run.
func WithPublishers(p ...Publisher) Option {
	return func(o *Orchestrator) { o.publishers = append(o.publishers, p...) }
}

// WithAdmission shares an existing admission controller.
func WithAdmission(c *admission.Controller) Option {
	return func(o *Orchestrator) { o.gate = c }
}

// WithLogger sets the base logger; hot-path messages are sampled.
func WithLogger(l logger.Logger) Option {
	return func(o *Orchestrator) {
		if l != nil {
			o.log = logger.NewPipelineLogger(l.WithField("component", "orchestrator"))
		}
	}
}

// WithContext sets the context handed to collaborators. Its cancellation is
// ignored: an admitted frame always runs to completion.
func WithContext(ctx context.Context) Option {
	return func(o *Orchestrator) { o.ctx = context.WithoutCancel(ctx) }
}

// Orchestrator is the capture callback target. It admits at most one frame
// at a time and analyzes it on a dedicated goroutine.
type Orchestrator struct {
	cfg        Config
	detector   Detector
	classifier Classifier
	crops      CropSaver
	publishers []Publisher
	gate       *admission.Controller
	log        *logger.SampledLogger
	ctx        context.Context

	mu      sync.Mutex
	stopped bool
	wg      sync.WaitGroup

	latest      atomic.Pointer[DetectionSet]
	lastFailure atomic.Pointer[Failure]

	analyzed         atomic.Uint64
	published        atomic.Uint64
	decodeFailures   atomic.Uint64
	detectorFailures atomic.Uint64
	faceFailures     atomic.Uint64
}

// New creates an orchestrator around det.
func New(det Detector, cfg Config, opts ...Option) (*Orchestrator, error) {
	if det == nil {
		return nil, errors.New("detector is required")
	}
	if err := cfg.validate(); err != nil {
		return nil, err
	}

	o := &Orchestrator{
		cfg:      cfg,
		detector: det,
		ctx:      context.Background(),
	}
	for _, opt := range opts {
		opt(o)
	}
	if o.log == nil {
		o.log = logger.NewPipelineLogger(logger.NewNullLogger())
	}
	if o.gate == nil {
		o.gate = admission.New(o.log)
	}
	return o, nil
}

// HandleFrame offers f for analysis. It never blocks: when a frame is
// already in flight f is dropped and HandleFrame returns false. f is cloned
// on admission, so the caller may reuse its buffers as soon as this returns.
func (o *Orchestrator) HandleFrame(f *frame.Frame) bool {
	o.mu.Lock()
	defer o.mu.Unlock()

	if o.stopped {
		return false
	}

	ticket, ok := o.gate.Admit()
	if !ok {
		o.log.DebugWithCategory(logger.CategoryFrameDropped, "Frame dropped, analysis in flight", map[string]interface{}{
			"frame_seq": f.Seq,
		})
		return false
	}

	owned := f.Clone()
	o.wg.Add(1)
	go func() {
		defer o.wg.Done()
		defer ticket.Release()
		defer o.recoverFrame(owned.Seq)
		o.analyze(owned)
	}()
	return true
}

// Stop rejects further frames and waits for the in-flight analysis.
func (o *Orchestrator) Stop() {
	o.mu.Lock()
	o.stopped = true
	o.mu.Unlock()
	o.wg.Wait()
}

// Latest returns the most recently published set, or nil.
func (o *Orchestrator) Latest() *DetectionSet {
	return o.latest.Load()
}

// Admission exposes the gate for health checks.
func (o *Orchestrator) Admission() *admission.Controller {
	return o.gate
}

// LogSampling reports how many hot-path log lines were emitted and
// suppressed per category.
func (o *Orchestrator) LogSampling() map[string]logger.SamplerStats {
	return o.log.Stats()
}

// Stats returns a snapshot of orchestrator counters.
func (o *Orchestrator) Stats() Stats {
	s := Stats{
		Admission:        o.gate.Stats(),
		Analyzed:         o.analyzed.Load(),
		Published:        o.published.Load(),
		DecodeFailures:   o.decodeFailures.Load(),
		DetectorFailures: o.detectorFailures.Load(),
		FaceFailures:     o.faceFailures.Load(),
		LastFailure:      o.lastFailure.Load(),
	}
	if set := o.latest.Load(); set != nil {
		s.LastSetAt = set.CompletedAt
		s.LastSetFaces = set.Len()
	}
	return s
}

func (o *Orchestrator) recoverFrame(seq uint64) {
	if r := recover(); r != nil {
		err := fmt.Errorf("panic during analysis: %v", r)
		o.recordFailure(apperrors.WrapInternalError(err, "analysis panicked"), seq)
		metrics.IncrementFrameFailure("panic")
		o.log.ErrorWithCategory(logger.CategoryFrameFailure, "Recovered panic in frame analysis", map[string]interface{}{
			"frame_seq": seq,
			"panic":     r,
		})
	}
}

func (o *Orchestrator) recordFailure(err *apperrors.AppError, seq uint64) {
	o.lastFailure.Store(&Failure{
		Type:     err.Type,
		Message:  err.Error(),
		FrameSeq: seq,
		At:       time.Now(),
	})
}

func (o *Orchestrator) frameFailed(stage string, appErr *apperrors.AppError, seq uint64, start time.Time) {
	o.recordFailure(appErr, seq)
	metrics.IncrementFrameFailure(stage)
	metrics.ObserveAnalysis(stage+"_failed", time.Since(start))
	o.log.WarnWithCategory(logger.CategoryFrameFailure, "Frame analysis abandoned", map[string]interface{}{
		"frame_seq": seq,
		"stage":     stage,
		"error":     appErr.Error(),
	})
}

func (o *Orchestrator) analyze(f *frame.Frame) {
	start := time.Now()
	o.analyzed.Add(1)

	img, err := pixfmt.DecodeNative(f)
	metrics.ObserveDecode(time.Since(start))
	if err != nil {
		o.decodeFailures.Add(1)
		o.frameFailed("decode", apperrors.WrapDecodeFailure(err), f.Seq, start)
		return
	}

	// In device mode the detector and the crops both follow the frame's
	// rotation, so boxes and crops share one orientation.
	meta := o.cfg.Metadata
	rot := o.cfg.FixedRotation
	if o.cfg.CropRotation == CropRotationDevice {
		rot = f.Rotation
		meta.Rotation = rot
	}
	if err := rot.Validate(); err != nil {
		o.frameFailed("rotation", apperrors.WrapRotationConfig(err), f.Seq, start)
		return
	}

	res := <-o.detector.Detect(o.ctx, img, meta)
	if res.Err != nil {
		o.detectorFailures.Add(1)
		err := fmt.Errorf("%w: %w", ErrDetectorFailure, res.Err)
		o.frameFailed("detector", apperrors.WrapDetectorFailure(err), f.Seq, start)
		return
	}

	oriented, err := pixfmt.Rotate(img, rot)
	if err != nil {
		o.frameFailed("rotation", apperrors.WrapRotationConfig(err), f.Seq, start)
		return
	}

	if b := oriented.Bounds(); b.Dx() != o.cfg.Metadata.Width || b.Dy() != o.cfg.Metadata.Height {
		// Boxes are still applied; the overlay will be misaligned.
		o.log.WarnWithCategory(logger.CategoryGeometry, "Oriented frame does not match analysis size", map[string]interface{}{
			"frame_seq":       f.Seq,
			"oriented_width":  b.Dx(),
			"oriented_height": b.Dy(),
			"analysis_width":  o.cfg.Metadata.Width,
			"analysis_height": o.cfg.Metadata.Height,
		})
	}

	predictions := make([]Prediction, 0, len(res.Faces))
	for i, face := range res.Faces {
		p, reason, err := o.processFace(oriented, face)
		if err != nil {
			o.faceFailures.Add(1)
			metrics.IncrementFaceFailure(reason)
			o.recordFailure(apperrors.WrapPerFaceFailure(err, reason), f.Seq)
			o.log.WarnWithCategory(logger.CategoryFaceFailure, "Face skipped", map[string]interface{}{
				"frame_seq": f.Seq,
				"face":      i,
				"box":       face.Box.String(),
				"reason":    reason,
				"error":     err.Error(),
			})
			continue
		}
		predictions = append(predictions, p)
	}

	set := &DetectionSet{
		ID:          uuid.New(),
		FrameSeq:    f.Seq,
		CapturedAt:  f.Timestamp,
		CompletedAt: time.Now(),
		Predictions: predictions,
	}
	o.publish(set, len(res.Faces))
	metrics.ObserveAnalysis("published", time.Since(start))
}

// processFace crops, labels and stores one face. A returned error skips
// only this face; reason is a short metric label.
func (o *Orchestrator) processFace(img *image.RGBA, face Face) (p Prediction, reason string, err error) {
	defer func() {
		if r := recover(); r != nil {
			reason = "panic"
			err = fmt.Errorf("%w: panic: %v", ErrPerFaceFailure, r)
		}
	}()

	crop, err := pixfmt.Crop(img, face.Box)
	if err != nil {
		return Prediction{}, "out_of_bounds", fmt.Errorf("%w: %w", ErrPerFaceFailure, err)
	}

	label := Label{Name: o.cfg.DefaultLabel}
	if o.classifier != nil {
		l, err := o.classifier.Classify(o.ctx, crop)
		if err != nil {
			return Prediction{}, "classifier", fmt.Errorf("%w: classify: %w", ErrPerFaceFailure, err)
		}
		if l.Name != "" {
			label = l
		}
	}

	if o.crops != nil {
		if err := o.crops.Save(crop); err != nil {
			o.log.WarnWithCategory(logger.CategoryCropStore, "Failed to save face crop", map[string]interface{}{
				"error": err.Error(),
			})
		}
	}

	return Prediction{
		Box:             face.Box,
		Label:           label.Name,
		Confidence:      face.Confidence,
		LabelConfidence: label.Confidence,
	}, "", nil
}

func (o *Orchestrator) publish(set *DetectionSet, detected int) {
	o.latest.Store(set)
	for _, p := range o.publishers {
		p.Publish(set)
	}
	o.published.Add(1)
	metrics.RecordPublished(detected, set.Len())
}
