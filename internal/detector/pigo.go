// Package detector provides the in-process face detector backed by the
// pigo pixel-intensity-comparison cascade.
package detector

import (
	"context"
	"errors"
	"fmt"
	"image"
	"io/fs"
	"os"

	pigo "github.com/esimov/pigo/core"

	"github.com/zsiec/facelens/internal/config"
	"github.com/zsiec/facelens/internal/detection"
	"github.com/zsiec/facelens/internal/geometry"
	"github.com/zsiec/facelens/internal/logger"
	"github.com/zsiec/facelens/internal/pixfmt"
)

// cascade is the part of *pigo.Pigo the detector drives.
type cascade interface {
	RunCascade(cp pigo.CascadeParams, angle float64) []pigo.Detection
	ClusterDetections(dets []pigo.Detection, iouThreshold float64) []pigo.Detection
}

// Pigo detects faces with an unpacked pigo cascade. The decoded frame is
// rotated by the metadata rotation before detection, so reported boxes are
// in the upright analysis orientation.
type Pigo struct {
	cascade cascade
	cfg     config.DetectorConfig
	logger  logger.Logger
}

// FacefinderURL is where the stock pigo face cascade is published. It is
// not bundled; detector.cascade_file must point at a local copy.
const FacefinderURL = "https://github.com/esimov/pigo/raw/master/cascade/facefinder"

// NewPigo loads and unpacks the cascade named by cfg.CascadeFile.
func NewPigo(cfg config.DetectorConfig, log logger.Logger) (*Pigo, error) {
	data, err := os.ReadFile(cfg.CascadeFile)
	if errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("failed to read cascade file %s: download the facefinder cascade from %s: %w",
			cfg.CascadeFile, FacefinderURL, err)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read cascade file: %w", err)
	}
	return NewPigoFromBytes(data, cfg, log)
}

// NewPigoFromBytes unpacks a cascade already in memory.
func NewPigoFromBytes(data []byte, cfg config.DetectorConfig, log logger.Logger) (*Pigo, error) {
	if len(data) == 0 {
		return nil, fmt.Errorf("cascade is empty")
	}
	c, err := unpack(data)
	if err != nil {
		return nil, err
	}
	return newPigo(c, cfg, log), nil
}

// unpack guards against malformed cascades, which pigo reports by panicking
// on a short read rather than returning an error.
func unpack(data []byte) (c *pigo.Pigo, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("failed to unpack cascade: %v", r)
		}
	}()
	c, err = pigo.NewPigo().Unpack(data)
	if err != nil {
		return nil, fmt.Errorf("failed to unpack cascade: %w", err)
	}
	return c, nil
}

func newPigo(c cascade, cfg config.DetectorConfig, log logger.Logger) *Pigo {
	if log == nil {
		log = logger.NewNullLogger()
	}
	return &Pigo{
		cascade: c,
		cfg:     cfg,
		logger:  log.WithField("component", "detector"),
	}
}

// Detect implements detection.Detector.
func (p *Pigo) Detect(ctx context.Context, img *image.RGBA, meta detection.Metadata) <-chan detection.Result {
	return detection.DetectorFunc(p.detect).Detect(ctx, img, meta)
}

func (p *Pigo) detect(_ context.Context, img *image.RGBA, meta detection.Metadata) ([]detection.Face, error) {
	if img == nil {
		return nil, fmt.Errorf("%w: nil image", pixfmt.ErrInvalidDimensions)
	}
	upright, err := pixfmt.Rotate(img, meta.Rotation)
	if err != nil {
		return nil, fmt.Errorf("detector rotation: %w", err)
	}

	b := upright.Bounds()
	cols, rows := b.Dx(), b.Dy()
	params := pigo.CascadeParams{
		MinSize:     p.cfg.MinSize,
		MaxSize:     p.cfg.MaxSize,
		ShiftFactor: p.cfg.ShiftFactor,
		ScaleFactor: p.cfg.ScaleFactor,
		ImageParams: pigo.ImageParams{
			Pixels: pigo.RgbToGrayscale(upright),
			Rows:   rows,
			Cols:   cols,
			Dim:    cols,
		},
	}

	dets := p.cascade.RunCascade(params, 0)
	dets = p.cascade.ClusterDetections(dets, p.cfg.IoUThreshold)

	faces := toFaces(dets, p.cfg.MinScore, cols, rows)
	p.logger.WithFields(map[string]interface{}{
		"candidates": len(dets),
		"faces":      len(faces),
	}).Debug("Cascade finished")
	return faces, nil
}

// toFaces converts cascade hits centred on (Col, Row) with side Scale into
// boxes clipped to a cols x rows image, dropping hits below minScore.
func toFaces(dets []pigo.Detection, minScore float32, cols, rows int) []detection.Face {
	faces := make([]detection.Face, 0, len(dets))
	for _, d := range dets {
		if d.Q < minScore || d.Scale <= 0 {
			continue
		}
		half := d.Scale / 2
		box := geometry.BoundingBox{
			Left:   clamp(d.Col-half, 0, cols),
			Top:    clamp(d.Row-half, 0, rows),
			Right:  clamp(d.Col+half, 0, cols),
			Bottom: clamp(d.Row+half, 0, rows),
		}
		if box.Width() <= 0 || box.Height() <= 0 {
			continue
		}
		faces = append(faces, detection.Face{Box: box, Confidence: d.Q})
	}
	return faces
}

func clamp(v, lo, hi int) int {
	return max(lo, min(v, hi))
}
