// Package capture produces camera-native frames for the pipeline.
//
// A Source calls its callback synchronously, one frame at a time, from a
// single goroutine. Plane buffers handed to the callback are reused for the
// next frame, so a consumer that keeps a frame must clone it.
package capture

import (
	"context"
	"fmt"

	"github.com/zsiec/facelens/internal/config"
	"github.com/zsiec/facelens/internal/frame"
	"github.com/zsiec/facelens/internal/logger"
	"github.com/zsiec/facelens/internal/pixfmt"
)

// Source delivers frames until ctx is done or the source is exhausted.
type Source interface {
	Run(ctx context.Context, fn func(*frame.Frame)) error
}

// New builds the source selected by cfg.Source. chroma applies to sources
// that encode their own frames.
func New(cfg config.CaptureConfig, chroma pixfmt.ChromaMode, log logger.Logger) (Source, error) {
	rot, err := frame.ParseRotation(cfg.Rotation)
	if err != nil {
		return nil, fmt.Errorf("capture rotation: %w", err)
	}

	switch cfg.Source {
	case "synthetic", "":
		src, err := NewSynthetic(cfg.Width, cfg.Height, rot, cfg.FPS, log)
		if err != nil {
			return nil, err
		}
		src.Chroma = chroma
		return src, nil
	case "file":
		src, err := NewFileSource(cfg.Dir, cfg.Width, cfg.Height, rot, cfg.FPS, cfg.Loop, log)
		if err != nil {
			return nil, err
		}
		return src, nil
	default:
		return nil, fmt.Errorf("unknown capture source %q", cfg.Source)
	}
}
