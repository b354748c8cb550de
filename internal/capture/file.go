package capture

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"time"

	"golang.org/x/time/rate"

	"github.com/zsiec/facelens/internal/frame"
	"github.com/zsiec/facelens/internal/logger"
	"github.com/zsiec/facelens/internal/metrics"
	"github.com/zsiec/facelens/internal/pixfmt"
)

// FileSource replays raw NV21 dumps (*.nv21) from a directory in name
// order. Every file must hold exactly one width x height frame.
type FileSource struct {
	dir      string
	width    int
	height   int
	rotation frame.Rotation
	loop     bool
	limiter  *rate.Limiter
	logger   logger.Logger

	now func() time.Time
}

// NewFileSource creates a replay source. fps <= 0 disables pacing.
func NewFileSource(dir string, width, height int, rotation frame.Rotation, fps float64, loop bool, log logger.Logger) (*FileSource, error) {
	if dir == "" {
		return nil, fmt.Errorf("file source: dir is required")
	}
	if width <= 0 || height <= 0 {
		return nil, fmt.Errorf("%w: file source %dx%d", pixfmt.ErrInvalidDimensions, width, height)
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

	return &FileSource{
		dir:      dir,
		width:    width,
		height:   height,
		rotation: rotation,
		loop:     loop,
		limiter:  rate.NewLimiter(limit, 1),
		logger:   log.WithFields(map[string]interface{}{"source": "file", "dir": dir}),
		now:      time.Now,
	}, nil
}

func (s *FileSource) files() ([]string, error) {
	files, err := filepath.Glob(filepath.Join(s.dir, "*.nv21"))
	if err != nil {
		return nil, fmt.Errorf("file source: %w", err)
	}
	if len(files) == 0 {
		return nil, fmt.Errorf("file source: no .nv21 files in %s", s.dir)
	}
	sort.Strings(files)
	return files, nil
}

// Run replays the directory once, or forever when looping, until ctx is done.
func (s *FileSource) Run(ctx context.Context, fn func(*frame.Frame)) error {
	files, err := s.files()
	if err != nil {
		return err
	}
	size := pixfmt.NV21Size(s.width, s.height)

	s.logger.WithField("files", len(files)).Info("File capture started")

	var seq uint64
	for {
		for _, path := range files {
			if err := s.limiter.Wait(ctx); err != nil {
				if ctx.Err() != nil {
					return nil
				}
				return fmt.Errorf("file source pacing: %w", err)
			}

			buf, err := os.ReadFile(path)
			if err != nil {
				return fmt.Errorf("file source: %w", err)
			}
			if len(buf) != size {
				return fmt.Errorf("%w: %s has %d bytes, want %d for %dx%d",
					pixfmt.ErrInvalidDimensions, filepath.Base(path), len(buf), size, s.width, s.height)
			}
			planes, err := pixfmt.SplitNV21(buf, s.width, s.height)
			if err != nil {
				return fmt.Errorf("file source: %w", err)
			}

			fn(&frame.Frame{
				Seq:       seq,
				Width:     s.width,
				Height:    s.height,
				Rotation:  s.rotation,
				Timestamp: s.now(),
				Planes:    planes,
			})
			metrics.IncrementCaptureFrames("file")
			seq++
		}
		if !s.loop {
			s.logger.WithField("frames", seq).Info("File capture finished")
			return nil
		}
	}
}
