// Package cropstore writes face crops to disk as faces<N>.png.
//
// Saving is best effort: the store is rate limited, never blocks the
// analysis worker waiting for tokens, and numbering continues across
// restarts from the highest index already in the directory.
package cropstore

import (
	"fmt"
	"image"
	"image/png"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"sync"

	"golang.org/x/time/rate"

	"github.com/zsiec/facelens/internal/config"
	"github.com/zsiec/facelens/internal/logger"
	"github.com/zsiec/facelens/internal/metrics"
)

const (
	filePrefix = "faces"
	fileExt    = ".png"
)

// Store is a detection.CropSaver.
type Store struct {
	dir     string
	limiter *rate.Limiter
	logger  logger.Logger

	mu   sync.Mutex
	next int
}

// New creates the directory if needed and resumes numbering after the
// highest existing crop.
func New(cfg config.CropsConfig, log logger.Logger) (*Store, error) {
	if cfg.Dir == "" {
		return nil, fmt.Errorf("crop dir is required")
	}
	if err := os.MkdirAll(cfg.Dir, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create crop dir: %w", err)
	}
	if log == nil {
		log = logger.NewNullLogger()
	}

	limit := rate.Inf
	if cfg.MaxPerSecond > 0 {
		limit = rate.Limit(cfg.MaxPerSecond)
	}
	burst := cfg.Burst
	if burst <= 0 {
		burst = 1
	}

	next, err := nextIndex(cfg.Dir)
	if err != nil {
		return nil, err
	}

	s := &Store{
		dir:     cfg.Dir,
		limiter: rate.NewLimiter(limit, burst),
		logger:  log.WithFields(map[string]interface{}{"component": "cropstore", "dir": cfg.Dir}),
		next:    next,
	}
	s.logger.WithField("next_index", next).Info("Crop store ready")
	return s, nil
}

func nextIndex(dir string) (int, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return 0, fmt.Errorf("failed to list crop dir: %w", err)
	}
	next := 0
	for _, e := range entries {
		n, ok := parseIndex(e.Name())
		if ok && n >= next {
			next = n + 1
		}
	}
	return next, nil
}

func parseIndex(name string) (int, bool) {
	if !strings.HasPrefix(name, filePrefix) || !strings.HasSuffix(name, fileExt) {
		return 0, false
	}
	n, err := strconv.Atoi(strings.TrimSuffix(strings.TrimPrefix(name, filePrefix), fileExt))
	if err != nil || n < 0 {
		return 0, false
	}
	return n, true
}

// FileName returns the name of crop n.
func FileName(n int) string {
	return filePrefix + strconv.Itoa(n) + fileExt
}

// Save writes crop as the next faces<N>.png. A crop over the rate limit is
// dropped and counted, not reported as an error.
func (s *Store) Save(crop image.Image) error {
	if !s.limiter.Allow() {
		metrics.IncrementCrops("throttled")
		return nil
	}

	s.mu.Lock()
	n := s.next
	s.next++
	s.mu.Unlock()

	path := filepath.Join(s.dir, FileName(n))
	if err := writePNG(path, crop); err != nil {
		metrics.IncrementCrops("failed")
		return err
	}

	metrics.IncrementCrops("saved")
	s.logger.WithField("file", FileName(n)).Debug("Face crop saved")
	return nil
}

// writePNG encodes to a temporary file and renames it so readers never see
// a partial image.
func writePNG(path string, img image.Image) error {
	tmp, err := os.CreateTemp(filepath.Dir(path), ".crop-*")
	if err != nil {
		return fmt.Errorf("failed to create crop file: %w", err)
	}
	defer os.Remove(tmp.Name())

	if err := png.Encode(tmp, img); err != nil {
		tmp.Close()
		return fmt.Errorf("failed to encode crop: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("failed to write crop: %w", err)
	}
	if err := os.Rename(tmp.Name(), path); err != nil {
		return fmt.Errorf("failed to store crop: %w", err)
	}
	return nil
}

// Count returns how many indices have been handed out, including crops
// from earlier runs.
func (s *Store) Count() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.next
}
