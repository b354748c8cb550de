package logger

import (
	"sync"
	"sync/atomic"
	"time"

	"github.com/sirupsen/logrus"
)

// Pipeline log categories. Per-frame events fire at camera rate and must be
// sampled; categories without a sampler always log.
const (
	CategoryFrameDropped = "frame_dropped"
	CategoryFrameFailure = "frame_failure"
	CategoryFaceFailure  = "face_failure"
	CategoryGeometry     = "geometry"
	CategoryCropStore    = "crop_store"
	CategorySink         = "sink"
	CategoryCapture      = "capture"
)

// sampler admits a burst of messages per interval and then every
// 1/rate-th message until the interval elapses.
type sampler struct {
	interval time.Duration
	burst    int64
	rate     float64

	windowStart atomic.Int64
	inWindow    atomic.Int64
	skipped     atomic.Int64

	total   atomic.Int64
	logged  atomic.Int64
	dropped atomic.Int64
}

func (s *sampler) allow(now time.Time) bool {
	s.total.Add(1)
	nowNs := now.UnixNano()

	start := s.windowStart.Load()
	if nowNs-start >= s.interval.Nanoseconds() && s.windowStart.CompareAndSwap(start, nowNs) {
		s.inWindow.Store(1)
		s.skipped.Store(0)
		s.logged.Add(1)
		return true
	}

	if s.inWindow.Add(1) <= s.burst {
		s.logged.Add(1)
		return true
	}

	if s.rate > 0 {
		n := s.skipped.Add(1)
		if float64(n)*s.rate >= 1.0 {
			s.skipped.Store(0)
			s.logged.Add(1)
			return true
		}
	}

	s.dropped.Add(1)
	return false
}

// SamplerStats holds statistics for one category.
type SamplerStats struct {
	Name    string `json:"name"`
	Total   int64  `json:"total"`
	Logged  int64  `json:"logged"`
	Dropped int64  `json:"dropped"`
}

type samplerSet struct {
	mu       sync.RWMutex
	samplers map[string]*sampler
}

// SampledLogger is a Logger with per-category sampling for high-frequency
// events. Plain Logger methods are never sampled.
type SampledLogger struct {
	Logger
	set *samplerSet
	now func() time.Time
}

// NewSampledLogger wraps base with no samplers configured.
func NewSampledLogger(base Logger) *SampledLogger {
	if base == nil {
		base = NewNullLogger()
	}
	return &SampledLogger{
		Logger: base,
		set:    &samplerSet{samplers: make(map[string]*sampler)},
		now:    time.Now,
	}
}

// WithSampler configures sampling for category: burst messages per
// interval, then rate (0..1) of the remainder.
func (s *SampledLogger) WithSampler(category string, interval time.Duration, burst int, rate float64) *SampledLogger {
	s.set.mu.Lock()
	s.set.samplers[category] = &sampler{interval: interval, burst: int64(burst), rate: rate}
	s.set.mu.Unlock()
	return s
}

func (s *SampledLogger) shouldLog(category string) bool {
	s.set.mu.RLock()
	sm, ok := s.set.samplers[category]
	s.set.mu.RUnlock()
	if !ok {
		return true
	}
	return sm.allow(s.now())
}

func (s *SampledLogger) logCategory(level logrus.Level, category, msg string, fields map[string]interface{}) {
	if !s.shouldLog(category) {
		return
	}
	merged := make(map[string]interface{}, len(fields)+1)
	for k, v := range fields {
		merged[k] = v
	}
	merged["category"] = category
	s.Logger.WithFields(merged).Log(level, msg)
}

func (s *SampledLogger) DebugWithCategory(category, msg string, fields map[string]interface{}) {
	s.logCategory(logrus.DebugLevel, category, msg, fields)
}

func (s *SampledLogger) InfoWithCategory(category, msg string, fields map[string]interface{}) {
	s.logCategory(logrus.InfoLevel, category, msg, fields)
}

func (s *SampledLogger) WarnWithCategory(category, msg string, fields map[string]interface{}) {
	s.logCategory(logrus.WarnLevel, category, msg, fields)
}

// ErrorWithCategory always logs; errors are never sampled.
func (s *SampledLogger) ErrorWithCategory(category, msg string, fields map[string]interface{}) {
	merged := make(map[string]interface{}, len(fields)+1)
	for k, v := range fields {
		merged[k] = v
	}
	merged["category"] = category
	s.Logger.WithFields(merged).Error(msg)
}

// Stats returns per-category sampling counters.
func (s *SampledLogger) Stats() map[string]SamplerStats {
	s.set.mu.RLock()
	defer s.set.mu.RUnlock()

	out := make(map[string]SamplerStats, len(s.set.samplers))
	for name, sm := range s.set.samplers {
		out[name] = SamplerStats{
			Name:    name,
			Total:   sm.total.Load(),
			Logged:  sm.logged.Load(),
			Dropped: sm.dropped.Load(),
		}
	}
	return out
}

// WithFields keeps the sampler state shared with the parent.
func (s *SampledLogger) WithFields(fields map[string]interface{}) Logger {
	return &SampledLogger{Logger: s.Logger.WithFields(fields), set: s.set, now: s.now}
}

func (s *SampledLogger) WithField(key string, value interface{}) Logger {
	return &SampledLogger{Logger: s.Logger.WithField(key, value), set: s.set, now: s.now}
}

func (s *SampledLogger) WithError(err error) Logger {
	return &SampledLogger{Logger: s.Logger.WithError(err), set: s.set, now: s.now}
}

// NewPipelineLogger returns a sampled logger preconfigured for the frame
// pipeline's per-frame categories.
func NewPipelineLogger(base Logger) *SampledLogger {
	return NewSampledLogger(base).
		// drops happen on nearly every frame while a detection is running
		WithSampler(CategoryFrameDropped, 5*time.Second, 1, 0).
		WithSampler(CategoryFrameFailure, time.Second, 3, 0.1).
		WithSampler(CategoryFaceFailure, time.Second, 5, 0.1).
		WithSampler(CategoryGeometry, time.Minute, 1, 0).
		WithSampler(CategoryCropStore, time.Second, 2, 0).
		WithSampler(CategorySink, time.Second, 2, 0.05).
		WithSampler(CategoryCapture, time.Second, 2, 0)
}
