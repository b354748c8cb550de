package config

import (
	"fmt"
	"os"
)

func (c *Config) Validate() error {
	if err := c.Server.Validate(); err != nil {
		return fmt.Errorf("server config: %w", err)
	}

	if c.Sink.Enabled {
		if err := c.Redis.Validate(); err != nil {
			return fmt.Errorf("redis config: %w", err)
		}
	}

	if err := c.Logging.Validate(); err != nil {
		return fmt.Errorf("logging config: %w", err)
	}

	if err := c.Metrics.Validate(); err != nil {
		return fmt.Errorf("metrics config: %w", err)
	}

	if err := c.Pipeline.Validate(); err != nil {
		return fmt.Errorf("pipeline config: %w", err)
	}

	if err := c.Capture.Validate(); err != nil {
		return fmt.Errorf("capture config: %w", err)
	}

	if err := c.Detector.Validate(); err != nil {
		return fmt.Errorf("detector config: %w", err)
	}

	if err := c.Classifier.Validate(); err != nil {
		return fmt.Errorf("classifier config: %w", err)
	}

	if err := c.Crops.Validate(); err != nil {
		return fmt.Errorf("crops config: %w", err)
	}

	if err := c.Sink.Validate(); err != nil {
		return fmt.Errorf("sink config: %w", err)
	}

	return nil
}

func validPort(p int) bool {
	return p >= 1 && p <= 65535
}

func validRotation(deg int) bool {
	switch deg {
	case 0, 90, 180, 270:
		return true
	}
	return false
}

func (s *ServerConfig) Validate() error {
	if !validPort(s.HTTPPort) {
		return fmt.Errorf("invalid HTTP port: %d", s.HTTPPort)
	}

	if s.ShutdownTimeout < 0 {
		return fmt.Errorf("shutdown_timeout must not be negative")
	}

	if s.HealthInterval < 0 || s.MemoryLimitMB < 0 {
		return fmt.Errorf("health_interval and memory_limit_mb must not be negative")
	}

	if !s.HTTP3Enabled {
		return nil
	}

	if !validPort(s.HTTP3Port) {
		return fmt.Errorf("invalid HTTP3 port: %d", s.HTTP3Port)
	}

	if s.HTTP3Port == s.HTTPPort {
		return fmt.Errorf("HTTP3 port %d collides with HTTP port", s.HTTP3Port)
	}

	if s.TLSCertFile == "" {
		return fmt.Errorf("TLS certificate file is required")
	}

	if s.TLSKeyFile == "" {
		return fmt.Errorf("TLS key file is required")
	}

	// Check if certificate files exist
	if _, err := os.Stat(s.TLSCertFile); os.IsNotExist(err) {
		return fmt.Errorf("TLS certificate file not found: %s", s.TLSCertFile)
	}

	if _, err := os.Stat(s.TLSKeyFile); os.IsNotExist(err) {
		return fmt.Errorf("TLS key file not found: %s", s.TLSKeyFile)
	}

	if s.MaxIncomingStreams <= 0 {
		return fmt.Errorf("max_incoming_streams must be positive")
	}

	return nil
}

func (r *RedisConfig) Validate() error {
	if len(r.Addresses) == 0 {
		return fmt.Errorf("at least one Redis address is required")
	}

	if r.DB < 0 || r.DB > 15 {
		return fmt.Errorf("invalid Redis DB: %d", r.DB)
	}

	if r.MaxRetries < 0 {
		return fmt.Errorf("max_retries must be non-negative")
	}

	if r.PoolSize <= 0 {
		return fmt.Errorf("pool_size must be positive")
	}

	if r.MinIdleConns < 0 || r.MinIdleConns > r.PoolSize {
		return fmt.Errorf("min_idle_conns must be between 0 and pool_size")
	}

	return nil
}

func (l *LoggingConfig) Validate() error {
	validLevels := map[string]bool{
		"debug": true, "info": true, "warn": true, "error": true, "fatal": true, "panic": true,
	}
	if !validLevels[l.Level] {
		return fmt.Errorf("invalid log level: %s", l.Level)
	}

	if l.Format != "json" && l.Format != "text" {
		return fmt.Errorf("invalid log format: %s (must be json or text)", l.Format)
	}

	if l.Output == "" {
		return fmt.Errorf("log output is required")
	}

	if l.Output != "stdout" && l.Output != "stderr" {
		if l.MaxSize <= 0 {
			return fmt.Errorf("max_size must be positive for file output")
		}
		if l.MaxBackups < 0 {
			return fmt.Errorf("max_backups must be non-negative")
		}
		if l.MaxAge < 0 {
			return fmt.Errorf("max_age must be non-negative")
		}
	}

	return nil
}

func (m *MetricsConfig) Validate() error {
	if !m.Enabled {
		return nil
	}

	if !validPort(m.Port) {
		return fmt.Errorf("invalid metrics port: %d", m.Port)
	}

	if m.Path == "" || m.Path[0] != '/' {
		return fmt.Errorf("metrics path must start with /")
	}

	return nil
}

func (p *PipelineConfig) Validate() error {
	if p.AnalysisWidth <= 0 || p.AnalysisHeight <= 0 {
		return fmt.Errorf("analysis size must be positive, got %dx%d", p.AnalysisWidth, p.AnalysisHeight)
	}

	if p.DisplayWidth <= 0 || p.DisplayHeight <= 0 {
		return fmt.Errorf("display size must be positive, got %dx%d", p.DisplayWidth, p.DisplayHeight)
	}

	if !validRotation(p.DetectorRotation) {
		return fmt.Errorf("invalid detector_rotation: %d", p.DetectorRotation)
	}

	switch p.CropRotation {
	case "fixed":
		if !validRotation(p.FixedRotation) {
			return fmt.Errorf("invalid fixed_rotation: %d", p.FixedRotation)
		}
	case "device":
	default:
		return fmt.Errorf("invalid crop_rotation: %s (must be fixed or device)", p.CropRotation)
	}

	if p.ChromaMode != "" && p.ChromaMode != "scan" && p.ChromaMode != "average" {
		return fmt.Errorf("invalid chroma_mode: %s (must be scan or average)", p.ChromaMode)
	}

	if p.DefaultLabel == "" {
		return fmt.Errorf("default_label is required")
	}

	if p.StallThreshold <= 0 {
		return fmt.Errorf("stall_threshold must be positive")
	}

	return nil
}

func (c *CaptureConfig) Validate() error {
	switch c.Source {
	case "synthetic":
	case "file":
		if c.Dir == "" {
			return fmt.Errorf("dir is required for file source")
		}
	default:
		return fmt.Errorf("invalid capture source: %s (must be synthetic or file)", c.Source)
	}

	if c.Width <= 0 || c.Height <= 0 {
		return fmt.Errorf("capture size must be positive, got %dx%d", c.Width, c.Height)
	}

	if c.FPS <= 0 || c.FPS > 240 {
		return fmt.Errorf("fps must be in (0, 240], got %v", c.FPS)
	}

	if !validRotation(c.Rotation) {
		return fmt.Errorf("invalid rotation: %d", c.Rotation)
	}

	return nil
}

func (d *DetectorConfig) Validate() error {
	if d.CascadeFile == "" {
		return fmt.Errorf("cascade_file is required")
	}

	if d.MinSize <= 0 {
		return fmt.Errorf("min_size must be positive")
	}

	if d.MaxSize < d.MinSize {
		return fmt.Errorf("max_size (%d) must be >= min_size (%d)", d.MaxSize, d.MinSize)
	}

	if d.ShiftFactor <= 0 || d.ShiftFactor >= 1 {
		return fmt.Errorf("shift_factor must be in (0, 1)")
	}

	if d.ScaleFactor <= 1 {
		return fmt.Errorf("scale_factor must be greater than 1")
	}

	if d.IoUThreshold < 0 || d.IoUThreshold > 1 {
		return fmt.Errorf("iou_threshold must be in [0, 1]")
	}

	return nil
}

func (c *ClassifierConfig) Validate() error {
	if !c.Enabled {
		return nil
	}

	if c.Endpoint == "" {
		return fmt.Errorf("endpoint is required when classifier is enabled")
	}

	if c.LabelsFile == "" {
		return fmt.Errorf("labels_file is required when classifier is enabled")
	}

	if c.InputSize <= 0 {
		return fmt.Errorf("input_size must be positive")
	}

	if c.Timeout <= 0 {
		return fmt.Errorf("timeout must be positive")
	}

	return nil
}

func (c *CropsConfig) Validate() error {
	if !c.Enabled {
		return nil
	}

	if c.Dir == "" {
		return fmt.Errorf("dir is required when crops are enabled")
	}

	if c.MaxPerSecond <= 0 {
		return fmt.Errorf("max_per_second must be positive")
	}

	if c.Burst <= 0 {
		return fmt.Errorf("burst must be positive")
	}

	return nil
}

func (s *SinkConfig) Validate() error {
	if !s.Enabled {
		return nil
	}

	if s.KeyPrefix == "" {
		return fmt.Errorf("key_prefix is required when sink is enabled")
	}

	if s.Channel == "" {
		return fmt.Errorf("channel is required when sink is enabled")
	}

	if s.TTL < 0 {
		return fmt.Errorf("ttl must not be negative")
	}

	return nil
}
