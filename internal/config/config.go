package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

type Config struct {
	Server     ServerConfig     `mapstructure:"server"`
	Redis      RedisConfig      `mapstructure:"redis"`
	Logging    LoggingConfig    `mapstructure:"logging"`
	Metrics    MetricsConfig    `mapstructure:"metrics"`
	Pipeline   PipelineConfig   `mapstructure:"pipeline"`
	Capture    CaptureConfig    `mapstructure:"capture"`
	Detector   DetectorConfig   `mapstructure:"detector"`
	Classifier ClassifierConfig `mapstructure:"classifier"`
	Crops      CropsConfig      `mapstructure:"crops"`
	Sink       SinkConfig       `mapstructure:"sink"`
}

type ServerConfig struct {
	HTTPPort        int           `mapstructure:"http_port"`
	ReadTimeout     time.Duration `mapstructure:"read_timeout"`
	WriteTimeout    time.Duration `mapstructure:"write_timeout"`
	ShutdownTimeout time.Duration `mapstructure:"shutdown_timeout"`
	DebugEndpoints  bool          `mapstructure:"debug_endpoints"`
	HealthInterval  time.Duration `mapstructure:"health_interval"`
	MemoryLimitMB   int           `mapstructure:"memory_limit_mb"` // 0 disables the memory check

	// HTTP/3 over QUIC, off unless TLS material is provided
	HTTP3Enabled       bool          `mapstructure:"http3_enabled"`
	HTTP3Port          int           `mapstructure:"http3_port"`
	TLSCertFile        string        `mapstructure:"tls_cert_file"`
	TLSKeyFile         string        `mapstructure:"tls_key_file"`
	MaxIncomingStreams int64         `mapstructure:"max_incoming_streams"`
	MaxIdleTimeout     time.Duration `mapstructure:"max_idle_timeout"`
}

type RedisConfig struct {
	Addresses    []string      `mapstructure:"addresses"`
	Password     string        `mapstructure:"password"`
	DB           int           `mapstructure:"db"`
	MaxRetries   int           `mapstructure:"max_retries"`
	DialTimeout  time.Duration `mapstructure:"dial_timeout"`
	ReadTimeout  time.Duration `mapstructure:"read_timeout"`
	WriteTimeout time.Duration `mapstructure:"write_timeout"`
	PoolSize     int           `mapstructure:"pool_size"`
	MinIdleConns int           `mapstructure:"min_idle_conns"`
}

type LoggingConfig struct {
	Level      string `mapstructure:"level"`
	Format     string `mapstructure:"format"`   // json or text
	Output     string `mapstructure:"output"`   // stdout, stderr, or file path
	MaxSize    int    `mapstructure:"max_size"` // MB
	MaxBackups int    `mapstructure:"max_backups"`
	MaxAge     int    `mapstructure:"max_age"` // days
}

type MetricsConfig struct {
	Enabled bool   `mapstructure:"enabled"`
	Path    string `mapstructure:"path"`
	Port    int    `mapstructure:"port"`
}

// PipelineConfig describes analysis and display geometry.
type PipelineConfig struct {
	AnalysisWidth    int           `mapstructure:"analysis_width"`
	AnalysisHeight   int           `mapstructure:"analysis_height"`
	DetectorRotation int           `mapstructure:"detector_rotation"`
	DisplayWidth     int           `mapstructure:"display_width"`
	DisplayHeight    int           `mapstructure:"display_height"`
	CropRotation     string        `mapstructure:"crop_rotation"`  // fixed or device
	FixedRotation    int           `mapstructure:"fixed_rotation"` // used when crop_rotation is fixed
	ChromaMode       string        `mapstructure:"chroma_mode"`    // scan or average
	DefaultLabel     string        `mapstructure:"default_label"`
	StallThreshold   time.Duration `mapstructure:"stall_threshold"`
}

type CaptureConfig struct {
	Source   string  `mapstructure:"source"` // synthetic or file
	Width    int     `mapstructure:"width"`
	Height   int     `mapstructure:"height"`
	FPS      float64 `mapstructure:"fps"`
	Rotation int     `mapstructure:"rotation"`
	Dir      string  `mapstructure:"dir"` // raw NV21 files for the file source
	Loop     bool    `mapstructure:"loop"`
}

type DetectorConfig struct {
	CascadeFile  string  `mapstructure:"cascade_file"`
	MinSize      int     `mapstructure:"min_size"`
	MaxSize      int     `mapstructure:"max_size"`
	ShiftFactor  float64 `mapstructure:"shift_factor"`
	ScaleFactor  float64 `mapstructure:"scale_factor"`
	IoUThreshold float64 `mapstructure:"iou_threshold"`
	MinScore     float32 `mapstructure:"min_score"`
}

type ClassifierConfig struct {
	Enabled    bool          `mapstructure:"enabled"`
	Endpoint   string        `mapstructure:"endpoint"`
	LabelsFile string        `mapstructure:"labels_file"`
	InputSize  int           `mapstructure:"input_size"`
	Timeout    time.Duration `mapstructure:"timeout"`
}

type CropsConfig struct {
	Enabled      bool    `mapstructure:"enabled"`
	Dir          string  `mapstructure:"dir"`
	MaxPerSecond float64 `mapstructure:"max_per_second"`
	Burst        int     `mapstructure:"burst"`
}

type SinkConfig struct {
	Enabled   bool          `mapstructure:"enabled"`
	KeyPrefix string        `mapstructure:"key_prefix"`
	Channel   string        `mapstructure:"channel"`
	TTL       time.Duration `mapstructure:"ttl"`
}

func Load(configPath string) (*Config, error) {
	v := viper.New()
	v.SetConfigType("yaml")
	v.SetConfigFile(configPath)

	// Environment variable override
	v.SetEnvPrefix("FACELENS")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	setDefaults(v)

	if err := v.ReadInConfig(); err != nil {
		return nil, fmt.Errorf("failed to read config: %w", err)
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}

	return &cfg, nil
}

func setDefaults(v *viper.Viper) {
	// Server defaults
	v.SetDefault("server.http_port", 8080)
	v.SetDefault("server.read_timeout", "15s")
	v.SetDefault("server.write_timeout", "15s")
	v.SetDefault("server.shutdown_timeout", "10s")
	v.SetDefault("server.debug_endpoints", false)
	v.SetDefault("server.health_interval", "30s")
	v.SetDefault("server.memory_limit_mb", 512)
	v.SetDefault("server.http3_enabled", false)
	v.SetDefault("server.http3_port", 8443)
	v.SetDefault("server.max_incoming_streams", 100)
	v.SetDefault("server.max_idle_timeout", "30s")

	// Redis defaults
	v.SetDefault("redis.addresses", []string{"localhost:6379"})
	v.SetDefault("redis.db", 0)
	v.SetDefault("redis.max_retries", 3)
	v.SetDefault("redis.dial_timeout", "5s")
	v.SetDefault("redis.read_timeout", "3s")
	v.SetDefault("redis.write_timeout", "3s")
	v.SetDefault("redis.pool_size", 10)
	v.SetDefault("redis.min_idle_conns", 1)

	// Logging defaults
	v.SetDefault("logging.level", "info")
	v.SetDefault("logging.format", "json")
	v.SetDefault("logging.output", "stdout")
	v.SetDefault("logging.max_size", 100)
	v.SetDefault("logging.max_backups", 5)
	v.SetDefault("logging.max_age", 30)

	// Metrics defaults
	v.SetDefault("metrics.enabled", true)
	v.SetDefault("metrics.path", "/metrics")
	v.SetDefault("metrics.port", 9090)

	// Pipeline defaults
	v.SetDefault("pipeline.analysis_width", 480)
	v.SetDefault("pipeline.analysis_height", 640)
	v.SetDefault("pipeline.detector_rotation", 90)
	v.SetDefault("pipeline.display_width", 1080)
	v.SetDefault("pipeline.display_height", 1440)
	v.SetDefault("pipeline.crop_rotation", "fixed")
	v.SetDefault("pipeline.fixed_rotation", 90)
	v.SetDefault("pipeline.chroma_mode", "scan")
	v.SetDefault("pipeline.default_label", "Unknown")
	v.SetDefault("pipeline.stall_threshold", "30s")

	// Capture defaults: the sensor delivers landscape 640x480 and is mounted at 90°
	v.SetDefault("capture.source", "synthetic")
	v.SetDefault("capture.width", 640)
	v.SetDefault("capture.height", 480)
	v.SetDefault("capture.fps", 30)
	v.SetDefault("capture.rotation", 90)
	v.SetDefault("capture.loop", true)

	// Detector defaults
	v.SetDefault("detector.cascade_file", "cascade/facefinder")
	v.SetDefault("detector.min_size", 40)
	v.SetDefault("detector.max_size", 600)
	v.SetDefault("detector.shift_factor", 0.1)
	v.SetDefault("detector.scale_factor", 1.1)
	v.SetDefault("detector.iou_threshold", 0.2)
	v.SetDefault("detector.min_score", 5.0)

	// Classifier defaults
	v.SetDefault("classifier.enabled", false)
	v.SetDefault("classifier.input_size", 224)
	v.SetDefault("classifier.timeout", "2s")

	// Crop store defaults
	v.SetDefault("crops.enabled", false)
	v.SetDefault("crops.dir", "/var/lib/facelens/faces")
	v.SetDefault("crops.max_per_second", 5)
	v.SetDefault("crops.burst", 10)

	// Sink defaults
	v.SetDefault("sink.enabled", false)
	v.SetDefault("sink.key_prefix", "facelens:detections:")
	v.SetDefault("sink.channel", "facelens:detections")
	v.SetDefault("sink.ttl", "1m")
}
